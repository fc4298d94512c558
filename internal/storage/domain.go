// Package storage tracks uploaded DICOM studies and their converted cloud copies.
package storage

import "time"

// Object is one uploaded DICOM file.
type Object struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ObjectKey   string    `json:"objectKey"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Converted   bool      `json:"converted"`
	CreatedAt   time.Time `json:"createdAt"`
}
