// Package users exposes profile and admin account management.
package users

import "time"

// Ref is a joined reference row (language or country).
type Ref struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key,omitempty"`
}

// User is an account as returned to clients. The password hash never leaves
// the repository layer.
type User struct {
	ID          string    `json:"id"`
	Hospital    string    `json:"hospital"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Contact     string    `json:"contact"`
	Position    string    `json:"position"`
	Verified    bool      `json:"verified"`
	UploadCount int       `json:"uploadCount"`
	Country     Ref       `json:"Country"`
	Lang        Ref       `json:"Lang"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UpdateInput carries the patchable profile fields. Nil means unchanged.
type UpdateInput struct {
	Hospital *string `json:"hospital"`
	Name     *string `json:"name"`
	Contact  *string `json:"contact"`
	Password *string `json:"password"`
}
