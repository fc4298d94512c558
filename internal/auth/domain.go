// Package auth implements credential verification, session issuance and the
// single-active-session policy.
package auth

import (
	"time"

	"github.com/pacslink/pacslink/internal/shared"
)

// CaptchaThreshold is the failed-login count at which a captcha becomes mandatory.
const CaptchaThreshold = 5

// User represents a registered hospital account.
type User struct {
	ID           string
	Hospital     string
	Email        string
	Name         string
	PasswordHash string
	Contact      string
	Position     string
	IP           string
	Verified     bool
	FailCount    int
	UploadCount  int
	LangID       int
	CountryID    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Snapshot returns the sanitized view of the user stored inside a session.
func (u *User) Snapshot() *shared.SessionUser {
	return &shared.SessionUser{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Hospital: u.Hospital,
		Position: u.Position,
	}
}

// LangRef is the language joined onto a profile response.
type LangRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Profile is the account view returned by the guard endpoint.
type Profile struct {
	ID          string  `json:"id"`
	Position    string  `json:"position"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	UploadCount int     `json:"uploadCount"`
	Lang        LangRef `json:"Lang"`
}
