// Package token manages the email-verification and password-reset token lifecycle.
package token

import "time"

// Token is a single-use credential mailed to a user. The id itself is the
// bearer secret embedded in the emailed link.
type Token struct {
	ID      string
	UserID  string
	DueDate time.Time
}

// Lifetime is how long an issued token stays redeemable.
const Lifetime = 7 * 24 * time.Hour

// Password bounds enforced on redemption.
const (
	PasswordMinLen = 4
	PasswordMaxLen = 16
)
