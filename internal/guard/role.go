// Package guard enforces authentication and authorization on HTTP routes.
package guard

// Role is the position assigned to an account.
type Role string

const (
	// RoleUser is the default position for hospital accounts.
	RoleUser Role = "user"
	// RoleAdmin marks operators allowed to manage accounts and logs.
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is a known position.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// Admin reports whether the role grants administrative access.
func (r Role) Admin() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleUser:
		return false
	default:
		return false
	}
}
