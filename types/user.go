package types

import "time"

// Roles recognized by the authorization policy, in ascending order of
// privilege. RoleRank gives each role a numeric rank so gated routes can
// accept any role at or above the required one.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

var roleRanks = map[string]int{
	RoleUser:       1,
	RoleAdmin:      2,
	RoleSuperadmin: 3,
}

// RoleRank returns the privilege rank of a role, or 0 for unknown roles.
func RoleRank(role string) int {
	return roleRanks[role]
}

// ValidRole reports whether role is one of the recognized role names.
func ValidRole(role string) bool {
	return roleRanks[role] != 0
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address. Stored lowercase so uniqueness
	// checks are case-insensitive.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level within the system
	// ("user", "admin", or "superadmin").
	Role string `json:"role" db:"role"`

	// Blocked marks an account whose access has been revoked by an admin.
	// Blocked accounts cannot log in and fail the auth gate on every
	// request, even with a still-valid token.
	Blocked bool `json:"blocked" db:"blocked"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Identity is the authenticated caller attached to a request context by the
// auth gate after the token is verified and the account is loaded.
type Identity struct {
	// ID is the account id of the caller.
	ID int

	// Role is the caller's role as loaded from the store, not the token,
	// so role changes take effect without reissuing tokens.
	Role string

	// BypassOwnership lets the caller see and mutate resources across all
	// owners. It is set in exactly one place: the role policy middleware
	// on admin-gated routes.
	BypassOwnership bool
}
