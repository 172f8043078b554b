package model

import "time"

// Account represents an identity that can authenticate and hold a role.
type Account struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Roles, lowest to highest. Every account holds exactly one.
// Exactly one account holds RoleSuperAdmin (the root) at any time.
const (
	RoleNone       = "none"
	RoleBuyer      = "buyer"
	RoleSeller     = "seller"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// roleRanks orders roles so higher roles satisfy lower-role checks.
var roleRanks = map[string]int{
	RoleNone:       0,
	RoleBuyer:      1,
	RoleSeller:     2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
// Unknown roles fail-closed. A check against RoleNone always fails: holding
// no role grants no capability.
func RoleAtLeast(role, minimum string) bool {
	r, ok := roleRanks[role]
	if !ok || r == 0 {
		return false
	}
	m, ok := roleRanks[minimum]
	if !ok {
		return false
	}
	return r >= m
}

// ValidRole reports whether role is a known grantable role (excludes "none",
// which is the absence of a role, not a role to grant).
func ValidRole(role string) bool {
	r, ok := roleRanks[role]
	return ok && r > 0
}
