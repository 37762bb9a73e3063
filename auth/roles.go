package auth

import models "broker-calls/database/models_pkg"

// Role is a closed set of account roles
type Role string

const (
	RoleUser  Role = models.RoleUser
	RoleAdmin Role = models.RoleAdmin
)

// ParseRole converts a stored role string, rejecting unknown values
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// Allowed reports whether role is one of the permitted roles
func Allowed(role Role, permitted ...Role) bool {
	for _, p := range permitted {
		if role == p {
			return true
		}
	}
	return false
}
