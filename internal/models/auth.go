package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles recognised by the RBAC layer. Tokens are
// issued by the external identity service; this API only verifies them.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleManager UserRole = "MANAGER"
	RoleTeacher UserRole = "TEACHER"
)

// Valid reports whether the role is one the RBAC layer knows.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleTeacher:
		return true
	}
	return false
}

// JWTClaims are the claims carried in externally-issued access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
