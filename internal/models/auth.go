package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleScheduler  UserRole = "SCHEDULER"
	RoleTeacher    UserRole = "TEACHER"
)

// JWTClaims represents the JWT payload issued by the identity service.
// BranchID is the tenant boundary: every core operation takes it from here
// and threads it explicitly, never from ambient state.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	BranchID string   `json:"branch_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	jwt.RegisteredClaims
}
