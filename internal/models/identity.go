package models

import "github.com/golang-jwt/jwt/v5"

// Role is the closed set of curriculum roles carried by identity tokens.
type Role string

const (
	RoleAdmin              Role = "admin"
	RoleProgramOwner       Role = "program_owner"
	RoleCurriculumDesigner Role = "curriculum_designer"
	RoleQA                 Role = "qa"
	RoleTeacher            Role = "teacher"
)

// Roles lists every known role.
var Roles = []Role{RoleAdmin, RoleProgramOwner, RoleCurriculumDesigner, RoleQA, RoleTeacher}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Identity is the caller context passed explicitly into every engine operation.
type Identity struct {
	ActorID  string `json:"actor_id"`
	TenantID string `json:"tenant_id"`
	Role     Role   `json:"role"`
}

// IdentityClaims is the JWT payload issued by the upstream identity provider.
type IdentityClaims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

// Identity converts the claims into an engine identity.
func (c *IdentityClaims) Identity() Identity {
	return Identity{ActorID: c.UserID, TenantID: c.TenantID, Role: c.Role}
}
