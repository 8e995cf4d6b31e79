package models

import "time"

// User is a tenant member. The API only reads users to resolve reviewers.
type User struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Role      Role      `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ReviewerRoles may be assigned approvals or receive escalations.
var ReviewerRoles = []Role{RoleProgramOwner, RoleQA, RoleAdmin}

// CanReview reports whether the user is an eligible reviewer.
func (u *User) CanReview() bool {
	if u == nil || !u.Active {
		return false
	}
	for _, role := range ReviewerRoles {
		if u.Role == role {
			return true
		}
	}
	return false
}
