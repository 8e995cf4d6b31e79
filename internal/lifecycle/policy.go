package lifecycle

import (
	"sort"

	"github.com/noah-isme/curriculum-api/internal/models"
)

// Action names an operation admitted by the role policy.
type Action string

const (
	ActionFrameworkCreate Action = "framework.create"
	ActionVersionCreate   Action = "version.create"
	ActionVersionUpdate   Action = "version.update"
	ActionVersionDelete   Action = "version.delete"
	ActionStructureEdit   Action = "structure.edit"
	ActionApprovalRequest Action = "approval.request"
	ActionApprovalDecide  Action = "approval.decide"
	ActionMappingCreate   Action = "mapping.create"
	ActionMappingUpdate   Action = "mapping.update"
	ActionMappingDelete   Action = "mapping.delete"
	ActionRead            Action = "read"
)

// Actions lists every action known to the policy.
var Actions = []Action{
	ActionFrameworkCreate,
	ActionVersionCreate,
	ActionVersionUpdate,
	ActionVersionDelete,
	ActionStructureEdit,
	ActionApprovalRequest,
	ActionApprovalDecide,
	ActionMappingCreate,
	ActionMappingUpdate,
	ActionMappingDelete,
	ActionRead,
}

// RolePolicy maps each role to the actions it may perform.
type RolePolicy map[models.Role][]Action

var authoring = []Action{
	ActionFrameworkCreate,
	ActionVersionCreate,
	ActionVersionUpdate,
	ActionVersionDelete,
	ActionStructureEdit,
	ActionApprovalRequest,
	ActionMappingCreate,
	ActionMappingUpdate,
	ActionRead,
}

// DefaultPolicy is the production role table.
var DefaultPolicy = RolePolicy{
	models.RoleAdmin:              append(append([]Action{}, authoring...), ActionApprovalDecide, ActionMappingDelete),
	models.RoleProgramOwner:       append(append([]Action{}, authoring...), ActionApprovalDecide, ActionMappingDelete),
	models.RoleCurriculumDesigner: authoring,
	models.RoleQA:                 {ActionApprovalDecide, ActionRead},
	models.RoleTeacher:            {ActionRead},
}

// Allows reports whether role may perform action. Unknown roles are denied.
func (p RolePolicy) Allows(role models.Role, action Action) bool {
	for _, a := range p[role] {
		if a == action {
			return true
		}
	}
	return false
}

// Roles lists the roles allowed to perform action.
func (p RolePolicy) Roles(action Action) []models.Role {
	var out []models.Role
	for role := range p {
		if p.Allows(role, action) {
			out = append(out, role)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
