package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Entity types recorded in the audit trail.
const (
	EntityFramework = "framework"
	EntityVersion   = "version"
	EntityApproval  = "approval"
	EntityMapping   = "mapping"
	EntityCourse    = "course"
	EntityUnit      = "unit"
	EntityResource  = "resource"
)

// AuditAction constants represent actions to be logged.
const (
	AuditActionCreate     = "CREATE"
	AuditActionUpdate     = "UPDATE"
	AuditActionDelete     = "DELETE"
	AuditActionTransition = "TRANSITION"
	AuditActionReorder    = "REORDER"
	AuditActionSplit      = "SPLIT"
	AuditActionRequest    = "REQUEST_APPROVAL"
	AuditActionDecide     = "DECIDE"
	AuditActionEscalate   = "ESCALATE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string         `db:"id" json:"id"`
	TenantID   string         `db:"tenant_id" json:"tenant_id"`
	ActorID    string         `db:"actor_id" json:"actor_id"`
	EntityType string         `db:"entity_type" json:"entity_type"`
	EntityID   string         `db:"entity_id" json:"entity_id"`
	Action     string         `db:"action" json:"action"`
	Details    types.JSONText `db:"details" json:"details"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// AuditEvent is the fire-and-forget notification engines hand to the audit emitter.
type AuditEvent struct {
	ActorID    string
	TenantID   string
	EntityType string
	EntityID   string
	Action     string
	Details    map[string]interface{}
}

// TransitionSignal announces a committed lifecycle transition to downstream subscribers.
type TransitionSignal struct {
	TenantID   string    `json:"tenantId"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	ActorID    string    `json:"actorId"`
	OccurredAt time.Time `json:"occurredAt"`
}
