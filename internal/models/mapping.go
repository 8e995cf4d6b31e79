package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// MappingStatus enumerates the rollout apply lifecycle.
type MappingStatus string

const (
	MappingPlanned    MappingStatus = "planned"
	MappingValidated  MappingStatus = "validated"
	MappingApplied    MappingStatus = "applied"
	MappingFailed     MappingStatus = "failed"
	MappingRolledBack MappingStatus = "rolled_back"
)

// TargetType names the operational entity a mapping binds to.
type TargetType string

const (
	TargetCourseTemplate TargetType = "course_template"
	TargetClassInstance  TargetType = "class_instance"
)

// RolloutPhase describes how widely a mapping is rolled out.
type RolloutPhase string

const (
	RolloutPlanned RolloutPhase = "planned"
	RolloutPilot   RolloutPhase = "pilot"
	RolloutPhased  RolloutPhase = "phased"
	RolloutFull    RolloutPhase = "full"
)

// RiskLevel classifies the impact of applying a mapping.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// NeedsOverride reports whether the risk level demands a recorded override reason.
func (r RiskLevel) NeedsOverride() bool {
	return r == RiskHigh || r == RiskCritical
}

// Mapping binds a version to an operational target.
type Mapping struct {
	ID             string         `db:"id" json:"id"`
	TenantID       string         `db:"tenant_id" json:"tenant_id"`
	FrameworkID    string         `db:"framework_id" json:"framework_id"`
	VersionID      string         `db:"version_id" json:"version_id"`
	TargetType     TargetType     `db:"target_type" json:"target_type"`
	TargetID       string         `db:"target_id" json:"target_id"`
	CampusID       *string        `db:"campus_id" json:"campus_id,omitempty"`
	RolloutPhase   RolloutPhase   `db:"rollout_phase" json:"rollout_phase"`
	RiskAssessment RiskLevel      `db:"risk_assessment" json:"risk_assessment"`
	MismatchReport types.JSONText `db:"mismatch_report" json:"mismatch_report"`
	OverrideReason *string        `db:"override_reason" json:"override_reason,omitempty"`
	Status         MappingStatus  `db:"status" json:"status"`
	AppliedAt      *time.Time     `db:"applied_at" json:"applied_at,omitempty"`
	RolledBackAt   *time.Time     `db:"rolled_back_at" json:"rolled_back_at,omitempty"`
	CreatedBy      string         `db:"created_by" json:"created_by"`
	UpdatedBy      *string        `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// MappingKey identifies the uniqueness tuple of a mapping within a tenant.
type MappingKey struct {
	TenantID    string
	FrameworkID string
	VersionID   string
	TargetType  TargetType
	TargetID    string
	CampusID    *string
}

// MappingFilter captures listing criteria.
type MappingFilter struct {
	FrameworkID string
	VersionID   string
	Status      *MappingStatus
	TargetType  *TargetType
	Page        int
	PageSize    int
}
