package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// VersionState enumerates the lifecycle states of a curriculum version.
type VersionState string

const (
	VersionDraft         VersionState = "draft"
	VersionPendingReview VersionState = "pending_review"
	VersionApproved      VersionState = "approved"
	VersionPublished     VersionState = "published"
	VersionArchived      VersionState = "archived"
)

// VersionStates lists every state in lifecycle order.
var VersionStates = []VersionState{VersionDraft, VersionPendingReview, VersionApproved, VersionPublished, VersionArchived}

// Frozen reports whether structural content under a version in this state is read-only.
func (s VersionState) Frozen() bool {
	return s != VersionDraft
}

// Version is one revision of a framework's content.
type Version struct {
	ID          string         `db:"id" json:"id"`
	TenantID    string         `db:"tenant_id" json:"tenant_id"`
	FrameworkID string         `db:"framework_id" json:"framework_id"`
	VersionNo   string         `db:"version_no" json:"version_no"`
	State       VersionState   `db:"state" json:"state"`
	Changelog   *string        `db:"changelog" json:"changelog,omitempty"`
	Metadata    types.JSONText `db:"metadata" json:"metadata"`
	PublishedAt *time.Time     `db:"published_at" json:"published_at,omitempty"`
	CreatedBy   string         `db:"created_by" json:"created_by"`
	UpdatedBy   *string        `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
}

// InitialVersionNo is assigned to the version created alongside a framework.
const InitialVersionNo = "v1.0"

// VersionStateCount is one row of the per-state aggregate.
type VersionStateCount struct {
	State VersionState `db:"state"`
	Count int          `db:"count"`
}

// VersionStats summarises a framework's versions.
type VersionStats struct {
	FrameworkID     string               `json:"framework_id"`
	Total           int                  `json:"total"`
	ByState         map[VersionState]int `json:"by_state"`
	LastPublishedAt *time.Time           `json:"last_published_at,omitempty"`
}
