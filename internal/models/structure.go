package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// NodeKind names a level of the structural content tree.
type NodeKind string

const (
	NodeVersion  NodeKind = "version"
	NodeCourse   NodeKind = "course"
	NodeUnit     NodeKind = "unit"
	NodeResource NodeKind = "resource"
)

// NodeRef points at a node whose owning version must be resolved.
type NodeRef struct {
	Kind NodeKind
	ID   string
}

// Course is the top structural node under a version.
type Course struct {
	ID          string     `db:"id" json:"id"`
	TenantID    string     `db:"tenant_id" json:"tenant_id"`
	VersionID   string     `db:"version_id" json:"version_id"`
	Code        *string    `db:"code" json:"code,omitempty"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description,omitempty"`
	Sequence    int        `db:"sequence" json:"sequence"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Unit is a teaching unit within a course.
type Unit struct {
	ID                string             `db:"id" json:"id"`
	TenantID          string             `db:"tenant_id" json:"tenant_id"`
	CourseID          string             `db:"course_id" json:"course_id"`
	Title             string             `db:"title" json:"title"`
	Description       *string            `db:"description" json:"description,omitempty"`
	Sequence          int                `db:"sequence" json:"sequence"`
	Objectives        types.JSONText     `db:"objectives" json:"objectives"`
	Skills            types.JSONText     `db:"skills" json:"skills"`
	Activities        types.JSONText     `db:"activities" json:"activities"`
	Rubric            types.NullJSONText `db:"rubric" json:"rubric"`
	CompletenessScore int                `db:"completeness_score" json:"completeness_score"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `db:"updated_at" json:"updated_at"`
	DeletedAt         *time.Time         `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Resource is a learning material attached to a unit.
type Resource struct {
	ID        string     `db:"id" json:"id"`
	TenantID  string     `db:"tenant_id" json:"tenant_id"`
	UnitID    string     `db:"unit_id" json:"unit_id"`
	Kind      string     `db:"kind" json:"kind"`
	Title     string     `db:"title" json:"title"`
	URL       *string    `db:"url" json:"url,omitempty"`
	Sequence  int        `db:"sequence" json:"sequence"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// NodeOwner is the version resolved for a structural node.
type NodeOwner struct {
	NodeID       string       `db:"node_id"`
	VersionID    string       `db:"version_id"`
	VersionState VersionState `db:"version_state"`
}

// SequenceUpdate assigns a new position to a sibling node.
type SequenceUpdate struct {
	ID       string
	Sequence int
}
