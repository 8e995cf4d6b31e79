package models

import "time"

// Framework groups the versions of one curriculum.
type Framework struct {
	ID              string       `db:"id" json:"id"`
	TenantID        string       `db:"tenant_id" json:"tenant_id"`
	Code            string       `db:"code" json:"code"`
	Name            string       `db:"name" json:"name"`
	Description     *string      `db:"description" json:"description,omitempty"`
	Status          VersionState `db:"status" json:"status"`
	LatestVersionID *string      `db:"latest_version_id" json:"latest_version_id,omitempty"`
	CreatedBy       string       `db:"created_by" json:"created_by"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// IsLatest reports whether versionID is the framework's latest version.
func (f *Framework) IsLatest(versionID string) bool {
	return f != nil && f.LatestVersionID != nil && *f.LatestVersionID == versionID
}

// FrameworkFilter captures listing criteria.
type FrameworkFilter struct {
	Search    string
	Status    *VersionState
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
