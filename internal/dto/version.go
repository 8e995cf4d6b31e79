package dto

import (
	"encoding/json"

	"github.com/noah-isme/curriculum-api/internal/models"
)

// CreateVersionRequest opens a new draft version on a framework.
type CreateVersionRequest struct {
	VersionNo string          `json:"versionNo" validate:"required,max=32"`
	Changelog *string         `json:"changelog" validate:"omitempty,max=10000"`
	Metadata  json.RawMessage `json:"metadata"`
}

// UpdateVersionRequest patches version fields and optionally requests a manual transition.
type UpdateVersionRequest struct {
	Changelog *string              `json:"changelog" validate:"omitempty,max=10000"`
	Metadata  json.RawMessage      `json:"metadata"`
	State     *models.VersionState `json:"state" validate:"omitempty,oneof=draft pending_review approved published archived"`
}

// Empty reports whether the patch carries no field.
func (r UpdateVersionRequest) Empty() bool {
	return r.Changelog == nil && len(r.Metadata) == 0 && r.State == nil
}
