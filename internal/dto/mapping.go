package dto

import (
	"encoding/json"

	"github.com/noah-isme/curriculum-api/internal/models"
)

// CreateMappingRequest binds a version to an operational target.
type CreateMappingRequest struct {
	FrameworkID    string              `json:"frameworkId" validate:"required,max=64"`
	VersionID      string              `json:"versionId" validate:"required,max=64"`
	TargetType     models.TargetType   `json:"targetType" validate:"required,oneof=course_template class_instance"`
	TargetID       string              `json:"targetId" validate:"required,max=128"`
	CampusID       *string             `json:"campusId" validate:"omitempty,max=64"`
	RolloutPhase   models.RolloutPhase `json:"rolloutPhase" validate:"omitempty,oneof=planned pilot phased full"`
	RiskAssessment models.RiskLevel    `json:"riskAssessment" validate:"omitempty,oneof=low medium high critical"`
	MismatchReport json.RawMessage     `json:"mismatchReport"`
	OverrideReason *string             `json:"overrideReason" validate:"omitempty,max=2000"`
}

// UpdateMappingRequest patches rollout fields and optionally advances the status.
type UpdateMappingRequest struct {
	RolloutPhase   *models.RolloutPhase  `json:"rolloutPhase" validate:"omitempty,oneof=planned pilot phased full"`
	RiskAssessment *models.RiskLevel     `json:"riskAssessment" validate:"omitempty,oneof=low medium high critical"`
	MismatchReport json.RawMessage       `json:"mismatchReport"`
	OverrideReason *string               `json:"overrideReason" validate:"omitempty,max=2000"`
	Status         *models.MappingStatus `json:"status" validate:"omitempty,oneof=planned validated applied failed rolled_back"`
}

// Empty reports whether the patch carries no field.
func (r UpdateMappingRequest) Empty() bool {
	return r.RolloutPhase == nil && r.RiskAssessment == nil && len(r.MismatchReport) == 0 &&
		r.OverrideReason == nil && r.Status == nil
}
