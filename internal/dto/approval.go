package dto

import (
	"time"

	"github.com/noah-isme/curriculum-api/internal/models"
)

// RequestApprovalRequest submits a draft version for review.
type RequestApprovalRequest struct {
	ReviewerID     string                  `json:"reviewerId" validate:"required,max=64"`
	Priority       models.ApprovalPriority `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	ReviewDeadline *time.Time              `json:"reviewDeadline"`
}

// DecideApprovalRequest moves an approval through the review workflow.
type DecideApprovalRequest struct {
	Status           *models.ApprovalStatus `json:"status" validate:"omitempty,oneof=requested in_review approved rejected escalated"`
	Decision         *string                `json:"decision" validate:"omitempty,max=5000"`
	EscalationReason *string                `json:"escalationReason" validate:"omitempty,max=2000"`
	EscalatedTo      *string                `json:"escalatedTo" validate:"omitempty,max=64"`
}

// Empty reports whether the patch carries no field.
func (r DecideApprovalRequest) Empty() bool {
	return r.Status == nil && r.Decision == nil && r.EscalationReason == nil && r.EscalatedTo == nil
}
