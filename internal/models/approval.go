package models

import "time"

// ApprovalStatus enumerates the review workflow states.
type ApprovalStatus string

const (
	ApprovalRequested ApprovalStatus = "requested"
	ApprovalInReview  ApprovalStatus = "in_review"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalEscalated ApprovalStatus = "escalated"
)

// Open reports whether the approval still blocks a new request for its version.
func (s ApprovalStatus) Open() bool {
	return s == ApprovalRequested || s == ApprovalInReview
}

// ApprovalPriority ranks review urgency.
type ApprovalPriority string

const (
	PriorityLow    ApprovalPriority = "low"
	PriorityNormal ApprovalPriority = "normal"
	PriorityHigh   ApprovalPriority = "high"
	PriorityUrgent ApprovalPriority = "urgent"
)

// Approval is a review request gating a version's progression.
type Approval struct {
	ID                 string           `db:"id" json:"id"`
	TenantID           string           `db:"tenant_id" json:"tenant_id"`
	VersionID          string           `db:"version_id" json:"version_id"`
	RequestedBy        string           `db:"requested_by" json:"requested_by"`
	AssignedReviewerID string           `db:"assigned_reviewer_id" json:"assigned_reviewer_id"`
	Status             ApprovalStatus   `db:"status" json:"status"`
	Priority           ApprovalPriority `db:"priority" json:"priority"`
	ReviewDeadline     *time.Time       `db:"review_deadline" json:"review_deadline,omitempty"`
	Decision           *string          `db:"decision" json:"decision,omitempty"`
	DecisionMadeBy     *string          `db:"decision_made_by" json:"decision_made_by,omitempty"`
	DecisionMadeAt     *time.Time       `db:"decision_made_at" json:"decision_made_at,omitempty"`
	EscalationReason   *string          `db:"escalation_reason" json:"escalation_reason,omitempty"`
	EscalatedTo        *string          `db:"escalated_to" json:"escalated_to,omitempty"`
	EscalatedAt        *time.Time       `db:"escalated_at" json:"escalated_at,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// ApprovalFilter captures listing criteria.
type ApprovalFilter struct {
	VersionID  string
	Status     *ApprovalStatus
	ReviewerID string
	Page       int
	PageSize   int
}
