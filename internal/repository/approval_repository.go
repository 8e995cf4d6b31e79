package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/curriculum-api/internal/models"
)

const approvalColumns = `id, tenant_id, version_id, requested_by, assigned_reviewer_id, status, priority, review_deadline, decision,
decision_made_by, decision_made_at, escalation_reason, escalated_to, escalated_at, created_at, updated_at`

// ApprovalRepository persists review requests.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

func (r *ApprovalRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an approval. A second open approval for the same version violates
// approvals_open_per_version.
func (r *ApprovalRepository) Create(ctx context.Context, exec sqlx.ExtContext, approval *models.Approval) error {
	if approval.ID == "" {
		approval.ID = uuid.NewString()
	}
	if approval.Status == "" {
		approval.Status = models.ApprovalRequested
	}
	if approval.Priority == "" {
		approval.Priority = models.PriorityNormal
	}
	now := time.Now().UTC()
	approval.CreatedAt = now
	approval.UpdatedAt = now

	const query = `INSERT INTO approvals (id, tenant_id, version_id, requested_by, assigned_reviewer_id, status, priority, review_deadline, created_at, updated_at)
VALUES (:id, :tenant_id, :version_id, :requested_by, :assigned_reviewer_id, :status, :priority, :review_deadline, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, approval); err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

// FindByID loads an approval within the tenant.
func (r *ApprovalRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Approval, error) {
	return r.find(ctx, exec, tenantID, id, false)
}

// FindByIDForUpdate loads an approval and locks its row for the transaction.
func (r *ApprovalRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Approval, error) {
	return r.find(ctx, exec, tenantID, id, true)
}

func (r *ApprovalRepository) find(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, lock bool) (*models.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE tenant_id = $1 AND id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	var approval models.Approval
	if err := sqlx.GetContext(ctx, r.exec(exec), &approval, query, tenantID, id); err != nil {
		return nil, err
	}
	return &approval, nil
}

// HasOpen reports whether the version has an approval in requested or in_review.
func (r *ApprovalRepository) HasOpen(ctx context.Context, tenantID, versionID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM approvals WHERE tenant_id = $1 AND version_id = $2 AND status IN ('requested', 'in_review'))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, tenantID, versionID); err != nil {
		return false, fmt.Errorf("check open approval: %w", err)
	}
	return exists, nil
}

// UpdateDecision writes the workflow fields only if the approval is still in prior.
func (r *ApprovalRepository) UpdateDecision(ctx context.Context, exec sqlx.ExtContext, approval *models.Approval, prior models.ApprovalStatus) error {
	approval.UpdatedAt = time.Now().UTC()
	const query = `UPDATE approvals SET status = $1, decision = $2, decision_made_by = $3, decision_made_at = $4,
escalation_reason = $5, escalated_to = $6, escalated_at = $7, updated_at = $8
WHERE tenant_id = $9 AND id = $10 AND status = $11`
	result, err := r.exec(exec).ExecContext(ctx, query,
		approval.Status,
		approval.Decision,
		approval.DecisionMadeBy,
		approval.DecisionMadeAt,
		approval.EscalationReason,
		approval.EscalatedTo,
		approval.EscalatedAt,
		approval.UpdatedAt,
		approval.TenantID,
		approval.ID,
		prior,
	)
	if err != nil {
		return fmt.Errorf("update approval decision: %w", err)
	}
	return expectAffected(result, "update approval decision")
}

// List returns approvals of a tenant with pagination.
func (r *ApprovalRepository) List(ctx context.Context, tenantID string, filter models.ApprovalFilter) ([]models.Approval, int, error) {
	baseQuery := `FROM approvals WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	var conditions []string

	if filter.VersionID != "" {
		conditions = append(conditions, fmt.Sprintf("version_id = $%d", len(args)+1))
		args = append(args, filter.VersionID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.ReviewerID != "" {
		conditions = append(conditions, fmt.Sprintf("(assigned_reviewer_id = $%d OR escalated_to = $%d)", len(args)+1, len(args)+1))
		args = append(args, filter.ReviewerID)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", approvalColumns, baseQuery, pageSize, (page-1)*pageSize)
	var approvals []models.Approval
	if err := r.db.SelectContext(ctx, &approvals, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list approvals: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count approvals: %w", err)
	}
	return approvals, total, nil
}
