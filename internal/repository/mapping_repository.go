package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/curriculum-api/internal/models"
)

const mappingColumns = `id, tenant_id, framework_id, version_id, target_type, target_id, campus_id, rollout_phase, risk_assessment,
mismatch_report, override_reason, status, applied_at, rolled_back_at, created_by, updated_by, created_at, updated_at`

// MappingRepository persists version-to-target rollout mappings.
type MappingRepository struct {
	db *sqlx.DB
}

// NewMappingRepository constructs the repository.
func NewMappingRepository(db *sqlx.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

func (r *MappingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a mapping in planned status.
func (r *MappingRepository) Create(ctx context.Context, exec sqlx.ExtContext, mapping *models.Mapping) error {
	if mapping.ID == "" {
		mapping.ID = uuid.NewString()
	}
	if mapping.Status == "" {
		mapping.Status = models.MappingPlanned
	}
	if mapping.RolloutPhase == "" {
		mapping.RolloutPhase = models.RolloutPlanned
	}
	if mapping.RiskAssessment == "" {
		mapping.RiskAssessment = models.RiskLow
	}
	if len(mapping.MismatchReport) == 0 {
		mapping.MismatchReport = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	mapping.CreatedAt = now
	mapping.UpdatedAt = now

	const query = `INSERT INTO mappings (id, tenant_id, framework_id, version_id, target_type, target_id, campus_id, rollout_phase,
risk_assessment, mismatch_report, override_reason, status, created_by, created_at, updated_at)
VALUES (:id, :tenant_id, :framework_id, :version_id, :target_type, :target_id, :campus_id, :rollout_phase,
:risk_assessment, :mismatch_report, :override_reason, :status, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, mapping); err != nil {
		return fmt.Errorf("insert mapping: %w", err)
	}
	return nil
}

// FindByID loads a mapping within the tenant.
func (r *MappingRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Mapping, error) {
	return r.find(ctx, exec, tenantID, id, false)
}

// FindByIDForUpdate loads a mapping and locks its row for the transaction.
func (r *MappingRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Mapping, error) {
	return r.find(ctx, exec, tenantID, id, true)
}

func (r *MappingRepository) find(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, lock bool) (*models.Mapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM mappings WHERE tenant_id = $1 AND id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	var mapping models.Mapping
	if err := sqlx.GetContext(ctx, r.exec(exec), &mapping, query, tenantID, id); err != nil {
		return nil, err
	}
	return &mapping, nil
}

// Exists checks the uniqueness tuple. A nil campus is matched as its own value.
func (r *MappingRepository) Exists(ctx context.Context, key models.MappingKey) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM mappings WHERE tenant_id = $1 AND framework_id = $2 AND version_id = $3
AND target_type = $4 AND target_id = $5 AND COALESCE(campus_id, '') = COALESCE($6::text, ''))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, key.TenantID, key.FrameworkID, key.VersionID, key.TargetType, key.TargetID, key.CampusID); err != nil {
		return false, fmt.Errorf("check mapping target: %w", err)
	}
	return exists, nil
}

// Update persists the mutable fields of a mapping.
func (r *MappingRepository) Update(ctx context.Context, exec sqlx.ExtContext, mapping *models.Mapping) error {
	mapping.UpdatedAt = time.Now().UTC()
	const query = `UPDATE mappings SET rollout_phase = :rollout_phase, risk_assessment = :risk_assessment, mismatch_report = :mismatch_report,
override_reason = :override_reason, status = :status, applied_at = :applied_at, rolled_back_at = :rolled_back_at,
updated_by = :updated_by, updated_at = :updated_at
WHERE id = :id AND tenant_id = :tenant_id`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, mapping)
	if err != nil {
		return fmt.Errorf("update mapping: %w", err)
	}
	return expectAffected(result, "update mapping")
}

// DeleteUnlessApplied removes a mapping that is not applied. It reports whether a row was deleted.
func (r *MappingRepository) DeleteUnlessApplied(ctx context.Context, tenantID, id string) (bool, error) {
	const query = `DELETE FROM mappings WHERE tenant_id = $1 AND id = $2 AND status <> $3`
	result, err := r.db.ExecContext(ctx, query, tenantID, id, models.MappingApplied)
	if err != nil {
		return false, fmt.Errorf("delete mapping: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete mapping rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns mappings of a tenant with pagination.
func (r *MappingRepository) List(ctx context.Context, tenantID string, filter models.MappingFilter) ([]models.Mapping, int, error) {
	baseQuery := `FROM mappings WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	var conditions []string

	if filter.FrameworkID != "" {
		conditions = append(conditions, fmt.Sprintf("framework_id = $%d", len(args)+1))
		args = append(args, filter.FrameworkID)
	}
	if filter.VersionID != "" {
		conditions = append(conditions, fmt.Sprintf("version_id = $%d", len(args)+1))
		args = append(args, filter.VersionID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.TargetType != nil {
		conditions = append(conditions, fmt.Sprintf("target_type = $%d", len(args)+1))
		args = append(args, *filter.TargetType)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", mappingColumns, baseQuery, pageSize, (page-1)*pageSize)
	var mappings []models.Mapping
	if err := r.db.SelectContext(ctx, &mappings, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list mappings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count mappings: %w", err)
	}
	return mappings, total, nil
}
