package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/curriculum-api/internal/models"
)

const resourceColumns = `id, tenant_id, unit_id, kind, title, url, sequence, created_at, updated_at, deleted_at`

// ResourceRepository persists learning resources of a unit.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository constructs the repository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

func (r *ResourceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// NextSequence returns the position after the last live resource of the unit.
func (r *ResourceRepository) NextSequence(ctx context.Context, exec sqlx.ExtContext, tenantID, unitID string) (int, error) {
	const query = `SELECT COALESCE(MAX(sequence), -1) + 1 FROM resources WHERE tenant_id = $1 AND unit_id = $2 AND deleted_at IS NULL`
	var next int
	if err := sqlx.GetContext(ctx, r.exec(exec), &next, query, tenantID, unitID); err != nil {
		return 0, fmt.Errorf("next resource sequence: %w", err)
	}
	return next, nil
}

// Create inserts a resource.
func (r *ResourceRepository) Create(ctx context.Context, exec sqlx.ExtContext, resource *models.Resource) error {
	if resource.ID == "" {
		resource.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	resource.CreatedAt = now
	resource.UpdatedAt = now

	const query = `INSERT INTO resources (id, tenant_id, unit_id, kind, title, url, sequence, created_at, updated_at)
VALUES (:id, :tenant_id, :unit_id, :kind, :title, :url, :sequence, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, resource); err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	return nil
}

// FindByID loads a live resource.
func (r *ResourceRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Resource, error) {
	const query = `SELECT ` + resourceColumns + ` FROM resources WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`
	var resource models.Resource
	if err := sqlx.GetContext(ctx, r.exec(exec), &resource, query, tenantID, id); err != nil {
		return nil, err
	}
	return &resource, nil
}

// ListByUnit returns the live resources of a unit in sequence order.
func (r *ResourceRepository) ListByUnit(ctx context.Context, tenantID, unitID string) ([]models.Resource, error) {
	const query = `SELECT ` + resourceColumns + ` FROM resources WHERE tenant_id = $1 AND unit_id = $2 AND deleted_at IS NULL ORDER BY sequence ASC, created_at ASC`
	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, query, tenantID, unitID); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return resources, nil
}

// CountActive counts live resources attached to a unit.
func (r *ResourceRepository) CountActive(ctx context.Context, exec sqlx.ExtContext, tenantID, unitID string) (int, error) {
	const query = `SELECT COUNT(*) FROM resources WHERE tenant_id = $1 AND unit_id = $2 AND deleted_at IS NULL`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, tenantID, unitID); err != nil {
		return 0, fmt.Errorf("count unit resources: %w", err)
	}
	return count, nil
}

// Update persists resource fields.
func (r *ResourceRepository) Update(ctx context.Context, exec sqlx.ExtContext, resource *models.Resource) error {
	resource.UpdatedAt = time.Now().UTC()
	const query = `UPDATE resources SET kind = :kind, title = :title, url = :url, sequence = :sequence, updated_at = :updated_at
WHERE id = :id AND tenant_id = :tenant_id AND deleted_at IS NULL`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, resource)
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	return expectAffected(result, "update resource")
}

// SoftDelete hides a resource.
func (r *ResourceRepository) SoftDelete(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) error {
	const query = `UPDATE resources SET deleted_at = $1, updated_at = $1 WHERE tenant_id = $2 AND id = $3 AND deleted_at IS NULL`
	result, err := r.exec(exec).ExecContext(ctx, query, time.Now().UTC(), tenantID, id)
	if err != nil {
		return fmt.Errorf("soft delete resource: %w", err)
	}
	return expectAffected(result, "soft delete resource")
}

// MoveToUnit re-parents live resources of fromUnitID onto toUnitID and returns how many moved.
func (r *ResourceRepository) MoveToUnit(ctx context.Context, exec sqlx.ExtContext, tenantID, fromUnitID, toUnitID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`UPDATE resources SET unit_id = $1, updated_at = $2
WHERE tenant_id = $3 AND unit_id = $4 AND deleted_at IS NULL AND id IN (%s)`, placeholders(5, len(ids)))
	args := []interface{}{toUnitID, time.Now().UTC(), tenantID, fromUnitID}
	for _, id := range ids {
		args = append(args, id)
	}
	result, err := r.exec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("move resources: %w", err)
	}
	moved, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("move resources rows affected: %w", err)
	}
	return moved, nil
}
