package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/curriculum-api/internal/models"
)

const unitColumns = `id, tenant_id, course_id, title, description, sequence, objectives, skills, activities, rubric,
completeness_score, created_at, updated_at, deleted_at`

// UnitRepository persists units of a course.
type UnitRepository struct {
	db *sqlx.DB
}

// NewUnitRepository constructs the repository.
func NewUnitRepository(db *sqlx.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

func (r *UnitRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

func defaultUnitJSON(unit *models.Unit) {
	if len(unit.Objectives) == 0 {
		unit.Objectives = types.JSONText(`[]`)
	}
	if len(unit.Skills) == 0 {
		unit.Skills = types.JSONText(`[]`)
	}
	if len(unit.Activities) == 0 {
		unit.Activities = types.JSONText(`[]`)
	}
}

// NextSequence returns the position after the last live unit of the course.
func (r *UnitRepository) NextSequence(ctx context.Context, exec sqlx.ExtContext, tenantID, courseID string) (int, error) {
	const query = `SELECT COALESCE(MAX(sequence), -1) + 1 FROM units WHERE tenant_id = $1 AND course_id = $2 AND deleted_at IS NULL`
	var next int
	if err := sqlx.GetContext(ctx, r.exec(exec), &next, query, tenantID, courseID); err != nil {
		return 0, fmt.Errorf("next unit sequence: %w", err)
	}
	return next, nil
}

// Create inserts a unit.
func (r *UnitRepository) Create(ctx context.Context, exec sqlx.ExtContext, unit *models.Unit) error {
	if unit.ID == "" {
		unit.ID = uuid.NewString()
	}
	defaultUnitJSON(unit)
	now := time.Now().UTC()
	unit.CreatedAt = now
	unit.UpdatedAt = now

	const query = `INSERT INTO units (id, tenant_id, course_id, title, description, sequence, objectives, skills, activities, rubric,
completeness_score, created_at, updated_at)
VALUES (:id, :tenant_id, :course_id, :title, :description, :sequence, :objectives, :skills, :activities, :rubric,
:completeness_score, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, unit); err != nil {
		return fmt.Errorf("insert unit: %w", err)
	}
	return nil
}

// FindByID loads a live unit.
func (r *UnitRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Unit, error) {
	const query = `SELECT ` + unitColumns + ` FROM units WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`
	var unit models.Unit
	if err := sqlx.GetContext(ctx, r.exec(exec), &unit, query, tenantID, id); err != nil {
		return nil, err
	}
	return &unit, nil
}

// ListByCourse returns the live units of a course in sequence order.
func (r *UnitRepository) ListByCourse(ctx context.Context, tenantID, courseID string) ([]models.Unit, error) {
	const query = `SELECT ` + unitColumns + ` FROM units WHERE tenant_id = $1 AND course_id = $2 AND deleted_at IS NULL ORDER BY sequence ASC, created_at ASC`
	var units []models.Unit
	if err := r.db.SelectContext(ctx, &units, query, tenantID, courseID); err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	return units, nil
}

// Update persists unit fields including the completeness score.
func (r *UnitRepository) Update(ctx context.Context, exec sqlx.ExtContext, unit *models.Unit) error {
	defaultUnitJSON(unit)
	unit.UpdatedAt = time.Now().UTC()
	const query = `UPDATE units SET title = :title, description = :description, objectives = :objectives, skills = :skills,
activities = :activities, rubric = :rubric, completeness_score = :completeness_score, updated_at = :updated_at
WHERE id = :id AND tenant_id = :tenant_id AND deleted_at IS NULL`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, unit)
	if err != nil {
		return fmt.Errorf("update unit: %w", err)
	}
	return expectAffected(result, "update unit")
}

// UpdateCompleteness stores a recomputed completeness score.
func (r *UnitRepository) UpdateCompleteness(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, score int) error {
	const query = `UPDATE units SET completeness_score = $1, updated_at = $2 WHERE tenant_id = $3 AND id = $4 AND deleted_at IS NULL`
	result, err := r.exec(exec).ExecContext(ctx, query, score, time.Now().UTC(), tenantID, id)
	if err != nil {
		return fmt.Errorf("update unit completeness: %w", err)
	}
	return expectAffected(result, "update unit completeness")
}

// ShiftSequences moves every live sibling positioned after `after` one slot down.
func (r *UnitRepository) ShiftSequences(ctx context.Context, exec sqlx.ExtContext, tenantID, courseID string, after int) error {
	const query = `UPDATE units SET sequence = sequence + 1, updated_at = $1
WHERE tenant_id = $2 AND course_id = $3 AND sequence > $4 AND deleted_at IS NULL`
	if _, err := r.exec(exec).ExecContext(ctx, query, time.Now().UTC(), tenantID, courseID, after); err != nil {
		return fmt.Errorf("shift unit sequences: %w", err)
	}
	return nil
}

// SoftDelete hides a unit together with its resources.
func (r *UnitRepository) SoftDelete(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) error {
	target := r.exec(exec)
	now := time.Now().UTC()
	const resourcesQuery = `UPDATE resources SET deleted_at = $1 WHERE tenant_id = $2 AND unit_id = $3 AND deleted_at IS NULL`
	if _, err := target.ExecContext(ctx, resourcesQuery, now, tenantID, id); err != nil {
		return fmt.Errorf("soft delete unit resources: %w", err)
	}
	const unitQuery = `UPDATE units SET deleted_at = $1, updated_at = $1 WHERE tenant_id = $2 AND id = $3 AND deleted_at IS NULL`
	result, err := target.ExecContext(ctx, unitQuery, now, tenantID, id)
	if err != nil {
		return fmt.Errorf("soft delete unit: %w", err)
	}
	return expectAffected(result, "soft delete unit")
}

// UpdateSequences reassigns positions of units under one course.
func (r *UnitRepository) UpdateSequences(ctx context.Context, exec sqlx.ExtContext, tenantID, courseID string, items []models.SequenceUpdate) error {
	target := r.exec(exec)
	now := time.Now().UTC()
	const query = `UPDATE units SET sequence = $1, updated_at = $2 WHERE tenant_id = $3 AND course_id = $4 AND id = $5 AND deleted_at IS NULL`
	for _, item := range items {
		result, err := target.ExecContext(ctx, query, item.Sequence, now, tenantID, courseID, item.ID)
		if err != nil {
			return fmt.Errorf("reorder unit %s: %w", item.ID, err)
		}
		if err := expectAffected(result, "reorder unit"); err != nil {
			return fmt.Errorf("reorder unit %s: %w", item.ID, err)
		}
	}
	return nil
}
