package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/curriculum-api/internal/models"
)

const courseColumns = `id, tenant_id, version_id, code, title, description, sequence, created_at, updated_at, deleted_at`

// CourseRepository persists courses of a version.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// NextSequence returns the position after the last live course of the version.
func (r *CourseRepository) NextSequence(ctx context.Context, exec sqlx.ExtContext, tenantID, versionID string) (int, error) {
	const query = `SELECT COALESCE(MAX(sequence), -1) + 1 FROM courses WHERE tenant_id = $1 AND version_id = $2 AND deleted_at IS NULL`
	var next int
	if err := sqlx.GetContext(ctx, r.exec(exec), &next, query, tenantID, versionID); err != nil {
		return 0, fmt.Errorf("next course sequence: %w", err)
	}
	return next, nil
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, tenant_id, version_id, code, title, description, sequence, created_at, updated_at)
VALUES (:id, :tenant_id, :version_id, :code, :title, :description, :sequence, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, course); err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

// FindByID loads a live course.
func (r *CourseRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`
	var course models.Course
	if err := sqlx.GetContext(ctx, r.exec(exec), &course, query, tenantID, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListByVersion returns the live courses of a version in sequence order.
func (r *CourseRepository) ListByVersion(ctx context.Context, tenantID, versionID string) ([]models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE tenant_id = $1 AND version_id = $2 AND deleted_at IS NULL ORDER BY sequence ASC, created_at ASC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, tenantID, versionID); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// Update persists course fields.
func (r *CourseRepository) Update(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET code = :code, title = :title, description = :description, updated_at = :updated_at
WHERE id = :id AND tenant_id = :tenant_id AND deleted_at IS NULL`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return expectAffected(result, "update course")
}

// SoftDelete hides a course together with its units and resources.
func (r *CourseRepository) SoftDelete(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) error {
	target := r.exec(exec)
	now := time.Now().UTC()

	const resourcesQuery = `UPDATE resources SET deleted_at = $1 WHERE tenant_id = $2 AND deleted_at IS NULL
AND unit_id IN (SELECT id FROM units WHERE course_id = $3)`
	if _, err := target.ExecContext(ctx, resourcesQuery, now, tenantID, id); err != nil {
		return fmt.Errorf("soft delete course resources: %w", err)
	}
	const unitsQuery = `UPDATE units SET deleted_at = $1 WHERE tenant_id = $2 AND course_id = $3 AND deleted_at IS NULL`
	if _, err := target.ExecContext(ctx, unitsQuery, now, tenantID, id); err != nil {
		return fmt.Errorf("soft delete course units: %w", err)
	}
	const courseQuery = `UPDATE courses SET deleted_at = $1, updated_at = $1 WHERE tenant_id = $2 AND id = $3 AND deleted_at IS NULL`
	result, err := target.ExecContext(ctx, courseQuery, now, tenantID, id)
	if err != nil {
		return fmt.Errorf("soft delete course: %w", err)
	}
	return expectAffected(result, "soft delete course")
}

// UpdateSequences reassigns positions of courses under one version. Every id
// must be a live course of that version.
func (r *CourseRepository) UpdateSequences(ctx context.Context, exec sqlx.ExtContext, tenantID, versionID string, items []models.SequenceUpdate) error {
	target := r.exec(exec)
	now := time.Now().UTC()
	const query = `UPDATE courses SET sequence = $1, updated_at = $2 WHERE tenant_id = $3 AND version_id = $4 AND id = $5 AND deleted_at IS NULL`
	for _, item := range items {
		result, err := target.ExecContext(ctx, query, item.Sequence, now, tenantID, versionID, item.ID)
		if err != nil {
			return fmt.Errorf("reorder course %s: %w", item.ID, err)
		}
		if err := expectAffected(result, "reorder course"); err != nil {
			return fmt.Errorf("reorder course %s: %w", item.ID, err)
		}
	}
	return nil
}
