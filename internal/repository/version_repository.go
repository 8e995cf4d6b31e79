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

const versionColumns = `id, tenant_id, framework_id, version_no, state, changelog, metadata, published_at, created_by, updated_by, created_at, updated_at, deleted_at`

// VersionRepository persists framework versions.
type VersionRepository struct {
	db *sqlx.DB
}

// NewVersionRepository constructs the repository.
func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

func (r *VersionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a version. New versions always start as drafts.
func (r *VersionRepository) Create(ctx context.Context, exec sqlx.ExtContext, version *models.Version) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.State == "" {
		version.State = models.VersionDraft
	}
	if len(version.Metadata) == 0 {
		version.Metadata = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	version.CreatedAt = now
	version.UpdatedAt = now

	const query = `INSERT INTO versions (id, tenant_id, framework_id, version_no, state, changelog, metadata, created_by, updated_by, created_at, updated_at)
VALUES (:id, :tenant_id, :framework_id, :version_no, :state, :changelog, :metadata, :created_by, :updated_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, version); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// FindByID loads a live version within the tenant.
func (r *VersionRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Version, error) {
	return r.find(ctx, exec, tenantID, id, false)
}

// FindByIDForUpdate loads a live version and locks its row for the transaction.
func (r *VersionRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Version, error) {
	return r.find(ctx, exec, tenantID, id, true)
}

func (r *VersionRepository) find(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, lock bool) (*models.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM versions WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`
	if lock {
		query += ` FOR UPDATE`
	}
	var version models.Version
	if err := sqlx.GetContext(ctx, r.exec(exec), &version, query, tenantID, id); err != nil {
		return nil, err
	}
	return &version, nil
}

// ExistsByNumber checks for a live version with the same number on the framework.
func (r *VersionRepository) ExistsByNumber(ctx context.Context, tenantID, frameworkID, versionNo string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM versions WHERE tenant_id = $1 AND framework_id = $2 AND version_no = $3 AND deleted_at IS NULL)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, tenantID, frameworkID, versionNo); err != nil {
		return false, fmt.Errorf("check version number: %w", err)
	}
	return exists, nil
}

// ListByFramework returns the live versions of a framework, newest first.
func (r *VersionRepository) ListByFramework(ctx context.Context, tenantID, frameworkID string) ([]models.Version, error) {
	const query = `SELECT ` + versionColumns + ` FROM versions WHERE tenant_id = $1 AND framework_id = $2 AND deleted_at IS NULL ORDER BY created_at DESC`
	var versions []models.Version
	if err := r.db.SelectContext(ctx, &versions, query, tenantID, frameworkID); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// Update persists the mutable fields of a version.
func (r *VersionRepository) Update(ctx context.Context, exec sqlx.ExtContext, version *models.Version) error {
	version.UpdatedAt = time.Now().UTC()
	const query = `UPDATE versions SET changelog = :changelog, metadata = :metadata, state = :state, published_at = :published_at,
updated_by = :updated_by, updated_at = :updated_at
WHERE id = :id AND tenant_id = :tenant_id AND deleted_at IS NULL`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, version)
	if err != nil {
		return fmt.Errorf("update version: %w", err)
	}
	return expectAffected(result, "update version")
}

// TransitionState moves a version from one state to another only if it is still in from.
// A version that moved concurrently yields sql.ErrNoRows.
func (r *VersionRepository) TransitionState(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, from, to models.VersionState, actorID string) error {
	const query = `UPDATE versions SET state = $1, updated_by = $2, updated_at = $3
WHERE tenant_id = $4 AND id = $5 AND state = $6 AND deleted_at IS NULL`
	result, err := r.exec(exec).ExecContext(ctx, query, to, actorID, time.Now().UTC(), tenantID, id, from)
	if err != nil {
		return fmt.Errorf("transition version state: %w", err)
	}
	return expectAffected(result, "transition version state")
}

// SoftDelete archives a version and hides it from reads.
func (r *VersionRepository) SoftDelete(ctx context.Context, exec sqlx.ExtContext, tenantID, id, actorID string) error {
	const query = `UPDATE versions SET state = $1, deleted_at = $2, updated_at = $2, updated_by = $3
WHERE tenant_id = $4 AND id = $5 AND deleted_at IS NULL`
	result, err := r.exec(exec).ExecContext(ctx, query, models.VersionArchived, time.Now().UTC(), actorID, tenantID, id)
	if err != nil {
		return fmt.Errorf("soft delete version: %w", err)
	}
	return expectAffected(result, "soft delete version")
}

// Stats aggregates version counts per state, deleted versions included, and the last publication time.
func (r *VersionRepository) Stats(ctx context.Context, tenantID, frameworkID string) ([]models.VersionStateCount, *time.Time, error) {
	const countQuery = `SELECT state, COUNT(*) AS count FROM versions WHERE tenant_id = $1 AND framework_id = $2 GROUP BY state`
	var counts []models.VersionStateCount
	if err := r.db.SelectContext(ctx, &counts, countQuery, tenantID, frameworkID); err != nil {
		return nil, nil, fmt.Errorf("count versions by state: %w", err)
	}

	const publishedQuery = `SELECT MAX(published_at) FROM versions WHERE tenant_id = $1 AND framework_id = $2`
	var lastPublished *time.Time
	if err := r.db.GetContext(ctx, &lastPublished, publishedQuery, tenantID, frameworkID); err != nil {
		return nil, nil, fmt.Errorf("last published version: %w", err)
	}
	return counts, lastPublished, nil
}
