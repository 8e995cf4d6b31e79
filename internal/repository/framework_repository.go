package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/curriculum-api/internal/models"
)

const frameworkColumns = `id, tenant_id, code, name, description, status, latest_version_id, created_by, created_at, updated_at`

// FrameworkRepository persists curriculum frameworks.
type FrameworkRepository struct {
	db *sqlx.DB
}

// NewFrameworkRepository constructs the repository.
func NewFrameworkRepository(db *sqlx.DB) *FrameworkRepository {
	return &FrameworkRepository{db: db}
}

func (r *FrameworkRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a framework.
func (r *FrameworkRepository) Create(ctx context.Context, exec sqlx.ExtContext, framework *models.Framework) error {
	if framework.ID == "" {
		framework.ID = uuid.NewString()
	}
	if framework.Status == "" {
		framework.Status = models.VersionDraft
	}
	now := time.Now().UTC()
	framework.CreatedAt = now
	framework.UpdatedAt = now

	const query = `INSERT INTO frameworks (id, tenant_id, code, name, description, status, latest_version_id, created_by, created_at, updated_at)
VALUES (:id, :tenant_id, :code, :name, :description, :status, :latest_version_id, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, framework); err != nil {
		return fmt.Errorf("insert framework: %w", err)
	}
	return nil
}

// FindByID loads a framework within the tenant.
func (r *FrameworkRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Framework, error) {
	return r.find(ctx, exec, tenantID, id, false)
}

// FindByIDForUpdate loads a framework and locks its row for the transaction.
func (r *FrameworkRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Framework, error) {
	return r.find(ctx, exec, tenantID, id, true)
}

func (r *FrameworkRepository) find(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, lock bool) (*models.Framework, error) {
	query := `SELECT ` + frameworkColumns + ` FROM frameworks WHERE tenant_id = $1 AND id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	var framework models.Framework
	if err := sqlx.GetContext(ctx, r.exec(exec), &framework, query, tenantID, id); err != nil {
		return nil, err
	}
	return &framework, nil
}

// ExistsByCode checks whether the tenant already uses code.
func (r *FrameworkRepository) ExistsByCode(ctx context.Context, tenantID, code string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM frameworks WHERE tenant_id = $1 AND code = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, tenantID, code); err != nil {
		return false, fmt.Errorf("check framework code: %w", err)
	}
	return exists, nil
}

// List returns frameworks of a tenant with pagination.
func (r *FrameworkRepository) List(ctx context.Context, tenantID string, filter models.FrameworkFilter) ([]models.Framework, int, error) {
	baseQuery := `FROM frameworks WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	var conditions []string

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(code) LIKE $%d OR LOWER(name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"code":       true,
		"name":       true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", frameworkColumns, baseQuery, sortBy, sortOrder, pageSize, (page-1)*pageSize)
	var frameworks []models.Framework
	if err := r.db.SelectContext(ctx, &frameworks, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list frameworks: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count frameworks: %w", err)
	}
	return frameworks, total, nil
}

// SetLatestVersion points the framework at versionID and mirrors its state.
func (r *FrameworkRepository) SetLatestVersion(ctx context.Context, exec sqlx.ExtContext, tenantID, id, versionID string, status models.VersionState) error {
	const query = `UPDATE frameworks SET latest_version_id = $1, status = $2, updated_at = $3 WHERE tenant_id = $4 AND id = $5`
	result, err := r.exec(exec).ExecContext(ctx, query, versionID, status, time.Now().UTC(), tenantID, id)
	if err != nil {
		return fmt.Errorf("set latest version: %w", err)
	}
	return expectAffected(result, "set latest version")
}

// MirrorStatus copies a version state onto the framework when that version is the latest.
func (r *FrameworkRepository) MirrorStatus(ctx context.Context, exec sqlx.ExtContext, tenantID, versionID string, status models.VersionState) error {
	const query = `UPDATE frameworks SET status = $1, updated_at = $2 WHERE tenant_id = $3 AND latest_version_id = $4`
	if _, err := r.exec(exec).ExecContext(ctx, query, status, time.Now().UTC(), tenantID, versionID); err != nil {
		return fmt.Errorf("mirror framework status: %w", err)
	}
	return nil
}

func expectAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func placeholders(start, n int) string {
	values := make([]string, n)
	for i := 0; i < n; i++ {
		values[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(values, ",")
}
