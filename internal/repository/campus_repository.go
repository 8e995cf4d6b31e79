package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CampusRepository answers campus membership questions for mappings.
type CampusRepository struct {
	db *sqlx.DB
}

// NewCampusRepository constructs the repository.
func NewCampusRepository(db *sqlx.DB) *CampusRepository {
	return &CampusRepository{db: db}
}

// Exists reports whether the campus belongs to the tenant.
func (r *CampusRepository) Exists(ctx context.Context, tenantID, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM campuses WHERE tenant_id = $1 AND id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, tenantID, id); err != nil {
		return false, fmt.Errorf("check campus: %w", err)
	}
	return exists, nil
}
