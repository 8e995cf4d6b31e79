package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/curriculum-api/internal/models"
)

const userColumns = `id, tenant_id, full_name, email, role, active, created_at, updated_at`

// UserRepository reads tenant members. Identity is issued upstream so the API never writes users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user of the tenant by identifier.
func (r *UserRepository) FindByID(ctx context.Context, tenantID, id string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND id = $2 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, tenantID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// ListReviewers returns active users of the tenant holding a reviewer role.
func (r *UserRepository) ListReviewers(ctx context.Context, tenantID string) ([]models.User, error) {
	args := []interface{}{tenantID}
	for _, role := range models.ReviewerRoles {
		args = append(args, string(role))
	}
	query := fmt.Sprintf(`SELECT %s FROM users WHERE tenant_id = $1 AND active = TRUE AND role IN (%s) ORDER BY full_name ASC`,
		userColumns, placeholders(2, len(models.ReviewerRoles)))

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list reviewers: %w", err)
	}
	return users, nil
}

// Search returns users whose name or email contains term.
func (r *UserRepository) Search(ctx context.Context, tenantID, term string, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND (LOWER(email) LIKE $2 OR LOWER(full_name) LIKE $2) ORDER BY full_name ASC LIMIT $3`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, tenantID, "%"+strings.ToLower(term)+"%", limit); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}
