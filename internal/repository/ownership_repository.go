package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/curriculum-api/internal/models"
)

// Owner lookups share-lock the version row until the surrounding transaction ends.
var ownerQueries = map[models.NodeKind]string{
	models.NodeVersion: `SELECT v.id AS node_id, v.id AS version_id, v.state AS version_state
FROM versions v
WHERE v.tenant_id = $1 AND v.id = $2
FOR SHARE`,
	models.NodeCourse: `SELECT c.id AS node_id, v.id AS version_id, v.state AS version_state
FROM courses c
JOIN versions v ON v.id = c.version_id
WHERE c.tenant_id = $1 AND c.id = $2 AND c.deleted_at IS NULL
FOR SHARE OF v`,
	models.NodeUnit: `SELECT u.id AS node_id, v.id AS version_id, v.state AS version_state
FROM units u
JOIN courses c ON c.id = u.course_id
JOIN versions v ON v.id = c.version_id
WHERE u.tenant_id = $1 AND u.id = $2 AND u.deleted_at IS NULL
FOR SHARE OF v`,
	models.NodeResource: `SELECT r.id AS node_id, v.id AS version_id, v.state AS version_state
FROM resources r
JOIN units u ON u.id = r.unit_id
JOIN courses c ON c.id = u.course_id
JOIN versions v ON v.id = c.version_id
WHERE r.tenant_id = $1 AND r.id = $2 AND r.deleted_at IS NULL
FOR SHARE OF v`,
}

// OwnershipRepository resolves the version owning a structural node.
type OwnershipRepository struct {
	db *sqlx.DB
}

// NewOwnershipRepository constructs the repository.
func NewOwnershipRepository(db *sqlx.DB) *OwnershipRepository {
	return &OwnershipRepository{db: db}
}

// ResolveOwner walks the node up to its version in a single query. A missing
// node yields sql.ErrNoRows.
func (r *OwnershipRepository) ResolveOwner(ctx context.Context, exec sqlx.ExtContext, tenantID string, ref models.NodeRef) (*models.NodeOwner, error) {
	query, ok := ownerQueries[ref.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown node kind %q", ref.Kind)
	}
	target := exec
	if target == nil {
		target = r.db
	}
	var owner models.NodeOwner
	if err := sqlx.GetContext(ctx, target, &owner, query, tenantID, ref.ID); err != nil {
		return nil, err
	}
	return &owner, nil
}
