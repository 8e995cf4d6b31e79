package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/curriculum-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
)

type ownerResolver interface {
	ResolveOwner(ctx context.Context, exec sqlx.ExtContext, tenantID string, ref models.NodeRef) (*models.NodeOwner, error)
}

// StructureGuard rejects structural writes under a version that left draft.
type StructureGuard struct {
	owners ownerResolver
}

// NewStructureGuard constructs the guard.
func NewStructureGuard(owners ownerResolver) *StructureGuard {
	return &StructureGuard{owners: owners}
}

// Check resolves the version owning ref and fails with VERSION_FROZEN unless it is a draft.
// Pass the mutating transaction as exec so the version row stays share-locked until commit.
func (g *StructureGuard) Check(ctx context.Context, exec sqlx.ExtContext, tenantID string, ref models.NodeRef) (*models.NodeOwner, error) {
	owner, err := g.owners.ResolveOwner(ctx, exec, tenantID, ref)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", ref.Kind))
		}
		return nil, appErrors.Internal(err, "failed to resolve owning version")
	}
	if owner.VersionState.Frozen() {
		return nil, appErrors.Clone(appErrors.ErrVersionFrozen,
			fmt.Sprintf("version %s is %s; structural content is read-only", owner.VersionID, owner.VersionState))
	}
	return owner, nil
}
