package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// SQLSTATE codes the services react to.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Constraint and index names declared by the schema migrations.
const (
	ConstraintFrameworkCode = "frameworks_tenant_code_key"
	ConstraintVersionNo     = "versions_framework_version_no"
	ConstraintOpenApproval  = "approvals_open_per_version"
	ConstraintMappingTarget = "mappings_target_unique"
)

func asPQ(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}

// IsUniqueViolation reports whether err is a unique violation on constraint.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	pqErr, ok := asPQ(err)
	if !ok || string(pqErr.Code) != pgUniqueViolation {
		return false
	}
	if constraint == "" {
		return true
	}
	if pqErr.Constraint == constraint {
		return true
	}
	return strings.Contains(pqErr.Message, fmt.Sprintf("%q", constraint))
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	pqErr, ok := asPQ(err)
	return ok && string(pqErr.Code) == pgForeignKeyViolation
}
