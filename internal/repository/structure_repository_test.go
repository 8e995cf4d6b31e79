package repository

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/curriculum-api/internal/models"
)

func TestResolveOwnerForUnit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOwnershipRepository(db)

	mock.ExpectQuery(`FROM units u\s+JOIN courses c ON c.id = u.course_id\s+JOIN versions v ON v.id = c.version_id.*FOR SHARE OF v`).
		WithArgs("t1", "unit-1").
		WillReturnRows(sqlmock.NewRows([]string{"node_id", "version_id", "version_state"}).AddRow("unit-1", "v1", "approved"))

	owner, err := repo.ResolveOwner(context.Background(), nil, "t1", models.NodeRef{Kind: models.NodeUnit, ID: "unit-1"})
	require.NoError(t, err)
	assert.Equal(t, "v1", owner.VersionID)
	assert.True(t, owner.VersionState.Frozen())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveOwnerMissingNode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOwnershipRepository(db)

	mock.ExpectQuery(`FROM resources r`).
		WithArgs("t1", "res-9").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ResolveOwner(context.Background(), nil, "t1", models.NodeRef{Kind: models.NodeResource, ID: "res-9"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveOwnerUnknownKind(t *testing.T) {
	db, _, cleanup := newMock(t)
	defer cleanup()
	repo := NewOwnershipRepository(db)

	_, err := repo.ResolveOwner(context.Background(), nil, "t1", models.NodeRef{Kind: "lesson", ID: "x"})
	assert.Error(t, err)
}

func TestCourseSoftDeleteCascades(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(`UPDATE resources SET deleted_at`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`UPDATE units SET deleted_at`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE courses SET deleted_at`).
		WithArgs(sqlmock.AnyArg(), "t1", "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftDelete(context.Background(), nil, "t1", "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseUpdateSequencesRejectsForeignID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(`UPDATE courses SET sequence`).
		WithArgs(0, sqlmock.AnyArg(), "t1", "v1", "c2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE courses SET sequence`).
		WithArgs(1, sqlmock.AnyArg(), "t1", "v1", "other").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateSequences(context.Background(), nil, "t1", "v1", []models.SequenceUpdate{{ID: "c2", Sequence: 0}, {ID: "other", Sequence: 1}})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitCreateDefaultsJSON(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUnitRepository(db)

	mock.ExpectExec("INSERT INTO units").WillReturnResult(sqlmock.NewResult(1, 1))

	unit := &models.Unit{TenantID: "t1", CourseID: "c1", Title: "Fractions"}
	require.NoError(t, repo.Create(context.Background(), nil, unit))
	assert.Equal(t, `[]`, string(unit.Objectives))
	assert.Equal(t, `[]`, string(unit.Activities))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitShiftSequences(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUnitRepository(db)

	mock.ExpectExec(`UPDATE units SET sequence = sequence \+ 1`).
		WithArgs(sqlmock.AnyArg(), "t1", "c1", 2).
		WillReturnResult(sqlmock.NewResult(0, 4))

	require.NoError(t, repo.ShiftSequences(context.Background(), nil, "t1", "c1", 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitNextSequence(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUnitRepository(db)

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(sequence\), -1\) \+ 1 FROM units`).
		WithArgs("t1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))

	next, err := repo.NextSequence(context.Background(), nil, "t1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceMoveToUnit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectExec(`UPDATE resources SET unit_id = \$1.*id IN \(\$5,\$6\)`).
		WithArgs("u2", sqlmock.AnyArg(), "t1", "u1", "r1", "r2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	moved, err := repo.MoveToUnit(context.Background(), nil, "t1", "u1", "u2", []string{"r1", "r2"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceMoveToUnitNoIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	moved, err := repo.MoveToUnit(context.Background(), nil, "t1", "u1", "u2", nil)
	require.NoError(t, err)
	assert.Zero(t, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditCreateDefaultsDetails(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	log := &models.AuditLog{TenantID: "t1", ActorID: "u1", EntityType: models.EntityVersion, EntityID: "v1", Action: models.AuditActionTransition}
	require.NoError(t, repo.Create(context.Background(), log))
	assert.NotEmpty(t, log.ID)
	assert.Equal(t, `{}`, string(log.Details))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampusExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCampusRepository(db)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM campuses`).
		WithArgs("t1", "campus-x").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.Exists(context.Background(), "t1", "campus-x")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
