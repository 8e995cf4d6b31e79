package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/curriculum-api/internal/models"
)

func TestMappingCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMappingRepository(db)

	mock.ExpectExec("INSERT INTO mappings").WillReturnResult(sqlmock.NewResult(1, 1))

	mapping := &models.Mapping{TenantID: "t1", FrameworkID: "f1", VersionID: "v1", TargetType: models.TargetCourseTemplate, TargetID: "c1", CreatedBy: "u1"}
	require.NoError(t, repo.Create(context.Background(), nil, mapping))
	assert.NotEmpty(t, mapping.ID)
	assert.Equal(t, models.MappingPlanned, mapping.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMappingExistsTreatsNilCampusAsValue(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMappingRepository(db)

	mock.ExpectQuery(`COALESCE\(campus_id, ''\) = COALESCE\(\$6::text, ''\)`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), models.MappingKey{
		TenantID:    "t1",
		FrameworkID: "f1",
		VersionID:   "v1",
		TargetType:  models.TargetClassInstance,
		TargetID:    "class-7",
	})
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMappingDeleteUnlessApplied(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMappingRepository(db)

	mock.ExpectExec(`DELETE FROM mappings WHERE tenant_id = \$1 AND id = \$2 AND status <> \$3`).
		WithArgs("t1", "m1", "applied").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.DeleteUnlessApplied(context.Background(), "t1", "m1")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
