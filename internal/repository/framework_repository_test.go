package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/curriculum-api/internal/models"
)

func TestFrameworkCreateDefaultsToDraft(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFrameworkRepository(db)

	mock.ExpectExec("INSERT INTO frameworks").WillReturnResult(sqlmock.NewResult(1, 1))

	framework := &models.Framework{TenantID: "t1", Code: "K13", Name: "Kurikulum", CreatedBy: "u1"}
	require.NoError(t, repo.Create(context.Background(), nil, framework))
	assert.NotEmpty(t, framework.ID)
	assert.Equal(t, models.VersionDraft, framework.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFrameworkFindByIDForUpdateLocks(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFrameworkRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "tenant_id", "code", "name", "description", "status", "latest_version_id", "created_by", "created_at", "updated_at"}).
		AddRow("f1", "t1", "K13", "Kurikulum", nil, "draft", "v1", "u1", now, now)
	mock.ExpectQuery(`FROM frameworks WHERE tenant_id = \$1 AND id = \$2 FOR UPDATE`).
		WithArgs("t1", "f1").
		WillReturnRows(rows)

	framework, err := repo.FindByIDForUpdate(context.Background(), nil, "t1", "f1")
	require.NoError(t, err)
	assert.True(t, framework.IsLatest("v1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFrameworkListPaginates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFrameworkRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "tenant_id", "code", "name", "description", "status", "latest_version_id", "created_by", "created_at", "updated_at"}).
		AddRow("f1", "t1", "K13", "Kurikulum", nil, "published", "v1", "u1", now, now)
	mock.ExpectQuery(`SELECT .* FROM frameworks WHERE tenant_id = \$1 AND \(LOWER\(code\) LIKE \$2 OR LOWER\(name\) LIKE \$2\) ORDER BY name ASC LIMIT 10 OFFSET 10`).
		WithArgs("t1", "%k13%").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM frameworks`).
		WithArgs("t1", "%k13%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	frameworks, total, err := repo.List(context.Background(), "t1", models.FrameworkFilter{Search: "K13", Page: 2, PageSize: 10, SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Len(t, frameworks, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFrameworkSetLatestVersionMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFrameworkRepository(db)

	mock.ExpectExec("UPDATE frameworks SET latest_version_id").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetLatestVersion(context.Background(), nil, "t1", "f1", "v2", models.VersionDraft)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFrameworkMirrorStatusIgnoresNonLatest(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFrameworkRepository(db)

	mock.ExpectExec("UPDATE frameworks SET status").
		WithArgs("approved", sqlmock.AnyArg(), "t1", "v-old").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MirrorStatus(context.Background(), nil, "t1", "v-old", models.VersionApproved))
	assert.NoError(t, mock.ExpectationsWereMet())
}
