package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
)

type courseStoreStub struct {
	courses map[string]*models.Course
}

func (s *courseStoreStub) NextSequence(ctx context.Context, exec sqlx.ExtContext, tenantID, versionID string) (int, error) {
	next := 0
	for _, c := range s.courses {
		if c.VersionID == versionID && c.DeletedAt == nil && c.Sequence >= next {
			next = c.Sequence + 1
		}
	}
	return next, nil
}

func (s *courseStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	if course.ID == "" {
		course.ID = fmt.Sprintf("course-%d", len(s.courses)+1)
	}
	copied := *course
	s.courses[course.ID] = &copied
	return nil
}

func (s *courseStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Course, error) {
	c, ok := s.courses[id]
	if !ok || c.DeletedAt != nil {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (s *courseStoreStub) ListByVersion(ctx context.Context, tenantID, versionID string) ([]models.Course, error) {
	var out []models.Course
	for _, c := range s.courses {
		if c.VersionID == versionID && c.DeletedAt == nil {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (s *courseStoreStub) Update(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	copied := *course
	s.courses[course.ID] = &copied
	return nil
}

func (s *courseStoreStub) SoftDelete(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) error {
	c, ok := s.courses[id]
	if !ok || c.DeletedAt != nil {
		return sql.ErrNoRows
	}
	now := time.Now()
	c.DeletedAt = &now
	return nil
}

func (s *courseStoreStub) UpdateSequences(ctx context.Context, exec sqlx.ExtContext, tenantID, versionID string, items []models.SequenceUpdate) error {
	for _, item := range items {
		c, ok := s.courses[item.ID]
		if !ok || c.VersionID != versionID {
			return fmt.Errorf("reorder course %s: %w", item.ID, sql.ErrNoRows)
		}
		c.Sequence = item.Sequence
	}
	return nil
}

type unitStoreStub struct {
	units map[string]*models.Unit
	seq   int
}

func (s *unitStoreStub) NextSequence(ctx context.Context, exec sqlx.ExtContext, tenantID, courseID string) (int, error) {
	next := 0
	for _, u := range s.units {
		if u.CourseID == courseID && u.DeletedAt == nil && u.Sequence >= next {
			next = u.Sequence + 1
		}
	}
	return next, nil
}

func (s *unitStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, unit *models.Unit) error {
	s.seq++
	if unit.ID == "" {
		unit.ID = fmt.Sprintf("unit-new-%d", s.seq)
	}
	if len(unit.Objectives) == 0 {
		unit.Objectives = types.JSONText(`[]`)
	}
	if len(unit.Skills) == 0 {
		unit.Skills = types.JSONText(`[]`)
	}
	if len(unit.Activities) == 0 {
		unit.Activities = types.JSONText(`[]`)
	}
	copied := *unit
	s.units[unit.ID] = &copied
	return nil
}

func (s *unitStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Unit, error) {
	u, ok := s.units[id]
	if !ok || u.DeletedAt != nil {
		return nil, sql.ErrNoRows
	}
	copied := *u
	return &copied, nil
}

func (s *unitStoreStub) ListByCourse(ctx context.Context, tenantID, courseID string) ([]models.Unit, error) {
	var out []models.Unit
	for _, u := range s.units {
		if u.CourseID == courseID && u.DeletedAt == nil {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (s *unitStoreStub) Update(ctx context.Context, exec sqlx.ExtContext, unit *models.Unit) error {
	copied := *unit
	s.units[unit.ID] = &copied
	return nil
}

func (s *unitStoreStub) UpdateCompleteness(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, score int) error {
	u, ok := s.units[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.CompletenessScore = score
	return nil
}

func (s *unitStoreStub) ShiftSequences(ctx context.Context, exec sqlx.ExtContext, tenantID, courseID string, after int) error {
	for _, u := range s.units {
		if u.CourseID == courseID && u.DeletedAt == nil && u.Sequence > after {
			u.Sequence++
		}
	}
	return nil
}

func (s *unitStoreStub) SoftDelete(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) error {
	u, ok := s.units[id]
	if !ok || u.DeletedAt != nil {
		return sql.ErrNoRows
	}
	now := time.Now()
	u.DeletedAt = &now
	return nil
}

func (s *unitStoreStub) UpdateSequences(ctx context.Context, exec sqlx.ExtContext, tenantID, courseID string, items []models.SequenceUpdate) error {
	for _, item := range items {
		u, ok := s.units[item.ID]
		if !ok || u.CourseID != courseID {
			return fmt.Errorf("reorder unit %s: %w", item.ID, sql.ErrNoRows)
		}
		u.Sequence = item.Sequence
	}
	return nil
}

type resourceStoreStub struct {
	resources map[string]*models.Resource
}

func (s *resourceStoreStub) NextSequence(ctx context.Context, exec sqlx.ExtContext, tenantID, unitID string) (int, error) {
	n, _ := s.CountActive(ctx, exec, tenantID, unitID)
	return n, nil
}

func (s *resourceStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, resource *models.Resource) error {
	if resource.ID == "" {
		resource.ID = fmt.Sprintf("res-new-%d", len(s.resources)+1)
	}
	copied := *resource
	s.resources[resource.ID] = &copied
	return nil
}

func (s *resourceStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Resource, error) {
	r, ok := s.resources[id]
	if !ok || r.DeletedAt != nil {
		return nil, sql.ErrNoRows
	}
	copied := *r
	return &copied, nil
}

func (s *resourceStoreStub) ListByUnit(ctx context.Context, tenantID, unitID string) ([]models.Resource, error) {
	var out []models.Resource
	for _, r := range s.resources {
		if r.UnitID == unitID && r.DeletedAt == nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *resourceStoreStub) CountActive(ctx context.Context, exec sqlx.ExtContext, tenantID, unitID string) (int, error) {
	n := 0
	for _, r := range s.resources {
		if r.UnitID == unitID && r.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *resourceStoreStub) Update(ctx context.Context, exec sqlx.ExtContext, resource *models.Resource) error {
	copied := *resource
	s.resources[resource.ID] = &copied
	return nil
}

func (s *resourceStoreStub) SoftDelete(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) error {
	r, ok := s.resources[id]
	if !ok || r.DeletedAt != nil {
		return sql.ErrNoRows
	}
	now := time.Now()
	r.DeletedAt = &now
	return nil
}

func (s *resourceStoreStub) MoveToUnit(ctx context.Context, exec sqlx.ExtContext, tenantID, fromUnitID, toUnitID string, ids []string) (int64, error) {
	var moved int64
	for _, id := range ids {
		r, ok := s.resources[id]
		if ok && r.UnitID == fromUnitID && r.DeletedAt == nil {
			r.UnitID = toUnitID
			moved++
		}
	}
	return moved, nil
}

type structureFixture struct {
	svc       *StructureService
	mock      sqlmock.Sqlmock
	owners    *ownerResolverStub
	courses   *courseStoreStub
	units     *unitStoreStub
	resources *resourceStoreStub
	audit     *auditSinkStub
}

func newStructureFixture(t *testing.T, state models.VersionState) *structureFixture {
	t.Helper()
	tx, mock := newTxProviderMock(t)
	owned := func(node string) models.NodeOwner {
		return models.NodeOwner{NodeID: node, VersionID: "ver-1", VersionState: state}
	}
	f := &structureFixture{
		mock: mock,
		owners: &ownerResolverStub{owners: map[string]models.NodeOwner{
			"ver-1":    owned("ver-1"),
			"course-1": owned("course-1"),
			"unit-1":   owned("unit-1"),
			"unit-2":   owned("unit-2"),
			"res-1":    owned("res-1"),
			"res-2":    owned("res-2"),
		}},
		courses: &courseStoreStub{courses: map[string]*models.Course{
			"course-1": {ID: "course-1", TenantID: "tenant-1", VersionID: "ver-1", Title: "Algebra", Sequence: 0},
		}},
		units: &unitStoreStub{units: map[string]*models.Unit{
			"unit-1": {ID: "unit-1", TenantID: "tenant-1", CourseID: "course-1", Title: "Linear equations", Sequence: 0,
				Objectives: types.JSONText(`["solve"]`), Skills: types.JSONText(`[]`), Activities: types.JSONText(`[]`), CompletenessScore: 40},
			"unit-2": {ID: "unit-2", TenantID: "tenant-1", CourseID: "course-1", Title: "Quadratics", Sequence: 1,
				Objectives: types.JSONText(`[]`), Skills: types.JSONText(`[]`), Activities: types.JSONText(`[]`)},
		}},
		resources: &resourceStoreStub{resources: map[string]*models.Resource{
			"res-1": {ID: "res-1", TenantID: "tenant-1", UnitID: "unit-1", Kind: "video", Title: "Intro", Sequence: 0},
			"res-2": {ID: "res-2", TenantID: "tenant-1", UnitID: "unit-1", Kind: "worksheet", Title: "Drill", Sequence: 1},
		}},
		audit: &auditSinkStub{},
	}
	f.svc = NewStructureService(f.courses, f.units, f.resources, NewStructureGuard(f.owners), tx, f.audit, nil, nil)
	return f
}

func TestStructureServiceFrozenVersionRejectsEveryWrite(t *testing.T) {
	for _, state := range []models.VersionState{models.VersionPendingReview, models.VersionApproved, models.VersionPublished, models.VersionArchived} {
		t.Run(string(state), func(t *testing.T) {
			f := newStructureFixture(t, state)
			ctx := context.Background()
			title := "renamed"

			writes := []func() error{
				func() error { _, err := f.svc.CreateCourse(ctx, designer, "ver-1", dto.CreateCourseRequest{Title: "Geometry"}); return err },
				func() error { _, err := f.svc.CreateUnit(ctx, designer, "course-1", dto.CreateUnitRequest{Title: "Angles"}); return err },
				func() error { _, err := f.svc.UpdateUnit(ctx, designer, "unit-1", dto.UpdateUnitRequest{Title: &title}); return err },
				func() error { return f.svc.DeleteResource(ctx, designer, "res-1") },
				func() error {
					_, err := f.svc.SplitUnit(ctx, designer, "unit-1", dto.SplitUnitRequest{Title: "Half", ResourceIDs: []string{"res-1"}})
					return err
				},
			}
			for _, write := range writes {
				f.mock.ExpectBegin()
				f.mock.ExpectRollback()
				assert.ErrorIs(t, write(), appErrors.ErrVersionFrozen)
			}
			assert.Len(t, f.courses.courses, 1)
			assert.Len(t, f.units.units, 2)
			assert.Nil(t, f.resources.resources["res-1"].DeletedAt)
			assert.Empty(t, f.audit.actions())
			require.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestStructureServiceCreateCourseAppends(t *testing.T) {
	f := newStructureFixture(t, models.VersionDraft)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	course, err := f.svc.CreateCourse(context.Background(), designer, "ver-1", dto.CreateCourseRequest{Title: "Geometry"})
	require.NoError(t, err)
	assert.Equal(t, 1, course.Sequence)
	assert.Equal(t, []string{"course:CREATE"}, f.audit.actions())
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestStructureServiceCreateUnitAtPositionShiftsSiblings(t *testing.T) {
	f := newStructureFixture(t, models.VersionDraft)
	position := 1
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	unit, err := f.svc.CreateUnit(context.Background(), designer, "course-1", dto.CreateUnitRequest{
		Title:      "Inequalities",
		Sequence:   &position,
		Objectives: []string{"compare"},
		Rubric:     &dto.Rubric{Criteria: []dto.RubricCriterion{{Name: "accuracy", Weight: 100}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, unit.Sequence)
	assert.Equal(t, 45, unit.CompletenessScore)
	assert.Equal(t, 0, f.units.units["unit-1"].Sequence)
	assert.Equal(t, 2, f.units.units["unit-2"].Sequence)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestStructureServiceUpdateUnitScoresFinalValues(t *testing.T) {
	f := newStructureFixture(t, models.VersionDraft)
	skills := []string{"factorise"}
	activities := []dto.Activity{{Title: "Group work", DurationMinutes: 30}}
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	unit, err := f.svc.UpdateUnit(context.Background(), designer, "unit-1", dto.UpdateUnitRequest{
		Skills:     &skills,
		Activities: &activities,
		Rubric:     &dto.Rubric{Criteria: []dto.RubricCriterion{{Name: "clarity", Weight: 50}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 100, unit.CompletenessScore)
	assert.JSONEq(t, `["solve"]`, unit.Objectives.String())

	emptied := []string{}
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	unit, err = f.svc.UpdateUnit(context.Background(), designer, "unit-1", dto.UpdateUnitRequest{Objectives: &emptied, ClearRubric: true})
	require.NoError(t, err)
	assert.False(t, unit.Rubric.Valid)
	assert.Equal(t, 55, unit.CompletenessScore)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestStructureServiceUpdateUnitRejectsConflictingRubric(t *testing.T) {
	f := newStructureFixture(t, models.VersionDraft)
	_, err := f.svc.UpdateUnit(context.Background(), designer, "unit-1", dto.UpdateUnitRequest{
		Rubric:      &dto.Rubric{Criteria: []dto.RubricCriterion{{Name: "clarity"}}},
		ClearRubric: true,
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.UpdateUnit(context.Background(), designer, "unit-1", dto.UpdateUnitRequest{})
	assert.ErrorIs(t, err, appErrors.ErrNoUpdates)
}

func TestStructureServiceResourcesRescoreUnit(t *testing.T) {
	f := newStructureFixture(t, models.VersionDraft)
	ctx := context.Background()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err := f.svc.CreateResource(ctx, designer, "unit-2", dto.CreateResourceRequest{Kind: "link", Title: "Reference"})
	require.NoError(t, err)
	assert.Equal(t, 20, f.units.units["unit-2"].CompletenessScore)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	require.NoError(t, f.svc.DeleteResource(ctx, designer, "res-1"))
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	require.NoError(t, f.svc.DeleteResource(ctx, designer, "res-2"))
	assert.Equal(t, 20, f.units.units["unit-1"].CompletenessScore)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestStructureServiceReorder(t *testing.T) {
	t.Run("units", func(t *testing.T) {
		f := newStructureFixture(t, models.VersionDraft)
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()

		units, err := f.svc.ReorderUnits(context.Background(), designer, "course-1", dto.ReorderRequest{Items: []dto.ReorderItem{
			{ID: "unit-1", Sequence: 1},
			{ID: "unit-2", Sequence: 0},
		}})
		require.NoError(t, err)
		require.Len(t, units, 2)
		assert.Equal(t, "unit-2", units[0].ID)
		assert.Equal(t, []string{"course:REORDER"}, f.audit.actions())
	})

	t.Run("duplicate ids", func(t *testing.T) {
		f := newStructureFixture(t, models.VersionDraft)
		_, err := f.svc.ReorderUnits(context.Background(), designer, "course-1", dto.ReorderRequest{Items: []dto.ReorderItem{
			{ID: "unit-1", Sequence: 1},
			{ID: "unit-1", Sequence: 0},
		}})
		assert.ErrorIs(t, err, appErrors.ErrValidation)
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("foreign course", func(t *testing.T) {
		f := newStructureFixture(t, models.VersionDraft)
		f.mock.ExpectBegin()
		f.mock.ExpectRollback()

		_, err := f.svc.ReorderCourses(context.Background(), designer, "ver-1", dto.ReorderRequest{Items: []dto.ReorderItem{
			{ID: "course-elsewhere", Sequence: 0},
		}})
		assert.ErrorIs(t, err, appErrors.ErrValidation)
		require.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestStructureServiceSplitUnit(t *testing.T) {
	f := newStructureFixture(t, models.VersionDraft)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.svc.SplitUnit(context.Background(), designer, "unit-1", dto.SplitUnitRequest{
		Title:       "Linear equations II",
		ResourceIDs: []string{"res-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created.Sequence)
	assert.Equal(t, 2, f.units.units["unit-2"].Sequence)
	assert.Equal(t, result.Created.ID, f.resources.resources["res-2"].UnitID)
	assert.Equal(t, "unit-1", f.resources.resources["res-1"].UnitID)
	assert.Equal(t, 40, result.Source.CompletenessScore)
	assert.Equal(t, 20, result.Created.CompletenessScore)
	assert.Equal(t, []string{"unit:SPLIT"}, f.audit.actions())
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestStructureServiceSplitRejectsForeignResources(t *testing.T) {
	f := newStructureFixture(t, models.VersionDraft)
	f.resources.resources["res-9"] = &models.Resource{ID: "res-9", TenantID: "tenant-1", UnitID: "unit-2", Kind: "video", Title: "Other"}
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.SplitUnit(context.Background(), designer, "unit-1", dto.SplitUnitRequest{
		Title:       "Half",
		ResourceIDs: []string{"res-1", "res-9"},
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestStructureServiceMissingNode(t *testing.T) {
	f := newStructureFixture(t, models.VersionDraft)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.svc.DeleteCourse(context.Background(), designer, "course-404")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
