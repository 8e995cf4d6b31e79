package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/curriculum-api/internal/models"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

var (
	designer = models.Identity{ActorID: "designer-1", TenantID: "tenant-1", Role: models.RoleCurriculumDesigner}
	reviewer = models.Identity{ActorID: "reviewer-1", TenantID: "tenant-1", Role: models.RoleQA}
	owner    = models.Identity{ActorID: "owner-1", TenantID: "tenant-1", Role: models.RoleProgramOwner}
)

type auditSinkStub struct {
	mu     sync.Mutex
	events []models.AuditEvent
}

func (a *auditSinkStub) Emit(ctx context.Context, event models.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *auditSinkStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.EntityType+":"+e.Action)
	}
	return out
}

type statsCacheStub struct {
	entries map[string]models.VersionStats
	evicted []string
	gets    int
}

func newStatsCacheStub() *statsCacheStub {
	return &statsCacheStub{entries: map[string]models.VersionStats{}}
}

func (c *statsCacheStub) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.gets++
	stats, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	*dest.(*models.VersionStats) = stats
	return true, nil
}

func (c *statsCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.entries[key] = *value.(*models.VersionStats)
	return nil
}

func (c *statsCacheStub) Evict(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.entries, key)
		c.evicted = append(c.evicted, key)
	}
	return nil
}

type frameworkStoreStub struct {
	frameworks map[string]*models.Framework
	createErr  error
	mirrored   map[string]models.VersionState
}

func newFrameworkStoreStub(frameworks ...*models.Framework) *frameworkStoreStub {
	s := &frameworkStoreStub{frameworks: map[string]*models.Framework{}, mirrored: map[string]models.VersionState{}}
	for _, f := range frameworks {
		s.frameworks[f.ID] = f
	}
	return s
}

func (s *frameworkStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, framework *models.Framework) error {
	if s.createErr != nil {
		return s.createErr
	}
	if framework.ID == "" {
		framework.ID = fmt.Sprintf("fw-%d", len(s.frameworks)+1)
	}
	copied := *framework
	s.frameworks[framework.ID] = &copied
	return nil
}

func (s *frameworkStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Framework, error) {
	f, ok := s.frameworks[id]
	if !ok || f.TenantID != tenantID {
		return nil, sql.ErrNoRows
	}
	copied := *f
	return &copied, nil
}

func (s *frameworkStoreStub) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Framework, error) {
	return s.FindByID(ctx, exec, tenantID, id)
}

func (s *frameworkStoreStub) ExistsByCode(ctx context.Context, tenantID, code string) (bool, error) {
	for _, f := range s.frameworks {
		if f.TenantID == tenantID && f.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *frameworkStoreStub) List(ctx context.Context, tenantID string, filter models.FrameworkFilter) ([]models.Framework, int, error) {
	var out []models.Framework
	for _, f := range s.frameworks {
		if f.TenantID == tenantID {
			out = append(out, *f)
		}
	}
	return out, len(out), nil
}

func (s *frameworkStoreStub) SetLatestVersion(ctx context.Context, exec sqlx.ExtContext, tenantID, id, versionID string, status models.VersionState) error {
	f, ok := s.frameworks[id]
	if !ok {
		return sql.ErrNoRows
	}
	f.LatestVersionID = &versionID
	f.Status = status
	return nil
}

func (s *frameworkStoreStub) MirrorStatus(ctx context.Context, exec sqlx.ExtContext, tenantID, versionID string, status models.VersionState) error {
	s.mirrored[versionID] = status
	for _, f := range s.frameworks {
		if f.IsLatest(versionID) {
			f.Status = status
		}
	}
	return nil
}

type versionStoreStub struct {
	versions      map[string]*models.Version
	createErr     error
	transitionErr error
	statsCounts   []models.VersionStateCount
	statsCalls    int
	transitions   []string
}

func newVersionStoreStub(versions ...*models.Version) *versionStoreStub {
	s := &versionStoreStub{versions: map[string]*models.Version{}}
	for _, v := range versions {
		s.versions[v.ID] = v
	}
	return s
}

func (s *versionStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, version *models.Version) error {
	if s.createErr != nil {
		return s.createErr
	}
	if version.ID == "" {
		version.ID = fmt.Sprintf("ver-%d", len(s.versions)+1)
	}
	copied := *version
	s.versions[version.ID] = &copied
	return nil
}

func (s *versionStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Version, error) {
	v, ok := s.versions[id]
	if !ok || v.TenantID != tenantID || v.DeletedAt != nil {
		return nil, sql.ErrNoRows
	}
	copied := *v
	return &copied, nil
}

func (s *versionStoreStub) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Version, error) {
	return s.FindByID(ctx, exec, tenantID, id)
}

func (s *versionStoreStub) ExistsByNumber(ctx context.Context, tenantID, frameworkID, versionNo string) (bool, error) {
	for _, v := range s.versions {
		if v.TenantID == tenantID && v.FrameworkID == frameworkID && v.VersionNo == versionNo && v.DeletedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func (s *versionStoreStub) ListByFramework(ctx context.Context, tenantID, frameworkID string) ([]models.Version, error) {
	var out []models.Version
	for _, v := range s.versions {
		if v.TenantID == tenantID && v.FrameworkID == frameworkID && v.DeletedAt == nil {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *versionStoreStub) Update(ctx context.Context, exec sqlx.ExtContext, version *models.Version) error {
	if _, ok := s.versions[version.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *version
	s.versions[version.ID] = &copied
	return nil
}

func (s *versionStoreStub) TransitionState(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, from, to models.VersionState, actorID string) error {
	if s.transitionErr != nil {
		return s.transitionErr
	}
	v, ok := s.versions[id]
	if !ok || v.State != from {
		return sql.ErrNoRows
	}
	v.State = to
	v.UpdatedBy = &actorID
	s.transitions = append(s.transitions, string(from)+"->"+string(to))
	return nil
}

func (s *versionStoreStub) SoftDelete(ctx context.Context, exec sqlx.ExtContext, tenantID, id, actorID string) error {
	v, ok := s.versions[id]
	if !ok || v.DeletedAt != nil {
		return sql.ErrNoRows
	}
	now := time.Now()
	v.State = models.VersionArchived
	v.DeletedAt = &now
	return nil
}

func (s *versionStoreStub) Stats(ctx context.Context, tenantID, frameworkID string) ([]models.VersionStateCount, *time.Time, error) {
	s.statsCalls++
	return s.statsCounts, nil, nil
}

func (s *versionStoreStub) state(id string) models.VersionState {
	return s.versions[id].State
}

type approvalStoreStub struct {
	approvals map[string]*models.Approval
	createErr error
	updateErr error
}

func newApprovalStoreStub(approvals ...*models.Approval) *approvalStoreStub {
	s := &approvalStoreStub{approvals: map[string]*models.Approval{}}
	for _, a := range approvals {
		s.approvals[a.ID] = a
	}
	return s
}

func (s *approvalStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, approval *models.Approval) error {
	if s.createErr != nil {
		return s.createErr
	}
	if approval.ID == "" {
		approval.ID = fmt.Sprintf("appr-%d", len(s.approvals)+1)
	}
	copied := *approval
	s.approvals[approval.ID] = &copied
	return nil
}

func (s *approvalStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Approval, error) {
	a, ok := s.approvals[id]
	if !ok || a.TenantID != tenantID {
		return nil, sql.ErrNoRows
	}
	copied := *a
	return &copied, nil
}

func (s *approvalStoreStub) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Approval, error) {
	return s.FindByID(ctx, exec, tenantID, id)
}

func (s *approvalStoreStub) HasOpen(ctx context.Context, tenantID, versionID string) (bool, error) {
	for _, a := range s.approvals {
		if a.TenantID == tenantID && a.VersionID == versionID && a.Status.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (s *approvalStoreStub) UpdateDecision(ctx context.Context, exec sqlx.ExtContext, approval *models.Approval, prior models.ApprovalStatus) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	current, ok := s.approvals[approval.ID]
	if !ok || current.Status != prior {
		return sql.ErrNoRows
	}
	copied := *approval
	s.approvals[approval.ID] = &copied
	return nil
}

func (s *approvalStoreStub) List(ctx context.Context, tenantID string, filter models.ApprovalFilter) ([]models.Approval, int, error) {
	var out []models.Approval
	for _, a := range s.approvals {
		if a.TenantID == tenantID && (filter.VersionID == "" || a.VersionID == filter.VersionID) {
			out = append(out, *a)
		}
	}
	return out, len(out), nil
}

type userLookupStub struct {
	users map[string]*models.User
}

func newUserLookupStub(users ...*models.User) *userLookupStub {
	s := &userLookupStub{users: map[string]*models.User{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *userLookupStub) FindByID(ctx context.Context, tenantID, id string) (*models.User, error) {
	u, ok := s.users[id]
	if !ok || u.TenantID != tenantID {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (s *userLookupStub) ListReviewers(ctx context.Context, tenantID string) ([]models.User, error) {
	var out []models.User
	for _, u := range s.users {
		if u.TenantID == tenantID && u.CanReview() {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *userLookupStub) Search(ctx context.Context, tenantID, term string, limit int) ([]models.User, error) {
	var out []models.User
	for _, u := range s.users {
		if u.TenantID == tenantID {
			out = append(out, *u)
		}
	}
	return out, nil
}

type mappingStoreStub struct {
	mappings  map[string]*models.Mapping
	createErr error
}

func newMappingStoreStub(mappings ...*models.Mapping) *mappingStoreStub {
	s := &mappingStoreStub{mappings: map[string]*models.Mapping{}}
	for _, m := range mappings {
		s.mappings[m.ID] = m
	}
	return s
}

func (s *mappingStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, mapping *models.Mapping) error {
	if s.createErr != nil {
		return s.createErr
	}
	if mapping.ID == "" {
		mapping.ID = fmt.Sprintf("map-%d", len(s.mappings)+1)
	}
	copied := *mapping
	s.mappings[mapping.ID] = &copied
	return nil
}

func (s *mappingStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Mapping, error) {
	m, ok := s.mappings[id]
	if !ok || m.TenantID != tenantID {
		return nil, sql.ErrNoRows
	}
	copied := *m
	return &copied, nil
}

func (s *mappingStoreStub) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Mapping, error) {
	return s.FindByID(ctx, exec, tenantID, id)
}

func (s *mappingStoreStub) Exists(ctx context.Context, key models.MappingKey) (bool, error) {
	for _, m := range s.mappings {
		if m.TenantID == key.TenantID && m.FrameworkID == key.FrameworkID && m.VersionID == key.VersionID &&
			m.TargetType == key.TargetType && m.TargetID == key.TargetID && sameCampus(m.CampusID, key.CampusID) {
			return true, nil
		}
	}
	return false, nil
}

func sameCampus(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *mappingStoreStub) Update(ctx context.Context, exec sqlx.ExtContext, mapping *models.Mapping) error {
	if _, ok := s.mappings[mapping.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *mapping
	s.mappings[mapping.ID] = &copied
	return nil
}

func (s *mappingStoreStub) DeleteUnlessApplied(ctx context.Context, tenantID, id string) (bool, error) {
	m, ok := s.mappings[id]
	if !ok || m.TenantID != tenantID || m.Status == models.MappingApplied {
		return false, nil
	}
	delete(s.mappings, id)
	return true, nil
}

func (s *mappingStoreStub) List(ctx context.Context, tenantID string, filter models.MappingFilter) ([]models.Mapping, int, error) {
	var out []models.Mapping
	for _, m := range s.mappings {
		if m.TenantID == tenantID {
			out = append(out, *m)
		}
	}
	return out, len(out), nil
}

type campusLookupStub struct {
	campuses map[string]bool
}

func (c campusLookupStub) Exists(ctx context.Context, tenantID, id string) (bool, error) {
	return c.campuses[tenantID+"/"+id], nil
}
