package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/lifecycle"
	"github.com/noah-isme/curriculum-api/internal/models"
	"github.com/noah-isme/curriculum-api/internal/repository"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
)

type frameworkStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, framework *models.Framework) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Framework, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Framework, error)
	ExistsByCode(ctx context.Context, tenantID, code string) (bool, error)
	List(ctx context.Context, tenantID string, filter models.FrameworkFilter) ([]models.Framework, int, error)
	SetLatestVersion(ctx context.Context, exec sqlx.ExtContext, tenantID, id, versionID string, status models.VersionState) error
	MirrorStatus(ctx context.Context, exec sqlx.ExtContext, tenantID, versionID string, status models.VersionState) error
}

type versionStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, version *models.Version) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Version, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Version, error)
	ExistsByNumber(ctx context.Context, tenantID, frameworkID, versionNo string) (bool, error)
	ListByFramework(ctx context.Context, tenantID, frameworkID string) ([]models.Version, error)
	Update(ctx context.Context, exec sqlx.ExtContext, version *models.Version) error
	TransitionState(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, from, to models.VersionState, actorID string) error
	SoftDelete(ctx context.Context, exec sqlx.ExtContext, tenantID, id, actorID string) error
	Stats(ctx context.Context, tenantID, frameworkID string) ([]models.VersionStateCount, *time.Time, error)
}

// VersionService manages curriculum versions and their manual lifecycle edges.
type VersionService struct {
	frameworks frameworkStore
	versions   versionStore
	tx         txProvider
	cache      statsCache
	statsTTL   time.Duration
	notifier   *TransitionNotifier
	audit      auditSink
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewVersionService constructs the version lifecycle manager. cache may be nil.
func NewVersionService(
	frameworks frameworkStore,
	versions versionStore,
	tx txProvider,
	cache statsCache,
	statsTTL time.Duration,
	notifier *TransitionNotifier,
	audit auditSink,
	validate *validator.Validate,
	logger *zap.Logger,
) *VersionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VersionService{
		frameworks: frameworks,
		versions:   versions,
		tx:         tx,
		cache:      cache,
		statsTTL:   statsTTL,
		notifier:   notifier,
		audit:      audit,
		validator:  validate,
		logger:     logger,
	}
}

// GetVersion returns a live version.
func (s *VersionService) GetVersion(ctx context.Context, actor models.Identity, id string) (*models.Version, error) {
	version, err := s.versions.FindByID(ctx, nil, actor.TenantID, id)
	if err != nil {
		return nil, notFoundOr(err, "version not found", "failed to load version")
	}
	return version, nil
}

// ListVersions returns the live versions of a framework.
func (s *VersionService) ListVersions(ctx context.Context, actor models.Identity, frameworkID string) ([]models.Version, error) {
	if _, err := s.frameworks.FindByID(ctx, nil, actor.TenantID, frameworkID); err != nil {
		return nil, notFoundOr(err, "framework not found", "failed to load framework")
	}
	versions, err := s.versions.ListByFramework(ctx, actor.TenantID, frameworkID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list versions")
	}
	return versions, nil
}

// CreateVersion opens a new draft and makes it the framework's latest version.
func (s *VersionService) CreateVersion(ctx context.Context, actor models.Identity, frameworkID string, req dto.CreateVersionRequest) (version *models.Version, err error) {
	ctx, span := startSpan(ctx, "VersionService.CreateVersion", actor, attribute.String("framework.id", frameworkID))
	defer func() { endSpan(span, err) }()

	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid version payload")
	}
	metadata, err := jsonObject(req.Metadata, "metadata")
	if err != nil {
		return nil, err
	}
	if _, err = s.frameworks.FindByID(ctx, nil, actor.TenantID, frameworkID); err != nil {
		return nil, notFoundOr(err, "framework not found", "failed to load framework")
	}
	exists, err := s.versions.ExistsByNumber(ctx, actor.TenantID, frameworkID, req.VersionNo)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check version number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateVersion, "version "+req.VersionNo+" already exists")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = s.frameworks.FindByIDForUpdate(ctx, tx, actor.TenantID, frameworkID); err != nil {
		return nil, notFoundOr(err, "framework not found", "failed to lock framework")
	}
	version = &models.Version{
		TenantID:    actor.TenantID,
		FrameworkID: frameworkID,
		VersionNo:   req.VersionNo,
		State:       models.VersionDraft,
		Changelog:   req.Changelog,
		Metadata:    metadata,
		CreatedBy:   actor.ActorID,
		UpdatedBy:   stringPtr(actor.ActorID),
	}
	if err = s.versions.Create(ctx, tx, version); err != nil {
		if repository.IsUniqueViolation(err, repository.ConstraintVersionNo) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateVersion, "version "+req.VersionNo+" already exists")
		}
		s.logger.Error("failed to create version", zap.String("tenant_id", actor.TenantID), zap.String("framework_id", frameworkID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to create version")
	}
	if err = s.frameworks.SetLatestVersion(ctx, tx, actor.TenantID, frameworkID, version.ID, version.State); err != nil {
		return nil, appErrors.Internal(err, "failed to update latest version")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit version")
	}

	s.evictStats(ctx, actor.TenantID, frameworkID)
	s.emit(ctx, actor, version.ID, models.AuditActionCreate, map[string]interface{}{
		"framework_id": frameworkID,
		"version_no":   version.VersionNo,
	})
	return version, nil
}

// UpdateVersion patches changelog and metadata and applies a manual state change.
func (s *VersionService) UpdateVersion(ctx context.Context, actor models.Identity, id string, req dto.UpdateVersionRequest) (version *models.Version, err error) {
	ctx, span := startSpan(ctx, "VersionService.UpdateVersion", actor, attribute.String("version.id", id))
	defer func() { endSpan(span, err) }()

	if req.Empty() {
		return nil, appErrors.ErrNoUpdates
	}
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid version payload")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	version, err = s.versions.FindByIDForUpdate(ctx, tx, actor.TenantID, id)
	if err != nil {
		return nil, notFoundOr(err, "version not found", "failed to load version")
	}
	from := version.State

	if req.Changelog != nil {
		version.Changelog = req.Changelog
	}
	if len(req.Metadata) > 0 {
		if version.Metadata, err = jsonObject(req.Metadata, "metadata"); err != nil {
			return nil, err
		}
	}
	if req.State != nil && *req.State != from {
		if _, err = lifecycle.Versions.Resolve(from, *req.State, lifecycle.OriginManual); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		version.State = *req.State
		if version.State == models.VersionPublished {
			now := time.Now().UTC()
			version.PublishedAt = &now
		}
	}
	version.UpdatedBy = stringPtr(actor.ActorID)

	if err = s.versions.Update(ctx, tx, version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "version not found")
		}
		s.logger.Error("failed to update version", zap.String("tenant_id", actor.TenantID), zap.String("version_id", id), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to update version")
	}
	if version.State != from {
		if err = s.frameworks.MirrorStatus(ctx, tx, actor.TenantID, version.ID, version.State); err != nil {
			return nil, appErrors.Internal(err, "failed to mirror framework status")
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit version")
	}

	details := map[string]interface{}{}
	action := models.AuditActionUpdate
	if version.State != from {
		action = models.AuditActionTransition
		details["from"] = string(from)
		details["to"] = string(version.State)
		s.notifier.Notify(ctx, actor, models.EntityVersion, version.ID, string(from), string(version.State))
	}
	s.evictStats(ctx, actor.TenantID, version.FrameworkID)
	s.emit(ctx, actor, version.ID, action, details)
	return version, nil
}

// DeleteVersion soft deletes a version that is not the framework's latest.
func (s *VersionService) DeleteVersion(ctx context.Context, actor models.Identity, id string) (err error) {
	ctx, span := startSpan(ctx, "VersionService.DeleteVersion", actor, attribute.String("version.id", id))
	defer func() { endSpan(span, err) }()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	version, err := s.versions.FindByIDForUpdate(ctx, tx, actor.TenantID, id)
	if err != nil {
		return notFoundOr(err, "version not found", "failed to load version")
	}
	framework, err := s.frameworks.FindByIDForUpdate(ctx, tx, actor.TenantID, version.FrameworkID)
	if err != nil {
		return notFoundOr(err, "framework not found", "failed to lock framework")
	}
	if framework.IsLatest(version.ID) {
		err = appErrors.Clone(appErrors.ErrCannotDeleteLatest, "version "+version.VersionNo+" is the framework's latest version")
		return err
	}
	if version.State != models.VersionArchived {
		// pending_review has no archive edge: its open approval must be decided first.
		if _, err = lifecycle.Versions.Resolve(version.State, models.VersionArchived, lifecycle.OriginManual); err != nil {
			return appErrors.Clone(appErrors.ErrInvalidState, err.Error())
		}
	}
	if err = s.versions.SoftDelete(ctx, tx, actor.TenantID, id, actor.ActorID); err != nil {
		return notFoundOr(err, "version not found", "failed to delete version")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Internal(err, "failed to commit version delete")
	}

	s.notifier.Notify(ctx, actor, models.EntityVersion, id, string(version.State), string(models.VersionArchived))
	s.evictStats(ctx, actor.TenantID, version.FrameworkID)
	s.emit(ctx, actor, id, models.AuditActionDelete, map[string]interface{}{"from": string(version.State)})
	return nil
}

// GetVersionStats returns per-state counts for a framework, read through the stats cache.
func (s *VersionService) GetVersionStats(ctx context.Context, actor models.Identity, frameworkID string) (*models.VersionStats, error) {
	if _, err := s.frameworks.FindByID(ctx, nil, actor.TenantID, frameworkID); err != nil {
		return nil, notFoundOr(err, "framework not found", "failed to load framework")
	}

	key := VersionStatsKey(actor.TenantID, frameworkID)
	if s.cache != nil {
		var cached models.VersionStats
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	counts, lastPublished, err := s.versions.Stats(ctx, actor.TenantID, frameworkID)
	if err != nil {
		s.logger.Error("failed to compute version stats", zap.String("tenant_id", actor.TenantID), zap.String("framework_id", frameworkID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to compute version stats")
	}
	stats := &models.VersionStats{
		FrameworkID:     frameworkID,
		ByState:         make(map[models.VersionState]int, len(models.VersionStates)),
		LastPublishedAt: lastPublished,
	}
	for _, state := range models.VersionStates {
		stats.ByState[state] = 0
	}
	for _, row := range counts {
		stats.ByState[row.State] += row.Count
		stats.Total += row.Count
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, stats, s.statsTTL)
	}
	return stats, nil
}

func (s *VersionService) evictStats(ctx context.Context, tenantID, frameworkID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Evict(ctx, VersionStatsKey(tenantID, frameworkID))
}

func (s *VersionService) emit(ctx context.Context, actor models.Identity, id, action string, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.Emit(ctx, models.AuditEvent{
		ActorID:    actor.ActorID,
		TenantID:   actor.TenantID,
		EntityType: models.EntityVersion,
		EntityID:   id,
		Action:     action,
		Details:    details,
	})
}
