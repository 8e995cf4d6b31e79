package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/lifecycle"
	"github.com/noah-isme/curriculum-api/internal/models"
	"github.com/noah-isme/curriculum-api/internal/repository"
	"github.com/noah-isme/curriculum-api/pkg/config"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
)

type mappingStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, mapping *models.Mapping) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Mapping, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Mapping, error)
	Exists(ctx context.Context, key models.MappingKey) (bool, error)
	Update(ctx context.Context, exec sqlx.ExtContext, mapping *models.Mapping) error
	DeleteUnlessApplied(ctx context.Context, tenantID, id string) (bool, error)
	List(ctx context.Context, tenantID string, filter models.MappingFilter) ([]models.Mapping, int, error)
}

type campusLookup interface {
	Exists(ctx context.Context, tenantID, id string) (bool, error)
}

// MappingService binds approved versions to operational targets and tracks their rollout.
type MappingService struct {
	mappings  mappingStore
	versions  versionStore
	campuses  campusLookup
	tx        txProvider
	notifier  *TransitionNotifier
	audit     auditSink
	cfg       config.MappingsConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewMappingService constructs the mapping and rollout engine.
func NewMappingService(
	mappings mappingStore,
	versions versionStore,
	campuses campusLookup,
	tx txProvider,
	notifier *TransitionNotifier,
	audit auditSink,
	cfg config.MappingsConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *MappingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MappingService{
		mappings:  mappings,
		versions:  versions,
		campuses:  campuses,
		tx:        tx,
		notifier:  notifier,
		audit:     audit,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// GetMapping returns a mapping.
func (s *MappingService) GetMapping(ctx context.Context, actor models.Identity, id string) (*models.Mapping, error) {
	mapping, err := s.mappings.FindByID(ctx, nil, actor.TenantID, id)
	if err != nil {
		return nil, notFoundOr(err, "mapping not found", "failed to load mapping")
	}
	return mapping, nil
}

// ListMappings returns a page of mappings.
func (s *MappingService) ListMappings(ctx context.Context, actor models.Identity, filter models.MappingFilter) ([]models.Mapping, *models.Pagination, error) {
	mappings, total, err := s.mappings.List(ctx, actor.TenantID, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list mappings")
	}
	return mappings, paginationOf(filter.Page, filter.PageSize, total), nil
}

// CreateMapping plans the rollout of an approved or published version onto a target.
func (s *MappingService) CreateMapping(ctx context.Context, actor models.Identity, req dto.CreateMappingRequest) (mapping *models.Mapping, err error) {
	ctx, span := startSpan(ctx, "MappingService.CreateMapping", actor,
		attribute.String("version.id", req.VersionID),
		attribute.String("target.type", string(req.TargetType)),
	)
	defer func() { endSpan(span, err) }()

	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mapping payload")
	}
	report, err := jsonDocument(req.MismatchReport, "mismatchReport")
	if err != nil {
		return nil, err
	}
	mapping = &models.Mapping{
		TenantID:       actor.TenantID,
		FrameworkID:    req.FrameworkID,
		VersionID:      req.VersionID,
		TargetType:     req.TargetType,
		TargetID:       req.TargetID,
		CampusID:       req.CampusID,
		RolloutPhase:   req.RolloutPhase,
		RiskAssessment: req.RiskAssessment,
		MismatchReport: report,
		OverrideReason: req.OverrideReason,
		Status:         models.MappingPlanned,
		CreatedBy:      actor.ActorID,
		UpdatedBy:      stringPtr(actor.ActorID),
	}
	if mapping.RolloutPhase == "" {
		mapping.RolloutPhase = models.RolloutPlanned
	}
	if mapping.RiskAssessment == "" {
		mapping.RiskAssessment = models.RiskLow
	}

	version, err := s.versions.FindByID(ctx, nil, actor.TenantID, req.VersionID)
	if err != nil {
		return nil, notFoundOr(err, "version not found", "failed to load version")
	}
	if version.FrameworkID != req.FrameworkID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "version not found in framework")
	}
	if version.State != models.VersionApproved && version.State != models.VersionPublished {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only approved or published versions can be mapped")
	}
	if req.CampusID != nil {
		ok, campusErr := s.campuses.Exists(ctx, actor.TenantID, *req.CampusID)
		if campusErr != nil {
			err = appErrors.Internal(campusErr, "failed to check campus")
			return nil, err
		}
		if !ok {
			return nil, appErrors.ErrInvalidCampus
		}
	}
	if err = s.checkOverride(mapping); err != nil {
		return nil, err
	}
	exists, err := s.mappings.Exists(ctx, models.MappingKey{
		TenantID:    actor.TenantID,
		FrameworkID: req.FrameworkID,
		VersionID:   req.VersionID,
		TargetType:  req.TargetType,
		TargetID:    req.TargetID,
		CampusID:    req.CampusID,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check mapping target")
	}
	if exists {
		return nil, appErrors.ErrDuplicateMapping
	}
	if err = s.mappings.Create(ctx, nil, mapping); err != nil {
		if repository.IsUniqueViolation(err, repository.ConstraintMappingTarget) {
			return nil, appErrors.ErrDuplicateMapping
		}
		if repository.IsForeignKeyViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "version or campus was removed while the mapping was created")
		}
		s.logger.Error("failed to create mapping", zap.String("tenant_id", actor.TenantID), zap.String("version_id", req.VersionID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to create mapping")
	}

	s.emit(ctx, actor, mapping.ID, models.AuditActionCreate, map[string]interface{}{
		"version_id":      mapping.VersionID,
		"target_type":     string(mapping.TargetType),
		"target_id":       mapping.TargetID,
		"risk_assessment": string(mapping.RiskAssessment),
	})
	return mapping, nil
}

// UpdateMapping patches rollout fields and advances the status under a row lock.
func (s *MappingService) UpdateMapping(ctx context.Context, actor models.Identity, id string, req dto.UpdateMappingRequest) (mapping *models.Mapping, err error) {
	ctx, span := startSpan(ctx, "MappingService.UpdateMapping", actor, attribute.String("mapping.id", id))
	defer func() { endSpan(span, err) }()

	if req.Empty() {
		return nil, appErrors.ErrNoUpdates
	}
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mapping payload")
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

	mapping, err = s.mappings.FindByIDForUpdate(ctx, tx, actor.TenantID, id)
	if err != nil {
		return nil, notFoundOr(err, "mapping not found", "failed to load mapping")
	}
	from := mapping.Status

	if req.RolloutPhase != nil {
		mapping.RolloutPhase = *req.RolloutPhase
	}
	if req.RiskAssessment != nil {
		mapping.RiskAssessment = *req.RiskAssessment
	}
	if len(req.MismatchReport) > 0 {
		if mapping.MismatchReport, err = jsonDocument(req.MismatchReport, "mismatchReport"); err != nil {
			return nil, err
		}
	}
	if req.OverrideReason != nil {
		mapping.OverrideReason = req.OverrideReason
	}
	if req.Status != nil && *req.Status != from {
		if _, err = lifecycle.Mappings.Resolve(from, *req.Status, lifecycle.OriginManual); err != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, err.Error())
		}
		mapping.Status = *req.Status
		now := s.now().UTC()
		switch mapping.Status {
		case models.MappingApplied:
			mapping.AppliedAt = &now
		case models.MappingRolledBack:
			mapping.RolledBackAt = &now
		}
	}
	if err = s.checkOverride(mapping); err != nil {
		return nil, err
	}
	mapping.UpdatedBy = stringPtr(actor.ActorID)

	if err = s.mappings.Update(ctx, tx, mapping); err != nil {
		s.logger.Error("failed to update mapping", zap.String("tenant_id", actor.TenantID), zap.String("mapping_id", id), zap.Error(err))
		return nil, notFoundOr(err, "mapping not found", "failed to update mapping")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit mapping")
	}

	if mapping.Status != from {
		s.notifier.Notify(ctx, actor, models.EntityMapping, mapping.ID, string(from), string(mapping.Status))
		s.emit(ctx, actor, mapping.ID, models.AuditActionTransition, map[string]interface{}{
			"from": string(from),
			"to":   string(mapping.Status),
		})
	} else {
		s.emit(ctx, actor, mapping.ID, models.AuditActionUpdate, nil)
	}
	return mapping, nil
}

// DeleteMapping removes a mapping unless it is applied.
func (s *MappingService) DeleteMapping(ctx context.Context, actor models.Identity, id string) (err error) {
	ctx, span := startSpan(ctx, "MappingService.DeleteMapping", actor, attribute.String("mapping.id", id))
	defer func() { endSpan(span, err) }()

	deleted, err := s.mappings.DeleteUnlessApplied(ctx, actor.TenantID, id)
	if err != nil {
		s.logger.Error("failed to delete mapping", zap.String("tenant_id", actor.TenantID), zap.String("mapping_id", id), zap.Error(err))
		return appErrors.Internal(err, "failed to delete mapping")
	}
	if !deleted {
		mapping, findErr := s.mappings.FindByID(ctx, nil, actor.TenantID, id)
		if findErr != nil {
			err = notFoundOr(findErr, "mapping not found", "failed to load mapping")
			return err
		}
		if mapping.Status == models.MappingApplied {
			return appErrors.ErrCannotDeleteApplied
		}
		return appErrors.Clone(appErrors.ErrConflict, "mapping changed concurrently")
	}

	s.emit(ctx, actor, id, models.AuditActionDelete, nil)
	return nil
}

func (s *MappingService) checkOverride(mapping *models.Mapping) error {
	if !s.cfg.RequireOverrideReason || !mapping.RiskAssessment.NeedsOverride() {
		return nil
	}
	if mapping.OverrideReason == nil || strings.TrimSpace(*mapping.OverrideReason) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "overrideReason is required for "+string(mapping.RiskAssessment)+" risk mappings")
	}
	return nil
}

func (s *MappingService) emit(ctx context.Context, actor models.Identity, id, action string, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.Emit(ctx, models.AuditEvent{
		ActorID:    actor.ActorID,
		TenantID:   actor.TenantID,
		EntityType: models.EntityMapping,
		EntityID:   id,
		Action:     action,
		Details:    details,
	})
}
