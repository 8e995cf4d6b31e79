package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/models"
	"github.com/noah-isme/curriculum-api/internal/repository"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
)

// FrameworkService creates and reads curriculum frameworks.
type FrameworkService struct {
	frameworks frameworkStore
	versions   versionStore
	tx         txProvider
	audit      auditSink
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewFrameworkService constructs a framework service.
func NewFrameworkService(frameworks frameworkStore, versions versionStore, tx txProvider, audit auditSink, validate *validator.Validate, logger *zap.Logger) *FrameworkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FrameworkService{
		frameworks: frameworks,
		versions:   versions,
		tx:         tx,
		audit:      audit,
		validator:  validate,
		logger:     logger,
	}
}

// ListFrameworks returns a page of frameworks.
func (s *FrameworkService) ListFrameworks(ctx context.Context, actor models.Identity, filter models.FrameworkFilter) ([]models.Framework, *models.Pagination, error) {
	frameworks, total, err := s.frameworks.List(ctx, actor.TenantID, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list frameworks")
	}
	return frameworks, paginationOf(filter.Page, filter.PageSize, total), nil
}

// GetFramework returns a framework with its latest version.
func (s *FrameworkService) GetFramework(ctx context.Context, actor models.Identity, id string) (*dto.FrameworkDetail, error) {
	framework, err := s.frameworks.FindByID(ctx, nil, actor.TenantID, id)
	if err != nil {
		return nil, notFoundOr(err, "framework not found", "failed to load framework")
	}
	detail := &dto.FrameworkDetail{Framework: *framework}
	if framework.LatestVersionID != nil {
		latest, err := s.versions.FindByID(ctx, nil, actor.TenantID, *framework.LatestVersionID)
		if err != nil {
			return nil, notFoundOr(err, "latest version not found", "failed to load latest version")
		}
		detail.LatestVersion = latest
	}
	return detail, nil
}

// CreateFramework creates a framework together with its initial draft version.
func (s *FrameworkService) CreateFramework(ctx context.Context, actor models.Identity, req dto.CreateFrameworkRequest) (detail *dto.FrameworkDetail, err error) {
	ctx, span := startSpan(ctx, "FrameworkService.CreateFramework", actor, attribute.String("framework.code", req.Code))
	defer func() { endSpan(span, err) }()

	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid framework payload")
	}
	exists, err := s.frameworks.ExistsByCode(ctx, actor.TenantID, req.Code)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check framework code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "framework code already exists")
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

	framework := &models.Framework{
		TenantID:    actor.TenantID,
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Status:      models.VersionDraft,
		CreatedBy:   actor.ActorID,
	}
	if err = s.frameworks.Create(ctx, tx, framework); err != nil {
		if repository.IsUniqueViolation(err, repository.ConstraintFrameworkCode) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "framework code already exists")
		}
		s.logger.Error("failed to create framework", zap.String("tenant_id", actor.TenantID), zap.String("code", req.Code), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to create framework")
	}
	version := &models.Version{
		TenantID:    actor.TenantID,
		FrameworkID: framework.ID,
		VersionNo:   models.InitialVersionNo,
		State:       models.VersionDraft,
		CreatedBy:   actor.ActorID,
		UpdatedBy:   stringPtr(actor.ActorID),
	}
	if err = s.versions.Create(ctx, tx, version); err != nil {
		return nil, appErrors.Internal(err, "failed to create initial version")
	}
	if err = s.frameworks.SetLatestVersion(ctx, tx, actor.TenantID, framework.ID, version.ID, version.State); err != nil {
		return nil, appErrors.Internal(err, "failed to set latest version")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit framework")
	}

	framework.LatestVersionID = stringPtr(version.ID)
	if s.audit != nil {
		s.audit.Emit(ctx, models.AuditEvent{
			ActorID:    actor.ActorID,
			TenantID:   actor.TenantID,
			EntityType: models.EntityFramework,
			EntityID:   framework.ID,
			Action:     models.AuditActionCreate,
			Details:    map[string]interface{}{"code": framework.Code, "initial_version_id": version.ID},
		})
	}
	return &dto.FrameworkDetail{Framework: *framework, LatestVersion: version}, nil
}
