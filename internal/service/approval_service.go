package service

import (
	"context"
	"database/sql"
	"errors"
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
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
)

type approvalStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, approval *models.Approval) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Approval, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Approval, error)
	HasOpen(ctx context.Context, tenantID, versionID string) (bool, error)
	UpdateDecision(ctx context.Context, exec sqlx.ExtContext, approval *models.Approval, prior models.ApprovalStatus) error
	List(ctx context.Context, tenantID string, filter models.ApprovalFilter) ([]models.Approval, int, error)
}

type userLookup interface {
	FindByID(ctx context.Context, tenantID, id string) (*models.User, error)
	ListReviewers(ctx context.Context, tenantID string) ([]models.User, error)
	Search(ctx context.Context, tenantID, term string, limit int) ([]models.User, error)
}

const reviewerSearchLimit = 20

// ApprovalService runs the review workflow and cascades decisions onto versions.
type ApprovalService struct {
	approvals  approvalStore
	versions   versionStore
	frameworks frameworkStore
	users      userLookup
	tx         txProvider
	cache      statsCache
	notifier   *TransitionNotifier
	audit      auditSink
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewApprovalService constructs the approval workflow engine.
func NewApprovalService(
	approvals approvalStore,
	versions versionStore,
	frameworks frameworkStore,
	users userLookup,
	tx txProvider,
	cache statsCache,
	notifier *TransitionNotifier,
	audit auditSink,
	validate *validator.Validate,
	logger *zap.Logger,
) *ApprovalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		approvals:  approvals,
		versions:   versions,
		frameworks: frameworks,
		users:      users,
		tx:         tx,
		cache:      cache,
		notifier:   notifier,
		audit:      audit,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// GetApproval returns an approval.
func (s *ApprovalService) GetApproval(ctx context.Context, actor models.Identity, id string) (*models.Approval, error) {
	approval, err := s.approvals.FindByID(ctx, nil, actor.TenantID, id)
	if err != nil {
		return nil, notFoundOr(err, "approval not found", "failed to load approval")
	}
	return approval, nil
}

// ListApprovals returns a page of approvals.
func (s *ApprovalService) ListApprovals(ctx context.Context, actor models.Identity, filter models.ApprovalFilter) ([]models.Approval, *models.Pagination, error) {
	approvals, total, err := s.approvals.List(ctx, actor.TenantID, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list approvals")
	}
	return approvals, paginationOf(filter.Page, filter.PageSize, total), nil
}

// ListReviewers returns users eligible to review, optionally narrowed by a name or email term.
func (s *ApprovalService) ListReviewers(ctx context.Context, actor models.Identity, term string) ([]models.User, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		reviewers, err := s.users.ListReviewers(ctx, actor.TenantID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to list reviewers")
		}
		return reviewers, nil
	}
	users, err := s.users.Search(ctx, actor.TenantID, term, reviewerSearchLimit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to search reviewers")
	}
	reviewers := make([]models.User, 0, len(users))
	for i := range users {
		if users[i].CanReview() {
			reviewers = append(reviewers, users[i])
		}
	}
	return reviewers, nil
}

// RequestApproval submits a draft version for review by an eligible reviewer.
// An open approval is reported before the version state so that a losing
// concurrent request always sees APPROVAL_EXISTS.
func (s *ApprovalService) RequestApproval(ctx context.Context, actor models.Identity, versionID string, req dto.RequestApprovalRequest) (approval *models.Approval, err error) {
	ctx, span := startSpan(ctx, "ApprovalService.RequestApproval", actor, attribute.String("version.id", versionID))
	defer func() { endSpan(span, err) }()

	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	version, err := s.versions.FindByID(ctx, nil, actor.TenantID, versionID)
	if err != nil {
		return nil, notFoundOr(err, "version not found", "failed to load version")
	}
	open, err := s.approvals.HasOpen(ctx, actor.TenantID, versionID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check open approvals")
	}
	if open {
		return nil, appErrors.ErrApprovalExists
	}
	if version.State != models.VersionDraft {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only draft versions can be submitted for approval")
	}
	if err = s.checkReviewer(ctx, actor.TenantID, req.ReviewerID); err != nil {
		return nil, err
	}
	if req.ReviewDeadline != nil && !req.ReviewDeadline.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reviewDeadline must be in the future")
	}

	next, err := lifecycle.Versions.Fire(version.State, lifecycle.EventSubmit)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, err.Error())
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

	approval = &models.Approval{
		TenantID:           actor.TenantID,
		VersionID:          versionID,
		RequestedBy:        actor.ActorID,
		AssignedReviewerID: req.ReviewerID,
		Status:             models.ApprovalRequested,
		Priority:           priority,
		ReviewDeadline:     req.ReviewDeadline,
	}
	if err = s.approvals.Create(ctx, tx, approval); err != nil {
		if repository.IsUniqueViolation(err, repository.ConstraintOpenApproval) {
			return nil, appErrors.ErrApprovalExists
		}
		s.logger.Error("failed to create approval", zap.String("tenant_id", actor.TenantID), zap.String("version_id", versionID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to create approval")
	}
	if err = s.versions.TransitionState(ctx, tx, actor.TenantID, versionID, version.State, next, actor.ActorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "version left draft while the approval was requested")
		}
		return nil, appErrors.Internal(err, "failed to submit version")
	}
	if err = s.frameworks.MirrorStatus(ctx, tx, actor.TenantID, versionID, next); err != nil {
		return nil, appErrors.Internal(err, "failed to mirror framework status")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit approval request")
	}

	s.notifier.Notify(ctx, actor, models.EntityVersion, versionID, string(version.State), string(next))
	s.evictStats(ctx, actor.TenantID, version.FrameworkID)
	s.emit(ctx, actor, models.EntityApproval, approval.ID, models.AuditActionRequest, map[string]interface{}{
		"version_id":  versionID,
		"reviewer_id": req.ReviewerID,
		"priority":    string(priority),
	})
	s.emit(ctx, actor, models.EntityVersion, versionID, models.AuditActionTransition, map[string]interface{}{
		"from":        string(version.State),
		"to":          string(next),
		"approval_id": approval.ID,
	})
	return approval, nil
}

// Decide moves an approval through the workflow. Entering approved or rejected
// moves the version in the same transaction.
func (s *ApprovalService) Decide(ctx context.Context, actor models.Identity, id string, req dto.DecideApprovalRequest) (approval *models.Approval, err error) {
	ctx, span := startSpan(ctx, "ApprovalService.Decide", actor, attribute.String("approval.id", id))
	defer func() { endSpan(span, err) }()

	if req.Empty() {
		return nil, appErrors.ErrNoUpdates
	}
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
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

	approval, err = s.approvals.FindByIDForUpdate(ctx, tx, actor.TenantID, id)
	if err != nil {
		return nil, notFoundOr(err, "approval not found", "failed to load approval")
	}
	if !canDecide(actor, approval) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "only the assigned reviewer, admin or program owner may decide")
	}
	prior := approval.Status
	if lifecycle.Approvals.Terminal(prior) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "approval is already "+string(prior))
	}

	now := s.now().UTC()
	if req.Status != nil && *req.Status != prior {
		next := *req.Status
		if _, err = lifecycle.Approvals.Resolve(prior, next, lifecycle.OriginManual); err != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, err.Error())
		}
		approval.Status = next
		switch next {
		case models.ApprovalApproved, models.ApprovalRejected:
			approval.DecisionMadeBy = stringPtr(actor.ActorID)
			approval.DecisionMadeAt = &now
		case models.ApprovalEscalated:
			if req.EscalatedTo == nil || strings.TrimSpace(*req.EscalatedTo) == "" {
				return nil, appErrors.Clone(appErrors.ErrValidation, "escalatedTo is required when escalating")
			}
			approval.EscalatedAt = &now
		}
	}
	if req.EscalatedTo != nil {
		target := strings.TrimSpace(*req.EscalatedTo)
		if approval.Status == models.ApprovalEscalated {
			if err = s.checkReviewer(ctx, actor.TenantID, target); err != nil {
				return nil, err
			}
		}
		approval.EscalatedTo = stringPtr(target)
	}
	if req.EscalationReason != nil {
		approval.EscalationReason = req.EscalationReason
	}
	if req.Decision != nil {
		approval.Decision = req.Decision
	}

	if err = s.approvals.UpdateDecision(ctx, tx, approval, prior); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "approval changed concurrently")
		}
		s.logger.Error("failed to update approval", zap.String("tenant_id", actor.TenantID), zap.String("approval_id", id), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to update approval")
	}

	var version *models.Version
	var versionFrom, versionTo models.VersionState
	if event, ok := lifecycle.DecisionDelta(prior, approval.Status); ok {
		version, err = s.versions.FindByIDForUpdate(ctx, tx, actor.TenantID, approval.VersionID)
		if err != nil {
			return nil, notFoundOr(err, "version not found", "failed to load version")
		}
		versionFrom = version.State
		if versionTo, err = lifecycle.Versions.Fire(versionFrom, event); err != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, err.Error())
		}
		if err = s.versions.TransitionState(ctx, tx, actor.TenantID, version.ID, versionFrom, versionTo, actor.ActorID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrInvalidState, "version changed concurrently")
			}
			return nil, appErrors.Internal(err, "failed to cascade decision to version")
		}
		if err = s.frameworks.MirrorStatus(ctx, tx, actor.TenantID, version.ID, versionTo); err != nil {
			return nil, appErrors.Internal(err, "failed to mirror framework status")
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit decision")
	}

	s.notifier.Notify(ctx, actor, models.EntityApproval, approval.ID, string(prior), string(approval.Status))
	action := models.AuditActionDecide
	if approval.Status == models.ApprovalEscalated && prior != models.ApprovalEscalated {
		action = models.AuditActionEscalate
	}
	details := map[string]interface{}{"from": string(prior), "to": string(approval.Status)}
	if approval.EscalatedTo != nil {
		details["escalated_to"] = *approval.EscalatedTo
	}
	if version != nil {
		details["version_id"] = version.ID
		details["version_to"] = string(versionTo)
		s.notifier.Notify(ctx, actor, models.EntityVersion, version.ID, string(versionFrom), string(versionTo))
		s.evictStats(ctx, actor.TenantID, version.FrameworkID)
		s.emit(ctx, actor, models.EntityVersion, version.ID, models.AuditActionTransition, map[string]interface{}{
			"from":        string(versionFrom),
			"to":          string(versionTo),
			"approval_id": approval.ID,
		})
	}
	s.emit(ctx, actor, models.EntityApproval, approval.ID, action, details)
	return approval, nil
}

func canDecide(actor models.Identity, approval *models.Approval) bool {
	switch {
	case actor.Role == models.RoleAdmin, actor.Role == models.RoleProgramOwner:
		return true
	case actor.ActorID == approval.AssignedReviewerID:
		return true
	case approval.Status == models.ApprovalEscalated && approval.EscalatedTo != nil && actor.ActorID == *approval.EscalatedTo:
		return true
	}
	return false
}

func (s *ApprovalService) checkReviewer(ctx context.Context, tenantID, userID string) error {
	user, err := s.users.FindByID(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidReviewer, "reviewer not found")
		}
		return appErrors.Internal(err, "failed to load reviewer")
	}
	if !user.CanReview() {
		return appErrors.Clone(appErrors.ErrInvalidReviewer, "reviewer must be an active program owner, qa or admin")
	}
	return nil
}

func (s *ApprovalService) evictStats(ctx context.Context, tenantID, frameworkID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Evict(ctx, VersionStatsKey(tenantID, frameworkID))
}

func (s *ApprovalService) emit(ctx context.Context, actor models.Identity, entity, id, action string, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.Emit(ctx, models.AuditEvent{
		ActorID:    actor.ActorID,
		TenantID:   actor.TenantID,
		EntityType: entity,
		EntityID:   id,
		Action:     action,
		Details:    details,
	})
}
