package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
)

type courseStore interface {
	NextSequence(ctx context.Context, exec sqlx.ExtContext, tenantID, versionID string) (int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Course, error)
	ListByVersion(ctx context.Context, tenantID, versionID string) ([]models.Course, error)
	Update(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
	SoftDelete(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) error
	UpdateSequences(ctx context.Context, exec sqlx.ExtContext, tenantID, versionID string, items []models.SequenceUpdate) error
}

type unitStore interface {
	NextSequence(ctx context.Context, exec sqlx.ExtContext, tenantID, courseID string) (int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, unit *models.Unit) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Unit, error)
	ListByCourse(ctx context.Context, tenantID, courseID string) ([]models.Unit, error)
	Update(ctx context.Context, exec sqlx.ExtContext, unit *models.Unit) error
	UpdateCompleteness(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, score int) error
	ShiftSequences(ctx context.Context, exec sqlx.ExtContext, tenantID, courseID string, after int) error
	SoftDelete(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) error
	UpdateSequences(ctx context.Context, exec sqlx.ExtContext, tenantID, courseID string, items []models.SequenceUpdate) error
}

type resourceStore interface {
	NextSequence(ctx context.Context, exec sqlx.ExtContext, tenantID, unitID string) (int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, resource *models.Resource) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Resource, error)
	ListByUnit(ctx context.Context, tenantID, unitID string) ([]models.Resource, error)
	CountActive(ctx context.Context, exec sqlx.ExtContext, tenantID, unitID string) (int, error)
	Update(ctx context.Context, exec sqlx.ExtContext, resource *models.Resource) error
	SoftDelete(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) error
	MoveToUnit(ctx context.Context, exec sqlx.ExtContext, tenantID, fromUnitID, toUnitID string, ids []string) (int64, error)
}

type structureGuard interface {
	Check(ctx context.Context, exec sqlx.ExtContext, tenantID string, ref models.NodeRef) (*models.NodeOwner, error)
}

// StructureService edits courses, units and resources of draft versions.
type StructureService struct {
	courses   courseStore
	units     unitStore
	resources resourceStore
	guard     structureGuard
	tx        txProvider
	audit     auditSink
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStructureService wires the structural editor.
func NewStructureService(
	courses courseStore,
	units unitStore,
	resources resourceStore,
	guard structureGuard,
	tx txProvider,
	audit auditSink,
	validate *validator.Validate,
	logger *zap.Logger,
) *StructureService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StructureService{
		courses:   courses,
		units:     units,
		resources: resources,
		guard:     guard,
		tx:        tx,
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// runGuarded executes fn inside a transaction after the guard admitted ref.
func (s *StructureService) runGuarded(ctx context.Context, actor models.Identity, ref models.NodeRef, fn func(tx *sqlx.Tx) error) (err error) {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = s.guard.Check(ctx, tx, actor.TenantID, ref); err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Internal(err, "failed to commit structural change")
	}
	return nil
}

func (s *StructureService) internal(err error, message string, fields ...zap.Field) error {
	s.logger.Error(message, append(fields, zap.Error(err))...)
	return appErrors.Internal(err, message)
}

// ListCourses returns the courses of a version.
func (s *StructureService) ListCourses(ctx context.Context, actor models.Identity, versionID string) ([]models.Course, error) {
	courses, err := s.courses.ListByVersion(ctx, actor.TenantID, versionID)
	if err != nil {
		return nil, s.internal(err, "failed to list courses", zap.String("version_id", versionID))
	}
	return courses, nil
}

// CreateCourse adds a course to a draft version.
func (s *StructureService) CreateCourse(ctx context.Context, actor models.Identity, versionID string, req dto.CreateCourseRequest) (course *models.Course, err error) {
	ctx, span := startSpan(ctx, "StructureService.CreateCourse", actor, attribute.String("version.id", versionID))
	defer func() { endSpan(span, err) }()

	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course = &models.Course{
		TenantID:    actor.TenantID,
		VersionID:   versionID,
		Code:        req.Code,
		Title:       req.Title,
		Description: req.Description,
	}
	err = s.runGuarded(ctx, actor, models.NodeRef{Kind: models.NodeVersion, ID: versionID}, func(tx *sqlx.Tx) error {
		if req.Sequence != nil {
			course.Sequence = *req.Sequence
		} else {
			next, seqErr := s.courses.NextSequence(ctx, tx, actor.TenantID, versionID)
			if seqErr != nil {
				return s.internal(seqErr, "failed to allocate course sequence", zap.String("version_id", versionID))
			}
			course.Sequence = next
		}
		if createErr := s.courses.Create(ctx, tx, course); createErr != nil {
			return s.internal(createErr, "failed to create course", zap.String("version_id", versionID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, actor, models.EntityCourse, course.ID, models.AuditActionCreate, map[string]interface{}{"version_id": versionID})
	return course, nil
}

// UpdateCourse patches a course of a draft version.
func (s *StructureService) UpdateCourse(ctx context.Context, actor models.Identity, id string, req dto.UpdateCourseRequest) (course *models.Course, err error) {
	ctx, span := startSpan(ctx, "StructureService.UpdateCourse", actor, attribute.String("course.id", id))
	defer func() { endSpan(span, err) }()

	if req.Empty() {
		return nil, appErrors.ErrNoUpdates
	}
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	err = s.runGuarded(ctx, actor, models.NodeRef{Kind: models.NodeCourse, ID: id}, func(tx *sqlx.Tx) error {
		current, findErr := s.courses.FindByID(ctx, tx, actor.TenantID, id)
		if findErr != nil {
			return notFoundOr(findErr, "course not found", "failed to load course")
		}
		if req.Code != nil {
			current.Code = req.Code
		}
		if req.Title != nil {
			current.Title = *req.Title
		}
		if req.Description != nil {
			current.Description = req.Description
		}
		if updateErr := s.courses.Update(ctx, tx, current); updateErr != nil {
			return s.internal(updateErr, "failed to update course", zap.String("course_id", id))
		}
		course = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, actor, models.EntityCourse, id, models.AuditActionUpdate, nil)
	return course, nil
}

// DeleteCourse soft deletes a course and everything beneath it.
func (s *StructureService) DeleteCourse(ctx context.Context, actor models.Identity, id string) (err error) {
	ctx, span := startSpan(ctx, "StructureService.DeleteCourse", actor, attribute.String("course.id", id))
	defer func() { endSpan(span, err) }()

	err = s.runGuarded(ctx, actor, models.NodeRef{Kind: models.NodeCourse, ID: id}, func(tx *sqlx.Tx) error {
		if deleteErr := s.courses.SoftDelete(ctx, tx, actor.TenantID, id); deleteErr != nil {
			return notFoundOr(deleteErr, "course not found", "failed to delete course")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, actor, models.EntityCourse, id, models.AuditActionDelete, nil)
	return nil
}

// ReorderCourses reassigns course positions within a version in one transaction.
func (s *StructureService) ReorderCourses(ctx context.Context, actor models.Identity, versionID string, req dto.ReorderRequest) (courses []models.Course, err error) {
	ctx, span := startSpan(ctx, "StructureService.ReorderCourses", actor, attribute.String("version.id", versionID))
	defer func() { endSpan(span, err) }()

	items, err := s.sequenceUpdates(req)
	if err != nil {
		return nil, err
	}
	err = s.runGuarded(ctx, actor, models.NodeRef{Kind: models.NodeVersion, ID: versionID}, func(tx *sqlx.Tx) error {
		if updateErr := s.courses.UpdateSequences(ctx, tx, actor.TenantID, versionID, items); updateErr != nil {
			return reorderError(updateErr, "course", "version")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, actor, models.EntityVersion, versionID, models.AuditActionReorder, map[string]interface{}{"courses": len(items)})
	return s.ListCourses(ctx, actor, versionID)
}

// ListUnits returns the units of a course.
func (s *StructureService) ListUnits(ctx context.Context, actor models.Identity, courseID string) ([]models.Unit, error) {
	units, err := s.units.ListByCourse(ctx, actor.TenantID, courseID)
	if err != nil {
		return nil, s.internal(err, "failed to list units", zap.String("course_id", courseID))
	}
	return units, nil
}

// CreateUnit adds a unit to a course. An explicit sequence shifts later siblings down.
func (s *StructureService) CreateUnit(ctx context.Context, actor models.Identity, courseID string, req dto.CreateUnitRequest) (unit *models.Unit, err error) {
	ctx, span := startSpan(ctx, "StructureService.CreateUnit", actor, attribute.String("course.id", courseID))
	defer func() { endSpan(span, err) }()

	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid unit payload")
	}
	unit = &models.Unit{
		TenantID:    actor.TenantID,
		CourseID:    courseID,
		Title:       req.Title,
		Description: req.Description,
	}
	if err = applyUnitContent(unit, req.Objectives, req.Skills, req.Activities); err != nil {
		return nil, err
	}
	if req.Rubric != nil {
		if unit.Rubric, err = encodeRubric(req.Rubric); err != nil {
			return nil, err
		}
	}
	unit.CompletenessScore = ComputeCompleteness(completenessOf(unit, 0))

	err = s.runGuarded(ctx, actor, models.NodeRef{Kind: models.NodeCourse, ID: courseID}, func(tx *sqlx.Tx) error {
		if req.Sequence != nil {
			unit.Sequence = *req.Sequence
			if shiftErr := s.units.ShiftSequences(ctx, tx, actor.TenantID, courseID, unit.Sequence-1); shiftErr != nil {
				return s.internal(shiftErr, "failed to shift unit sequences", zap.String("course_id", courseID))
			}
		} else {
			next, seqErr := s.units.NextSequence(ctx, tx, actor.TenantID, courseID)
			if seqErr != nil {
				return s.internal(seqErr, "failed to allocate unit sequence", zap.String("course_id", courseID))
			}
			unit.Sequence = next
		}
		if createErr := s.units.Create(ctx, tx, unit); createErr != nil {
			return s.internal(createErr, "failed to create unit", zap.String("course_id", courseID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, actor, models.EntityUnit, unit.ID, models.AuditActionCreate, map[string]interface{}{"course_id": courseID})
	return unit, nil
}

// UpdateUnit patches unit content and recomputes its completeness from the final values.
func (s *StructureService) UpdateUnit(ctx context.Context, actor models.Identity, id string, req dto.UpdateUnitRequest) (unit *models.Unit, err error) {
	ctx, span := startSpan(ctx, "StructureService.UpdateUnit", actor, attribute.String("unit.id", id))
	defer func() { endSpan(span, err) }()

	if req.Empty() {
		return nil, appErrors.ErrNoUpdates
	}
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid unit payload")
	}
	if req.ClearRubric && req.Rubric != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rubric and clearRubric are mutually exclusive")
	}
	err = s.runGuarded(ctx, actor, models.NodeRef{Kind: models.NodeUnit, ID: id}, func(tx *sqlx.Tx) error {
		current, findErr := s.units.FindByID(ctx, tx, actor.TenantID, id)
		if findErr != nil {
			return notFoundOr(findErr, "unit not found", "failed to load unit")
		}
		if req.Title != nil {
			current.Title = *req.Title
		}
		if req.Description != nil {
			current.Description = req.Description
		}
		var objectives, skills []string
		var activities []dto.Activity
		if req.Objectives != nil {
			objectives = *req.Objectives
		}
		if req.Skills != nil {
			skills = *req.Skills
		}
		if req.Activities != nil {
			activities = *req.Activities
		}
		if req.Objectives != nil || req.Skills != nil || req.Activities != nil {
			patch := &models.Unit{}
			if encodeErr := applyUnitContent(patch, objectives, skills, activities); encodeErr != nil {
				return encodeErr
			}
			if req.Objectives != nil {
				current.Objectives = patch.Objectives
			}
			if req.Skills != nil {
				current.Skills = patch.Skills
			}
			if req.Activities != nil {
				current.Activities = patch.Activities
			}
		}
		switch {
		case req.ClearRubric:
			current.Rubric = types.NullJSONText{}
		case req.Rubric != nil:
			rubric, encodeErr := encodeRubric(req.Rubric)
			if encodeErr != nil {
				return encodeErr
			}
			current.Rubric = rubric
		}

		active, countErr := s.resources.CountActive(ctx, tx, actor.TenantID, id)
		if countErr != nil {
			return s.internal(countErr, "failed to count unit resources", zap.String("unit_id", id))
		}
		current.CompletenessScore = ComputeCompleteness(completenessOf(current, active))
		if updateErr := s.units.Update(ctx, tx, current); updateErr != nil {
			return s.internal(updateErr, "failed to update unit", zap.String("unit_id", id))
		}
		unit = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, actor, models.EntityUnit, id, models.AuditActionUpdate, map[string]interface{}{"completeness_score": unit.CompletenessScore})
	return unit, nil
}

// DeleteUnit soft deletes a unit and its resources.
func (s *StructureService) DeleteUnit(ctx context.Context, actor models.Identity, id string) (err error) {
	ctx, span := startSpan(ctx, "StructureService.DeleteUnit", actor, attribute.String("unit.id", id))
	defer func() { endSpan(span, err) }()

	err = s.runGuarded(ctx, actor, models.NodeRef{Kind: models.NodeUnit, ID: id}, func(tx *sqlx.Tx) error {
		if deleteErr := s.units.SoftDelete(ctx, tx, actor.TenantID, id); deleteErr != nil {
			return notFoundOr(deleteErr, "unit not found", "failed to delete unit")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, actor, models.EntityUnit, id, models.AuditActionDelete, nil)
	return nil
}

// ReorderUnits reassigns unit positions within a course in one transaction.
func (s *StructureService) ReorderUnits(ctx context.Context, actor models.Identity, courseID string, req dto.ReorderRequest) (units []models.Unit, err error) {
	ctx, span := startSpan(ctx, "StructureService.ReorderUnits", actor, attribute.String("course.id", courseID))
	defer func() { endSpan(span, err) }()

	items, err := s.sequenceUpdates(req)
	if err != nil {
		return nil, err
	}
	err = s.runGuarded(ctx, actor, models.NodeRef{Kind: models.NodeCourse, ID: courseID}, func(tx *sqlx.Tx) error {
		if updateErr := s.units.UpdateSequences(ctx, tx, actor.TenantID, courseID, items); updateErr != nil {
			return reorderError(updateErr, "unit", "course")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, actor, models.EntityCourse, courseID, models.AuditActionReorder, map[string]interface{}{"units": len(items)})
	return s.ListUnits(ctx, actor, courseID)
}

// SplitUnit inserts a new unit right after the source, moves the selected
// resources onto it and rescores both units.
func (s *StructureService) SplitUnit(ctx context.Context, actor models.Identity, id string, req dto.SplitUnitRequest) (result *dto.SplitUnitResult, err error) {
	ctx, span := startSpan(ctx, "StructureService.SplitUnit", actor, attribute.String("unit.id", id))
	defer func() { endSpan(span, err) }()

	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid split payload")
	}
	resourceIDs, err := uniqueIDs(req.ResourceIDs, "resourceIds")
	if err != nil {
		return nil, err
	}

	err = s.runGuarded(ctx, actor, models.NodeRef{Kind: models.NodeUnit, ID: id}, func(tx *sqlx.Tx) error {
		source, findErr := s.units.FindByID(ctx, tx, actor.TenantID, id)
		if findErr != nil {
			return notFoundOr(findErr, "unit not found", "failed to load unit")
		}
		if shiftErr := s.units.ShiftSequences(ctx, tx, actor.TenantID, source.CourseID, source.Sequence); shiftErr != nil {
			return s.internal(shiftErr, "failed to shift unit sequences", zap.String("unit_id", id))
		}
		created := &models.Unit{
			TenantID:    actor.TenantID,
			CourseID:    source.CourseID,
			Title:       req.Title,
			Description: req.Description,
			Sequence:    source.Sequence + 1,
		}
		if createErr := s.units.Create(ctx, tx, created); createErr != nil {
			return s.internal(createErr, "failed to create split unit", zap.String("unit_id", id))
		}
		moved, moveErr := s.resources.MoveToUnit(ctx, tx, actor.TenantID, source.ID, created.ID, resourceIDs)
		if moveErr != nil {
			return s.internal(moveErr, "failed to move resources", zap.String("unit_id", id))
		}
		if int(moved) != len(resourceIDs) {
			return appErrors.Clone(appErrors.ErrValidation, "every resource must belong to the source unit")
		}
		if source, findErr = s.rescore(ctx, tx, actor.TenantID, source.ID); findErr != nil {
			return findErr
		}
		if created, findErr = s.rescore(ctx, tx, actor.TenantID, created.ID); findErr != nil {
			return findErr
		}
		result = &dto.SplitUnitResult{Source: source, Created: created}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, actor, models.EntityUnit, id, models.AuditActionSplit, map[string]interface{}{
		"created_unit_id": result.Created.ID,
		"moved_resources": resourceIDs,
	})
	return result, nil
}

// ListResources returns the resources of a unit.
func (s *StructureService) ListResources(ctx context.Context, actor models.Identity, unitID string) ([]models.Resource, error) {
	resources, err := s.resources.ListByUnit(ctx, actor.TenantID, unitID)
	if err != nil {
		return nil, s.internal(err, "failed to list resources", zap.String("unit_id", unitID))
	}
	return resources, nil
}

// CreateResource attaches a resource to a unit and rescores the unit.
func (s *StructureService) CreateResource(ctx context.Context, actor models.Identity, unitID string, req dto.CreateResourceRequest) (resource *models.Resource, err error) {
	ctx, span := startSpan(ctx, "StructureService.CreateResource", actor, attribute.String("unit.id", unitID))
	defer func() { endSpan(span, err) }()

	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}
	resource = &models.Resource{
		TenantID: actor.TenantID,
		UnitID:   unitID,
		Kind:     req.Kind,
		Title:    req.Title,
		URL:      req.URL,
	}
	err = s.runGuarded(ctx, actor, models.NodeRef{Kind: models.NodeUnit, ID: unitID}, func(tx *sqlx.Tx) error {
		if req.Sequence != nil {
			resource.Sequence = *req.Sequence
		} else {
			next, seqErr := s.resources.NextSequence(ctx, tx, actor.TenantID, unitID)
			if seqErr != nil {
				return s.internal(seqErr, "failed to allocate resource sequence", zap.String("unit_id", unitID))
			}
			resource.Sequence = next
		}
		if createErr := s.resources.Create(ctx, tx, resource); createErr != nil {
			return s.internal(createErr, "failed to create resource", zap.String("unit_id", unitID))
		}
		_, rescoreErr := s.rescore(ctx, tx, actor.TenantID, unitID)
		return rescoreErr
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, actor, models.EntityResource, resource.ID, models.AuditActionCreate, map[string]interface{}{"unit_id": unitID})
	return resource, nil
}

// UpdateResource patches a resource and rescores its unit.
func (s *StructureService) UpdateResource(ctx context.Context, actor models.Identity, id string, req dto.UpdateResourceRequest) (resource *models.Resource, err error) {
	ctx, span := startSpan(ctx, "StructureService.UpdateResource", actor, attribute.String("resource.id", id))
	defer func() { endSpan(span, err) }()

	if req.Empty() {
		return nil, appErrors.ErrNoUpdates
	}
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}
	err = s.runGuarded(ctx, actor, models.NodeRef{Kind: models.NodeResource, ID: id}, func(tx *sqlx.Tx) error {
		current, findErr := s.resources.FindByID(ctx, tx, actor.TenantID, id)
		if findErr != nil {
			return notFoundOr(findErr, "resource not found", "failed to load resource")
		}
		if req.Kind != nil {
			current.Kind = *req.Kind
		}
		if req.Title != nil {
			current.Title = *req.Title
		}
		if req.URL != nil {
			current.URL = req.URL
		}
		if req.Sequence != nil {
			current.Sequence = *req.Sequence
		}
		if updateErr := s.resources.Update(ctx, tx, current); updateErr != nil {
			return s.internal(updateErr, "failed to update resource", zap.String("resource_id", id))
		}
		resource = current
		_, rescoreErr := s.rescore(ctx, tx, actor.TenantID, current.UnitID)
		return rescoreErr
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, actor, models.EntityResource, id, models.AuditActionUpdate, nil)
	return resource, nil
}

// DeleteResource soft deletes a resource and rescores its unit.
func (s *StructureService) DeleteResource(ctx context.Context, actor models.Identity, id string) (err error) {
	ctx, span := startSpan(ctx, "StructureService.DeleteResource", actor, attribute.String("resource.id", id))
	defer func() { endSpan(span, err) }()

	err = s.runGuarded(ctx, actor, models.NodeRef{Kind: models.NodeResource, ID: id}, func(tx *sqlx.Tx) error {
		current, findErr := s.resources.FindByID(ctx, tx, actor.TenantID, id)
		if findErr != nil {
			return notFoundOr(findErr, "resource not found", "failed to load resource")
		}
		if deleteErr := s.resources.SoftDelete(ctx, tx, actor.TenantID, id); deleteErr != nil {
			return notFoundOr(deleteErr, "resource not found", "failed to delete resource")
		}
		_, rescoreErr := s.rescore(ctx, tx, actor.TenantID, current.UnitID)
		return rescoreErr
	})
	if err != nil {
		return err
	}
	s.emit(ctx, actor, models.EntityResource, id, models.AuditActionDelete, nil)
	return nil
}

func (s *StructureService) rescore(ctx context.Context, exec sqlx.ExtContext, tenantID, unitID string) (*models.Unit, error) {
	unit, err := s.units.FindByID(ctx, exec, tenantID, unitID)
	if err != nil {
		return nil, notFoundOr(err, "unit not found", "failed to load unit")
	}
	active, err := s.resources.CountActive(ctx, exec, tenantID, unitID)
	if err != nil {
		return nil, s.internal(err, "failed to count unit resources", zap.String("unit_id", unitID))
	}
	score := ComputeCompleteness(completenessOf(unit, active))
	if score == unit.CompletenessScore {
		return unit, nil
	}
	if err := s.units.UpdateCompleteness(ctx, exec, tenantID, unitID, score); err != nil {
		return nil, s.internal(err, "failed to store unit completeness", zap.String("unit_id", unitID))
	}
	unit.CompletenessScore = score
	return unit, nil
}

func (s *StructureService) sequenceUpdates(req dto.ReorderRequest) ([]models.SequenceUpdate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reorder payload")
	}
	seen := make(map[string]struct{}, len(req.Items))
	items := make([]models.SequenceUpdate, 0, len(req.Items))
	for _, item := range req.Items {
		if _, dup := seen[item.ID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate id %s in reorder payload", item.ID))
		}
		seen[item.ID] = struct{}{}
		items = append(items, models.SequenceUpdate{ID: item.ID, Sequence: item.Sequence})
	}
	return items, nil
}

func (s *StructureService) emit(ctx context.Context, actor models.Identity, entity, id, action string, details map[string]interface{}) {
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

func reorderError(err error, child, parent string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("every %s must belong to the %s", child, parent))
	}
	return appErrors.Internal(err, "failed to reorder "+child+"s")
}

func uniqueIDs(ids []string, field string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate id %s in %s", id, field))
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func applyUnitContent(unit *models.Unit, objectives, skills []string, activities []dto.Activity) error {
	var err error
	if unit.Objectives, err = encodeList(objectives); err != nil {
		return err
	}
	if unit.Skills, err = encodeList(skills); err != nil {
		return err
	}
	if activities == nil {
		activities = []dto.Activity{}
	}
	payload, err := json.Marshal(activities)
	if err != nil {
		return appErrors.Internal(err, "failed to encode activities")
	}
	unit.Activities = types.JSONText(payload)
	return nil
}

func encodeList(values []string) (types.JSONText, error) {
	if values == nil {
		values = []string{}
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to encode unit content")
	}
	return types.JSONText(payload), nil
}

func encodeRubric(rubric *dto.Rubric) (types.NullJSONText, error) {
	payload, err := json.Marshal(rubric)
	if err != nil {
		return types.NullJSONText{}, appErrors.Internal(err, "failed to encode rubric")
	}
	return types.NullJSONText{JSONText: types.JSONText(payload), Valid: true}, nil
}

func completenessOf(unit *models.Unit, activeResources int) CompletenessInput {
	return CompletenessInput{
		Objectives:      unit.Objectives,
		Skills:          unit.Skills,
		Activities:      unit.Activities,
		Rubric:          unit.Rubric,
		ActiveResources: activeResources,
	}
}
