package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/models"
	"github.com/noah-isme/curriculum-api/pkg/response"
)

type structureService interface {
	ListCourses(ctx context.Context, actor models.Identity, versionID string) ([]models.Course, error)
	CreateCourse(ctx context.Context, actor models.Identity, versionID string, req dto.CreateCourseRequest) (*models.Course, error)
	UpdateCourse(ctx context.Context, actor models.Identity, id string, req dto.UpdateCourseRequest) (*models.Course, error)
	DeleteCourse(ctx context.Context, actor models.Identity, id string) error
	ReorderCourses(ctx context.Context, actor models.Identity, versionID string, req dto.ReorderRequest) ([]models.Course, error)

	ListUnits(ctx context.Context, actor models.Identity, courseID string) ([]models.Unit, error)
	CreateUnit(ctx context.Context, actor models.Identity, courseID string, req dto.CreateUnitRequest) (*models.Unit, error)
	UpdateUnit(ctx context.Context, actor models.Identity, id string, req dto.UpdateUnitRequest) (*models.Unit, error)
	DeleteUnit(ctx context.Context, actor models.Identity, id string) error
	ReorderUnits(ctx context.Context, actor models.Identity, courseID string, req dto.ReorderRequest) ([]models.Unit, error)
	SplitUnit(ctx context.Context, actor models.Identity, id string, req dto.SplitUnitRequest) (*dto.SplitUnitResult, error)

	ListResources(ctx context.Context, actor models.Identity, unitID string) ([]models.Resource, error)
	CreateResource(ctx context.Context, actor models.Identity, unitID string, req dto.CreateResourceRequest) (*models.Resource, error)
	UpdateResource(ctx context.Context, actor models.Identity, id string, req dto.UpdateResourceRequest) (*models.Resource, error)
	DeleteResource(ctx context.Context, actor models.Identity, id string) error
}

// StructureHandler exposes course, unit and resource editing under a version.
type StructureHandler struct {
	service structureService
}

// NewStructureHandler constructs the handler.
func NewStructureHandler(service structureService) *StructureHandler {
	return &StructureHandler{service: service}
}

// ListCourses godoc
// @Summary List courses of a version
// @Tags Structure
// @Produce json
// @Param id path string true "Version ID"
// @Success 200 {object} response.Envelope
// @Router /versions/{id}/courses [get]
func (h *StructureHandler) ListCourses(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	courses, err := h.service.ListCourses(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// CreateCourse godoc
// @Summary Add a course to a draft version
// @Tags Structure
// @Accept json
// @Produce json
// @Param id path string true "Version ID"
// @Param payload body dto.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /versions/{id}/courses [post]
func (h *StructureHandler) CreateCourse(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateCourseRequest
	if !bindJSON(c, &req, "invalid course payload") {
		return
	}
	course, err := h.service.CreateCourse(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// ReorderCourses godoc
// @Summary Reorder the courses of a version
// @Tags Structure
// @Accept json
// @Produce json
// @Param id path string true "Version ID"
// @Param payload body dto.ReorderRequest true "New sequences"
// @Success 200 {object} response.Envelope
// @Router /versions/{id}/courses/order [put]
func (h *StructureHandler) ReorderCourses(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.ReorderRequest
	if !bindJSON(c, &req, "invalid reorder payload") {
		return
	}
	courses, err := h.service.ReorderCourses(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// UpdateCourse godoc
// @Summary Update a course
// @Tags Structure
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.UpdateCourseRequest true "Course patch"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [patch]
func (h *StructureHandler) UpdateCourse(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateCourseRequest
	if !bindJSON(c, &req, "invalid course payload") {
		return
	}
	course, err := h.service.UpdateCourse(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// DeleteCourse godoc
// @Summary Delete a course
// @Tags Structure
// @Param id path string true "Course ID"
// @Success 204
// @Router /courses/{id} [delete]
func (h *StructureHandler) DeleteCourse(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	if err := h.service.DeleteCourse(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListUnits godoc
// @Summary List units of a course
// @Tags Structure
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/units [get]
func (h *StructureHandler) ListUnits(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	units, err := h.service.ListUnits(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, units, nil)
}

// CreateUnit godoc
// @Summary Add a unit to a course
// @Tags Structure
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.CreateUnitRequest true "Unit payload"
// @Success 201 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /courses/{id}/units [post]
func (h *StructureHandler) CreateUnit(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateUnitRequest
	if !bindJSON(c, &req, "invalid unit payload") {
		return
	}
	unit, err := h.service.CreateUnit(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, unit)
}

// ReorderUnits godoc
// @Summary Reorder the units of a course
// @Tags Structure
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.ReorderRequest true "New sequences"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/units/order [put]
func (h *StructureHandler) ReorderUnits(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.ReorderRequest
	if !bindJSON(c, &req, "invalid reorder payload") {
		return
	}
	units, err := h.service.ReorderUnits(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, units, nil)
}

// UpdateUnit godoc
// @Summary Update a unit
// @Tags Structure
// @Accept json
// @Produce json
// @Param id path string true "Unit ID"
// @Param payload body dto.UpdateUnitRequest true "Unit patch"
// @Success 200 {object} response.Envelope
// @Router /units/{id} [patch]
func (h *StructureHandler) UpdateUnit(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateUnitRequest
	if !bindJSON(c, &req, "invalid unit payload") {
		return
	}
	unit, err := h.service.UpdateUnit(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, unit, nil)
}

// DeleteUnit godoc
// @Summary Delete a unit
// @Tags Structure
// @Param id path string true "Unit ID"
// @Success 204
// @Router /units/{id} [delete]
func (h *StructureHandler) DeleteUnit(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	if err := h.service.DeleteUnit(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SplitUnit godoc
// @Summary Split a unit, moving the listed resources into a new unit after it
// @Tags Structure
// @Accept json
// @Produce json
// @Param id path string true "Unit ID"
// @Param payload body dto.SplitUnitRequest true "Split payload"
// @Success 201 {object} response.Envelope
// @Router /units/{id}/split [post]
func (h *StructureHandler) SplitUnit(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.SplitUnitRequest
	if !bindJSON(c, &req, "invalid split payload") {
		return
	}
	result, err := h.service.SplitUnit(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListResources godoc
// @Summary List resources of a unit
// @Tags Structure
// @Produce json
// @Param id path string true "Unit ID"
// @Success 200 {object} response.Envelope
// @Router /units/{id}/resources [get]
func (h *StructureHandler) ListResources(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	resources, err := h.service.ListResources(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resources, nil)
}

// CreateResource godoc
// @Summary Attach a resource to a unit
// @Tags Structure
// @Accept json
// @Produce json
// @Param id path string true "Unit ID"
// @Param payload body dto.CreateResourceRequest true "Resource payload"
// @Success 201 {object} response.Envelope
// @Router /units/{id}/resources [post]
func (h *StructureHandler) CreateResource(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateResourceRequest
	if !bindJSON(c, &req, "invalid resource payload") {
		return
	}
	resource, err := h.service.CreateResource(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resource)
}

// UpdateResource godoc
// @Summary Update a resource
// @Tags Structure
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param payload body dto.UpdateResourceRequest true "Resource patch"
// @Success 200 {object} response.Envelope
// @Router /resources/{id} [patch]
func (h *StructureHandler) UpdateResource(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateResourceRequest
	if !bindJSON(c, &req, "invalid resource payload") {
		return
	}
	resource, err := h.service.UpdateResource(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resource, nil)
}

// DeleteResource godoc
// @Summary Delete a resource
// @Tags Structure
// @Param id path string true "Resource ID"
// @Success 204
// @Router /resources/{id} [delete]
func (h *StructureHandler) DeleteResource(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	if err := h.service.DeleteResource(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
