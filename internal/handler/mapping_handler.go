package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/models"
	"github.com/noah-isme/curriculum-api/pkg/response"
)

type mappingService interface {
	GetMapping(ctx context.Context, actor models.Identity, id string) (*models.Mapping, error)
	ListMappings(ctx context.Context, actor models.Identity, filter models.MappingFilter) ([]models.Mapping, *models.Pagination, error)
	CreateMapping(ctx context.Context, actor models.Identity, req dto.CreateMappingRequest) (*models.Mapping, error)
	UpdateMapping(ctx context.Context, actor models.Identity, id string, req dto.UpdateMappingRequest) (*models.Mapping, error)
	DeleteMapping(ctx context.Context, actor models.Identity, id string) error
}

// MappingHandler exposes rollout mappings.
type MappingHandler struct {
	service mappingService
}

// NewMappingHandler constructs the handler.
func NewMappingHandler(service mappingService) *MappingHandler {
	return &MappingHandler{service: service}
}

// List godoc
// @Summary List mappings
// @Tags Mappings
// @Produce json
// @Param frameworkId query string false "Framework ID"
// @Param versionId query string false "Version ID"
// @Param status query string false "Mapping status"
// @Param targetType query string false "course_template or class_instance"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /mappings [get]
func (h *MappingHandler) List(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	filter := models.MappingFilter{
		FrameworkID: c.Query("frameworkId"),
		VersionID:   c.Query("versionId"),
	}
	if status := c.Query("status"); status != "" {
		s := models.MappingStatus(status)
		filter.Status = &s
	}
	if target := c.Query("targetType"); target != "" {
		tt := models.TargetType(target)
		filter.TargetType = &tt
	}
	filter.Page, filter.PageSize = pageParams(c)

	mappings, pagination, err := h.service.ListMappings(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mappings, pagination)
}

// Get godoc
// @Summary Get a mapping
// @Tags Mappings
// @Produce json
// @Param id path string true "Mapping ID"
// @Success 200 {object} response.Envelope
// @Router /mappings/{id} [get]
func (h *MappingHandler) Get(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	mapping, err := h.service.GetMapping(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mapping, nil)
}

// Create godoc
// @Summary Map an approved or published version onto a rollout target
// @Tags Mappings
// @Accept json
// @Produce json
// @Param payload body dto.CreateMappingRequest true "Mapping payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /mappings [post]
func (h *MappingHandler) Create(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateMappingRequest
	if !bindJSON(c, &req, "invalid mapping payload") {
		return
	}
	mapping, err := h.service.CreateMapping(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, mapping)
}

// Update godoc
// @Summary Update a mapping or advance its status
// @Tags Mappings
// @Accept json
// @Produce json
// @Param id path string true "Mapping ID"
// @Param payload body dto.UpdateMappingRequest true "Mapping patch"
// @Success 200 {object} response.Envelope
// @Router /mappings/{id} [patch]
func (h *MappingHandler) Update(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateMappingRequest
	if !bindJSON(c, &req, "invalid mapping payload") {
		return
	}
	mapping, err := h.service.UpdateMapping(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mapping, nil)
}

// Delete godoc
// @Summary Delete a mapping that is not applied
// @Tags Mappings
// @Param id path string true "Mapping ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /mappings/{id} [delete]
func (h *MappingHandler) Delete(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	if err := h.service.DeleteMapping(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
