package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/middleware"
	"github.com/noah-isme/curriculum-api/internal/models"
	"github.com/noah-isme/curriculum-api/pkg/response"
)

type frameworkService interface {
	ListFrameworks(ctx context.Context, actor models.Identity, filter models.FrameworkFilter) ([]models.Framework, *models.Pagination, error)
	GetFramework(ctx context.Context, actor models.Identity, id string) (*dto.FrameworkDetail, error)
	CreateFramework(ctx context.Context, actor models.Identity, req dto.CreateFrameworkRequest) (*dto.FrameworkDetail, error)
}

type frameworkVersionService interface {
	ListVersions(ctx context.Context, actor models.Identity, frameworkID string) ([]models.Version, error)
	CreateVersion(ctx context.Context, actor models.Identity, frameworkID string, req dto.CreateVersionRequest) (*models.Version, error)
	GetVersionStats(ctx context.Context, actor models.Identity, frameworkID string) (*models.VersionStats, error)
}

// FrameworkHandler exposes framework endpoints and the framework-scoped version routes.
type FrameworkHandler struct {
	frameworks frameworkService
	versions   frameworkVersionService
}

// NewFrameworkHandler constructs the handler.
func NewFrameworkHandler(frameworks frameworkService, versions frameworkVersionService) *FrameworkHandler {
	return &FrameworkHandler{frameworks: frameworks, versions: versions}
}

// List godoc
// @Summary List frameworks
// @Tags Frameworks
// @Produce json
// @Param q query string false "Search code or name"
// @Param status query string false "Mirrored latest version state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort column (code,name,created_at,updated_at)"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /frameworks [get]
func (h *FrameworkHandler) List(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	var filter models.FrameworkFilter
	filter.Search = strings.TrimSpace(c.Query("q"))
	if status := c.Query("status"); status != "" {
		state := models.VersionState(status)
		filter.Status = &state
	}
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	frameworks, pagination, err := h.frameworks.ListFrameworks(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, frameworks, pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get a framework with its latest version
// @Tags Frameworks
// @Produce json
// @Param id path string true "Framework ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /frameworks/{id} [get]
func (h *FrameworkHandler) Get(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	framework, err := h.frameworks.GetFramework(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, framework, nil)
}

// Create godoc
// @Summary Create a framework and its initial draft version
// @Tags Frameworks
// @Accept json
// @Produce json
// @Param payload body dto.CreateFrameworkRequest true "Framework payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /frameworks [post]
func (h *FrameworkHandler) Create(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateFrameworkRequest
	if !bindJSON(c, &req, "invalid framework payload") {
		return
	}
	framework, err := h.frameworks.CreateFramework(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, framework)
}

// ListVersions godoc
// @Summary List versions of a framework
// @Tags Versions
// @Produce json
// @Param id path string true "Framework ID"
// @Success 200 {object} response.Envelope
// @Router /frameworks/{id}/versions [get]
func (h *FrameworkHandler) ListVersions(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	versions, err := h.versions.ListVersions(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// CreateVersion godoc
// @Summary Create a draft version
// @Tags Versions
// @Accept json
// @Produce json
// @Param id path string true "Framework ID"
// @Param payload body dto.CreateVersionRequest true "Version payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /frameworks/{id}/versions [post]
func (h *FrameworkHandler) CreateVersion(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateVersionRequest
	if !bindJSON(c, &req, "invalid version payload") {
		return
	}
	version, err := h.versions.CreateVersion(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, version)
}

// Stats godoc
// @Summary Version counts per lifecycle state
// @Tags Versions
// @Produce json
// @Param id path string true "Framework ID"
// @Success 200 {object} response.Envelope
// @Router /frameworks/{id}/stats [get]
func (h *FrameworkHandler) Stats(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	stats, err := h.versions.GetVersionStats(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}
