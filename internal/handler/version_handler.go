package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/models"
	"github.com/noah-isme/curriculum-api/pkg/response"
)

type versionService interface {
	GetVersion(ctx context.Context, actor models.Identity, id string) (*models.Version, error)
	UpdateVersion(ctx context.Context, actor models.Identity, id string, req dto.UpdateVersionRequest) (*models.Version, error)
	DeleteVersion(ctx context.Context, actor models.Identity, id string) error
}

// VersionHandler exposes version endpoints.
type VersionHandler struct {
	service versionService
}

// NewVersionHandler constructs the handler.
func NewVersionHandler(service versionService) *VersionHandler {
	return &VersionHandler{service: service}
}

// Get godoc
// @Summary Get a version
// @Tags Versions
// @Produce json
// @Param id path string true "Version ID"
// @Success 200 {object} response.Envelope
// @Router /versions/{id} [get]
func (h *VersionHandler) Get(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	version, err := h.service.GetVersion(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, version, nil)
}

// Update godoc
// @Summary Update version metadata or move it along a manual lifecycle edge
// @Tags Versions
// @Accept json
// @Produce json
// @Param id path string true "Version ID"
// @Param payload body dto.UpdateVersionRequest true "Version patch"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /versions/{id} [patch]
func (h *VersionHandler) Update(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateVersionRequest
	if !bindJSON(c, &req, "invalid version payload") {
		return
	}
	version, err := h.service.UpdateVersion(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, version, nil)
}

// Delete godoc
// @Summary Soft-delete a version
// @Tags Versions
// @Param id path string true "Version ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /versions/{id} [delete]
func (h *VersionHandler) Delete(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	if err := h.service.DeleteVersion(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
