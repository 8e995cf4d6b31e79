package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/models"
	"github.com/noah-isme/curriculum-api/pkg/response"
)

type approvalService interface {
	GetApproval(ctx context.Context, actor models.Identity, id string) (*models.Approval, error)
	ListApprovals(ctx context.Context, actor models.Identity, filter models.ApprovalFilter) ([]models.Approval, *models.Pagination, error)
	ListReviewers(ctx context.Context, actor models.Identity, term string) ([]models.User, error)
	RequestApproval(ctx context.Context, actor models.Identity, versionID string, req dto.RequestApprovalRequest) (*models.Approval, error)
	Decide(ctx context.Context, actor models.Identity, id string, req dto.DecideApprovalRequest) (*models.Approval, error)
}

// ApprovalHandler exposes the review workflow.
type ApprovalHandler struct {
	service approvalService
}

// NewApprovalHandler constructs the handler.
func NewApprovalHandler(service approvalService) *ApprovalHandler {
	return &ApprovalHandler{service: service}
}

// Request godoc
// @Summary Submit a draft version for review
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Version ID"
// @Param payload body dto.RequestApprovalRequest true "Approval request"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /versions/{id}/approvals [post]
func (h *ApprovalHandler) Request(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.RequestApprovalRequest
	if !bindJSON(c, &req, "invalid approval payload") {
		return
	}
	approval, err := h.service.RequestApproval(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, approval)
}

// List godoc
// @Summary List approvals
// @Tags Approvals
// @Produce json
// @Param versionId query string false "Version ID"
// @Param status query string false "Approval status"
// @Param reviewerId query string false "Assigned reviewer"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /approvals [get]
func (h *ApprovalHandler) List(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	filter := models.ApprovalFilter{
		VersionID:  c.Query("versionId"),
		ReviewerID: c.Query("reviewerId"),
	}
	if status := c.Query("status"); status != "" {
		s := models.ApprovalStatus(status)
		filter.Status = &s
	}
	filter.Page, filter.PageSize = pageParams(c)

	approvals, pagination, err := h.service.ListApprovals(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approvals, pagination)
}

// Get godoc
// @Summary Get an approval
// @Tags Approvals
// @Produce json
// @Param id path string true "Approval ID"
// @Success 200 {object} response.Envelope
// @Router /approvals/{id} [get]
func (h *ApprovalHandler) Get(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	approval, err := h.service.GetApproval(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approval, nil)
}

// Decide godoc
// @Summary Progress or decide an approval
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Approval ID"
// @Param payload body dto.DecideApprovalRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /approvals/{id} [patch]
func (h *ApprovalHandler) Decide(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	var req dto.DecideApprovalRequest
	if !bindJSON(c, &req, "invalid decision payload") {
		return
	}
	approval, err := h.service.Decide(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approval, nil)
}

// Reviewers godoc
// @Summary List users eligible to review
// @Tags Approvals
// @Produce json
// @Param q query string false "Name or email fragment"
// @Success 200 {object} response.Envelope
// @Router /reviewers [get]
func (h *ApprovalHandler) Reviewers(c *gin.Context) {
	actor, ok := identityFromContext(c)
	if !ok {
		return
	}
	reviewers, err := h.service.ListReviewers(c.Request.Context(), actor, c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviewers, nil)
}
