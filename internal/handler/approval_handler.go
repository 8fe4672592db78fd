package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/doc-control-api/internal/dto"
	"github.com/noah-isme/doc-control-api/internal/models"
	"github.com/noah-isme/doc-control-api/pkg/response"
)

type lifecycleService interface {
	Submit(ctx context.Context, documentID string, actor *models.JWTClaims) (*models.Document, error)
	Decide(ctx context.Context, documentID string, decision models.ApprovalStatus, comment string, actor *models.JWTClaims) (*models.Document, error)
	Revise(ctx context.Context, documentID string, actor *models.JWTClaims) (*models.Document, error)
	ResolvePendingStep(ctx context.Context, documentID string, actor *models.JWTClaims) (*models.Document, error)
	Progress(ctx context.Context, documentID string) (*models.ApprovalProgress, error)
	History(ctx context.Context, documentID string) ([]models.ApprovalRecord, error)
	Todo(ctx context.Context, actor *models.JWTClaims) ([]models.ApprovalTask, error)
}

// ApprovalHandler exposes the approval workflow.
type ApprovalHandler struct {
	service lifecycleService
}

// NewApprovalHandler creates a new handler.
func NewApprovalHandler(svc lifecycleService) *ApprovalHandler {
	return &ApprovalHandler{service: svc}
}

type documentAction func(ctx context.Context, documentID string, actor *models.JWTClaims) (*models.Document, error)

func (h *ApprovalHandler) runDocumentAction(c *gin.Context, action documentAction) {
	claims := requireUser(c)
	if claims == nil {
		return
	}
	id, ok := pathParam(c, "documentId")
	if !ok {
		return
	}
	doc, err := action(c.Request.Context(), id, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Submit godoc
// @Summary Submit a draft for approval
// @Tags Approvals
// @Produce json
// @Param documentId path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /approvals/submit/{documentId} [post]
func (h *ApprovalHandler) Submit(c *gin.Context) {
	h.runDocumentAction(c, h.service.Submit)
}

// Decide godoc
// @Summary Record an approval decision
// @Description APPROVED advances the flow; REJECTED and MODIFY_REQUIRED return the document to its author
// @Tags Approvals
// @Accept json
// @Produce json
// @Param documentId path string true "Document ID"
// @Param payload body dto.DecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /approvals/approve/{documentId} [post]
func (h *ApprovalHandler) Decide(c *gin.Context) {
	claims := requireUser(c)
	if claims == nil {
		return
	}
	id, ok := pathParam(c, "documentId")
	if !ok {
		return
	}
	var req dto.DecisionRequest
	if !bindJSON(c, &req, "invalid decision payload") {
		return
	}
	doc, err := h.service.Decide(c.Request.Context(), id, req.Decision, req.Comment, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Revise godoc
// @Summary Return a rejected document to draft
// @Tags Approvals
// @Produce json
// @Param documentId path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /approvals/revise/{documentId} [post]
func (h *ApprovalHandler) Revise(c *gin.Context) {
	h.runDocumentAction(c, h.service.Revise)
}

// Resolve godoc
// @Summary Retry approver resolution for a stuck step
// @Tags Approvals
// @Produce json
// @Param documentId path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /approvals/resolve/{documentId} [post]
func (h *ApprovalHandler) Resolve(c *gin.Context) {
	h.runDocumentAction(c, h.service.ResolvePendingStep)
}

// Progress godoc
// @Summary Approval progress of the current round
// @Tags Approvals
// @Produce json
// @Param documentId path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /approvals/progress/{documentId} [get]
func (h *ApprovalHandler) Progress(c *gin.Context) {
	id, ok := pathParam(c, "documentId")
	if !ok {
		return
	}
	progress, err := h.service.Progress(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// History godoc
// @Summary Every approval record of a document across rounds
// @Tags Approvals
// @Produce json
// @Param documentId path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /approvals/history/{documentId} [get]
func (h *ApprovalHandler) History(c *gin.Context) {
	id, ok := pathParam(c, "documentId")
	if !ok {
		return
	}
	records, err := h.service.History(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Todo godoc
// @Summary Approval steps waiting on the caller
// @Tags Approvals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /approvals/todo [get]
func (h *ApprovalHandler) Todo(c *gin.Context) {
	claims := requireUser(c)
	if claims == nil {
		return
	}
	tasks, err := h.service.Todo(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tasks, nil)
}
