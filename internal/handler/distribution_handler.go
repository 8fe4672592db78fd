package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/doc-control-api/internal/dto"
	"github.com/noah-isme/doc-control-api/internal/models"
	"github.com/noah-isme/doc-control-api/pkg/response"
)

type distributionService interface {
	Distribute(ctx context.Context, req dto.DistributeRequest, actor *models.JWTClaims) ([]models.DocumentDistribution, error)
	RecordView(ctx context.Context, distributionID string, actor *models.JWTClaims) (*models.DistributionReceiver, error)
	RecordDownload(ctx context.Context, distributionID string, actor *models.JWTClaims) (*dto.DownloadTicket, error)
	ListReceivers(ctx context.Context, distributionID string) ([]models.DistributionReceiver, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.DocumentDistribution, error)
	ListInbox(ctx context.Context, actor *models.JWTClaims, page, size int) ([]models.InboxItem, *models.Pagination, error)
}

type retirementService interface {
	Recall(ctx context.Context, ids []string, actor *models.JWTClaims) ([]models.Document, error)
	Obsolete(ctx context.Context, ids []string, actor *models.JWTClaims) ([]models.Document, error)
}

// DistributionHandler exposes distribution, acknowledgement and retirement endpoints.
type DistributionHandler struct {
	service   distributionService
	lifecycle retirementService
}

// NewDistributionHandler creates a new handler.
func NewDistributionHandler(svc distributionService, lifecycle retirementService) *DistributionHandler {
	return &DistributionHandler{service: svc, lifecycle: lifecycle}
}

// Distribute godoc
// @Summary Distribute approved documents
// @Tags Distributions
// @Accept json
// @Produce json
// @Param payload body dto.DistributeRequest true "Targets"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /distributions/distribute [post]
func (h *DistributionHandler) Distribute(c *gin.Context) {
	claims := requireUser(c)
	if claims == nil {
		return
	}
	var req dto.DistributeRequest
	if !bindJSON(c, &req, "invalid distribution payload") {
		return
	}
	dists, err := h.service.Distribute(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dists)
}

// Recall godoc
// @Summary Recall distributed documents
// @Tags Distributions
// @Accept json
// @Produce json
// @Param payload body dto.DocumentIDsRequest true "Documents"
// @Success 200 {object} response.Envelope
// @Router /distributions/recall [post]
func (h *DistributionHandler) Recall(c *gin.Context) {
	h.retire(c, h.lifecycle.Recall)
}

// Obsolete godoc
// @Summary Mark documents obsolete
// @Tags Distributions
// @Accept json
// @Produce json
// @Param payload body dto.DocumentIDsRequest true "Documents"
// @Success 200 {object} response.Envelope
// @Router /distributions/obsolete [post]
func (h *DistributionHandler) Obsolete(c *gin.Context) {
	h.retire(c, h.lifecycle.Obsolete)
}

func (h *DistributionHandler) retire(c *gin.Context, action func(context.Context, []string, *models.JWTClaims) ([]models.Document, error)) {
	claims := requireUser(c)
	if claims == nil {
		return
	}
	var req dto.DocumentIDsRequest
	if !bindJSON(c, &req, "invalid document list") {
		return
	}
	docs, err := action(c.Request.Context(), req.DocumentIDs, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// View godoc
// @Summary Acknowledge viewing a distribution
// @Tags Distributions
// @Produce json
// @Param distributionId path string true "Distribution ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /distributions/view/{distributionId} [post]
func (h *DistributionHandler) View(c *gin.Context) {
	claims := requireUser(c)
	if claims == nil {
		return
	}
	id, ok := pathParam(c, "distributionId")
	if !ok {
		return
	}
	receipt, err := h.service.RecordView(c.Request.Context(), id, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt, nil)
}

// Download godoc
// @Summary Acknowledge a download and get the file link
// @Tags Distributions
// @Produce json
// @Param distributionId path string true "Distribution ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /distributions/download/{distributionId} [post]
func (h *DistributionHandler) Download(c *gin.Context) {
	claims := requireUser(c)
	if claims == nil {
		return
	}
	id, ok := pathParam(c, "distributionId")
	if !ok {
		return
	}
	ticket, err := h.service.RecordDownload(c.Request.Context(), id, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ticket, nil)
}

// Receivers godoc
// @Summary Receiver acknowledgement state
// @Tags Distributions
// @Produce json
// @Param distributionId path string true "Distribution ID"
// @Success 200 {object} response.Envelope
// @Router /distributions/{distributionId}/receivers [get]
func (h *DistributionHandler) Receivers(c *gin.Context) {
	id, ok := pathParam(c, "distributionId")
	if !ok {
		return
	}
	receivers, err := h.service.ListReceivers(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receivers, nil)
}

// ByDocument godoc
// @Summary Distributions of a document
// @Tags Distributions
// @Produce json
// @Param documentId path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /distributions/document/{documentId} [get]
func (h *DistributionHandler) ByDocument(c *gin.Context) {
	id, ok := pathParam(c, "documentId")
	if !ok {
		return
	}
	dists, err := h.service.ListByDocument(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dists, nil)
}

// Inbox godoc
// @Summary Distributions received by the caller
// @Tags Distributions
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /distributions/inbox [get]
func (h *DistributionHandler) Inbox(c *gin.Context) {
	claims := requireUser(c)
	if claims == nil {
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	items, pagination, err := h.service.ListInbox(c.Request.Context(), claims, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}
