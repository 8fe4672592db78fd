package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/doc-control-api/internal/dto"
	"github.com/noah-isme/doc-control-api/internal/models"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
	"github.com/noah-isme/doc-control-api/pkg/response"
)

type documentService interface {
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.DocumentDetail, error)
	Search(ctx context.Context, query dto.DocumentQuery) ([]models.Document, *models.Pagination, error)
}

// DocumentHandler serves document registry reads.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler creates a new handler.
func NewDocumentHandler(svc documentService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// List godoc
// @Summary Search documents
// @Tags Documents
// @Produce json
// @Param file_number query string false "File number (substring)"
// @Param file_name query string false "File name (substring)"
// @Param product_model query string false "Product model"
// @Param status query string false "Status"
// @Param current_only query bool false "Only current versions"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	var query dto.DocumentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	docs, page, err := h.service.Search(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, page)
}

// Get godoc
// @Summary Get a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	claims := requireUser(c)
	if claims == nil {
		return
	}
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.service.Get(c.Request.Context(), id, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
