package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/doc-control-api/internal/dto"
	"github.com/noah-isme/doc-control-api/internal/models"
	"github.com/noah-isme/doc-control-api/pkg/response"
)

type uploadService interface {
	InitUpload(ctx context.Context, req dto.UploadInitRequest, actor *models.JWTClaims) (*dto.UploadInitResponse, error)
	CompleteUpload(ctx context.Context, uploadID string, req dto.CompleteUploadRequest, actor *models.JWTClaims) (*models.Document, error)
}

// UploadHandler issues upload slots and registers uploaded documents.
type UploadHandler struct {
	service uploadService
}

// NewUploadHandler creates a new handler.
func NewUploadHandler(svc uploadService) *UploadHandler {
	return &UploadHandler{service: svc}
}

// Init godoc
// @Summary Start an upload
// @Description Returns a presigned URL the client uploads the binary to
// @Tags Uploads
// @Accept json
// @Produce json
// @Param payload body dto.UploadInitRequest true "File metadata"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /uploads/init [post]
func (h *UploadHandler) Init(c *gin.Context) {
	claims := requireUser(c)
	if claims == nil {
		return
	}
	var req dto.UploadInitRequest
	if !bindJSON(c, &req, "invalid upload payload") {
		return
	}
	res, err := h.service.InitUpload(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Complete godoc
// @Summary Register an uploaded document
// @Tags Uploads
// @Accept json
// @Produce json
// @Param uploadId path string true "Upload ID"
// @Param payload body dto.CompleteUploadRequest true "Document metadata"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /uploads/{uploadId}/complete [post]
func (h *UploadHandler) Complete(c *gin.Context) {
	claims := requireUser(c)
	if claims == nil {
		return
	}
	uploadID, ok := pathParam(c, "uploadId")
	if !ok {
		return
	}
	var req dto.CompleteUploadRequest
	if !bindJSON(c, &req, "invalid document payload") {
		return
	}
	doc, err := h.service.CompleteUpload(c.Request.Context(), uploadID, req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}
