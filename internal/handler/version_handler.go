package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/doc-control-api/internal/dto"
	"github.com/noah-isme/doc-control-api/internal/models"
	"github.com/noah-isme/doc-control-api/pkg/response"
)

type versionService interface {
	CreateVersion(ctx context.Context, documentID string, req dto.CreateVersionRequest, actor *models.JWTClaims) (*models.Document, error)
	ListVersions(ctx context.Context, fileNumber string) ([]models.Document, error)
	Lineage(ctx context.Context, documentID string) ([]models.Document, error)
	Restore(ctx context.Context, versionID string, actor *models.JWTClaims) (*models.Document, error)
}

// VersionHandler exposes version history.
type VersionHandler struct {
	service versionService
}

// NewVersionHandler creates a new handler.
func NewVersionHandler(svc versionService) *VersionHandler {
	return &VersionHandler{service: svc}
}

// Create godoc
// @Summary Derive a new version
// @Tags Versions
// @Accept json
// @Produce json
// @Param documentId path string true "Source document ID"
// @Param payload body dto.CreateVersionRequest true "Version"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /versions/create/{documentId} [post]
func (h *VersionHandler) Create(c *gin.Context) {
	claims := requireUser(c)
	if claims == nil {
		return
	}
	id, ok := pathParam(c, "documentId")
	if !ok {
		return
	}
	var req dto.CreateVersionRequest
	if !bindJSON(c, &req, "invalid version payload") {
		return
	}
	doc, err := h.service.CreateVersion(c.Request.Context(), id, req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// List godoc
// @Summary Versions of a file number
// @Tags Versions
// @Produce json
// @Param fileNumber path string true "File number"
// @Success 200 {object} response.Envelope
// @Router /versions/{fileNumber} [get]
func (h *VersionHandler) List(c *gin.Context) {
	fileNumber, ok := pathParam(c, "fileNumber")
	if !ok {
		return
	}
	docs, err := h.service.ListVersions(c.Request.Context(), fileNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Lineage godoc
// @Summary Parent chain of a version, root first
// @Tags Versions
// @Produce json
// @Param documentId path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /versions/lineage/{documentId} [get]
func (h *VersionHandler) Lineage(c *gin.Context) {
	id, ok := pathParam(c, "documentId")
	if !ok {
		return
	}
	docs, err := h.service.Lineage(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Restore godoc
// @Summary Make a historical version current
// @Tags Versions
// @Produce json
// @Param versionId path string true "Version ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /versions/restore/{versionId} [post]
func (h *VersionHandler) Restore(c *gin.Context) {
	claims := requireUser(c)
	if claims == nil {
		return
	}
	id, ok := pathParam(c, "versionId")
	if !ok {
		return
	}
	doc, err := h.service.Restore(c.Request.Context(), id, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}
