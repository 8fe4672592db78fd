package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/doc-control-api/internal/dto"
	"github.com/noah-isme/doc-control-api/internal/models"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
)

type documentReader interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	Search(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error)
}

// DocumentService exposes read access to the document registry.
type DocumentService struct {
	docs        documentReader
	files       downloadPresigner
	downloadTTL time.Duration
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewDocumentService constructs a DocumentService. files may be nil.
func NewDocumentService(docs documentReader, files downloadPresigner, downloadTTL time.Duration, metrics *MetricsService, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if downloadTTL <= 0 {
		downloadTTL = 30 * time.Minute
	}
	return &DocumentService{docs: docs, files: files, downloadTTL: downloadTTL, metrics: metrics, logger: logger}
}

// Get returns a document. The uploader and document administrators also get a
// short-lived download link.
func (s *DocumentService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.DocumentDetail, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, mapDocumentErr(err)
	}
	detail := &dto.DocumentDetail{Document: *doc}
	if s.files == nil || doc.ObjectKey == "" || !canPreview(doc, actor) {
		return detail, nil
	}
	url, err := s.files.PresignDownload(ctx, doc.ObjectKey, s.downloadTTL)
	if err != nil {
		s.logger.Warn("failed to presign document preview", zap.String("document_id", doc.ID), zap.Error(err))
		return detail, nil
	}
	detail.DownloadURL = url
	return detail, nil
}

// Search lists documents matching the query.
func (s *DocumentService) Search(ctx context.Context, query dto.DocumentQuery) ([]models.Document, *models.Pagination, error) {
	filter := models.DocumentFilter{
		FileNumber:   strings.TrimSpace(query.FileNumber),
		FileName:     strings.TrimSpace(query.FileName),
		ProductModel: strings.TrimSpace(query.ProductModel),
		CompilerID:   strings.TrimSpace(query.CompilerID),
		CurrentOnly:  query.CurrentOnly,
	}
	if query.Status != "" {
		status := models.DocumentStatus(strings.ToUpper(query.Status))
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown document status "+query.Status)
		}
		filter.Status = status
	}
	filter.Page, filter.PageSize = models.NormalizePage(query.Page, query.PageSize)

	start := time.Now()
	docs, total, err := s.docs.Search(ctx, filter)
	s.metrics.ObserveDBQuery("document_search", time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search documents")
	}
	return docs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func canPreview(doc *models.Document, actor *models.JWTClaims) bool {
	if actor == nil {
		return false
	}
	return doc.CreatedBy == actor.UserID || actor.HasRole(models.RoleAdmin, models.RoleDocAdmin, models.RoleAuditor)
}
