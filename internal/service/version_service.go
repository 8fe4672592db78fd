package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/doc-control-api/internal/dto"
	"github.com/noah-isme/doc-control-api/internal/models"
	"github.com/noah-isme/doc-control-api/internal/repository"
	"github.com/noah-isme/doc-control-api/pkg/database"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
)

const maxLineageDepth = 256

type versionDocuments interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	Create(ctx context.Context, doc *models.Document) error
	VersionExists(ctx context.Context, fileNumber, version string) (bool, error)
	ListByFileNumber(ctx context.Context, fileNumber string) ([]models.Document, error)
}

type versionRestorer interface {
	Restore(ctx context.Context, versionID string, actor *models.JWTClaims) (*models.Document, error)
}

// VersionService derives new versions and exposes version history. Promotion
// to current goes through the lifecycle controller.
type VersionService struct {
	docs      versionDocuments
	sessions  uploadSessionStore
	lifecycle versionRestorer
	cache     *CacheService
	oplog     operationRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewVersionService constructs a VersionService. sessions may be nil when new
// versions never carry a fresh upload.
func NewVersionService(docs versionDocuments, sessions uploadSessionStore, lifecycle versionRestorer, cache *CacheService, oplog operationRecorder, validate *validator.Validate, logger *zap.Logger) *VersionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if oplog == nil {
		oplog = (*OperationLogService)(nil)
	}
	return &VersionService{docs: docs, sessions: sessions, lifecycle: lifecycle, cache: cache, oplog: oplog, validator: validate, logger: logger}
}

// CreateVersion copies the descriptive fields of documentID into a new
// non-current DRAFT version.
func (s *VersionService) CreateVersion(ctx context.Context, documentID string, req dto.CreateVersionRequest, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid version payload")
	}
	newVersion := strings.TrimSpace(req.NewVersion)

	source, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, mapDocumentErr(err)
	}
	exists, err := s.docs.VersionExists(ctx, source.FileNumber, newVersion)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check version")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrVersionExists, fmt.Sprintf("version %s of %s already exists", newVersion, source.FileNumber))
	}

	parentID := source.ID
	doc := &models.Document{
		FileNumber:       source.FileNumber,
		FileName:         source.FileName,
		OriginalName:     source.OriginalName,
		ProductModel:     source.ProductModel,
		Version:          newVersion,
		FileType:         source.FileType,
		Importance:       source.Importance,
		FileSize:         source.FileSize,
		ObjectKey:        source.ObjectKey,
		ThumbnailKey:     source.ThumbnailKey,
		ContentType:      source.ContentType,
		Description:      req.ChangeDescription,
		CompilerID:       actor.UserID,
		CompilerName:     actor.DisplayName(),
		CompileDate:      req.ChangeDate,
		Status:           models.DocumentStatusDraft,
		IsCurrentVersion: false,
		ParentVersionID:  &parentID,
		CreatedBy:        actor.UserID,
		UpdatedBy:        actor.UserID,
	}

	var session *models.UploadSession
	if req.UploadID != "" {
		if s.sessions == nil {
			return nil, appErrors.Clone(appErrors.ErrUploadSessionNotFound, "")
		}
		session, err = claimUploadSession(ctx, s.sessions, req.UploadID, actor)
		if err != nil {
			return nil, err
		}
		doc.OriginalName = session.FileName
		doc.FileSize = session.FileSize
		doc.ObjectKey = session.ObjectKey
		doc.ContentType = session.ContentType
		doc.FileType = session.FileType
		doc.ThumbnailKey = nil
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		if session != nil {
			returnUploadSession(ctx, s.sessions, session, time.Now(), s.logger)
		}
		if database.IsUniqueViolation(err, repository.VersionConstraint) {
			return nil, appErrors.WithCause(appErrors.ErrVersionExists, err, fmt.Sprintf("version %s of %s already exists", newVersion, source.FileNumber))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create version")
	}

	s.cache.Evict(ctx, VersionListKey(doc.FileNumber))
	content := fmt.Sprintf("created %s v%s from v%s", doc.FileNumber, doc.Version, source.Version)
	if reason := strings.TrimSpace(req.ChangeReason); reason != "" {
		content += ": " + reason
	}
	s.oplog.Record(ctx, operationEntry(actor, models.OperationCreateVersion, models.ObjectTypeDocument, doc.ID, content))
	return doc, nil
}

// ListVersions returns every version of a file number, oldest first.
func (s *VersionService) ListVersions(ctx context.Context, fileNumber string) ([]models.Document, error) {
	fileNumber = strings.TrimSpace(fileNumber)
	if fileNumber == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file number is required")
	}
	key := VersionListKey(fileNumber)
	var cached []models.Document
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	docs, err := s.docs.ListByFileNumber(ctx, fileNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list versions")
	}
	if len(docs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrDocumentNotFound, fmt.Sprintf("no versions for file number %s", fileNumber))
	}
	_ = s.cache.Set(ctx, key, docs, 0)
	return docs, nil
}

// Lineage walks parent links from documentID back to the first version and
// returns them root first.
func (s *VersionService) Lineage(ctx context.Context, documentID string) ([]models.Document, error) {
	var chain []models.Document
	seen := make(map[string]struct{})
	id := documentID
	for id != "" {
		if _, loop := seen[id]; loop {
			s.logger.Warn("version lineage contains a cycle", zap.String("document_id", documentID), zap.String("at", id))
			break
		}
		if len(chain) >= maxLineageDepth {
			break
		}
		seen[id] = struct{}{}
		doc, err := s.docs.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) && len(chain) > 0 {
				break
			}
			return nil, mapDocumentErr(err)
		}
		chain = append(chain, *doc)
		id = ""
		if doc.ParentVersionID != nil {
			id = *doc.ParentVersionID
		}
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Restore makes a historical version current again; it must be re-approved.
func (s *VersionService) Restore(ctx context.Context, versionID string, actor *models.JWTClaims) (*models.Document, error) {
	return s.lifecycle.Restore(ctx, versionID, actor)
}
