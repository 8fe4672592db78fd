package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/doc-control-api/internal/dto"
	"github.com/noah-isme/doc-control-api/internal/models"
	"github.com/noah-isme/doc-control-api/pkg/database"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
	"github.com/noah-isme/doc-control-api/pkg/storage"
)

const (
	uploadIDPrefix   = "upl_"
	defaultBizType   = "document"
	fileTypeOther    = "OTHER"
	defaultUploadTTL = 15 * time.Minute
)

var extensionFileTypes = map[string]string{
	".dwg":  "CAD_DWG",
	".dxf":  "CAD_DXF",
	".pdf":  "PDF",
	".jpeg": "JPEG",
	".jpg":  "JPEG",
	".png":  "PNG",
	".doc":  "WORD",
	".docx": "WORD",
	".xls":  "EXCEL",
	".xlsx": "EXCEL",
}

// FileTypeFromName maps a file extension to its document file type.
func FileTypeFromName(name string) string {
	if t, ok := extensionFileTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return fileTypeOther
}

// UploadPolicy limits what may be uploaded.
type UploadPolicy struct {
	AllowedTypes []string
	MaxFileSize  int64
	SessionTTL   time.Duration
}

func (p UploadPolicy) allows(fileType string) bool {
	if len(p.AllowedTypes) == 0 {
		return fileType != fileTypeOther
	}
	for _, t := range p.AllowedTypes {
		if strings.EqualFold(t, fileType) {
			return true
		}
	}
	return false
}

type uploadSessionStore interface {
	Save(ctx context.Context, session *models.UploadSession, ttl time.Duration) error
	Get(ctx context.Context, uploadID string) (*models.UploadSession, error)
	Consume(ctx context.Context, uploadID string) (*models.UploadSession, error)
}

type uploadDocuments interface {
	GetCurrentByFileNumber(ctx context.Context, fileNumber string) (*models.Document, error)
	Create(ctx context.Context, doc *models.Document) error
}

// UploadService issues presigned uploads and registers completed ones as documents.
type UploadService struct {
	store     storage.ObjectStore
	sessions  uploadSessionStore
	docs      uploadDocuments
	oplog     operationRecorder
	policy    UploadPolicy
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewUploadService constructs an UploadService.
func NewUploadService(store storage.ObjectStore, sessions uploadSessionStore, docs uploadDocuments, oplog operationRecorder, policy UploadPolicy, validate *validator.Validate, logger *zap.Logger) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if policy.SessionTTL <= 0 {
		policy.SessionTTL = defaultUploadTTL
	}
	if oplog == nil {
		oplog = (*OperationLogService)(nil)
	}
	return &UploadService{
		store:     store,
		sessions:  sessions,
		docs:      docs,
		oplog:     oplog,
		policy:    policy,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// InitUpload validates the file and returns a presigned PUT slot.
func (s *UploadService) InitUpload(ctx context.Context, req dto.UploadInitRequest, actor *models.JWTClaims) (*dto.UploadInitResponse, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}

	fileType := FileTypeFromName(req.FileName)
	if !s.policy.allows(fileType) {
		return nil, appErrors.Clone(appErrors.ErrFileTypeNotAllowed, fmt.Sprintf("file type of %s is not allowed", req.FileName))
	}
	if s.policy.MaxFileSize > 0 && req.FileSize > s.policy.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrFileTooLarge, fmt.Sprintf("file exceeds %d bytes", s.policy.MaxFileSize))
	}

	bizType := strings.ToLower(strings.TrimSpace(req.BizType))
	if bizType == "" {
		bizType = defaultBizType
	}
	now := s.now()
	key := storage.ObjectKey(bizType, req.FileName, now)
	presigned, err := s.store.PresignUpload(ctx, key, req.ContentType, s.policy.SessionTTL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to presign upload")
	}

	session := &models.UploadSession{
		UploadID:    uploadIDPrefix + uuid.NewString(),
		UserID:      actor.UserID,
		ObjectKey:   key,
		BizType:     bizType,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		ContentType: req.ContentType,
		FileType:    fileType,
		Status:      models.UploadStatusInit,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.policy.SessionTTL),
	}
	if err := s.sessions.Save(ctx, session, s.policy.SessionTTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload session")
	}

	return &dto.UploadInitResponse{
		UploadID:  session.UploadID,
		ObjectKey: key,
		UploadURL: presigned.URL,
		Method:    presigned.Method,
		FileType:  fileType,
		ExpiresAt: presigned.ExpiresAt,
	}, nil
}

// CompleteUpload consumes the session and registers a DRAFT current document.
func (s *UploadService) CompleteUpload(ctx context.Context, uploadID string, req dto.CompleteUploadRequest, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document metadata")
	}

	if _, err := s.docs.GetCurrentByFileNumber(ctx, req.FileNumber); err == nil {
		return nil, appErrors.Clone(appErrors.ErrFileNumberExists, fmt.Sprintf("file number %s already exists", req.FileNumber))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check file number")
	}

	session, err := claimUploadSession(ctx, s.sessions, uploadID, actor)
	if err != nil {
		return nil, err
	}

	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		fileName = strings.TrimSuffix(session.FileName, filepath.Ext(session.FileName))
	}
	doc := &models.Document{
		FileNumber:       req.FileNumber,
		FileName:         fileName,
		OriginalName:     session.FileName,
		ProductModel:     req.ProductModel,
		Version:          req.Version,
		FileType:         session.FileType,
		Importance:       req.Importance,
		FileSize:         session.FileSize,
		ObjectKey:        session.ObjectKey,
		ContentType:      session.ContentType,
		Description:      req.Description,
		CompilerID:       actor.UserID,
		CompilerName:     actor.DisplayName(),
		CompileDate:      req.CompileDate,
		Status:           models.DocumentStatusDraft,
		IsCurrentVersion: true,
		CreatedBy:        actor.UserID,
		UpdatedBy:        actor.UserID,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		s.restoreSession(ctx, session)
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.WithCause(appErrors.ErrFileNumberExists, err, fmt.Sprintf("file number %s already exists", req.FileNumber))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register document")
	}

	s.oplog.Record(ctx, operationEntry(actor, models.OperationUpload, models.ObjectTypeDocument, doc.ID,
		fmt.Sprintf("uploaded %s v%s (%s)", doc.FileNumber, doc.Version, doc.OriginalName)))
	return doc, nil
}

func (s *UploadService) restoreSession(ctx context.Context, session *models.UploadSession) {
	returnUploadSession(ctx, s.sessions, session, s.now(), s.logger)
}

// returnUploadSession puts a consumed session back for the rest of its lease
// so the client can retry.
func returnUploadSession(ctx context.Context, sessions uploadSessionStore, session *models.UploadSession, now time.Time, logger *zap.Logger) {
	ttl := session.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return
	}
	if err := sessions.Save(ctx, session, ttl); err != nil {
		logger.Warn("failed to restore upload session", zap.String("upload_id", session.UploadID), zap.Error(err))
	}
}

// claimUploadSession checks ownership and atomically removes the session.
func claimUploadSession(ctx context.Context, sessions uploadSessionStore, uploadID string, actor *models.JWTClaims) (*models.UploadSession, error) {
	session, err := sessions.Get(ctx, uploadID)
	if err != nil {
		return nil, mapSessionErr(err)
	}
	if session.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "upload session belongs to another user")
	}
	claimed, err := sessions.Consume(ctx, uploadID)
	if err != nil {
		return nil, mapSessionErr(err)
	}
	return claimed, nil
}

func mapSessionErr(err error) error {
	if errors.Is(err, appErrors.ErrUploadSessionNotFound) {
		return appErrors.Clone(appErrors.ErrUploadSessionNotFound, "")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upload session")
}
