package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/doc-control-api/internal/models"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
	"github.com/noah-isme/doc-control-api/pkg/export"
)

const maxExportRows = 5000

type requestMetaKey struct{}

// RequestMeta carries client details recorded on operation logs.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// WithRequestMeta stores client details on ctx.
func WithRequestMeta(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, RequestMeta{IP: ip, UserAgent: userAgent})
}

// RequestMetaFrom returns the client details stored on ctx, if any.
func RequestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

type operationLogStore interface {
	Create(ctx context.Context, entry *models.OperationLog) error
	Search(ctx context.Context, filter models.OperationLogFilter) ([]models.OperationLog, int, error)
	ListForExport(ctx context.Context, filter models.OperationLogFilter, limit int) ([]models.OperationLog, error)
}

type operationRecorder interface {
	Record(ctx context.Context, entry *models.OperationLog)
}

// OperationLogService appends and queries the audit trail of user operations.
type OperationLogService struct {
	repo   operationLogStore
	logger *zap.Logger
	now    func() time.Time
}

// NewOperationLogService constructs an OperationLogService.
func NewOperationLogService(repo operationLogStore, logger *zap.Logger) *OperationLogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperationLogService{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Record appends an entry. Failures are logged and never returned.
func (s *OperationLogService) Record(ctx context.Context, entry *models.OperationLog) {
	if s == nil || entry == nil {
		return
	}
	meta := RequestMetaFrom(ctx)
	if entry.IPAddress == "" {
		entry.IPAddress = meta.IP
	}
	if entry.UserAgent == "" {
		entry.UserAgent = meta.UserAgent
	}
	if entry.Result == "" {
		entry.Result = models.OperationResultSuccess
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record operation log",
			zap.String("operation", string(entry.OperationType)),
			zap.String("user_id", entry.UserID),
			zap.Error(err),
		)
	}
}

// Search returns a page of operation logs.
func (s *OperationLogService) Search(ctx context.Context, filter models.OperationLogFilter) ([]models.OperationLog, *models.Pagination, error) {
	if err := validateLogRange(filter); err != nil {
		return nil, nil, err
	}
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	logs, total, err := s.repo.Search(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search operation logs")
	}
	return logs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Export renders matching logs as CSV or PDF.
func (s *OperationLogService) Export(ctx context.Context, filter models.OperationLogFilter, format string) (*export.File, error) {
	if err := validateLogRange(filter); err != nil {
		return nil, err
	}
	logs, err := s.repo.ListForExport(ctx, filter, maxExportRows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load operation logs")
	}

	data := export.Dataset{
		Title:   "Operation Log",
		Headers: []string{"Time", "User", "Operation", "Object", "Result", "Content", "IP"},
	}
	for _, entry := range logs {
		object := entry.ObjectType
		if entry.ObjectID != nil {
			object = fmt.Sprintf("%s %s", entry.ObjectType, *entry.ObjectID)
		}
		data.Append(
			entry.CreatedAt.Format(time.RFC3339),
			entry.UserName,
			string(entry.OperationType),
			object,
			entry.Result,
			entry.Content,
			entry.IPAddress,
		)
	}

	file, err := export.Render(format, "operation-logs-"+s.now().Format("20060102-150405"), data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return file, nil
}

func validateLogRange(filter models.OperationLogFilter) error {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return appErrors.Clone(appErrors.ErrValidation, "end time must not be before start time")
	}
	return nil
}

func operationEntry(actor *models.JWTClaims, op models.OperationType, objectType, objectID, content string) *models.OperationLog {
	entry := &models.OperationLog{
		OperationType: op,
		Content:       content,
		ObjectType:    objectType,
		Result:        models.OperationResultSuccess,
	}
	if actor != nil {
		entry.UserID = actor.UserID
		entry.UserName = actor.DisplayName()
	}
	if objectID != "" {
		id := objectID
		entry.ObjectID = &id
	}
	return entry
}
