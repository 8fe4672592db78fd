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
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
	"github.com/noah-isme/doc-control-api/pkg/storage"
)

type distributionDocuments interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListForUpdate(ctx context.Context, ids []string) ([]models.Document, error)
}

type distributionStore interface {
	Create(ctx context.Context, dist *models.DocumentDistribution) error
	CreateReceivers(ctx context.Context, receivers []*models.DistributionReceiver) error
	GetByID(ctx context.Context, id string) (*models.DocumentDistribution, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.DocumentDistribution, error)
	ListReceivers(ctx context.Context, distributionID string) ([]models.DistributionReceiver, error)
	GetReceiver(ctx context.Context, distributionID, receiverID string) (*models.DistributionReceiver, error)
	MarkViewed(ctx context.Context, distributionID, receiverID string, at time.Time) (bool, error)
	MarkDownloaded(ctx context.Context, distributionID, receiverID string, at time.Time) (bool, error)
	ListInbox(ctx context.Context, receiverID string, page, size int) ([]models.InboxItem, int, error)
}

type receiverDirectory interface {
	UsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	UsersInDepartments(ctx context.Context, departmentIDs []string) ([]models.User, error)
	UsersInGroups(ctx context.Context, groupIDs []string) ([]models.User, error)
	DepartmentNames(ctx context.Context, ids []string) (map[string]string, error)
	GroupNames(ctx context.Context, ids []string) (map[string]string, error)
}

type downloadPresigner interface {
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (*storage.PresignedURL, error)
}

// DistributionService sends approved current documents to receivers and tracks
// their acknowledgement. It never changes document status.
type DistributionService struct {
	tx          txRunner
	docs        distributionDocuments
	store       distributionStore
	dir         receiverDirectory
	files       downloadPresigner
	downloadTTL time.Duration
	notifier    notificationDispatcher
	oplog       operationRecorder
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// DistributionDeps groups the collaborators of DistributionService.
type DistributionDeps struct {
	Tx           txRunner
	Documents    distributionDocuments
	Store        distributionStore
	Directory    receiverDirectory
	Files        downloadPresigner
	DownloadTTL  time.Duration
	Notifier     notificationDispatcher
	OperationLog operationRecorder
	Metrics      *MetricsService
	Validator    *validator.Validate
	Logger       *zap.Logger
}

// NewDistributionService constructs a DistributionService.
func NewDistributionService(deps DistributionDeps) *DistributionService {
	svc := &DistributionService{
		tx:          deps.Tx,
		docs:        deps.Documents,
		store:       deps.Store,
		dir:         deps.Directory,
		files:       deps.Files,
		downloadTTL: deps.DownloadTTL,
		notifier:    deps.Notifier,
		oplog:       deps.OperationLog,
		metrics:     deps.Metrics,
		validator:   deps.Validator,
		logger:      deps.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.validator == nil {
		svc.validator = validator.New()
	}
	if svc.notifier == nil {
		svc.notifier = (*NotificationService)(nil)
	}
	if svc.oplog == nil {
		svc.oplog = (*OperationLogService)(nil)
	}
	if svc.downloadTTL <= 0 {
		svc.downloadTTL = 30 * time.Minute
	}
	return svc
}

type expandedTargets struct {
	receivers []models.User
	names     []string
}

// Distribute creates one distribution per document with deduplicated receivers.
// Every document is re-validated under its row lock; any failure rolls back the
// whole batch.
func (s *DistributionService) Distribute(ctx context.Context, req dto.DistributeRequest, actor *models.JWTClaims) ([]models.DocumentDistribution, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if !req.TargetType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrDistributionTarget, fmt.Sprintf("unknown target type %q", req.TargetType))
	}
	targetIDs := uniqueStrings(req.TargetIDs)
	if len(targetIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrDistributionTarget, "at least one target is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid distribution payload")
	}
	docIDs := uniqueStrings(req.DocumentIDs)

	targets, err := s.expand(ctx, req.TargetType, targetIDs, req.TargetNames)
	if err != nil {
		return nil, err
	}

	var (
		created []models.DocumentDistribution
		notes   [][]models.Notification
		entries []*models.OperationLog
		count   int
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		docs, err := s.docs.ListForUpdate(ctx, docIDs)
		if err != nil {
			return wrapWrite(err, "failed to lock documents")
		}
		if missing := missingDocuments(docIDs, docs); len(missing) > 0 {
			return appErrors.Clone(appErrors.ErrDocumentNotFound, "document not found: "+strings.Join(missing, ", "))
		}
		for i := range docs {
			doc := &docs[i]
			if doc.Status != models.DocumentStatusApproved {
				return appErrors.Clone(appErrors.ErrDocumentNotApproved, fmt.Sprintf("%s v%s is %s", doc.FileNumber, doc.Version, doc.Status))
			}
			if !doc.IsCurrentVersion {
				return appErrors.Clone(appErrors.ErrNotCurrentVersion, fmt.Sprintf("%s v%s is not the current version", doc.FileNumber, doc.Version))
			}

			dist := &models.DocumentDistribution{
				DocumentID:      doc.ID,
				DistributorID:   actor.UserID,
				DistributorName: actor.DisplayName(),
				Note:            req.Note,
				EffectiveDate:   req.EffectiveDate,
				TargetType:      req.TargetType,
				TargetIDs:       models.StringList(targetIDs),
				TargetNames:     models.StringList(targets.names),
				DistributedAt:   s.now(),
			}
			if err := s.store.Create(ctx, dist); err != nil {
				return wrapWrite(err, "failed to create distribution")
			}
			receivers := make([]*models.DistributionReceiver, 0, len(targets.receivers))
			for _, user := range targets.receivers {
				receivers = append(receivers, &models.DistributionReceiver{
					DistributionID: dist.ID,
					ReceiverID:     user.ID,
					ReceiverName:   displayName(&user),
				})
			}
			if err := s.store.CreateReceivers(ctx, receivers); err != nil {
				return wrapWrite(err, "failed to create distribution receivers")
			}
			count += len(receivers)

			created = append(created, *dist)
			notes = append(notes, distributionNotifications(doc, dist, targets.receivers))
			entries = append(entries, operationEntry(actor, models.OperationDistribute, models.ObjectTypeDocument, doc.ID,
				fmt.Sprintf("distributed %s v%s to %d receivers (%s)", doc.FileNumber, doc.Version, len(receivers), req.TargetType)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordReceivers(count)
	for _, entry := range entries {
		s.oplog.Record(ctx, entry)
	}
	for _, batch := range notes {
		s.notifier.Dispatch(ctx, batch)
	}
	return created, nil
}

func (s *DistributionService) expand(ctx context.Context, targetType models.TargetType, ids, names []string) (*expandedTargets, error) {
	var (
		users []models.User
		err   error
		label map[string]string
	)
	switch targetType {
	case models.TargetTypeUser:
		users, err = s.dir.UsersByIDs(ctx, ids)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load users")
		}
		found := make(map[string]struct{}, len(users))
		label = make(map[string]string, len(users))
		for i := range users {
			found[users[i].ID] = struct{}{}
			label[users[i].ID] = displayName(&users[i])
		}
		var missing []string
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return nil, appErrors.Clone(appErrors.ErrUserNotFound, "user not found: "+strings.Join(missing, ", "))
		}
	case models.TargetTypeDepartment:
		if users, err = s.dir.UsersInDepartments(ctx, ids); err == nil {
			label, err = s.dir.DepartmentNames(ctx, ids)
		}
	case models.TargetTypeUserGroup:
		if users, err = s.dir.UsersInGroups(ctx, ids); err == nil {
			label, err = s.dir.GroupNames(ctx, ids)
		}
	case models.TargetTypePosition:
		s.logger.Warn("position targets do not resolve to receivers", zap.Strings("target_ids", ids))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expand distribution targets")
	}

	out := &expandedTargets{}
	seen := make(map[string]struct{}, len(users))
	for _, user := range users {
		if !user.Enabled {
			continue
		}
		if _, dup := seen[user.ID]; dup {
			continue
		}
		seen[user.ID] = struct{}{}
		out.receivers = append(out.receivers, user)
	}

	out.names = make([]string, len(ids))
	for i, id := range ids {
		switch {
		case label[id] != "":
			out.names[i] = label[id]
		case i < len(names) && strings.TrimSpace(names[i]) != "":
			out.names[i] = strings.TrimSpace(names[i])
		default:
			out.names[i] = id
		}
	}
	return out, nil
}

// RecordView stamps the caller's first view of a distribution.
func (s *DistributionService) RecordView(ctx context.Context, distributionID string, actor *models.JWTClaims) (*models.DistributionReceiver, error) {
	receipt, changed, err := s.acknowledge(ctx, distributionID, actor, s.store.MarkViewed)
	if err != nil {
		return nil, err
	}
	if changed {
		s.oplog.Record(ctx, operationEntry(actor, models.OperationView, models.ObjectTypeDistribution, distributionID, "viewed distribution"))
	}
	return receipt, nil
}

// RecordDownload stamps the caller's first download and returns a download link.
// Recalled and obsolete documents cannot be downloaded.
func (s *DistributionService) RecordDownload(ctx context.Context, distributionID string, actor *models.JWTClaims) (*dto.DownloadTicket, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	dist, err := s.getDistribution(ctx, distributionID)
	if err != nil {
		return nil, err
	}
	doc, err := s.docs.GetByID(ctx, dist.DocumentID)
	if err != nil {
		return nil, mapDocumentErr(err)
	}
	if doc.Status == models.DocumentStatusRecalled || doc.Status == models.DocumentStatusObsolete {
		return nil, appErrors.Clone(appErrors.ErrDocumentStatusInvalid, fmt.Sprintf("%s v%s is %s", doc.FileNumber, doc.Version, doc.Status))
	}

	receipt, changed, err := s.acknowledge(ctx, distributionID, actor, s.store.MarkDownloaded)
	if err != nil {
		return nil, err
	}
	ticket := &dto.DownloadTicket{Receipt: *receipt}
	if s.files != nil && doc.ObjectKey != "" {
		url, err := s.files.PresignDownload(ctx, doc.ObjectKey, s.downloadTTL)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to presign download")
		}
		ticket.DownloadURL = url
	}
	if changed {
		s.oplog.Record(ctx, operationEntry(actor, models.OperationDownload, models.ObjectTypeDistribution, distributionID,
			fmt.Sprintf("downloaded %s v%s", doc.FileNumber, doc.Version)))
	}
	return ticket, nil
}

type markFunc func(ctx context.Context, distributionID, receiverID string, at time.Time) (bool, error)

// acknowledge applies a first-timestamp-wins update and reports whether it
// changed anything.
func (s *DistributionService) acknowledge(ctx context.Context, distributionID string, actor *models.JWTClaims, mark markFunc) (*models.DistributionReceiver, bool, error) {
	if actor == nil {
		return nil, false, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	changed, err := mark(ctx, distributionID, actor.UserID, s.now())
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record acknowledgement")
	}
	receipt, err := s.store.GetReceiver(ctx, distributionID, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrDistributionReceiverNotFound, "")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load receipt")
	}
	return receipt, changed, nil
}

// ListReceivers returns the acknowledgement state of every receiver.
func (s *DistributionService) ListReceivers(ctx context.Context, distributionID string) ([]models.DistributionReceiver, error) {
	if _, err := s.getDistribution(ctx, distributionID); err != nil {
		return nil, err
	}
	receivers, err := s.store.ListReceivers(ctx, distributionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list receivers")
	}
	return receivers, nil
}

// ListByDocument returns the distributions of a document.
func (s *DistributionService) ListByDocument(ctx context.Context, documentID string) ([]models.DocumentDistribution, error) {
	if _, err := s.docs.GetByID(ctx, documentID); err != nil {
		return nil, mapDocumentErr(err)
	}
	dists, err := s.store.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list distributions")
	}
	return dists, nil
}

// ListInbox returns a page of distributions received by the caller.
func (s *DistributionService) ListInbox(ctx context.Context, actor *models.JWTClaims, page, size int) ([]models.InboxItem, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	page, size = models.NormalizePage(page, size)
	items, total, err := s.store.ListInbox(ctx, actor.UserID, page, size)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list inbox")
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *DistributionService) getDistribution(ctx context.Context, id string) (*models.DocumentDistribution, error) {
	dist, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "distribution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load distribution")
	}
	return dist, nil
}

func distributionNotifications(doc *models.Document, dist *models.DocumentDistribution, receivers []models.User) []models.Notification {
	notes := make([]models.Notification, 0, len(receivers))
	for _, user := range receivers {
		payload := documentPayload(doc)
		payload["distributor"] = dist.DistributorName
		payload["note"] = dist.Note
		if dist.EffectiveDate != nil {
			payload["effective_date"] = dist.EffectiveDate.Format("2006-01-02")
		}
		notes = append(notes, models.Notification{
			Kind:        models.NotifyDistribution,
			RecipientID: user.ID,
			DocumentID:  doc.ID,
			Payload:     payload,
		})
	}
	return notes
}
