package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/doc-control-api/internal/models"
	"github.com/noah-isme/doc-control-api/internal/repository"
	"github.com/noah-isme/doc-control-api/pkg/database"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
)

type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type lifecycleDocuments interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	GetForUpdate(ctx context.Context, id string) (*models.Document, error)
	ListForUpdate(ctx context.Context, ids []string) ([]models.Document, error)
	UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, updatedBy string) error
	StartApproval(ctx context.Context, id, flowID string, round int, updatedBy string) error
	DemoteCurrent(ctx context.Context, fileNumber, updatedBy string) (int64, error)
	Promote(ctx context.Context, id, updatedBy string) error
}

type lifecycleRecords interface {
	FindPendingForApprover(ctx context.Context, documentID string, round int, approverID string) (*models.ApprovalRecord, error)
	Decide(ctx context.Context, id string, status models.ApprovalStatus, comment *string, at time.Time) error
	ListByRound(ctx context.Context, documentID string, round int) ([]models.ApprovalRecord, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.ApprovalRecord, error)
	ListPendingForApprover(ctx context.Context, approverID string) ([]models.ApprovalRecord, error)
}

type flowChooser interface {
	Select(ctx context.Context, doc *models.Document) (*models.ApprovalFlow, error)
}

type stepSequencer interface {
	Materialize(ctx context.Context, doc *models.Document, flow *models.ApprovalFlow) (*Materialized, error)
	Advance(ctx context.Context, doc *models.Document, approved *models.ApprovalRecord) (*Advancement, error)
	AssignCurrent(ctx context.Context, doc *models.Document) (*Advancement, error)
}

// LifecycleServiceOption configures the service.
type LifecycleServiceOption func(*LifecycleService)

// WithLifecycleNotifier sets the notification dispatcher used after commit.
func WithLifecycleNotifier(n notificationDispatcher) LifecycleServiceOption {
	return func(s *LifecycleService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLifecycleOperationLog sets the operation log recorder.
func WithLifecycleOperationLog(r operationRecorder) LifecycleServiceOption {
	return func(s *LifecycleService) {
		if r != nil {
			s.oplog = r
		}
	}
}

// WithLifecycleMetrics sets the metrics sink.
func WithLifecycleMetrics(m *MetricsService) LifecycleServiceOption {
	return func(s *LifecycleService) { s.metrics = m }
}

// WithLifecycleCache sets the cache evicted after version-visible changes.
func WithLifecycleCache(c *CacheService) LifecycleServiceOption {
	return func(s *LifecycleService) { s.cache = c }
}

// WithLifecycleClock overrides the clock.
func WithLifecycleClock(now func() time.Time) LifecycleServiceOption {
	return func(s *LifecycleService) {
		if now != nil {
			s.now = now
		}
	}
}

// LifecycleService is the only writer of document status and current-version
// flags. Each transition runs in one transaction with the document row locked,
// and notifications go out only after commit.
type LifecycleService struct {
	tx        txRunner
	docs      lifecycleDocuments
	records   lifecycleRecords
	selector  flowChooser
	sequencer stepSequencer
	notifier  notificationDispatcher
	oplog     operationRecorder
	metrics   *MetricsService
	cache     *CacheService
	logger    *zap.Logger
	now       func() time.Time
}

// NewLifecycleService constructs the lifecycle controller.
func NewLifecycleService(tx txRunner, docs lifecycleDocuments, records lifecycleRecords, selector flowChooser, sequencer stepSequencer, logger *zap.Logger, opts ...LifecycleServiceOption) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &LifecycleService{
		tx:        tx,
		docs:      docs,
		records:   records,
		selector:  selector,
		sequencer: sequencer,
		notifier:  (*NotificationService)(nil),
		oplog:     (*OperationLogService)(nil),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

type transition struct {
	doc   *models.Document
	from  models.DocumentStatus
	to    models.DocumentStatus
	notes []models.Notification
	entry *models.OperationLog
}

// Submit starts a new approval round for a DRAFT document.
func (s *LifecycleService) Submit(ctx context.Context, documentID string, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}

	var t transition
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		doc, err := s.lockDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if doc.Status != models.DocumentStatusDraft {
			return appErrors.Clone(appErrors.ErrDocumentStatusInvalid, fmt.Sprintf("only DRAFT documents can be submitted, document is %s", doc.Status))
		}

		flow, err := s.selector.Select(ctx, doc)
		if err != nil {
			return err
		}

		doc.ApprovalRound++
		m, err := s.sequencer.Materialize(ctx, doc, flow)
		if err != nil {
			return err
		}
		if err := s.docs.StartApproval(ctx, doc.ID, flow.ID, doc.ApprovalRound, actor.UserID); err != nil {
			return wrapWrite(err, "failed to start approval")
		}

		t = transition{doc: doc, from: doc.Status, to: models.DocumentStatusPendingApproval}
		doc.Status = models.DocumentStatusPendingApproval
		flowID := flow.ID
		doc.CurrentApprovalFlowID = &flowID
		doc.UpdatedBy = actor.UserID
		t.notes = append(t.notes, pendingNotification(doc, m.First, m.Approver))
		t.entry = operationEntry(actor, models.OperationSubmit, models.ObjectTypeDocument, doc.ID,
			fmt.Sprintf("submitted %s v%s to flow %s (round %d)", doc.FileNumber, doc.Version, flow.Code, doc.ApprovalRound))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, t)
	return t.doc, nil
}

// Decide applies the caller's decision to their pending step of the current round.
func (s *LifecycleService) Decide(ctx context.Context, documentID string, decision models.ApprovalStatus, comment string, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if !decision.IsDecision() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown decision %q", decision))
	}

	var t transition
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		doc, err := s.lockDocument(ctx, documentID)
		if err != nil {
			return err
		}
		// A decision that lost the race finds the document already out of approval.
		if !doc.Status.InApproval() {
			return appErrors.Clone(appErrors.ErrApprovalRecordNotFound, fmt.Sprintf("document is %s, no step awaits a decision", doc.Status))
		}

		record, err := s.records.FindPendingForApprover(ctx, doc.ID, doc.ApprovalRound, actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrApprovalRecordNotFound, "no pending approval step for caller")
			}
			return wrapWrite(err, "failed to load approval record")
		}

		var note *string
		if trimmed := strings.TrimSpace(comment); trimmed != "" {
			note = &trimmed
		}
		at := s.now()
		if err := s.records.Decide(ctx, record.ID, decision, note, at); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrApprovalRecordNotFound, "approval step was already decided")
			}
			return wrapWrite(err, "failed to record decision")
		}
		record.Status = decision
		record.Comment = note
		record.ApproveTime = &at

		t = transition{doc: doc, from: doc.Status, to: doc.Status}
		op := models.OperationApprove
		switch decision {
		case models.ApprovalStatusApproved:
			adv, err := s.sequencer.Advance(ctx, doc, record)
			if err != nil {
				return err
			}
			switch {
			case adv.Complete:
				t.to = models.DocumentStatusApproved
				t.notes = append(t.notes, outcomeNotification(models.NotifyApprovalPassed, doc, record, actor))
			case adv.Unresolved:
				s.logger.Warn("approval step has no eligible approver",
					zap.String("document_id", doc.ID),
					zap.Int("round", doc.ApprovalRound),
					zap.Int("step", adv.Next.StepOrder),
					zap.String("role_id", adv.Next.ApproverRoleID),
				)
				s.metrics.RecordUnresolvedStep()
			default:
				t.to = models.DocumentStatusApproving
				if adv.Approver != nil {
					t.notes = append(t.notes, pendingNotification(doc, adv.Next, adv.Approver))
				}
			}
		default:
			op = models.OperationReject
			t.to = models.DocumentStatusRejected
			t.notes = append(t.notes, outcomeNotification(models.NotifyApprovalRejected, doc, record, actor))
		}

		if t.to != t.from {
			if err := s.docs.UpdateStatus(ctx, doc.ID, t.to, actor.UserID); err != nil {
				return wrapWrite(err, "failed to update document status")
			}
			doc.Status = t.to
			doc.UpdatedBy = actor.UserID
		}
		t.entry = operationEntry(actor, op, models.ObjectTypeDocument, doc.ID,
			fmt.Sprintf("%s step %d of %s v%s", strings.ToLower(string(decision)), record.StepOrder, doc.FileNumber, doc.Version))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordDecision(string(decision))
	s.afterCommit(ctx, t)
	return t.doc, nil
}

// Recall moves every listed document to RECALLED.
func (s *LifecycleService) Recall(ctx context.Context, ids []string, actor *models.JWTClaims) ([]models.Document, error) {
	return s.retire(ctx, ids, models.DocumentStatusRecalled, models.OperationRecall, actor)
}

// Obsolete moves every listed document to OBSOLETE.
func (s *LifecycleService) Obsolete(ctx context.Context, ids []string, actor *models.JWTClaims) ([]models.Document, error) {
	return s.retire(ctx, ids, models.DocumentStatusObsolete, models.OperationObsolete, actor)
}

func (s *LifecycleService) retire(ctx context.Context, ids []string, to models.DocumentStatus, op models.OperationType, actor *models.JWTClaims) ([]models.Document, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document ids are required")
	}

	var (
		docs        []models.Document
		transitions []transition
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := s.docs.ListForUpdate(ctx, ids)
		if err != nil {
			return wrapWrite(err, "failed to lock documents")
		}
		if missing := missingDocuments(ids, locked); len(missing) > 0 {
			return appErrors.Clone(appErrors.ErrDocumentNotFound, "document not found: "+strings.Join(missing, ", "))
		}
		for i := range locked {
			doc := &locked[i]
			from := doc.Status
			if from != to {
				if err := s.docs.UpdateStatus(ctx, doc.ID, to, actor.UserID); err != nil {
					return wrapWrite(err, "failed to update document status")
				}
				doc.Status = to
				doc.UpdatedBy = actor.UserID
			}
			transitions = append(transitions, transition{
				doc:  doc,
				from: from,
				to:   to,
				entry: operationEntry(actor, op, models.ObjectTypeDocument, doc.ID,
					fmt.Sprintf("%s %s v%s", strings.ToLower(string(op)), doc.FileNumber, doc.Version)),
			})
		}
		docs = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, t := range transitions {
		s.afterCommit(ctx, t)
	}
	return docs, nil
}

// Restore makes a historical version current again as a DRAFT, demoting the
// version that held the slot.
func (s *LifecycleService) Restore(ctx context.Context, versionID string, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}

	var t transition
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		doc, err := s.lockDocument(ctx, versionID)
		if err != nil {
			return err
		}
		if doc.IsCurrentVersion {
			return appErrors.Clone(appErrors.ErrVersionAlreadyCurrent, fmt.Sprintf("version %s of %s is already current", doc.Version, doc.FileNumber))
		}
		if _, err := s.docs.DemoteCurrent(ctx, doc.FileNumber, actor.UserID); err != nil {
			return wrapWrite(err, "failed to demote current version")
		}
		if err := s.docs.Promote(ctx, doc.ID, actor.UserID); err != nil {
			if database.IsUniqueViolation(err, repository.CurrentVersionConstraint) {
				return appErrors.WithCause(appErrors.ErrConflict, err, "another version became current concurrently")
			}
			return wrapWrite(err, "failed to promote version")
		}
		t = transition{doc: doc, from: doc.Status, to: models.DocumentStatusDraft}
		doc.Status = models.DocumentStatusDraft
		doc.IsCurrentVersion = true
		doc.UpdatedBy = actor.UserID
		t.entry = operationEntry(actor, models.OperationRestoreVersion, models.ObjectTypeDocument, doc.ID,
			fmt.Sprintf("restored %s v%s as current", doc.FileNumber, doc.Version))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, t)
	return t.doc, nil
}

// Revise reopens a REJECTED or RECALLED document for editing. Only the uploader
// or a document administrator may do so.
func (s *LifecycleService) Revise(ctx context.Context, documentID string, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}

	var t transition
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		doc, err := s.lockDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if doc.CreatedBy != actor.UserID && !actor.HasRole(models.RoleAdmin, models.RoleDocAdmin) {
			return appErrors.Clone(appErrors.ErrForbidden, "only the uploader can revise this document")
		}
		if doc.Status != models.DocumentStatusRejected && doc.Status != models.DocumentStatusRecalled {
			return appErrors.Clone(appErrors.ErrDocumentStatusInvalid, fmt.Sprintf("only REJECTED or RECALLED documents can be revised, document is %s", doc.Status))
		}
		if err := s.docs.UpdateStatus(ctx, doc.ID, models.DocumentStatusDraft, actor.UserID); err != nil {
			return wrapWrite(err, "failed to update document status")
		}
		t = transition{doc: doc, from: doc.Status, to: models.DocumentStatusDraft}
		doc.Status = models.DocumentStatusDraft
		doc.UpdatedBy = actor.UserID
		t.entry = operationEntry(actor, models.OperationRevise, models.ObjectTypeDocument, doc.ID,
			fmt.Sprintf("reopened %s v%s for revision", doc.FileNumber, doc.Version))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, t)
	return t.doc, nil
}

// ResolvePendingStep retries approver resolution for a current step that was
// left without an approver.
func (s *LifecycleService) ResolvePendingStep(ctx context.Context, documentID string, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}

	var t transition
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		doc, err := s.lockDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if !doc.Status.InApproval() {
			return appErrors.Clone(appErrors.ErrDocumentStatusInvalid, fmt.Sprintf("document is %s, not in approval", doc.Status))
		}
		adv, err := s.sequencer.AssignCurrent(ctx, doc)
		if err != nil {
			return err
		}
		switch {
		case adv.Complete:
			return appErrors.Clone(appErrors.ErrDocumentStatusInvalid, "approval round has no pending step")
		case adv.Unresolved:
			s.metrics.RecordUnresolvedStep()
			return appErrors.Clone(appErrors.ErrApproverNotFound, fmt.Sprintf("no enabled approver for role %s", adv.Next.ApproverRoleID))
		case adv.Approver == nil:
			return appErrors.Clone(appErrors.ErrDocumentStatusInvalid, "current approval step already has an approver")
		}

		t = transition{doc: doc, from: doc.Status, to: doc.Status}
		if adv.Next.StepOrder > 1 && doc.Status == models.DocumentStatusPendingApproval {
			t.to = models.DocumentStatusApproving
			if err := s.docs.UpdateStatus(ctx, doc.ID, t.to, actor.UserID); err != nil {
				return wrapWrite(err, "failed to update document status")
			}
			doc.Status = t.to
			doc.UpdatedBy = actor.UserID
		}
		t.notes = append(t.notes, pendingNotification(doc, adv.Next, adv.Approver))
		t.entry = operationEntry(actor, models.OperationApprove, models.ObjectTypeDocument, doc.ID,
			fmt.Sprintf("assigned step %d of %s v%s to %s", adv.Next.StepOrder, doc.FileNumber, doc.Version, displayName(adv.Approver)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, t)
	return t.doc, nil
}

// Progress reports the records of the current approval round.
func (s *LifecycleService) Progress(ctx context.Context, documentID string) (*models.ApprovalProgress, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, mapDocumentErr(err)
	}
	progress := &models.ApprovalProgress{
		DocumentID: doc.ID,
		Status:     doc.Status,
		Round:      doc.ApprovalRound,
		FlowID:     doc.CurrentApprovalFlowID,
		Records:    []models.ApprovalRecord{},
	}
	if doc.ApprovalRound == 0 {
		return progress, nil
	}
	records, err := s.records.ListByRound(ctx, doc.ID, doc.ApprovalRound)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval records")
	}
	progress.Records = records
	if doc.Status.InApproval() {
		for i := range records {
			if records[i].Status == models.ApprovalStatusPending {
				current := records[i]
				progress.CurrentStep = &current
				break
			}
		}
	}
	return progress, nil
}

// History returns every approval record of a document across rounds.
func (s *LifecycleService) History(ctx context.Context, documentID string) ([]models.ApprovalRecord, error) {
	if _, err := s.docs.GetByID(ctx, documentID); err != nil {
		return nil, mapDocumentErr(err)
	}
	records, err := s.records.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval history")
	}
	return records, nil
}

// Todo lists the steps waiting on the caller.
func (s *LifecycleService) Todo(ctx context.Context, actor *models.JWTClaims) ([]models.ApprovalTask, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	records, err := s.records.ListPendingForApprover(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval tasks")
	}
	tasks := make([]models.ApprovalTask, 0, len(records))
	for _, record := range records {
		doc, err := s.docs.GetByID(ctx, record.DocumentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
		}
		tasks = append(tasks, models.ApprovalTask{Record: record, Document: *doc})
	}
	return tasks, nil
}

func (s *LifecycleService) lockDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.docs.GetForUpdate(ctx, id)
	if err != nil {
		return nil, mapDocumentErr(err)
	}
	return doc, nil
}

func (s *LifecycleService) afterCommit(ctx context.Context, t transition) {
	if t.doc == nil {
		return
	}
	if t.from != t.to {
		s.metrics.RecordTransition(string(t.from), string(t.to))
		s.logger.Info("document status changed",
			zap.String("document_id", t.doc.ID),
			zap.String("file_number", t.doc.FileNumber),
			zap.String("from", string(t.from)),
			zap.String("to", string(t.to)),
		)
	}
	s.cache.Evict(ctx, VersionListKey(t.doc.FileNumber))
	if t.entry != nil {
		s.oplog.Record(ctx, t.entry)
	}
	if len(t.notes) > 0 {
		s.notifier.Dispatch(ctx, t.notes)
	}
}

func pendingNotification(doc *models.Document, record *models.ApprovalRecord, approver *models.User) models.Notification {
	payload := documentPayload(doc)
	payload["step"] = strconv.Itoa(record.StepOrder)
	payload["role"] = record.ApproverRoleName
	return models.Notification{
		Kind:        models.NotifyApprovalPending,
		RecipientID: approver.ID,
		DocumentID:  doc.ID,
		Payload:     payload,
	}
}

func outcomeNotification(kind models.NotificationKind, doc *models.Document, record *models.ApprovalRecord, actor *models.JWTClaims) models.Notification {
	payload := documentPayload(doc)
	payload["approver"] = actor.DisplayName()
	if record.Comment != nil {
		payload["comment"] = *record.Comment
	}
	return models.Notification{
		Kind:        kind,
		RecipientID: doc.CreatedBy,
		DocumentID:  doc.ID,
		Payload:     payload,
	}
}

func mapDocumentErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrDocumentNotFound, "document not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
}

// wrapWrite keeps domain errors intact and wraps everything else as internal.
func wrapWrite(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func missingDocuments(ids []string, docs []models.Document) []string {
	found := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		found[d.ID] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
