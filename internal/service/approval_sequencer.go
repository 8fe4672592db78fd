package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/noah-isme/doc-control-api/internal/models"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
)

type sequencerStore interface {
	CreateBatch(ctx context.Context, records []*models.ApprovalRecord) error
	NextPending(ctx context.Context, documentID string, round, afterStep int) (*models.ApprovalRecord, error)
	AssignApprover(ctx context.Context, id, approverID, approverName string) error
}

type approverResolver interface {
	Resolve(ctx context.Context, roleID string) (*models.User, error)
}

// Materialized is the first step of a freshly created approval round.
type Materialized struct {
	Records  []*models.ApprovalRecord
	First    *models.ApprovalRecord
	Approver *models.User
}

// Advancement describes where a round stands after a step was approved.
type Advancement struct {
	Complete   bool
	Next       *models.ApprovalRecord
	Approver   *models.User
	Unresolved bool
}

// ApprovalSequencer creates approval rounds and moves them forward one step at a time.
// It never writes document status.
type ApprovalSequencer struct {
	records  sequencerStore
	resolver approverResolver
}

// NewApprovalSequencer constructs an ApprovalSequencer.
func NewApprovalSequencer(records sequencerStore, resolver approverResolver) *ApprovalSequencer {
	return &ApprovalSequencer{records: records, resolver: resolver}
}

// Materialize writes one PENDING record per flow step for doc.ApprovalRound.
// Only the first step gets an approver; an unresolvable first role aborts
// before anything is written.
func (s *ApprovalSequencer) Materialize(ctx context.Context, doc *models.Document, flow *models.ApprovalFlow) (*Materialized, error) {
	if err := ValidateSteps(flow.Steps); err != nil {
		return nil, err
	}
	steps := make([]models.ApprovalStep, len(flow.Steps))
	copy(steps, flow.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

	approver, err := s.resolver.Resolve(ctx, steps[0].RoleID)
	if err != nil {
		return nil, err
	}

	records := make([]*models.ApprovalRecord, 0, len(steps))
	for _, step := range steps {
		records = append(records, &models.ApprovalRecord{
			DocumentID:       doc.ID,
			ApprovalFlowID:   flow.ID,
			Round:            doc.ApprovalRound,
			StepOrder:        step.Order,
			ApproverRoleID:   step.RoleID,
			ApproverRoleName: step.RoleName,
			Status:           models.ApprovalStatusPending,
		})
	}
	first := records[0]
	stampApprover(first, approver)

	if err := s.records.CreateBatch(ctx, records); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create approval records")
	}
	return &Materialized{Records: records, First: first, Approver: approver}, nil
}

// Advance locates the next pending step after approved and assigns its approver.
func (s *ApprovalSequencer) Advance(ctx context.Context, doc *models.Document, approved *models.ApprovalRecord) (*Advancement, error) {
	return s.assignAfter(ctx, doc, approved.StepOrder)
}

// AssignCurrent re-runs resolution for the lowest pending step of the round.
func (s *ApprovalSequencer) AssignCurrent(ctx context.Context, doc *models.Document) (*Advancement, error) {
	return s.assignAfter(ctx, doc, 0)
}

func (s *ApprovalSequencer) assignAfter(ctx context.Context, doc *models.Document, afterStep int) (*Advancement, error) {
	next, err := s.records.NextPending(ctx, doc.ID, doc.ApprovalRound, afterStep)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &Advancement{Complete: true}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load next approval step")
	}
	if next.Assigned() {
		return &Advancement{Next: next}, nil
	}

	approver, err := s.resolver.Resolve(ctx, next.ApproverRoleID)
	if err != nil {
		if errors.Is(err, appErrors.ErrApproverNotFound) {
			return &Advancement{Next: next, Unresolved: true}, nil
		}
		return nil, err
	}
	if err := s.records.AssignApprover(ctx, next.ID, approver.ID, displayName(approver)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrApprovalRecordNotFound, "approval step changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign approver")
	}
	stampApprover(next, approver)
	return &Advancement{Next: next, Approver: approver}, nil
}

func stampApprover(record *models.ApprovalRecord, user *models.User) {
	id := user.ID
	name := displayName(user)
	record.ApproverID = &id
	record.ApproverName = &name
}

func displayName(user *models.User) string {
	if user.FullName != "" {
		return user.FullName
	}
	return user.Username
}
