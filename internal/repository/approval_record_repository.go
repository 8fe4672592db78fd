package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/doc-control-api/internal/models"
)

const approvalRecordColumns = `id, document_id, approval_flow_id, round, step_order, approver_role_id, approver_role_name,
	approver_id, approver_name, status, comment, approve_time, created_at`

// ApprovalRecordRepository persists per-step approval records.
type ApprovalRecordRepository struct {
	db *sqlx.DB
}

// NewApprovalRecordRepository constructs the repository.
func NewApprovalRecordRepository(db *sqlx.DB) *ApprovalRecordRepository {
	return &ApprovalRecordRepository{db: db}
}

// CreateBatch inserts the records of a new approval round.
func (r *ApprovalRecordRepository) CreateBatch(ctx context.Context, records []*models.ApprovalRecord) error {
	now := time.Now().UTC()
	const query = `INSERT INTO approval_records (` + approvalRecordColumns + `)
	VALUES (:id, :document_id, :approval_flow_id, :round, :step_order, :approver_role_id, :approver_role_name,
	:approver_id, :approver_name, :status, :comment, :approve_time, :created_at)`
	for _, record := range records {
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		if record.Status == "" {
			record.Status = models.ApprovalStatusPending
		}
		if _, err := conn(ctx, r.db).NamedExecContext(ctx, query, record); err != nil {
			return fmt.Errorf("create approval record step %d: %w", record.StepOrder, err)
		}
	}
	return nil
}

// ListByRound returns the records of one round ordered by step.
func (r *ApprovalRecordRepository) ListByRound(ctx context.Context, documentID string, round int) ([]models.ApprovalRecord, error) {
	query := `SELECT ` + approvalRecordColumns + ` FROM approval_records WHERE document_id = $1 AND round = $2 ORDER BY step_order ASC`
	var records []models.ApprovalRecord
	if err := conn(ctx, r.db).SelectContext(ctx, &records, query, documentID, round); err != nil {
		return nil, fmt.Errorf("list approval records: %w", err)
	}
	return records, nil
}

// ListByDocument returns the full approval history of a document.
func (r *ApprovalRecordRepository) ListByDocument(ctx context.Context, documentID string) ([]models.ApprovalRecord, error) {
	query := `SELECT ` + approvalRecordColumns + ` FROM approval_records WHERE document_id = $1 ORDER BY round ASC, step_order ASC`
	var records []models.ApprovalRecord
	if err := conn(ctx, r.db).SelectContext(ctx, &records, query, documentID); err != nil {
		return nil, fmt.Errorf("list approval history: %w", err)
	}
	return records, nil
}

// FindPendingForApprover returns the caller's pending record in the round.
func (r *ApprovalRecordRepository) FindPendingForApprover(ctx context.Context, documentID string, round int, approverID string) (*models.ApprovalRecord, error) {
	query := `SELECT ` + approvalRecordColumns + ` FROM approval_records
	WHERE document_id = $1 AND round = $2 AND approver_id = $3 AND status = 'PENDING'
	ORDER BY step_order ASC LIMIT 1`
	var record models.ApprovalRecord
	if err := conn(ctx, r.db).GetContext(ctx, &record, query, documentID, round, approverID); err != nil {
		return nil, err
	}
	return &record, nil
}

// NextPending returns the lowest-order pending record after the given step.
func (r *ApprovalRecordRepository) NextPending(ctx context.Context, documentID string, round, afterStep int) (*models.ApprovalRecord, error) {
	query := `SELECT ` + approvalRecordColumns + ` FROM approval_records
	WHERE document_id = $1 AND round = $2 AND status = 'PENDING' AND step_order > $3
	ORDER BY step_order ASC LIMIT 1`
	var record models.ApprovalRecord
	if err := conn(ctx, r.db).GetContext(ctx, &record, query, documentID, round, afterStep); err != nil {
		return nil, err
	}
	return &record, nil
}

// Decide stamps a decision on a record that is still pending. A concurrent
// decision that already won yields sql.ErrNoRows.
func (r *ApprovalRecordRepository) Decide(ctx context.Context, id string, status models.ApprovalStatus, comment *string, at time.Time) error {
	const query = `UPDATE approval_records SET status = $2, comment = $3, approve_time = $4
	WHERE id = $1 AND status = 'PENDING'`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, id, status, comment, at)
	if err != nil {
		return fmt.Errorf("decide approval record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check approval decision rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AssignApprover records the resolved approver of a pending step.
func (r *ApprovalRecordRepository) AssignApprover(ctx context.Context, id, approverID, approverName string) error {
	const query = `UPDATE approval_records SET approver_id = $2, approver_name = $3 WHERE id = $1 AND status = 'PENDING'`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, id, approverID, approverName)
	if err != nil {
		return fmt.Errorf("assign approver: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check assign approver rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPendingForApprover returns the caller's open tasks on documents still in approval.
func (r *ApprovalRecordRepository) ListPendingForApprover(ctx context.Context, approverID string) ([]models.ApprovalRecord, error) {
	const query = `SELECT ar.id, ar.document_id, ar.approval_flow_id, ar.round, ar.step_order, ar.approver_role_id,
	ar.approver_role_name, ar.approver_id, ar.approver_name, ar.status, ar.comment, ar.approve_time, ar.created_at
	FROM approval_records ar
	JOIN documents d ON d.id = ar.document_id AND d.approval_round = ar.round
	WHERE ar.approver_id = $1 AND ar.status = 'PENDING' AND d.status IN ('PENDING_APPROVAL', 'APPROVING')
	ORDER BY ar.created_at ASC`
	var records []models.ApprovalRecord
	if err := conn(ctx, r.db).SelectContext(ctx, &records, query, approverID); err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	return records, nil
}
