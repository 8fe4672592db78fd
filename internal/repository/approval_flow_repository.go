package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/doc-control-api/internal/models"
)

const approvalFlowColumns = `id, code, name, steps, applicability, enabled, position, created_at, updated_at`

// ApprovalFlowRepository persists approval flow definitions.
type ApprovalFlowRepository struct {
	db *sqlx.DB
}

// NewApprovalFlowRepository constructs the repository.
func NewApprovalFlowRepository(db *sqlx.DB) *ApprovalFlowRepository {
	return &ApprovalFlowRepository{db: db}
}

// ListEnabled returns enabled flows in selection precedence order.
func (r *ApprovalFlowRepository) ListEnabled(ctx context.Context) ([]models.ApprovalFlow, error) {
	query := `SELECT ` + approvalFlowColumns + ` FROM approval_flows WHERE enabled = TRUE ORDER BY position ASC, created_at ASC`
	var flows []models.ApprovalFlow
	if err := conn(ctx, r.db).SelectContext(ctx, &flows, query); err != nil {
		return nil, fmt.Errorf("list enabled approval flows: %w", err)
	}
	return flows, nil
}

// GetByID fetches a flow by identifier.
func (r *ApprovalFlowRepository) GetByID(ctx context.Context, id string) (*models.ApprovalFlow, error) {
	query := `SELECT ` + approvalFlowColumns + ` FROM approval_flows WHERE id = $1`
	var flow models.ApprovalFlow
	if err := conn(ctx, r.db).GetContext(ctx, &flow, query, id); err != nil {
		return nil, err
	}
	return &flow, nil
}

// Upsert inserts or replaces a flow keyed by code.
func (r *ApprovalFlowRepository) Upsert(ctx context.Context, flow *models.ApprovalFlow) error {
	if flow.ID == "" {
		flow.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}
	flow.UpdatedAt = now
	const query = `INSERT INTO approval_flows (id, code, name, steps, applicability, enabled, position, created_at, updated_at)
	VALUES (:id, :code, :name, :steps, :applicability, :enabled, :position, :created_at, :updated_at)
	ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, steps = EXCLUDED.steps, applicability = EXCLUDED.applicability,
	enabled = EXCLUDED.enabled, position = EXCLUDED.position, updated_at = EXCLUDED.updated_at`
	if _, err := conn(ctx, r.db).NamedExecContext(ctx, query, flow); err != nil {
		return fmt.Errorf("upsert approval flow %s: %w", flow.Code, err)
	}
	return nil
}

// DisableExcept disables every enabled flow whose code is not listed.
func (r *ApprovalFlowRepository) DisableExcept(ctx context.Context, codes []string) (int64, error) {
	const query = `UPDATE approval_flows SET enabled = FALSE, updated_at = $2 WHERE enabled = TRUE AND NOT (code = ANY($1))`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, pq.Array(codes), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("disable stale approval flows: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check disabled flow rows: %w", err)
	}
	return rows, nil
}
