package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/doc-control-api/internal/models"
)

const operationLogColumns = `id, user_id, user_name, operation_type, content, object_type, object_id, result,
	error_message, ip_address, user_agent, created_at`

// OperationLogRepository stores the append-only operation log.
type OperationLogRepository struct {
	db *sqlx.DB
}

// NewOperationLogRepository constructs the repository.
func NewOperationLogRepository(db *sqlx.DB) *OperationLogRepository {
	return &OperationLogRepository{db: db}
}

// Create appends a log entry. It always writes outside any caller
// transaction so a rolled back transition still leaves its failure trail.
func (r *OperationLogRepository) Create(ctx context.Context, entry *models.OperationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Result == "" {
		entry.Result = models.OperationResultSuccess
	}
	const query = `INSERT INTO operation_logs (` + operationLogColumns + `)
	VALUES (:id, :user_id, :user_name, :operation_type, :content, :object_type, :object_id, :result,
	:error_message, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create operation log: %w", err)
	}
	return nil
}

// Search lists log entries newest first with the total count.
func (r *OperationLogRepository) Search(ctx context.Context, filter models.OperationLogFilter) ([]models.OperationLog, int, error) {
	where, args := operationLogWhere(filter)
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM operation_logs%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		operationLogColumns, where, size, (page-1)*size)

	var entries []models.OperationLog
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("search operation logs: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM operation_logs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count operation logs: %w", err)
	}
	return entries, total, nil
}

// ListForExport returns up to limit matching entries, newest first.
func (r *OperationLogRepository) ListForExport(ctx context.Context, filter models.OperationLogFilter, limit int) ([]models.OperationLog, error) {
	where, args := operationLogWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM operation_logs%s ORDER BY created_at DESC LIMIT %d", operationLogColumns, where, limit)
	var entries []models.OperationLog
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("export operation logs: %w", err)
	}
	return entries, nil
}

func operationLogWhere(filter models.OperationLogFilter) (string, []interface{}) {
	conditions := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.OperationType != "" {
		args = append(args, filter.OperationType)
		conditions = append(conditions, fmt.Sprintf("operation_type = $%d", len(args)))
	}
	if filter.ObjectID != "" {
		args = append(args, filter.ObjectID)
		conditions = append(conditions, fmt.Sprintf("object_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
