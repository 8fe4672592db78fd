package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/doc-control-api/internal/models"
)

// CurrentVersionConstraint is the partial unique index guarding one current
// version per file number.
const CurrentVersionConstraint = "documents_current_version_uniq"

// VersionConstraint guards unique (file_number, version) pairs.
const VersionConstraint = "documents_file_number_version_uniq"

const documentColumns = `id, file_number, file_name, original_name, product_model, version, file_type, importance,
	file_size, object_key, thumbnail_key, content_type, description, compiler_id, compiler_name, compile_date,
	status, is_current_version, parent_version_id, current_approval_flow_id, approval_round,
	created_by, updated_by, created_at, updated_at`

// DocumentRepository persists document versions.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a document version.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = models.DocumentStatusDraft
	}
	const query = `INSERT INTO documents (` + documentColumns + `)
	VALUES (:id, :file_number, :file_name, :original_name, :product_model, :version, :file_type, :importance,
	:file_size, :object_key, :thumbnail_key, :content_type, :description, :compiler_id, :compiler_name, :compile_date,
	:status, :is_current_version, :parent_version_id, :current_approval_flow_id, :approval_round,
	:created_by, :updated_by, :created_at, :updated_at)`
	if _, err := conn(ctx, r.db).NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID fetches a document by identifier.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	var doc models.Document
	if err := conn(ctx, r.db).GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetForUpdate fetches and row-locks a document. Outside a transaction the lock
// is released immediately, so callers must run it inside TxManager.WithinTx.
func (r *DocumentRepository) GetForUpdate(ctx context.Context, id string) (*models.Document, error) {
	if !inTx(ctx) {
		return nil, fmt.Errorf("lock document %s: no transaction in context", id)
	}
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 FOR UPDATE`
	var doc models.Document
	if err := conn(ctx, r.db).GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListForUpdate row-locks several documents in id order.
func (r *DocumentRepository) ListForUpdate(ctx context.Context, ids []string) ([]models.Document, error) {
	if !inTx(ctx) {
		return nil, fmt.Errorf("lock documents: no transaction in context")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+documentColumns+` FROM documents WHERE id IN (?) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("build lock documents query: %w", err)
	}
	var docs []models.Document
	if err := conn(ctx, r.db).SelectContext(ctx, &docs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("lock documents: %w", err)
	}
	return docs, nil
}

// GetCurrentByFileNumber returns the current version of a lineage.
func (r *DocumentRepository) GetCurrentByFileNumber(ctx context.Context, fileNumber string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE file_number = $1 AND is_current_version = TRUE`
	var doc models.Document
	if err := conn(ctx, r.db).GetContext(ctx, &doc, query, fileNumber); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByFileNumber returns every version of a lineage, oldest first.
func (r *DocumentRepository) ListByFileNumber(ctx context.Context, fileNumber string) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE file_number = $1 ORDER BY created_at ASC, version ASC`
	var docs []models.Document
	if err := conn(ctx, r.db).SelectContext(ctx, &docs, query, fileNumber); err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	return docs, nil
}

// VersionExists reports whether a (file number, version) pair is taken.
func (r *DocumentRepository) VersionExists(ctx context.Context, fileNumber, version string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM documents WHERE file_number = $1 AND version = $2)`
	var exists bool
	if err := conn(ctx, r.db).GetContext(ctx, &exists, query, fileNumber, version); err != nil {
		return false, fmt.Errorf("check document version: %w", err)
	}
	return exists, nil
}

// UpdateStatus sets the lifecycle status of a document.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, updatedBy string) error {
	const query = `UPDATE documents SET status = $2, updated_by = $3, updated_at = $4 WHERE id = $1`
	return r.execOne(ctx, "update document status", query, id, status, updatedBy, time.Now().UTC())
}

// StartApproval moves a document into a new approval round.
func (r *DocumentRepository) StartApproval(ctx context.Context, id, flowID string, round int, updatedBy string) error {
	const query = `UPDATE documents SET status = $2, current_approval_flow_id = $3, approval_round = $4, updated_by = $5, updated_at = $6
	WHERE id = $1`
	return r.execOne(ctx, "start document approval", query, id, models.DocumentStatusPendingApproval, flowID, round, updatedBy, time.Now().UTC())
}

// DemoteCurrent clears the current flag on the lineage's current version.
func (r *DocumentRepository) DemoteCurrent(ctx context.Context, fileNumber, updatedBy string) (int64, error) {
	const query = `UPDATE documents SET is_current_version = FALSE, updated_by = $2, updated_at = $3
	WHERE file_number = $1 AND is_current_version = TRUE`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, fileNumber, updatedBy, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("demote current version: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check demote rows: %w", err)
	}
	return rows, nil
}

// Promote makes a version current and resets it to DRAFT.
func (r *DocumentRepository) Promote(ctx context.Context, id, updatedBy string) error {
	const query = `UPDATE documents SET is_current_version = TRUE, status = $2, updated_by = $3, updated_at = $4 WHERE id = $1`
	return r.execOne(ctx, "promote document version", query, id, models.DocumentStatusDraft, updatedBy, time.Now().UTC())
}

// Search lists documents matching the filter with the total count.
func (r *DocumentRepository) Search(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 6)
	if filter.FileNumber != "" {
		args = append(args, filter.FileNumber)
		conditions = append(conditions, fmt.Sprintf("file_number = $%d", len(args)))
	}
	if filter.FileName != "" {
		args = append(args, "%"+strings.ToLower(filter.FileName)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(file_name) LIKE $%d", len(args)))
	}
	if filter.ProductModel != "" {
		args = append(args, filter.ProductModel)
		conditions = append(conditions, fmt.Sprintf("product_model = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CompilerID != "" {
		args = append(args, filter.CompilerID)
		conditions = append(conditions, fmt.Sprintf("compiler_id = $%d", len(args)))
	}
	if filter.CurrentOnly {
		conditions = append(conditions, "is_current_version = TRUE")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s FROM documents%s ORDER BY updated_at DESC LIMIT %d OFFSET %d",
		documentColumns, where, size, (page-1)*size)

	var docs []models.Document
	if err := conn(ctx, r.db).SelectContext(ctx, &docs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("search documents: %w", err)
	}

	var total int
	if err := conn(ctx, r.db).GetContext(ctx, &total, "SELECT COUNT(*) FROM documents"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}
	return docs, total, nil
}

func (r *DocumentRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
