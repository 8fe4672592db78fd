package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/doc-control-api/internal/models"
)

const distributionColumns = `id, document_id, distributor_id, distributor_name, note, effective_date, target_type,
	target_ids, target_names, distributed_at`

const receiverColumns = `id, distribution_id, receiver_id, receiver_name, viewed, view_time, downloaded, download_time`

// DistributionRepository persists distributions and their receivers.
type DistributionRepository struct {
	db *sqlx.DB
}

// NewDistributionRepository constructs the repository.
func NewDistributionRepository(db *sqlx.DB) *DistributionRepository {
	return &DistributionRepository{db: db}
}

// Create inserts a distribution row.
func (r *DistributionRepository) Create(ctx context.Context, dist *models.DocumentDistribution) error {
	if dist.ID == "" {
		dist.ID = uuid.NewString()
	}
	if dist.DistributedAt.IsZero() {
		dist.DistributedAt = time.Now().UTC()
	}
	const query = `INSERT INTO document_distributions (` + distributionColumns + `)
	VALUES (:id, :document_id, :distributor_id, :distributor_name, :note, :effective_date, :target_type,
	:target_ids, :target_names, :distributed_at)`
	if _, err := conn(ctx, r.db).NamedExecContext(ctx, query, dist); err != nil {
		return fmt.Errorf("create distribution: %w", err)
	}
	return nil
}

// CreateReceivers inserts receivers, skipping pairs that already exist.
func (r *DistributionRepository) CreateReceivers(ctx context.Context, receivers []*models.DistributionReceiver) error {
	const query = `INSERT INTO distribution_receivers (` + receiverColumns + `)
	VALUES (:id, :distribution_id, :receiver_id, :receiver_name, :viewed, :view_time, :downloaded, :download_time)
	ON CONFLICT (distribution_id, receiver_id) DO NOTHING`
	for _, receiver := range receivers {
		if receiver.ID == "" {
			receiver.ID = uuid.NewString()
		}
		if _, err := conn(ctx, r.db).NamedExecContext(ctx, query, receiver); err != nil {
			return fmt.Errorf("create distribution receiver %s: %w", receiver.ReceiverID, err)
		}
	}
	return nil
}

// GetByID fetches a distribution by identifier.
func (r *DistributionRepository) GetByID(ctx context.Context, id string) (*models.DocumentDistribution, error) {
	query := `SELECT ` + distributionColumns + ` FROM document_distributions WHERE id = $1`
	var dist models.DocumentDistribution
	if err := conn(ctx, r.db).GetContext(ctx, &dist, query, id); err != nil {
		return nil, err
	}
	return &dist, nil
}

// ListByDocument returns every distribution of a document, newest first.
func (r *DistributionRepository) ListByDocument(ctx context.Context, documentID string) ([]models.DocumentDistribution, error) {
	query := `SELECT ` + distributionColumns + ` FROM document_distributions WHERE document_id = $1 ORDER BY distributed_at DESC`
	var dists []models.DocumentDistribution
	if err := conn(ctx, r.db).SelectContext(ctx, &dists, query, documentID); err != nil {
		return nil, fmt.Errorf("list distributions: %w", err)
	}
	return dists, nil
}

// ListReceivers returns the receivers of a distribution.
func (r *DistributionRepository) ListReceivers(ctx context.Context, distributionID string) ([]models.DistributionReceiver, error) {
	query := `SELECT ` + receiverColumns + ` FROM distribution_receivers WHERE distribution_id = $1 ORDER BY receiver_name ASC`
	var receivers []models.DistributionReceiver
	if err := conn(ctx, r.db).SelectContext(ctx, &receivers, query, distributionID); err != nil {
		return nil, fmt.Errorf("list distribution receivers: %w", err)
	}
	return receivers, nil
}

// GetReceiver fetches one receiver row.
func (r *DistributionRepository) GetReceiver(ctx context.Context, distributionID, receiverID string) (*models.DistributionReceiver, error) {
	query := `SELECT ` + receiverColumns + ` FROM distribution_receivers WHERE distribution_id = $1 AND receiver_id = $2`
	var receiver models.DistributionReceiver
	if err := conn(ctx, r.db).GetContext(ctx, &receiver, query, distributionID, receiverID); err != nil {
		return nil, err
	}
	return &receiver, nil
}

// MarkViewed stamps the first view. It returns false when nothing changed.
func (r *DistributionRepository) MarkViewed(ctx context.Context, distributionID, receiverID string, at time.Time) (bool, error) {
	const query = `UPDATE distribution_receivers SET viewed = TRUE, view_time = $3
	WHERE distribution_id = $1 AND receiver_id = $2 AND viewed = FALSE`
	return r.markFirst(ctx, "mark viewed", query, distributionID, receiverID, at)
}

// MarkDownloaded stamps the first download. It returns false when nothing changed.
func (r *DistributionRepository) MarkDownloaded(ctx context.Context, distributionID, receiverID string, at time.Time) (bool, error) {
	const query = `UPDATE distribution_receivers SET downloaded = TRUE, download_time = $3
	WHERE distribution_id = $1 AND receiver_id = $2 AND downloaded = FALSE`
	return r.markFirst(ctx, "mark downloaded", query, distributionID, receiverID, at)
}

func (r *DistributionRepository) markFirst(ctx context.Context, op, query, distributionID, receiverID string, at time.Time) (bool, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx, query, distributionID, receiverID, at)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check %s rows: %w", op, err)
	}
	return rows > 0, nil
}

// ListInbox returns distributions received by a user, newest first.
func (r *DistributionRepository) ListInbox(ctx context.Context, receiverID string, page, size int) ([]models.InboxItem, int, error) {
	page, size = models.NormalizePage(page, size)
	query := fmt.Sprintf(`SELECT
	dd.id AS "distribution.id", dd.document_id AS "distribution.document_id", dd.distributor_id AS "distribution.distributor_id",
	dd.distributor_name AS "distribution.distributor_name", dd.note AS "distribution.note",
	dd.effective_date AS "distribution.effective_date", dd.target_type AS "distribution.target_type",
	dd.target_ids AS "distribution.target_ids", dd.target_names AS "distribution.target_names",
	dd.distributed_at AS "distribution.distributed_at",
	dr.id AS "receipt.id", dr.distribution_id AS "receipt.distribution_id", dr.receiver_id AS "receipt.receiver_id",
	dr.receiver_name AS "receipt.receiver_name", dr.viewed AS "receipt.viewed", dr.view_time AS "receipt.view_time",
	dr.downloaded AS "receipt.downloaded", dr.download_time AS "receipt.download_time",
	d.id AS "document.id", d.file_number AS "document.file_number", d.file_name AS "document.file_name",
	d.version AS "document.version", d.status AS "document.status", d.is_current_version AS "document.is_current_version"
	FROM distribution_receivers dr
	JOIN document_distributions dd ON dd.id = dr.distribution_id
	JOIN documents d ON d.id = dd.document_id
	WHERE dr.receiver_id = $1
	ORDER BY dd.distributed_at DESC LIMIT %d OFFSET %d`, size, (page-1)*size)

	var items []models.InboxItem
	if err := conn(ctx, r.db).SelectContext(ctx, &items, query, receiverID); err != nil {
		return nil, 0, fmt.Errorf("list inbox: %w", err)
	}
	var total int
	if err := conn(ctx, r.db).GetContext(ctx, &total, `SELECT COUNT(*) FROM distribution_receivers WHERE receiver_id = $1`, receiverID); err != nil {
		return nil, 0, fmt.Errorf("count inbox: %w", err)
	}
	return items, total, nil
}
