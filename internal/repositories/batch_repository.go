package repositories

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"reconciliation-lifecycle/internal/models"
)

type BatchRepository interface {
	InsertBatch(tx *sqlx.Tx, batch *models.Batch, items []models.LineItem) error
	GetBatch(id string) (*models.Batch, error)
	ListBatches(companyID, period string, workflow models.WorkflowType, side models.Side) ([]models.Batch, error)
	ListLineItems(companyID, period string, workflow models.WorkflowType, side models.Side) ([]models.LineItem, error)
	DeleteBatch(tx *sqlx.Tx, id string) (int64, error)
	DeleteBatchesForSide(tx *sqlx.Tx, companyID, period string, workflow models.WorkflowType, side models.Side) error
	CountBatches(companyID, period string, workflow models.WorkflowType, side models.Side) (int, error)
}

type batchRepository struct {
	db *sqlx.DB
}

func NewBatchRepository(db *sqlx.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) InsertBatch(tx *sqlx.Tx, batch *models.Batch, items []models.LineItem) error {
	_, err := tx.Exec(`
		INSERT INTO batches (
			id, company_id, period, workflow, side,
			file_name, uploaded_at, line_item_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		batch.ID,
		batch.CompanyID,
		batch.Period,
		batch.Workflow,
		batch.Side,
		batch.FileName,
		batch.UploadedAt,
		batch.LineItemCount,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO line_items (
			id, batch_id, company_id, period, workflow, side,
			txn_date, description, amount, balance, currency, source_batch_name
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		_, err := stmt.Exec(
			item.ID,
			item.SourceBatchID,
			item.CompanyID,
			item.Period,
			item.Workflow,
			item.Side,
			item.Date,
			item.Description,
			item.Amount,
			item.Balance,
			item.Currency,
			item.SourceBatchName,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *batchRepository) GetBatch(id string) (*models.Batch, error) {
	batch := &models.Batch{}
	err := r.db.Get(batch, `
		SELECT id, company_id, period, workflow, side,
		       file_name, uploaded_at, line_item_count
		FROM batches
		WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (r *batchRepository) ListBatches(companyID, period string, workflow models.WorkflowType, side models.Side) ([]models.Batch, error) {
	batches := []models.Batch{}
	err := r.db.Select(&batches, `
		SELECT id, company_id, period, workflow, side,
		       file_name, uploaded_at, line_item_count
		FROM batches
		WHERE company_id = ? AND period = ? AND workflow = ? AND side = ?
		ORDER BY uploaded_at, id`,
		companyID, period, workflow, side)
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *batchRepository) ListLineItems(companyID, period string, workflow models.WorkflowType, side models.Side) ([]models.LineItem, error) {
	items := []models.LineItem{}
	err := r.db.Select(&items, `
		SELECT id, batch_id, company_id, period, workflow, side,
		       txn_date, description, amount, balance, currency, source_batch_name
		FROM line_items
		WHERE company_id = ? AND period = ? AND workflow = ? AND side = ?
		ORDER BY txn_date, id`,
		companyID, period, workflow, side)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteBatch removes a batch and cascades to its line items. Returns the
// number of batch rows removed so callers can distinguish a missing batch.
func (r *batchRepository) DeleteBatch(tx *sqlx.Tx, id string) (int64, error) {
	if _, err := tx.Exec(`DELETE FROM line_items WHERE batch_id = ?`, id); err != nil {
		return 0, err
	}
	result, err := tx.Exec(`DELETE FROM batches WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *batchRepository) DeleteBatchesForSide(tx *sqlx.Tx, companyID, period string, workflow models.WorkflowType, side models.Side) error {
	_, err := tx.Exec(`
		DELETE FROM line_items
		WHERE company_id = ? AND period = ? AND workflow = ? AND side = ?`,
		companyID, period, workflow, side)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		DELETE FROM batches
		WHERE company_id = ? AND period = ? AND workflow = ? AND side = ?`,
		companyID, period, workflow, side)
	return err
}

func (r *batchRepository) CountBatches(companyID, period string, workflow models.WorkflowType, side models.Side) (int, error) {
	var count int
	err := r.db.Get(&count, `
		SELECT COUNT(*) FROM batches
		WHERE company_id = ? AND period = ? AND workflow = ? AND side = ?`,
		companyID, period, workflow, side)
	return count, err
}
