package ledger

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"reconciliation-lifecycle/internal/models"
	"reconciliation-lifecycle/internal/parsing"
	"reconciliation-lifecycle/internal/repositories"
)

// Store owns uploaded batches and their line items, scoped by
// (company, period, workflow, side). Line items are immutable once stored;
// corrections happen by deleting a batch and re-uploading. Every mutation
// runs the dual gate: the month-end close lock first, then the record lock.
type Store struct {
	db         *sqlx.DB
	batches    repositories.BatchRepository
	records    repositories.RecordRepository
	monthClose repositories.MonthCloseRepository
}

func NewStore(
	db *sqlx.DB,
	batches repositories.BatchRepository,
	records repositories.RecordRepository,
	monthClose repositories.MonthCloseRepository,
) *Store {
	return &Store{
		db:         db,
		batches:    batches,
		records:    records,
		monthClose: monthClose,
	}
}

// AddBatch parses an uploaded file and stores it with its line items. On the
// ledger side the new batch replaces any prior one; the statement side
// accumulates.
func (s *Store) AddBatch(companyID, period string, workflow models.WorkflowType, side models.Side, fileName string, file io.Reader) (*models.Batch, error) {
	if companyID == "" {
		return nil, &models.ValidationError{Field: "companyId", Reason: "required"}
	}
	if err := models.ValidatePeriod(period); err != nil {
		return nil, &models.ValidationError{Field: "period", Reason: err.Error()}
	}
	if err := s.CheckUnlocked(companyID, period, workflow); err != nil {
		return nil, err
	}

	rows, err := parsing.ParseFile(fileName, file)
	if err != nil {
		return nil, err
	}

	batch := &models.Batch{
		ID:            uuid.New().String(),
		CompanyID:     companyID,
		Period:        period,
		Workflow:      workflow,
		Side:          side,
		FileName:      fileName,
		UploadedAt:    time.Now().UTC(),
		LineItemCount: len(rows),
	}

	items := make([]models.LineItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, models.LineItem{
			ID:              uuid.New().String(),
			CompanyID:       companyID,
			Period:          period,
			Workflow:        workflow,
			Side:            side,
			Date:            row.Date,
			Description:     row.Description,
			Amount:          row.Amount,
			Balance:         row.Balance,
			Currency:        row.Currency,
			SourceBatchID:   batch.ID,
			SourceBatchName: fileName,
		})
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if side == models.SideLedger {
		if err := s.batches.DeleteBatchesForSide(tx, companyID, period, workflow, side); err != nil {
			return nil, fmt.Errorf("failed to replace ledger batch: %w", err)
		}
	}
	if err := s.batches.InsertBatch(tx, batch, items); err != nil {
		return nil, fmt.Errorf("failed to store batch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}

	return batch, nil
}

func (s *Store) ListBatches(companyID, period string, workflow models.WorkflowType, side models.Side) ([]models.Batch, error) {
	return s.batches.ListBatches(companyID, period, workflow, side)
}

func (s *Store) ListLineItems(companyID, period string, workflow models.WorkflowType, side models.Side) ([]models.LineItem, error) {
	return s.batches.ListLineItems(companyID, period, workflow, side)
}

// SideTotal sums all line item amounts for one side.
func (s *Store) SideTotal(companyID, period string, workflow models.WorkflowType, side models.Side) (decimal.Decimal, error) {
	items, err := s.batches.ListLineItems(companyID, period, workflow, side)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	return total, nil
}

// HasBothSides reports whether the period is staged for a run.
func (s *Store) HasBothSides(companyID, period string, workflow models.WorkflowType) (bool, error) {
	statements, err := s.batches.CountBatches(companyID, period, workflow, models.SideStatement)
	if err != nil {
		return false, err
	}
	ledgers, err := s.batches.CountBatches(companyID, period, workflow, models.SideLedger)
	if err != nil {
		return false, err
	}
	return statements > 0 && ledgers > 0, nil
}

// DeleteBatch removes a batch and its line items. Batches outside the given
// scope are treated as not found so one company can never delete another's
// upload.
func (s *Store) DeleteBatch(companyID, period string, workflow models.WorkflowType, batchID string) error {
	batch, err := s.batches.GetBatch(batchID)
	if err != nil {
		return err
	}
	if batch.CompanyID != companyID || batch.Period != period || batch.Workflow != workflow {
		return models.ErrNotFound
	}
	if err := s.CheckUnlocked(companyID, period, workflow); err != nil {
		return err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	affected, err := s.batches.DeleteBatch(tx, batchID)
	if err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return tx.Commit()
}

// CheckUnlocked runs the dual gate. The period-level close always wins over
// the record-level lock, so it is checked first.
func (s *Store) CheckUnlocked(companyID, period string, workflow models.WorkflowType) error {
	lock, err := s.monthClose.GetLock(companyID, period)
	if err != nil {
		return err
	}
	if lock.IsLocked {
		return models.ErrPeriodLocked
	}

	record, err := s.records.GetRecord(companyID, period, workflow)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	if record.Locked {
		return models.ErrRecordLocked
	}
	return nil
}
