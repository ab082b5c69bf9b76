package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"reconciliation-lifecycle/internal/models"
)

type RecordRepository interface {
	SaveRecord(tx *sqlx.Tx, record *models.ReconciliationRecord) error
	GetRecord(companyID, period string, workflow models.WorkflowType) (*models.ReconciliationRecord, error)
	UpdateLockState(tx *sqlx.Tx, companyID, period string, workflow models.WorkflowType, locked bool, lockedAt, unlockedAt *time.Time) error
}

type recordRepository struct {
	db *sqlx.DB
}

func NewRecordRepository(db *sqlx.DB) RecordRepository {
	return &recordRepository{db: db}
}

// recordResult is the portion of a ReconciliationRecord persisted as a JSON
// document. Lock state lives in dedicated columns so lock transitions never
// rewrite the result payload.
type recordResult struct {
	MatchedPairs   []models.MatchedPair   `json:"matchedPairs"`
	UnmatchedLeft  []models.UnmatchedItem `json:"unmatchedLeft"`
	UnmatchedRight []models.UnmatchedItem `json:"unmatchedRight"`
	Summary        models.Summary         `json:"summary"`
}

type recordRow struct {
	ID         string              `db:"id"`
	CompanyID  string              `db:"company_id"`
	Period     string              `db:"period"`
	Workflow   models.WorkflowType `db:"workflow"`
	Result     []byte              `db:"result"`
	Locked     bool                `db:"locked"`
	LockedAt   *time.Time          `db:"locked_at"`
	UnlockedAt *time.Time          `db:"unlocked_at"`
	CreatedAt  time.Time           `db:"created_at"`
	UpdatedAt  time.Time           `db:"updated_at"`
}

// SaveRecord inserts or replaces the single record for the record's
// (company, period, workflow) key. A replacement clears lock timestamps; the
// caller enforces that a locked record is never replaced.
func (r *recordRepository) SaveRecord(tx *sqlx.Tx, record *models.ReconciliationRecord) error {
	payload, err := json.Marshal(recordResult{
		MatchedPairs:   record.MatchedPairs,
		UnmatchedLeft:  record.UnmatchedLeft,
		UnmatchedRight: record.UnmatchedRight,
		Summary:        record.Summary,
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	var existingID string
	err = tx.Get(&existingID, `
		SELECT id FROM reconciliation_records
		WHERE company_id = ? AND period = ? AND workflow = ?`,
		record.CompanyID, record.Period, record.Workflow)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if existingID != "" {
		_, err = tx.Exec(`
			UPDATE reconciliation_records
			SET result = ?, locked = ?, locked_at = NULL, unlocked_at = ?, updated_at = ?
			WHERE id = ?`,
			payload, false, record.UnlockedAt, now, existingID)
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO reconciliation_records (
			id, company_id, period, workflow, result,
			locked, locked_at, unlocked_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		record.CompanyID,
		record.Period,
		record.Workflow,
		payload,
		false,
		nil,
		record.UnlockedAt,
		now,
		now,
	)
	return err
}

func (r *recordRepository) GetRecord(companyID, period string, workflow models.WorkflowType) (*models.ReconciliationRecord, error) {
	var row recordRow
	err := r.db.Get(&row, `
		SELECT id, company_id, period, workflow, result,
		       locked, locked_at, unlocked_at, created_at, updated_at
		FROM reconciliation_records
		WHERE company_id = ? AND period = ? AND workflow = ?`,
		companyID, period, workflow)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var result recordResult
	if err := json.Unmarshal(row.Result, &result); err != nil {
		return nil, err
	}

	return &models.ReconciliationRecord{
		CompanyID:      row.CompanyID,
		Period:         row.Period,
		Workflow:       row.Workflow,
		MatchedPairs:   result.MatchedPairs,
		UnmatchedLeft:  result.UnmatchedLeft,
		UnmatchedRight: result.UnmatchedRight,
		Summary:        result.Summary,
		Locked:         row.Locked,
		LockedAt:       row.LockedAt,
		UnlockedAt:     row.UnlockedAt,
	}, nil
}

func (r *recordRepository) UpdateLockState(tx *sqlx.Tx, companyID, period string, workflow models.WorkflowType, locked bool, lockedAt, unlockedAt *time.Time) error {
	result, err := tx.Exec(`
		UPDATE reconciliation_records
		SET locked = ?, locked_at = ?, unlocked_at = ?, updated_at = ?
		WHERE company_id = ? AND period = ? AND workflow = ?`,
		locked, lockedAt, unlockedAt, time.Now().UTC(),
		companyID, period, workflow)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}
