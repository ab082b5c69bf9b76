package repositories

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"reconciliation-lifecycle/internal/models"
)

// MonthCloseRepository reads and writes the period-wide close flag. The
// reconciliation lifecycle only reads it; the write side belongs to the
// month-end close process.
type MonthCloseRepository interface {
	GetLock(companyID, period string) (*models.MonthCloseLock, error)
	SetLock(companyID, period string, locked bool) (*models.MonthCloseLock, error)
}

type monthCloseRepository struct {
	db *sqlx.DB
}

func NewMonthCloseRepository(db *sqlx.DB) MonthCloseRepository {
	return &monthCloseRepository{db: db}
}

// GetLock returns the close state for a period. A period with no row has
// never been closed.
func (r *monthCloseRepository) GetLock(companyID, period string) (*models.MonthCloseLock, error) {
	lock := &models.MonthCloseLock{}
	err := r.db.Get(lock, `
		SELECT company_id, period, is_locked, locked_at
		FROM month_close_locks
		WHERE company_id = ? AND period = ?`,
		companyID, period)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.MonthCloseLock{CompanyID: companyID, Period: period, IsLocked: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// SetLock upserts the close state for a period. Existence is checked with a
// SELECT rather than RowsAffected, because the mysql driver reports changed
// rows and a no-op write would misread as missing.
func (r *monthCloseRepository) SetLock(companyID, period string, locked bool) (*models.MonthCloseLock, error) {
	var lockedAt *time.Time
	if locked {
		now := time.Now().UTC()
		lockedAt = &now
	}

	var existing string
	err := r.db.Get(&existing, `
		SELECT company_id FROM month_close_locks
		WHERE company_id = ? AND period = ?`,
		companyID, period)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if errors.Is(err, sql.ErrNoRows) {
		_, err = r.db.Exec(`
			INSERT INTO month_close_locks (company_id, period, is_locked, locked_at)
			VALUES (?, ?, ?, ?)`,
			companyID, period, locked, lockedAt)
	} else {
		_, err = r.db.Exec(`
			UPDATE month_close_locks
			SET is_locked = ?, locked_at = ?
			WHERE company_id = ? AND period = ?`,
			locked, lockedAt, companyID, period)
	}
	if err != nil {
		return nil, err
	}

	return &models.MonthCloseLock{
		CompanyID: companyID,
		Period:    period,
		IsLocked:  locked,
		LockedAt:  lockedAt,
	}, nil
}
