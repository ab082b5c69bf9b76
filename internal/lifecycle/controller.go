package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"reconciliation-lifecycle/internal/ledger"
	"reconciliation-lifecycle/internal/matching"
	"reconciliation-lifecycle/internal/models"
	"reconciliation-lifecycle/internal/repositories"
)

// State of one (company, period, workflow) key, derived from stored data.
type State string

const (
	StateNoData State = "no_data"
	StateStaged State = "staged"
	StateRan    State = "ran"
	StateLocked State = "locked"
)

// Controller drives the reconciliation lifecycle:
// upload -> run -> review -> lock -> unlock -> re-run. All mutations for a
// key are serialized through an advisory in-process lock; concurrent
// mutators get ErrConflict and retry. Reads bypass the lock and see the
// latest committed state.
type Controller struct {
	db         *sqlx.DB
	store      *ledger.Store
	records    repositories.RecordRepository
	monthClose repositories.MonthCloseRepository
	engine     *matching.Engine
	runBudget  time.Duration

	mu     sync.Mutex
	active map[string]bool
}

func NewController(
	db *sqlx.DB,
	store *ledger.Store,
	records repositories.RecordRepository,
	monthClose repositories.MonthCloseRepository,
	engine *matching.Engine,
	runBudget time.Duration,
) *Controller {
	if runBudget <= 0 {
		runBudget = 5 * time.Second
	}
	return &Controller{
		db:         db,
		store:      store,
		records:    records,
		monthClose: monthClose,
		engine:     engine,
		runBudget:  runBudget,
		active:     make(map[string]bool),
	}
}

func periodKey(companyID, period string, workflow models.WorkflowType) string {
	return companyID + "|" + period + "|" + string(workflow)
}

// acquire claims the single-writer slot for a key. The release func must be
// called exactly once.
func (c *Controller) acquire(companyID, period string, workflow models.WorkflowType) (func(), error) {
	key := periodKey(companyID, period, workflow)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[key] {
		return nil, models.ErrConflict
	}
	c.active[key] = true
	return func() {
		c.mu.Lock()
		delete(c.active, key)
		c.mu.Unlock()
	}, nil
}

// UploadBatch stores a new upload for one side of the period.
func (c *Controller) UploadBatch(companyID, period string, workflow models.WorkflowType, side models.Side, fileName string, file io.Reader) (*models.Batch, error) {
	release, err := c.acquire(companyID, period, workflow)
	if err != nil {
		return nil, err
	}
	defer release()
	return c.store.AddBatch(companyID, period, workflow, side, fileName, file)
}

// DeleteBatch removes an upload and its line items.
func (c *Controller) DeleteBatch(companyID, period string, workflow models.WorkflowType, batchID string) error {
	release, err := c.acquire(companyID, period, workflow)
	if err != nil {
		return err
	}
	defer release()
	return c.store.DeleteBatch(companyID, period, workflow, batchID)
}

// Run executes the match engine over the period's current line items and
// replaces the persisted record. The run is bounded by the configured
// budget and detached from the caller's context: a client disconnect never
// discards a run that is about to commit. Nothing recomputes automatically;
// an upload after a run leaves the old record in place until the next Run.
func (c *Controller) Run(companyID, period string, workflow models.WorkflowType) (*models.ReconciliationRecord, error) {
	release, err := c.acquire(companyID, period, workflow)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := c.store.CheckUnlocked(companyID, period, workflow); err != nil {
		return nil, err
	}
	staged, err := c.store.HasBothSides(companyID, period, workflow)
	if err != nil {
		return nil, err
	}
	if !staged {
		return nil, models.ErrNotStaged
	}

	left, err := c.store.ListLineItems(companyID, period, workflow, models.SideStatement)
	if err != nil {
		return nil, err
	}
	right, err := c.store.ListLineItems(companyID, period, workflow, models.SideLedger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.runBudget)
	defer cancel()

	started := time.Now()
	result, err := c.engine.Run(ctx, left, right)
	if err != nil {
		return nil, err
	}
	log.Printf("reconciliation run %s/%s/%s: %d matched, %d+%d unmatched in %s",
		companyID, period, workflow,
		result.Summary.MatchedCount,
		result.Summary.UnmatchedLeftCount,
		result.Summary.UnmatchedRightCount,
		time.Since(started).Round(time.Millisecond))

	// A replaced record keeps its unlock timestamp so reviewers can see the
	// re-run happened after an unlock.
	var unlockedAt *time.Time
	if prior, err := c.records.GetRecord(companyID, period, workflow); err == nil {
		unlockedAt = prior.UnlockedAt
	}

	record := &models.ReconciliationRecord{
		CompanyID:      companyID,
		Period:         period,
		Workflow:       workflow,
		MatchedPairs:   result.MatchedPairs,
		UnmatchedLeft:  result.UnmatchedLeft,
		UnmatchedRight: result.UnmatchedRight,
		Summary:        result.Summary,
		UnlockedAt:     unlockedAt,
	}

	tx, err := c.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := c.records.SaveRecord(tx, record); err != nil {
		return nil, fmt.Errorf("failed to persist record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit record: %w", err)
	}

	return record, nil
}

// GetRecord returns the last persisted record for a key.
func (c *Controller) GetRecord(companyID, period string, workflow models.WorkflowType) (*models.ReconciliationRecord, error) {
	return c.records.GetRecord(companyID, period, workflow)
}

// Lock freezes the record and the uploads beneath it. Locking an already
// locked record is a no-op that keeps the original lock timestamp.
func (c *Controller) Lock(companyID, period string, workflow models.WorkflowType) (*models.ReconciliationRecord, error) {
	release, err := c.acquire(companyID, period, workflow)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := c.checkPeriodOpen(companyID, period); err != nil {
		return nil, err
	}
	record, err := c.records.GetRecord(companyID, period, workflow)
	if err != nil {
		return nil, err
	}
	if record.Locked {
		return record, nil
	}

	now := time.Now().UTC()
	if err := c.updateLockState(companyID, period, workflow, true, &now, record.UnlockedAt); err != nil {
		return nil, err
	}
	record.Locked = true
	record.LockedAt = &now
	return record, nil
}

// Unlock reopens the record for uploads and re-runs. The month-end close
// always wins: a closed period can never be unlocked at the record level.
func (c *Controller) Unlock(companyID, period string, workflow models.WorkflowType) (*models.ReconciliationRecord, error) {
	release, err := c.acquire(companyID, period, workflow)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := c.checkPeriodOpen(companyID, period); err != nil {
		return nil, err
	}
	record, err := c.records.GetRecord(companyID, period, workflow)
	if err != nil {
		return nil, err
	}
	if !record.Locked {
		return record, nil
	}

	now := time.Now().UTC()
	if err := c.updateLockState(companyID, period, workflow, false, nil, &now); err != nil {
		return nil, err
	}
	record.Locked = false
	record.LockedAt = nil
	record.UnlockedAt = &now
	return record, nil
}

func (c *Controller) updateLockState(companyID, period string, workflow models.WorkflowType, locked bool, lockedAt, unlockedAt *time.Time) error {
	tx, err := c.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := c.records.UpdateLockState(tx, companyID, period, workflow, locked, lockedAt, unlockedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (c *Controller) checkPeriodOpen(companyID, period string) error {
	lock, err := c.monthClose.GetLock(companyID, period)
	if err != nil {
		return err
	}
	if lock.IsLocked {
		return models.ErrPeriodLocked
	}
	return nil
}

// CurrentState derives the lifecycle state for a key.
func (c *Controller) CurrentState(companyID, period string, workflow models.WorkflowType) (State, error) {
	record, err := c.records.GetRecord(companyID, period, workflow)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return "", err
	}
	if record != nil {
		if record.Locked {
			return StateLocked, nil
		}
		return StateRan, nil
	}

	staged, err := c.store.HasBothSides(companyID, period, workflow)
	if err != nil {
		return "", err
	}
	if staged {
		return StateStaged, nil
	}
	return StateNoData, nil
}

// MonthCloseStatus reads the period-wide close flag.
func (c *Controller) MonthCloseStatus(companyID, period string) (*models.MonthCloseLock, error) {
	return c.monthClose.GetLock(companyID, period)
}

// SetMonthClose flips the period-wide close flag. This is the month-end
// close process's surface, not the dashboard's.
func (c *Controller) SetMonthClose(companyID, period string, locked bool) (*models.MonthCloseLock, error) {
	return c.monthClose.SetLock(companyID, period, locked)
}
