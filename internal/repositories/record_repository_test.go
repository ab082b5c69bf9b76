package repositories_test

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciliation-lifecycle/internal/database"
	"reconciliation-lifecycle/internal/models"
	"reconciliation-lifecycle/internal/repositories"
)

func newTestDB(t *testing.T) *sqlx.DB {
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, database.ApplySchema(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func emptyRecord(workflow models.WorkflowType) *models.ReconciliationRecord {
	return &models.ReconciliationRecord{
		CompanyID:      "acme",
		Period:         "2025-01",
		Workflow:       workflow,
		MatchedPairs:   []models.MatchedPair{},
		UnmatchedLeft:  []models.UnmatchedItem{},
		UnmatchedRight: []models.UnmatchedItem{},
		Summary:        models.Summary{MatchRate: 100.0},
	}
}

func save(t *testing.T, db *sqlx.DB, repo repositories.RecordRepository, record *models.ReconciliationRecord) {
	t.Helper()
	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.SaveRecord(tx, record))
	require.NoError(t, tx.Commit())
}

func TestRecordRepository_GetMissing(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewRecordRepository(db)

	_, err := repo.GetRecord("acme", "2025-01", models.WorkflowBank)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRecordRepository_SaveAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewRecordRepository(db)

	save(t, db, repo, emptyRecord(models.WorkflowBank))

	record, err := repo.GetRecord("acme", "2025-01", models.WorkflowBank)
	require.NoError(t, err)
	assert.Equal(t, "acme", record.CompanyID)
	assert.Equal(t, models.WorkflowBank, record.Workflow)
	assert.Equal(t, 100.0, record.Summary.MatchRate)
	assert.False(t, record.Locked)
	assert.NotNil(t, record.MatchedPairs)
}

func TestRecordRepository_OneRecordPerKey(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewRecordRepository(db)

	save(t, db, repo, emptyRecord(models.WorkflowBank))

	replacement := emptyRecord(models.WorkflowBank)
	replacement.Summary.MatchRate = 40.0
	save(t, db, repo, replacement)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM reconciliation_records`))
	assert.Equal(t, 1, count)

	record, err := repo.GetRecord("acme", "2025-01", models.WorkflowBank)
	require.NoError(t, err)
	assert.Equal(t, 40.0, record.Summary.MatchRate)

	// Workflows keep separate records under the same company and period.
	save(t, db, repo, emptyRecord(models.WorkflowAP))
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM reconciliation_records`))
	assert.Equal(t, 2, count)
}

func TestRecordRepository_LockStateRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewRecordRepository(db)

	save(t, db, repo, emptyRecord(models.WorkflowBank))

	lockedAt := time.Now().UTC()
	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.UpdateLockState(tx, "acme", "2025-01", models.WorkflowBank, true, &lockedAt, nil))
	require.NoError(t, tx.Commit())

	record, err := repo.GetRecord("acme", "2025-01", models.WorkflowBank)
	require.NoError(t, err)
	assert.True(t, record.Locked)
	require.NotNil(t, record.LockedAt)
	assert.True(t, lockedAt.Equal(*record.LockedAt))
	assert.Nil(t, record.UnlockedAt)
}

func TestRecordRepository_ReplacementClearsLockTimestamp(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewRecordRepository(db)

	save(t, db, repo, emptyRecord(models.WorkflowBank))

	lockedAt := time.Now().UTC()
	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.UpdateLockState(tx, "acme", "2025-01", models.WorkflowBank, true, &lockedAt, nil))
	require.NoError(t, tx.Commit())

	unlockedAt := lockedAt.Add(time.Hour)
	replacement := emptyRecord(models.WorkflowBank)
	replacement.UnlockedAt = &unlockedAt
	save(t, db, repo, replacement)

	record, err := repo.GetRecord("acme", "2025-01", models.WorkflowBank)
	require.NoError(t, err)
	assert.False(t, record.Locked)
	assert.Nil(t, record.LockedAt)
	require.NotNil(t, record.UnlockedAt)
	assert.True(t, unlockedAt.Equal(*record.UnlockedAt))
}

func TestRecordRepository_UpdateLockState_Missing(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewRecordRepository(db)

	tx, err := db.Beginx()
	require.NoError(t, err)
	defer tx.Rollback()

	now := time.Now().UTC()
	err = repo.UpdateLockState(tx, "acme", "2025-01", models.WorkflowBank, true, &now, nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMonthCloseRepository_DefaultUnlocked(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewMonthCloseRepository(db)

	lock, err := repo.GetLock("acme", "2025-01")
	require.NoError(t, err)
	assert.False(t, lock.IsLocked)
	assert.Nil(t, lock.LockedAt)
}

func TestMonthCloseRepository_SetAndClear(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewMonthCloseRepository(db)

	lock, err := repo.SetLock("acme", "2025-01", true)
	require.NoError(t, err)
	assert.True(t, lock.IsLocked)
	require.NotNil(t, lock.LockedAt)

	stored, err := repo.GetLock("acme", "2025-01")
	require.NoError(t, err)
	assert.True(t, stored.IsLocked)

	cleared, err := repo.SetLock("acme", "2025-01", false)
	require.NoError(t, err)
	assert.False(t, cleared.IsLocked)
	assert.Nil(t, cleared.LockedAt)

	stored, err = repo.GetLock("acme", "2025-01")
	require.NoError(t, err)
	assert.False(t, stored.IsLocked)
	assert.Nil(t, stored.LockedAt)
}

func TestMonthCloseRepository_RepeatedWritesAreNoOps(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewMonthCloseRepository(db)

	// Writing the same state twice must not trip the primary key, even when
	// the second write changes nothing.
	_, err := repo.SetLock("acme", "2025-01", false)
	require.NoError(t, err)
	_, err = repo.SetLock("acme", "2025-01", false)
	require.NoError(t, err)

	_, err = repo.SetLock("acme", "2025-01", true)
	require.NoError(t, err)
	_, err = repo.SetLock("acme", "2025-01", true)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM month_close_locks`))
	assert.Equal(t, 1, count)

	lock, err := repo.GetLock("acme", "2025-01")
	require.NoError(t, err)
	assert.True(t, lock.IsLocked)
}
