package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the reconciliation lifecycle. Handlers translate these
// to HTTP statuses; nothing below the handler layer masks them.
var (
	// ErrPeriodLocked is returned when the month-end close lock is set for
	// the period. It always wins over the record-level lock.
	ErrPeriodLocked = errors.New("period is closed by month-end close")

	// ErrRecordLocked is returned when the reconciliation record is locked
	// and a mutation was attempted. Unlock to continue.
	ErrRecordLocked = errors.New("reconciliation is locked")

	// ErrNotFound is returned when a batch or record does not exist and the
	// operation requires it.
	ErrNotFound = errors.New("not found")

	// ErrNotStaged is returned when a run is requested before both sides
	// have at least one batch.
	ErrNotStaged = errors.New("both statement and ledger uploads are required before running")

	// ErrConflict is returned when another mutation holds the period key.
	// Callers should retry.
	ErrConflict = errors.New("concurrent reconciliation operation in progress")

	// ErrEngineTimeout is returned when a run exceeds its wall-clock budget.
	ErrEngineTimeout = errors.New("match engine exceeded its time budget")
)

// ValidationError reports malformed input: an unreadable upload, a
// non-numeric amount, a missing required field. No partial state is
// committed when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// ParseError reports an upload from which no line items were recoverable.
type ParseError struct {
	FileName string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse %s: %s", e.FileName, e.Reason)
}
