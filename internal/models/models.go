package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// WorkflowType identifies which reconciliation workflow a record belongs to.
type WorkflowType string

const (
	WorkflowBank WorkflowType = "bank"
	WorkflowAP   WorkflowType = "ap"
)

func ParseWorkflowType(s string) (WorkflowType, error) {
	switch WorkflowType(s) {
	case WorkflowBank, WorkflowAP:
		return WorkflowType(s), nil
	}
	return "", fmt.Errorf("unknown workflow type %q", s)
}

// Title returns the display form used in export filenames.
func (w WorkflowType) Title() string {
	switch w {
	case WorkflowBank:
		return "Bank"
	case WorkflowAP:
		return "AP"
	}
	return string(w)
}

// Side identifies which ledger a batch was uploaded to. The statement side
// (bank or vendor statements) accumulates batches; the ledger side (general
// ledger or AP ledger) holds exactly one active batch.
type Side string

const (
	SideStatement Side = "statement"
	SideLedger    Side = "ledger"
)

func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideStatement, SideLedger:
		return Side(s), nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// MatchType is the rule category that produced a pairing.
type MatchType string

const (
	MatchExact       MatchType = "exact"
	MatchTolerance   MatchType = "tolerance"
	MatchFeeAdjusted MatchType = "fee_adjusted"
	MatchFXAdjusted  MatchType = "fx_adjusted"
	MatchOneToMany   MatchType = "one_to_many"
	MatchManyToOne   MatchType = "many_to_one"
	MatchAIFuzzy     MatchType = "ai_fuzzy"
)

// LineItem is a single parsed transaction or ledger entry. Line items are
// immutable once stored; corrections happen by deleting and re-uploading the
// batch they came from.
type LineItem struct {
	ID              string              `db:"id" json:"id"`
	CompanyID       string              `db:"company_id" json:"-"`
	Period          string              `db:"period" json:"-"`
	Workflow        WorkflowType        `db:"workflow" json:"-"`
	Side            Side                `db:"side" json:"-"`
	Date            string              `db:"txn_date" json:"date"`
	Description     string              `db:"description" json:"description"`
	Amount          decimal.Decimal     `db:"amount" json:"amount"`
	Balance         decimal.NullDecimal `db:"balance" json:"balance,omitempty"`
	Currency        string              `db:"currency" json:"currency,omitempty"`
	SourceBatchID   string              `db:"batch_id" json:"sourceBatchId"`
	SourceBatchName string              `db:"source_batch_name" json:"sourceBatchName"`
}

// ParsedDate returns the line item date as a time. Dates are stored in the
// YYYY-MM-DD form they arrive in.
func (li LineItem) ParsedDate() (time.Time, error) {
	return time.Parse("2006-01-02", li.Date)
}

// Batch is one uploaded statement or ledger file and its parsed line items.
type Batch struct {
	ID            string       `db:"id" json:"id"`
	CompanyID     string       `db:"company_id" json:"-"`
	Period        string       `db:"period" json:"-"`
	Workflow      WorkflowType `db:"workflow" json:"-"`
	Side          Side         `db:"side" json:"-"`
	FileName      string       `db:"file_name" json:"fileName"`
	UploadedAt    time.Time    `db:"uploaded_at" json:"uploadedAt"`
	LineItemCount int          `db:"line_item_count" json:"lineItemCount"`
}

// MatchedPair pairs one statement-side item against one or more ledger-side
// items. The right amounts sum to the left amount within the tolerance the
// match type declares.
type MatchedPair struct {
	LeftItem    LineItem   `json:"leftItem"`
	RightItems  []LineItem `json:"rightItems"`
	Confidence  float64    `json:"confidence"`
	MatchType   MatchType  `json:"matchType"`
	Explanation string     `json:"explanation,omitempty"`
}

// JournalEntry is a suggested correcting entry for an unmatched item.
type JournalEntry struct {
	Description   string          `json:"description"`
	DebitAccount  string          `json:"debitAccount"`
	CreditAccount string          `json:"creditAccount"`
	Amount        decimal.Decimal `json:"amount"`
}

// UnmatchedItem is a line item no pass could pair, with a rule-based
// suggestion for resolving it.
type UnmatchedItem struct {
	Item            LineItem      `json:"item"`
	Side            Side          `json:"side"`
	Reason          string        `json:"reason"`
	SuggestedAction string        `json:"suggestedAction"`
	SuggestedEntry  *JournalEntry `json:"suggestedEntry,omitempty"`
}

// Summary is derived from a match result after all passes.
type Summary struct {
	MatchedCount        int             `json:"matchedCount"`
	UnmatchedLeftCount  int             `json:"unmatchedLeftCount"`
	UnmatchedRightCount int             `json:"unmatchedRightCount"`
	LeftTotal           decimal.Decimal `json:"leftTotal"`
	RightTotal          decimal.Decimal `json:"rightTotal"`
	AbsoluteDifference  decimal.Decimal `json:"absoluteDifference"`
	MatchRate           float64         `json:"matchRate"`
}

// ReconciliationRecord is the persisted result of one engine run for a
// (company, period, workflow) key. Exactly one record exists per key; a
// re-run replaces it. While locked, the record and the uploads beneath it
// are frozen.
type ReconciliationRecord struct {
	CompanyID      string          `json:"companyId"`
	Period         string          `json:"period"`
	Workflow       WorkflowType    `json:"workflowType"`
	MatchedPairs   []MatchedPair   `json:"matchedPairs"`
	UnmatchedLeft  []UnmatchedItem `json:"unmatchedLeft"`
	UnmatchedRight []UnmatchedItem `json:"unmatchedRight"`
	Summary        Summary         `json:"summary"`
	Locked         bool            `json:"locked"`
	LockedAt       *time.Time      `json:"lockedAt,omitempty"`
	UnlockedAt     *time.Time      `json:"unlockedAt,omitempty"`
}

// MonthCloseLock is the period-wide close state set by the month-end close
// process. When locked it overrides every record-level operation.
type MonthCloseLock struct {
	CompanyID string     `db:"company_id" json:"companyId"`
	Period    string     `db:"period" json:"period"`
	IsLocked  bool       `db:"is_locked" json:"isLocked"`
	LockedAt  *time.Time `db:"locked_at" json:"lockedAt,omitempty"`
}

// ValidatePeriod checks the YYYY-MM period key format.
func ValidatePeriod(period string) error {
	if _, err := time.Parse("2006-01", period); err != nil {
		return fmt.Errorf("invalid period %q, expected YYYY-MM", period)
	}
	return nil
}
