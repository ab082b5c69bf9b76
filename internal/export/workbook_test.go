package export_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"reconciliation-lifecycle/internal/export"
	"reconciliation-lifecycle/internal/models"
)

func sampleRecord() *models.ReconciliationRecord {
	item := func(date, description, amount string) models.LineItem {
		return models.LineItem{
			Date:            date,
			Description:     description,
			Amount:          decimal.RequireFromString(amount),
			SourceBatchName: "jan.csv",
		}
	}
	lockedAt := time.Date(2025, time.February, 2, 9, 0, 0, 0, time.UTC)

	return &models.ReconciliationRecord{
		CompanyID: "acme",
		Period:    "2025-01",
		Workflow:  models.WorkflowBank,
		MatchedPairs: []models.MatchedPair{
			{
				LeftItem:    item("2025-01-10", "WIRE TRANSFER ACME", "1500.00"),
				RightItems:  []models.LineItem{item("2025-01-10", "Acme Corp receivable", "1500.00")},
				Confidence:  1.0,
				MatchType:   models.MatchExact,
				Explanation: "Amounts match exactly, dates 0 day(s) apart",
			},
			{
				LeftItem: item("2025-01-15", "BATCH DEPOSIT", "850.00"),
				RightItems: []models.LineItem{
					item("2025-01-15", "Invoice 101", "400.00"),
					item("2025-01-16", "Invoice 102", "450.00"),
				},
				Confidence:  0.85,
				MatchType:   models.MatchManyToOne,
				Explanation: "2 ledger entries sum to the statement amount",
			},
		},
		UnmatchedLeft: []models.UnmatchedItem{
			{
				Item:            item("2025-01-20", "MONTHLY SERVICE FEE", "-12.00"),
				Side:            models.SideStatement,
				Reason:          "Bank fee not recorded in the ledger",
				SuggestedAction: "Post the suggested fee entry",
				SuggestedEntry: &models.JournalEntry{
					Description:   "Record bank fee: MONTHLY SERVICE FEE",
					DebitAccount:  "Bank Fees",
					CreditAccount: "Cash",
					Amount:        decimal.RequireFromString("12.00"),
				},
			},
		},
		UnmatchedRight: []models.UnmatchedItem{
			{
				Item:            item("2025-01-28", "CHECK 1042", "-75.00"),
				Side:            models.SideLedger,
				Reason:          "Ledger entry has not cleared the bank",
				SuggestedAction: "Likely an outstanding check",
			},
		},
		Summary: models.Summary{
			MatchedCount:        2,
			UnmatchedLeftCount:  1,
			UnmatchedRightCount: 1,
			LeftTotal:           decimal.RequireFromString("2338.00"),
			RightTotal:          decimal.RequireFromString("2275.00"),
			AbsoluteDifference:  decimal.RequireFromString("63.00"),
			MatchRate:           50.0,
		},
		Locked:   true,
		LockedAt: &lockedAt,
	}
}

func TestWorkbook_SheetLayout(t *testing.T) {
	record := sampleRecord()

	data, err := export.Workbook(record)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{
		export.SheetSummary,
		export.SheetMatched,
		export.SheetUnmatchedStatement,
		export.SheetUnmatchedLedger,
	}, f.GetSheetList())
}

func TestWorkbook_MatchedRowsExpandCombinations(t *testing.T) {
	record := sampleRecord()

	data, err := export.Workbook(record)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.SheetMatched)
	require.NoError(t, err)
	// Header plus one row per ledger entry: 1 for the exact pair, 2 for the
	// combination.
	require.Len(t, rows, 4)

	assert.Equal(t, "Match Type", rows[0][0])
	assert.Equal(t, "exact", rows[1][0])
	assert.Equal(t, "WIRE TRANSFER ACME", rows[1][3])

	assert.Equal(t, "many_to_one", rows[2][0])
	assert.Equal(t, "BATCH DEPOSIT", rows[2][3])
	assert.Equal(t, "Invoice 101", rows[2][6])
	// The continuation row repeats only the ledger side.
	assert.Equal(t, "", rows[3][0])
	assert.Equal(t, "Invoice 102", rows[3][6])
	assert.Equal(t, "450.00", rows[3][7])
}

func TestWorkbook_SummarySheet(t *testing.T) {
	record := sampleRecord()

	data, err := export.Workbook(record)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	company, err := f.GetCellValue(export.SheetSummary, "B1")
	require.NoError(t, err)
	assert.Equal(t, "acme", company)

	rate, err := f.GetCellValue(export.SheetSummary, "B11")
	require.NoError(t, err)
	assert.Equal(t, "50.0%", rate)
}

func TestWorkbook_UnmatchedSheets(t *testing.T) {
	record := sampleRecord()

	data, err := export.Workbook(record)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	statement, err := f.GetRows(export.SheetUnmatchedStatement)
	require.NoError(t, err)
	require.Len(t, statement, 2)
	assert.Equal(t, "MONTHLY SERVICE FEE", statement[1][1])
	assert.Equal(t, "Bank Fees", statement[1][8])

	ledgerRows, err := f.GetRows(export.SheetUnmatchedLedger)
	require.NoError(t, err)
	require.Len(t, ledgerRows, 2)
	assert.Equal(t, "CHECK 1042", ledgerRows[1][1])
}

func TestWorkbook_EmptyRecord(t *testing.T) {
	record := &models.ReconciliationRecord{
		CompanyID:      "acme",
		Period:         "2025-01",
		Workflow:       models.WorkflowAP,
		MatchedPairs:   []models.MatchedPair{},
		UnmatchedLeft:  []models.UnmatchedItem{},
		UnmatchedRight: []models.UnmatchedItem{},
	}

	data, err := export.Workbook(record)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.SheetMatched)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Bank_acme_2025-01.xlsx", export.FileName(&models.ReconciliationRecord{
		CompanyID: "acme",
		Period:    "2025-01",
		Workflow:  models.WorkflowBank,
	}))
	assert.Equal(t, "AP_acme_2025-02.xlsx", export.FileName(&models.ReconciliationRecord{
		CompanyID: "acme",
		Period:    "2025-02",
		Workflow:  models.WorkflowAP,
	}))
}
