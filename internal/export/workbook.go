package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"reconciliation-lifecycle/internal/models"
)

// Sheet names and column layouts are fixed so exported workbooks diff
// cleanly across runs.
const (
	SheetSummary            = "Summary"
	SheetMatched            = "Matched"
	SheetUnmatchedStatement = "Unmatched Statement"
	SheetUnmatchedLedger    = "Unmatched Ledger"
)

var matchedHeader = []interface{}{
	"Match Type", "Confidence", "Statement Date", "Statement Description", "Statement Amount",
	"Ledger Date", "Ledger Description", "Ledger Amount", "Explanation",
}

var unmatchedHeader = []interface{}{
	"Date", "Description", "Amount", "Currency", "Source File", "Reason", "Suggested Action",
	"Suggested Entry", "Debit Account", "Credit Account", "Entry Amount",
}

// Workbook renders a reconciliation record to xlsx bytes. It is a pure
// function of the record: no storage access, no side effects.
func Workbook(record *models.ReconciliationRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	if err := writeSummary(f, record); err != nil {
		return nil, err
	}
	if err := writeMatched(f, record.MatchedPairs); err != nil {
		return nil, err
	}
	if err := writeUnmatched(f, SheetUnmatchedStatement, record.UnmatchedLeft); err != nil {
		return nil, err
	}
	if err := writeUnmatched(f, SheetUnmatchedLedger, record.UnmatchedRight); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName builds the download name for one record's workbook.
func FileName(record *models.ReconciliationRecord) string {
	return fmt.Sprintf("%s_%s_%s.xlsx", record.Workflow.Title(), record.CompanyID, record.Period)
}

func writeSummary(f *excelize.File, record *models.ReconciliationRecord) error {
	rows := [][]interface{}{
		{"Company", record.CompanyID},
		{"Period", record.Period},
		{"Workflow", record.Workflow.Title()},
		{"Locked", record.Locked},
		{"Matched Pairs", record.Summary.MatchedCount},
		{"Unmatched Statement Items", record.Summary.UnmatchedLeftCount},
		{"Unmatched Ledger Items", record.Summary.UnmatchedRightCount},
		{"Statement Total", record.Summary.LeftTotal.StringFixed(2)},
		{"Ledger Total", record.Summary.RightTotal.StringFixed(2)},
		{"Absolute Difference", record.Summary.AbsoluteDifference.StringFixed(2)},
		{"Match Rate", fmt.Sprintf("%.1f%%", record.Summary.MatchRate)},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// writeMatched emits one row per statement item; extra ledger entries in a
// combination match continue on following rows with the statement columns
// left blank.
func writeMatched(f *excelize.File, pairs []models.MatchedPair) error {
	if _, err := f.NewSheet(SheetMatched); err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetMatched, "A1", &matchedHeader); err != nil {
		return err
	}

	rowNum := 2
	for _, pair := range pairs {
		for i, rightItem := range pair.RightItems {
			row := make([]interface{}, 0, len(matchedHeader))
			if i == 0 {
				row = append(row,
					string(pair.MatchType),
					fmt.Sprintf("%.0f%%", pair.Confidence*100),
					pair.LeftItem.Date,
					pair.LeftItem.Description,
					pair.LeftItem.Amount.StringFixed(2),
				)
			} else {
				row = append(row, "", "", "", "", "")
			}
			row = append(row,
				rightItem.Date,
				rightItem.Description,
				rightItem.Amount.StringFixed(2),
			)
			if i == 0 {
				row = append(row, pair.Explanation)
			}

			cell, err := excelize.CoordinatesToCellName(1, rowNum)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(SheetMatched, cell, &row); err != nil {
				return err
			}
			rowNum++
		}
	}
	return nil
}

func writeUnmatched(f *excelize.File, sheet string, items []models.UnmatchedItem) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &unmatchedHeader); err != nil {
		return err
	}

	for i, unmatched := range items {
		row := []interface{}{
			unmatched.Item.Date,
			unmatched.Item.Description,
			unmatched.Item.Amount.StringFixed(2),
			unmatched.Item.Currency,
			unmatched.Item.SourceBatchName,
			unmatched.Reason,
			unmatched.SuggestedAction,
		}
		if entry := unmatched.SuggestedEntry; entry != nil {
			row = append(row, entry.Description, entry.DebitAccount, entry.CreditAccount, entry.Amount.StringFixed(2))
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
