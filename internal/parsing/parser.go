package parsing

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"reconciliation-lifecycle/internal/models"
)

// Row is one parsed statement or ledger line before it becomes a stored
// LineItem.
type Row struct {
	Date        string
	Description string
	Amount      decimal.Decimal
	Balance     decimal.NullDecimal
	Currency    string
}

var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseFile parses an uploaded statement or ledger file into rows. CSV and
// tab-separated text are read directly; .xlsx workbooks are read through
// excelize. A file from which no rows are recoverable is a ParseError; a row
// with an unparseable amount aborts the whole parse with a ValidationError
// so no partial batch is ever stored.
func ParseFile(fileName string, r io.Reader) ([]Row, error) {
	records, err := readRecords(fileName, r)
	if err != nil {
		return nil, &models.ParseError{FileName: fileName, Reason: err.Error()}
	}
	if len(records) == 0 {
		return nil, &models.ParseError{FileName: fileName, Reason: "file is empty"}
	}

	columns, start := mapColumns(records[0])
	if columns.date < 0 || !columns.hasAmount() {
		return nil, &models.ParseError{FileName: fileName, Reason: "no date and amount columns found"}
	}

	var rows []Row
	for i := start; i < len(records); i++ {
		record := records[i]
		if isBlank(record) {
			continue
		}
		row, err := parseRow(record, columns)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, &models.ParseError{FileName: fileName, Reason: "no line items recoverable"}
	}
	return rows, nil
}

func readRecords(fileName string, r io.Reader) ([][]string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == ".xlsx" || ext == ".xls" {
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sheet := f.GetSheetName(0)
		return f.GetRows(sheet)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1
	if !strings.Contains(string(data), ",") && strings.Contains(string(data), "\t") {
		reader.Comma = '\t'
	}
	return reader.ReadAll()
}

type columnMap struct {
	date        int
	description int
	amount      int
	debit       int
	credit      int
	balance     int
	currency    int
}

// hasAmount reports whether an amount is recoverable, either from a single
// amount column or from a debit/credit pair.
func (c columnMap) hasAmount() bool {
	return c.amount >= 0 || (c.debit >= 0 && c.credit >= 0)
}

// mapColumns resolves header names to column indexes. Returns the map and the
// index of the first data row; headerless files fall back to positional
// date, description, amount.
func mapColumns(header []string) (columnMap, int) {
	cols := columnMap{date: -1, description: -1, amount: -1, debit: -1, credit: -1, balance: -1, currency: -1}
	matched := false

	for i, name := range header {
		switch normalizeHeader(name) {
		case "date", "transactiondate", "txndate", "postingdate", "valuedate", "entrydate":
			cols.date = i
			matched = true
		case "description", "memo", "details", "narrative", "particulars", "payee":
			cols.description = i
			matched = true
		case "amount", "value", "transactionamount":
			cols.amount = i
			matched = true
		case "debit", "withdrawal", "moneyout":
			cols.debit = i
			matched = true
		case "credit", "deposit", "moneyin":
			cols.credit = i
			matched = true
		case "balance", "runningbalance", "closingbalance":
			cols.balance = i
			matched = true
		case "currency", "ccy":
			cols.currency = i
			matched = true
		}
	}

	if !matched {
		// Headerless export: date, description, amount in the first columns.
		cols.date, cols.description, cols.amount = 0, 1, 2
		return cols, 0
	}
	return cols, 1
}

func parseRow(record []string, cols columnMap) (Row, error) {
	var row Row

	date, err := parseDate(field(record, cols.date))
	if err != nil {
		return row, &models.ValidationError{Field: "date", Reason: err.Error()}
	}
	row.Date = date

	row.Description = strings.TrimSpace(field(record, cols.description))

	amount, err := resolveAmount(record, cols)
	if err != nil {
		return row, &models.ValidationError{Field: "amount", Reason: err.Error()}
	}
	row.Amount = amount

	if cols.balance >= 0 {
		if raw := strings.TrimSpace(field(record, cols.balance)); raw != "" {
			bal, err := parseAmount(raw)
			if err != nil {
				return row, &models.ValidationError{Field: "balance", Reason: err.Error()}
			}
			row.Balance = decimal.NewNullDecimal(bal)
		}
	}
	if cols.currency >= 0 {
		row.Currency = strings.ToUpper(strings.TrimSpace(field(record, cols.currency)))
	}
	return row, nil
}

func resolveAmount(record []string, cols columnMap) (decimal.Decimal, error) {
	if cols.amount >= 0 {
		return parseAmount(field(record, cols.amount))
	}
	// Separate debit/credit columns: credits are inflows, debits outflows.
	debitRaw := strings.TrimSpace(field(record, cols.debit))
	creditRaw := strings.TrimSpace(field(record, cols.credit))
	if creditRaw != "" {
		return parseAmount(creditRaw)
	}
	if debitRaw != "" {
		amount, err := parseAmount(debitRaw)
		if err != nil {
			return decimal.Zero, err
		}
		return amount.Neg(), nil
	}
	return decimal.Zero, fmt.Errorf("no amount in debit or credit column")
}

func parseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount is empty")
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer(",", "", "$", "", "€", "", "£", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("non-numeric amount %q", raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

func parseDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("date is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", raw)
}

func normalizeHeader(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(s)
	return s
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
