package parsing_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"reconciliation-lifecycle/internal/models"
	"reconciliation-lifecycle/internal/parsing"
)

func TestParseFile_CSVWithHeader(t *testing.T) {
	csv := strings.Join([]string{
		"Date,Description,Amount,Balance,Currency",
		"2025-01-10,WIRE TRANSFER ACME,1500.00,8200.50,USD",
		`2025-01-12,"SERVICE FEE, MONTHLY",-12.00,8188.50,USD`,
	}, "\n")

	rows, err := parsing.ParseFile("statement.csv", strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2025-01-10", rows[0].Date)
	assert.Equal(t, "WIRE TRANSFER ACME", rows[0].Description)
	assert.Equal(t, "1500", rows[0].Amount.String())
	require.True(t, rows[0].Balance.Valid)
	assert.Equal(t, "8200.5", rows[0].Balance.Decimal.String())
	assert.Equal(t, "USD", rows[0].Currency)

	assert.Equal(t, "SERVICE FEE, MONTHLY", rows[1].Description)
	assert.Equal(t, "-12", rows[1].Amount.String())
}

func TestParseFile_DebitCreditColumns(t *testing.T) {
	csv := strings.Join([]string{
		"Date,Description,Debit,Credit",
		"2025-01-10,DEPOSIT,,250.00",
		"2025-01-11,WITHDRAWAL,80.00,",
	}, "\n")

	rows, err := parsing.ParseFile("statement.csv", strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "250", rows[0].Amount.String())
	assert.Equal(t, "-80", rows[1].Amount.String())
}

func TestParseFile_DebitCreditWithBalanceAndCurrency(t *testing.T) {
	csv := strings.Join([]string{
		"Posting Date,Details,Money Out,Money In,Running Balance,CCY",
		"2025-01-10,DEPOSIT,,250.00,1250.00,usd",
		"2025-01-11,WITHDRAWAL,80.00,,1170.00,usd",
	}, "\n")

	rows, err := parsing.ParseFile("statement.csv", strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "250", rows[0].Amount.String())
	assert.Equal(t, "USD", rows[0].Currency)
	require.True(t, rows[0].Balance.Valid)
	assert.Equal(t, "-80", rows[1].Amount.String())
	assert.Equal(t, "1170", rows[1].Balance.Decimal.String())
}

func TestParseFile_DebitWithoutCreditRejected(t *testing.T) {
	csv := "Date,Description,Debit\n2025-01-10,WITHDRAWAL,80.00\n"

	_, err := parsing.ParseFile("statement.csv", strings.NewReader(csv))

	var parseErr *models.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParseFile_HeaderlessPositional(t *testing.T) {
	csv := strings.Join([]string{
		"2025-01-10,Opening deposit,1000.00",
		"2025-01-15,Coffee,-4.50",
	}, "\n")

	rows, err := parsing.ParseFile("export.csv", strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Opening deposit", rows[0].Description)
	assert.Equal(t, "-4.5", rows[1].Amount.String())
}

func TestParseFile_TabSeparated(t *testing.T) {
	tsv := "Date\tDescription\tAmount\n2025-01-10\tRENT\t2000.00\n"

	rows, err := parsing.ParseFile("ledger.txt", strings.NewReader(tsv))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "RENT", rows[0].Description)
	assert.Equal(t, "2000", rows[0].Amount.String())
}

func TestParseFile_AmountFormats(t *testing.T) {
	csv := strings.Join([]string{
		"Date,Description,Amount",
		`2025-01-10,Thousand separator,"1,234.56"`,
		"2025-01-11,Parenthesized negative,(98.10)",
		"2025-01-12,Currency symbol,$45.00",
	}, "\n")

	rows, err := parsing.ParseFile("statement.csv", strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "1234.56", rows[0].Amount.String())
	assert.Equal(t, "-98.1", rows[1].Amount.String())
	assert.Equal(t, "45", rows[2].Amount.String())
}

func TestParseFile_DateFormats(t *testing.T) {
	csv := strings.Join([]string{
		"Date,Description,Amount",
		"15/01/2025,Slash day first,10.00",
		"2025/01/16,Slash year first,10.00",
		`"Jan 17, 2025",Month name,10.00`,
	}, "\n")

	rows, err := parsing.ParseFile("statement.csv", strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2025-01-15", rows[0].Date)
	assert.Equal(t, "2025-01-16", rows[1].Date)
	assert.Equal(t, "2025-01-17", rows[2].Date)
}

func TestParseFile_SkipsBlankRows(t *testing.T) {
	csv := "Date,Description,Amount\n2025-01-10,RENT,2000.00\n,,\n"

	rows, err := parsing.ParseFile("statement.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestParseFile_EmptyFile(t *testing.T) {
	_, err := parsing.ParseFile("empty.csv", strings.NewReader(""))
	require.Error(t, err)

	var parseErr *models.ParseError
	assert.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "empty.csv", parseErr.FileName)
}

func TestParseFile_HeaderOnly(t *testing.T) {
	_, err := parsing.ParseFile("empty.csv", strings.NewReader("Date,Description,Amount\n"))

	var parseErr *models.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParseFile_MissingAmountColumn(t *testing.T) {
	csv := "Date,Description\n2025-01-10,RENT\n"

	_, err := parsing.ParseFile("statement.csv", strings.NewReader(csv))

	var parseErr *models.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParseFile_BadAmountAbortsWholeParse(t *testing.T) {
	csv := strings.Join([]string{
		"Date,Description,Amount",
		"2025-01-10,Good row,100.00",
		"2025-01-11,Bad row,not-a-number",
	}, "\n")

	_, err := parsing.ParseFile("statement.csv", strings.NewReader(csv))
	require.Error(t, err)

	var validationErr *models.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "amount", validationErr.Field)
}

func TestParseFile_BadDateAbortsWholeParse(t *testing.T) {
	csv := "Date,Description,Amount\nsometime,RENT,2000.00\n"

	_, err := parsing.ParseFile("statement.csv", strings.NewReader(csv))

	var validationErr *models.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "date", validationErr.Field)
}

func TestParseFile_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Date", "Description", "Amount", "Currency"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"2025-01-10", "WIRE TRANSFER ACME", "1500.00", "usd"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"2025-01-12", "SERVICE FEE", "-12.00", "usd"}))

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	rows, err := parsing.ParseFile("statement.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "WIRE TRANSFER ACME", rows[0].Description)
	assert.Equal(t, "1500", rows[0].Amount.String())
	assert.Equal(t, "USD", rows[0].Currency)
}

func TestParseFile_XLSXGarbage(t *testing.T) {
	_, err := parsing.ParseFile("statement.xlsx", strings.NewReader("this is not a zip archive"))

	var parseErr *models.ParseError
	assert.ErrorAs(t, err, &parseErr)
}
