package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciliation-lifecycle/internal/models"
)

func TestParseWorkflowType(t *testing.T) {
	w, err := models.ParseWorkflowType("bank")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowBank, w)

	w, err = models.ParseWorkflowType("ap")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowAP, w)

	_, err = models.ParseWorkflowType("payroll")
	assert.Error(t, err)
	_, err = models.ParseWorkflowType("")
	assert.Error(t, err)
}

func TestWorkflowTitle(t *testing.T) {
	assert.Equal(t, "Bank", models.WorkflowBank.Title())
	assert.Equal(t, "AP", models.WorkflowAP.Title())
}

func TestParseSide(t *testing.T) {
	s, err := models.ParseSide("statement")
	require.NoError(t, err)
	assert.Equal(t, models.SideStatement, s)

	s, err = models.ParseSide("ledger")
	require.NoError(t, err)
	assert.Equal(t, models.SideLedger, s)

	_, err = models.ParseSide("left")
	assert.Error(t, err)
}

func TestValidatePeriod(t *testing.T) {
	assert.NoError(t, models.ValidatePeriod("2025-01"))
	assert.NoError(t, models.ValidatePeriod("2025-12"))
	assert.Error(t, models.ValidatePeriod("2025-13"))
	assert.Error(t, models.ValidatePeriod("2025"))
	assert.Error(t, models.ValidatePeriod("January 2025"))
	assert.Error(t, models.ValidatePeriod(""))
}

func TestLineItemParsedDate(t *testing.T) {
	item := models.LineItem{Date: "2025-01-15"}
	d, err := item.ParsedDate()
	require.NoError(t, err)
	assert.Equal(t, 2025, d.Year())

	item.Date = "15/01/2025"
	_, err = item.ParsedDate()
	assert.Error(t, err)
}
