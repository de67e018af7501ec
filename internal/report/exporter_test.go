package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/exescorp/expense-approval/internal/domain/entity"
)

func sampleExpenses() []*entity.Expense {
	decided := time.Date(2025, 5, 2, 9, 30, 0, 0, time.UTC)
	return []*entity.Expense{
		{
			ID:              "exp1",
			EmployeeID:      "employee1",
			EmployeeName:    "Alex Johnson",
			Amount:          200,
			Currency:        "EUR",
			ConvertedAmount: 220,
			Category:        "Travel",
			Date:            "2025-05-01",
			Status:          entity.ExpenseStatusApproved,
			CreatedAt:       time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC),
			Approvals: []entity.Approval{
				{ApproverID: "manager1", ApproverName: "Jessica Park", Decision: entity.DecisionApproved, Timestamp: &decided},
				{ApproverID: "admin2", ApproverName: "Michael Torres - Finance", Decision: entity.DecisionApproved, Timestamp: &decided},
			},
		},
		{
			ID:           "exp2",
			EmployeeID:   "employee2",
			EmployeeName: "Emma Wilson",
			Amount:       35,
			Currency:     "USD",
			Category:     "Meals",
			Status:       entity.ExpenseStatusPending,
			CreatedAt:    time.Date(2025, 5, 3, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestExport_WorkbookLayout(t *testing.T) {
	exporter := NewExporter("ExesCorp", zap.NewNop())

	f, err := exporter.Export(sampleExpenses())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())

	title, err := f.GetCellValue(sheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "ExesCorp Expense Report", title)

	for i, want := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		require.NoError(t, err)
		got, err := f.GetCellValue(sheetName, cell)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	id, err := f.GetCellValue(sheetName, "A3")
	require.NoError(t, err)
	assert.Equal(t, "exp1", id)

	status, err := f.GetCellValue(sheetName, "H4")
	require.NoError(t, err)
	assert.Equal(t, "pending", status)
}

func TestExport_ApprovalChainCell(t *testing.T) {
	exporter := NewExporter("ExesCorp", zap.NewNop())

	f, err := exporter.Export(sampleExpenses())
	require.NoError(t, err)
	defer f.Close()

	chain, err := f.GetCellValue(sheetName, "I3")
	require.NoError(t, err)
	assert.Equal(t, "Jessica Park:approved; Michael Torres - Finance:approved", chain)

	empty, err := f.GetCellValue(sheetName, "I4")
	require.NoError(t, err)
	assert.Equal(t, "no approvers assigned", empty)
}

func TestExport_EmptyListing(t *testing.T) {
	exporter := NewExporter("ExesCorp", zap.NewNop())

	f, err := exporter.Export(nil)
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue(sheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "ExesCorp Expense Report", title)
}
