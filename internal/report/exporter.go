// Package report renders expense listings as Excel workbooks for the
// finance team.
package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/exescorp/expense-approval/internal/domain/entity"
)

const sheetName = "Expenses"

var headers = []string{
	"ID", "Employee", "Amount", "Currency", "Converted Amount",
	"Category", "Date", "Status", "Approvals", "Submitted At",
}

// Exporter builds expense report workbooks
type Exporter struct {
	companyName string
	logger      *zap.Logger
}

// NewExporter creates a new exporter
func NewExporter(companyName string, logger *zap.Logger) *Exporter {
	return &Exporter{
		companyName: companyName,
		logger:      logger,
	}
}

// Export builds a workbook summarizing the given expenses, one row per
// expense with the approval chain flattened into a single cell.
func (e *Exporter) Export(expenses []*entity.Expense) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("remove default sheet: %w", err)
	}

	e.setCell(f, "A1", fmt.Sprintf("%s Expense Report", e.companyName))
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return nil, err
		}
		e.setCell(f, cell, h)
	}

	for row, expense := range expenses {
		values := []interface{}{
			expense.ID,
			expense.EmployeeName,
			expense.Amount,
			expense.Currency,
			expense.ConvertedAmount,
			expense.Category,
			expense.Date,
			expense.Status.String(),
			approvalSummary(expense),
			expense.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+3)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	e.logger.Info("Expense report built", zap.Int("expenses", len(expenses)))
	return f, nil
}

func (e *Exporter) setCell(f *excelize.File, cell, value string) {
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		e.logger.Warn("Failed to set cell", zap.String("cell", cell), zap.Error(err))
	}
}

// approvalSummary flattens the chain into "name:decision" pairs in chain
// order.
func approvalSummary(expense *entity.Expense) string {
	if len(expense.Approvals) == 0 {
		return "no approvers assigned"
	}
	parts := make([]string, 0, len(expense.Approvals))
	for _, a := range expense.Approvals {
		parts = append(parts, fmt.Sprintf("%s:%s", a.ApproverName, a.Decision))
	}
	return strings.Join(parts, "; ")
}
