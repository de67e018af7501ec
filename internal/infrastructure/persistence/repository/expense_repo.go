package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/exescorp/expense-approval/internal/application/port"
	"github.com/exescorp/expense-approval/internal/domain/entity"
)

// ExpenseRepository implements port.ExpenseRepository over sqlite. The
// approval chain is stored in the approvals table keyed by (expense_id,
// position); position is insertion order, so reading back ordered by
// position reproduces the chain exactly.
type ExpenseRepository struct {
	db     *sql.DB
	tx     port.TransactionManager
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sql.DB, tx port.TransactionManager, logger *zap.Logger) port.ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		tx:     tx,
		logger: logger,
	}
}

// Create persists an expense together with its initial approval chain
func (r *ExpenseRepository) Create(ctx context.Context, expense *entity.Expense) error {
	return r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		query := `
			INSERT INTO expenses (
				id, employee_id, employee_name, amount, currency,
				converted_amount, category, date, description,
				receipt_hash, status, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`

		_, err := getExecutor(txCtx, r.db).ExecContext(txCtx, query,
			expense.ID,
			expense.EmployeeID,
			expense.EmployeeName,
			expense.Amount,
			expense.Currency,
			expense.ConvertedAmount,
			expense.Category,
			expense.Date,
			expense.Description,
			expense.ReceiptHash,
			string(expense.Status),
			expense.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create expense", zap.String("id", expense.ID), zap.Error(err))
			return fmt.Errorf("failed to create expense: %w", err)
		}

		return r.insertApprovals(txCtx, expense)
	})
}

// Update rewrites the expense status and its full approval chain
func (r *ExpenseRepository) Update(ctx context.Context, expense *entity.Expense) error {
	return r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		ex := getExecutor(txCtx, r.db)

		_, err := ex.ExecContext(txCtx,
			`UPDATE expenses SET status = ? WHERE id = ?`,
			string(expense.Status), expense.ID)
		if err != nil {
			r.logger.Error("Failed to update expense", zap.String("id", expense.ID), zap.Error(err))
			return fmt.Errorf("failed to update expense: %w", err)
		}

		if _, err := ex.ExecContext(txCtx,
			`DELETE FROM approvals WHERE expense_id = ?`, expense.ID); err != nil {
			return fmt.Errorf("failed to clear approvals: %w", err)
		}

		return r.insertApprovals(txCtx, expense)
	})
}

func (r *ExpenseRepository) insertApprovals(ctx context.Context, expense *entity.Expense) error {
	ex := getExecutor(ctx, r.db)
	query := `
		INSERT INTO approvals (
			expense_id, position, approver_id, approver_name,
			decision, comment, decided_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for i, a := range expense.Approvals {
		var decidedAt interface{}
		if a.Timestamp != nil {
			decidedAt = *a.Timestamp
		}
		if _, err := ex.ExecContext(ctx, query,
			expense.ID, i, a.ApproverID, a.ApproverName,
			string(a.Decision), a.Comment, decidedAt,
		); err != nil {
			return fmt.Errorf("failed to insert approval %d: %w", i, err)
		}
	}
	return nil
}

// GetByID retrieves an expense and its approval chain, or nil when absent
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*entity.Expense, error) {
	query := `
		SELECT id, employee_id, employee_name, amount, currency,
			converted_amount, category, date, description,
			receipt_hash, status, created_at
		FROM expenses
		WHERE id = ?
	`

	expense, err := r.scanExpense(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if err := r.loadApprovals(ctx, expense); err != nil {
		return nil, err
	}
	return expense, nil
}

// List retrieves expenses matching the filter, newest first
func (r *ExpenseRepository) List(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error) {
	query := `
		SELECT id, employee_id, employee_name, amount, currency,
			converted_amount, category, date, description,
			receipt_hash, status, created_at
		FROM expenses
		WHERE 1=1
	`
	var args []interface{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.EmployeeID != "" {
		query += " AND employee_id = ?"
		args = append(args, filter.EmployeeID)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list expenses", zap.Error(err))
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*entity.Expense
	for rows.Next() {
		expense, err := r.scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, expense := range expenses {
		if err := r.loadApprovals(ctx, expense); err != nil {
			return nil, err
		}
	}
	return expenses, nil
}

// ListPendingIDs returns the ids of all pending expenses, oldest first.
// The sweep uses ids rather than full rows so each expense is re-read
// under its own lock.
func (r *ExpenseRepository) ListPendingIDs(ctx context.Context) ([]string, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx,
		`SELECT id FROM expenses WHERE status = ? ORDER BY created_at ASC`,
		string(entity.ExpenseStatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListPendingForApprover returns pending expenses holding an undecided
// slot for the given approver
func (r *ExpenseRepository) ListPendingForApprover(ctx context.Context, approverID string) ([]*entity.Expense, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT DISTINCT e.id, e.employee_id, e.employee_name, e.amount, e.currency,
			e.converted_amount, e.category, e.date, e.description,
			e.receipt_hash, e.status, e.created_at
		FROM expenses e
		JOIN approvals a ON a.expense_id = e.id
		WHERE e.status = ? AND a.approver_id = ? AND a.decision = ?
		ORDER BY e.created_at ASC
	`, string(entity.ExpenseStatusPending), approverID, string(entity.DecisionPending))
	if err != nil {
		r.logger.Error("Failed to list pending for approver",
			zap.String("approver_id", approverID), zap.Error(err))
		return nil, fmt.Errorf("failed to list pending for approver: %w", err)
	}
	defer rows.Close()

	var expenses []*entity.Expense
	for rows.Next() {
		expense, err := r.scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, expense := range expenses {
		if err := r.loadApprovals(ctx, expense); err != nil {
			return nil, err
		}
	}
	return expenses, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ExpenseRepository) scanExpense(row rowScanner) (*entity.Expense, error) {
	var expense entity.Expense
	var status string
	if err := row.Scan(
		&expense.ID,
		&expense.EmployeeID,
		&expense.EmployeeName,
		&expense.Amount,
		&expense.Currency,
		&expense.ConvertedAmount,
		&expense.Category,
		&expense.Date,
		&expense.Description,
		&expense.ReceiptHash,
		&status,
		&expense.CreatedAt,
	); err != nil {
		return nil, err
	}
	expense.Status = entity.ExpenseStatus(status)
	return &expense, nil
}

func (r *ExpenseRepository) loadApprovals(ctx context.Context, expense *entity.Expense) error {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT approver_id, approver_name, decision, comment, decided_at
		FROM approvals
		WHERE expense_id = ?
		ORDER BY position ASC
	`, expense.ID)
	if err != nil {
		return fmt.Errorf("failed to load approvals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a entity.Approval
		var decision string
		var decidedAt sql.NullTime
		if err := rows.Scan(&a.ApproverID, &a.ApproverName, &decision, &a.Comment, &decidedAt); err != nil {
			return err
		}
		a.Decision = entity.Decision(decision)
		if decidedAt.Valid {
			t := decidedAt.Time
			a.Timestamp = &t
		}
		expense.Approvals = append(expense.Approvals, a)
	}
	return rows.Err()
}

// Verify interface compliance
var _ port.ExpenseRepository = (*ExpenseRepository)(nil)
