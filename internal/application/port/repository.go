package port

import (
	"context"

	"github.com/exescorp/expense-approval/internal/domain/entity"
)

// ExpenseFilter narrows expense listings
type ExpenseFilter struct {
	Status     entity.ExpenseStatus
	EmployeeID string
	Limit      int
	Offset     int
}

// ExpenseRepository defines persistence operations for Expense and its
// embedded approval chain. Update rewrites the status and the full chain;
// chain order is insertion order and must survive round-trips.
type ExpenseRepository interface {
	Create(ctx context.Context, expense *entity.Expense) error
	GetByID(ctx context.Context, id string) (*entity.Expense, error)
	Update(ctx context.Context, expense *entity.Expense) error
	List(ctx context.Context, filter ExpenseFilter) ([]*entity.Expense, error)
	ListPendingIDs(ctx context.Context) ([]string, error)
	ListPendingForApprover(ctx context.Context, approverID string) ([]*entity.Expense, error)
}

// UserRepository defines persistence operations for directory users.
// ListByRole must order by user id so first-match approver resolution is
// deterministic.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
}

// SequenceRepository defines persistence operations for approval sequences
type SequenceRepository interface {
	Create(ctx context.Context, seq *entity.ApprovalSequence) error
	GetByID(ctx context.Context, id string) (*entity.ApprovalSequence, error)
	List(ctx context.Context) ([]*entity.ApprovalSequence, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// RuleRepository persists the single process-wide approval rule.
// Get returns nil when no rule has ever been configured.
type RuleRepository interface {
	Get(ctx context.Context) (*entity.ApprovalRule, error)
	Replace(ctx context.Context, rule entity.ApprovalRule) error
}

// TransactionManager executes a function within a database transaction
// carried on the context.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
