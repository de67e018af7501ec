package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/exescorp/expense-approval/internal/application/port"
	"github.com/exescorp/expense-approval/internal/domain/approval"
	"github.com/exescorp/expense-approval/internal/domain/entity"
	"github.com/exescorp/expense-approval/internal/domain/workflow"
)

// ExpenseService owns the expense approval lifecycle: creation triggers
// the first chain slot, decisions drive the state machine, and rule
// replacement sweeps every pending expense under the new rule.
type ExpenseService interface {
	CreateExpense(ctx context.Context, expense *entity.Expense) error
	Decide(ctx context.Context, expenseID, approverID string, decision entity.Decision, comment string) error
	GetExpense(ctx context.Context, id string) (*entity.Expense, error)
	ListExpenses(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error)
	ListPendingFor(ctx context.Context, approverID string) ([]*entity.Expense, error)

	// SetApprovalRule composes ReplaceRule and SweepPending. The two
	// halves stay callable on their own so a replacement can be staged
	// without an immediate sweep.
	SetApprovalRule(ctx context.Context, rule entity.ApprovalRule) error
	ReplaceRule(ctx context.Context, rule entity.ApprovalRule) error
	SweepPending(ctx context.Context) error
	GetApprovalRule() entity.ApprovalRule
}

type expenseServiceImpl struct {
	expenses  port.ExpenseRepository
	directory DirectoryService
	resolver  *approval.Resolver
	evaluator *approval.Evaluator
	rules     port.RuleRepository
	ruleStore *ruleStore
	clock     port.Clock
	locks     expenseLocks
	logger    Logger
}

// NewExpenseService creates a new ExpenseService. The in-memory rule
// snapshot is seeded from the repository; a never-configured deployment
// starts with the sequential strategy and no sequence, matching the
// legacy default.
func NewExpenseService(
	ctx context.Context,
	expenses port.ExpenseRepository,
	rules port.RuleRepository,
	directory DirectoryService,
	clock port.Clock,
	logger Logger,
) (ExpenseService, error) {
	resolver := approval.NewResolver(directory)

	initial := entity.ApprovalRule{Type: entity.RuleSequential}
	stored, err := rules.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load approval rule: %w", err)
	}
	if stored != nil {
		initial = *stored
	}

	return &expenseServiceImpl{
		expenses:  expenses,
		directory: directory,
		resolver:  resolver,
		evaluator: approval.NewEvaluator(resolver),
		rules:     rules,
		ruleStore: newRuleStore(initial),
		clock:     clock,
		logger:    logger,
	}, nil
}

// CreateExpense inserts a new expense and runs the creation trigger: the
// submitter's manager gets the first slot when they count as an approver,
// otherwise the resolver picks the first applicable approver. When neither
// yields anyone the expense stays pending with an empty chain, which needs
// operator attention and is logged as such.
func (s *expenseServiceImpl) CreateExpense(ctx context.Context, expense *entity.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.NewString()
	}
	expense.Status = entity.ExpenseStatusPending
	expense.Approvals = nil
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = s.clock.Now()
	}

	first, err := s.firstApprover(ctx, expense)
	if err != nil {
		return fmt.Errorf("resolve first approver: %w", err)
	}

	if first != nil {
		expense.Approvals = []entity.Approval{{
			ApproverID:   first.ID,
			ApproverName: first.Name,
			Decision:     entity.DecisionPending,
		}}
	} else {
		s.logger.Warn("Expense created with no resolvable approver, chain is empty",
			"expense_id", expense.ID, "employee_id", expense.EmployeeID)
	}

	if err := s.expenses.Create(ctx, expense); err != nil {
		s.logger.Error("Failed to create expense", "error", err, "expense_id", expense.ID)
		return err
	}

	s.logger.Info("Expense created",
		"expense_id", expense.ID,
		"employee_id", expense.EmployeeID,
		"approvals", len(expense.Approvals))
	return nil
}

// firstApprover picks the initial chain slot holder
func (s *expenseServiceImpl) firstApprover(ctx context.Context, expense *entity.Expense) (*entity.User, error) {
	submitter, err := s.directory.FindUserByID(ctx, expense.EmployeeID)
	if err != nil {
		return nil, err
	}
	if submitter != nil && submitter.ManagerID != "" {
		manager, err := s.directory.FindUserByID(ctx, submitter.ManagerID)
		if err != nil {
			return nil, err
		}
		if manager != nil && manager.IsManagerApprover {
			return manager, nil
		}
	}

	rule := s.ruleStore.Snapshot()
	seq, err := s.directory.GetActiveSequence(ctx, rule.SequenceID)
	if err != nil {
		return nil, err
	}
	return s.resolver.NextApprover(ctx, expense, "", seq)
}

// Decide records one approver's decision on their chain slot. Unknown
// expenses and approvers without a slot are silent no-ops. A rejection is
// immediately terminal; an approval re-evaluates the rule and may grow the
// chain or finish the expense. The whole step runs under the expense's
// lock, so decisions on one expense are strictly serialized.
func (s *expenseServiceImpl) Decide(ctx context.Context, expenseID, approverID string, decision entity.Decision, comment string) error {
	if decision != entity.DecisionApproved && decision != entity.DecisionRejected {
		return fmt.Errorf("invalid decision %q", decision)
	}

	unlock := s.locks.lock(expenseID)
	defer unlock()

	expense, err := s.expenses.GetByID(ctx, expenseID)
	if err != nil {
		return err
	}
	if expense == nil {
		s.logger.Warn("Decision for unknown expense dropped", "expense_id", expenseID)
		return nil
	}
	if expense.Status.IsTerminal() {
		s.logger.Warn("Decision on terminal expense dropped",
			"expense_id", expenseID, "status", expense.Status)
		return nil
	}

	idx := expense.FindApproval(approverID)
	if idx < 0 {
		s.logger.Warn("Decision by approver without a chain slot dropped",
			"expense_id", expenseID, "approver_id", approverID)
		return nil
	}

	now := s.clock.Now()
	expense.Approvals[idx].Decision = decision
	expense.Approvals[idx].Comment = comment
	expense.Approvals[idx].Timestamp = &now

	if decision == entity.DecisionRejected {
		machine, err := workflow.NewExpenseMachine(approval.LifecycleState(expense.Status))
		if err != nil {
			return err
		}
		if err := machine.Fire(workflow.TriggerReject); err != nil {
			return err
		}
		expense.Status = entity.ExpenseStatusRejected
		if err := s.expenses.Update(ctx, expense); err != nil {
			return err
		}
		s.logger.Info("Expense rejected",
			"expense_id", expenseID, "approver_id", approverID)
		return nil
	}

	if err := s.expenses.Update(ctx, expense); err != nil {
		return err
	}

	if err := s.evaluate(ctx, expense); err != nil {
		return err
	}

	s.logger.Info("Decision recorded",
		"expense_id", expenseID,
		"approver_id", approverID,
		"status", expense.Status)
	return nil
}

// evaluate runs one rule evaluation for the expense against the current
// rule snapshot and persists any change. Callers must hold the expense's
// lock.
func (s *expenseServiceImpl) evaluate(ctx context.Context, expense *entity.Expense) error {
	rule := s.ruleStore.Snapshot()

	seq, err := s.directory.GetActiveSequence(ctx, rule.SequenceID)
	if err != nil {
		return err
	}

	changed, err := s.evaluator.Evaluate(ctx, expense, rule, seq)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	return s.expenses.Update(ctx, expense)
}

// GetExpense returns an expense with its full approval timeline
func (s *expenseServiceImpl) GetExpense(ctx context.Context, id string) (*entity.Expense, error) {
	return s.expenses.GetByID(ctx, id)
}

// ListExpenses returns expenses matching the filter
func (s *expenseServiceImpl) ListExpenses(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error) {
	return s.expenses.List(ctx, filter)
}

// ListPendingFor returns expenses with an undecided slot held by the approver
func (s *expenseServiceImpl) ListPendingFor(ctx context.Context, approverID string) ([]*entity.Expense, error) {
	return s.expenses.ListPendingForApprover(ctx, approverID)
}

// SetApprovalRule replaces the configuration and immediately re-evaluates
// every pending expense under the new rule.
func (s *expenseServiceImpl) SetApprovalRule(ctx context.Context, rule entity.ApprovalRule) error {
	if err := s.ReplaceRule(ctx, rule); err != nil {
		return err
	}
	return s.SweepPending(ctx)
}

// ReplaceRule persists the new rule and swaps the in-memory snapshot.
// In-flight evaluations keep the snapshot they already took.
func (s *expenseServiceImpl) ReplaceRule(ctx context.Context, rule entity.ApprovalRule) error {
	if !rule.Type.IsValid() {
		return fmt.Errorf("invalid rule type %q", rule.Type)
	}

	if err := s.rules.Replace(ctx, rule); err != nil {
		s.logger.Error("Failed to persist approval rule", "error", err)
		return err
	}
	s.ruleStore.Replace(rule)

	s.logger.Info("Approval rule replaced",
		"type", rule.Type,
		"threshold", rule.Threshold,
		"specific_approver_id", rule.SpecificApproverID,
		"sequence_id", rule.SequenceID)
	return nil
}

// SweepPending re-runs rule evaluation for every pending expense. Terminal
// expenses are never revisited. Each expense is evaluated under its own
// lock; a failure on one expense is logged and the sweep carries on.
func (s *expenseServiceImpl) SweepPending(ctx context.Context) error {
	ids, err := s.expenses.ListPendingIDs(ctx)
	if err != nil {
		return err
	}

	var failed int
	for _, id := range ids {
		if err := s.sweepOne(ctx, id); err != nil {
			failed++
			s.logger.Error("Sweep evaluation failed", "error", err, "expense_id", id)
		}
	}

	s.logger.Info("Pending sweep finished", "swept", len(ids), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("sweep: %d of %d expenses failed", failed, len(ids))
	}
	return nil
}

func (s *expenseServiceImpl) sweepOne(ctx context.Context, expenseID string) error {
	unlock := s.locks.lock(expenseID)
	defer unlock()

	expense, err := s.expenses.GetByID(ctx, expenseID)
	if err != nil {
		return err
	}
	if expense == nil || expense.Status != entity.ExpenseStatusPending {
		// Decided between listing and locking; nothing to re-evaluate.
		return nil
	}

	return s.evaluate(ctx, expense)
}

// GetApprovalRule returns the current rule snapshot
func (s *expenseServiceImpl) GetApprovalRule() entity.ApprovalRule {
	return s.ruleStore.Snapshot()
}
