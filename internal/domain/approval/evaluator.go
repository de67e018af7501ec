package approval

import (
	"context"

	"github.com/exescorp/expense-approval/internal/domain/entity"
	"github.com/exescorp/expense-approval/internal/domain/workflow"
)

// Evaluator applies the active approval rule to an expense's chain and,
// for the sequential strategy, grows the chain by one slot at a time.
// Evaluate mutates the expense in memory only; persisting the result is
// the caller's job. Calling it again with no intervening decision is a
// no-op.
type Evaluator struct {
	resolver *Resolver
}

// NewEvaluator creates an evaluator using the given resolver for chain
// advancement.
func NewEvaluator(resolver *Resolver) *Evaluator {
	return &Evaluator{resolver: resolver}
}

// Evaluate runs one evaluation step for the expense under the given rule.
// seq is the rule's resolved active sequence; nil selects the legacy
// fallback chain. It returns true when the expense changed (status flip or
// a new chain slot).
func (ev *Evaluator) Evaluate(ctx context.Context, expense *entity.Expense, rule entity.ApprovalRule, seq *entity.ApprovalSequence) (bool, error) {
	if expense.Status != entity.ExpenseStatusPending {
		return false, nil
	}

	approvedCount := expense.ApprovedCount()
	total := len(expense.Approvals)

	// Only the branch matching the configured strategy runs. A missing
	// strategy parameter means the rule is never satisfied, not an error.
	switch rule.Type {
	case entity.RulePercentage:
		if percentageMet(approvedCount, total, rule) {
			return true, approve(expense)
		}

	case entity.RuleSpecific:
		if specificMet(expense, rule) {
			return true, approve(expense)
		}

	case entity.RuleHybrid:
		if percentageMet(approvedCount, total, rule) || specificMet(expense, rule) {
			return true, approve(expense)
		}

	case entity.RuleSequential:
		return ev.evaluateSequential(ctx, expense, seq)
	}

	return false, nil
}

// evaluateSequential completes the chain or appends the next pending slot.
// Running out of approvers counts as full approval.
func (ev *Evaluator) evaluateSequential(ctx context.Context, expense *entity.Expense, seq *entity.ApprovalSequence) (bool, error) {
	last := expense.LastApproval()
	if last == nil || last.Decision != entity.DecisionApproved {
		// Nothing to advance: empty chain, undecided slot, or a
		// rejection already handled upstream.
		return false, nil
	}

	next, err := ev.resolver.NextApprover(ctx, expense, last.ApproverID, seq)
	if err != nil {
		return false, err
	}
	if next == nil {
		return true, approve(expense)
	}

	expense.Approvals = append(expense.Approvals, entity.Approval{
		ApproverID:   next.ID,
		ApproverName: next.Name,
		Decision:     entity.DecisionPending,
	})
	return true, nil
}

// approve flips the expense to approved through the lifecycle machine so a
// terminal expense can never be approved twice.
func approve(expense *entity.Expense) error {
	machine, err := workflow.NewExpenseMachine(LifecycleState(expense.Status))
	if err != nil {
		return err
	}
	if err := machine.Fire(workflow.TriggerSatisfy); err != nil {
		return err
	}
	expense.Status = entity.ExpenseStatusApproved
	return nil
}

// LifecycleState maps an expense status to its workflow state
func LifecycleState(status entity.ExpenseStatus) workflow.State {
	switch status {
	case entity.ExpenseStatusApproved:
		return workflow.StateApproved
	case entity.ExpenseStatusRejected:
		return workflow.StateRejected
	default:
		return workflow.StatePending
	}
}

func percentageMet(approvedCount, total int, rule entity.ApprovalRule) bool {
	if rule.Threshold <= 0 || total == 0 {
		return false
	}
	return float64(approvedCount)/float64(total)*100 >= float64(rule.Threshold)
}

func specificMet(expense *entity.Expense, rule entity.ApprovalRule) bool {
	if rule.SpecificApproverID == "" {
		return false
	}
	for _, a := range expense.Approvals {
		if a.ApproverID == rule.SpecificApproverID && a.Decision == entity.DecisionApproved {
			return true
		}
	}
	return false
}
