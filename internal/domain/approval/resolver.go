// Package approval contains the approval-rule evaluation core: next-approver
// resolution against a configured sequence and rule evaluation over an
// expense's approval chain. Everything here is free of I/O beyond the
// read-only directory lookups.
package approval

import (
	"context"
	"strings"

	"github.com/exescorp/expense-approval/internal/domain/entity"
)

// Directory is the read-only user and sequence lookup the core consumes.
// FindUsersByRole must enumerate in a stable order (lowest id first) so
// that first-match resolution is deterministic.
type Directory interface {
	FindUserByID(ctx context.Context, id string) (*entity.User, error)
	FindUsersByRole(ctx context.Context, role entity.Role) ([]*entity.User, error)
	GetActiveSequence(ctx context.Context, id string) (*entity.ApprovalSequence, error)
}

// Resolver determines the next approver for an expense's chain
type Resolver struct {
	dir Directory
}

// NewResolver creates a resolver backed by the given directory
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// NextApprover returns the approver that should hold the next chain slot,
// or nil when the chain is exhausted. currentApproverID is empty when the
// chain is just starting. seq may be nil, in which case the legacy fixed
// chain (manager, finance admin, director admin) applies.
func (r *Resolver) NextApprover(ctx context.Context, expense *entity.Expense, currentApproverID string, seq *entity.ApprovalSequence) (*entity.User, error) {
	if seq == nil {
		return r.legacyNext(ctx, expense, currentApproverID)
	}

	next, err := r.nextStepIndex(ctx, seq, currentApproverID)
	if err != nil {
		return nil, err
	}
	if next < 0 {
		return nil, nil
	}

	// Decisions are matched to chain slots by approver id, so each
	// approver may hold at most one slot. A step resolving to a user
	// already in the chain is skipped.
	for i := next; i < len(seq.Steps); i++ {
		user, err := r.resolveStep(ctx, expense, seq.Steps[i])
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, nil
		}
		if expense.FindApproval(user.ID) < 0 {
			return user, nil
		}
	}
	return nil, nil
}

// nextStepIndex locates the step held by the current approver and returns
// the index after it. Returns 0 for an empty current approver and -1 when
// the current approver matches no step.
func (r *Resolver) nextStepIndex(ctx context.Context, seq *entity.ApprovalSequence, currentApproverID string) (int, error) {
	if currentApproverID == "" {
		return 0, nil
	}

	current, err := r.dir.FindUserByID(ctx, currentApproverID)
	if err != nil {
		return -1, err
	}

	for i, step := range seq.Steps {
		switch step.Kind {
		case entity.StepKindUser:
			if step.Value == currentApproverID {
				return i + 1, nil
			}
		case entity.StepKindRole:
			if current != nil && current.Role == entity.Role(step.Value) {
				return i + 1, nil
			}
		}
	}
	return -1, nil
}

// resolveStep maps a sequence step to a concrete user, or nil when no user
// matches.
func (r *Resolver) resolveStep(ctx context.Context, expense *entity.Expense, step entity.SequenceStep) (*entity.User, error) {
	if step.Kind == entity.StepKindUser {
		return r.dir.FindUserByID(ctx, step.Value)
	}

	role := entity.Role(step.Value)

	// A manager step prefers the submitter's own manager, but only when
	// that manager opted in as an approver. Otherwise it degrades to the
	// first user holding the role, which may be an unrelated manager.
	// This mirrors the historical behavior and is relied on by existing
	// configurations.
	if role == entity.RoleManager {
		manager, err := r.submitterManager(ctx, expense)
		if err != nil {
			return nil, err
		}
		if manager != nil && manager.IsManagerApprover {
			return manager, nil
		}
	}

	return r.firstByRole(ctx, role)
}

// legacyNext implements the pre-sequence fallback chain:
// manager, then the finance-designated admin, then the director-designated
// admin. Kept for configurations that predate approval sequences.
func (r *Resolver) legacyNext(ctx context.Context, expense *entity.Expense, currentApproverID string) (*entity.User, error) {
	if currentApproverID == "" {
		manager, err := r.submitterManager(ctx, expense)
		if err != nil {
			return nil, err
		}
		if manager != nil && manager.IsManagerApprover {
			return manager, nil
		}
		return r.firstByRole(ctx, entity.RoleManager)
	}

	current, err := r.dir.FindUserByID(ctx, currentApproverID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	switch {
	case current.Role == entity.RoleManager:
		return r.firstAdminDesignated(ctx, "Finance")
	case strings.Contains(current.Name, "Finance"):
		return r.firstAdminDesignated(ctx, "Director")
	default:
		return nil, nil
	}
}

func (r *Resolver) submitterManager(ctx context.Context, expense *entity.Expense) (*entity.User, error) {
	submitter, err := r.dir.FindUserByID(ctx, expense.EmployeeID)
	if err != nil {
		return nil, err
	}
	if submitter == nil || submitter.ManagerID == "" {
		return nil, nil
	}
	return r.dir.FindUserByID(ctx, submitter.ManagerID)
}

func (r *Resolver) firstByRole(ctx context.Context, role entity.Role) (*entity.User, error) {
	users, err := r.dir.FindUsersByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

func (r *Resolver) firstAdminDesignated(ctx context.Context, designation string) (*entity.User, error) {
	admins, err := r.dir.FindUsersByRole(ctx, entity.RoleAdmin)
	if err != nil {
		return nil, err
	}
	for _, admin := range admins {
		if strings.Contains(admin.Name, designation) {
			return admin, nil
		}
	}
	return nil, nil
}
