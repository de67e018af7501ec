package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exescorp/expense-approval/internal/application/port"
	"github.com/exescorp/expense-approval/internal/domain/entity"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// memExpenseRepo stores deep copies, mimicking the round-trip through the
// real store: mutations on a fetched expense are invisible until Update.
type memExpenseRepo struct {
	mu       sync.Mutex
	expenses map[string]*entity.Expense
}

func newMemExpenseRepo() *memExpenseRepo {
	return &memExpenseRepo{expenses: make(map[string]*entity.Expense)}
}

func copyExpense(e *entity.Expense) *entity.Expense {
	cp := *e
	cp.Approvals = append([]entity.Approval(nil), e.Approvals...)
	return &cp
}

func (r *memExpenseRepo) Create(_ context.Context, expense *entity.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expenses[expense.ID] = copyExpense(expense)
	return nil
}

func (r *memExpenseRepo) GetByID(_ context.Context, id string) (*entity.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.expenses[id]
	if !ok {
		return nil, nil
	}
	return copyExpense(e), nil
}

func (r *memExpenseRepo) Update(_ context.Context, expense *entity.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expenses[expense.ID] = copyExpense(expense)
	return nil
}

func (r *memExpenseRepo) List(_ context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Expense
	for _, e := range r.expenses {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.EmployeeID != "" && e.EmployeeID != filter.EmployeeID {
			continue
		}
		out = append(out, copyExpense(e))
	}
	return out, nil
}

func (r *memExpenseRepo) ListPendingIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, e := range r.expenses {
		if e.Status == entity.ExpenseStatusPending {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memExpenseRepo) ListPendingForApprover(_ context.Context, approverID string) ([]*entity.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Expense
	for _, e := range r.expenses {
		if e.Status != entity.ExpenseStatusPending {
			continue
		}
		for _, a := range e.Approvals {
			if a.ApproverID == approverID && a.Decision == entity.DecisionPending {
				out = append(out, copyExpense(e))
				break
			}
		}
	}
	return out, nil
}

type memRuleRepo struct {
	mu   sync.Mutex
	rule *entity.ApprovalRule
}

func (r *memRuleRepo) Get(_ context.Context) (*entity.ApprovalRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rule == nil {
		return nil, nil
	}
	cp := *r.rule
	return &cp, nil
}

func (r *memRuleRepo) Replace(_ context.Context, rule entity.ApprovalRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rule = &rule
	return nil
}

type memUserRepo struct {
	users map[string]*entity.User
}

func (r *memUserRepo) Create(_ context.Context, user *entity.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	return r.users[id], nil
}

func (r *memUserRepo) ListByRole(_ context.Context, role entity.Role) ([]*entity.User, error) {
	var ids []string
	for id, u := range r.users {
		if u.Role == role {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	var out []*entity.User
	for _, id := range ids {
		out = append(out, r.users[id])
	}
	return out, nil
}

func (r *memUserRepo) List(_ context.Context) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

type memSequenceRepo struct {
	sequences map[string]*entity.ApprovalSequence
}

func (r *memSequenceRepo) Create(_ context.Context, seq *entity.ApprovalSequence) error {
	r.sequences[seq.ID] = seq
	return nil
}

func (r *memSequenceRepo) GetByID(_ context.Context, id string) (*entity.ApprovalSequence, error) {
	return r.sequences[id], nil
}

func (r *memSequenceRepo) List(_ context.Context) ([]*entity.ApprovalSequence, error) {
	var out []*entity.ApprovalSequence
	for _, s := range r.sequences {
		out = append(out, s)
	}
	return out, nil
}

func (r *memSequenceRepo) SetActive(_ context.Context, id string, active bool) error {
	if s, ok := r.sequences[id]; ok {
		s.IsActive = active
	}
	return nil
}

type fixture struct {
	svc      ExpenseService
	expenses *memExpenseRepo
	rules    *memRuleRepo
	users    *memUserRepo
	clock    fixedClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users := &memUserRepo{users: map[string]*entity.User{
		"admin1":    {ID: "admin1", Name: "Sarah Chen - Director", Role: entity.RoleAdmin},
		"admin2":    {ID: "admin2", Name: "Michael Torres - Finance", Role: entity.RoleAdmin},
		"manager1":  {ID: "manager1", Name: "Jessica Park", Role: entity.RoleManager, IsManagerApprover: true},
		"manager2":  {ID: "manager2", Name: "David Kim", Role: entity.RoleManager, IsManagerApprover: false},
		"employee1": {ID: "employee1", Name: "Alex Johnson", Role: entity.RoleEmployee, ManagerID: "manager1"},
		"employee2": {ID: "employee2", Name: "Emma Wilson", Role: entity.RoleEmployee, ManagerID: "manager2"},
	}}
	sequences := &memSequenceRepo{sequences: map[string]*entity.ApprovalSequence{}}

	directory := NewDirectoryService(users, sequences, nopLogger{})
	expenses := newMemExpenseRepo()
	rules := &memRuleRepo{}
	clock := fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	svc, err := NewExpenseService(context.Background(), expenses, rules, directory, clock, nopLogger{})
	require.NoError(t, err)

	return &fixture{svc: svc, expenses: expenses, rules: rules, users: users, clock: clock}
}

func (f *fixture) submit(t *testing.T, id, employeeID string) *entity.Expense {
	t.Helper()
	expense := &entity.Expense{
		ID:          id,
		EmployeeID:  employeeID,
		Amount:      120.50,
		Currency:    "USD",
		Category:    "Travel",
		Description: "client visit",
	}
	require.NoError(t, f.svc.CreateExpense(context.Background(), expense))
	return expense
}

func (f *fixture) fetch(t *testing.T, id string) *entity.Expense {
	t.Helper()
	expense, err := f.svc.GetExpense(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, expense)
	return expense
}

func TestCreateExpense_ManagerGetsFirstSlot(t *testing.T) {
	f := newFixture(t)

	f.submit(t, "exp1", "employee1")
	expense := f.fetch(t, "exp1")

	assert.Equal(t, entity.ExpenseStatusPending, expense.Status)
	require.Len(t, expense.Approvals, 1)
	assert.Equal(t, "manager1", expense.Approvals[0].ApproverID)
	assert.Equal(t, "Jessica Park", expense.Approvals[0].ApproverName)
	assert.Equal(t, entity.DecisionPending, expense.Approvals[0].Decision)
}

func TestCreateExpense_OptedOutManagerSkipped(t *testing.T) {
	f := newFixture(t)

	// employee2's manager does not approve, so resolution falls to the
	// first user holding the manager role
	f.submit(t, "exp1", "employee2")
	expense := f.fetch(t, "exp1")

	require.Len(t, expense.Approvals, 1)
	assert.Equal(t, "manager1", expense.Approvals[0].ApproverID)
}

func TestCreateExpense_NoResolvableApproverLeavesChainEmpty(t *testing.T) {
	f := newFixture(t)
	// Strip the directory down to the submitter only
	f.users.users = map[string]*entity.User{
		"employee1": {ID: "employee1", Name: "Alex Johnson", Role: entity.RoleEmployee},
	}

	f.submit(t, "exp1", "employee1")
	expense := f.fetch(t, "exp1")

	assert.Equal(t, entity.ExpenseStatusPending, expense.Status)
	assert.Empty(t, expense.Approvals)
}

func TestCreateExpense_AssignsID(t *testing.T) {
	f := newFixture(t)

	expense := &entity.Expense{EmployeeID: "employee1", Amount: 10, Currency: "USD"}
	require.NoError(t, f.svc.CreateExpense(context.Background(), expense))
	assert.NotEmpty(t, expense.ID)
}

func TestDecide_InvalidDecision(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "exp1", "employee1")

	err := f.svc.Decide(context.Background(), "exp1", "manager1", entity.DecisionPending, "")
	assert.Error(t, err)
}

func TestDecide_UnknownExpenseIsNoOp(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Decide(context.Background(), "missing", "manager1", entity.DecisionApproved, "")
	assert.NoError(t, err)
}

func TestDecide_ApproverWithoutSlotIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "exp1", "employee1")

	err := f.svc.Decide(context.Background(), "exp1", "admin1", entity.DecisionApproved, "looks fine")
	require.NoError(t, err)

	expense := f.fetch(t, "exp1")
	assert.Equal(t, entity.ExpenseStatusPending, expense.Status)
	require.Len(t, expense.Approvals, 1)
	assert.Equal(t, entity.DecisionPending, expense.Approvals[0].Decision)
}

func TestDecide_RejectionIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "exp1", "employee1")

	require.NoError(t, f.svc.Decide(context.Background(), "exp1", "manager1", entity.DecisionRejected, "missing receipt"))

	expense := f.fetch(t, "exp1")
	assert.Equal(t, entity.ExpenseStatusRejected, expense.Status)
	require.Len(t, expense.Approvals, 1)
	assert.Equal(t, entity.DecisionRejected, expense.Approvals[0].Decision)
	assert.Equal(t, "missing receipt", expense.Approvals[0].Comment)
	require.NotNil(t, expense.Approvals[0].Timestamp)
	assert.Equal(t, f.clock.now, expense.Approvals[0].Timestamp.UTC())

	// Late decisions on a terminal expense are dropped
	require.NoError(t, f.svc.Decide(context.Background(), "exp1", "manager1", entity.DecisionApproved, ""))
	assert.Equal(t, entity.ExpenseStatusRejected, f.fetch(t, "exp1").Status)
}

func TestDecide_SequentialChainToFullApproval(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "exp1", "employee1")

	require.NoError(t, f.svc.Decide(context.Background(), "exp1", "manager1", entity.DecisionApproved, "ok"))
	expense := f.fetch(t, "exp1")
	assert.Equal(t, entity.ExpenseStatusPending, expense.Status)
	require.Len(t, expense.Approvals, 2)
	assert.Equal(t, "admin2", expense.Approvals[1].ApproverID)
	assert.Equal(t, "Michael Torres - Finance", expense.Approvals[1].ApproverName)

	require.NoError(t, f.svc.Decide(context.Background(), "exp1", "admin2", entity.DecisionApproved, ""))
	expense = f.fetch(t, "exp1")
	assert.Equal(t, entity.ExpenseStatusPending, expense.Status)
	require.Len(t, expense.Approvals, 3)
	assert.Equal(t, "admin1", expense.Approvals[2].ApproverID)

	require.NoError(t, f.svc.Decide(context.Background(), "exp1", "admin1", entity.DecisionApproved, ""))
	expense = f.fetch(t, "exp1")
	assert.Equal(t, entity.ExpenseStatusApproved, expense.Status)
	assert.Len(t, expense.Approvals, 3)
}

func TestDecide_NameSnapshotSurvivesRename(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "exp1", "employee1")

	f.users.users["manager1"].Name = "Jessica Park-Lee"

	require.NoError(t, f.svc.Decide(context.Background(), "exp1", "manager1", entity.DecisionApproved, ""))
	expense := f.fetch(t, "exp1")
	assert.Equal(t, "Jessica Park", expense.Approvals[0].ApproverName)
}

func TestGetApprovalRule_DefaultsToSequential(t *testing.T) {
	f := newFixture(t)

	rule := f.svc.GetApprovalRule()
	assert.Equal(t, entity.RuleSequential, rule.Type)
	assert.Empty(t, rule.SequenceID)
}

func TestNewExpenseService_SeedsRuleFromStore(t *testing.T) {
	rules := &memRuleRepo{rule: &entity.ApprovalRule{Type: entity.RulePercentage, Threshold: 75}}
	users := &memUserRepo{users: map[string]*entity.User{}}
	sequences := &memSequenceRepo{sequences: map[string]*entity.ApprovalSequence{}}
	directory := NewDirectoryService(users, sequences, nopLogger{})

	svc, err := NewExpenseService(context.Background(), newMemExpenseRepo(), rules, directory, fixedClock{}, nopLogger{})
	require.NoError(t, err)

	rule := svc.GetApprovalRule()
	assert.Equal(t, entity.RulePercentage, rule.Type)
	assert.Equal(t, 75, rule.Threshold)
}

func TestSetApprovalRule_InvalidType(t *testing.T) {
	f := newFixture(t)

	err := f.svc.SetApprovalRule(context.Background(), entity.ApprovalRule{Type: "unanimous"})
	assert.Error(t, err)
}

func TestSetApprovalRule_PersistsAndSweeps(t *testing.T) {
	f := newFixture(t)

	// Advance one expense to a half-approved chain under the default rule
	f.submit(t, "exp1", "employee1")
	require.NoError(t, f.svc.Decide(context.Background(), "exp1", "manager1", entity.DecisionApproved, ""))
	require.Len(t, f.fetch(t, "exp1").Approvals, 2)

	// A rejected expense must stay untouched by the sweep
	f.submit(t, "exp2", "employee1")
	require.NoError(t, f.svc.Decide(context.Background(), "exp2", "manager1", entity.DecisionRejected, ""))

	newRule := entity.ApprovalRule{Type: entity.RulePercentage, Threshold: 50}
	require.NoError(t, f.svc.SetApprovalRule(context.Background(), newRule))

	stored, err := f.rules.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, newRule, *stored)
	assert.Equal(t, newRule, f.svc.GetApprovalRule())

	// 1 of 2 approved now clears the 50% threshold
	assert.Equal(t, entity.ExpenseStatusApproved, f.fetch(t, "exp1").Status)
	assert.Equal(t, entity.ExpenseStatusRejected, f.fetch(t, "exp2").Status)
}

func TestSweepPending_ReleasesStuckExpense(t *testing.T) {
	f := newFixture(t)

	// Under a specific-approver rule the manager's approval does nothing
	require.NoError(t, f.svc.ReplaceRule(context.Background(), entity.ApprovalRule{
		Type:               entity.RuleSpecific,
		SpecificApproverID: "admin1",
	}))
	f.submit(t, "exp1", "employee1")
	require.NoError(t, f.svc.Decide(context.Background(), "exp1", "manager1", entity.DecisionApproved, ""))
	require.Equal(t, entity.ExpenseStatusPending, f.fetch(t, "exp1").Status)

	// Staging a percentage rule without sweeping leaves it pending
	require.NoError(t, f.svc.ReplaceRule(context.Background(), entity.ApprovalRule{
		Type:      entity.RulePercentage,
		Threshold: 100,
	}))
	assert.Equal(t, entity.ExpenseStatusPending, f.fetch(t, "exp1").Status)

	require.NoError(t, f.svc.SweepPending(context.Background()))
	assert.Equal(t, entity.ExpenseStatusApproved, f.fetch(t, "exp1").Status)
}

func TestListPendingFor(t *testing.T) {
	f := newFixture(t)

	f.submit(t, "exp1", "employee1")
	f.submit(t, "exp2", "employee2")
	require.NoError(t, f.svc.Decide(context.Background(), "exp1", "manager1", entity.DecisionApproved, ""))

	// manager1 already decided exp1, so only exp2 remains on their desk
	pending, err := f.svc.ListPendingFor(context.Background(), "manager1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "exp2", pending[0].ID)

	// exp1 moved on to the finance admin
	pending, err = f.svc.ListPendingFor(context.Background(), "admin2")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "exp1", pending[0].ID)
}

func TestDecide_SequenceDrivenChain(t *testing.T) {
	f := newFixture(t)

	seqRepo := &memSequenceRepo{sequences: map[string]*entity.ApprovalSequence{
		"seq1": {
			ID:       "seq1",
			Name:     "direct to director",
			IsActive: true,
			Steps: []entity.SequenceStep{
				{Step: 1, Kind: entity.StepKindUser, Value: "admin2"},
				{Step: 2, Kind: entity.StepKindUser, Value: "admin1"},
			},
		},
	}}
	directory := NewDirectoryService(f.users, seqRepo, nopLogger{})
	svc, err := NewExpenseService(context.Background(), f.expenses, f.rules, directory, f.clock, nopLogger{})
	require.NoError(t, err)
	require.NoError(t, svc.ReplaceRule(context.Background(), entity.ApprovalRule{
		Type:       entity.RuleSequential,
		SequenceID: "seq1",
	}))

	// employee2's manager opted out, so the sequence drives the first slot
	expense := &entity.Expense{ID: "exp1", EmployeeID: "employee2", Amount: 40, Currency: "USD"}
	require.NoError(t, svc.CreateExpense(context.Background(), expense))
	require.Len(t, expense.Approvals, 1)
	assert.Equal(t, "admin2", expense.Approvals[0].ApproverID)

	require.NoError(t, svc.Decide(context.Background(), "exp1", "admin2", entity.DecisionApproved, ""))
	got, err := svc.GetExpense(context.Background(), "exp1")
	require.NoError(t, err)
	require.Len(t, got.Approvals, 2)
	assert.Equal(t, "admin1", got.Approvals[1].ApproverID)

	require.NoError(t, svc.Decide(context.Background(), "exp1", "admin1", entity.DecisionApproved, ""))
	got, err = svc.GetExpense(context.Background(), "exp1")
	require.NoError(t, err)
	assert.Equal(t, entity.ExpenseStatusApproved, got.Status)
}

func TestDecide_SequenceResolvingToSameUserTwiceCompletes(t *testing.T) {
	f := newFixture(t)

	// Both steps resolve to manager1. Decisions match chain slots by
	// approver id, so the second step must not hand manager1 a second
	// slot, which would be undecidable and leave the expense pending
	// forever.
	seqRepo := &memSequenceRepo{sequences: map[string]*entity.ApprovalSequence{
		"seq1": {
			ID:       "seq1",
			Name:     "manager twice",
			IsActive: true,
			Steps: []entity.SequenceStep{
				{Step: 1, Kind: entity.StepKindRole, Value: "manager"},
				{Step: 2, Kind: entity.StepKindUser, Value: "manager1"},
			},
		},
	}}
	directory := NewDirectoryService(f.users, seqRepo, nopLogger{})
	svc, err := NewExpenseService(context.Background(), f.expenses, f.rules, directory, f.clock, nopLogger{})
	require.NoError(t, err)
	require.NoError(t, svc.ReplaceRule(context.Background(), entity.ApprovalRule{
		Type:       entity.RuleSequential,
		SequenceID: "seq1",
	}))

	expense := &entity.Expense{ID: "exp1", EmployeeID: "employee1", Amount: 40, Currency: "USD"}
	require.NoError(t, svc.CreateExpense(context.Background(), expense))
	require.Len(t, expense.Approvals, 1)
	require.Equal(t, "manager1", expense.Approvals[0].ApproverID)

	require.NoError(t, svc.Decide(context.Background(), "exp1", "manager1", entity.DecisionApproved, ""))
	got, err := svc.GetExpense(context.Background(), "exp1")
	require.NoError(t, err)
	assert.Equal(t, entity.ExpenseStatusApproved, got.Status)
	assert.Len(t, got.Approvals, 1)
}
