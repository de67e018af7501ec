package entity

import "time"

// ExpenseStatus is the lifecycle status of an expense
type ExpenseStatus string

const (
	ExpenseStatusPending  ExpenseStatus = "pending"
	ExpenseStatusApproved ExpenseStatus = "approved"
	ExpenseStatusRejected ExpenseStatus = "rejected"
)

// String returns the string representation of the status
func (s ExpenseStatus) String() string {
	return string(s)
}

// IsTerminal returns true once no further approval activity is allowed
func (s ExpenseStatus) IsTerminal() bool {
	return s == ExpenseStatusApproved || s == ExpenseStatusRejected
}

// Decision is the outcome recorded on a single approval slot
type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// String returns the string representation of the decision
func (d Decision) String() string {
	return string(d)
}

// IsValid returns true if the decision is a known decision value
func (d Decision) IsValid() bool {
	switch d {
	case DecisionPending, DecisionApproved, DecisionRejected:
		return true
	}
	return false
}

// Approval is one slot in an expense's approver chain. ApproverName is a
// snapshot taken when the slot is created so the audit trail survives later
// directory edits; it is never re-resolved.
type Approval struct {
	ApproverID   string     `json:"approver_id"`
	ApproverName string     `json:"approver_name"`
	Decision     Decision   `json:"decision"`
	Comment      string     `json:"comment,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
}

// Expense represents a submitted expense and its approval chain.
// Approvals are kept in insertion order, which is also chain order.
type Expense struct {
	ID              string        `json:"id"`
	EmployeeID      string        `json:"employee_id"`
	EmployeeName    string        `json:"employee_name"`
	Amount          float64       `json:"amount"`
	Currency        string        `json:"currency"`
	ConvertedAmount float64       `json:"converted_amount"`
	Category        string        `json:"category"`
	Date            string        `json:"date"`
	Description     string        `json:"description"`
	ReceiptHash     string        `json:"receipt_hash,omitempty"`
	Status          ExpenseStatus `json:"status"`
	Approvals       []Approval    `json:"approvals"`
	CreatedAt       time.Time     `json:"created_at"`
}

// ApprovedCount returns the number of slots decided as approved
func (e *Expense) ApprovedCount() int {
	n := 0
	for _, a := range e.Approvals {
		if a.Decision == DecisionApproved {
			n++
		}
	}
	return n
}

// HasPendingApproval returns true if any slot is still undecided
func (e *Expense) HasPendingApproval() bool {
	for _, a := range e.Approvals {
		if a.Decision == DecisionPending {
			return true
		}
	}
	return false
}

// PendingApproverIDs returns the approver ids of all undecided slots
func (e *Expense) PendingApproverIDs() []string {
	var ids []string
	for _, a := range e.Approvals {
		if a.Decision == DecisionPending {
			ids = append(ids, a.ApproverID)
		}
	}
	return ids
}

// FindApproval returns the index of the slot held by the given approver,
// or -1 when the approver has no slot in the chain.
func (e *Expense) FindApproval(approverID string) int {
	for i, a := range e.Approvals {
		if a.ApproverID == approverID {
			return i
		}
	}
	return -1
}

// LastApproval returns the most recently inserted slot, or nil when the
// chain is empty.
func (e *Expense) LastApproval() *Approval {
	if len(e.Approvals) == 0 {
		return nil
	}
	return &e.Approvals[len(e.Approvals)-1]
}
