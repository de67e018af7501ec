package entity

// RuleType selects the evaluation strategy for the active approval rule
type RuleType string

const (
	RuleSequential RuleType = "sequential"
	RulePercentage RuleType = "percentage"
	RuleSpecific   RuleType = "specific"
	RuleHybrid     RuleType = "hybrid"
)

// String returns the string representation of the rule type
func (t RuleType) String() string {
	return string(t)
}

// IsValid returns true if the rule type is a known strategy
func (t RuleType) IsValid() bool {
	switch t {
	case RuleSequential, RulePercentage, RuleSpecific, RuleHybrid:
		return true
	}
	return false
}

// ApprovalRule is the single process-wide approval policy. A rule whose
// required parameter is missing is tolerated and treated as never
// satisfied; validation happens at the configuration surface, not here.
type ApprovalRule struct {
	Type               RuleType `json:"type"`
	Threshold          int      `json:"threshold,omitempty"`
	SpecificApproverID string   `json:"specific_approver_id,omitempty"`
	SequenceID         string   `json:"sequence_id,omitempty"`
}

// UsesPercentage returns true for strategies that read Threshold
func (r ApprovalRule) UsesPercentage() bool {
	return r.Type == RulePercentage || r.Type == RuleHybrid
}

// UsesSpecificApprover returns true for strategies that read SpecificApproverID
func (r ApprovalRule) UsesSpecificApprover() bool {
	return r.Type == RuleSpecific || r.Type == RuleHybrid
}
