package entity

import "fmt"

// StepKind distinguishes role-keyed from user-keyed sequence steps
type StepKind string

const (
	StepKindRole StepKind = "role"
	StepKindUser StepKind = "user"
)

// SequenceStep is one position in an approval sequence. Value holds a role
// name for role-kind steps and a user id for user-kind steps.
type SequenceStep struct {
	Step  int      `json:"step"`
	Kind  StepKind `json:"kind"`
	Value string   `json:"value"`
}

// ApprovalSequence is a named, ordered list of approval steps configured
// independently of any single expense and referenced by id from the rule.
type ApprovalSequence struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Steps    []SequenceStep `json:"steps"`
	IsActive bool           `json:"is_active"`
}

// Validate checks that step numbers are 1-based, contiguous and that every
// step carries a kind and value.
func (s *ApprovalSequence) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("sequence name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("sequence must have at least one step")
	}
	seen := make(map[SequenceStep]int, len(s.Steps))
	for i, step := range s.Steps {
		if step.Step != i+1 {
			return fmt.Errorf("step numbers must be contiguous starting at 1, got %d at position %d", step.Step, i)
		}
		if step.Kind != StepKindRole && step.Kind != StepKindUser {
			return fmt.Errorf("step %d has unknown kind %q", step.Step, step.Kind)
		}
		if step.Value == "" {
			return fmt.Errorf("step %d has no value", step.Step)
		}
		key := SequenceStep{Kind: step.Kind, Value: step.Value}
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("step %d duplicates step %d (%s %q)", step.Step, prev, step.Kind, step.Value)
		}
		seen[key] = step.Step
	}
	return nil
}
