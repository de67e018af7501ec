package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	// TriggerSatisfy fires when the active rule's satisfaction condition holds
	TriggerSatisfy Trigger = "SATISFY"

	// TriggerReject fires when any approver rejects
	TriggerReject Trigger = "REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
