package workflow

// Trigger represents an action that can cause a state transition
type Trigger string

const (
	TriggerAdvance     Trigger = "ADVANCE"
	TriggerReject      Trigger = "REJECT"
	TriggerGateApprove Trigger = "GATE_APPROVE"
	TriggerGateReject  Trigger = "GATE_REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
