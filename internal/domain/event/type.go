package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequestCreated             Type = "customization.created"
	TypeStageCompleted             Type = "stage.completed"
	TypeStepAssigned               Type = "step.assigned"
	TypeWorkflowApproved           Type = "workflow.approved"
	TypeWorkflowRejected           Type = "workflow.rejected"
	TypeCommercialApprovalCreated  Type = "commercial_approval.created"
	TypeCommercialApprovalResolved Type = "commercial_approval.resolved"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestCreated,
		TypeStageCompleted,
		TypeStepAssigned,
		TypeWorkflowApproved,
		TypeWorkflowRejected,
		TypeCommercialApprovalCreated,
		TypeCommercialApprovalResolved:
		return true
	default:
		return false
	}
}
