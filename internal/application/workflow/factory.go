package workflow

import (
	domainwf "github.com/garyjia/yacht-customization/internal/domain/workflow"
)

// BuildCustomizationStateMachine creates a state machine configured for the
// change-order pipeline
func BuildCustomizationStateMachine(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	// PM-Initial
	builder.Configure(domainwf.StatePendingPMReview).
		Permit(domainwf.TriggerAdvance, domainwf.StatePendingSupplyQuote).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	// Supply
	builder.Configure(domainwf.StatePendingSupplyQuote).
		Permit(domainwf.TriggerAdvance, domainwf.StatePendingPlanningValidation).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	// Planning
	builder.Configure(domainwf.StatePendingPlanningValidation).
		Permit(domainwf.TriggerAdvance, domainwf.StatePendingPMFinalApproval).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	// PM-Final: prices above the threshold wait for a commercial reviewer
	builder.Configure(domainwf.StatePendingPMFinalApproval).
		PermitIf(domainwf.TriggerAdvance, domainwf.StatePendingCommercialApproval, domainwf.CommercialGateRequired).
		Permit(domainwf.TriggerAdvance, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	builder.Configure(domainwf.StatePendingCommercialApproval).
		Permit(domainwf.TriggerGateApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerGateReject, domainwf.StateRejected)

	// APPROVED and REJECTED are terminal states - no outgoing transitions

	return builder.Build(initialState)
}
