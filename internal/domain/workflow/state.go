package workflow

import "github.com/garyjia/yacht-customization/internal/domain/entity"

// State is a workflow status of a customization request
type State string

const (
	StatePendingPMReview           State = entity.StatusPendingPMReview
	StatePendingSupplyQuote        State = entity.StatusPendingSupplyQuote
	StatePendingPlanningValidation State = entity.StatusPendingPlanningValidation
	StatePendingPMFinalApproval    State = entity.StatusPendingPMFinalApproval
	StatePendingCommercialApproval State = entity.StatusPendingCommercialApproval
	StateApproved                  State = entity.StatusApproved
	StateRejected                  State = entity.StatusRejected
)

var validStates = map[State]bool{
	StatePendingPMReview:           true,
	StatePendingSupplyQuote:        true,
	StatePendingPlanningValidation: true,
	StatePendingPMFinalApproval:    true,
	StatePendingCommercialApproval: true,
	StateApproved:                  true,
	StateRejected:                  true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// InitialState is the status every new request starts in
const InitialState = StatePendingPMReview

// IsTerminal returns true if no further transitions are allowed from the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
