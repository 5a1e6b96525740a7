package workflow

import (
	"fmt"

	"github.com/garyjia/yacht-customization/internal/domain/entity"
)

// Stage is one of the four ordered departments that must sign off a customization
type Stage string

const (
	StagePMInitial     Stage = entity.StepTypePMInitial
	StageSupplyQuote   Stage = entity.StepTypeSupplyQuote
	StagePlanningCheck Stage = entity.StepTypePlanningCheck
	StagePMFinal       Stage = entity.StepTypePMFinal
)

// Stages lists the stages in pipeline order
var Stages = []Stage{StagePMInitial, StageSupplyQuote, StagePlanningCheck, StagePMFinal}

var stageStates = map[Stage]State{
	StagePMInitial:     StatePendingPMReview,
	StageSupplyQuote:   StatePendingSupplyQuote,
	StagePlanningCheck: StatePendingPlanningValidation,
	StagePMFinal:       StatePendingPMFinalApproval,
}

var stateStages = map[State]Stage{
	StatePendingPMReview:           StagePMInitial,
	StatePendingSupplyQuote:        StageSupplyQuote,
	StatePendingPlanningValidation: StagePlanningCheck,
	StatePendingPMFinalApproval:    StagePMFinal,
}

// ParseStage validates a raw stage name
func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if !stage.IsValid() {
		return "", fmt.Errorf("%w: unknown stage %q", ErrInvalidState, s)
	}
	return stage, nil
}

// IsValid returns true if the stage is one of the four pipeline stages
func (s Stage) IsValid() bool {
	_, ok := stageStates[s]
	return ok
}

// String returns the string representation of the stage
func (s Stage) String() string {
	return string(s)
}

// State returns the workflow status in which the stage is awaited
func (s Stage) State() State {
	return stageStates[s]
}

// Next returns the stage following s, or false when s is the last stage
func (s Stage) Next() (Stage, bool) {
	for i, st := range Stages {
		if st == s && i+1 < len(Stages) {
			return Stages[i+1], true
		}
	}
	return "", false
}

// StageFor returns the stage awaited in the given state. States that do not
// await a stage (the commercial gate and the terminal states) return false.
func StageFor(state State) (Stage, bool) {
	stage, ok := stateStages[state]
	return stage, ok
}

// Ordinal returns the 1-based position of the stage in the pipeline, 0 if unknown
func (s Stage) Ordinal() int {
	for i, st := range Stages {
		if st == s {
			return i + 1
		}
	}
	return 0
}
