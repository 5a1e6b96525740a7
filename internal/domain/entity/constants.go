package entity

// Workflow status constants for CustomizationRequest
const (
	StatusPendingPMReview           = "pending_pm_review"
	StatusPendingSupplyQuote        = "pending_supply_quote"
	StatusPendingPlanningValidation = "pending_planning_validation"
	StatusPendingPMFinalApproval    = "pending_pm_final_approval"
	StatusPendingCommercialApproval = "pending_commercial_approval"
	StatusApproved                  = "approved"
	StatusRejected                  = "rejected"
)

// Step type constants for WorkflowStep
const (
	StepTypePMInitial     = "pm_initial"
	StepTypeSupplyQuote   = "supply_quote"
	StepTypePlanningCheck = "planning_check"
	StepTypePMFinal       = "pm_final"
)

// Step status constants
const (
	StepStatusPending   = "pending"
	StepStatusCompleted = "completed"
	StepStatusRejected  = "rejected"
	StepStatusSkipped   = "skipped"
)

// Commercial approval status constants
const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
)
