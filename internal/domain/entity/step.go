package entity

import "time"

// WorkflowStep is the audit record of one stage of a customization request.
// Steps are created pending and resolved exactly once.
type WorkflowStep struct {
	ID              string     `json:"id"`
	CustomizationID string     `json:"customization_id"`
	StepType        string     `json:"step_type"`
	Sequence        int        `json:"sequence"`
	Status          string     `json:"status"`
	AssignedUser    string     `json:"assigned_to,omitempty"`
	CompletedBy     string     `json:"completed_by,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	ResponseData    string     `json:"response_data,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// IsResolved reports whether the step has left the pending state.
func (s *WorkflowStep) IsResolved() bool {
	return s.Status != StepStatusPending
}

// CommercialApproval is the secondary gate created for high-value customizations.
type CommercialApproval struct {
	ID              string     `json:"id"`
	CustomizationID string     `json:"customization_id"`
	Status          string     `json:"status"`
	RequestedPrice  float64    `json:"requested_price"`
	Threshold       float64    `json:"threshold"`
	ReviewedBy      string     `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// User is a directory entry used for step assignment and notification.
type User struct {
	ID         string `json:"id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	LarkOpenID string `json:"lark_open_id,omitempty"`
}
