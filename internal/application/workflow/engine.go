package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/yacht-customization/internal/domain/entity"
	"github.com/garyjia/yacht-customization/internal/domain/pricing"
	domainwf "github.com/garyjia/yacht-customization/internal/domain/workflow"
)

// WorkflowEngine drives customization requests through the change-order pipeline
type WorkflowEngine interface {
	// Create opens a request in pending_pm_review with its pm_initial step
	Create(ctx context.Context, in CreateRequest, actorID string) (*entity.CustomizationRequest, error)

	// Advance completes the current stage with payload and moves the request on
	Advance(ctx context.Context, requestID string, stage domainwf.Stage, payload domainwf.Payload, actorID string) (*entity.CustomizationRequest, error)

	// Reject closes the request from its current stage
	Reject(ctx context.Context, requestID string, stage domainwf.Stage, reason, actorID string) (*entity.CustomizationRequest, error)

	// Precheck runs every Advance check without writing anything
	Precheck(ctx context.Context, requestID string, stage domainwf.Stage, payload domainwf.Payload, actorID string) error

	// ResolveCommercialApproval records the reviewer decision on a pending gate
	ResolveCommercialApproval(ctx context.Context, approvalID string, decision Decision, reviewerID, notes string) (*entity.CommercialApproval, error)

	GetRequest(ctx context.Context, requestID string) (*entity.CustomizationRequest, error)

	// GetTimeline returns the audit steps of a request in pipeline order
	GetTimeline(ctx context.Context, requestID string) ([]*entity.WorkflowStep, error)

	GetCommercialApproval(ctx context.Context, requestID string) (*entity.CommercialApproval, error)
	SuggestedPrice(ctx context.Context, requestID string) (pricing.Quote, error)
	GetQuotationTotals(ctx context.Context, quotationID string) (*entity.QuotationTotals, error)
}

// CreateRequest is the input of WorkflowEngine.Create
type CreateRequest struct {
	QuotationID string `json:"quotation_id"`
	ItemName    string `json:"item_name"`
	Notes       string `json:"notes"`
}

// Decision is a commercial reviewer's verdict
type Decision string

const (
	DecisionApproved Decision = entity.ApprovalStatusApproved
	DecisionRejected Decision = entity.ApprovalStatusRejected
)

// ParseDecision validates a raw decision
func ParseDecision(s string) (Decision, error) {
	d := Decision(strings.ToLower(strings.TrimSpace(s)))
	if d != DecisionApproved && d != DecisionRejected {
		return "", &domainwf.ValidationError{Stage: gateStage, Fields: []string{"decision"}}
	}
	return d, nil
}

// Policy holds the configurable business rules of the engine. It is
// built once from configuration and never mutated.
type Policy struct {
	Rates                       pricing.Rates
	CommercialApprovalThreshold float64
	CommercialReviewerRoles     entity.RoleSet
}

// Validate rejects a policy the engine cannot run with
func (p Policy) Validate() error {
	if p.Rates.EngineeringRate < 0 {
		return fmt.Errorf("engineering rate must be >= 0, got %v", p.Rates.EngineeringRate)
	}
	if p.Rates.ContingencyPercent < 0 {
		return fmt.Errorf("contingency percent must be >= 0, got %v", p.Rates.ContingencyPercent)
	}
	if p.CommercialApprovalThreshold <= 0 {
		return fmt.Errorf("commercial approval threshold must be > 0, got %v", p.CommercialApprovalThreshold)
	}
	return nil
}

// Metrics receives engine outcomes. infrastructure/metrics provides the
// Prometheus implementation.
type Metrics interface {
	TransitionCommitted(trigger domainwf.Trigger, from, to domainwf.State)
	CommandFailed(operation, kind string)
	GateOpened()
	GateResolved(decision string)
}

type nopMetrics struct{}

func (nopMetrics) TransitionCommitted(domainwf.Trigger, domainwf.State, domainwf.State) {}
func (nopMetrics) CommandFailed(string, string) {}
func (nopMetrics) GateOpened() {}
func (nopMetrics) GateResolved(string) {}
