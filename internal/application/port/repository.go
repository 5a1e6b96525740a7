package port

import (
	"context"
	"time"

	"github.com/garyjia/yacht-customization/internal/domain/entity"
	domainwf "github.com/garyjia/yacht-customization/internal/domain/workflow"
)

// Lookups that find nothing return an error wrapping domainwf.ErrNotFound.

// CustomizationRepository defines persistence operations for CustomizationRequest
type CustomizationRepository interface {
	Create(ctx context.Context, req *entity.CustomizationRequest) error
	GetByID(ctx context.Context, id string) (*entity.CustomizationRequest, error)

	// SaveStage writes the payload columns owned by stage together with
	// req.WorkflowStatus, provided the stored status still equals expected.
	// It reports false when another writer moved the request first.
	SaveStage(ctx context.Context, req *entity.CustomizationRequest, stage domainwf.Stage, expected domainwf.State) (bool, error)

	// TransitionStatus moves the request from expected to next. rejectReason
	// is stored only when next is rejected.
	TransitionStatus(ctx context.Context, id string, expected, next domainwf.State, rejectReason string) (bool, error)
}

// StepRepository is the append-only audit trail. Steps are created pending
// and resolved once; there is no update or delete.
type StepRepository interface {
	Create(ctx context.Context, step *entity.WorkflowStep) error
	GetByType(ctx context.Context, customizationID, stepType string) (*entity.WorkflowStep, error)

	// Resolve closes a pending step. It reports false when the step was already resolved.
	Resolve(ctx context.Context, step *entity.WorkflowStep) (bool, error)

	// ListByCustomization returns all steps of a request in pipeline order
	ListByCustomization(ctx context.Context, customizationID string) ([]*entity.WorkflowStep, error)
}

// ApprovalRepository defines persistence operations for CommercialApproval
type ApprovalRepository interface {
	Create(ctx context.Context, approval *entity.CommercialApproval) error
	GetByID(ctx context.Context, id string) (*entity.CommercialApproval, error)
	GetByCustomizationID(ctx context.Context, customizationID string) (*entity.CommercialApproval, error)

	// Resolve records the reviewer decision on a pending gate. It reports
	// false when the gate was already decided.
	Resolve(ctx context.Context, id, status, reviewedBy, notes string, reviewedAt time.Time) (bool, error)
}

// QuotationTotalsRepository maintains the approved-customization totals of a quotation
type QuotationTotalsRepository interface {
	// Recalculate rebuilds the totals from every approved request of the quotation
	Recalculate(ctx context.Context, quotationID string) (*entity.QuotationTotals, error)
	Get(ctx context.Context, quotationID string) (*entity.QuotationTotals, error)
}

// TransactionManager handles database transactions. Repositories called with
// the ctx passed to fn join the transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
