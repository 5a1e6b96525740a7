package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/yacht-customization/internal/application/dispatcher"
	"github.com/garyjia/yacht-customization/internal/application/port"
	"github.com/garyjia/yacht-customization/internal/domain/entity"
	"github.com/garyjia/yacht-customization/internal/domain/event"
	"github.com/garyjia/yacht-customization/internal/domain/pricing"
	domainwf "github.com/garyjia/yacht-customization/internal/domain/workflow"
)

const gateStage = "commercial_approval"

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	customizations port.CustomizationRepository
	steps          port.StepRepository
	approvals      port.ApprovalRepository
	totals         port.QuotationTotalsRepository
	txManager      port.TransactionManager
	roles          port.RoleResolver
	directory      port.Directory

	policy     Policy
	dispatcher dispatcher.Dispatcher
	metrics    Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// Repositories groups the persistence ports used by the engine
type Repositories struct {
	Customizations port.CustomizationRepository
	Steps          port.StepRepository
	Approvals      port.ApprovalRepository
	Totals         port.QuotationTotalsRepository
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events after commit
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) EngineOption {
	return func(e *engineImpl) {
		e.metrics = m
	}
}

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	repos Repositories,
	txManager port.TransactionManager,
	roles port.RoleResolver,
	directory port.Directory,
	policy Policy,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		customizations: repos.Customizations,
		steps:          repos.Steps,
		approvals:      repos.Approvals,
		totals:         repos.Totals,
		txManager:      txManager,
		roles:          roles,
		directory:      directory,
		policy:         policy,
		metrics:        nopMetrics{},
		logger:         zap.NewNop(),
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Create opens a new customization request
func (e *engineImpl) Create(ctx context.Context, in CreateRequest, actorID string) (*entity.CustomizationRequest, error) {
	var missing []string
	if strings.TrimSpace(in.QuotationID) == "" {
		missing = append(missing, "quotation_id")
	}
	if strings.TrimSpace(in.ItemName) == "" {
		missing = append(missing, "item_name")
	}
	if len(missing) > 0 {
		return nil, e.fail("create", "", &domainwf.ValidationError{Stage: "create", Fields: missing})
	}

	assignee, err := e.firstWithRole(ctx, domainwf.RequiredRole(domainwf.StagePMInitial))
	if err != nil {
		return nil, e.fail("create", "", err)
	}

	now := e.now()
	req := &entity.CustomizationRequest{
		ID:             uuid.NewString(),
		QuotationID:    in.QuotationID,
		ItemName:       strings.TrimSpace(in.ItemName),
		Notes:          in.Notes,
		RequiredParts:  []string{},
		SupplyItems:    []entity.SupplyItem{},
		WorkflowStatus: domainwf.InitialState.String(),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	step := e.newStep(req.ID, domainwf.StagePMInitial, assignee, now)

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.customizations.Create(txCtx, req); err != nil {
			return &domainwf.PersistenceError{Op: "create customization", Err: err}
		}
		if err := e.steps.Create(txCtx, step); err != nil {
			return &domainwf.PersistenceError{Op: "create pm_initial step", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, e.fail("create", req.ID, asPersistence("create", err))
	}

	e.logger.Info("Customization request created",
		zap.String("request_id", req.ID),
		zap.String("quotation_id", req.QuotationID),
		zap.String("actor_id", actorID),
	)

	correlation := uuid.NewString()
	e.publish(ctx,
		event.NewEventWithCorrelation(event.TypeRequestCreated, req.ID, map[string]interface{}{
			event.KeyQuotationID: req.QuotationID,
			event.KeyItemName:    req.ItemName,
			event.KeyActorID:     actorID,
		}, correlation),
		e.assignedEvent(req, step, correlation),
	)

	return req, nil
}

// Advance completes the current stage of a request
func (e *engineImpl) Advance(ctx context.Context, requestID string, stage domainwf.Stage, payload domainwf.Payload, actorID string) (*entity.CustomizationRequest, error) {
	req, err := e.checkStageCommand(ctx, requestID, stage, actorID)
	if err != nil {
		return nil, e.fail("advance", requestID, err)
	}
	if err := domainwf.IsComplete(stage, payload); err != nil {
		return nil, e.fail("advance", requestID, err)
	}

	from := domainwf.State(req.WorkflowStatus)
	gated := stage == domainwf.StagePMFinal && *payload.FinalPrice > e.policy.CommercialApprovalThreshold

	machine := BuildCustomizationStateMachine(from)
	to, err := machine.Peek(domainwf.WithCommercialGate(ctx, gated), domainwf.TriggerAdvance)
	if err != nil {
		return nil, e.fail("advance", requestID, err)
	}

	now := e.now()
	applyPayload(req, stage, payload)
	req.WorkflowStatus = to.String()
	req.UpdatedAt = now

	record := stageRecord{Payload: payload}
	if stage == domainwf.StagePMFinal {
		quote := pricing.Calculate(req.EngineeringHours, req.SupplyCost, e.policy.Rates)
		record.SuggestedQuote = &quote
	}
	responseData, err := json.Marshal(record)
	if err != nil {
		return nil, e.fail("advance", requestID, fmt.Errorf("encode response data: %w", err))
	}

	// Resolve the next assignee before opening the transaction.
	nextStage, hasNext := domainwf.StageFor(to)
	var nextStep *entity.WorkflowStep
	if hasNext {
		assignee, err := e.assigneeFor(ctx, req.ID, nextStage)
		if err != nil {
			return nil, e.fail("advance", requestID, err)
		}
		nextStep = e.newStep(req.ID, nextStage, assignee, now)
	}

	var (
		completed *entity.WorkflowStep
		approval  *entity.CommercialApproval
	)

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		ok, err := e.customizations.SaveStage(txCtx, req, stage, from)
		if err != nil {
			return &domainwf.PersistenceError{Op: "save stage", Err: err}
		}
		if !ok {
			return e.staleFromStore(txCtx, req.ID, from)
		}

		completed, err = e.resolveStep(txCtx, req.ID, stage, entity.StepStatusCompleted, actorID, stageNotes(stage, payload), string(responseData), now)
		if err != nil {
			return err
		}

		if nextStep != nil {
			if err := e.steps.Create(txCtx, nextStep); err != nil {
				return &domainwf.PersistenceError{Op: "create next step", Err: err}
			}
		}

		switch to {
		case domainwf.StatePendingCommercialApproval:
			approval = &entity.CommercialApproval{
				ID:              uuid.NewString(),
				CustomizationID: req.ID,
				Status:          entity.ApprovalStatusPending,
				RequestedPrice:  req.FinalPrice,
				Threshold:       e.policy.CommercialApprovalThreshold,
				CreatedAt:       now,
			}
			if err := e.approvals.Create(txCtx, approval); err != nil {
				return &domainwf.PersistenceError{Op: "create commercial approval", Err: err}
			}
		case domainwf.StateApproved:
			if _, err := e.totals.Recalculate(txCtx, req.QuotationID); err != nil {
				return &domainwf.PersistenceError{Op: "recalculate quotation totals", Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return nil, e.fail("advance", requestID, asPersistence("advance", err))
	}
	req.Version++

	e.metrics.TransitionCommitted(domainwf.TriggerAdvance, from, to)
	e.logger.Info("Stage completed",
		zap.String("request_id", req.ID),
		zap.String("stage", stage.String()),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("actor_id", actorID),
	)

	correlation := uuid.NewString()
	events := []*event.Event{
		event.NewEventWithCorrelation(event.TypeStageCompleted, req.ID, map[string]interface{}{
			event.KeyStage:      stage.String(),
			event.KeyStepID:     completed.ID,
			event.KeyActorID:    actorID,
			event.KeyFromStatus: from.String(),
			event.KeyToStatus:   to.String(),
		}, correlation),
	}
	if nextStep != nil {
		events = append(events, e.assignedEvent(req, nextStep, correlation))
	}
	if approval != nil {
		e.metrics.GateOpened()
		events = append(events, event.NewEventWithCorrelation(event.TypeCommercialApprovalCreated, req.ID, map[string]interface{}{
			event.KeyApprovalID: approval.ID,
			event.KeyFinalPrice: approval.RequestedPrice,
			event.KeyItemName:   req.ItemName,
		}, correlation))
	}
	if to == domainwf.StateApproved {
		events = append(events, e.approvedEvent(req, correlation))
	}
	e.publish(ctx, events...)

	return req, nil
}

// Reject closes a request from its current stage
func (e *engineImpl) Reject(ctx context.Context, requestID string, stage domainwf.Stage, reason, actorID string) (*entity.CustomizationRequest, error) {
	req, err := e.checkStageCommand(ctx, requestID, stage, actorID)
	if err != nil {
		return nil, e.fail("reject", requestID, err)
	}
	if err := domainwf.ValidateRejection(stage, reason); err != nil {
		return nil, e.fail("reject", requestID, err)
	}

	from := domainwf.State(req.WorkflowStatus)
	to, err := BuildCustomizationStateMachine(from).Peek(ctx, domainwf.TriggerReject)
	if err != nil {
		return nil, e.fail("reject", requestID, err)
	}
	reason = strings.TrimSpace(reason)
	now := e.now()

	var rejected *entity.WorkflowStep
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		ok, err := e.customizations.TransitionStatus(txCtx, req.ID, from, to, reason)
		if err != nil {
			return &domainwf.PersistenceError{Op: "reject customization", Err: err}
		}
		if !ok {
			return e.staleFromStore(txCtx, req.ID, from)
		}

		rejected, err = e.resolveStep(txCtx, req.ID, stage, entity.StepStatusRejected, actorID, reason, "", now)
		return err
	})
	if err != nil {
		return nil, e.fail("reject", requestID, asPersistence("reject", err))
	}

	req.WorkflowStatus = to.String()
	req.RejectReason = reason
	req.UpdatedAt = now
	req.Version++

	e.metrics.TransitionCommitted(domainwf.TriggerReject, from, to)
	e.logger.Info("Customization rejected",
		zap.String("request_id", req.ID),
		zap.String("stage", stage.String()),
		zap.String("actor_id", actorID),
	)

	e.publish(ctx, event.NewEvent(event.TypeWorkflowRejected, req.ID, map[string]interface{}{
		event.KeyStage:       stage.String(),
		event.KeyStepID:      rejected.ID,
		event.KeyActorID:     actorID,
		event.KeyReason:      reason,
		event.KeyFromStatus:  from.String(),
		event.KeyQuotationID: req.QuotationID,
		event.KeyItemName:    req.ItemName,
	}))

	return req, nil
}

// Precheck runs the Advance checks without writing
func (e *engineImpl) Precheck(ctx context.Context, requestID string, stage domainwf.Stage, payload domainwf.Payload, actorID string) error {
	if _, err := e.checkStageCommand(ctx, requestID, stage, actorID); err != nil {
		return err
	}
	return domainwf.IsComplete(stage, payload)
}

// ResolveCommercialApproval records the reviewer decision and propagates it to the request
func (e *engineImpl) ResolveCommercialApproval(ctx context.Context, approvalID string, decision Decision, reviewerID, notes string) (*entity.CommercialApproval, error) {
	if decision != DecisionApproved && decision != DecisionRejected {
		return nil, e.fail("resolve_gate", "", &domainwf.ValidationError{Stage: gateStage, Fields: []string{"decision"}})
	}

	approval, err := e.approvals.GetByID(ctx, approvalID)
	if err != nil {
		return nil, e.fail("resolve_gate", "", err)
	}
	if approval.Status != entity.ApprovalStatusPending {
		return nil, e.fail("resolve_gate", approval.CustomizationID, &domainwf.TerminalStateError{ID: approval.ID, State: approval.Status})
	}

	roles, err := e.roles.RolesOf(ctx, reviewerID)
	if err != nil {
		return nil, e.fail("resolve_gate", approval.CustomizationID, fmt.Errorf("resolve roles of %s: %w", reviewerID, err))
	}
	if !e.isCommercialReviewer(roles) {
		return nil, e.fail("resolve_gate", approval.CustomizationID, &domainwf.AuthorizationError{
			ActorID:  reviewerID,
			Stage:    gateStage,
			Required: e.reviewerRoleNames(),
		})
	}

	notes = strings.TrimSpace(notes)
	if decision == DecisionRejected && notes == "" {
		return nil, e.fail("resolve_gate", approval.CustomizationID, &domainwf.ValidationError{Stage: gateStage, Fields: []string{"notes"}})
	}

	req, err := e.customizations.GetByID(ctx, approval.CustomizationID)
	if err != nil {
		return nil, e.fail("resolve_gate", approval.CustomizationID, err)
	}
	from := domainwf.State(req.WorkflowStatus)
	if from != domainwf.StatePendingCommercialApproval {
		return nil, e.fail("resolve_gate", req.ID, &domainwf.StaleStateError{
			RequestID: req.ID,
			Expected:  domainwf.StatePendingCommercialApproval,
			Actual:    from,
		})
	}

	trigger := domainwf.TriggerGateApprove
	rejectReason := ""
	if decision == DecisionRejected {
		trigger = domainwf.TriggerGateReject
		rejectReason = notes
	}
	to, err := BuildCustomizationStateMachine(from).Peek(ctx, trigger)
	if err != nil {
		return nil, e.fail("resolve_gate", req.ID, err)
	}

	now := e.now()
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		ok, err := e.approvals.Resolve(txCtx, approval.ID, string(decision), reviewerID, notes, now)
		if err != nil {
			return &domainwf.PersistenceError{Op: "resolve commercial approval", Err: err}
		}
		if !ok {
			return &domainwf.TerminalStateError{ID: approval.ID, State: "resolved"}
		}

		ok, err = e.customizations.TransitionStatus(txCtx, req.ID, from, to, rejectReason)
		if err != nil {
			return &domainwf.PersistenceError{Op: "propagate gate decision", Err: err}
		}
		if !ok {
			return e.staleFromStore(txCtx, req.ID, from)
		}

		if to == domainwf.StateApproved {
			if _, err := e.totals.Recalculate(txCtx, req.QuotationID); err != nil {
				return &domainwf.PersistenceError{Op: "recalculate quotation totals", Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return nil, e.fail("resolve_gate", req.ID, asPersistence("resolve_gate", err))
	}

	approval.Status = string(decision)
	approval.ReviewedBy = reviewerID
	approval.ReviewedAt = &now
	approval.Notes = notes

	req.WorkflowStatus = to.String()
	req.RejectReason = rejectReason
	req.UpdatedAt = now

	e.metrics.TransitionCommitted(trigger, from, to)
	e.metrics.GateResolved(string(decision))
	e.logger.Info("Commercial approval resolved",
		zap.String("request_id", req.ID),
		zap.String("approval_id", approval.ID),
		zap.String("decision", string(decision)),
		zap.String("reviewer_id", reviewerID),
	)

	correlation := uuid.NewString()
	events := []*event.Event{
		event.NewEventWithCorrelation(event.TypeCommercialApprovalResolved, req.ID, map[string]interface{}{
			event.KeyApprovalID: approval.ID,
			event.KeyDecision:   string(decision),
			event.KeyActorID:    reviewerID,
		}, correlation),
	}
	if to == domainwf.StateApproved {
		events = append(events, e.approvedEvent(req, correlation))
	} else {
		events = append(events, event.NewEventWithCorrelation(event.TypeWorkflowRejected, req.ID, map[string]interface{}{
			event.KeyStage:       gateStage,
			event.KeyActorID:     reviewerID,
			event.KeyReason:      rejectReason,
			event.KeyFromStatus:  from.String(),
			event.KeyQuotationID: req.QuotationID,
			event.KeyItemName:    req.ItemName,
		}, correlation))
	}
	e.publish(ctx, events...)

	return approval, nil
}

func (e *engineImpl) GetRequest(ctx context.Context, requestID string) (*entity.CustomizationRequest, error) {
	return e.customizations.GetByID(ctx, requestID)
}

func (e *engineImpl) GetTimeline(ctx context.Context, requestID string) ([]*entity.WorkflowStep, error) {
	if _, err := e.customizations.GetByID(ctx, requestID); err != nil {
		return nil, err
	}
	return e.steps.ListByCustomization(ctx, requestID)
}

func (e *engineImpl) GetCommercialApproval(ctx context.Context, requestID string) (*entity.CommercialApproval, error) {
	return e.approvals.GetByCustomizationID(ctx, requestID)
}

// SuggestedPrice prices the request from its stored engineering hours and supply cost
func (e *engineImpl) SuggestedPrice(ctx context.Context, requestID string) (pricing.Quote, error) {
	req, err := e.customizations.GetByID(ctx, requestID)
	if err != nil {
		return pricing.Quote{}, err
	}
	return pricing.Calculate(req.EngineeringHours, req.SupplyCost, e.policy.Rates), nil
}

func (e *engineImpl) GetQuotationTotals(ctx context.Context, quotationID string) (*entity.QuotationTotals, error) {
	return e.totals.Get(ctx, quotationID)
}

// checkStageCommand loads the request and runs the checks shared by Advance,
// Reject and Precheck: existence, terminal status, stale stage, role.
func (e *engineImpl) checkStageCommand(ctx context.Context, requestID string, stage domainwf.Stage, actorID string) (*entity.CustomizationRequest, error) {
	if !stage.IsValid() {
		return nil, fmt.Errorf("%w: unknown stage %q", domainwf.ErrInvalidState, stage)
	}

	req, err := e.customizations.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if entity.IsLegacyStatus(req.WorkflowStatus) {
		return nil, fmt.Errorf("%w: request %s carries legacy status %q", domainwf.ErrInvalidState, req.ID, req.WorkflowStatus)
	}

	live := domainwf.State(req.WorkflowStatus)
	if live.IsTerminal() {
		return nil, &domainwf.TerminalStateError{ID: req.ID, State: req.WorkflowStatus}
	}
	if live != stage.State() {
		return nil, &domainwf.StaleStateError{RequestID: req.ID, Expected: stage.State(), Actual: live}
	}

	roles, err := e.roles.RolesOf(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("resolve roles of %s: %w", actorID, err)
	}
	if err := domainwf.Authorize(stage, actorID, roles); err != nil {
		return nil, err
	}

	return req, nil
}

// resolveStep closes the pending step of stage. Requests created before the
// audit trail existed have no pending step; one is opened and closed at once.
func (e *engineImpl) resolveStep(ctx context.Context, requestID string, stage domainwf.Stage, status, actorID, notes, responseData string, now time.Time) (*entity.WorkflowStep, error) {
	step, err := e.steps.GetByType(ctx, requestID, stage.String())
	if errors.Is(err, domainwf.ErrNotFound) {
		step = e.newStep(requestID, stage, "", now)
		if err := e.steps.Create(ctx, step); err != nil {
			return nil, &domainwf.PersistenceError{Op: "create missing step", Err: err}
		}
	} else if err != nil {
		return nil, &domainwf.PersistenceError{Op: "load current step", Err: err}
	}

	if step.IsResolved() {
		return nil, &domainwf.StaleStateError{RequestID: requestID, Expected: stage.State(), Actual: domainwf.State(step.Status)}
	}

	step.Status = status
	step.CompletedBy = actorID
	step.Notes = notes
	step.ResponseData = responseData
	step.CompletedAt = &now

	ok, err := e.steps.Resolve(ctx, step)
	if err != nil {
		return nil, &domainwf.PersistenceError{Op: "resolve step", Err: err}
	}
	if !ok {
		return nil, &domainwf.StaleStateError{RequestID: requestID, Expected: stage.State(), Actual: domainwf.State(step.Status)}
	}
	return step, nil
}

// staleFromStore builds the StaleStateError for a lost conditional write,
// reporting the status that won.
func (e *engineImpl) staleFromStore(ctx context.Context, requestID string, expected domainwf.State) error {
	staleErr := &domainwf.StaleStateError{RequestID: requestID, Expected: expected}
	if current, err := e.customizations.GetByID(ctx, requestID); err == nil {
		staleErr.Actual = domainwf.State(current.WorkflowStatus)
	}
	return staleErr
}

// assigneeFor picks the user of the next step. pm_final returns to the PM
// who scoped the request; other stages go to the first holder of the role.
func (e *engineImpl) assigneeFor(ctx context.Context, requestID string, stage domainwf.Stage) (string, error) {
	if stage == domainwf.StagePMFinal {
		initial, err := e.steps.GetByType(ctx, requestID, domainwf.StagePMInitial.String())
		if err != nil && !errors.Is(err, domainwf.ErrNotFound) {
			return "", &domainwf.PersistenceError{Op: "load pm_initial step", Err: err}
		}
		if initial != nil && initial.CompletedBy != "" {
			return initial.CompletedBy, nil
		}
	}
	return e.firstWithRole(ctx, domainwf.RequiredRole(stage))
}

func (e *engineImpl) firstWithRole(ctx context.Context, role entity.Role) (string, error) {
	user, err := e.directory.FirstUserWithRole(ctx, role)
	if err != nil {
		return "", &domainwf.PersistenceError{Op: "find " + role.String(), Err: err}
	}
	if user == nil {
		e.logger.Warn("No user holds role, step left unassigned", zap.String("role", role.String()))
		return "", nil
	}
	return user.ID, nil
}

func (e *engineImpl) newStep(requestID string, stage domainwf.Stage, assignee string, now time.Time) *entity.WorkflowStep {
	return &entity.WorkflowStep{
		ID:              uuid.NewString(),
		CustomizationID: requestID,
		StepType:        stage.String(),
		Sequence:        stage.Ordinal(),
		Status:          entity.StepStatusPending,
		AssignedUser:    assignee,
		CreatedAt:       now,
	}
}

func (e *engineImpl) isCommercialReviewer(roles entity.RoleSet) bool {
	if roles.Has(entity.RoleAdministrador) {
		return true
	}
	for role := range e.policy.CommercialReviewerRoles {
		if roles.Has(role) {
			return true
		}
	}
	return false
}

func (e *engineImpl) reviewerRoleNames() []string {
	names := []string{}
	for _, r := range e.policy.CommercialReviewerRoles.Slice() {
		names = append(names, r.String())
	}
	return append(names, entity.RoleAdministrador.String())
}

func (e *engineImpl) assignedEvent(req *entity.CustomizationRequest, step *entity.WorkflowStep, correlation string) *event.Event {
	return event.NewEventWithCorrelation(event.TypeStepAssigned, req.ID, map[string]interface{}{
		event.KeyStage:       step.StepType,
		event.KeyStepID:      step.ID,
		event.KeyAssignee:    step.AssignedUser,
		event.KeyItemName:    req.ItemName,
		event.KeyQuotationID: req.QuotationID,
	}, correlation)
}

func (e *engineImpl) approvedEvent(req *entity.CustomizationRequest, correlation string) *event.Event {
	return event.NewEventWithCorrelation(event.TypeWorkflowApproved, req.ID, map[string]interface{}{
		event.KeyFinalPrice:  req.FinalPrice,
		event.KeyQuotationID: req.QuotationID,
		event.KeyItemName:    req.ItemName,
	}, correlation)
}

// publish hands committed events to the dispatcher
func (e *engineImpl) publish(ctx context.Context, events ...*event.Event) {
	if e.dispatcher == nil || len(events) == 0 {
		return
	}
	e.dispatcher.DispatchAsync(ctx, events...)
}

// fail logs and counts a rejected command, then returns err unchanged
func (e *engineImpl) fail(op, requestID string, err error) error {
	kind := domainwf.Kind(err)
	e.metrics.CommandFailed(op, kind)

	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("request_id", requestID),
		zap.String("kind", kind),
		zap.Error(err),
	}
	if kind == "persistence" || kind == "internal" {
		e.logger.Error("Workflow command failed", fields...)
	} else {
		e.logger.Warn("Workflow command rejected", fields...)
	}
	return err
}

// asPersistence wraps errors that escaped a transaction without a domain
// classification, such as a failed commit.
func asPersistence(op string, err error) error {
	if domainwf.Kind(err) != "internal" {
		return err
	}
	return &domainwf.PersistenceError{Op: op, Err: err}
}

// stageRecord is the response data stored on a completed step
type stageRecord struct {
	Payload        domainwf.Payload `json:"payload"`
	SuggestedQuote *pricing.Quote   `json:"suggested_quote,omitempty"`
}

func applyPayload(req *entity.CustomizationRequest, stage domainwf.Stage, p domainwf.Payload) {
	switch stage {
	case domainwf.StagePMInitial:
		req.Scope = strings.TrimSpace(p.Scope)
		req.EngineeringHours = *p.EngineeringHours
		req.RequiredParts = append([]string{}, p.RequiredParts...)
	case domainwf.StageSupplyQuote:
		req.SupplyItems = append([]entity.SupplyItem{}, p.SupplyItems...)
		req.SupplyCost, req.SupplyLeadTimeDays = entity.SupplyTotals(p.SupplyItems)
		req.SupplyNotes = p.SupplyNotes
	case domainwf.StagePlanningCheck:
		req.PlanningWindowStart = p.PlanningWindowStart
		req.PlanningDeliveryImpactDays = *p.PlanningDeliveryImpactDays
		req.PlanningNotes = p.PlanningNotes
	case domainwf.StagePMFinal:
		req.FinalPrice = *p.FinalPrice
		req.FinalDeliveryImpactDays = *p.FinalDeliveryImpactDays
		req.FinalNotes = p.FinalNotes
	}
}

func stageNotes(stage domainwf.Stage, p domainwf.Payload) string {
	switch stage {
	case domainwf.StageSupplyQuote:
		return p.SupplyNotes
	case domainwf.StagePlanningCheck:
		return p.PlanningNotes
	case domainwf.StagePMFinal:
		return p.FinalNotes
	default:
		return ""
	}
}
