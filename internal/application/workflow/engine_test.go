package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/yacht-customization/internal/domain/entity"
	"github.com/garyjia/yacht-customization/internal/domain/event"
	"github.com/garyjia/yacht-customization/internal/domain/pricing"
	domainwf "github.com/garyjia/yacht-customization/internal/domain/workflow"
)

const (
	pmUser       = "pm-1"
	pmOther      = "pm-2"
	buyerUser    = "buyer-1"
	plannerUser  = "planner-1"
	managerUser  = "manager-1"
	salesUser    = "sales-1"
	adminUser    = "admin-1"
	strangerUser = "stranger-1"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

type harness struct {
	engine  WorkflowEngine
	store   *memStore
	events  *mockDispatcher
	metrics *mockMetrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir := &mockDirectory{
		users: []*entity.User{
			{ID: pmUser}, {ID: pmOther}, {ID: buyerUser}, {ID: plannerUser},
			{ID: managerUser}, {ID: salesUser}, {ID: adminUser},
		},
		roles: map[string]entity.RoleSet{
			pmUser:      entity.NewRoleSet(entity.RolePMEngenharia),
			pmOther:     entity.NewRoleSet(entity.RolePMEngenharia),
			buyerUser:   entity.NewRoleSet(entity.RoleComprador),
			plannerUser: entity.NewRoleSet(entity.RolePlanejador),
			managerUser: entity.NewRoleSet(entity.RoleGerenteComercial),
			salesUser:   entity.NewRoleSet(entity.RoleComercial),
			adminUser:   entity.NewRoleSet(entity.RoleAdministrador),
		},
	}

	store := newMemStore()
	events := &mockDispatcher{}
	metrics := newMockMetrics()
	policy := Policy{
		Rates:                       pricing.Rates{EngineeringRate: 150, ContingencyPercent: 10},
		CommercialApprovalThreshold: 50000,
		CommercialReviewerRoles:     entity.NewRoleSet(entity.RoleGerenteComercial, entity.RoleDiretorComercial),
	}

	engine := NewEngine(store.repos(), store, dir, dir, policy,
		WithDispatcher(events),
		WithMetrics(metrics),
	)

	return &harness{engine: engine, store: store, events: events, metrics: metrics}
}

func (h *harness) create(t *testing.T) *entity.CustomizationRequest {
	t.Helper()
	req, err := h.engine.Create(context.Background(), CreateRequest{
		QuotationID: "quote-1",
		ItemName:    "Hardtop with electric sunroof",
	}, salesUser)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	return req
}

func pmInitialPayload() domainwf.Payload {
	return domainwf.Payload{Scope: "Structural reinforcement and wiring", EngineeringHours: floatPtr(10), RequiredParts: []string{"actuator"}}
}

func supplyPayload() domainwf.Payload {
	return domainwf.Payload{SupplyItems: []entity.SupplyItem{
		{Part: "actuator", Supplier: "Lewmar", UnitCost: 800, Quantity: 2, LeadTimeDays: 30},
		{Part: "glass panel", Supplier: "Vitro", UnitCost: 400, Quantity: 1, LeadTimeDays: 45},
	}}
}

func planningPayload() domainwf.Payload {
	return domainwf.Payload{PlanningDeliveryImpactDays: intPtr(7), PlanningNotes: "fits hull 42 window"}
}

func finalPayload(price float64) domainwf.Payload {
	return domainwf.Payload{FinalPrice: floatPtr(price), FinalDeliveryImpactDays: intPtr(10)}
}

// advanceToFinal walks a fresh request through the first three stages
func (h *harness) advanceToFinal(t *testing.T) *entity.CustomizationRequest {
	t.Helper()
	ctx := context.Background()
	req := h.create(t)

	steps := []struct {
		stage   domainwf.Stage
		payload domainwf.Payload
		actor   string
	}{
		{domainwf.StagePMInitial, pmInitialPayload(), pmOther},
		{domainwf.StageSupplyQuote, supplyPayload(), buyerUser},
		{domainwf.StagePlanningCheck, planningPayload(), plannerUser},
	}
	for _, s := range steps {
		var err error
		if req, err = h.engine.Advance(ctx, req.ID, s.stage, s.payload, s.actor); err != nil {
			t.Fatalf("Advance(%s) failed: %v", s.stage, err)
		}
	}
	return req
}

func TestBuildCustomizationStateMachine(t *testing.T) {
	tests := []struct {
		name    string
		from    domainwf.State
		trigger domainwf.Trigger
		gated   bool
		want    domainwf.State
		wantErr error
	}{
		{"pm review advances to supply", domainwf.StatePendingPMReview, domainwf.TriggerAdvance, false, domainwf.StatePendingSupplyQuote, nil},
		{"supply advances to planning", domainwf.StatePendingSupplyQuote, domainwf.TriggerAdvance, false, domainwf.StatePendingPlanningValidation, nil},
		{"planning advances to final", domainwf.StatePendingPlanningValidation, domainwf.TriggerAdvance, false, domainwf.StatePendingPMFinalApproval, nil},
		{"final below threshold approves", domainwf.StatePendingPMFinalApproval, domainwf.TriggerAdvance, false, domainwf.StateApproved, nil},
		{"final above threshold opens gate", domainwf.StatePendingPMFinalApproval, domainwf.TriggerAdvance, true, domainwf.StatePendingCommercialApproval, nil},
		{"pm review rejects", domainwf.StatePendingPMReview, domainwf.TriggerReject, false, domainwf.StateRejected, nil},
		{"supply rejects", domainwf.StatePendingSupplyQuote, domainwf.TriggerReject, false, domainwf.StateRejected, nil},
		{"planning rejects", domainwf.StatePendingPlanningValidation, domainwf.TriggerReject, false, domainwf.StateRejected, nil},
		{"final rejects", domainwf.StatePendingPMFinalApproval, domainwf.TriggerReject, false, domainwf.StateRejected, nil},
		{"gate approves", domainwf.StatePendingCommercialApproval, domainwf.TriggerGateApprove, false, domainwf.StateApproved, nil},
		{"gate rejects", domainwf.StatePendingCommercialApproval, domainwf.TriggerGateReject, false, domainwf.StateRejected, nil},
		{"gate has no stage advance", domainwf.StatePendingCommercialApproval, domainwf.TriggerAdvance, false, "", domainwf.ErrInvalidTransition},
		{"stage has no gate trigger", domainwf.StatePendingSupplyQuote, domainwf.TriggerGateApprove, false, "", domainwf.ErrInvalidTransition},
		{"approved is terminal", domainwf.StateApproved, domainwf.TriggerReject, false, "", domainwf.ErrInvalidTransition},
		{"rejected is terminal", domainwf.StateRejected, domainwf.TriggerAdvance, false, "", domainwf.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := BuildCustomizationStateMachine(tt.from)
			ctx := domainwf.WithCommercialGate(context.Background(), tt.gated)

			got, err := machine.Peek(ctx, tt.trigger)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Peek() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Peek() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Peek() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngineCreate(t *testing.T) {
	h := newHarness(t)
	req := h.create(t)

	if req.WorkflowStatus != entity.StatusPendingPMReview {
		t.Errorf("status = %s, want %s", req.WorkflowStatus, entity.StatusPendingPMReview)
	}

	steps := h.store.stepsOf(req.ID)
	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	if steps[0].StepType != entity.StepTypePMInitial || steps[0].Status != entity.StepStatusPending {
		t.Errorf("unexpected initial step: %+v", steps[0])
	}
	if steps[0].AssignedUser != pmUser {
		t.Errorf("pm_initial assigned to %q, want %q", steps[0].AssignedUser, pmUser)
	}
	if h.events.count(event.TypeStepAssigned) != 1 {
		t.Error("expected a step.assigned event")
	}
}

func TestEngineCreate_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Create(context.Background(), CreateRequest{ItemName: " "}, salesUser)

	var vErr *domainwf.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(vErr.Fields) != 2 {
		t.Errorf("fields = %v, want quotation_id and item_name", vErr.Fields)
	}
}

func TestEngineAdvance_FullPipelineBelowThreshold(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.advanceToFinal(t)

	if req.SupplyCost != 2000 || req.SupplyLeadTimeDays != 45 {
		t.Errorf("supply totals = %v/%d, want 2000/45", req.SupplyCost, req.SupplyLeadTimeDays)
	}

	final, err := h.engine.GetTimeline(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetTimeline() failed: %v", err)
	}
	if last := final[len(final)-1]; last.StepType != entity.StepTypePMFinal || last.AssignedUser != pmOther {
		t.Errorf("pm_final step = %+v, want assigned to the PM who completed pm_initial", last)
	}

	req, err = h.engine.Advance(ctx, req.ID, domainwf.StagePMFinal, finalPayload(40000), pmOther)
	if err != nil {
		t.Fatalf("Advance(pm_final) failed: %v", err)
	}

	if req.WorkflowStatus != entity.StatusApproved {
		t.Errorf("status = %s, want approved", req.WorkflowStatus)
	}
	if n := len(h.store.approvalsOf(req.ID)); n != 0 {
		t.Errorf("expected no commercial approval, got %d", n)
	}

	timeline, err := h.engine.GetTimeline(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetTimeline() failed: %v", err)
	}
	if len(timeline) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(timeline))
	}
	for i, step := range timeline {
		if step.StepType != domainwf.Stages[i].String() {
			t.Errorf("step %d type = %s, want %s", i, step.StepType, domainwf.Stages[i])
		}
		if step.Status != entity.StepStatusCompleted || step.CompletedAt == nil {
			t.Errorf("step %s not completed: %+v", step.StepType, step)
		}
	}

	var record stageRecord
	if err := json.Unmarshal([]byte(timeline[3].ResponseData), &record); err != nil {
		t.Fatalf("decode pm_final response data: %v", err)
	}
	if record.SuggestedQuote == nil || record.SuggestedQuote.SuggestedPrice != 4000 {
		t.Errorf("suggested quote = %+v, want price 4000", record.SuggestedQuote)
	}

	totals, err := h.engine.GetQuotationTotals(ctx, "quote-1")
	if err != nil {
		t.Fatalf("GetQuotationTotals() failed: %v", err)
	}
	if totals.ApprovedCount != 1 || totals.TotalCustomizationPrice != 40000 || totals.MaxDeliveryImpactDays != 10 {
		t.Errorf("totals = %+v", totals)
	}

	if h.events.count(event.TypeWorkflowApproved) != 1 {
		t.Error("expected one workflow.approved event")
	}
	if h.events.count(event.TypeStageCompleted) != 4 {
		t.Errorf("expected 4 stage.completed events, got %d", h.events.count(event.TypeStageCompleted))
	}
}

func TestEngineAdvance_ThresholdGate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.advanceToFinal(t)

	req, err := h.engine.Advance(ctx, req.ID, domainwf.StagePMFinal, finalPayload(60000), pmOther)
	if err != nil {
		t.Fatalf("Advance(pm_final) failed: %v", err)
	}

	if req.WorkflowStatus != entity.StatusPendingCommercialApproval {
		t.Errorf("status = %s, want %s", req.WorkflowStatus, entity.StatusPendingCommercialApproval)
	}

	approvals := h.store.approvalsOf(req.ID)
	if len(approvals) != 1 {
		t.Fatalf("expected exactly one commercial approval, got %d", len(approvals))
	}
	if approvals[0].Status != entity.ApprovalStatusPending || approvals[0].RequestedPrice != 60000 || approvals[0].Threshold != 50000 {
		t.Errorf("unexpected approval: %+v", approvals[0])
	}
	if h.store.recalcCount != 0 {
		t.Error("quotation totals should not change before the gate resolves")
	}
	if h.metrics.gates != 1 {
		t.Errorf("gates opened = %d, want 1", h.metrics.gates)
	}

	// A second PM-Final submission is stale: the request waits on the gate.
	_, err = h.engine.Advance(ctx, req.ID, domainwf.StagePMFinal, finalPayload(60000), pmOther)
	if !errors.Is(err, domainwf.ErrStaleState) {
		t.Errorf("expected ErrStaleState, got %v", err)
	}
}

func TestEngineAdvance_PriceAtThresholdApproves(t *testing.T) {
	h := newHarness(t)
	req := h.advanceToFinal(t)

	req, err := h.engine.Advance(context.Background(), req.ID, domainwf.StagePMFinal, finalPayload(50000), pmOther)
	if err != nil {
		t.Fatalf("Advance(pm_final) failed: %v", err)
	}
	if req.WorkflowStatus != entity.StatusApproved {
		t.Errorf("status = %s, want approved", req.WorkflowStatus)
	}
}

func gatedRequest(t *testing.T, h *harness) (*entity.CustomizationRequest, *entity.CommercialApproval) {
	t.Helper()
	req := h.advanceToFinal(t)
	req, err := h.engine.Advance(context.Background(), req.ID, domainwf.StagePMFinal, finalPayload(60000), pmOther)
	if err != nil {
		t.Fatalf("Advance(pm_final) failed: %v", err)
	}
	approval, err := h.engine.GetCommercialApproval(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("GetCommercialApproval() failed: %v", err)
	}
	return req, approval
}

func TestEngineResolveCommercialApproval_Approve(t *testing.T) {
	h := newHarness(t)
	req, approval := gatedRequest(t, h)

	resolved, err := h.engine.ResolveCommercialApproval(context.Background(), approval.ID, DecisionApproved, managerUser, "")
	if err != nil {
		t.Fatalf("ResolveCommercialApproval() failed: %v", err)
	}

	if resolved.Status != entity.ApprovalStatusApproved || resolved.ReviewedBy != managerUser || resolved.ReviewedAt == nil {
		t.Errorf("unexpected approval: %+v", resolved)
	}
	if got := h.store.status(req.ID); got != entity.StatusApproved {
		t.Errorf("request status = %s, want approved", got)
	}
	if h.store.recalcCount != 1 {
		t.Errorf("recalc count = %d, want 1", h.store.recalcCount)
	}
	if h.events.count(event.TypeWorkflowApproved) != 1 {
		t.Error("expected workflow.approved event")
	}
}

func TestEngineResolveCommercialApproval_RejectPropagates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req, approval := gatedRequest(t, h)

	_, err := h.engine.ResolveCommercialApproval(ctx, approval.ID, DecisionRejected, adminUser, "price above fleet contract")
	if err != nil {
		t.Fatalf("ResolveCommercialApproval() failed: %v", err)
	}

	got, err := h.engine.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetRequest() failed: %v", err)
	}
	if got.WorkflowStatus != entity.StatusRejected {
		t.Errorf("status = %s, want rejected", got.WorkflowStatus)
	}
	if got.RejectReason != "price above fleet contract" {
		t.Errorf("reject reason = %q", got.RejectReason)
	}
	if evt := h.events.last(event.TypeWorkflowRejected); evt == nil || evt.GetPayloadString(event.KeyStage) != "commercial_approval" {
		t.Errorf("expected workflow.rejected from the gate, got %+v", evt)
	}

	// The gate is closed now.
	_, err = h.engine.ResolveCommercialApproval(ctx, approval.ID, DecisionApproved, managerUser, "")
	if !errors.Is(err, domainwf.ErrTerminalState) {
		t.Errorf("expected ErrTerminalState, got %v", err)
	}
}

func TestEngineResolveCommercialApproval_Errors(t *testing.T) {
	tests := []struct {
		name     string
		decision Decision
		reviewer string
		notes    string
		wantErr  error
	}{
		{"reviewer without commercial role", DecisionApproved, salesUser, "", domainwf.ErrAuthorization},
		{"stage role is not a reviewer", DecisionApproved, pmUser, "", domainwf.ErrAuthorization},
		{"rejection without notes", DecisionRejected, managerUser, "  ", domainwf.ErrValidation},
		{"unknown decision", Decision("maybe"), managerUser, "", domainwf.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req, approval := gatedRequest(t, h)

			_, err := h.engine.ResolveCommercialApproval(context.Background(), approval.ID, tt.decision, tt.reviewer, tt.notes)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if got := h.store.status(req.ID); got != entity.StatusPendingCommercialApproval {
				t.Errorf("request status changed to %s", got)
			}
			if a := h.store.approvalsOf(req.ID)[0]; a.Status != entity.ApprovalStatusPending {
				t.Errorf("approval status changed to %s", a.Status)
			}
		})
	}
}

func TestEngineResolveCommercialApproval_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.ResolveCommercialApproval(context.Background(), "missing", DecisionApproved, managerUser, "")
	if !errors.Is(err, domainwf.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEngineReject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(t)

	req, err := h.engine.Advance(ctx, req.ID, domainwf.StagePMInitial, pmInitialPayload(), pmUser)
	if err != nil {
		t.Fatalf("Advance() failed: %v", err)
	}

	req, err = h.engine.Reject(ctx, req.ID, domainwf.StageSupplyQuote, "part discontinued", buyerUser)
	if err != nil {
		t.Fatalf("Reject() failed: %v", err)
	}
	if req.WorkflowStatus != entity.StatusRejected || req.RejectReason != "part discontinued" {
		t.Errorf("request = %+v", req)
	}

	steps := h.store.stepsOf(req.ID)
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	supply := steps[1]
	if supply.Status != entity.StepStatusRejected || supply.CompletedAt == nil || supply.CompletedBy != buyerUser {
		t.Errorf("supply step = %+v", supply)
	}
}

func TestEngineReject_RequiresReason(t *testing.T) {
	h := newHarness(t)
	req := h.create(t)

	_, err := h.engine.Reject(context.Background(), req.ID, domainwf.StagePMInitial, "", pmUser)

	var vErr *domainwf.ValidationError
	if !errors.As(err, &vErr) || vErr.Fields[0] != "reject_reason" {
		t.Fatalf("expected ValidationError on reject_reason, got %v", err)
	}
	if got := h.store.status(req.ID); got != entity.StatusPendingPMReview {
		t.Errorf("status changed to %s", got)
	}
}

func TestEngine_TerminalImmutability(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(t)

	if _, err := h.engine.Reject(ctx, req.ID, domainwf.StagePMInitial, "out of scope", pmUser); err != nil {
		t.Fatalf("Reject() failed: %v", err)
	}
	before := h.store.stepsOf(req.ID)

	for _, stage := range domainwf.Stages {
		_, err := h.engine.Advance(ctx, req.ID, stage, pmInitialPayload(), adminUser)
		if !errors.Is(err, domainwf.ErrTerminalState) {
			t.Errorf("Advance(%s) on rejected request: expected ErrTerminalState, got %v", stage, err)
		}
		_, err = h.engine.Reject(ctx, req.ID, stage, "again", adminUser)
		if !errors.Is(err, domainwf.ErrTerminalState) {
			t.Errorf("Reject(%s) on rejected request: expected ErrTerminalState, got %v", stage, err)
		}
	}

	after := h.store.stepsOf(req.ID)
	if len(after) != len(before) {
		t.Errorf("step count changed from %d to %d", len(before), len(after))
	}
	if h.metrics.failures["terminal_state"] != 2*len(domainwf.Stages) {
		t.Errorf("terminal failures recorded = %d", h.metrics.failures["terminal_state"])
	}
}

func TestEngineAdvance_RoleGating(t *testing.T) {
	tests := []struct {
		name    string
		actor   string
		wantErr error
	}{
		{"pm may complete pm_initial", pmUser, nil},
		{"administrator may complete any stage", adminUser, nil},
		{"buyer may not complete pm_initial", buyerUser, domainwf.ErrAuthorization},
		{"commercial manager may not complete pm_initial", managerUser, domainwf.ErrAuthorization},
		{"actor without roles", strangerUser, domainwf.ErrAuthorization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req := h.create(t)

			_, err := h.engine.Advance(context.Background(), req.ID, domainwf.StagePMInitial, pmInitialPayload(), tt.actor)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if got := h.store.status(req.ID); got != entity.StatusPendingPMReview {
				t.Errorf("status changed to %s", got)
			}
			if n := len(h.store.stepsOf(req.ID)); n != 1 {
				t.Errorf("step count = %d, want 1", n)
			}
		})
	}
}

func TestEngineAdvance_ValidationNamesFields(t *testing.T) {
	h := newHarness(t)
	req := h.create(t)

	_, err := h.engine.Advance(context.Background(), req.ID, domainwf.StagePMInitial, domainwf.Payload{}, pmUser)

	var vErr *domainwf.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(vErr.Fields) != 2 || vErr.Fields[0] != "pm_scope" || vErr.Fields[1] != "engineering_hours" {
		t.Errorf("fields = %v", vErr.Fields)
	}
	if got := h.store.status(req.ID); got != entity.StatusPendingPMReview {
		t.Errorf("status changed to %s", got)
	}
}

func TestEngineAdvance_StaleStage(t *testing.T) {
	h := newHarness(t)
	req := h.create(t)

	_, err := h.engine.Advance(context.Background(), req.ID, domainwf.StageSupplyQuote, supplyPayload(), buyerUser)

	var staleErr *domainwf.StaleStateError
	if !errors.As(err, &staleErr) {
		t.Fatalf("expected StaleStateError, got %v", err)
	}
	if staleErr.Expected != domainwf.StatePendingSupplyQuote || staleErr.Actual != domainwf.StatePendingPMReview {
		t.Errorf("stale error = %+v", staleErr)
	}
}

func TestEngineAdvance_ConcurrentSubmissions(t *testing.T) {
	h := newHarness(t)
	req := h.create(t)

	const submitters = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		stale     int
	)

	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.Advance(context.Background(), req.ID, domainwf.StagePMInitial, pmInitialPayload(), pmUser)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domainwf.ErrStaleState):
				stale++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || stale != submitters-1 {
		t.Errorf("successes = %d, stale = %d", successes, stale)
	}

	steps := h.store.stepsOf(req.ID)
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].Status != entity.StepStatusCompleted || steps[1].Status != entity.StepStatusPending {
		t.Errorf("steps = %+v", steps)
	}
}

func TestEngineAdvance_LegacyStatus(t *testing.T) {
	h := newHarness(t)
	req := h.create(t)

	h.store.mu.Lock()
	row := h.store.requests[req.ID]
	row.WorkflowStatus = string(entity.LegacyPendingCommercial)
	h.store.requests[req.ID] = row
	h.store.mu.Unlock()

	_, err := h.engine.Advance(context.Background(), req.ID, domainwf.StagePMInitial, pmInitialPayload(), pmUser)
	if got := domainwf.Kind(err); got != "invalid_transition" {
		t.Errorf("Kind() = %q, want invalid_transition (err: %v)", got, err)
	}
}

func TestEngineAdvance_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Advance(context.Background(), "missing", domainwf.StagePMInitial, pmInitialPayload(), pmUser)
	if !errors.Is(err, domainwf.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEngineAdvance_PersistenceFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	req := h.create(t)
	h.store.failStepCreate = errors.New("disk I/O error")

	_, err := h.engine.Advance(context.Background(), req.ID, domainwf.StagePMInitial, pmInitialPayload(), pmUser)

	var pErr *domainwf.PersistenceError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if got := h.store.status(req.ID); got != entity.StatusPendingPMReview {
		t.Errorf("status = %s, want rollback to pending_pm_review", got)
	}
	steps := h.store.stepsOf(req.ID)
	if len(steps) != 1 || steps[0].Status != entity.StepStatusPending {
		t.Errorf("steps after rollback = %+v", steps)
	}
	if h.events.count(event.TypeStageCompleted) != 0 {
		t.Error("no event should be published for a rolled back transition")
	}
}

func TestEngine_AuditMonotonicity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(t)

	resolved := map[string]entity.WorkflowStep{}
	check := func() {
		t.Helper()
		steps := h.store.stepsOf(req.ID)
		for _, st := range steps {
			if prev, ok := resolved[st.ID]; ok {
				if prev.Status != st.Status || prev.CompletedBy != st.CompletedBy || !prev.CompletedAt.Equal(*st.CompletedAt) {
					t.Errorf("resolved step %s changed: %+v -> %+v", st.StepType, prev, st)
				}
			}
			if st.Status != entity.StepStatusPending {
				resolved[st.ID] = st
			}
		}
		if len(steps) < len(resolved) {
			t.Errorf("step count shrank")
		}
	}

	ops := []struct {
		stage   domainwf.Stage
		payload domainwf.Payload
		actor   string
	}{
		{domainwf.StagePMInitial, pmInitialPayload(), pmUser},
		{domainwf.StagePMInitial, pmInitialPayload(), pmUser},
		{domainwf.StageSupplyQuote, supplyPayload(), buyerUser},
		{domainwf.StagePlanningCheck, domainwf.Payload{}, plannerUser},
		{domainwf.StagePlanningCheck, planningPayload(), plannerUser},
		{domainwf.StagePMFinal, finalPayload(1000), pmUser},
	}

	count := 0
	for _, op := range ops {
		_, _ = h.engine.Advance(ctx, req.ID, op.stage, op.payload, op.actor)
		check()
		n := len(h.store.stepsOf(req.ID))
		if n < count {
			t.Fatalf("step count decreased from %d to %d", count, n)
		}
		count = n
	}
	if count != 4 {
		t.Errorf("final step count = %d, want 4", count)
	}
}

func TestEngineSuggestedPrice(t *testing.T) {
	h := newHarness(t)
	req := h.advanceToFinal(t)

	quote, err := h.engine.SuggestedPrice(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("SuggestedPrice() failed: %v", err)
	}
	want := pricing.Quote{
		EngineeringHours: 10,
		SupplyCost:       2000,
		EngineeringCost:  1500,
		TechnicalCost:    3500,
		CostWithMargin:   3850,
		SuggestedPrice:   4000,
	}
	if quote != want {
		t.Errorf("quote = %+v, want %+v", quote, want)
	}
}

func TestEnginePrecheck(t *testing.T) {
	h := newHarness(t)
	req := h.create(t)
	ctx := context.Background()

	if err := h.engine.Precheck(ctx, req.ID, domainwf.StagePMInitial, pmInitialPayload(), pmUser); err != nil {
		t.Errorf("Precheck() failed: %v", err)
	}
	if err := h.engine.Precheck(ctx, req.ID, domainwf.StagePMInitial, pmInitialPayload(), buyerUser); !errors.Is(err, domainwf.ErrAuthorization) {
		t.Errorf("expected ErrAuthorization, got %v", err)
	}
	if got := h.store.status(req.ID); got != entity.StatusPendingPMReview {
		t.Errorf("precheck changed status to %s", got)
	}
}

func TestPolicyValidate(t *testing.T) {
	valid := Policy{Rates: pricing.Rates{EngineeringRate: 150, ContingencyPercent: 10}, CommercialApprovalThreshold: 50000}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	invalid := []Policy{
		{Rates: pricing.Rates{EngineeringRate: -1}, CommercialApprovalThreshold: 1},
		{Rates: pricing.Rates{ContingencyPercent: -5}, CommercialApprovalThreshold: 1},
		{CommercialApprovalThreshold: 0},
	}
	for i, p := range invalid {
		if err := p.Validate(); err == nil {
			t.Errorf("policy %d should be invalid", i)
		}
	}
}

func TestParseDecision(t *testing.T) {
	if d, err := ParseDecision(" Approved "); err != nil || d != DecisionApproved {
		t.Errorf("ParseDecision() = %v, %v", d, err)
	}
	if _, err := ParseDecision("pending"); !errors.Is(err, domainwf.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newMemStore()
	dir := &mockDirectory{roles: map[string]entity.RoleSet{pmUser: entity.NewRoleSet(entity.RolePMEngenharia)}}
	engine := NewEngine(store.repos(), store, dir, dir, Policy{CommercialApprovalThreshold: 1}, WithClock(func() time.Time { return fixed }))

	req, err := engine.Create(context.Background(), CreateRequest{QuotationID: "q", ItemName: "i"}, pmUser)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if !req.CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", req.CreatedAt, fixed)
	}
	if steps := store.stepsOf(req.ID); steps[0].AssignedUser != "" {
		t.Errorf("step should be unassigned when nobody holds the role, got %q", steps[0].AssignedUser)
	}
}
