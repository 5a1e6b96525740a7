package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/yacht-customization/internal/application/dispatcher"
	"github.com/garyjia/yacht-customization/internal/domain/entity"
	"github.com/garyjia/yacht-customization/internal/domain/event"
	domainwf "github.com/garyjia/yacht-customization/internal/domain/workflow"
)

// memStore is an in-memory stand-in for the SQLite repositories. Transactions
// are serialized and rolled back from a snapshot on error.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	requests  map[string]entity.CustomizationRequest
	steps     map[string]entity.WorkflowStep
	approvals map[string]entity.CommercialApproval
	totals    map[string]entity.QuotationTotals

	failStepCreate error
	recalcCount    int
}

func newMemStore() *memStore {
	return &memStore{
		requests:  map[string]entity.CustomizationRequest{},
		steps:     map[string]entity.WorkflowStep{},
		approvals: map[string]entity.CommercialApproval{},
		totals:    map[string]entity.QuotationTotals{},
	}
}

func (s *memStore) repos() Repositories {
	return Repositories{
		Customizations: &mockCustomizationRepo{s},
		Steps:          &mockStepRepo{s},
		Approvals:      &mockApprovalRepo{s},
		Totals:         &mockTotalsRepo{s},
	}
}

func (s *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.clone()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.requests, s.steps, s.approvals, s.totals = snapshot.requests, snapshot.steps, snapshot.approvals, snapshot.totals
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) clone() *memStore {
	c := newMemStore()
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.steps {
		c.steps[k] = v
	}
	for k, v := range s.approvals {
		c.approvals[k] = v
	}
	for k, v := range s.totals {
		c.totals[k] = v
	}
	return c
}

func (s *memStore) stepsOf(requestID string) []entity.WorkflowStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.WorkflowStep
	for _, st := range s.steps {
		if st.CustomizationID == requestID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func (s *memStore) approvalsOf(requestID string) []entity.CommercialApproval {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.CommercialApproval
	for _, a := range s.approvals {
		if a.CustomizationID == requestID {
			out = append(out, a)
		}
	}
	return out
}

func (s *memStore) status(requestID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[requestID].WorkflowStatus
}

type mockCustomizationRepo struct{ s *memStore }

func (r *mockCustomizationRepo) Create(ctx context.Context, req *entity.CustomizationRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.requests[req.ID] = *req
	return nil
}

func (r *mockCustomizationRepo) GetByID(ctx context.Context, id string) (*entity.CustomizationRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[id]
	if !ok {
		return nil, fmt.Errorf("customization %s: %w", id, domainwf.ErrNotFound)
	}
	return &req, nil
}

func (r *mockCustomizationRepo) SaveStage(ctx context.Context, req *entity.CustomizationRequest, stage domainwf.Stage, expected domainwf.State) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.requests[req.ID]
	if !ok || current.WorkflowStatus != expected.String() {
		return false, nil
	}
	saved := *req
	saved.Version = current.Version + 1
	r.s.requests[req.ID] = saved
	return true, nil
}

func (r *mockCustomizationRepo) TransitionStatus(ctx context.Context, id string, expected, next domainwf.State, rejectReason string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.requests[id]
	if !ok || current.WorkflowStatus != expected.String() {
		return false, nil
	}
	current.WorkflowStatus = next.String()
	if next == domainwf.StateRejected {
		current.RejectReason = rejectReason
	}
	current.Version++
	r.s.requests[id] = current
	return true, nil
}

type mockStepRepo struct{ s *memStore }

func (r *mockStepRepo) Create(ctx context.Context, step *entity.WorkflowStep) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failStepCreate != nil {
		return r.s.failStepCreate
	}
	for _, st := range r.s.steps {
		if st.CustomizationID == step.CustomizationID && st.StepType == step.StepType {
			return errors.New("UNIQUE constraint failed: workflow_steps.customization_id, workflow_steps.step_type")
		}
	}
	r.s.steps[step.ID] = *step
	return nil
}

func (r *mockStepRepo) GetByType(ctx context.Context, customizationID, stepType string) (*entity.WorkflowStep, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, st := range r.s.steps {
		if st.CustomizationID == customizationID && st.StepType == stepType {
			found := st
			return &found, nil
		}
	}
	return nil, fmt.Errorf("step %s/%s: %w", customizationID, stepType, domainwf.ErrNotFound)
}

func (r *mockStepRepo) Resolve(ctx context.Context, step *entity.WorkflowStep) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.steps[step.ID]
	if !ok || current.Status != entity.StepStatusPending {
		return false, nil
	}
	r.s.steps[step.ID] = *step
	return true, nil
}

func (r *mockStepRepo) ListByCustomization(ctx context.Context, customizationID string) ([]*entity.WorkflowStep, error) {
	steps := r.s.stepsOf(customizationID)
	out := make([]*entity.WorkflowStep, len(steps))
	for i := range steps {
		out[i] = &steps[i]
	}
	return out, nil
}

type mockApprovalRepo struct{ s *memStore }

func (r *mockApprovalRepo) Create(ctx context.Context, a *entity.CommercialApproval) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.approvals {
		if existing.CustomizationID == a.CustomizationID {
			return errors.New("UNIQUE constraint failed: commercial_approvals.customization_id")
		}
	}
	r.s.approvals[a.ID] = *a
	return nil
}

func (r *mockApprovalRepo) GetByID(ctx context.Context, id string) (*entity.CommercialApproval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.approvals[id]
	if !ok {
		return nil, fmt.Errorf("commercial approval %s: %w", id, domainwf.ErrNotFound)
	}
	return &a, nil
}

func (r *mockApprovalRepo) GetByCustomizationID(ctx context.Context, customizationID string) (*entity.CommercialApproval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.approvals {
		if a.CustomizationID == customizationID {
			found := a
			return &found, nil
		}
	}
	return nil, fmt.Errorf("commercial approval for %s: %w", customizationID, domainwf.ErrNotFound)
}

func (r *mockApprovalRepo) Resolve(ctx context.Context, id, status, reviewedBy, notes string, reviewedAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.approvals[id]
	if !ok || a.Status != entity.ApprovalStatusPending {
		return false, nil
	}
	a.Status = status
	a.ReviewedBy = reviewedBy
	a.Notes = notes
	a.ReviewedAt = &reviewedAt
	r.s.approvals[id] = a
	return true, nil
}

type mockTotalsRepo struct{ s *memStore }

func (r *mockTotalsRepo) Recalculate(ctx context.Context, quotationID string) (*entity.QuotationTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.recalcCount++
	t := entity.QuotationTotals{QuotationID: quotationID, UpdatedAt: time.Now()}
	for _, req := range r.s.requests {
		if req.QuotationID != quotationID || req.WorkflowStatus != entity.StatusApproved {
			continue
		}
		t.ApprovedCount++
		t.TotalCustomizationPrice += req.FinalPrice
		if req.FinalDeliveryImpactDays > t.MaxDeliveryImpactDays {
			t.MaxDeliveryImpactDays = req.FinalDeliveryImpactDays
		}
	}
	r.s.totals[quotationID] = t
	return &t, nil
}

func (r *mockTotalsRepo) Get(ctx context.Context, quotationID string) (*entity.QuotationTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.totals[quotationID]
	if !ok {
		return nil, fmt.Errorf("totals for %s: %w", quotationID, domainwf.ErrNotFound)
	}
	return &t, nil
}

// mockDirectory serves both port.RoleResolver and port.Directory
type mockDirectory struct {
	users []*entity.User
	roles map[string]entity.RoleSet
}

func (d *mockDirectory) RolesOf(ctx context.Context, actorID string) (entity.RoleSet, error) {
	if set, ok := d.roles[actorID]; ok {
		return set, nil
	}
	return entity.NewRoleSet(), nil
}

func (d *mockDirectory) GetUser(ctx context.Context, id string) (*entity.User, error) {
	for _, u := range d.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", id, domainwf.ErrNotFound)
}

func (d *mockDirectory) FirstUserWithRole(ctx context.Context, role entity.Role) (*entity.User, error) {
	for _, u := range d.users {
		if d.roles[u.ID].Has(role) {
			return u, nil
		}
	}
	return nil, nil
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, name string, handler dispatcher.Handler) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, events ...*event.Event) error {
	m.DispatchAsync(ctx, events...)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, events ...*event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
}

func (m *mockDispatcher) Subscribers(eventType event.Type) []string { return nil }

func (m *mockDispatcher) Close() error { return nil }

func (m *mockDispatcher) count(t event.Type) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (m *mockDispatcher) last(t event.Type) *event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Type == t {
			return m.events[i]
		}
	}
	return nil
}

type mockMetrics struct {
	mu          sync.Mutex
	transitions int
	failures    map[string]int
	gates       int
	resolutions map[string]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{failures: map[string]int{}, resolutions: map[string]int{}}
}

func (m *mockMetrics) TransitionCommitted(trigger domainwf.Trigger, from, to domainwf.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions++
}

func (m *mockMetrics) CommandFailed(operation, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[kind]++
}

func (m *mockMetrics) GateOpened() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gates++
}

func (m *mockMetrics) GateResolved(decision string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolutions[decision]++
}
