package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/yacht-customization/internal/application/dispatcher"
	"github.com/garyjia/yacht-customization/internal/domain/entity"
	"github.com/garyjia/yacht-customization/internal/domain/event"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockDirectory struct {
	users  map[string]*entity.User
	byRole map[entity.Role]*entity.User
}

func (m *mockDirectory) GetUser(ctx context.Context, id string) (*entity.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

func (m *mockDirectory) FirstUserWithRole(ctx context.Context, role entity.Role) (*entity.User, error) {
	return m.byRole[role], nil
}

type sentMessage struct {
	userID  string
	message string
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *mockNotifier) Notify(ctx context.Context, user *entity.User, message string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{userID: user.ID, message: message})
	return nil
}

func newTestService(notifier *mockNotifier) *notificationServiceImpl {
	buyer := &entity.User{ID: "buyer-1", FullName: "Ana Souza", LarkOpenID: "ou_buyer"}
	manager := &entity.User{ID: "manager-1", FullName: "Marcos Lima"}
	dir := &mockDirectory{
		users:  map[string]*entity.User{buyer.ID: buyer, manager.ID: manager},
		byRole: map[entity.Role]*entity.User{entity.RoleGerenteComercial: manager},
	}

	svc := NewNotificationService(dir, notifier,
		map[string]int{entity.StepTypeSupplyQuote: 5},
		[]entity.Role{entity.RoleGerenteComercial, entity.RoleDiretorComercial},
		&mockLogger{},
	).(*notificationServiceImpl)
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestSLADeadline(t *testing.T) {
	from := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sla := map[string]int{"pm_initial": 2, "supply_quote": 5, "planning_check": 2, "pm_final": 1}

	tests := []struct {
		stepType string
		want     time.Time
	}{
		{"supply_quote", from.AddDate(0, 0, 5)},
		{"pm_final", from.AddDate(0, 0, 1)},
		{"unknown", from.AddDate(0, 0, DefaultSLADays)},
	}

	for _, tt := range tests {
		t.Run(tt.stepType, func(t *testing.T) {
			if got := SLADeadline(from, sla, tt.stepType); !got.Equal(tt.want) {
				t.Errorf("SLADeadline() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNotificationService_NotifyStepAssigned(t *testing.T) {
	notifier := &mockNotifier{}
	svc := newTestService(notifier)

	evt := event.NewEvent(event.TypeStepAssigned, "req-1", map[string]interface{}{
		event.KeyStage:       entity.StepTypeSupplyQuote,
		event.KeyAssignee:    "buyer-1",
		event.KeyItemName:    "Teak cockpit table",
		event.KeyQuotationID: "Q-2026-001",
	})

	if err := svc.NotifyStepAssigned(context.Background(), evt); err != nil {
		t.Fatalf("NotifyStepAssigned() failed: %v", err)
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(notifier.sent))
	}
	msg := notifier.sent[0]
	if msg.userID != "buyer-1" {
		t.Errorf("message sent to %s", msg.userID)
	}
	for _, want := range []string{"Ana Souza", "Supply quote", "Teak cockpit table", "Q-2026-001", "2026-03-07"} {
		if !strings.Contains(msg.message, want) {
			t.Errorf("message %q missing %q", msg.message, want)
		}
	}
}

func TestNotificationService_NotifyStepAssigned_Unassigned(t *testing.T) {
	notifier := &mockNotifier{}
	svc := newTestService(notifier)

	evt := event.NewEvent(event.TypeStepAssigned, "req-1", map[string]interface{}{event.KeyStage: entity.StepTypePMInitial})
	if err := svc.NotifyStepAssigned(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Error("no message expected for an unassigned step")
	}
}

func TestNotificationService_NotifyStepAssigned_DeliveryFailure(t *testing.T) {
	notifier := &mockNotifier{err: errors.New("lark: 99991663 token invalid")}
	svc := newTestService(notifier)

	evt := event.NewEvent(event.TypeStepAssigned, "req-1", map[string]interface{}{
		event.KeyStage:    entity.StepTypeSupplyQuote,
		event.KeyAssignee: "buyer-1",
	})
	if err := svc.NotifyStepAssigned(context.Background(), evt); err == nil {
		t.Error("expected delivery error to be returned to the dispatcher")
	}
}

func TestNotificationService_NotifyCommercialReviewers(t *testing.T) {
	notifier := &mockNotifier{}
	svc := newTestService(notifier)

	evt := event.NewEvent(event.TypeCommercialApprovalCreated, "req-1", map[string]interface{}{
		event.KeyApprovalID: "appr-1",
		event.KeyFinalPrice: 60000.0,
		event.KeyItemName:   "Hardtop",
	})
	if err := svc.NotifyCommercialReviewers(context.Background(), evt); err != nil {
		t.Fatalf("NotifyCommercialReviewers() failed: %v", err)
	}

	// diretor_comercial has no holder, only the manager is notified
	if len(notifier.sent) != 1 || notifier.sent[0].userID != "manager-1" {
		t.Fatalf("sent = %+v", notifier.sent)
	}
	if !strings.Contains(notifier.sent[0].message, "60000.00") {
		t.Errorf("message %q should carry the price", notifier.sent[0].message)
	}
}

func TestNotificationService_Register(t *testing.T) {
	d := dispatcher.NewDispatcher()
	svc := newTestService(&mockNotifier{})
	svc.Register(d)

	if names := d.Subscribers(event.TypeStepAssigned); len(names) != 1 || names[0] != "notify-assignee" {
		t.Errorf("step.assigned subscribers = %v", names)
	}
	if names := d.Subscribers(event.TypeCommercialApprovalCreated); len(names) != 1 {
		t.Errorf("commercial_approval.created subscribers = %v", names)
	}
}

func TestStepLabel(t *testing.T) {
	if got := StepLabel(entity.StepTypePMFinal); got != "PM final approval" {
		t.Errorf("StepLabel() = %q", got)
	}
	if got := StepLabel("custom"); got != "custom" {
		t.Errorf("StepLabel() = %q", got)
	}
}
