package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/yacht-customization/internal/application/dispatcher"
	"github.com/garyjia/yacht-customization/internal/application/port"
	"github.com/garyjia/yacht-customization/internal/domain/entity"
	"github.com/garyjia/yacht-customization/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DefaultSLADays applies to stages missing from the configured SLA table
const DefaultSLADays = 2

var stepLabels = map[string]string{
	entity.StepTypePMInitial:     "PM initial review",
	entity.StepTypeSupplyQuote:   "Supply quote",
	entity.StepTypePlanningCheck: "Planning validation",
	entity.StepTypePMFinal:       "PM final approval",
}

// NotificationService tells users about work assigned to them. It runs
// after commit, so a failed delivery never undoes a transition.
type NotificationService interface {
	// NotifyStepAssigned messages the assignee of a new step with its SLA deadline
	NotifyStepAssigned(ctx context.Context, evt *event.Event) error

	// NotifyCommercialReviewers messages the reviewers of a newly opened gate
	NotifyCommercialReviewers(ctx context.Context, evt *event.Event) error

	// Register subscribes the service to the workflow events it handles
	Register(d dispatcher.Dispatcher)
}

type notificationServiceImpl struct {
	directory     port.Directory
	notifier      port.Notifier
	slaDays       map[string]int
	reviewerRoles []entity.Role
	logger        Logger
	now           func() time.Time
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	directory port.Directory,
	notifier port.Notifier,
	slaDays map[string]int,
	reviewerRoles []entity.Role,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		directory:     directory,
		notifier:      notifier,
		slaDays:       slaDays,
		reviewerRoles: reviewerRoles,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.Subscribe(event.TypeStepAssigned, "notify-assignee", s.NotifyStepAssigned)
	d.Subscribe(event.TypeCommercialApprovalCreated, "notify-commercial-reviewers", s.NotifyCommercialReviewers)
}

func (s *notificationServiceImpl) NotifyStepAssigned(ctx context.Context, evt *event.Event) error {
	assignee := evt.GetPayloadString(event.KeyAssignee)
	stepType := evt.GetPayloadString(event.KeyStage)
	if assignee == "" {
		s.logger.Info("Step has no assignee, skipping notification",
			"request_id", evt.RequestID,
			"stage", stepType,
		)
		return nil
	}

	user, err := s.directory.GetUser(ctx, assignee)
	if err != nil {
		return fmt.Errorf("get assignee %s: %w", assignee, err)
	}

	deadline := SLADeadline(s.now(), s.slaDays, stepType)
	message := fmt.Sprintf(
		"Hello %s, a customization was assigned to you.\n\nQuotation: %s\nItem: %s\nStage: %s\nDeadline: %s",
		displayName(user),
		evt.GetPayloadString(event.KeyQuotationID),
		evt.GetPayloadString(event.KeyItemName),
		StepLabel(stepType),
		deadline.Format("2006-01-02"),
	)

	if err := s.notifier.Notify(ctx, user, message); err != nil {
		return fmt.Errorf("notify %s: %w", user.ID, err)
	}

	s.logger.Info("Assignment notification sent",
		"request_id", evt.RequestID,
		"stage", stepType,
		"user_id", user.ID,
		"deadline", deadline.Format(time.RFC3339),
	)
	return nil
}

func (s *notificationServiceImpl) NotifyCommercialReviewers(ctx context.Context, evt *event.Event) error {
	message := fmt.Sprintf(
		"Commercial approval required.\n\nItem: %s\nFinal price: %.2f\nApproval: %s",
		evt.GetPayloadString(event.KeyItemName),
		evt.GetPayloadFloat(event.KeyFinalPrice),
		evt.GetPayloadString(event.KeyApprovalID),
	)

	notified := 0
	for _, role := range s.reviewerRoles {
		user, err := s.directory.FirstUserWithRole(ctx, role)
		if err != nil {
			return fmt.Errorf("find %s: %w", role, err)
		}
		if user == nil {
			continue
		}
		if err := s.notifier.Notify(ctx, user, message); err != nil {
			s.logger.Error("Failed to notify commercial reviewer",
				"request_id", evt.RequestID,
				"user_id", user.ID,
				"error", err,
			)
			continue
		}
		notified++
	}

	s.logger.Info("Commercial reviewers notified",
		"request_id", evt.RequestID,
		"notified", notified,
	)
	return nil
}

// SLADeadline returns the due date of a step created at from
func SLADeadline(from time.Time, slaDays map[string]int, stepType string) time.Time {
	days, ok := slaDays[stepType]
	if !ok || days <= 0 {
		days = DefaultSLADays
	}
	return from.AddDate(0, 0, days)
}

// StepLabel returns the human-readable name of a step type
func StepLabel(stepType string) string {
	if label, ok := stepLabels[stepType]; ok {
		return label
	}
	return stepType
}

func displayName(u *entity.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.ID
}
