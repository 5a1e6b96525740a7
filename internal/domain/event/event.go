package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys shared by publishers and subscribers
const (
	KeyStage       = "stage"
	KeyStepID      = "step_id"
	KeyActorID     = "actor_id"
	KeyAssignee    = "assignee_id"
	KeyFromStatus  = "from_status"
	KeyToStatus    = "to_status"
	KeyApprovalID  = "approval_id"
	KeyDecision    = "decision"
	KeyFinalPrice  = "final_price"
	KeyReason      = "reason"
	KeyQuotationID = "quotation_id"
	KeyItemName    = "item_name"
)

// Event is a fact about a committed workflow transition
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	RequestID     string                 `json:"request_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with a generated ID and timestamp.
// The event starts its own correlation chain.
func NewEvent(eventType Type, requestID string, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, requestID, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to an existing correlation chain.
// All events published by one engine call share a correlation ID.
func NewEventWithCorrelation(eventType Type, requestID string, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		RequestID:     requestID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// WithPayload returns a copy of the event with key set
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	return &Event{
		ID:            e.ID,
		Type:          e.Type,
		RequestID:     e.RequestID,
		Payload:       newPayload,
		Timestamp:     e.Timestamp,
		CorrelationID: e.CorrelationID,
	}
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadFloat retrieves a float64 value from the payload
func (e *Event) GetPayloadFloat(key string) float64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		case int:
			return float64(v)
		}
	}
	return 0.0
}
