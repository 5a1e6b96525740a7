package dispatcher

import (
	"context"

	"github.com/garyjia/yacht-customization/internal/domain/event"
)

// Handler reacts to a committed workflow event
type Handler func(ctx context.Context, evt *event.Event) error

// subscription is one named handler registered for an event type
type subscription struct {
	name    string
	handler Handler
}
