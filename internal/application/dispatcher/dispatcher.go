package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garyjia/yacht-customization/internal/domain/event"
)

// Dispatcher routes workflow events to subscribers. Events are only published
// after the transaction that produced them has committed, so handlers never
// see a transition that was rolled back.
type Dispatcher interface {
	// Subscribe registers a named handler for an event type
	Subscribe(eventType event.Type, name string, handler Handler)

	// Dispatch runs every handler of each event in registration order and
	// stops at the first error
	Dispatch(ctx context.Context, events ...*event.Event) error

	// DispatchAsync runs the handlers in background goroutines. Handlers get
	// a context detached from the caller's cancellation.
	DispatchAsync(ctx context.Context, events ...*event.Event)

	// Subscribers returns the handler names registered for an event type
	Subscribers(eventType event.Type) []string

	// Close stops accepting events and waits for running handlers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu             sync.RWMutex
	subs           map[event.Type][]subscription
	logger         Logger
	handlerTimeout time.Duration

	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// WithHandlerTimeout bounds each asynchronous handler run. Zero disables the bound.
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(d *eventDispatcher) {
		d.handlerTimeout = timeout
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		subs:           make(map[event.Type][]subscription),
		handlerTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	d.subs[eventType] = append(d.subs[eventType], subscription{name: name, handler: handler})
	d.mu.Unlock()

	d.info("Handler registered", "event_type", eventType, "handler_name", name)
}

func (d *eventDispatcher) Dispatch(ctx context.Context, events ...*event.Event) error {
	if d.closed.Load() {
		return fmt.Errorf("dispatcher is closed")
	}

	for _, evt := range events {
		for _, sub := range d.handlersFor(evt.Type) {
			if err := d.safeExecute(ctx, evt, sub); err != nil {
				d.error("Handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", sub.name,
					"error", err,
				)
				return fmt.Errorf("handler %s failed on %s: %w", sub.name, evt.Type, err)
			}
		}
	}
	return nil
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, events ...*event.Event) {
	if d.closed.Load() {
		for _, evt := range events {
			d.error("Dropping event, dispatcher is closed", "event_type", evt.Type, "event_id", evt.ID)
		}
		return
	}

	// The HTTP request that produced the events usually ends before the
	// handlers do.
	base := context.WithoutCancel(ctx)

	for _, evt := range events {
		subs := d.handlersFor(evt.Type)
		d.info("Dispatching event",
			"event_type", evt.Type,
			"event_id", evt.ID,
			"request_id", evt.RequestID,
			"handler_count", len(subs),
		)

		for _, sub := range subs {
			d.wg.Add(1)
			go func(evt *event.Event, sub subscription) {
				defer d.wg.Done()

				runCtx := base
				if d.handlerTimeout > 0 {
					var cancel context.CancelFunc
					runCtx, cancel = context.WithTimeout(base, d.handlerTimeout)
					defer cancel()
				}

				if err := d.safeExecute(runCtx, evt, sub); err != nil {
					d.error("Async handler error",
						"event_type", evt.Type,
						"event_id", evt.ID,
						"handler_name", sub.name,
						"error", err,
					)
				}
			}(evt, sub)
		}
	}
}

func (d *eventDispatcher) Subscribers(eventType event.Type) []string {
	subs := d.handlersFor(eventType)
	names := make([]string, len(subs))
	for i, s := range subs {
		names[i] = s.name
	}
	return names
}

func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}

	d.info("Closing dispatcher, waiting for async handlers")
	d.wg.Wait()
	d.info("Dispatcher closed")
	return nil
}

func (d *eventDispatcher) handlersFor(eventType event.Type) []subscription {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]subscription(nil), d.subs[eventType]...)
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, sub subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			d.error("Handler panic recovered",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"handler_name", sub.name,
				"panic", r,
			)
		}
	}()

	return sub.handler(ctx, evt)
}

func (d *eventDispatcher) info(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, kv...)
	}
}

func (d *eventDispatcher) error(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, kv...)
	}
}
