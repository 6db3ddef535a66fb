package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/arena/internal/dispatcher"

// ErrUnknownType is returned when no handler is registered for a message type.
var ErrUnknownType = errors.New("unknown message type")

// ErrQueueFull is returned when a buffered handler drops a message.
var ErrQueueFull = errors.New("queue full")

// Event is one inbound message still carrying its encoded payload.
type Event struct {
	Type      string
	Payload   []byte
	Timestamp time.Time
}

// HandlerFunc processes an event.
type HandlerFunc func(Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	logged     bool
}

// Buffered makes the handler async with a queue of the given size. Events
// arriving while the queue is full are dropped with ErrQueueFull.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers by message type.
// Handlers are registered when a match session starts and removed when it ends.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter
	unknown   metric.Int64Counter

	// Track buffers for gauge callback and teardown
	mu      sync.RWMutex
	buffers map[string]chan Event
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}

	m := otel.Meter(instrumentationName)

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for typ, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("type", typ)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"dispatcher.events.failed",
		metric.WithDescription("Total events whose handler returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	d.unknown, err = m.Int64Counter(
		"dispatcher.events.unknown",
		metric.WithDescription("Total events without a registered handler"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating unknown counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given message type, replacing any previous one.
func (d *Dispatcher) Register(msgType string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	d.Unregister(msgType)

	handler := d.withMetrics(msgType, h)

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(msgType, cfg.bufferSize, handler)
	}

	if cfg.logged {
		handler = d.withLogging(msgType, handler)
	}

	d.handlers[msgType] = handler
}

// Unregister removes the handlers for the given types and stops their queues.
func (d *Dispatcher) Unregister(types ...string) {
	for _, t := range types {
		delete(d.handlers, t)

		d.mu.Lock()
		if buf, ok := d.buffers[t]; ok {
			close(buf)
			delete(d.buffers, t)
		}
		d.mu.Unlock()
	}
}

// Reset removes every handler.
func (d *Dispatcher) Reset() {
	types := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	d.Unregister(types...)
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) error {
	h, ok := d.handlers[e.Type]
	if !ok {
		d.unknown.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", e.Type)))
		return fmt.Errorf("%w: %s", ErrUnknownType, e.Type)
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the type.
func (d *Dispatcher) HasHandler(msgType string) bool {
	_, ok := d.handlers[msgType]
	return ok
}

// Types lists the registered message types.
func (d *Dispatcher) Types() []string {
	out := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		out = append(out, t)
	}
	return out
}

func (d *Dispatcher) withMetrics(msgType string, h HandlerFunc) HandlerFunc {
	typeAttr := metric.WithAttributes(attribute.String("type", msgType))
	return func(e Event) error {
		err := h(e)
		if err != nil {
			d.failed.Add(context.Background(), 1, typeAttr)
			return err
		}
		d.processed.Add(context.Background(), 1, typeAttr)
		return nil
	}
}

// withBuffer queues events for h on its own goroutine. A full queue drops the
// event so the caller never waits.
func (d *Dispatcher) withBuffer(msgType string, size int, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[msgType] = buffer
	d.mu.Unlock()

	typeAttr := attribute.String("type", msgType)

	go func() {
		for e := range buffer {
			if err := h(e); err != nil {
				d.logger.Error("buffered event failed", "type", msgType, "error", err)
			}
		}
	}()

	return func(e Event) error {
		select {
		case buffer <- e:
			return nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(typeAttr))
			return fmt.Errorf("%w: %s", ErrQueueFull, msgType)
		}
	}
}

func (d *Dispatcher) withLogging(msgType string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "type", msgType, "bytes", len(e.Payload))

		err := h(e)

		if err != nil {
			d.logger.Error("event failed", "type", msgType, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "type", msgType, "duration", time.Since(start))
		}

		return err
	}
}
