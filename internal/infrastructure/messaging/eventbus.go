// Package messaging implements the event bus that carries domain events from
// command handlers to their subscribers. The in-memory bus serves a single
// process; the Redis bus fans events out to other instances as well.
package messaging

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

var (
	ErrEventBusClosed = errors.New("event bus is closed")
	ErrHandlerPanic   = errors.New("handler panicked")
	errNilHandler     = errors.New("handler cannot be nil")
	errNilEvent       = errors.New("event cannot be nil")
)

// Recorder receives bus measurements. *metrics.Metrics implements it.
type Recorder interface {
	RecordPublish(eventType shared.EventType)
	RecordHandlerExecution(eventType shared.EventType, d time.Duration, success bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordPublish(shared.EventType)                               {}
func (nopRecorder) RecordHandlerExecution(shared.EventType, time.Duration, bool) {}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus delivers events to handlers registered in this process.
// Handler errors are logged and never reach the publisher, whose state change
// is already persisted.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	byType   map[shared.EventType][]shared.EventHandler
	wildcard []shared.EventHandler
	closed   bool

	async    bool
	slots    chan struct{}
	inflight sync.WaitGroup

	log      *logger.Logger
	recorder Recorder
}

// InMemoryEventBusConfig configures NewInMemoryEventBus. With AsyncMode off
// handlers run on the publisher's goroutine, in subscription order.
type InMemoryEventBusConfig struct {
	AsyncMode      bool
	WorkerPoolSize int
	Logger         *logger.Logger
	Recorder       Recorder
}

// DefaultInMemoryEventBusConfig runs up to ten handlers at once.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 10}
}

// NewInMemoryEventBus creates an open bus with no subscribers.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.Recorder == nil {
		config.Recorder = nopRecorder{}
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}
	return &InMemoryEventBus{
		byType:   make(map[shared.EventType][]shared.EventHandler),
		async:    config.AsyncMode,
		slots:    make(chan struct{}, config.WorkerPoolSize),
		log:      config.Logger.With(logger.Component("event_bus")),
		recorder: config.Recorder,
	}
}

// Subscribe registers handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.subscribe(handler, func() {
		b.byType[eventType] = append(b.byType[eventType], handler)
	})
}

// SubscribeAll registers handler for every event type.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.subscribe(handler, func() {
		b.wildcard = append(b.wildcard, handler)
	})
}

func (b *InMemoryEventBus) subscribe(handler shared.EventHandler, add func()) error {
	if handler == nil {
		return errNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	add()
	return nil
}

// Publish hands event to its type's handlers, then to the wildcard ones.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errNilEvent
	}
	targets, err := b.targets(event.EventType())
	if err != nil {
		return err
	}
	b.recorder.RecordPublish(event.EventType())

	for _, h := range targets {
		if !b.async {
			b.dispatch(event, h)
			continue
		}
		go func(h shared.EventHandler) {
			defer b.inflight.Done()
			b.slots <- struct{}{}
			defer func() { <-b.slots }()
			b.dispatch(event, h)
		}(h)
	}
	return nil
}

// targets snapshots the handlers and, in async mode, reserves their slots in
// the in-flight group before the lock is released so Close waits for them.
func (b *InMemoryEventBus) targets(t shared.EventType) ([]shared.EventHandler, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrEventBusClosed
	}
	out := append(append([]shared.EventHandler(nil), b.byType[t]...), b.wildcard...)
	if b.async {
		b.inflight.Add(len(out))
	}
	return out, nil
}

func (b *InMemoryEventBus) dispatch(event shared.Event, h shared.EventHandler) {
	if err := b.run(event, h); err != nil {
		b.log.Error("event handler failed",
			logger.String("event_type", string(event.EventType())),
			logger.UserID(event.AggregateID()),
			logger.Err(err),
		)
	}
}

func (b *InMemoryEventBus) run(event shared.Event, h shared.EventHandler) (err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
		b.recorder.RecordHandlerExecution(event.EventType(), time.Since(started), err == nil)
	}()
	return h(event)
}

// Close rejects further publishes and waits for running handlers. Calling it
// twice is harmless.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	already := b.closed
	b.closed = true
	b.mu.Unlock()
	if already {
		return nil
	}
	b.inflight.Wait()
	b.log.Info("event bus closed")
	return nil
}
