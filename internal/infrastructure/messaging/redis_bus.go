package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
	"github.com/wakeup-hub/wakeup-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// DefaultChannel is the Pub/Sub channel shared by all instances.
const DefaultChannel = "wakeup:events"

// PubSub is the transport the Redis bus needs. NewGoRedisPubSub adapts a
// go-redis client; tests use an in-process fake.
type PubSub interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan Message, func() error, error)
}

// Message is one received Pub/Sub payload.
type Message struct {
	Payload []byte
	Err     error
}

// RedisEventBus publishes every event to Redis and delivers events from
// other instances to local handlers. Events published here are also
// delivered locally exactly once.
type RedisEventBus struct {
	pubsub     PubSub
	localBus   *InMemoryEventBus
	channel    string
	instanceID string
	log        *logger.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	unsub   func() error
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	timeout time.Duration
}

// RedisEventBusConfig contains configuration for RedisEventBus.
type RedisEventBusConfig struct {
	PubSub     PubSub
	Channel    string
	InstanceID string
	Local      InMemoryEventBusConfig
	Logger     *logger.Logger

	// PublishTimeout bounds the Redis PUBLISH call.
	PublishTimeout time.Duration
}

// NewRedisEventBus subscribes to the channel and starts the listener.
func NewRedisEventBus(config RedisEventBusConfig) (*RedisEventBus, error) {
	if config.PubSub == nil {
		return nil, errors.New("pubsub transport is required")
	}
	if config.Channel == "" {
		config.Channel = DefaultChannel
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.Local.Logger == nil {
		config.Local.Logger = config.Logger
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := &RedisEventBus{
		pubsub:     config.PubSub,
		localBus:   NewInMemoryEventBus(config.Local),
		channel:    config.Channel,
		instanceID: config.InstanceID,
		log:        config.Logger.With(logger.Component("redis_event_bus")),
		ctx:        ctx,
		cancel:     cancel,
		timeout:    config.PublishTimeout,
	}

	messages, unsub, err := bus.pubsub.Subscribe(ctx, bus.channel)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", bus.channel, err)
	}
	bus.unsub = unsub

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		bus.subscriptionLoop(messages)
	}()

	return bus, nil
}

// Subscribe registers a handler for a specific event type.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.localBus.Subscribe(eventType, handler)
}

// SubscribeAll registers a handler for all events.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.localBus.SubscribeAll(handler)
}

// Publish sends the event to Redis and to local handlers. A Redis failure
// is logged; local delivery still happens.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrEventBusClosed
	}

	data, err := json.Marshal(eventEnvelope{
		InstanceID:  b.instanceID,
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()
	if err := b.pubsub.Publish(ctx, b.channel, data); err != nil {
		b.log.Error("failed to publish to redis",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}

	return b.localBus.Publish(event)
}

func (b *RedisEventBus) subscriptionLoop(messages <-chan Message) {
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if msg.Err != nil {
				b.log.Error("redis subscription error", logger.Err(msg.Err))
				continue
			}
			b.handleRemote(msg.Payload)
		}
	}
}

func (b *RedisEventBus) handleRemote(payload []byte) {
	var envelope eventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.log.Error("failed to unmarshal event", logger.Err(err))
		return
	}

	// already delivered locally by Publish
	if envelope.InstanceID == b.instanceID {
		return
	}

	event := &remoteEvent{
		eventType:   envelope.EventType,
		aggregateID: envelope.AggregateID,
		occurredAt:  envelope.OccurredAt,
		payload:     envelope.Payload,
	}
	if err := b.localBus.Publish(event); err != nil {
		b.log.Error("failed to process remote event", logger.Err(err))
	}
}

// Close unsubscribes, stops the listener and drains local handlers.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	if b.unsub != nil {
		if err := b.unsub(); err != nil {
			b.log.Warn("unsubscribe failed", logger.Err(err))
		}
	}
	b.wg.Wait()

	return b.localBus.Close()
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

type eventEnvelope struct {
	InstanceID  string                 `json:"instance_id"`
	EventType   shared.EventType       `json:"event_type"`
	AggregateID string                 `json:"aggregate_id"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Payload     map[string]interface{} `json:"payload"`
}

// remoteEvent is an event received from another instance. Only the generic
// Event view survives the trip.
type remoteEvent struct {
	eventType   shared.EventType
	aggregateID string
	occurredAt  time.Time
	payload     map[string]interface{}
}

func (e *remoteEvent) EventType() shared.EventType     { return e.eventType }
func (e *remoteEvent) AggregateID() string             { return e.aggregateID }
func (e *remoteEvent) OccurredAt() time.Time           { return e.occurredAt }
func (e *remoteEvent) Payload() map[string]interface{} { return e.payload }

// ══════════════════════════════════════════════════════════════════════════════
// GO-REDIS TRANSPORT
// ══════════════════════════════════════════════════════════════════════════════

type goRedisPubSub struct {
	client redis.UniversalClient
}

// NewGoRedisPubSub adapts a go-redis client to PubSub.
func NewGoRedisPubSub(client redis.UniversalClient) PubSub {
	return &goRedisPubSub{client: client}
}

func (p *goRedisPubSub) Publish(ctx context.Context, channel string, message []byte) error {
	return p.client.Publish(ctx, channel, message).Err()
}

func (p *goRedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan Message, func() error, error) {
	sub := p.client.Subscribe(ctx, channel)
	// wait for the subscription confirmation so early publishes are not lost
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- Message{Payload: []byte(msg.Payload)}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, sub.Close, nil
}
