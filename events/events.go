package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"earnings/models"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypePlatformsFrozen     EventType = "platforms_frozen"
	EventTypePlatformsUnfrozen   EventType = "platforms_unfrozen"
	EventTypePeriodClosed        EventType = "period_closed"
	EventTypeRateActivated       EventType = "rate_activated"
	EventTypePayoutConfigUpdated EventType = "payout_config_updated"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// PlatformsFrozenEvent is emitted after a freeze sweep
type PlatformsFrozenEvent struct {
	Period    models.Period
	Rule      string
	Platforms []string
	Models    int
	Locks     int64
	Failures  int
}

func (e PlatformsFrozenEvent) Type() EventType {
	return EventTypePlatformsFrozen
}

// PlatformsUnfrozenEvent is emitted when an admin lifts locks
type PlatformsUnfrozenEvent struct {
	Period    models.Period
	ModelID   *uuid.UUID // nil means every model
	Platforms []string   // empty means every platform
	Removed   int64
	ActorID   uuid.UUID
}

func (e PlatformsUnfrozenEvent) Type() EventType {
	return EventTypePlatformsUnfrozen
}

// PeriodClosedEvent is emitted when a closure run finishes
type PeriodClosedEvent struct {
	Period   models.Period
	Status   models.ClosureState
	Models   int
	Archived int64
	Reset    int64
	Failures int
}

func (e PeriodClosedEvent) Type() EventType {
	return EventTypePeriodClosed
}

// RateActivatedEvent is emitted when a rate supersedes the current one
type RateActivatedEvent struct {
	Rate    models.Rate
	ActorID uuid.UUID
}

func (e RateActivatedEvent) Type() EventType {
	return EventTypeRateActivated
}

// PayoutConfigUpdatedEvent is emitted when a model gets a new config version
type PayoutConfigUpdatedEvent struct {
	ModelID  uuid.UUID
	AdminID  uuid.UUID
	ConfigID int64
}

func (e PayoutConfigUpdatedEvent) Type() EventType {
	return EventTypePayoutConfigUpdated
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit dispatches an event to every registered handler. Handlers run in
// their own goroutines and a panicking handler is logged, not propagated.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until the
// transaction commits
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

// NewTransactionalBus creates a transactional bus flushing into real
func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

// Publish queues an event until Flush
func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush emits pending events; called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) {
	log.WithField("pendingEventCount", len(b.pending)).Debug("Flushing transactional events")

	// Handlers outlive the request that committed the transaction
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		if b.real != nil {
			b.real.Emit(eventCtx, ev)
		}
	}
	b.pending = nil
}

// Discard drops pending events; called after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
