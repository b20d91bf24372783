package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventType names one engine event.
type EventType string

const (
	EventAnalyzerInitialized  EventType = "analyzer:initialized"
	EventAnalysisCompleted    EventType = "analysis:completed"
	EventAnalysisFailed       EventType = "analysis:failed"
	EventOptimizationComplete EventType = "optimization:completed"
	EventOptimizationFailed   EventType = "optimization:failed"
	EventAnalyzerShutdown     EventType = "analyzer:shutdown"
)

// Event carries one engine notification. Payload holds the typed value
// documented per event: *Analysis for analysis:completed, the error
// string for analysis:failed, an ImplementedOptimization for
// optimization:completed, and a FailedOptimization for
// optimization:failed.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// EventHandler consumes engine events. Handlers run on the bus worker,
// so they must not block for long.
type EventHandler func(event Event)

type subscription struct {
	id      string
	types   map[EventType]struct{}
	handler EventHandler
}

// EventBus is an in-process typed publish/subscribe surface. Dispatch is
// asynchronous through a buffered queue; a full queue drops the event
// rather than stall the scheduler.
type EventBus struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	queue         chan Event
	done          chan struct{}
	stopOnce      sync.Once
}

// NewEventBus starts the dispatch worker.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	eb := &EventBus{
		subscriptions: make(map[string]*subscription),
		queue:         make(chan Event, bufferSize),
		done:          make(chan struct{}),
	}
	go eb.dispatch()
	return eb
}

// Subscribe registers a handler for the given event types; no types
// means every event. The returned id feeds Unsubscribe.
func (eb *EventBus) Subscribe(handler EventHandler, types ...EventType) string {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	sub := &subscription{
		id:      uuid.New().String(),
		handler: handler,
	}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}
	eb.subscriptions[sub.id] = sub
	return sub.id
}

// Unsubscribe removes a subscription.
func (eb *EventBus) Unsubscribe(id string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	delete(eb.subscriptions, id)
}

// Publish queues an event for delivery.
func (eb *EventBus) Publish(eventType EventType, payload interface{}) {
	event := Event{
		ID:        fmt.Sprintf("evt-%d", time.Now().UnixNano()),
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}
	select {
	case eb.queue <- event:
	case <-eb.done:
	default:
		log.Warn().Str("event_type", string(eventType)).Msg("Event queue full, dropping event")
	}
}

func (eb *EventBus) dispatch() {
	for {
		select {
		case event := <-eb.queue:
			eb.deliver(event)
		case <-eb.done:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case event := <-eb.queue:
					eb.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (eb *EventBus) deliver(event Event) {
	eb.mu.RLock()
	handlers := make([]EventHandler, 0, len(eb.subscriptions))
	for _, sub := range eb.subscriptions {
		if sub.types != nil {
			if _, ok := sub.types[event.Type]; !ok {
				continue
			}
		}
		handlers = append(handlers, sub.handler)
	}
	eb.mu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Str("event_type", string(event.Type)).
						Interface("panic", r).
						Msg("Event handler panicked")
				}
			}()
			handler(event)
		}()
	}
}

// Close stops dispatch after draining queued events.
func (eb *EventBus) Close() {
	eb.stopOnce.Do(func() {
		close(eb.done)
	})
}
