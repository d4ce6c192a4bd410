// internal/handler/event_bus.go
package handler

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"print-agent/internal/session"
)

// Event types published by the printer session.
const (
	EventStateChanged   = "state_changed"
	EventPrintCompleted = "print_completed"
	EventPrintDocument  = "print_document"
	EventDeviceLost     = "device_lost"
)

// EventBus manages event distribution
type EventBus struct {
	subscribers map[string][]chan Event
	events      chan Event
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// Event represents a printer-session event
type Event struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan Event),
		events:      make(chan Event, 1000),
		logger:      logger,
	}
}

// Start starts the event bus
func (eb *EventBus) Start() {
	for event := range eb.events {
		eb.distributeEvent(event)
	}
}

// Publish publishes an event
func (eb *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case eb.events <- event:
	default:
		if eb.logger != nil {
			eb.logger.Warn("Event bus full, dropping event",
				zap.String("event_type", event.Type),
			)
		}
	}
}

// Subscribe subscribes to events of a specific type
func (eb *EventBus) Subscribe(eventType string) <-chan Event {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan Event, 100)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
	return subscriber
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event Event) {
	eb.mutex.RLock()
	subscribers := eb.subscribers[event.Type]
	eb.mutex.RUnlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}

// SessionEventBridge forwards printer-session state transitions onto the bus
// so the WebSocket layer can stream them to the POS UI.
type SessionEventBridge struct {
	bus    *EventBus
	logger *zap.Logger
}

// NewSessionEventBridge creates a bridge for session state events
func NewSessionEventBridge(bus *EventBus, logger *zap.Logger) *SessionEventBridge {
	return &SessionEventBridge{
		bus:    bus,
		logger: logger,
	}
}

// OnStateChanged publishes a state snapshot
func (b *SessionEventBridge) OnStateChanged(state session.State) {
	b.bus.Publish(Event{
		Type: EventStateChanged,
		Data: map[string]interface{}{
			"is_connected":  state.IsConnected,
			"is_connecting": state.IsConnecting,
			"is_printing":   state.IsPrinting,
			"last_error":    state.LastError,
		},
	})
}

// OnPrintCompleted publishes a print outcome
func (b *SessionEventBridge) OnPrintCompleted(saleNo string, result *session.PrintResult) {
	b.bus.Publish(Event{
		Type: EventPrintCompleted,
		Data: map[string]interface{}{
			"sale_no": saleNo,
			"mode":    string(result.Mode),
			"warning": result.Warning,
		},
	})

	b.logger.Info("Print completed event published",
		zap.String("sale_no", saleNo),
		zap.String("mode", string(result.Mode)),
	)
}

// OnDeviceLost publishes a device loss notification
func (b *SessionEventBridge) OnDeviceLost(reason string) {
	b.bus.Publish(Event{
		Type: EventDeviceLost,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})

	b.logger.Warn("Device lost event published", zap.String("reason", reason))
}
