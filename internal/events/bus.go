// Package events provides the in-process event hub that research services
// publish progress to and the websocket stream subscribes from.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	// Memo pipeline stages
	MemoStarted    EventType = "MEMO_STARTED"
	ProfileLoaded  EventType = "PROFILE_LOADED"
	FilingsLoaded  EventType = "FILINGS_LOADED"
	FactsResolved  EventType = "FACTS_RESOLVED"
	RiskAnalyzed   EventType = "RISK_ANALYZED"
	NotesAnnotated EventType = "NOTES_ANNOTATED"
	MemoCompiled   EventType = "MEMO_COMPILED"
	MemoPersisted  EventType = "MEMO_PERSISTED"
	MemoArchived   EventType = "MEMO_ARCHIVED"

	// Screener stages
	ScreenStarted   EventType = "SCREEN_STARTED"
	ScreenEvaluated EventType = "SCREEN_EVALUATED"
	ScreenCompleted EventType = "SCREEN_COMPLETED"

	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type the websocket stream subscribes to.
var AllTypes = []EventType{
	MemoStarted,
	ProfileLoaded,
	FilingsLoaded,
	FactsResolved,
	RiskAnalyzed,
	NotesAnnotated,
	MemoCompiled,
	MemoPersisted,
	MemoArchived,
	ScreenStarted,
	ScreenEvaluated,
	ScreenCompleted,
	ErrorOccurred,
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Handler receives events for the types it subscribed to. Handlers must not
// block: slow consumers buffer on their own channel and drop when full.
type Handler func(*Event)

// Bus handles event emission and subscription
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		log:      log.With().Str("service", "events").Logger(),
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit emits an event to all handlers subscribed to its type.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	eventJSON, _ := json.Marshal(event)
	b.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")

	b.mu.RLock()
	handlers := b.handlers[eventType]
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// EmitError emits an error event
func (b *Bus) EmitError(module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	}
	b.Emit(ErrorOccurred, module, data)
}
