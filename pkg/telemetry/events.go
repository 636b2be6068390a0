package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the Convoy engine.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// Host is the associated inventory host, if applicable.
	Host string `json:"host,omitempty"`

	// Module is the associated module executable, if applicable.
	Module string `json:"module,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeInvocationStarted   = "invocation.started"
	EventTypeInvocationCompleted = "invocation.completed"
	EventTypeInvocationFailed    = "invocation.failed"
	EventTypeInventoryResolved   = "inventory.resolved"
	EventTypeSourceFailed        = "inventory.source_failed"
	EventTypePolicyDenied        = "policy.denied"
	EventTypeCachePurged         = "cache.purged"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config: cfg,
		buffer: make(chan Event, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	ep.wg.Add(1)
	go ep.processEvents()

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case ep.buffer <- event:
		return nil
	case <-ep.ctx.Done():
		return fmt.Errorf("event publisher stopped")
	default:
		return fmt.Errorf("event buffer full, event dropped")
	}
}

// PublishInvocationCompleted publishes the outcome of a module invocation.
func (ep *EventPublisher) PublishInvocationCompleted(module, host string, changed bool, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeInvocationCompleted,
		Source:  "modexec",
		Host:    host,
		Module:  module,
		Message: fmt.Sprintf("Module %s completed on %s", module, host),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"changed":  changed,
			"duration": duration.Seconds(),
		},
	})
}

// PublishInvocationFailed publishes a failed module invocation.
func (ep *EventPublisher) PublishInvocationFailed(module, host, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeInvocationFailed,
		Source:  "modexec",
		Host:    host,
		Module:  module,
		Message: fmt.Sprintf("Module %s failed on %s: %s", module, host, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishInventoryResolved publishes the outcome of an inventory resolution pass.
func (ep *EventPublisher) PublishInventoryResolved(hosts, groups int) error {
	return ep.Publish(Event{
		Type:    EventTypeInventoryResolved,
		Source:  "inventory",
		Message: fmt.Sprintf("Inventory resolved: %d hosts in %d groups", hosts, groups),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"hosts":  hosts,
			"groups": groups,
		},
	})
}

// PublishSourceFailed publishes a skipped or failed inventory source.
func (ep *EventPublisher) PublishSourceFailed(source, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeSourceFailed,
		Source:  "inventory",
		Message: fmt.Sprintf("Inventory source %s failed: %s", source, reason),
		Level:   EventLevelWarning,
		Data: map[string]interface{}{
			"source": source,
			"reason": reason,
		},
	})
}

// PublishPolicyDenied publishes a denied invocation.
func (ep *EventPublisher) PublishPolicyDenied(module, host, rule string) error {
	return ep.Publish(Event{
		Type:    EventTypePolicyDenied,
		Source:  "policy",
		Host:    host,
		Module:  module,
		Message: fmt.Sprintf("Policy denied module %s on %s: %s", module, host, rule),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"rule": rule,
		},
	})
}

// Subscribe adds a new event subscriber with an optional filter.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents delivers events from the buffer to subscribers.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.ctx.Done():
			// Drain remaining events before shutting down
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByHost creates a filter that only allows events for a specific host.
func FilterByHost(host string) EventFilter {
	return func(event Event) bool {
		return event.Host == host
	}
}
