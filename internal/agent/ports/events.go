package ports

import "time"

// AgentEvent represents a domain event emitted during execution.
// It mirrors the contract implemented by the domain layer events.
type AgentEvent interface {
	EventType() string
	Timestamp() time.Time
	GetTaskID() string
}

// EventListener consumes agent events (used by CLI/streaming layers).
type EventListener interface {
	OnEvent(event AgentEvent)
}

// EventListenerFunc adapts a plain function to EventListener.
type EventListenerFunc func(event AgentEvent)

func (f EventListenerFunc) OnEvent(event AgentEvent) { f(event) }
