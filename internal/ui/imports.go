package ui

import "github.com/bamsammich/rat/internal/event"

// Event is the engine's per-input event.
type Event = event.Event

// Re-export event types for convenience.
const (
	InputStarted   = event.InputStarted
	InputCompleted = event.InputCompleted
	InputFailed    = event.InputFailed
	InputSkipped   = event.InputSkipped
)
