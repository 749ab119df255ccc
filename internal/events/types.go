package events

import (
	"fmt"
	"strings"
	"time"
)

// Event represents a single occurrence in a repair session lifecycle
type Event struct {
	// Time is when the event occurred (set by the bus on emit)
	Time time.Time `json:"time"`

	// Type identifies what happened
	Type EventType `json:"type"`

	// Session is the session identifier (usually the target file path)
	Session string `json:"session,omitempty"`

	// Iteration is the loop iteration this event relates to (nil if not iteration-related)
	Iteration *int `json:"iteration,omitempty"`

	// Payload contains event-specific data (type varies by event)
	Payload any `json:"payload,omitempty"`

	// Error contains error message if this is a failure event
	Error string `json:"error,omitempty"`
}

// EventType is a string constant identifying the event category
type EventType string

// Session lifecycle events
const (
	SessionStarted   EventType = "session.started"
	SessionFixed     EventType = "session.fixed"
	SessionFailed    EventType = "session.failed"
	SessionCycled    EventType = "session.cycled"
	SessionExhausted EventType = "session.exhausted"
)

// Iteration events
const (
	IterStarted      EventType = "iter.started"
	CompileStarted   EventType = "compile.started"
	CompileOK        EventType = "compile.ok"
	CompileFailed    EventType = "compile.failed"
	FixDeterministic EventType = "fix.deterministic"
	FixGenerative    EventType = "fix.generative"
	FixUnavailable   EventType = "fix.unavailable"
	PatchApplied     EventType = "patch.applied"
	PatchRejected    EventType = "patch.rejected"
	SnapshotWritten  EventType = "snapshot.written"
)

// Innovation events
const (
	InnovateStarted  EventType = "innovate.started"
	InnovateAccepted EventType = "innovate.accepted"
	InnovateRejected EventType = "innovate.rejected"
	DocStarted       EventType = "doc.started"
	DocApplied       EventType = "doc.applied"
	DocReverted      EventType = "doc.reverted"
)

// Git collaborator events
const (
	BranchCreated EventType = "branch.created"
	BranchSkipped EventType = "branch.skipped"
)

// NewEvent creates an event with the given type and session
func NewEvent(eventType EventType, session string) Event {
	return Event{
		Type:    eventType,
		Session: session,
	}
}

// WithIteration returns a copy of the event with the iteration number set
func (e Event) WithIteration(iter int) Event {
	e.Iteration = &iter
	return e
}

// WithPayload returns a copy of the event with the payload set
func (e Event) WithPayload(payload any) Event {
	e.Payload = payload
	return e
}

// WithError returns a copy of the event with the error message set
func (e Event) WithError(err error) Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// IsFailure returns true if this is a failure event type
func (e Event) IsFailure() bool {
	return strings.HasSuffix(string(e.Type), ".failed") ||
		strings.HasSuffix(string(e.Type), ".rejected")
}

// String returns a human-readable representation of the event
func (e Event) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Type))

	if e.Session != "" {
		parts = append(parts, e.Session)
	}

	if e.Iteration != nil {
		parts = append(parts, fmt.Sprintf("iter=%d", *e.Iteration))
	}

	return strings.Join(parts, " ")
}
