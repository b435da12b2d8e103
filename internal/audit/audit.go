// Package audit records every safety-relevant decision the engine makes.
//
// Events are append-only. The engine emits them; long-term custody belongs to
// the configured sink. A slow or failed sink must never delay a user-facing
// turn, so emission goes through an asynchronous dispatcher.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a safety decision point.
type EventType string

const (
	// EventCrisisDetected is recorded when a HIGH assessment parks a session
	// pending consent.
	EventCrisisDetected EventType = "crisis_detected"
	// EventConsentGiven is recorded when the user accepts escalation.
	EventConsentGiven EventType = "consent_given"
	// EventConsentDeclined is recorded when the user declines escalation.
	EventConsentDeclined EventType = "consent_declined"
	// EventConsentUnspecified is recorded when a consent prompt times out or
	// the user answers ambiguously.
	EventConsentUnspecified EventType = "consent_unspecified"
	// EventResourcesDelivered is recorded whenever crisis resources reach the
	// user, full menu or compact reminder.
	EventResourcesDelivered EventType = "resources_delivered"
	// EventHumanNotified is recorded when the hand-off collaborator is signaled.
	EventHumanNotified EventType = "human_notified"
	// EventHumanConnected is recorded when the user explicitly asks to be
	// connected.
	EventHumanConnected EventType = "human_connected"
	// EventSessionEnded is recorded on the terminal transition.
	EventSessionEnded EventType = "session_ended"
)

// Event is one immutable audit record.
type Event struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	EventType EventType       `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Details carries the event-specific payload fields.
type Details struct {
	MatchedPhrases []string `json:"matched_phrases,omitempty"`
	CompositeScore int      `json:"composite_score,omitempty"`
	Region         string   `json:"region,omitempty"`
	Decision       string   `json:"decision,omitempty"`
	MessageCount   int      `json:"message_count,omitempty"`
	Escalations    int      `json:"escalations,omitempty"`
	Reminder       bool     `json:"reminder,omitempty"`
}

// NewEvent builds an event with id and timestamp filled in.
func NewEvent(sessionID string, eventType EventType, details Details) Event {
	payload, _ := json.Marshal(details)
	return Event{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Sink is the collaborator that owns persistence of audit events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is what the engine and coordinator see: non-blocking emission.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}
