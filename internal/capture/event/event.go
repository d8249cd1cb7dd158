// Package event defines the immutable journal envelope and the factory
// that derives events from accepted command outcomes.
package event

import (
	"time"
)

// Envelope is one journal entry. Envelopes are append-only: once stored
// they are never mutated or deleted.
type Envelope struct {
	// EventID is unique and causally ordered across the journal.
	EventID string `json:"event_id"`
	// CausedBy is the command id that produced the event.
	CausedBy string `json:"caused_by"`
	// Type is a dotted lowercase tag derived from the command type.
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}
