package command

import (
	"github.com/tabulara/tabulara/internal/capture/session"
)

// ValidationTrigger signals whether a command requires validation work to
// be scheduled after it applies.
type ValidationTrigger string

const (
	// ValidationTriggerNone schedules no validation work.
	ValidationTriggerNone ValidationTrigger = "none"
	// ValidationTriggerAsync schedules a background validation run.
	ValidationTriggerAsync ValidationTrigger = "async"
	// ValidationTriggerSync requires validation before the dispatch returns.
	ValidationTriggerSync ValidationTrigger = "sync"
)

// Valid reports whether the trigger is a known value.
func (v ValidationTrigger) Valid() bool {
	switch v {
	case ValidationTriggerNone, ValidationTriggerAsync, ValidationTriggerSync:
		return true
	}
	return false
}

// StateDelta summarizes the projection change a command produced. Summary is
// a human-readable effect description; Data is the structured payload the
// projection writer consumes.
type StateDelta struct {
	Summary string         `json:"summary"`
	Data    map[string]any `json:"data,omitempty"`
}

// ReviewAction requests a side effect in the human-review subsystem.
type ReviewAction struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Outcome captures the effect a handler computed for an accepted command.
// The dispatcher turns it into projection writes and journal events; the
// handler itself performs no writes.
type Outcome struct {
	Delta         StateDelta
	Transition    *session.Transition
	ReviewActions []ReviewAction
	Validation    ValidationTrigger
}
