package dispatch

import (
	"github.com/tabulara/tabulara/internal/capture/session"
)

// Result is the caller-visible outcome of a dispatch.
type Result struct {
	CommandID string   `json:"command_id"`
	EventIDs  []string `json:"event_ids"`
	// SessionStatus is the session's status after the dispatch, empty when
	// the command had no session scope.
	SessionStatus session.Status `json:"session_status,omitempty"`
	// IdempotentReplay reports that a previously committed result was
	// returned without re-executing the command.
	IdempotentReplay bool `json:"idempotent_replay"`
}
