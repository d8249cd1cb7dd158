// Package storage defines the records and low-level store contracts shared
// by the memory and sqlite backends.
package storage

import (
	"errors"
	"time"

	"github.com/tabulara/tabulara/internal/capture/event"
	"github.com/tabulara/tabulara/internal/capture/session"
)

// GlobalStream is the journal stream for project-scoped commands that have
// no owning session.
const GlobalStream = "global"

// ErrNotFound indicates a missing record.
var ErrNotFound = errors.New("record not found")

// SessionRecord is the projected state of one capture session.
type SessionRecord struct {
	SessionID     string
	ProjectID     string
	SchemaID      string
	Source        string
	BaseSessionID string
	Status        session.Status
	Pinned        bool
	// Version counts committed mutations and backs the optimistic
	// concurrency check in durable backends.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EventRecord is one journal entry as stored: the envelope plus its stream
// position and integrity chain.
type EventRecord struct {
	event.Envelope
	// StreamID is the owning session id, or GlobalStream.
	StreamID string
	// Seq is dense per stream, starting at 1.
	Seq int64
	// PrevHash chains the record to its predecessor; empty for the first
	// entry of a stream.
	PrevHash string
	Hash     string
}

// IdempotencyStatus tracks the lifecycle of an idempotency entry.
type IdempotencyStatus string

const (
	// IdempotencyInProgress marks a dispatch that has begun but not finished.
	IdempotencyInProgress IdempotencyStatus = "in_progress"
	// IdempotencyCommitted marks a dispatch that completed and stored its result.
	IdempotencyCommitted IdempotencyStatus = "committed"
	// IdempotencyFailed marks a dispatch that failed after beginning.
	IdempotencyFailed IdempotencyStatus = "failed"
)

// IdempotencyRecord is the stored deduplication entry for one command id.
type IdempotencyRecord struct {
	CommandID   string
	RequestHash string
	Status      IdempotencyStatus
	// ResultJSON holds the committed dispatch result, canonical JSON.
	ResultJSON []byte
	// Error holds the dispatch error message for failed entries.
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReviewTaskStatus tracks a review task's lifecycle.
type ReviewTaskStatus string

const (
	// ReviewTaskOpen marks a task awaiting review.
	ReviewTaskOpen ReviewTaskStatus = "open"
)

// ReviewTaskRecord is one requested human-review side effect.
type ReviewTaskRecord struct {
	TaskID    string
	SessionID string
	Kind      string
	Payload   map[string]any
	Status    ReviewTaskStatus
	CreatedAt time.Time
}

// ValidationRunRecord registers requested validation work.
type ValidationRunRecord struct {
	RunID     string
	SessionID string
	// Trigger is async or sync; none is never recorded.
	Trigger     string
	RequestedAt time.Time
}

// DeltaRecord logs the state delta a command applied, for audit and replay
// diagnostics.
type DeltaRecord struct {
	CommandID  string
	SessionID  string
	Summary    string
	Data       map[string]any
	RecordedAt time.Time
}
