package dispatch

import (
	"context"
	"time"

	"github.com/tabulara/tabulara/internal/capture/command"
	"github.com/tabulara/tabulara/internal/capture/event"
	"github.com/tabulara/tabulara/internal/capture/session"
)

// BeginState classifies the idempotency store's answer for a command id.
type BeginState int

const (
	// BeginNew means no entry existed; an in-progress entry was created.
	BeginNew BeginState = iota
	// BeginReplay means a committed entry with a matching hash exists.
	BeginReplay
	// BeginConflict means the command id was reused with a different
	// payload, or an entry exists that is still in progress or failed.
	BeginConflict
)

// Begin is the idempotency store's decision for one dispatch attempt.
type Begin struct {
	State BeginState
	// Prior holds the stored result when State is BeginReplay.
	Prior *Result
}

// IdempotencyStore deduplicates commands by id. Begin must create the entry
// and classify atomically under concurrent dispatch of the same id.
type IdempotencyStore interface {
	Begin(ctx context.Context, desc command.Descriptor, requestHash string) (Begin, error)
	// Commit transitions the entry to committed and stores the result. It
	// fails with a not-found error when Begin was never called.
	Commit(ctx context.Context, commandID string, result Result) error
	// MarkFailed records the dispatch error on the entry for observability.
	MarkFailed(ctx context.Context, commandID string, dispatchErr error) error
}

// SessionReader reads a session's current lifecycle status.
type SessionReader interface {
	GetStatus(ctx context.Context, sessionID string) (session.Status, error)
}

// ProjectionWriter applies an outcome's effects to the read-side state.
// All writes happen inside the dispatch unit of work.
type ProjectionWriter interface {
	ApplyStateDelta(ctx context.Context, desc command.Descriptor, delta command.StateDelta) error
	ApplyReviewActions(ctx context.Context, desc command.Descriptor, actions []command.ReviewAction) error
	ApplyValidationTrigger(ctx context.Context, desc command.Descriptor, trigger command.ValidationTrigger) error
	UpdateSessionStatus(ctx context.Context, sessionID string, next session.Status) error
}

// EventFactory derives journal events from an accepted outcome.
type EventFactory interface {
	Derive(desc command.Descriptor, outcome command.Outcome) ([]event.Envelope, error)
}

// EventStore appends derived events to the journal.
type EventStore interface {
	Append(ctx context.Context, events []event.Envelope) error
}

// InvariantEngine verifies aggregate consistency before a dispatch commits.
// sessionID is empty for project-scoped commands.
type InvariantEngine interface {
	AssertAll(ctx context.Context, sessionID string) error
}

// TransitionPolicy gates command types per status and status moves per the
// lifecycle edge set.
type TransitionPolicy interface {
	AssertAllowed(cmdType command.Type, status session.Status) error
	AssertTransition(from, to session.Status) error
}

// UnitOfWork runs fn inside an atomic boundary: either every write made by
// fn through the collaborators becomes visible, or none does.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Invocation carries the per-dispatch inputs a handler receives alongside
// the command itself.
type Invocation struct {
	Now   time.Time
	Actor string
}

// Handler computes the business effect of one command kind. Handlers do not
// write state; they return an outcome for the dispatcher to materialize.
type Handler interface {
	CanHandle(cmdType command.Type) bool
	Handle(ctx context.Context, inv Invocation, cmd command.Command) (command.Outcome, error)
}
