// Package invariant verifies aggregate consistency before a dispatch is
// considered final.
package invariant

import (
	"context"
	"errors"
	"fmt"

	"github.com/tabulara/tabulara/internal/capture/encoding"
	"github.com/tabulara/tabulara/internal/capture/storage"
	apperrors "github.com/tabulara/tabulara/internal/platform/errors"
)

// View is the read surface the engine needs from a backend.
type View interface {
	Session(ctx context.Context, sessionID string) (storage.SessionRecord, error)
	Events(ctx context.Context, streamID string) ([]storage.EventRecord, error)
}

// Engine checks the affected aggregate after a dispatch's writes. It runs
// inside the unit of work, so a violation discards the whole dispatch.
type Engine struct {
	View View
}

// NewEngine creates an engine over the backend view.
func NewEngine(view View) *Engine {
	return &Engine{View: view}
}

// AssertAll verifies the session projection and its journal stream. With an
// empty session id only the global stream is checked.
func (e *Engine) AssertAll(ctx context.Context, sessionID string) error {
	stream := sessionID
	if stream == "" {
		stream = storage.GlobalStream
	}

	if sessionID != "" {
		rec, err := e.View.Session(ctx, sessionID)
		if errors.Is(err, storage.ErrNotFound) {
			return violation(sessionID, "session projection is missing")
		}
		if err != nil {
			return err
		}
		if !rec.Status.Valid() {
			return violation(sessionID, fmt.Sprintf("session status %q is not a known status", rec.Status))
		}
		events, err := e.View.Events(ctx, stream)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return violation(sessionID, "session has no journal events")
		}
		return verifyStream(sessionID, events)
	}

	events, err := e.View.Events(ctx, stream)
	if err != nil {
		return err
	}
	return verifyStream(sessionID, events)
}

// verifyStream checks dense sequence numbering and the integrity chain.
func verifyStream(sessionID string, events []storage.EventRecord) error {
	prevHash := ""
	for i, record := range events {
		if record.Seq != int64(i)+1 {
			return violation(sessionID, fmt.Sprintf("stream sequence gap: position %d holds seq %d", i+1, record.Seq))
		}
		if record.PrevHash != prevHash {
			return violation(sessionID, fmt.Sprintf("event %s chain break: prev hash mismatch at seq %d", record.EventID, record.Seq))
		}
		hash, err := encoding.ContentHash(map[string]any{
			"prev":  record.PrevHash,
			"event": record.Envelope,
		})
		if err != nil {
			return fmt.Errorf("hash event %s: %w", record.EventID, err)
		}
		if hash != record.Hash {
			return violation(sessionID, fmt.Sprintf("event %s hash mismatch at seq %d", record.EventID, record.Seq))
		}
		prevHash = record.Hash
	}
	return nil
}

func violation(sessionID, message string) error {
	metadata := map[string]string{}
	if sessionID != "" {
		metadata["SessionID"] = sessionID
	}
	return apperrors.WithMetadata(apperrors.CodeInvariantViolation, message, metadata)
}
