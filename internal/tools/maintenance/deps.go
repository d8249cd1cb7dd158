package maintenance

import (
	"context"

	"github.com/tabulara/tabulara/internal/capture/projection"
	"github.com/tabulara/tabulara/internal/capture/storage"
)

// captureStore is the backend surface the maintenance commands need: the
// journal read side for replay and verification, the projection write side
// for status rebuilds, and session enumeration.
type captureStore interface {
	projection.EventSource
	projection.Store
	Session(ctx context.Context, sessionID string) (storage.SessionRecord, error)
	Events(ctx context.Context, streamID string) ([]storage.EventRecord, error)
	ListSessionIDs(ctx context.Context) ([]string, error)
}
