// Package projection applies command outcomes to the read-side session
// state and its review and validation side tables.
package projection

import (
	"context"
	"fmt"

	"github.com/tabulara/tabulara/internal/capture/command"
	"github.com/tabulara/tabulara/internal/capture/session"
	"github.com/tabulara/tabulara/internal/capture/storage"
	"github.com/tabulara/tabulara/internal/platform/id"
)

// Store is the write surface the projection needs from a backend.
type Store interface {
	InsertSession(ctx context.Context, rec storage.SessionRecord) error
	SetSessionPinned(ctx context.Context, sessionID string, pinned bool) error
	SetSessionStatus(ctx context.Context, sessionID string, next session.Status) error
	InsertReviewTask(ctx context.Context, rec storage.ReviewTaskRecord) error
	InsertValidationRun(ctx context.Context, rec storage.ValidationRunRecord) error
	InsertDelta(ctx context.Context, rec storage.DeltaRecord) error
}

// Writer materializes outcomes into the projection. Session-creating and
// pin deltas get structural interpretation; every delta is also logged to
// the delta journal for audit.
type Writer struct {
	Store Store
	// NewID mints ids for review tasks and validation runs; defaults to
	// id.NewID.
	NewID func() (string, error)
}

// NewWriter creates a writer over the backend store.
func NewWriter(store Store) *Writer {
	return &Writer{Store: store, NewID: id.NewID}
}

// ApplyStateDelta applies one outcome's delta. Deltas from session-creating
// commands must carry the new session id in their data.
func (w *Writer) ApplyStateDelta(ctx context.Context, desc command.Descriptor, delta command.StateDelta) error {
	switch desc.Type {
	case command.TypeSessionCreate, command.TypeSessionCreateCorrection:
		rec := storage.SessionRecord{
			SessionID:     stringField(delta.Data, "session_id"),
			ProjectID:     stringField(delta.Data, "project_id"),
			SchemaID:      stringField(delta.Data, "schema_id"),
			Source:        stringField(delta.Data, "source"),
			BaseSessionID: stringField(delta.Data, "base_session_id"),
			Status:        session.StatusCreated,
		}
		if rec.SessionID == "" {
			return fmt.Errorf("%s delta is missing session_id", desc.Type)
		}
		if err := w.Store.InsertSession(ctx, rec); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

	case command.TypeSessionPin:
		pinned, _ := delta.Data["pinned"].(bool)
		if err := w.Store.SetSessionPinned(ctx, desc.SessionID, pinned); err != nil {
			return fmt.Errorf("set pinned: %w", err)
		}
	}

	return w.Store.InsertDelta(ctx, storage.DeltaRecord{
		CommandID: desc.CommandID,
		SessionID: desc.SessionID,
		Summary:   delta.Summary,
		Data:      delta.Data,
	})
}

// ApplyReviewActions records one open review task per requested action.
func (w *Writer) ApplyReviewActions(ctx context.Context, desc command.Descriptor, actions []command.ReviewAction) error {
	for _, action := range actions {
		taskID, err := w.newID()
		if err != nil {
			return fmt.Errorf("mint task id: %w", err)
		}
		err = w.Store.InsertReviewTask(ctx, storage.ReviewTaskRecord{
			TaskID:    taskID,
			SessionID: desc.SessionID,
			Kind:      action.Kind,
			Payload:   action.Payload,
			Status:    storage.ReviewTaskOpen,
		})
		if err != nil {
			return fmt.Errorf("insert review task: %w", err)
		}
	}
	return nil
}

// ApplyValidationTrigger registers requested validation work. A none
// trigger records nothing.
func (w *Writer) ApplyValidationTrigger(ctx context.Context, desc command.Descriptor, trigger command.ValidationTrigger) error {
	if trigger == "" || trigger == command.ValidationTriggerNone {
		return nil
	}
	runID, err := w.newID()
	if err != nil {
		return fmt.Errorf("mint run id: %w", err)
	}
	err = w.Store.InsertValidationRun(ctx, storage.ValidationRunRecord{
		RunID:     runID,
		SessionID: desc.SessionID,
		Trigger:   string(trigger),
	})
	if err != nil {
		return fmt.Errorf("insert validation run: %w", err)
	}
	return nil
}

// UpdateSessionStatus moves the session projection to the next status.
func (w *Writer) UpdateSessionStatus(ctx context.Context, sessionID string, next session.Status) error {
	if err := w.Store.SetSessionStatus(ctx, sessionID, next); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

func (w *Writer) newID() (string, error) {
	if w.NewID == nil {
		return id.NewID()
	}
	return w.NewID()
}

func stringField(data map[string]any, key string) string {
	value, _ := data[key].(string)
	return value
}
