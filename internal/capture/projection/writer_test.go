package projection

import (
	"context"
	"fmt"
	"testing"

	"github.com/tabulara/tabulara/internal/capture/command"
	"github.com/tabulara/tabulara/internal/capture/session"
	"github.com/tabulara/tabulara/internal/capture/storage"
	"github.com/tabulara/tabulara/internal/capture/storage/memory"
)

func testWriter() (*Writer, *memory.Store) {
	store := memory.NewStore()
	writer := NewWriter(store)
	seq := 0
	writer.NewID = func() (string, error) {
		seq++
		return fmt.Sprintf("id-%03d", seq), nil
	}
	return writer, store
}

func TestApplyStateDeltaCreatesSession(t *testing.T) {
	writer, store := testWriter()
	ctx := context.Background()

	desc := command.Descriptor{CommandID: "cmd-1", Type: command.TypeSessionCreate}
	delta := command.StateDelta{
		Summary: "session created",
		Data: map[string]any{
			"session_id": "sess-1",
			"project_id": "proj-1",
			"schema_id":  "schema-1",
			"source":     "upload",
		},
	}
	if err := writer.ApplyStateDelta(ctx, desc, delta); err != nil {
		t.Fatalf("ApplyStateDelta failed: %v", err)
	}

	rec, err := store.Session(ctx, "sess-1")
	if err != nil {
		t.Fatalf("session missing: %v", err)
	}
	if rec.Status != session.StatusCreated {
		t.Errorf("status = %s, want created", rec.Status)
	}
	if rec.ProjectID != "proj-1" || rec.SchemaID != "schema-1" || rec.Source != "upload" {
		t.Errorf("session fields = %+v", rec)
	}
}

func TestApplyStateDeltaCorrectionSession(t *testing.T) {
	writer, store := testWriter()
	ctx := context.Background()

	desc := command.Descriptor{CommandID: "cmd-1", Type: command.TypeSessionCreateCorrection}
	delta := command.StateDelta{
		Summary: "correction session created",
		Data: map[string]any{
			"session_id":      "sess-2",
			"project_id":      "proj-1",
			"schema_id":       "schema-1",
			"base_session_id": "sess-1",
		},
	}
	if err := writer.ApplyStateDelta(ctx, desc, delta); err != nil {
		t.Fatalf("ApplyStateDelta failed: %v", err)
	}

	rec, err := store.Session(ctx, "sess-2")
	if err != nil {
		t.Fatalf("session missing: %v", err)
	}
	if rec.BaseSessionID != "sess-1" {
		t.Errorf("base session id = %q, want sess-1", rec.BaseSessionID)
	}
}

func TestApplyStateDeltaMissingSessionID(t *testing.T) {
	writer, _ := testWriter()

	desc := command.Descriptor{CommandID: "cmd-1", Type: command.TypeSessionCreate}
	err := writer.ApplyStateDelta(context.Background(), desc, command.StateDelta{Summary: "broken"})
	if err == nil {
		t.Error("delta without session_id accepted, want error")
	}
}

func TestApplyStateDeltaPin(t *testing.T) {
	writer, store := testWriter()
	ctx := context.Background()

	if err := store.InsertSession(ctx, storage.SessionRecord{SessionID: "sess-1", Status: session.StatusCreated}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	desc := command.Descriptor{CommandID: "cmd-1", Type: command.TypeSessionPin, SessionID: "sess-1"}
	delta := command.StateDelta{Summary: "pinned", Data: map[string]any{"pinned": true}}
	if err := writer.ApplyStateDelta(ctx, desc, delta); err != nil {
		t.Fatalf("ApplyStateDelta failed: %v", err)
	}

	rec, err := store.Session(ctx, "sess-1")
	if err != nil {
		t.Fatalf("session missing: %v", err)
	}
	if !rec.Pinned {
		t.Error("pinned flag not set")
	}
}

func TestApplyStateDeltaLogsDelta(t *testing.T) {
	writer, store := testWriter()
	ctx := context.Background()

	if err := store.InsertSession(ctx, storage.SessionRecord{SessionID: "sess-1", Status: session.StatusReview}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	desc := command.Descriptor{CommandID: "cmd-9", Type: command.TypeFieldAssignValue, SessionID: "sess-1"}
	delta := command.StateDelta{Summary: "field value assigned", Data: map[string]any{"field_value_id": "fv-1"}}
	if err := writer.ApplyStateDelta(ctx, desc, delta); err != nil {
		t.Fatalf("ApplyStateDelta failed: %v", err)
	}

	deltas, err := store.Deltas(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list deltas: %v", err)
	}
	if len(deltas) != 1 {
		t.Fatalf("delta count = %d, want 1", len(deltas))
	}
	if deltas[0].CommandID != "cmd-9" || deltas[0].Summary != "field value assigned" {
		t.Errorf("delta record = %+v", deltas[0])
	}
}

func TestApplyReviewActions(t *testing.T) {
	writer, store := testWriter()
	ctx := context.Background()

	desc := command.Descriptor{CommandID: "cmd-1", Type: command.TypeExtractionRun, SessionID: "sess-1"}
	actions := []command.ReviewAction{
		{Kind: "low_confidence_field", Payload: map[string]any{"field_key": "total"}},
		{Kind: "missing_required_field"},
	}
	if err := writer.ApplyReviewActions(ctx, desc, actions); err != nil {
		t.Fatalf("ApplyReviewActions failed: %v", err)
	}

	tasks, err := store.ReviewTasks(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("task count = %d, want 2", len(tasks))
	}
	if tasks[0].Status != storage.ReviewTaskOpen {
		t.Errorf("task status = %s, want open", tasks[0].Status)
	}
	if tasks[0].TaskID == tasks[1].TaskID {
		t.Error("task ids collide")
	}
}

func TestApplyValidationTrigger(t *testing.T) {
	writer, store := testWriter()
	ctx := context.Background()
	desc := command.Descriptor{CommandID: "cmd-1", Type: command.TypeValidationRun, SessionID: "sess-1"}

	if err := writer.ApplyValidationTrigger(ctx, desc, command.ValidationTriggerNone); err != nil {
		t.Fatalf("none trigger failed: %v", err)
	}
	runs, err := store.ValidationRuns(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("none trigger recorded %d runs", len(runs))
	}

	if err := writer.ApplyValidationTrigger(ctx, desc, command.ValidationTriggerSync); err != nil {
		t.Fatalf("sync trigger failed: %v", err)
	}
	runs, err = store.ValidationRuns(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Trigger != "sync" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestUpdateSessionStatus(t *testing.T) {
	writer, store := testWriter()
	ctx := context.Background()

	if err := store.InsertSession(ctx, storage.SessionRecord{SessionID: "sess-1", Status: session.StatusCreated}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if err := writer.UpdateSessionStatus(ctx, "sess-1", session.StatusProcessing); err != nil {
		t.Fatalf("UpdateSessionStatus failed: %v", err)
	}

	status, err := store.GetStatus(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if status != session.StatusProcessing {
		t.Errorf("status = %s, want processing", status)
	}
}
