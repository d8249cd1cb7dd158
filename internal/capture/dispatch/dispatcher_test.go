package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tabulara/tabulara/internal/capture/command"
	"github.com/tabulara/tabulara/internal/capture/dispatch"
	"github.com/tabulara/tabulara/internal/capture/event"
	"github.com/tabulara/tabulara/internal/capture/invariant"
	"github.com/tabulara/tabulara/internal/capture/policy"
	"github.com/tabulara/tabulara/internal/capture/projection"
	"github.com/tabulara/tabulara/internal/capture/session"
	"github.com/tabulara/tabulara/internal/capture/storage"
	"github.com/tabulara/tabulara/internal/capture/storage/memory"
	apperrors "github.com/tabulara/tabulara/internal/platform/errors"
)

// referenceHandler computes minimal outcomes for every command kind, enough
// to drive the kernel through its lifecycle.
type referenceHandler struct {
	sessionSeq *int
}

func (h referenceHandler) CanHandle(command.Type) bool { return true }

func (h referenceHandler) Handle(ctx context.Context, inv dispatch.Invocation, cmd command.Command) (command.Outcome, error) {
	switch c := cmd.(type) {
	case command.SessionCreate:
		*h.sessionSeq++
		return command.Outcome{
			Delta: command.StateDelta{
				Summary: "session created",
				Data: map[string]any{
					"session_id": fmt.Sprintf("sess-%d", *h.sessionSeq),
					"project_id": c.Payload.ProjectID,
					"schema_id":  c.Payload.SchemaID,
					"source":     c.Payload.Source,
				},
			},
			Validation: command.ValidationTriggerNone,
		}, nil
	case command.SessionCreateCorrection:
		*h.sessionSeq++
		return command.Outcome{
			Delta: command.StateDelta{
				Summary: "correction session created",
				Data: map[string]any{
					"session_id":      fmt.Sprintf("sess-%d", *h.sessionSeq),
					"project_id":      c.Payload.ProjectID,
					"schema_id":       c.Payload.SchemaID,
					"base_session_id": c.Payload.BaseSessionID,
				},
			},
			Validation: command.ValidationTriggerNone,
		}, nil
	case command.SessionPin:
		return command.Outcome{
			Delta: command.StateDelta{
				Summary: "session pin toggled",
				Data:    map[string]any{"pinned": c.Payload.Pinned},
			},
			Validation: command.ValidationTriggerNone,
		}, nil
	case command.SessionExport:
		return command.Outcome{
			Delta:      command.StateDelta{Summary: "session exported"},
			Transition: &session.Transition{From: session.StatusValidated, To: session.StatusExported},
			Validation: command.ValidationTriggerNone,
		}, nil
	case command.SessionLock:
		return command.Outcome{
			Delta:      command.StateDelta{Summary: "session locked"},
			Transition: &session.Transition{From: session.StatusExported, To: session.StatusLocked},
			Validation: command.ValidationTriggerNone,
		}, nil
	case command.ExtractionRun:
		return command.Outcome{
			Delta: command.StateDelta{Summary: "extraction started"},
			ReviewActions: []command.ReviewAction{
				{Kind: "low_confidence_field", Payload: map[string]any{"field_key": "total"}},
				{Kind: "missing_required_field", Payload: map[string]any{"field_key": "invoice_date"}},
			},
			Validation: command.ValidationTriggerAsync,
		}, nil
	default:
		return command.Outcome{
			Delta:      command.StateDelta{Summary: string(cmd.Descriptor().Type) + " applied"},
			Validation: command.ValidationTriggerNone,
		}, nil
	}
}

type kernel struct {
	store      *memory.Store
	dispatcher dispatch.Dispatcher
}

func newKernel(t *testing.T, handler dispatch.Handler) *kernel {
	t.Helper()
	store := memory.NewStore()
	registry := command.DefaultRegistry()
	router := dispatch.NewRouter(registry)
	if err := router.Register(handler); err != nil {
		t.Fatalf("register handler: %v", err)
	}
	return &kernel{
		store: store,
		dispatcher: dispatch.Dispatcher{
			Commands:    registry,
			Router:      router,
			Policy:      policy.NewMatrix(),
			Idempotency: store,
			Sessions:    store,
			Projections: projection.NewWriter(store),
			Events:      store,
			Factory:     event.NewFactory(),
			Invariants:  invariant.NewEngine(store),
			UnitOfWork:  store,
		},
	}
}

func newReferenceKernel(t *testing.T) *kernel {
	seq := 0
	return newKernel(t, referenceHandler{sessionSeq: &seq})
}

func (k *kernel) seedSession(t *testing.T, sessionID string, status session.Status) {
	t.Helper()
	ctx := context.Background()
	err := k.store.InsertSession(ctx, storage.SessionRecord{
		SessionID: sessionID,
		ProjectID: "proj-1",
		SchemaID:  "schema-1",
		Status:    session.StatusCreated,
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if status != session.StatusCreated {
		if err := k.store.SetSessionStatus(ctx, sessionID, status); err != nil {
			t.Fatalf("seed status: %v", err)
		}
	}
}

func envelope(commandID string) command.Envelope {
	return command.Envelope{
		CommandID: commandID,
		Actor:     "operator",
		IssuedAt:  time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func hasCode(err error, code apperrors.Code) bool {
	return errors.Is(err, apperrors.New(code, ""))
}

func TestDispatchCreateSessionScenario(t *testing.T) {
	k := newReferenceKernel(t)
	ctx := context.Background()

	create := command.SessionCreate{
		Envelope: envelope("cmd-create"),
		Payload:  command.SessionCreatePayload{ProjectID: "proj-1", SchemaID: "schema-1", Source: "upload"},
	}
	result, err := k.dispatcher.Dispatch(ctx, create)
	if err != nil {
		t.Fatalf("create dispatch failed: %v", err)
	}
	if result.IdempotentReplay {
		t.Error("fresh dispatch reported replay")
	}
	if len(result.EventIDs) == 0 {
		t.Error("create dispatch returned zero events")
	}

	rec, err := k.store.Session(ctx, "sess-1")
	if err != nil {
		t.Fatalf("session projection missing: %v", err)
	}
	if rec.Status != session.StatusCreated {
		t.Errorf("new session status = %s, want created", rec.Status)
	}

	imp := command.DocumentImport{
		Envelope: envelope("cmd-import"),
		Payload:  command.DocumentImportPayload{SessionID: "sess-1", BlobIDs: []string{"blob-1"}},
	}
	impResult, err := k.dispatcher.Dispatch(ctx, imp)
	if err != nil {
		t.Fatalf("import dispatch failed: %v", err)
	}
	if impResult.SessionStatus != session.StatusCreated {
		t.Errorf("import result status = %s, want created", impResult.SessionStatus)
	}

	run := command.ExtractionRun{
		Envelope: envelope("cmd-run"),
		Payload:  command.ExtractionRunPayload{SessionID: "sess-1", Engine: "ocr"},
	}
	_, err = k.dispatcher.Dispatch(ctx, run)
	if !hasCode(err, apperrors.CodeCommandNotAllowedInState) {
		t.Errorf("extraction.run in created: err = %v, want CommandNotAllowedInState", err)
	}
}

func TestDispatchReplayReturnsStoredResult(t *testing.T) {
	k := newReferenceKernel(t)
	ctx := context.Background()
	k.seedSession(t, "sess-1", session.StatusCreated)

	pin := command.SessionPin{
		Envelope: envelope("cmd-pin"),
		Payload:  command.SessionPinPayload{SessionID: "sess-1", Pinned: true},
	}

	first, err := k.dispatcher.Dispatch(ctx, pin)
	if err != nil {
		t.Fatalf("first dispatch failed: %v", err)
	}
	eventsBefore, err := k.store.Events(ctx, "sess-1")
	if err != nil {
		t.Fatalf("read events: %v", err)
	}

	second, err := k.dispatcher.Dispatch(ctx, pin)
	if err != nil {
		t.Fatalf("replay dispatch failed: %v", err)
	}
	if !second.IdempotentReplay {
		t.Error("replay dispatch did not set IdempotentReplay")
	}
	if first.IdempotentReplay {
		t.Error("first dispatch reported replay")
	}
	if len(second.EventIDs) != len(first.EventIDs) || second.EventIDs[0] != first.EventIDs[0] {
		t.Errorf("replay event ids = %v, want %v", second.EventIDs, first.EventIDs)
	}

	eventsAfter, err := k.store.Events(ctx, "sess-1")
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if len(eventsAfter) != len(eventsBefore) {
		t.Errorf("replay appended events: %d -> %d", len(eventsBefore), len(eventsAfter))
	}
}

func TestDispatchConflictOnReusedID(t *testing.T) {
	k := newReferenceKernel(t)
	ctx := context.Background()
	k.seedSession(t, "sess-1", session.StatusCreated)

	pin := command.SessionPin{
		Envelope: envelope("cmd-pin"),
		Payload:  command.SessionPinPayload{SessionID: "sess-1", Pinned: true},
	}
	if _, err := k.dispatcher.Dispatch(ctx, pin); err != nil {
		t.Fatalf("first dispatch failed: %v", err)
	}

	unpin := pin
	unpin.Payload.Pinned = false
	_, err := k.dispatcher.Dispatch(ctx, unpin)
	if !hasCode(err, apperrors.CodeIdempotencyConflict) {
		t.Errorf("reused id with new payload: err = %v, want IdempotencyConflict", err)
	}
}

func TestDispatchExportTransition(t *testing.T) {
	k := newReferenceKernel(t)
	ctx := context.Background()
	k.seedSession(t, "sess-1", session.StatusValidated)

	export := command.SessionExport{
		Envelope: envelope("cmd-export"),
		Payload:  command.SessionExportPayload{SessionID: "sess-1", Format: command.ExportCSVBundle},
	}
	result, err := k.dispatcher.Dispatch(ctx, export)
	if err != nil {
		t.Fatalf("export dispatch failed: %v", err)
	}
	if result.SessionStatus != session.StatusExported {
		t.Errorf("result status = %s, want exported", result.SessionStatus)
	}

	status, err := k.store.GetStatus(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if status != session.StatusExported {
		t.Errorf("stored status = %s, want exported", status)
	}
}

func TestDispatchLockedSessionDeniesMutating(t *testing.T) {
	k := newReferenceKernel(t)
	ctx := context.Background()
	k.seedSession(t, "sess-1", session.StatusLocked)

	assign := command.FieldAssignValue{
		Envelope: envelope("cmd-assign"),
		Payload: command.FieldAssignValuePayload{
			SessionID:     "sess-1",
			DocumentID:    "doc-1",
			SchemaFieldID: "field-1",
			RawValue:      "42.00",
			Source:        command.SourceManual,
		},
	}
	_, err := k.dispatcher.Dispatch(ctx, assign)
	if !hasCode(err, apperrors.CodeSessionLocked) {
		t.Errorf("assign on locked session: err = %v, want SessionLocked", err)
	}

	pin := command.SessionPin{
		Envelope: envelope("cmd-pin"),
		Payload:  command.SessionPinPayload{SessionID: "sess-1", Pinned: true},
	}
	if _, err := k.dispatcher.Dispatch(ctx, pin); err != nil {
		t.Errorf("pin on locked session failed: %v", err)
	}
}

func TestDispatchExportedRejectedByMatrix(t *testing.T) {
	k := newReferenceKernel(t)
	ctx := context.Background()
	k.seedSession(t, "sess-1", session.StatusExported)

	assign := command.FieldAssignValue{
		Envelope: envelope("cmd-assign"),
		Payload: command.FieldAssignValuePayload{
			SessionID:     "sess-1",
			DocumentID:    "doc-1",
			SchemaFieldID: "field-1",
			RawValue:      "42.00",
			Source:        command.SourceManual,
		},
	}
	_, err := k.dispatcher.Dispatch(ctx, assign)
	if !hasCode(err, apperrors.CodeCommandNotAllowedInState) {
		t.Errorf("assign on exported session: err = %v, want CommandNotAllowedInState", err)
	}
	if hasCode(err, apperrors.CodeSessionLocked) {
		t.Error("assign on exported session reported SessionLocked, want matrix rejection")
	}
}

// badTransitionHandler proposes an illegal lifecycle move for every command.
type badTransitionHandler struct{}

func (badTransitionHandler) CanHandle(command.Type) bool { return true }

func (badTransitionHandler) Handle(ctx context.Context, inv dispatch.Invocation, cmd command.Command) (command.Outcome, error) {
	return command.Outcome{
		Delta:      command.StateDelta{Summary: "bad move"},
		Transition: &session.Transition{From: session.StatusCreated, To: session.StatusExported},
		Validation: command.ValidationTriggerNone,
	}, nil
}

func TestDispatchIllegalTransitionLeavesNoEffects(t *testing.T) {
	k := newKernel(t, badTransitionHandler{})
	ctx := context.Background()
	k.seedSession(t, "sess-1", session.StatusCreated)

	imp := command.DocumentImport{
		Envelope: envelope("cmd-import"),
		Payload:  command.DocumentImportPayload{SessionID: "sess-1", BlobIDs: []string{"blob-1"}},
	}
	_, err := k.dispatcher.Dispatch(ctx, imp)
	if !hasCode(err, apperrors.CodeInvalidStateTransition) {
		t.Fatalf("dispatch err = %v, want InvalidStateTransition", err)
	}

	events, err := k.store.Events(ctx, "sess-1")
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("failed dispatch left %d events", len(events))
	}
	status, err := k.store.GetStatus(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if status != session.StatusCreated {
		t.Errorf("status after failed dispatch = %s, want created", status)
	}

	entry, err := k.store.IdempotencyEntry(ctx, "cmd-import")
	if err != nil {
		t.Fatalf("idempotency entry missing: %v", err)
	}
	if entry.Status != storage.IdempotencyFailed {
		t.Errorf("entry status = %s, want failed", entry.Status)
	}
}

// emptyFactory drops every derived event.
type emptyFactory struct{}

func (emptyFactory) Derive(desc command.Descriptor, outcome command.Outcome) ([]event.Envelope, error) {
	return nil, nil
}

func TestDispatchZeroEventsRollsBack(t *testing.T) {
	k := newReferenceKernel(t)
	k.dispatcher.Factory = emptyFactory{}
	ctx := context.Background()
	k.seedSession(t, "sess-1", session.StatusCreated)

	imp := command.DocumentImport{
		Envelope: envelope("cmd-import"),
		Payload:  command.DocumentImportPayload{SessionID: "sess-1", BlobIDs: []string{"blob-1"}},
	}
	_, err := k.dispatcher.Dispatch(ctx, imp)
	if !hasCode(err, apperrors.CodeInvariantViolation) {
		t.Fatalf("dispatch err = %v, want InvariantViolation", err)
	}

	deltas, err := k.store.Deltas(ctx, "sess-1")
	if err != nil {
		t.Fatalf("read deltas: %v", err)
	}
	if len(deltas) != 0 {
		t.Errorf("failed dispatch left %d delta records", len(deltas))
	}
	events, err := k.store.Events(ctx, "sess-1")
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("failed dispatch left %d events", len(events))
	}

	// A retry of the failed command is rejected, not silently re-executed.
	_, err = k.dispatcher.Dispatch(ctx, imp)
	if !hasCode(err, apperrors.CodeIdempotencyConflict) {
		t.Errorf("retry after failure: err = %v, want IdempotencyConflict", err)
	}
}

func TestDispatchRecordsReviewAndValidationWork(t *testing.T) {
	k := newReferenceKernel(t)
	ctx := context.Background()
	k.seedSession(t, "sess-1", session.StatusProcessing)

	run := command.ExtractionRun{
		Envelope: envelope("cmd-run"),
		Payload:  command.ExtractionRunPayload{SessionID: "sess-1", Engine: "ocr"},
	}
	result, err := k.dispatcher.Dispatch(ctx, run)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if len(result.EventIDs) != 3 {
		t.Errorf("event count = %d, want 3 (applied + two review actions)", len(result.EventIDs))
	}

	tasks, err := k.store.ReviewTasks(ctx, "sess-1")
	if err != nil {
		t.Fatalf("read tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("review task count = %d, want 2", len(tasks))
	}
	runs, err := k.store.ValidationRuns(ctx, "sess-1")
	if err != nil {
		t.Fatalf("read runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("validation run count = %d, want 1", len(runs))
	}
	if runs[0].Trigger != string(command.ValidationTriggerAsync) {
		t.Errorf("validation trigger = %s, want async", runs[0].Trigger)
	}
}

func TestDispatchProjectScopedUsesGlobalStream(t *testing.T) {
	k := newReferenceKernel(t)
	ctx := context.Background()

	rule := command.RuleAddDictionary{
		Envelope: envelope("cmd-rule"),
		Payload: command.RuleAddDictionaryPayload{
			ProjectID:    "proj-1",
			Scope:        command.DictionaryScopeVendor,
			MatchType:    command.MatchExact,
			MatchValue:   "ACME Corp",
			ReplaceValue: "ACME",
		},
	}
	result, err := k.dispatcher.Dispatch(ctx, rule)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if result.SessionStatus != "" {
		t.Errorf("project-scoped result status = %q, want empty", result.SessionStatus)
	}

	events, err := k.store.Events(ctx, storage.GlobalStream)
	if err != nil {
		t.Fatalf("read global stream: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("global stream has %d events, want 1", len(events))
	}
	if events[0].Type != "rule.add_dictionary.applied" {
		t.Errorf("event type = %q", events[0].Type)
	}
}

func TestDispatchConcurrentDistinctCommands(t *testing.T) {
	k := newReferenceKernel(t)
	ctx := context.Background()
	k.seedSession(t, "sess-1", session.StatusCreated)

	const workers = 8
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			pin := command.SessionPin{
				Envelope: envelope(fmt.Sprintf("cmd-pin-%d", n)),
				Payload:  command.SessionPinPayload{SessionID: "sess-1", Pinned: n%2 == 0},
			}
			_, err := k.dispatcher.Dispatch(ctx, pin)
			errCh <- err
		}(i)
	}
	for i := 0; i < workers; i++ {
		if err := <-errCh; err != nil {
			t.Errorf("concurrent dispatch failed: %v", err)
		}
	}

	events, err := k.store.Events(ctx, "sess-1")
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if len(events) != workers {
		t.Errorf("event count = %d, want %d", len(events), workers)
	}
	for i, record := range events {
		if record.Seq != int64(i)+1 {
			t.Errorf("position %d holds seq %d", i, record.Seq)
		}
	}
}
