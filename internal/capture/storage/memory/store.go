// Package memory provides an in-process backend implementing the dispatch
// kernel's collaborator contracts. It backs tests and single-process use;
// durable deployments use the sqlite backend.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tabulara/tabulara/internal/capture/command"
	"github.com/tabulara/tabulara/internal/capture/dispatch"
	"github.com/tabulara/tabulara/internal/capture/encoding"
	"github.com/tabulara/tabulara/internal/capture/event"
	"github.com/tabulara/tabulara/internal/capture/session"
	"github.com/tabulara/tabulara/internal/capture/storage"
	apperrors "github.com/tabulara/tabulara/internal/platform/errors"
)

// ErrNestedTransaction indicates WithinTx was called from inside a
// transaction body.
var ErrNestedTransaction = errors.New("nested transaction is not supported")

type txKey struct{}

// state holds the transactional portion of the store. Idempotency entries
// live outside it: they are written before and after the unit of work and
// must survive a rollback.
type state struct {
	sessions map[string]storage.SessionRecord
	events   map[string][]storage.EventRecord
	tasks    []storage.ReviewTaskRecord
	runs     []storage.ValidationRunRecord
	deltas   []storage.DeltaRecord
}

func newState() *state {
	return &state{
		sessions: make(map[string]storage.SessionRecord),
		events:   make(map[string][]storage.EventRecord),
	}
}

func (s *state) clone() *state {
	next := &state{
		sessions: make(map[string]storage.SessionRecord, len(s.sessions)),
		events:   make(map[string][]storage.EventRecord, len(s.events)),
		tasks:    append([]storage.ReviewTaskRecord(nil), s.tasks...),
		runs:     append([]storage.ValidationRunRecord(nil), s.runs...),
		deltas:   append([]storage.DeltaRecord(nil), s.deltas...),
	}
	for id, rec := range s.sessions {
		next.sessions[id] = rec
	}
	for stream, events := range s.events {
		next.events[stream] = append([]storage.EventRecord(nil), events...)
	}
	return next
}

// Store is a mutex-guarded in-memory backend. All state is mutated under
// mu; transaction bodies run with mu held and carry a context marker so
// store methods invoked inside them skip re-locking.
type Store struct {
	mu          sync.Mutex
	state       *state
	idempotency map[string]*storage.IdempotencyRecord

	// Now stamps record timestamps; defaults to time.Now.
	Now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		state:       newState(),
		idempotency: make(map[string]*storage.IdempotencyRecord),
		Now:         time.Now,
	}
}

func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithinTx runs fn with the store lock held. On error the transactional
// state reverts to its pre-call snapshot; idempotency entries are left
// untouched so the failed dispatch can still be marked.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return ErrNestedTransaction
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Begin creates or classifies the idempotency entry for a command id.
func (s *Store) Begin(ctx context.Context, desc command.Descriptor, requestHash string) (dispatch.Begin, error) {
	unlock := s.lock(ctx)
	defer unlock()

	rec, ok := s.idempotency[desc.CommandID]
	if !ok {
		now := s.now()
		s.idempotency[desc.CommandID] = &storage.IdempotencyRecord{
			CommandID:   desc.CommandID,
			RequestHash: requestHash,
			Status:      storage.IdempotencyInProgress,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return dispatch.Begin{State: dispatch.BeginNew}, nil
	}

	if rec.RequestHash != requestHash {
		return dispatch.Begin{State: dispatch.BeginConflict}, nil
	}
	if rec.Status == storage.IdempotencyCommitted {
		var prior dispatch.Result
		if err := json.Unmarshal(rec.ResultJSON, &prior); err != nil {
			return dispatch.Begin{}, fmt.Errorf("decode stored result: %w", err)
		}
		return dispatch.Begin{State: dispatch.BeginReplay, Prior: &prior}, nil
	}
	// Same hash but in progress or failed: reject rather than wait.
	return dispatch.Begin{State: dispatch.BeginConflict}, nil
}

// Commit stores the result and marks the entry committed.
func (s *Store) Commit(ctx context.Context, commandID string, result dispatch.Result) error {
	unlock := s.lock(ctx)
	defer unlock()

	rec, ok := s.idempotency[commandID]
	if !ok {
		return apperrors.WithMetadata(
			apperrors.CodeNotFound,
			fmt.Sprintf("no idempotency entry for command %s", commandID),
			map[string]string{"CommandID": commandID},
		)
	}
	resultJSON, err := encoding.CanonicalJSON(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	rec.Status = storage.IdempotencyCommitted
	rec.ResultJSON = resultJSON
	rec.UpdatedAt = s.now()
	return nil
}

// MarkFailed records the dispatch error on the entry.
func (s *Store) MarkFailed(ctx context.Context, commandID string, dispatchErr error) error {
	unlock := s.lock(ctx)
	defer unlock()

	rec, ok := s.idempotency[commandID]
	if !ok {
		return apperrors.WithMetadata(
			apperrors.CodeNotFound,
			fmt.Sprintf("no idempotency entry for command %s", commandID),
			map[string]string{"CommandID": commandID},
		)
	}
	rec.Status = storage.IdempotencyFailed
	if dispatchErr != nil {
		rec.Error = dispatchErr.Error()
	}
	rec.UpdatedAt = s.now()
	return nil
}

// IdempotencyEntry returns a copy of the stored entry.
func (s *Store) IdempotencyEntry(ctx context.Context, commandID string) (storage.IdempotencyRecord, error) {
	unlock := s.lock(ctx)
	defer unlock()

	rec, ok := s.idempotency[commandID]
	if !ok {
		return storage.IdempotencyRecord{}, storage.ErrNotFound
	}
	return *rec, nil
}

// GetStatus returns a session's current lifecycle status.
func (s *Store) GetStatus(ctx context.Context, sessionID string) (session.Status, error) {
	unlock := s.lock(ctx)
	defer unlock()

	rec, ok := s.state.sessions[sessionID]
	if !ok {
		return "", apperrors.WithMetadata(
			apperrors.CodeNotFound,
			fmt.Sprintf("session %s not found", sessionID),
			map[string]string{"SessionID": sessionID},
		)
	}
	return rec.Status, nil
}

// InsertSession creates a new session projection row.
func (s *Store) InsertSession(ctx context.Context, rec storage.SessionRecord) error {
	unlock := s.lock(ctx)
	defer unlock()

	if _, exists := s.state.sessions[rec.SessionID]; exists {
		return fmt.Errorf("session %s already exists", rec.SessionID)
	}
	now := s.now()
	rec.Version = 1
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.state.sessions[rec.SessionID] = rec
	return nil
}

// Session returns a copy of the session projection row.
func (s *Store) Session(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	unlock := s.lock(ctx)
	defer unlock()

	rec, ok := s.state.sessions[sessionID]
	if !ok {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

// ListSessionIDs returns every projected session id, ordered.
func (s *Store) ListSessionIDs(ctx context.Context) ([]string, error) {
	unlock := s.lock(ctx)
	defer unlock()

	ids := make([]string, 0, len(s.state.sessions))
	for id := range s.state.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// SetSessionPinned toggles the pinned marker.
func (s *Store) SetSessionPinned(ctx context.Context, sessionID string, pinned bool) error {
	return s.mutateSession(ctx, sessionID, func(rec *storage.SessionRecord) {
		rec.Pinned = pinned
	})
}

// SetSessionStatus moves the session to the given status.
func (s *Store) SetSessionStatus(ctx context.Context, sessionID string, next session.Status) error {
	return s.mutateSession(ctx, sessionID, func(rec *storage.SessionRecord) {
		rec.Status = next
	})
}

func (s *Store) mutateSession(ctx context.Context, sessionID string, mutate func(*storage.SessionRecord)) error {
	unlock := s.lock(ctx)
	defer unlock()

	rec, ok := s.state.sessions[sessionID]
	if !ok {
		return storage.ErrNotFound
	}
	mutate(&rec)
	rec.Version++
	rec.UpdatedAt = s.now()
	s.state.sessions[sessionID] = rec
	return nil
}

// InsertReviewTask records a requested review side effect.
func (s *Store) InsertReviewTask(ctx context.Context, rec storage.ReviewTaskRecord) error {
	unlock := s.lock(ctx)
	defer unlock()

	rec.CreatedAt = s.now()
	s.state.tasks = append(s.state.tasks, rec)
	return nil
}

// ReviewTasks returns the recorded tasks for a session.
func (s *Store) ReviewTasks(ctx context.Context, sessionID string) ([]storage.ReviewTaskRecord, error) {
	unlock := s.lock(ctx)
	defer unlock()

	var tasks []storage.ReviewTaskRecord
	for _, task := range s.state.tasks {
		if task.SessionID == sessionID {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// InsertValidationRun registers requested validation work.
func (s *Store) InsertValidationRun(ctx context.Context, rec storage.ValidationRunRecord) error {
	unlock := s.lock(ctx)
	defer unlock()

	rec.RequestedAt = s.now()
	s.state.runs = append(s.state.runs, rec)
	return nil
}

// ValidationRuns returns the recorded runs for a session.
func (s *Store) ValidationRuns(ctx context.Context, sessionID string) ([]storage.ValidationRunRecord, error) {
	unlock := s.lock(ctx)
	defer unlock()

	var runs []storage.ValidationRunRecord
	for _, run := range s.state.runs {
		if run.SessionID == sessionID {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

// InsertDelta logs an applied state delta.
func (s *Store) InsertDelta(ctx context.Context, rec storage.DeltaRecord) error {
	unlock := s.lock(ctx)
	defer unlock()

	rec.RecordedAt = s.now()
	s.state.deltas = append(s.state.deltas, rec)
	return nil
}

// Deltas returns the logged state deltas for a session.
func (s *Store) Deltas(ctx context.Context, sessionID string) ([]storage.DeltaRecord, error) {
	unlock := s.lock(ctx)
	defer unlock()

	var deltas []storage.DeltaRecord
	for _, delta := range s.state.deltas {
		if delta.SessionID == sessionID {
			deltas = append(deltas, delta)
		}
	}
	return deltas, nil
}

// Append adds events to their streams with dense sequence numbers and a
// hash chain linking each record to its predecessor.
func (s *Store) Append(ctx context.Context, events []event.Envelope) error {
	unlock := s.lock(ctx)
	defer unlock()

	for _, evt := range events {
		stream := streamID(evt)
		prior := s.state.events[stream]

		prevHash := ""
		if len(prior) > 0 {
			prevHash = prior[len(prior)-1].Hash
		}
		hash, err := encoding.ContentHash(map[string]any{
			"prev":  prevHash,
			"event": evt,
		})
		if err != nil {
			return fmt.Errorf("hash event %s: %w", evt.EventID, err)
		}

		s.state.events[stream] = append(prior, storage.EventRecord{
			Envelope: evt,
			StreamID: stream,
			Seq:      int64(len(prior)) + 1,
			PrevHash: prevHash,
			Hash:     hash,
		})
	}
	return nil
}

// Events returns a copy of a stream's records in sequence order.
func (s *Store) Events(ctx context.Context, streamID string) ([]storage.EventRecord, error) {
	unlock := s.lock(ctx)
	defer unlock()

	return append([]storage.EventRecord(nil), s.state.events[streamID]...), nil
}

// ListEvents pages a stream's records after the given sequence number.
func (s *Store) ListEvents(ctx context.Context, streamID string, afterSeq int64, limit int) ([]storage.EventRecord, error) {
	unlock := s.lock(ctx)
	defer unlock()

	var page []storage.EventRecord
	for _, record := range s.state.events[streamID] {
		if record.Seq <= afterSeq {
			continue
		}
		page = append(page, record)
		if limit > 0 && len(page) >= limit {
			break
		}
	}
	return page, nil
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func streamID(evt event.Envelope) string {
	if sid, ok := evt.Data["session_id"].(string); ok && sid != "" {
		return sid
	}
	return storage.GlobalStream
}
