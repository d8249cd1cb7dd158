package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tabulara/tabulara/internal/capture/encoding"
	"github.com/tabulara/tabulara/internal/capture/storage"
)

// InsertReviewTask records a requested review side effect.
func (s *Store) InsertReviewTask(ctx context.Context, rec storage.ReviewTaskRecord) error {
	payloadJSON, err := encodePayload(rec.Payload)
	if err != nil {
		return fmt.Errorf("encode review task payload: %w", err)
	}
	_, err = s.db(ctx).ExecContext(ctx, `
INSERT INTO review_tasks (task_id, session_id, kind, payload_json, status, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		rec.TaskID, rec.SessionID, rec.Kind, payloadJSON, string(rec.Status), toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("insert review task %s: %w", rec.TaskID, err)
	}
	return nil
}

// ReviewTasks returns the recorded tasks for a session in creation order.
func (s *Store) ReviewTasks(ctx context.Context, sessionID string) ([]storage.ReviewTaskRecord, error) {
	rows, err := s.db(ctx).QueryContext(ctx, `
SELECT task_id, session_id, kind, payload_json, status, created_at
FROM review_tasks
WHERE session_id = ?
ORDER BY created_at, task_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list review tasks: %w", err)
	}
	defer rows.Close()

	var tasks []storage.ReviewTaskRecord
	for rows.Next() {
		var rec storage.ReviewTaskRecord
		var payloadJSON string
		var status string
		var createdAt int64
		if err := rows.Scan(&rec.TaskID, &rec.SessionID, &rec.Kind, &payloadJSON, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan review task: %w", err)
		}
		rec.Payload, err = decodePayload(payloadJSON)
		if err != nil {
			return nil, fmt.Errorf("decode review task payload: %w", err)
		}
		rec.Status = storage.ReviewTaskStatus(status)
		rec.CreatedAt = fromMillis(createdAt)
		tasks = append(tasks, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review tasks: %w", err)
	}
	return tasks, nil
}

// InsertValidationRun registers requested validation work.
func (s *Store) InsertValidationRun(ctx context.Context, rec storage.ValidationRunRecord) error {
	_, err := s.db(ctx).ExecContext(ctx, `
INSERT INTO validation_runs (run_id, session_id, trigger_kind, requested_at)
VALUES (?, ?, ?, ?)`,
		rec.RunID, rec.SessionID, rec.Trigger, toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("insert validation run %s: %w", rec.RunID, err)
	}
	return nil
}

// ValidationRuns returns the recorded runs for a session in request order.
func (s *Store) ValidationRuns(ctx context.Context, sessionID string) ([]storage.ValidationRunRecord, error) {
	rows, err := s.db(ctx).QueryContext(ctx, `
SELECT run_id, session_id, trigger_kind, requested_at
FROM validation_runs
WHERE session_id = ?
ORDER BY requested_at, run_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list validation runs: %w", err)
	}
	defer rows.Close()

	var runs []storage.ValidationRunRecord
	for rows.Next() {
		var rec storage.ValidationRunRecord
		var requestedAt int64
		if err := rows.Scan(&rec.RunID, &rec.SessionID, &rec.Trigger, &requestedAt); err != nil {
			return nil, fmt.Errorf("scan validation run: %w", err)
		}
		rec.RequestedAt = fromMillis(requestedAt)
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate validation runs: %w", err)
	}
	return runs, nil
}

// InsertDelta logs an applied state delta.
func (s *Store) InsertDelta(ctx context.Context, rec storage.DeltaRecord) error {
	dataJSON, err := encodePayload(rec.Data)
	if err != nil {
		return fmt.Errorf("encode delta data: %w", err)
	}
	_, err = s.db(ctx).ExecContext(ctx, `
INSERT INTO state_deltas (command_id, session_id, summary, data_json, recorded_at)
VALUES (?, ?, ?, ?, ?)`,
		rec.CommandID, rec.SessionID, rec.Summary, dataJSON, toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("insert delta %s: %w", rec.CommandID, err)
	}
	return nil
}

// Deltas returns the logged state deltas for a session in record order.
func (s *Store) Deltas(ctx context.Context, sessionID string) ([]storage.DeltaRecord, error) {
	rows, err := s.db(ctx).QueryContext(ctx, `
SELECT command_id, session_id, summary, data_json, recorded_at
FROM state_deltas
WHERE session_id = ?
ORDER BY recorded_at, command_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list deltas: %w", err)
	}
	defer rows.Close()

	var deltas []storage.DeltaRecord
	for rows.Next() {
		var rec storage.DeltaRecord
		var dataJSON string
		var recordedAt int64
		if err := rows.Scan(&rec.CommandID, &rec.SessionID, &rec.Summary, &dataJSON, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan delta: %w", err)
		}
		rec.Data, err = decodePayload(dataJSON)
		if err != nil {
			return nil, fmt.Errorf("decode delta data: %w", err)
		}
		rec.RecordedAt = fromMillis(recordedAt)
		deltas = append(deltas, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deltas: %w", err)
	}
	return deltas, nil
}

func encodePayload(payload map[string]any) (string, error) {
	if len(payload) == 0 {
		return "", nil
	}
	encoded, err := encoding.CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func decodePayload(encoded string) (map[string]any, error) {
	if encoded == "" {
		return nil, nil
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(encoded), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
