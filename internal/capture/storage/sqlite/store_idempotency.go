package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tabulara/tabulara/internal/capture/command"
	"github.com/tabulara/tabulara/internal/capture/dispatch"
	"github.com/tabulara/tabulara/internal/capture/encoding"
	"github.com/tabulara/tabulara/internal/capture/storage"
	apperrors "github.com/tabulara/tabulara/internal/platform/errors"
)

// Begin creates or classifies the idempotency entry for a command id.
//
// INSERT OR IGNORE decides between a first dispatch and a retry in one
// statement, so two concurrent dispatches of the same command id cannot
// both claim the entry.
func (s *Store) Begin(ctx context.Context, desc command.Descriptor, requestHash string) (dispatch.Begin, error) {
	if err := ctx.Err(); err != nil {
		return dispatch.Begin{}, err
	}
	now := toMillis(s.now())

	result, err := s.db(ctx).ExecContext(ctx, `
INSERT OR IGNORE INTO idempotency_entries (command_id, request_hash, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`,
		desc.CommandID, requestHash, string(storage.IdempotencyInProgress), now, now)
	if err != nil {
		return dispatch.Begin{}, fmt.Errorf("insert idempotency entry: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return dispatch.Begin{}, fmt.Errorf("check idempotency insert: %w", err)
	}
	if inserted == 1 {
		return dispatch.Begin{State: dispatch.BeginNew}, nil
	}

	rec, err := s.IdempotencyEntry(ctx, desc.CommandID)
	if err != nil {
		return dispatch.Begin{}, fmt.Errorf("load idempotency entry: %w", err)
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
	if err := ctx.Err(); err != nil {
		return err
	}
	resultJSON, err := encoding.CanonicalJSON(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	res, err := s.db(ctx).ExecContext(ctx, `
UPDATE idempotency_entries
SET status = ?, result_json = ?, updated_at = ?
WHERE command_id = ?`,
		string(storage.IdempotencyCommitted), string(resultJSON), toMillis(s.now()), commandID)
	if err != nil {
		return fmt.Errorf("commit idempotency entry: %w", err)
	}
	return requireEntry(res, commandID)
}

// MarkFailed records the dispatch error on the entry.
func (s *Store) MarkFailed(ctx context.Context, commandID string, dispatchErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	message := ""
	if dispatchErr != nil {
		message = dispatchErr.Error()
	}

	res, err := s.db(ctx).ExecContext(ctx, `
UPDATE idempotency_entries
SET status = ?, error = ?, updated_at = ?
WHERE command_id = ?`,
		string(storage.IdempotencyFailed), message, toMillis(s.now()), commandID)
	if err != nil {
		return fmt.Errorf("mark idempotency entry failed: %w", err)
	}
	return requireEntry(res, commandID)
}

// IdempotencyEntry returns the stored entry for a command id.
func (s *Store) IdempotencyEntry(ctx context.Context, commandID string) (storage.IdempotencyRecord, error) {
	row := s.db(ctx).QueryRowContext(ctx, `
SELECT command_id, request_hash, status, result_json, error, created_at, updated_at
FROM idempotency_entries
WHERE command_id = ?`, commandID)

	var rec storage.IdempotencyRecord
	var status string
	var resultJSON string
	var createdAt, updatedAt int64
	err := row.Scan(&rec.CommandID, &rec.RequestHash, &status, &resultJSON, &rec.Error, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.IdempotencyRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.IdempotencyRecord{}, fmt.Errorf("scan idempotency entry: %w", err)
	}
	rec.Status = storage.IdempotencyStatus(status)
	if resultJSON != "" {
		rec.ResultJSON = []byte(resultJSON)
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

func requireEntry(res sql.Result, commandID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check idempotency update: %w", err)
	}
	if affected == 0 {
		return apperrors.WithMetadata(
			apperrors.CodeNotFound,
			fmt.Sprintf("no idempotency entry for command %s", commandID),
			map[string]string{"CommandID": commandID},
		)
	}
	return nil
}
