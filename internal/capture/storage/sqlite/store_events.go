package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tabulara/tabulara/internal/capture/encoding"
	"github.com/tabulara/tabulara/internal/capture/event"
	"github.com/tabulara/tabulara/internal/capture/storage"
)

// Append adds events to their streams with dense sequence numbers and a
// hash chain linking each record to its predecessor. Callers append from
// inside a unit of work, so the seq read and the insert are atomic.
func (s *Store) Append(ctx context.Context, events []event.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db := s.db(ctx)

	for _, evt := range events {
		stream := streamID(evt)

		seq, prevHash, err := streamHead(ctx, db, stream)
		if err != nil {
			return err
		}

		hash, err := encoding.ContentHash(map[string]any{
			"prev":  prevHash,
			"event": evt,
		})
		if err != nil {
			return fmt.Errorf("hash event %s: %w", evt.EventID, err)
		}
		envelopeJSON, err := encoding.CanonicalJSON(evt)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", evt.EventID, err)
		}

		_, err = db.ExecContext(ctx, `
INSERT INTO events (stream_id, seq, event_id, caused_by, event_type, timestamp, envelope_json, prev_hash, hash)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			stream, seq+1, evt.EventID, evt.CausedBy, evt.Type,
			toMillis(evt.Timestamp), string(envelopeJSON), prevHash, hash)
		if err != nil {
			return fmt.Errorf("append event %s: %w", evt.EventID, err)
		}
	}
	return nil
}

// streamHead returns the last sequence number and chain hash of a stream,
// or zero values for an empty stream.
func streamHead(ctx context.Context, db dbtx, stream string) (int64, string, error) {
	row := db.QueryRowContext(ctx, `
SELECT seq, hash
FROM events
WHERE stream_id = ?
ORDER BY seq DESC
LIMIT 1`, stream)

	var seq int64
	var hash string
	err := row.Scan(&seq, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("load stream head %s: %w", stream, err)
	}
	return seq, hash, nil
}

// Events returns a stream's records in sequence order.
func (s *Store) Events(ctx context.Context, streamID string) ([]storage.EventRecord, error) {
	return s.ListEvents(ctx, streamID, 0, 0)
}

// ListEvents pages a stream's records after the given sequence number.
func (s *Store) ListEvents(ctx context.Context, streamID string, afterSeq int64, limit int) ([]storage.EventRecord, error) {
	query := `
SELECT stream_id, seq, envelope_json, prev_hash, hash
FROM events
WHERE stream_id = ? AND seq > ?
ORDER BY seq`
	args := []any{streamID, afterSeq}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events %s: %w", streamID, err)
	}
	defer rows.Close()

	var records []storage.EventRecord
	for rows.Next() {
		var rec storage.EventRecord
		var envelopeJSON string
		if err := rows.Scan(&rec.StreamID, &rec.Seq, &envelopeJSON, &rec.PrevHash, &rec.Hash); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(envelopeJSON), &rec.Envelope); err != nil {
			return nil, fmt.Errorf("decode event envelope: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events %s: %w", streamID, err)
	}
	return records, nil
}

func streamID(evt event.Envelope) string {
	if sid, ok := evt.Data["session_id"].(string); ok && sid != "" {
		return sid
	}
	return storage.GlobalStream
}
