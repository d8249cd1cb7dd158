package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tabulara/tabulara/internal/capture/session"
	"github.com/tabulara/tabulara/internal/capture/storage"
	apperrors "github.com/tabulara/tabulara/internal/platform/errors"
)

// GetStatus returns a session's current lifecycle status.
func (s *Store) GetStatus(ctx context.Context, sessionID string) (session.Status, error) {
	row := s.db(ctx).QueryRowContext(ctx,
		`SELECT status FROM sessions WHERE session_id = ?`, sessionID)

	var status string
	err := row.Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.WithMetadata(
			apperrors.CodeNotFound,
			fmt.Sprintf("session %s not found", sessionID),
			map[string]string{"SessionID": sessionID},
		)
	}
	if err != nil {
		return "", fmt.Errorf("scan session status: %w", err)
	}
	return session.Status(status), nil
}

// InsertSession creates a new session projection row.
func (s *Store) InsertSession(ctx context.Context, rec storage.SessionRecord) error {
	now := toMillis(s.now())
	_, err := s.db(ctx).ExecContext(ctx, `
INSERT INTO sessions (session_id, project_id, schema_id, source, base_session_id, status, pinned, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		rec.SessionID, rec.ProjectID, rec.SchemaID, rec.Source, rec.BaseSessionID,
		string(rec.Status), boolToInt(rec.Pinned), now, now)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", rec.SessionID, err)
	}
	return nil
}

// Session returns the session projection row.
func (s *Store) Session(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	row := s.db(ctx).QueryRowContext(ctx, `
SELECT session_id, project_id, schema_id, source, base_session_id, status, pinned, version, created_at, updated_at
FROM sessions
WHERE session_id = ?`, sessionID)

	var rec storage.SessionRecord
	var status string
	var pinned int
	var createdAt, updatedAt int64
	err := row.Scan(&rec.SessionID, &rec.ProjectID, &rec.SchemaID, &rec.Source,
		&rec.BaseSessionID, &status, &pinned, &rec.Version, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("scan session: %w", err)
	}
	rec.Status = session.Status(status)
	rec.Pinned = pinned != 0
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

// ListSessionIDs returns every projected session id, ordered.
func (s *Store) ListSessionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db(ctx).QueryContext(ctx,
		`SELECT session_id FROM sessions ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return ids, nil
}

// SetSessionPinned toggles the pinned marker.
func (s *Store) SetSessionPinned(ctx context.Context, sessionID string, pinned bool) error {
	return s.mutateSession(ctx, sessionID, `pinned = ?`, boolToInt(pinned))
}

// SetSessionStatus moves the session to the given status.
func (s *Store) SetSessionStatus(ctx context.Context, sessionID string, next session.Status) error {
	return s.mutateSession(ctx, sessionID, `status = ?`, string(next))
}

// mutateSession applies one column update, bumping the version counter so
// concurrent writers surface as lost-update conflicts instead of silent
// overwrites.
func (s *Store) mutateSession(ctx context.Context, sessionID string, assignment string, value any) error {
	query := fmt.Sprintf(`
UPDATE sessions
SET %s, version = version + 1, updated_at = ?
WHERE session_id = ?`, assignment)

	res, err := s.db(ctx).ExecContext(ctx, query, value, toMillis(s.now()), sessionID)
	if err != nil {
		return fmt.Errorf("update session %s: %w", sessionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check session update: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
