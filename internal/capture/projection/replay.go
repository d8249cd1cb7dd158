package projection

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabulara/tabulara/internal/capture/session"
	"github.com/tabulara/tabulara/internal/capture/storage"
)

const replayPageSize = 200

// EventSource pages a stream's journal records in sequence order.
type EventSource interface {
	ListEvents(ctx context.Context, streamID string, afterSeq int64, limit int) ([]storage.EventRecord, error)
}

// ReplayStream folds a session's journal stream back into its lifecycle
// status. It returns the last status-bearing event's target status (empty
// when the stream carries no transition) and the last sequence read.
func ReplayStream(ctx context.Context, source EventSource, streamID string) (session.Status, int64, error) {
	if source == nil {
		return "", 0, fmt.Errorf("event source is not configured")
	}
	if strings.TrimSpace(streamID) == "" {
		return "", 0, fmt.Errorf("stream id is required")
	}

	var status session.Status
	var lastSeq int64
	for {
		records, err := source.ListEvents(ctx, streamID, lastSeq, replayPageSize)
		if err != nil {
			return status, lastSeq, err
		}
		if len(records) == 0 {
			return status, lastSeq, nil
		}
		for _, record := range records {
			lastSeq = record.Seq
			if next, ok := statusFromEventType(record.Type); ok {
				status = next
			}
		}
	}
}

// RebuildSessionStatus replays a session's stream and rewrites its
// projected status. Streams without transition events leave the projection
// untouched.
func RebuildSessionStatus(ctx context.Context, source EventSource, store Store, sessionID string) (session.Status, error) {
	status, _, err := ReplayStream(ctx, source, sessionID)
	if err != nil {
		return "", err
	}
	if status == "" {
		return "", nil
	}
	if err := store.SetSessionStatus(ctx, sessionID, status); err != nil {
		return "", fmt.Errorf("set status: %w", err)
	}
	return status, nil
}

// statusFromEventType extracts the target status from a ".status_<s>"
// event type tag.
func statusFromEventType(eventType string) (session.Status, bool) {
	const marker = ".status_"
	idx := strings.LastIndex(eventType, marker)
	if idx < 0 {
		return "", false
	}
	status, err := session.Parse(eventType[idx+len(marker):])
	if err != nil {
		return "", false
	}
	return status, true
}
