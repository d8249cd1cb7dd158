package event

import (
	"fmt"
	"time"

	"github.com/tabulara/tabulara/internal/capture/command"
	"github.com/tabulara/tabulara/internal/platform/id"
)

// TypeReviewTaskRequested tags events recording a requested review action.
const TypeReviewTaskRequested = "review.task_requested"

// Factory derives journal events from an accepted command outcome. Every
// accepted command yields at least one event; review actions yield one
// additional event each.
type Factory struct {
	// Now stamps event timestamps; defaults to time.Now.
	Now func() time.Time
	// NewID mints causally ordered event ids; defaults to id.NewOrderedID.
	NewID func() (string, error)
}

// NewFactory creates a factory with the default clock and id source.
func NewFactory() *Factory {
	return &Factory{Now: time.Now, NewID: id.NewOrderedID}
}

// Derive builds the events caused by one accepted command. The primary
// event carries the command's type tag, annotated with the target status
// when the outcome moved the session; its data holds the session id (when
// present) and the outcome's state delta.
func (f *Factory) Derive(desc command.Descriptor, outcome command.Outcome) ([]Envelope, error) {
	timestamp := f.Now().UTC()

	data := map[string]any{
		"summary": outcome.Delta.Summary,
	}
	if desc.SessionID != "" {
		data["session_id"] = desc.SessionID
	}
	if len(outcome.Delta.Data) > 0 {
		data["delta"] = outcome.Delta.Data
	}

	eventType := string(desc.Type) + ".applied"
	if outcome.Transition != nil {
		eventType = fmt.Sprintf("%s.status_%s", desc.Type, outcome.Transition.To)
	}

	eventID, err := f.NewID()
	if err != nil {
		return nil, fmt.Errorf("mint event id: %w", err)
	}

	events := []Envelope{{
		EventID:   eventID,
		CausedBy:  desc.CommandID,
		Type:      eventType,
		Timestamp: timestamp,
		Data:      data,
	}}

	for _, action := range outcome.ReviewActions {
		actionData := map[string]any{
			"kind": action.Kind,
		}
		if desc.SessionID != "" {
			actionData["session_id"] = desc.SessionID
		}
		if len(action.Payload) > 0 {
			actionData["payload"] = action.Payload
		}
		actionID, err := f.NewID()
		if err != nil {
			return nil, fmt.Errorf("mint event id: %w", err)
		}
		events = append(events, Envelope{
			EventID:   actionID,
			CausedBy:  desc.CommandID,
			Type:      TypeReviewTaskRequested,
			Timestamp: timestamp,
			Data:      actionData,
		})
	}

	return events, nil
}
