package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"

	"github.com/tabulara/tabulara/internal/capture/command"
	"github.com/tabulara/tabulara/internal/capture/session"
	apperrors "github.com/tabulara/tabulara/internal/platform/errors"
)

const tracerName = "github.com/tabulara/tabulara/internal/capture/dispatch"

var (
	// ErrCommandRegistryRequired indicates a missing command registry.
	ErrCommandRegistryRequired = errors.New("command registry is required")
	// ErrRouterRequired indicates a missing router.
	ErrRouterRequired = errors.New("router is required")
	// ErrPolicyRequired indicates a missing transition policy.
	ErrPolicyRequired = errors.New("transition policy is required")
	// ErrIdempotencyRequired indicates a missing idempotency store.
	ErrIdempotencyRequired = errors.New("idempotency store is required")
	// ErrSessionReaderRequired indicates a missing session reader.
	ErrSessionReaderRequired = errors.New("session reader is required")
	// ErrProjectionWriterRequired indicates a missing projection writer.
	ErrProjectionWriterRequired = errors.New("projection writer is required")
	// ErrEventStoreRequired indicates a missing event store.
	ErrEventStoreRequired = errors.New("event store is required")
	// ErrEventFactoryRequired indicates a missing event factory.
	ErrEventFactoryRequired = errors.New("event factory is required")
	// ErrInvariantEngineRequired indicates a missing invariant engine.
	ErrInvariantEngineRequired = errors.New("invariant engine is required")
	// ErrUnitOfWorkRequired indicates a missing unit of work.
	ErrUnitOfWorkRequired = errors.New("unit of work is required")
)

// Dispatcher runs the full dispatch cycle for one command. All collaborator
// fields are required.
type Dispatcher struct {
	Commands    *command.Registry
	Router      *Router
	Policy      TransitionPolicy
	Idempotency IdempotencyStore
	Sessions    SessionReader
	Projections ProjectionWriter
	Events      EventStore
	Factory     EventFactory
	Invariants  InvariantEngine
	UnitOfWork  UnitOfWork
	// Now stamps the handler invocation; defaults to time.Now.
	Now func() time.Time
}

func (d Dispatcher) validate() error {
	switch {
	case d.Commands == nil:
		return ErrCommandRegistryRequired
	case d.Router == nil:
		return ErrRouterRequired
	case d.Policy == nil:
		return ErrPolicyRequired
	case d.Idempotency == nil:
		return ErrIdempotencyRequired
	case d.Sessions == nil:
		return ErrSessionReaderRequired
	case d.Projections == nil:
		return ErrProjectionWriterRequired
	case d.Events == nil:
		return ErrEventStoreRequired
	case d.Factory == nil:
		return ErrEventFactoryRequired
	case d.Invariants == nil:
		return ErrInvariantEngineRequired
	case d.UnitOfWork == nil:
		return ErrUnitOfWorkRequired
	}
	return nil
}

// Dispatch runs one command to completion. A repeated command id with an
// identical payload replays the stored result; a repeated id with a
// different payload fails with an idempotency conflict. Once a command
// passes the idempotency begin, it runs to either commit or mark-failed.
func (d Dispatcher) Dispatch(ctx context.Context, cmd command.Command) (Result, error) {
	if err := d.validate(); err != nil {
		return Result{}, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "capture.dispatch")
	defer span.End()

	desc, err := d.Commands.ValidateForDispatch(cmd)
	if err != nil {
		span.SetStatus(otelcodes.Error, "validate")
		return Result{}, apperrors.Wrap(apperrors.CodePreconditionFailed, "validate command envelope", err)
	}
	span.SetAttributes(
		attribute.String("command.type", string(desc.Type)),
		attribute.String("command.id", desc.CommandID),
	)
	if desc.SessionID != "" {
		span.SetAttributes(attribute.String("session.id", desc.SessionID))
	}

	requestHash, err := command.RequestHash(cmd)
	if err != nil {
		span.SetStatus(otelcodes.Error, "hash")
		return Result{}, apperrors.Wrap(apperrors.CodePreconditionFailed, "hash command for idempotency", err)
	}

	begin, err := d.Idempotency.Begin(ctx, desc, requestHash)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "idempotency begin")
		return Result{}, err
	}
	switch begin.State {
	case BeginReplay:
		span.SetAttributes(attribute.Bool("dispatch.replay", true))
		replayed := *begin.Prior
		replayed.IdempotentReplay = true
		return replayed, nil
	case BeginConflict:
		span.SetStatus(otelcodes.Error, "idempotency conflict")
		return Result{}, apperrors.WithMetadata(
			apperrors.CodeIdempotencyConflict,
			fmt.Sprintf("command id %s already used with a different payload", desc.CommandID),
			map[string]string{"CommandID": desc.CommandID},
		)
	}

	result, err := d.execute(ctx, desc, cmd)
	if err != nil {
		// Best-effort bookkeeping; the dispatch error is returned regardless.
		_ = d.Idempotency.MarkFailed(ctx, desc.CommandID, err)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "execute")
		return Result{}, err
	}

	if err := d.Idempotency.Commit(ctx, desc.CommandID, result); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "idempotency commit")
		return Result{}, err
	}
	return result, nil
}

// execute runs the unit-of-work section of the dispatch cycle.
func (d Dispatcher) execute(ctx context.Context, desc command.Descriptor, cmd command.Command) (Result, error) {
	var result Result
	err := d.UnitOfWork.WithinTx(ctx, func(ctx context.Context) error {
		var current *session.Status
		if desc.SessionID != "" {
			status, err := d.Sessions.GetStatus(ctx, desc.SessionID)
			if err != nil {
				return err
			}
			if err := d.Policy.AssertAllowed(desc.Type, status); err != nil {
				return err
			}
			current = &status
		}

		handler, err := d.Router.Resolve(desc.Type)
		if err != nil {
			return err
		}

		now := d.Now
		if now == nil {
			now = time.Now
		}
		outcome, err := handler.Handle(ctx, Invocation{Now: now().UTC(), Actor: desc.Actor}, cmd)
		if err != nil {
			return err
		}

		if current != nil && outcome.Transition != nil {
			if err := d.Policy.AssertTransition(*current, outcome.Transition.To); err != nil {
				return err
			}
		}

		if err := d.Projections.ApplyStateDelta(ctx, desc, outcome.Delta); err != nil {
			return err
		}
		if err := d.Projections.ApplyReviewActions(ctx, desc, outcome.ReviewActions); err != nil {
			return err
		}
		if err := d.Projections.ApplyValidationTrigger(ctx, desc, outcome.Validation); err != nil {
			return err
		}
		if desc.SessionID != "" && outcome.Transition != nil {
			if err := d.Projections.UpdateSessionStatus(ctx, desc.SessionID, outcome.Transition.To); err != nil {
				return err
			}
		}

		events, err := d.Factory.Derive(desc, outcome)
		if err != nil {
			return fmt.Errorf("derive events: %w", err)
		}
		if len(events) == 0 {
			return apperrors.WithMetadata(
				apperrors.CodeInvariantViolation,
				"accepted command must emit at least one event",
				map[string]string{"CommandType": string(desc.Type)},
			)
		}
		if err := d.Events.Append(ctx, events); err != nil {
			return err
		}

		if err := d.Invariants.AssertAll(ctx, desc.SessionID); err != nil {
			return err
		}

		eventIDs := make([]string, 0, len(events))
		for _, evt := range events {
			eventIDs = append(eventIDs, evt.EventID)
		}
		var resulting session.Status
		switch {
		case outcome.Transition != nil:
			resulting = outcome.Transition.To
		case current != nil:
			resulting = *current
		}

		result = Result{
			CommandID:     desc.CommandID,
			EventIDs:      eventIDs,
			SessionStatus: resulting,
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}
