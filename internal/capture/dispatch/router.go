package dispatch

import (
	"errors"
	"fmt"

	"github.com/tabulara/tabulara/internal/capture/command"
	apperrors "github.com/tabulara/tabulara/internal/platform/errors"
)

// ErrHandlerRequired indicates a nil handler registration.
var ErrHandlerRequired = errors.New("handler is required")

// Router maps a command type to the one handler that claims it. Claims are
// recorded at registration against the registry's full type set, so a later
// handler accidentally claiming an already-routed type fails loudly instead
// of silently shadowing the first.
type Router struct {
	registry *command.Registry
	claims   map[command.Type]Handler
}

// NewRouter creates a router over the registry's command types.
func NewRouter(registry *command.Registry) *Router {
	return &Router{
		registry: registry,
		claims:   make(map[command.Type]Handler),
	}
}

// Register records the types the handler claims. A handler claiming a type
// another handler already routes is a registration error.
func (r *Router) Register(handler Handler) error {
	if handler == nil {
		return ErrHandlerRequired
	}
	claimed := 0
	for _, def := range r.registry.ListDefinitions() {
		if !handler.CanHandle(def.Type) {
			continue
		}
		if _, taken := r.claims[def.Type]; taken {
			return fmt.Errorf("command type %s already routed", def.Type)
		}
		r.claims[def.Type] = handler
		claimed++
	}
	if claimed == 0 {
		return fmt.Errorf("handler claims no registered command type")
	}
	return nil
}

// Resolve returns the handler routing the command type.
func (r *Router) Resolve(cmdType command.Type) (Handler, error) {
	handler, ok := r.claims[cmdType]
	if !ok {
		return nil, apperrors.WithMetadata(
			apperrors.CodeNotFound,
			fmt.Sprintf("no handler registered for command type %s", cmdType),
			map[string]string{"CommandType": string(cmdType)},
		)
	}
	return handler, nil
}
