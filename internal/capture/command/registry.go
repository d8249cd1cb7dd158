package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrCommandIDRequired indicates a missing command id.
	ErrCommandIDRequired = errors.New("command id is required")
	// ErrActorRequired indicates a missing actor identity.
	ErrActorRequired = errors.New("actor is required")
	// ErrTypeRequired indicates a missing command type.
	ErrTypeRequired = errors.New("command type is required")
	// ErrTypeUnknown indicates an unregistered command type.
	ErrTypeUnknown = errors.New("command type is not registered")
	// ErrSessionIDRequired indicates a missing session id on a session-scoped command.
	ErrSessionIDRequired = errors.New("session id is required")
	// ErrSessionIDForbidden indicates a session id on a project-scoped command.
	ErrSessionIDForbidden = errors.New("session id must be empty for project-scoped commands")
)

// Definition registers metadata for a command type.
type Definition struct {
	Type Type
	// SessionScoped reports whether the command targets an existing session
	// and must therefore carry a session id.
	SessionScoped bool
}

// Registry stores command definitions and validates command envelopes.
type Registry struct {
	definitions map[Type]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds a new command type definition to the registry.
func (r *Registry) Register(def Definition) error {
	if r == nil {
		return errors.New("registry is required")
	}
	def.Type = Type(strings.TrimSpace(string(def.Type)))
	if def.Type == "" {
		return ErrTypeRequired
	}
	if r.definitions == nil {
		r.definitions = make(map[Type]Definition)
	}
	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("command type already registered: %s", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// ValidateForDispatch checks a command's envelope against its registered
// definition and returns the normalized descriptor.
func (r *Registry) ValidateForDispatch(cmd Command) (Descriptor, error) {
	if cmd == nil {
		return Descriptor{}, ErrTypeRequired
	}
	desc := cmd.Descriptor()

	desc.CommandID = strings.TrimSpace(desc.CommandID)
	if desc.CommandID == "" {
		return Descriptor{}, ErrCommandIDRequired
	}
	desc.Actor = strings.TrimSpace(desc.Actor)
	if desc.Actor == "" {
		return Descriptor{}, ErrActorRequired
	}
	if desc.Type == "" {
		return Descriptor{}, ErrTypeRequired
	}
	def, ok := r.Definition(desc.Type)
	if !ok {
		return Descriptor{}, ErrTypeUnknown
	}

	desc.SessionID = strings.TrimSpace(desc.SessionID)
	if def.SessionScoped && desc.SessionID == "" {
		return Descriptor{}, ErrSessionIDRequired
	}
	if !def.SessionScoped && desc.SessionID != "" {
		return Descriptor{}, ErrSessionIDForbidden
	}
	return desc, nil
}

// Definition returns the command definition for a given type.
func (r *Registry) Definition(cmdType Type) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	def, ok := r.definitions[cmdType]
	return def, ok
}

// ListDefinitions returns a stable, sorted snapshot of registered definitions.
func (r *Registry) ListDefinitions() []Definition {
	if r == nil || len(r.definitions) == 0 {
		return nil
	}
	definitions := make([]Definition, 0, len(r.definitions))
	for _, definition := range r.definitions {
		definitions = append(definitions, definition)
	}
	sort.Slice(definitions, func(i, j int) bool {
		return string(definitions[i].Type) < string(definitions[j].Type)
	})
	return definitions
}

// DefaultRegistry returns a registry populated with every command type in
// the closed set.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	for _, def := range []Definition{
		{Type: TypeSessionCreate},
		{Type: TypeSessionCreateCorrection},
		{Type: TypeSessionLock, SessionScoped: true},
		{Type: TypeSessionPin, SessionScoped: true},
		{Type: TypeSessionExport, SessionScoped: true},
		{Type: TypeDocumentImport, SessionScoped: true},
		{Type: TypeDocumentConfirmDup, SessionScoped: true},
		{Type: TypeDocumentReprocess, SessionScoped: true},
		{Type: TypePagePreprocess, SessionScoped: true},
		{Type: TypeExtractionRun, SessionScoped: true},
		{Type: TypeExtractionRerun, SessionScoped: true},
		{Type: TypeFieldAssignValue, SessionScoped: true},
		{Type: TypeFieldLock, SessionScoped: true},
		{Type: TypeItemAddRow, SessionScoped: true},
		{Type: TypeItemDeleteRow, SessionScoped: true},
		{Type: TypeItemAssignValue, SessionScoped: true},
		{Type: TypeItemLockRow, SessionScoped: true},
		{Type: TypeExtraAddRow, SessionScoped: true},
		{Type: TypeExtraAssignValue, SessionScoped: true},
		{Type: TypeRuleAddAnchor},
		{Type: TypeRuleDisableAnchor},
		{Type: TypeRuleAddDictionary},
		{Type: TypeRuleDisableDictionary},
		{Type: TypeReviewResolveTask, SessionScoped: true},
		{Type: TypeReviewSkipTask, SessionScoped: true},
		{Type: TypeReviewBatchResolve, SessionScoped: true},
		{Type: TypeValidationRun, SessionScoped: true},
		{Type: TypeValidationOverride, SessionScoped: true},
	} {
		if err := registry.Register(def); err != nil {
			panic(err)
		}
	}
	return registry
}
