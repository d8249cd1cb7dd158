// Package command defines the closed set of capture commands, their shared
// envelope, and the registry describing each command type.
package command

import "time"

// Type identifies the command type tag.
type Type string

// The full set of command type tags. The set is closed: the registry, the
// transition policy, and the event factory all enumerate it, so adding a
// type means updating each of those tables.
const (
	TypeSessionCreate           Type = "session.create"
	TypeSessionCreateCorrection Type = "session.create_correction"
	TypeSessionLock             Type = "session.lock"
	TypeSessionPin              Type = "session.pin"
	TypeSessionExport           Type = "session.export"
	TypeDocumentImport          Type = "document.import"
	TypeDocumentConfirmDup      Type = "document.confirm_duplicate"
	TypeDocumentReprocess       Type = "document.reprocess"
	TypePagePreprocess          Type = "page.apply_preprocessing"
	TypeExtractionRun           Type = "extraction.run"
	TypeExtractionRerun         Type = "extraction.rerun"
	TypeFieldAssignValue        Type = "field.assign_value"
	TypeFieldLock               Type = "field.lock"
	TypeItemAddRow              Type = "item.add_row"
	TypeItemDeleteRow           Type = "item.delete_row"
	TypeItemAssignValue         Type = "item.assign_value"
	TypeItemLockRow             Type = "item.lock_row"
	TypeExtraAddRow             Type = "extra.add_row"
	TypeExtraAssignValue        Type = "extra.assign_value"
	TypeRuleAddAnchor           Type = "rule.add_anchor"
	TypeRuleDisableAnchor       Type = "rule.disable_anchor"
	TypeRuleAddDictionary       Type = "rule.add_dictionary"
	TypeRuleDisableDictionary   Type = "rule.disable_dictionary"
	TypeReviewResolveTask       Type = "review.resolve_task"
	TypeReviewSkipTask          Type = "review.skip_task"
	TypeReviewBatchResolve      Type = "review.batch_resolve_field"
	TypeValidationRun           Type = "validation.run"
	TypeValidationOverride      Type = "validation.override"
)

// Command is implemented by every command kind in the closed set.
type Command interface {
	// Descriptor returns the uniform metadata shared by every kind.
	Descriptor() Descriptor
}

// Descriptor is the kind-independent view of a command.
type Descriptor struct {
	CommandID string
	Type      Type
	Actor     string
	IssuedAt  time.Time
	// SessionID is empty for project-scoped commands.
	SessionID string
}

// Envelope carries the fields shared by every command kind. Concrete kinds
// embed it alongside their typed payload.
type Envelope struct {
	CommandID string    `json:"command_id"`
	Actor     string    `json:"actor"`
	IssuedAt  time.Time `json:"issued_at"`
}

func (e Envelope) descriptor(t Type, sessionID string) Descriptor {
	return Descriptor{
		CommandID: e.CommandID,
		Type:      t,
		Actor:     e.Actor,
		IssuedAt:  e.IssuedAt,
		SessionID: sessionID,
	}
}
