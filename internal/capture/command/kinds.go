package command

import "encoding/json"

// SessionCreate opens a new capture session for a project schema.
type SessionCreate struct {
	Envelope
	Payload SessionCreatePayload `json:"payload"`
}

// SessionCreatePayload carries the session creation parameters.
type SessionCreatePayload struct {
	ProjectID string `json:"project_id"`
	SchemaID  string `json:"schema_id"`
	Source    string `json:"source"`
}

// Descriptor implements Command.
func (c SessionCreate) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeSessionCreate, "")
}

// SessionCreateCorrection opens a correction session derived from an
// exported base session.
type SessionCreateCorrection struct {
	Envelope
	Payload SessionCreateCorrectionPayload `json:"payload"`
}

// SessionCreateCorrectionPayload carries the correction session parameters.
type SessionCreateCorrectionPayload struct {
	ProjectID     string `json:"project_id"`
	SchemaID      string `json:"schema_id"`
	BaseSessionID string `json:"base_session_id"`
}

// Descriptor implements Command.
func (c SessionCreateCorrection) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeSessionCreateCorrection, "")
}

// SessionLock permanently locks an exported session.
type SessionLock struct {
	Envelope
	Payload SessionLockPayload `json:"payload"`
}

// SessionLockPayload carries the lock parameters.
type SessionLockPayload struct {
	SessionID string  `json:"session_id"`
	Reason    *string `json:"reason,omitempty"`
}

// Descriptor implements Command.
func (c SessionLock) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeSessionLock, c.Payload.SessionID)
}

// SessionPin toggles the pinned marker on a session.
type SessionPin struct {
	Envelope
	Payload SessionPinPayload `json:"payload"`
}

// SessionPinPayload carries the pin toggle.
type SessionPinPayload struct {
	SessionID string `json:"session_id"`
	Pinned    bool   `json:"pinned"`
}

// Descriptor implements Command.
func (c SessionPin) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeSessionPin, c.Payload.SessionID)
}

// SessionExport exports a validated session's data.
type SessionExport struct {
	Envelope
	Payload SessionExportPayload `json:"payload"`
}

// SessionExportPayload carries the export parameters.
type SessionExportPayload struct {
	SessionID      string       `json:"session_id"`
	Format         ExportFormat `json:"format"`
	IncludeInVault bool         `json:"include_in_vault"`
	ExportPath     *string      `json:"export_path,omitempty"`
}

// Descriptor implements Command.
func (c SessionExport) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeSessionExport, c.Payload.SessionID)
}

// DocumentImport attaches uploaded blobs to a session as documents.
type DocumentImport struct {
	Envelope
	Payload DocumentImportPayload `json:"payload"`
}

// DocumentImportPayload carries the import parameters.
type DocumentImportPayload struct {
	SessionID string          `json:"session_id"`
	BlobIDs   []string        `json:"blob_ids"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// Descriptor implements Command.
func (c DocumentImport) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeDocumentImport, c.Payload.SessionID)
}

// DocumentConfirmDuplicate marks a document as a confirmed duplicate.
type DocumentConfirmDuplicate struct {
	Envelope
	Payload DocumentConfirmDuplicatePayload `json:"payload"`
}

// DocumentConfirmDuplicatePayload identifies the duplicate pair.
type DocumentConfirmDuplicatePayload struct {
	SessionID             string `json:"session_id"`
	DocumentID            string `json:"document_id"`
	DuplicateOfDocumentID string `json:"duplicate_of_document_id"`
}

// Descriptor implements Command.
func (c DocumentConfirmDuplicate) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeDocumentConfirmDup, c.Payload.SessionID)
}

// DocumentReprocess re-runs processing for a single document.
type DocumentReprocess struct {
	Envelope
	Payload DocumentReprocessPayload `json:"payload"`
}

// DocumentReprocessPayload carries the reprocess parameters.
type DocumentReprocessPayload struct {
	SessionID  string          `json:"session_id"`
	DocumentID string          `json:"document_id"`
	Params     json.RawMessage `json:"params"`
}

// Descriptor implements Command.
func (c DocumentReprocess) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeDocumentReprocess, c.Payload.SessionID)
}

// PageApplyPreprocessing applies preprocessing parameters to a page.
type PageApplyPreprocessing struct {
	Envelope
	Payload PageApplyPreprocessingPayload `json:"payload"`
}

// PageApplyPreprocessingPayload carries the preprocessing parameters.
type PageApplyPreprocessingPayload struct {
	SessionID string          `json:"session_id"`
	PageID    string          `json:"page_id"`
	Params    json.RawMessage `json:"params"`
}

// Descriptor implements Command.
func (c PageApplyPreprocessing) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypePagePreprocess, c.Payload.SessionID)
}

// ExtractionRun starts an extraction pass over a session.
type ExtractionRun struct {
	Envelope
	Payload ExtractionRunPayload `json:"payload"`
}

// ExtractionRunPayload carries the extraction parameters.
type ExtractionRunPayload struct {
	SessionID string          `json:"session_id"`
	Engine    string          `json:"engine"`
	Params    json.RawMessage `json:"params"`
}

// Descriptor implements Command.
func (c ExtractionRun) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeExtractionRun, c.Payload.SessionID)
}

// ExtractionRerun repeats extraction for a scoped target.
type ExtractionRerun struct {
	Envelope
	Payload ExtractionRerunPayload `json:"payload"`
}

// ExtractionRerunPayload carries the rerun parameters.
type ExtractionRerunPayload struct {
	SessionID string          `json:"session_id"`
	Scope     string          `json:"scope"`
	TargetID  string          `json:"target_id"`
	Params    json.RawMessage `json:"params"`
}

// Descriptor implements Command.
func (c ExtractionRerun) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeExtractionRerun, c.Payload.SessionID)
}

// FieldAssignValue sets a header field value on a document.
type FieldAssignValue struct {
	Envelope
	Payload FieldAssignValuePayload `json:"payload"`
}

// FieldAssignValuePayload carries the assignment.
type FieldAssignValuePayload struct {
	SessionID       string          `json:"session_id"`
	DocumentID      string          `json:"document_id"`
	SchemaFieldID   string          `json:"schema_field_id"`
	RawValue        string          `json:"raw_value"`
	NormalizedValue *string         `json:"normalized_value,omitempty"`
	Source          SourceType      `json:"source"`
	SourceRef       json.RawMessage `json:"source_ref"`
}

// Descriptor implements Command.
func (c FieldAssignValue) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeFieldAssignValue, c.Payload.SessionID)
}

// FieldLock toggles the lock on a field value.
type FieldLock struct {
	Envelope
	Payload FieldLockPayload `json:"payload"`
}

// FieldLockPayload carries the lock toggle.
type FieldLockPayload struct {
	SessionID    string `json:"session_id"`
	FieldValueID string `json:"field_value_id"`
	Locked       bool   `json:"locked"`
}

// Descriptor implements Command.
func (c FieldLock) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeFieldLock, c.Payload.SessionID)
}

// ItemAddRow inserts a line-item row into a document table.
type ItemAddRow struct {
	Envelope
	Payload ItemAddRowPayload `json:"payload"`
}

// ItemAddRowPayload carries the insertion point.
type ItemAddRowPayload struct {
	SessionID  string `json:"session_id"`
	DocumentID string `json:"document_id"`
	RowIndex   int32  `json:"row_index"`
}

// Descriptor implements Command.
func (c ItemAddRow) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeItemAddRow, c.Payload.SessionID)
}

// ItemDeleteRow removes a line-item row.
type ItemDeleteRow struct {
	Envelope
	Payload ItemDeleteRowPayload `json:"payload"`
}

// ItemDeleteRowPayload identifies the row.
type ItemDeleteRowPayload struct {
	SessionID string `json:"session_id"`
	ItemID    string `json:"item_id"`
}

// Descriptor implements Command.
func (c ItemDeleteRow) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeItemDeleteRow, c.Payload.SessionID)
}

// ItemAssignValue sets a cell value on a line-item row.
type ItemAssignValue struct {
	Envelope
	Payload ItemAssignValuePayload `json:"payload"`
}

// ItemAssignValuePayload carries the assignment.
type ItemAssignValuePayload struct {
	SessionID       string          `json:"session_id"`
	ItemID          string          `json:"item_id"`
	SchemaFieldID   string          `json:"schema_field_id"`
	RawValue        string          `json:"raw_value"`
	NormalizedValue *string         `json:"normalized_value,omitempty"`
	Source          SourceType      `json:"source"`
	SourceRef       json.RawMessage `json:"source_ref"`
}

// Descriptor implements Command.
func (c ItemAssignValue) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeItemAssignValue, c.Payload.SessionID)
}

// ItemLockRow toggles the lock on a line-item row.
type ItemLockRow struct {
	Envelope
	Payload ItemLockRowPayload `json:"payload"`
}

// ItemLockRowPayload carries the lock toggle.
type ItemLockRowPayload struct {
	SessionID string `json:"session_id"`
	ItemID    string `json:"item_id"`
	Locked    bool   `json:"locked"`
}

// Descriptor implements Command.
func (c ItemLockRow) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeItemLockRow, c.Payload.SessionID)
}

// ExtraAddRow inserts a row into an auxiliary table.
type ExtraAddRow struct {
	Envelope
	Payload ExtraAddRowPayload `json:"payload"`
}

// ExtraAddRowPayload carries the insertion point.
type ExtraAddRowPayload struct {
	SessionID  string `json:"session_id"`
	DocumentID string `json:"document_id"`
	TableName  string `json:"table_name"`
	RowIndex   int32  `json:"row_index"`
}

// Descriptor implements Command.
func (c ExtraAddRow) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeExtraAddRow, c.Payload.SessionID)
}

// ExtraAssignValue sets a cell value on an auxiliary table row.
type ExtraAssignValue struct {
	Envelope
	Payload ExtraAssignValuePayload `json:"payload"`
}

// ExtraAssignValuePayload carries the assignment.
type ExtraAssignValuePayload struct {
	SessionID       string          `json:"session_id"`
	ExtraRowID      string          `json:"extra_row_id"`
	SchemaFieldID   string          `json:"schema_field_id"`
	RawValue        string          `json:"raw_value"`
	NormalizedValue *string         `json:"normalized_value,omitempty"`
	Source          SourceType      `json:"source"`
	SourceRef       json.RawMessage `json:"source_ref"`
}

// Descriptor implements Command.
func (c ExtraAssignValue) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeExtraAssignValue, c.Payload.SessionID)
}

// RuleAddAnchor registers an anchor extraction rule on a project.
type RuleAddAnchor struct {
	Envelope
	Payload RuleAddAnchorPayload `json:"payload"`
}

// RuleAddAnchorPayload carries the rule definition.
type RuleAddAnchorPayload struct {
	ProjectID     string          `json:"project_id"`
	SchemaFieldID string          `json:"schema_field_id"`
	RuleJSON      json.RawMessage `json:"rule_json"`
}

// Descriptor implements Command.
func (c RuleAddAnchor) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeRuleAddAnchor, "")
}

// RuleDisableAnchor toggles an anchor rule's enabled flag.
type RuleDisableAnchor struct {
	Envelope
	Payload RuleDisableAnchorPayload `json:"payload"`
}

// RuleDisableAnchorPayload identifies the rule and target state.
type RuleDisableAnchorPayload struct {
	ProjectID string `json:"project_id"`
	AnchorID  string `json:"anchor_id"`
	Enabled   bool   `json:"enabled"`
}

// Descriptor implements Command.
func (c RuleDisableAnchor) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeRuleDisableAnchor, "")
}

// RuleAddDictionary registers a dictionary normalization rule on a project.
type RuleAddDictionary struct {
	Envelope
	Payload RuleAddDictionaryPayload `json:"payload"`
}

// RuleAddDictionaryPayload carries the rule definition.
type RuleAddDictionaryPayload struct {
	ProjectID    string          `json:"project_id"`
	Scope        DictionaryScope `json:"scope"`
	MatchType    MatchType       `json:"match_type"`
	MatchValue   string          `json:"match_value"`
	ReplaceValue string          `json:"replace_value"`
}

// Descriptor implements Command.
func (c RuleAddDictionary) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeRuleAddDictionary, "")
}

// RuleDisableDictionary toggles a dictionary rule's enabled flag.
type RuleDisableDictionary struct {
	Envelope
	Payload RuleDisableDictionaryPayload `json:"payload"`
}

// RuleDisableDictionaryPayload identifies the rule and target state.
type RuleDisableDictionaryPayload struct {
	ProjectID        string `json:"project_id"`
	DictionaryRuleID string `json:"dictionary_rule_id"`
	Enabled          bool   `json:"enabled"`
}

// Descriptor implements Command.
func (c RuleDisableDictionary) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeRuleDisableDictionary, "")
}

// ReviewResolveTask resolves an open review task.
type ReviewResolveTask struct {
	Envelope
	Payload ReviewResolveTaskPayload `json:"payload"`
}

// ReviewResolveTaskPayload carries the resolution.
type ReviewResolveTaskPayload struct {
	SessionID    string `json:"session_id"`
	ReviewTaskID string `json:"review_task_id"`
	Resolution   string `json:"resolution"`
}

// Descriptor implements Command.
func (c ReviewResolveTask) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeReviewResolveTask, c.Payload.SessionID)
}

// ReviewSkipTask skips an open review task with a reason.
type ReviewSkipTask struct {
	Envelope
	Payload ReviewSkipTaskPayload `json:"payload"`
}

// ReviewSkipTaskPayload carries the skip reason.
type ReviewSkipTaskPayload struct {
	SessionID    string `json:"session_id"`
	ReviewTaskID string `json:"review_task_id"`
	Reason       string `json:"reason"`
}

// Descriptor implements Command.
func (c ReviewSkipTask) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeReviewSkipTask, c.Payload.SessionID)
}

// ReviewBatchResolve resolves every open review task for one field key.
type ReviewBatchResolve struct {
	Envelope
	Payload ReviewBatchResolvePayload `json:"payload"`
}

// ReviewBatchResolvePayload carries the batch action.
type ReviewBatchResolvePayload struct {
	SessionID string `json:"session_id"`
	FieldKey  string `json:"field_key"`
	Action    string `json:"action"`
}

// Descriptor implements Command.
func (c ReviewBatchResolve) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeReviewBatchResolve, c.Payload.SessionID)
}

// ValidationRun evaluates validation rules over a session.
type ValidationRun struct {
	Envelope
	Payload ValidationRunPayload `json:"payload"`
}

// ValidationRunPayload selects the rule scope.
type ValidationRunPayload struct {
	SessionID string              `json:"session_id"`
	RuleScope ValidationRuleScope `json:"rule_scope"`
}

// Descriptor implements Command.
func (c ValidationRun) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeValidationRun, c.Payload.SessionID)
}

// ValidationOverride records a manual override of a validation result.
type ValidationOverride struct {
	Envelope
	Payload ValidationOverridePayload `json:"payload"`
}

// ValidationOverridePayload carries the override reason.
type ValidationOverridePayload struct {
	SessionID          string `json:"session_id"`
	ValidationResultID string `json:"validation_result_id"`
	Reason             string `json:"reason"`
}

// Descriptor implements Command.
func (c ValidationOverride) Descriptor() Descriptor {
	return c.Envelope.descriptor(TypeValidationOverride, c.Payload.SessionID)
}
