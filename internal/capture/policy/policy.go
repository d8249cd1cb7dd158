// Package policy gates commands against the session lifecycle: which
// command types may run while a session sits in a given status, and which
// status transitions are legal.
package policy

import (
	"fmt"

	"github.com/tabulara/tabulara/internal/capture/command"
	"github.com/tabulara/tabulara/internal/capture/session"
	apperrors "github.com/tabulara/tabulara/internal/platform/errors"
)

// lockExempt lists the command types that remain runnable on a locked
// session. Every other type counts as mutating and is denied outright.
var lockExempt = typeSet(
	command.TypeSessionPin,
	command.TypeSessionCreateCorrection,
	command.TypeRuleAddAnchor,
	command.TypeRuleDisableAnchor,
	command.TypeRuleAddDictionary,
	command.TypeRuleDisableDictionary,
)

// allowedByStatus is the product policy matrix. The sets are data, not
// derived logic, and are reproduced exactly.
var allowedByStatus = map[session.Status]map[command.Type]struct{}{
	session.StatusCreated: typeSet(
		command.TypeDocumentImport,
		command.TypeSessionPin,
		command.TypeRuleAddAnchor,
		command.TypeRuleDisableAnchor,
		command.TypeRuleAddDictionary,
		command.TypeRuleDisableDictionary,
	),
	session.StatusProcessing: typeSet(
		command.TypeSessionPin,
		command.TypeDocumentImport,
		command.TypeDocumentConfirmDup,
		command.TypePagePreprocess,
		command.TypeDocumentReprocess,
		command.TypeExtractionRun,
		command.TypeExtractionRerun,
		command.TypeFieldAssignValue,
		command.TypeFieldLock,
		command.TypeItemAddRow,
		command.TypeItemDeleteRow,
		command.TypeItemAssignValue,
		command.TypeItemLockRow,
		command.TypeExtraAddRow,
		command.TypeExtraAssignValue,
		command.TypeReviewResolveTask,
		command.TypeValidationRun,
		command.TypeRuleAddAnchor,
		command.TypeRuleDisableAnchor,
		command.TypeRuleAddDictionary,
		command.TypeRuleDisableDictionary,
	),
	session.StatusReview: typeSet(
		command.TypeSessionPin,
		command.TypeDocumentImport,
		command.TypeDocumentConfirmDup,
		command.TypePagePreprocess,
		command.TypeDocumentReprocess,
		command.TypeExtractionRun,
		command.TypeExtractionRerun,
		command.TypeFieldAssignValue,
		command.TypeFieldLock,
		command.TypeItemAddRow,
		command.TypeItemDeleteRow,
		command.TypeItemAssignValue,
		command.TypeItemLockRow,
		command.TypeExtraAddRow,
		command.TypeExtraAssignValue,
		command.TypeReviewResolveTask,
		command.TypeReviewSkipTask,
		command.TypeReviewBatchResolve,
		command.TypeValidationRun,
		command.TypeValidationOverride,
		command.TypeRuleAddAnchor,
		command.TypeRuleDisableAnchor,
		command.TypeRuleAddDictionary,
		command.TypeRuleDisableDictionary,
	),
	session.StatusValidated: typeSet(
		command.TypeSessionPin,
		command.TypeDocumentConfirmDup,
		command.TypeFieldAssignValue,
		command.TypeItemAddRow,
		command.TypeItemDeleteRow,
		command.TypeItemAssignValue,
		command.TypeExtraAddRow,
		command.TypeExtraAssignValue,
		command.TypeReviewResolveTask,
		command.TypeValidationRun,
		command.TypeValidationOverride,
		command.TypeSessionExport,
		command.TypeRuleAddAnchor,
		command.TypeRuleDisableAnchor,
		command.TypeRuleAddDictionary,
		command.TypeRuleDisableDictionary,
	),
	session.StatusExported: typeSet(
		command.TypeSessionPin,
		command.TypeSessionCreateCorrection,
		command.TypeSessionLock,
		command.TypeRuleAddAnchor,
		command.TypeRuleDisableAnchor,
		command.TypeRuleAddDictionary,
		command.TypeRuleDisableDictionary,
	),
	session.StatusLocked: typeSet(
		command.TypeSessionPin,
		command.TypeSessionCreateCorrection,
		command.TypeRuleAddAnchor,
		command.TypeRuleDisableAnchor,
		command.TypeRuleAddDictionary,
		command.TypeRuleDisableDictionary,
	),
}

// Matrix applies the allow-matrix and the lifecycle edge set.
type Matrix struct{}

// NewMatrix creates the default transition policy.
func NewMatrix() Matrix {
	return Matrix{}
}

// AssertAllowed checks that a command type may run while the session sits
// in the given status. A locked session denies every mutating command with
// a dedicated error code before the matrix is consulted.
func (Matrix) AssertAllowed(cmdType command.Type, status session.Status) error {
	if status == session.StatusLocked {
		if _, exempt := lockExempt[cmdType]; !exempt {
			return apperrors.WithMetadata(
				apperrors.CodeSessionLocked,
				fmt.Sprintf("mutating command %s denied for locked session", cmdType),
				map[string]string{"CommandType": string(cmdType)},
			)
		}
	}

	if _, ok := allowedByStatus[status][cmdType]; !ok {
		return apperrors.WithMetadata(
			apperrors.CodeCommandNotAllowedInState,
			fmt.Sprintf("command %s not allowed while session is %s", cmdType, status),
			map[string]string{"CommandType": string(cmdType), "Status": string(status)},
		)
	}
	return nil
}

// AssertTransition checks that a proposed status move is legal.
func (Matrix) AssertTransition(from, to session.Status) error {
	return session.AssertTransition(from, to)
}

func typeSet(types ...command.Type) map[command.Type]struct{} {
	set := make(map[command.Type]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}
