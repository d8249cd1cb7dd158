// Package session defines the capture session lifecycle status and the legal
// transitions between statuses.
//
// A capture session is the aggregate that commands address: documents are
// imported into it, extraction and review happen inside it, and export and
// locking close it out. Exactly one status is current per session, and the
// status gates which commands may run.
package session

import (
	"fmt"

	apperrors "github.com/tabulara/tabulara/internal/platform/errors"
)

// Status is the lifecycle status of a capture session.
type Status string

const (
	// StatusCreated is the initial status after session creation.
	StatusCreated Status = "created"
	// StatusProcessing covers import, preprocessing, and extraction work.
	StatusProcessing Status = "processing"
	// StatusReview covers human review of extracted values.
	StatusReview Status = "review"
	// StatusValidated indicates validation rules have passed or been overridden.
	StatusValidated Status = "validated"
	// StatusExported indicates the session data has been exported.
	StatusExported Status = "exported"
	// StatusLocked is terminal; only a fixed set of non-mutating commands run.
	StatusLocked Status = "locked"
)

// Transition proposes a move between two lifecycle statuses.
type Transition struct {
	From Status
	To   Status
}

// Valid reports whether the status is one of the known lifecycle values.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusProcessing, StatusReview, StatusValidated, StatusExported, StatusLocked:
		return true
	default:
		return false
	}
}

// Parse converts a stored status string into a Status.
func Parse(value string) (Status, error) {
	status := Status(value)
	if !status.Valid() {
		return "", apperrors.WithMetadata(
			apperrors.CodeInternal,
			fmt.Sprintf("unknown session status %q", value),
			map[string]string{"Status": value},
		)
	}
	return status, nil
}

// legalEdges is the fixed set of non-identity status transitions.
// The pairs encode product policy and are reproduced as data, not derived.
var legalEdges = map[Transition]struct{}{
	{From: StatusCreated, To: StatusProcessing}: {},
	{From: StatusProcessing, To: StatusReview}:  {},
	{From: StatusReview, To: StatusProcessing}:  {},
	{From: StatusReview, To: StatusValidated}:   {},
	{From: StatusValidated, To: StatusReview}:   {},
	{From: StatusValidated, To: StatusExported}: {},
	{From: StatusExported, To: StatusLocked}:    {},
}

// AssertTransition validates a proposed status move.
//
// Identity transitions are always legal. There is no edge back out of Locked.
func AssertTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if _, ok := legalEdges[Transition{From: from, To: to}]; ok {
		return nil
	}
	return apperrors.WithMetadata(
		apperrors.CodeInvalidStateTransition,
		fmt.Sprintf("illegal session status transition %s to %s", from, to),
		map[string]string{"From": string(from), "To": string(to)},
	)
}
