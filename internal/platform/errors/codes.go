// Package errors provides structured error handling for the capture kernel.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Dispatch errors
	CodeSessionLocked            Code = "SESSION_LOCKED"
	CodeInvalidStateTransition   Code = "INVALID_STATE_TRANSITION"
	CodeCommandNotAllowedInState Code = "COMMAND_NOT_ALLOWED_IN_STATE"
	CodeIdempotencyConflict      Code = "IDEMPOTENCY_CONFLICT"
	CodePreconditionFailed       Code = "PRECONDITION_FAILED"
	CodeInvariantViolation       Code = "INVARIANT_VIOLATION"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeInternal Code = "INTERNAL"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodePreconditionFailed:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeSessionLocked,
		CodeInvalidStateTransition,
		CodeCommandNotAllowedInState:
		return codes.FailedPrecondition

	// AlreadyExists - identifier reuse
	case CodeIdempotencyConflict:
		return codes.AlreadyExists

	// NotFound - missing records
	case CodeNotFound:
		return codes.NotFound

	// Internal - invariant breakage and everything else
	case CodeInvariantViolation, CodeInternal, CodeUnknown:
		return codes.Internal

	default:
		return codes.Internal
	}
}
