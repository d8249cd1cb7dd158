// Package dispatch orchestrates one command through the capture kernel:
// idempotency begin, lifecycle policy checks, handler execution, projection
// writes, event derivation and append, invariant verification, and finally
// idempotency commit or mark-failed. Everything between the idempotency
// begin and commit runs inside a unit of work and is discarded on any
// failure.
package dispatch
