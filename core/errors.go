package core

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Every failure in this system classifies into
// exactly one of these; wrap with %w and test with errors.Is.
var (
	// ErrTransport covers LLM, renderer, and other outbound HTTP failures.
	ErrTransport = errors.New("transport error")
	// ErrLedger covers failures of the backing Redis-compatible store.
	ErrLedger = errors.New("ledger error")
	// ErrValidation covers malformed plan YAML or missing impression keys.
	ErrValidation = errors.New("validation error")
	// ErrWorker covers worker-specific failures reported as Thought{FAILED}.
	ErrWorker = errors.New("worker error")
	// ErrTimeout covers LLM, render, and compute deadline exceeded.
	ErrTimeout = errors.New("timeout")
	// ErrShutdown signals a cooperative shutdown in progress.
	ErrShutdown = errors.New("shutdown signalled")

	// ErrNotFound is returned by registries and stores for missing entries.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyRegistered guards idempotent registration paths.
	ErrAlreadyRegistered = errors.New("already registered")

	// ErrMaxRetriesExceeded is the terminal error resilience.Retry wraps
	// its last attempt's error in once the attempt budget is spent.
	ErrMaxRetriesExceeded = errors.New("max retry attempts exceeded")
	// ErrCircuitBreakerOpen is returned in place of calling the protected
	// function while a resilience.CircuitBreaker is open.
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")
)

// FrameworkError carries structured context alongside one of the
// sentinel kinds above, following the op/kind/id/message/err shape used
// throughout this codebase.
type FrameworkError struct {
	Op      string // operation that failed, e.g. "ledger.HSet"
	Kind    string // one of the sentinel kinds' short names
	ID      string // optional entity id (request_id, url, node_id)
	Message string
	Err     error
}

func (e *FrameworkError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *FrameworkError) Unwrap() error { return e.Err }

// NewFrameworkError wraps err with operation and kind context.
func NewFrameworkError(op, kind string, err error) *FrameworkError {
	return &FrameworkError{Op: op, Kind: kind, Err: err}
}

// WithID attaches an entity id and returns the same error for chaining.
func (e *FrameworkError) WithID(id string) *FrameworkError {
	e.ID = id
	return e
}

// IsRetryable reports whether err is a transport or timeout failure.
// resilience.Retry does not consult it: Retry retries on any error.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrTimeout)
}

// IsLedgerError reports whether err originated in the ledger layer.
func IsLedgerError(err error) bool {
	return errors.Is(err, ErrLedger)
}

// IsValidationError reports whether err is a malformed-plan or
// missing-impression-key failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsWorkerError reports whether err originated inside a worker.
func IsWorkerError(err error) bool {
	return errors.Is(err, ErrWorker)
}

// IsShutdown reports whether err signals cooperative shutdown.
func IsShutdown(err error) bool {
	return errors.Is(err, ErrShutdown)
}

// IsNotFound reports whether err is a missing-entry condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
