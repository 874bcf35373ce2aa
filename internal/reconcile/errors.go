package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrorClass buckets a failure by the spec §7 taxonomy: InputError and
// VersionConflict concern a single clause, AdapterTransient is
// retry-worthy, AdapterPermanent is not, and Cancelled marks a stopped run.
// Classify maps an error to its class. The orchestrator neither constructs
// these error types nor calls Classify: it skips invalid boundaries with a
// warning, retries and degrades adapter failures inline, and reads CAS
// rejections from storage.UpsertResult.
type ErrorClass string

const (
	ClassInputError       ErrorClass = "input_error"
	ClassAdapterTransient ErrorClass = "adapter_transient"
	ClassAdapterPermanent ErrorClass = "adapter_permanent"
	ClassVersionConflict  ErrorClass = "version_conflict"
	ClassCancelled        ErrorClass = "cancelled"
)

// InputError wraps a malformed or unusable input row (an invalid clause
// boundary, a PAT with no usable term_category) — spec §7's first taxonomy
// entry. The orchestrator skips the offending clause and records a warning
// rather than aborting the run.
type InputError struct {
	ClauseBoundaryID uuid.UUID
	Reason           string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("reconcile: input error on clause %s: %s", e.ClauseBoundaryID, e.Reason)
}

// VersionConflictError reports that a CAS upsert was rejected because a
// newer version already won (spec §4.1/§7). Not itself a run failure — the
// orchestrator decides whether to re-derive and retry with a fresh version,
// or treat the clause as already reconciled by a concurrent run.
type VersionConflictError struct {
	ClauseBoundaryID uuid.UUID
	CurrentVersion   int
	AttemptedVersion int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("reconcile: version conflict on clause %s: attempted %d, current %d",
		e.ClauseBoundaryID, e.AttemptedVersion, e.CurrentVersion)
}

// AdapterTransientError marks a failure the orchestrator should retry
// (network timeout, rate limit, 5xx) before degrading.
type AdapterTransientError struct {
	Op  string
	Err error
}

func (e *AdapterTransientError) Error() string {
	return fmt.Sprintf("reconcile: transient adapter failure in %s: %v", e.Op, e.Err)
}

func (e *AdapterTransientError) Unwrap() error { return e.Err }

// AdapterPermanentError marks a failure the orchestrator must not retry
// (malformed request, auth failure, schema rejected) — the affected clause
// degrades immediately rather than spending a retry budget.
type AdapterPermanentError struct {
	Op  string
	Err error
}

func (e *AdapterPermanentError) Error() string {
	return fmt.Sprintf("reconcile: permanent adapter failure in %s: %v", e.Op, e.Err)
}

func (e *AdapterPermanentError) Unwrap() error { return e.Err }

// Classify maps an error to its ErrorClass for the orchestrator's
// propagation policy. Unrecognized errors default to AdapterTransient — a
// conservative choice, since treating an unknown failure as permanent would
// skip a retry that might otherwise have succeeded.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var inputErr *InputError
	var versionErr *VersionConflictError
	var transientErr *AdapterTransientError
	var permanentErr *AdapterPermanentError
	switch {
	case errors.As(err, &inputErr):
		return ClassInputError
	case errors.As(err, &versionErr):
		return ClassVersionConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassCancelled
	case errors.As(err, &permanentErr):
		return ClassAdapterPermanent
	case errors.As(err, &transientErr):
		return ClassAdapterTransient
	default:
		return ClassAdapterTransient
	}
}
