/*
errors.go - Error taxonomy for the enrollment commit flow

PURPOSE:
  Four error classes, matching how the operator experiences a failed
  commit:

  1. ValidationError   Local, pre-flight, field-scoped. Never follows
                       a remote call.
  2. ConflictError     Duplicate enrollment in the academic period.
                       Surfaced verbatim; zero writes performed.
  3. RemoteError       A backend call failed. Tagged with the commit
                       step so the caller knows what did NOT happen.
  4. PartialCommitError A failure after the enrollment already exists,
                       remote or not. Carries what survived; there is
                       no automatic rollback.

USAGE:
  var pc *billing.PartialCommitError
  if errors.As(err, &pc) {
      // pc.Enrollment and pc.Payments are persisted and need manual
      // cleanup or a follow-up.
  }

SEE ALSO:
  - orchestrator.go: Produces these errors
  - api/handlers.go: Maps them to HTTP statuses
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPlanNotFound is returned when a referenced plan doesn't exist.
	ErrPlanNotFound = errors.New("payment plan not found")

	// ErrEnrollmentNotFound is returned when a referenced enrollment doesn't exist.
	ErrEnrollmentNotFound = errors.New("enrollment not found")

	// ErrStudentNotFound is returned when a referenced student doesn't exist.
	ErrStudentNotFound = errors.New("student not found")

	// ErrDuplicateEnrollment is the conflict sentinel; ConflictError wraps it.
	ErrDuplicateEnrollment = errors.New("student already enrolled in this academic period")

	// ErrCommitInFlight is returned when a commit is triggered while another
	// one is still running on the same orchestrator.
	ErrCommitInFlight = errors.New("an enrollment commit is already in flight")
)

// =============================================================================
// VALIDATION ERROR - Field-scoped, pre-flight
// =============================================================================

// ValidationError reports a failing input field before any remote call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// =============================================================================
// CONFLICT ERROR
// =============================================================================

// ConflictError reports a duplicate active enrollment. No writes occurred.
type ConflictError struct {
	StudentID StudentID
	PeriodID  AcademicPeriodID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("student %s already has an active enrollment in period %s", e.StudentID, e.PeriodID)
}

func (e *ConflictError) Unwrap() error { return ErrDuplicateEnrollment }

// =============================================================================
// REMOTE ERROR - Step-tagged backend failure
// =============================================================================

// RemoteError wraps a backend failure with the commit step it aborted.
type RemoteError struct {
	Step CommitState
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// =============================================================================
// PARTIAL COMMIT - Failure after the enrollment exists
// =============================================================================

// PartialCommitError reports a failure after CreateEnrollment succeeded.
// Step names the phase that failed. The enrollment and Payments listed
// here are persisted and remain so; cleaning them up is a manual
// operation.
type PartialCommitError struct {
	Step       CommitState
	Enrollment *Enrollment
	Payments   []PaymentRecord
	FailedSeq  int // failing sequence number; 0 outside the installment loop
	Err        error
}

func (e *PartialCommitError) Error() string {
	switch e.Step {
	case StateGeneratingSchedule:
		return fmt.Sprintf("schedule generation failed after enrollment %s was persisted: %v",
			e.Enrollment.ID, e.Err)
	case StateCommittingAbono:
		return fmt.Sprintf("abono failed after enrollment %s and %d installments were persisted: %v",
			e.Enrollment.ID, len(e.Payments), e.Err)
	default:
		return fmt.Sprintf("installment %d failed; enrollment %s and %d installments were persisted: %v",
			e.FailedSeq, e.Enrollment.ID, len(e.Payments), e.Err)
	}
}

func (e *PartialCommitError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid operator input
// or a business conflict, as opposed to an infrastructure failure.
func IsClientError(err error) bool {
	var v *ValidationError
	var c *ConflictError
	return errors.As(err, &v) || errors.As(err, &c)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrEnrollmentNotFound) ||
		errors.Is(err, ErrStudentNotFound)
}
