/*
backend.go - Remote collaborator contract for the commit flow

PURPOSE:
  Defines the interface between the orchestrator and the persistence
  collaborators. The orchestrator never talks to a database directly;
  everything it needs is behind these five operations, so the same
  workflow runs against SQLite, a remote API client, or the in-memory
  implementation used by tests.

CONTRACT NOTES:
  - ResolvePlan is the source of truth for money math. The orchestrator
    re-fetches the plan at commit time rather than trusting whatever
    copy the caller holds.
  - CheckDuplicateEnrollment is only consulted when period control is
    enabled for the enrollment being created.
  - CreateEnrollment/CreatePaymentRecord/CreateAbono assign identifiers
    server-side and return the persisted record.
  - Any transport or server-side failure surfaces as a plain error; the
    orchestrator wraps it with step context (see errors.go).

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite store
  - billing/store: In-memory backend for tests and demos

SEE ALSO:
  - orchestrator.go: The only caller of this interface
*/
package billing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/campusflow/enrollment-engine/schedule"
)

// =============================================================================
// BACKEND - The five remote operations of the commit flow
// =============================================================================

// Backend is the persistence boundary of the enrollment commit flow.
type Backend interface {
	// ResolvePlan returns the authoritative plan definition.
	// Must return a NotFound-classified error for unknown IDs.
	ResolvePlan(ctx context.Context, id PlanID) (*PaymentPlan, error)

	// CheckDuplicateEnrollment reports whether the student already has an
	// active enrollment in the academic period.
	CheckDuplicateEnrollment(ctx context.Context, studentID StudentID, periodID AcademicPeriodID) (bool, error)

	// CreateEnrollment persists the enrollment and assigns its ID.
	CreateEnrollment(ctx context.Context, e Enrollment) (*Enrollment, error)

	// CreatePaymentRecord persists one installment and assigns its ID.
	CreatePaymentRecord(ctx context.Context, enrollmentID EnrollmentID, sequenceNumber int, subtotal, total decimal.Decimal, dueDate schedule.CalendarDate) (*PaymentRecord, error)

	// CreateAbono persists the initial partial payment against a record.
	CreateAbono(ctx context.Context, a Abono) (*Abono, error)
}
