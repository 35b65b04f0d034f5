/*
Package billing binds the scheduling engine to enrollment commits.

PURPOSE:
  This package owns the domain model (plans, enrollments, payment
  records, abonos), the contract with the remote persistence
  collaborators, and the commit orchestrator that turns an operator's
  enrollment form into persisted records.

KEY CONCEPTS IN THIS FILE (types.go):
  - PaymentPlan: How a student's charge is structured (single, recurring,
    or N installments) and its monetary totals
  - Enrollment: The record binding a student to a plan, optionally pinned
    to an academic period
  - PaymentRecord: One dated, monetary obligation derived from the plan
  - Abono: An initial partial payment against the first installment

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every monetary amount
  2. Type safety: distinct ID types so a plan ID cannot be passed where
     a student ID belongs
  3. Effective amounts: when a plan carries finalTotal/finalSubtotal
     those win over total/subtotal; one accessor enforces that rule

SEE ALSO:
  - backend.go: The remote collaborator contract
  - orchestrator.go: The commit workflow
  - errors.go: Error taxonomy
*/
package billing

import (
	"github.com/shopspring/decimal"

	"github.com/campusflow/enrollment-engine/schedule"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StudentID string
type PlanID string
type EnrollmentID string
type PaymentRecordID string
type AbonoID string
type AcademicPeriodID string

// =============================================================================
// PAYMENT PLAN
// =============================================================================

// PaymentType classifies how a plan's charge is structured.
type PaymentType string

const (
	PaymentSingle       PaymentType = "single"
	PaymentRecurring    PaymentType = "recurring"
	PaymentInstallments PaymentType = "installments"
)

// Valid reports whether t is one of the known payment types.
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentSingle, PaymentRecurring, PaymentInstallments:
		return true
	}
	return false
}

// Currency identifies the plan's currency for display and minor-unit math.
type Currency struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
}

// PaymentPlan is the authoritative template for a student's charge.
// InstallmentCount, FinalSubtotal and FinalTotal are only meaningful for
// the installments type; FinalSubtotal/FinalTotal are aggregate amounts
// already net of plan-level adjustments, to be divided across installments.
type PaymentPlan struct {
	ID       PlanID      `json:"id"`
	Name     string      `json:"name"`
	Type     PaymentType `json:"type"`
	Currency Currency    `json:"currency"`

	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`

	InstallmentCount int              `json:"installment_count,omitempty"`
	FinalSubtotal    *decimal.Decimal `json:"final_subtotal,omitempty"`
	FinalTotal       *decimal.Decimal `json:"final_total,omitempty"`
}

// EffectiveTotal returns the amount to divide across installments:
// FinalTotal when present, else Total.
func (p *PaymentPlan) EffectiveTotal() decimal.Decimal {
	if p.FinalTotal != nil {
		return *p.FinalTotal
	}
	return p.Total
}

// EffectiveSubtotal returns FinalSubtotal when present, else Subtotal.
func (p *PaymentPlan) EffectiveSubtotal() decimal.Decimal {
	if p.FinalSubtotal != nil {
		return *p.FinalSubtotal
	}
	return p.Subtotal
}

// =============================================================================
// ENROLLMENT
// =============================================================================

// EnrollmentStatus is owned by external lifecycle rules after creation;
// this service only ever writes StatusActive.
type EnrollmentStatus string

const (
	StatusActive    EnrollmentStatus = "active"
	StatusCancelled EnrollmentStatus = "cancelled"
	StatusCompleted EnrollmentStatus = "completed"
)

// Enrollment binds a student to a plan. Immutable after creation except
// for status transitions performed elsewhere.
type Enrollment struct {
	ID                   EnrollmentID          `json:"id"`
	StudentID            StudentID             `json:"student_id"`
	PlanID               PlanID                `json:"plan_id"`
	EnrollmentDate       schedule.CalendarDate `json:"enrollment_date"`
	FirstDueDate         schedule.CalendarDate `json:"first_due_date"`
	PeriodControlEnabled bool                  `json:"period_control_enabled"`
	AcademicPeriodID     AcademicPeriodID      `json:"academic_period_id,omitempty"`
	Status               EnrollmentStatus      `json:"status"`
}

// =============================================================================
// PAYMENT RECORD
// =============================================================================

// PaymentRecord is one persisted installment. The enrollment exclusively
// owns its records: created together, deleted together by lifecycle rules
// outside this service.
type PaymentRecord struct {
	ID             PaymentRecordID       `json:"id"`
	EnrollmentID   EnrollmentID          `json:"enrollment_id"`
	SequenceNumber int                   `json:"sequence_number"`
	Subtotal       decimal.Decimal       `json:"subtotal"`
	Total          decimal.Decimal       `json:"total"`
	DueDate        schedule.CalendarDate `json:"due_date"`
}

// =============================================================================
// ABONO
// =============================================================================

// Abono is an initial partial payment applied against the first
// installment at enrollment time. At most one per commit flow.
type Abono struct {
	ID              AbonoID         `json:"id"`
	PaymentRecordID PaymentRecordID `json:"payment_record_id"`
	Method          string          `json:"method"`
	Amount          decimal.Decimal `json:"amount"`
	Reference       string          `json:"reference,omitempty"`
	Note            string          `json:"note,omitempty"`
}
