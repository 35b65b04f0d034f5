/*
orchestrator.go - The enrollment commit workflow

PURPOSE:
  Turns a validated enrollment form into persisted records. The workflow
  is a linear state machine with no cycles:

    Validating -> CheckingDuplicate (only with period control)
               -> CreatingEnrollment
               -> ResolvingPlan
               -> GeneratingSchedule
               -> PersistingInstallments (sequential, ascending sequence)
               -> CommittingAbono (optional)
               -> Done

FAILURE SEMANTICS:
  - Before CreatingEnrollment: abort with zero writes (ValidationError,
    ConflictError, or a step-tagged RemoteError).
  - During GeneratingSchedule or PersistingInstallments: the enrollment
    and the installments already written stay; the caller gets a
    PartialCommitError listing exactly what survived. No compensating
    delete is wired in.
  - During CommittingAbono: non-fatal to the commit. The result still
    carries the enrollment and all installments; the error reports the
    abono as the failed step so the operator can retry it.

CONCURRENCY:
  One logical flow, no internal parallelism. Remote calls happen one at
  a time, installments in ascending sequence order. A second Commit
  while one is in flight is rejected with ErrCommitInFlight; rapid
  repeated triggers must not produce duplicate enrollments.

PLAN RE-FETCH:
  The plan is always re-read from the backend before money math. A stale
  UI copy must never decide installment amounts.

SEE ALSO:
  - schedule: Date generation and amount allocation
  - backend.go: The remote operations this workflow drives
  - errors.go: The error taxonomy
*/
package billing

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/campusflow/enrollment-engine/schedule"
)

// =============================================================================
// COMMIT STATES
// =============================================================================

// CommitState names a step of the commit workflow, for logging and for
// tagging RemoteError with the step that aborted.
type CommitState string

const (
	StateIdle                   CommitState = "idle"
	StateValidating             CommitState = "validating"
	StateCheckingDuplicate      CommitState = "checking_duplicate"
	StateCreatingEnrollment     CommitState = "creating_enrollment"
	StateResolvingPlan          CommitState = "resolving_plan"
	StateGeneratingSchedule     CommitState = "generating_schedule"
	StatePersistingInstallments CommitState = "persisting_installments"
	StateCommittingAbono        CommitState = "committing_abono"
	StateDone                   CommitState = "done"
)

// =============================================================================
// INPUT / RESULT
// =============================================================================

// AbonoInput is the optional initial partial payment of a commit.
// Amount must be positive. There is deliberately no upper bound against
// the first installment's total; the UI shows a hint, validation does not
// enforce it.
type AbonoInput struct {
	Method    string
	Amount    decimal.Decimal
	Reference string
	Note      string
}

// CommitInput is everything the operator supplies for one enrollment.
// DateOverrides carries per-installment manual due dates keyed by
// sequence number (1-based); overridden installments keep their date
// while the rest follow the periodicity preset.
type CommitInput struct {
	StudentID            StudentID
	PlanID               PlanID
	EnrollmentDate       schedule.CalendarDate
	FirstDueDate         schedule.CalendarDate
	PeriodControlEnabled bool
	AcademicPeriodID     AcademicPeriodID

	Periodicity   schedule.Periodicity
	DateOverrides map[int]schedule.CalendarDate

	Abono *AbonoInput
}

// CommitResult is the persisted outcome of a successful (or abono-partial)
// commit.
type CommitResult struct {
	Enrollment *Enrollment
	Plan       *PaymentPlan
	Payments   []PaymentRecord
	Abono      *Abono
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator executes the enrollment commit workflow against a Backend.
type Orchestrator struct {
	backend  Backend
	rounding schedule.RoundingPolicy
	log      logrus.FieldLogger

	inFlight atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRoundingPolicy overrides the default remainder-to-first allocation.
func WithRoundingPolicy(p schedule.RoundingPolicy) Option {
	return func(o *Orchestrator) { o.rounding = p }
}

// WithLogger sets the structured logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// NewOrchestrator creates an orchestrator with remainder-to-first
// rounding and a discarding logger unless configured otherwise.
func NewOrchestrator(backend Backend, opts ...Option) *Orchestrator {
	null := logrus.New()
	null.SetOutput(io.Discard)

	o := &Orchestrator{
		backend:  backend,
		rounding: schedule.RoundRemainderToFirst,
		log:      null,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// =============================================================================
// COMMIT - The whole flow, strictly sequential
// =============================================================================

// Commit runs the full workflow. On success the result carries the
// enrollment, its payment records and the abono if one was requested.
// See the file header for which failures leave persisted state behind.
func (o *Orchestrator) Commit(ctx context.Context, input CommitInput) (*CommitResult, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrCommitInFlight
	}
	defer o.inFlight.Store(false)

	log := o.log.WithFields(logrus.Fields{
		"student_id": input.StudentID,
		"plan_id":    input.PlanID,
	})

	// --- Validating -----------------------------------------------------
	log.WithField("state", StateValidating).Debug("validating enrollment input")
	if err := validateCommitInput(input); err != nil {
		return nil, err
	}

	// --- CheckingDuplicate (period control only) ------------------------
	if input.PeriodControlEnabled {
		log.WithField("state", StateCheckingDuplicate).Debug("checking duplicate enrollment")
		dup, err := o.backend.CheckDuplicateEnrollment(ctx, input.StudentID, input.AcademicPeriodID)
		if err != nil {
			return nil, &RemoteError{Step: StateCheckingDuplicate, Err: err}
		}
		if dup {
			return nil, &ConflictError{StudentID: input.StudentID, PeriodID: input.AcademicPeriodID}
		}
	}

	// --- CreatingEnrollment ---------------------------------------------
	log.WithField("state", StateCreatingEnrollment).Info("creating enrollment")
	enrollment, err := o.backend.CreateEnrollment(ctx, Enrollment{
		StudentID:            input.StudentID,
		PlanID:               input.PlanID,
		EnrollmentDate:       input.EnrollmentDate,
		FirstDueDate:         input.FirstDueDate,
		PeriodControlEnabled: input.PeriodControlEnabled,
		AcademicPeriodID:     input.AcademicPeriodID,
		Status:               StatusActive,
	})
	if err != nil {
		return nil, &RemoteError{Step: StateCreatingEnrollment, Err: err}
	}
	log = log.WithField("enrollment_id", enrollment.ID)

	// --- ResolvingPlan --------------------------------------------------
	// Authoritative re-read: the caller's plan copy may be stale.
	log.WithField("state", StateResolvingPlan).Debug("resolving plan")
	plan, err := o.backend.ResolvePlan(ctx, input.PlanID)
	if err != nil {
		return nil, &RemoteError{Step: StateResolvingPlan, Err: err}
	}

	// --- GeneratingSchedule ---------------------------------------------
	log.WithField("state", StateGeneratingSchedule).Debug("generating installment schedule")
	installments, err := o.buildInstallments(plan, input)
	if err != nil {
		// An override past the plan's installment count is only
		// detectable here, once the plan is known; the enrollment
		// already exists and must be reported as surviving state.
		return nil, &PartialCommitError{
			Step:       StateGeneratingSchedule,
			Enrollment: enrollment,
			Err:        err,
		}
	}

	// --- PersistingInstallments -----------------------------------------
	result := &CommitResult{Enrollment: enrollment, Plan: plan}
	for _, inst := range installments {
		log.WithFields(logrus.Fields{
			"state":    StatePersistingInstallments,
			"sequence": inst.seq,
			"due_date": inst.dueDate.String(),
		}).Debug("persisting installment")

		record, err := o.backend.CreatePaymentRecord(ctx, enrollment.ID, inst.seq, inst.subtotal, inst.total, inst.dueDate)
		if err != nil {
			return nil, &PartialCommitError{
				Step:       StatePersistingInstallments,
				Enrollment: enrollment,
				Payments:   result.Payments,
				FailedSeq:  inst.seq,
				Err:        err,
			}
		}
		result.Payments = append(result.Payments, *record)
	}

	// --- CommittingAbono (optional) -------------------------------------
	if input.Abono != nil {
		log.WithField("state", StateCommittingAbono).Info("committing abono")
		abono, err := o.backend.CreateAbono(ctx, Abono{
			PaymentRecordID: result.Payments[0].ID,
			Method:          input.Abono.Method,
			Amount:          input.Abono.Amount,
			Reference:       input.Abono.Reference,
			Note:            input.Abono.Note,
		})
		if err != nil {
			// Non-fatal: the enrollment and installments stand. The
			// operator can skip or retry the abono on its own.
			return result, &PartialCommitError{
				Step:       StateCommittingAbono,
				Enrollment: enrollment,
				Payments:   result.Payments,
				FailedSeq:  0,
				Err:        err,
			}
		}
		result.Abono = abono
	}

	log.WithField("state", StateDone).WithField("installments", len(result.Payments)).Info("enrollment committed")
	return result, nil
}

// installment pairs a sequence number with its date and amounts before
// anything is persisted.
type installment struct {
	seq      int
	dueDate  schedule.CalendarDate
	subtotal decimal.Decimal
	total    decimal.Decimal
}

// buildInstallments derives the full dated, monetary schedule from the
// authoritative plan. Single and recurring plans produce exactly one
// record due on the operator-supplied first due date; no date generation
// is involved.
func (o *Orchestrator) buildInstallments(plan *PaymentPlan, input CommitInput) ([]installment, error) {
	if plan.Type != PaymentInstallments {
		return []installment{{
			seq:      1,
			dueDate:  input.FirstDueDate,
			subtotal: plan.EffectiveSubtotal(),
			total:    plan.EffectiveTotal(),
		}}, nil
	}

	count := plan.InstallmentCount
	if count < 1 {
		return nil, fmt.Errorf("plan %s: %w", plan.ID, schedule.ErrInvalidCount)
	}

	preset := input.Periodicity
	if preset == "" {
		preset = schedule.Monthly
	}

	sched, err := schedule.NewSchedule(count, input.FirstDueDate, preset)
	if err != nil {
		return nil, err
	}
	for seq, date := range input.DateOverrides {
		if err := sched.OverrideDate(seq, date); err != nil {
			return nil, err
		}
	}

	amounts, err := schedule.Allocate(count, plan.EffectiveTotal(), plan.EffectiveSubtotal(), o.rounding)
	if err != nil {
		return nil, err
	}

	out := make([]installment, count)
	for i := 0; i < count; i++ {
		out[i] = installment{
			seq:      i + 1,
			dueDate:  sched.Dates[i],
			subtotal: amounts[i].Subtotal,
			total:    amounts[i].Total,
		}
	}
	return out, nil
}

// =============================================================================
// VALIDATION - Pre-flight, before any remote call
// =============================================================================

func validateCommitInput(input CommitInput) error {
	if input.StudentID == "" {
		return &ValidationError{Field: "student_id", Message: "a student must be selected"}
	}
	if input.PlanID == "" {
		return &ValidationError{Field: "plan_id", Message: "a payment plan must be selected"}
	}
	if input.EnrollmentDate.IsZero() {
		return &ValidationError{Field: "enrollment_date", Message: "enrollment date is required"}
	}
	if input.FirstDueDate.IsZero() {
		return &ValidationError{Field: "first_due_date", Message: "first due date is required"}
	}
	if input.PeriodControlEnabled && input.AcademicPeriodID == "" {
		return &ValidationError{Field: "academic_period_id", Message: "an academic period is required when period control is enabled"}
	}
	if input.Periodicity != "" {
		switch input.Periodicity {
		case schedule.Weekly, schedule.Biweekly, schedule.Monthly:
		default:
			return &ValidationError{Field: "periodicity", Message: fmt.Sprintf("unknown periodicity %q", input.Periodicity)}
		}
	}
	for seq := range input.DateOverrides {
		if seq < 1 {
			return &ValidationError{Field: "date_overrides", Message: fmt.Sprintf("%d is not a valid sequence number", seq)}
		}
	}
	if input.Abono != nil {
		if input.Abono.Method == "" {
			return &ValidationError{Field: "abono.method", Message: "a method of payment is required"}
		}
		if !input.Abono.Amount.IsPositive() {
			return &ValidationError{Field: "abono.amount", Message: "abono amount must be greater than zero"}
		}
		// No upper bound against the first installment's total: the
		// display hint is the UI's job, not validation's.
	}
	return nil
}
