/*
preview.go - Schedule preview without persistence

PURPOSE:
  The operator sees the dated, monetary schedule before committing
  anything. Preview resolves the plan and runs the same date generation
  and allocation as Commit, but writes nothing; the UI drives its
  date-override loop by calling this repeatedly.

SEE ALSO:
  - orchestrator.go: Commit, which shares buildInstallments with this
*/
package billing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/campusflow/enrollment-engine/schedule"
)

// PreviewInput selects a plan and the dates the operator is trying out.
type PreviewInput struct {
	PlanID        PlanID
	FirstDueDate  schedule.CalendarDate
	Periodicity   schedule.Periodicity
	DateOverrides map[int]schedule.CalendarDate
}

// PreviewedInstallment is one row of the preview.
type PreviewedInstallment struct {
	SequenceNumber int
	DueDate        schedule.CalendarDate
	Subtotal       decimal.Decimal
	Total          decimal.Decimal
}

// SchedulePreview is a generated schedule that has not been persisted.
type SchedulePreview struct {
	Plan         *PaymentPlan
	Periodicity  schedule.Periodicity
	Installments []PreviewedInstallment
}

// Preview resolves the plan and derives the schedule the way Commit
// would, without persisting anything.
func (o *Orchestrator) Preview(ctx context.Context, input PreviewInput) (*SchedulePreview, error) {
	if input.PlanID == "" {
		return nil, &ValidationError{Field: "plan_id", Message: "a payment plan must be selected"}
	}
	if input.FirstDueDate.IsZero() {
		return nil, &ValidationError{Field: "first_due_date", Message: "first due date is required"}
	}

	plan, err := o.backend.ResolvePlan(ctx, input.PlanID)
	if err != nil {
		return nil, &RemoteError{Step: StateResolvingPlan, Err: err}
	}

	installments, err := o.buildInstallments(plan, CommitInput{
		PlanID:        input.PlanID,
		FirstDueDate:  input.FirstDueDate,
		Periodicity:   input.Periodicity,
		DateOverrides: input.DateOverrides,
	})
	if err != nil {
		switch {
		case errors.Is(err, schedule.ErrUnknownPeriodicity):
			return nil, &ValidationError{Field: "periodicity", Message: err.Error()}
		case errors.Is(err, schedule.ErrIndexOutOfRange):
			return nil, &ValidationError{Field: "date_overrides", Message: err.Error()}
		}
		return nil, &RemoteError{Step: StateGeneratingSchedule, Err: err}
	}

	periodicity := input.Periodicity
	if periodicity == "" {
		periodicity = schedule.Monthly
	}
	if len(input.DateOverrides) > 0 {
		periodicity = schedule.Custom
	}
	if plan.Type != PaymentInstallments {
		periodicity = ""
	}

	preview := &SchedulePreview{Plan: plan, Periodicity: periodicity}
	for _, inst := range installments {
		preview.Installments = append(preview.Installments, PreviewedInstallment{
			SequenceNumber: inst.seq,
			DueDate:        inst.dueDate,
			Subtotal:       inst.subtotal,
			Total:          inst.total,
		})
	}
	return preview, nil
}
