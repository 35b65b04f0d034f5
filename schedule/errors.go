/*
errors.go - Sentinel errors for the scheduling engine

PURPOSE:
  All scheduling engine errors in one place. Callers match with
  errors.Is(); the billing package wraps these with field context
  before surfacing them to an operator.

SEE ALSO:
  - date.go: AddPeriod input validation
  - duedates.go: Due-date generation validation
  - allocate.go: Allocation validation
*/
package schedule

import "errors"

var (
	// ErrNegativePeriod is returned when AddPeriod is asked to move backwards.
	ErrNegativePeriod = errors.New("period amount must not be negative")

	// ErrUnknownUnit is returned for a period unit outside day/week/month/year.
	ErrUnknownUnit = errors.New("unknown period unit")

	// ErrUnknownPeriodicity is returned for a periodicity outside the presets.
	ErrUnknownPeriodicity = errors.New("unknown periodicity")

	// ErrInvalidCount is returned when an installment count is below 1.
	ErrInvalidCount = errors.New("installment count must be at least 1")

	// ErrIndexOutOfRange is returned when overriding a non-existent installment.
	ErrIndexOutOfRange = errors.New("installment index out of range")

	// ErrNonPositiveAmount is returned when allocating a zero or negative total.
	ErrNonPositiveAmount = errors.New("amount to allocate must be positive")
)
