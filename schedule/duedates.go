/*
duedates.go - Due-date sequence generation

PURPOSE:
  Derives one due date per installment from an anchor date and a
  periodicity preset. The first installment is always due on the anchor
  date itself; later installments step forward by the preset's stride.

PRESETS:
  weekly    installment i due (i-1) weeks after the anchor
  biweekly  installment i due (i-1)*15 days after the anchor
  monthly   installment i due (i-1) months after the anchor (clamped)

  "Biweekly" here is the quincena: a fixed 15-day stride, not 14. The
  month-end clamp rule from date.go applies to monthly sequences.

MANUAL OVERRIDES:
  A Schedule holds the generated sequence plus a periodicity tag.
  Overriding a single installment's date flips the tag to custom without
  touching the other dates; the tag is informational and never blocks
  further edits. Rebasing regenerates every date from a new anchor using
  the last preset, which also resets a custom tag back to that preset.

SEE ALSO:
  - date.go: AddPeriod and the overflow rule
  - allocate.go: The monetary half of an installment
*/
package schedule

import "fmt"

// =============================================================================
// PERIODICITY
// =============================================================================

// Periodicity tags how a schedule's due dates were derived.
type Periodicity string

const (
	Weekly   Periodicity = "weekly"
	Biweekly Periodicity = "biweekly"
	Monthly  Periodicity = "monthly"

	// Custom marks a schedule where at least one date was set by hand.
	// Never a valid input to DueDates; only a state a Schedule ends up in.
	Custom Periodicity = "custom"
)

// stride returns the offset for installment i (1-based) under a preset.
func stride(i int, preset Periodicity) (amount int, unit PeriodUnit, err error) {
	switch preset {
	case Weekly:
		return i - 1, UnitWeek, nil
	case Biweekly:
		return (i - 1) * 15, UnitDay, nil
	case Monthly:
		return i - 1, UnitMonth, nil
	default:
		return 0, "", fmt.Errorf("%w: %q", ErrUnknownPeriodicity, preset)
	}
}

// =============================================================================
// DUE-DATE GENERATION
// =============================================================================

// DueDates generates one due date per installment. Installment 1 is due
// on start unchanged; installment i steps forward by the preset stride.
// Calling it again with the same arguments reproduces the same sequence:
// overrides live on Schedule, never here.
func DueDates(count int, start CalendarDate, preset Periodicity) ([]CalendarDate, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}

	dates := make([]CalendarDate, count)
	dates[0] = start
	for i := 2; i <= count; i++ {
		amount, unit, err := stride(i, preset)
		if err != nil {
			return nil, err
		}
		d, err := AddPeriod(start, amount, unit)
		if err != nil {
			return nil, err
		}
		dates[i-1] = d
	}
	return dates, nil
}

// =============================================================================
// SCHEDULE - Generated sequence plus periodicity state
// =============================================================================

// Schedule is a due-date sequence with its periodicity tag. The tag
// distinguishes a freshly generated schedule (weekly/biweekly/monthly)
// from one that has been hand-edited (custom). Bulk regeneration and
// single-date edits are separate, explicit operations on this value.
type Schedule struct {
	Start       CalendarDate
	Periodicity Periodicity
	Dates       []CalendarDate

	// preset remembers the last non-custom periodicity so Rebase can
	// regenerate after manual edits.
	preset Periodicity
}

// NewSchedule generates a schedule of count due dates from start.
func NewSchedule(count int, start CalendarDate, preset Periodicity) (*Schedule, error) {
	dates, err := DueDates(count, start, preset)
	if err != nil {
		return nil, err
	}
	return &Schedule{Start: start, Periodicity: preset, Dates: dates, preset: preset}, nil
}

// Count returns the number of installments.
func (s *Schedule) Count() int { return len(s.Dates) }

// Rebase regenerates the entire sequence from a new anchor using the last
// preset. Prior dates are not shifted, they are discarded: a rebased
// custom schedule loses its manual edits and the tag resets to the preset.
func (s *Schedule) Rebase(newStart CalendarDate) error {
	dates, err := DueDates(len(s.Dates), newStart, s.preset)
	if err != nil {
		return err
	}
	s.Start = newStart
	s.Dates = dates
	s.Periodicity = s.preset
	return nil
}

// OverrideDate replaces the due date of installment i (1-based) and flips
// the periodicity tag to custom. Other dates are untouched. The sequence
// may stop being monotonic; that is allowed.
func (s *Schedule) OverrideDate(i int, date CalendarDate) error {
	if i < 1 || i > len(s.Dates) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(s.Dates))
	}
	s.Dates[i-1] = date
	s.Periodicity = Custom
	return nil
}
