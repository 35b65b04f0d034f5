/*
Package schedule provides the pure installment-scheduling engine.

PURPOSE:
  This package contains side-effect-free types and algorithms for deriving
  an installment schedule from a payment plan: calendar-date arithmetic,
  due-date generation from a periodicity preset, and splitting monetary
  totals across installments with an explicit rounding policy.

KEY CONCEPTS IN THIS FILE (date.go):
  - CalendarDate: A timezone-free calendar date (the only time concept
    the engine knows about; no time-of-day component is ever involved)
  - PeriodUnit: Calendar units for date arithmetic (day/week/month/year)
  - AddPeriod: Advance a date by N units with a canonical overflow rule

OVERFLOW RULE:
  Adding months or years clamps to the last valid day of the target month.
  Jan 31 + 1 month = Feb 28 (Feb 29 in a leap year). This is the single
  canonical rule for the whole engine and is pinned by tests.

DESIGN PRINCIPLES:
  1. Purity: No clocks, no timezones, no side effects
  2. Precision: Monetary amounts use decimal.Decimal (see allocate.go)
  3. Explicitness: Rejecting negative periods is an error, not a panic

SEE ALSO:
  - duedates.go: Due-date sequence generation and manual overrides
  - allocate.go: Monetary allocation across installments
  - errors.go: Sentinel errors for invalid inputs
*/
package schedule

import (
	"fmt"
	"time"
)

// =============================================================================
// CALENDAR DATE - Timezone-free day-granular date
// =============================================================================

// CalendarDate is a calendar date with no time-of-day and no timezone.
// Internally anchored at UTC midnight so comparisons are exact.
type CalendarDate struct {
	t time.Time
}

// NewDate constructs a CalendarDate from year, month, day.
func NewDate(year int, month time.Month, day int) CalendarDate {
	return CalendarDate{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time.Time to its calendar date (in UTC).
func DateOf(t time.Time) CalendarDate {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a date in ISO form (2006-01-02).
func ParseDate(s string) (CalendarDate, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return CalendarDate{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for trusted literals (tests, fixtures).
func MustParseDate(s string) CalendarDate {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d CalendarDate) Before(other CalendarDate) bool { return d.t.Before(other.t) }
func (d CalendarDate) After(other CalendarDate) bool  { return d.t.After(other.t) }
func (d CalendarDate) Equal(other CalendarDate) bool  { return d.t.Equal(other.t) }
func (d CalendarDate) BeforeOrEqual(other CalendarDate) bool {
	return d.Before(other) || d.Equal(other)
}
func (d CalendarDate) AfterOrEqual(other CalendarDate) bool {
	return d.After(other) || d.Equal(other)
}

// Properties
func (d CalendarDate) Year() int         { return d.t.Year() }
func (d CalendarDate) Month() time.Month { return d.t.Month() }
func (d CalendarDate) Day() int          { return d.t.Day() }
func (d CalendarDate) IsZero() bool      { return d.t.IsZero() }
func (d CalendarDate) Time() time.Time   { return d.t }

func (d CalendarDate) String() string { return d.t.Format("2006-01-02") }

// MarshalJSON encodes the date as an ISO string.
func (d CalendarDate) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes an ISO date string.
func (d *CalendarDate) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date literal %s", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysBetween returns the number of whole days from one date to another.
func DaysBetween(from, to CalendarDate) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// =============================================================================
// PERIOD ARITHMETIC - Advance a date by N calendar units
// =============================================================================

// PeriodUnit is a calendar unit for date arithmetic.
type PeriodUnit string

const (
	UnitDay   PeriodUnit = "day"
	UnitWeek  PeriodUnit = "week"
	UnitMonth PeriodUnit = "month"
	UnitYear  PeriodUnit = "year"
)

// AddPeriod returns the date advanced by amount units.
// Month and year steps clamp to the last valid day of the target month
// (Jan 31 + 1 month = Feb 28/29), so the result is always a real date.
// A negative amount is rejected.
func AddPeriod(d CalendarDate, amount int, unit PeriodUnit) (CalendarDate, error) {
	if amount < 0 {
		return CalendarDate{}, fmt.Errorf("%w: %d %s", ErrNegativePeriod, amount, unit)
	}

	switch unit {
	case UnitDay:
		return CalendarDate{t: d.t.AddDate(0, 0, amount)}, nil
	case UnitWeek:
		return CalendarDate{t: d.t.AddDate(0, 0, amount*7)}, nil
	case UnitMonth:
		return addMonthsClamped(d, amount), nil
	case UnitYear:
		return addMonthsClamped(d, amount*12), nil
	default:
		return CalendarDate{}, fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}
}

// addMonthsClamped steps forward by whole months, clamping the day to the
// length of the target month. time.AddDate would normalize Jan 31 + 1
// month into Mar 2/3, which is not a due date anyone scheduled.
func addMonthsClamped(d CalendarDate, months int) CalendarDate {
	year, month := d.Year(), d.Month()
	totalMonths := int(month) - 1 + months
	year += totalMonths / 12
	month = time.Month(totalMonths%12 + 1)

	day := d.Day()
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day)
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
