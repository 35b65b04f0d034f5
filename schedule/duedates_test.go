package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusflow/enrollment-engine/schedule"
)

// =============================================================================
// DUE-DATE GENERATION TESTS
// =============================================================================

func TestDueDates_LengthAndAnchor(t *testing.T) {
	// GIVEN: Any installment count >= 1
	// THEN: Exactly count dates, the first equal to the start date
	start := schedule.NewDate(2025, time.March, 1)

	for _, count := range []int{1, 2, 3, 7, 12, 48} {
		dates, err := schedule.DueDates(count, start, schedule.Monthly)
		require.NoError(t, err)
		require.Len(t, dates, count)
		assert.True(t, dates[0].Equal(start), "installment 1 must be due on the start date")
	}
}

func TestDueDates_SingleInstallment_PresetIrrelevant(t *testing.T) {
	start := schedule.NewDate(2025, time.March, 1)

	for _, preset := range []schedule.Periodicity{schedule.Weekly, schedule.Biweekly, schedule.Monthly} {
		dates, err := schedule.DueDates(1, start, preset)
		require.NoError(t, err)
		require.Len(t, dates, 1)
		assert.True(t, dates[0].Equal(start))
	}
}

func TestDueDates_Weekly(t *testing.T) {
	start := schedule.NewDate(2025, time.March, 3)

	dates, err := schedule.DueDates(4, start, schedule.Weekly)
	require.NoError(t, err)

	want := []string{"2025-03-03", "2025-03-10", "2025-03-17", "2025-03-24"}
	for i, w := range want {
		assert.Equal(t, w, dates[i].String())
	}
}

func TestDueDates_Biweekly_Exactly15DaysApart(t *testing.T) {
	// The biweekly stride is a fixed 15 days (quincena), not 14.
	start := schedule.NewDate(2025, time.March, 1)

	dates, err := schedule.DueDates(5, start, schedule.Biweekly)
	require.NoError(t, err)

	for i := 1; i < len(dates); i++ {
		assert.Equal(t, 15, schedule.DaysBetween(dates[i-1], dates[i]),
			"installments %d and %d must be exactly 15 days apart", i, i+1)
	}
}

func TestDueDates_Monthly_EndOfMonthRule(t *testing.T) {
	// GIVEN: Monthly preset, 3 installments, starting Jan 31
	// THEN: The documented clamp rule applies: 01-31, 02-28, 03-31
	start := schedule.NewDate(2025, time.January, 31)

	dates, err := schedule.DueDates(3, start, schedule.Monthly)
	require.NoError(t, err)

	want := []string{"2025-01-31", "2025-02-28", "2025-03-31"}
	for i, w := range want {
		assert.Equal(t, w, dates[i].String())
	}
}

func TestDueDates_Monthly_FirstOfMonth(t *testing.T) {
	start := schedule.NewDate(2025, time.March, 1)

	dates, err := schedule.DueDates(4, start, schedule.Monthly)
	require.NoError(t, err)

	want := []string{"2025-03-01", "2025-04-01", "2025-05-01", "2025-06-01"}
	for i, w := range want {
		assert.Equal(t, w, dates[i].String())
	}
}

func TestDueDates_InvalidCount(t *testing.T) {
	start := schedule.NewDate(2025, time.March, 1)

	_, err := schedule.DueDates(0, start, schedule.Monthly)
	assert.ErrorIs(t, err, schedule.ErrInvalidCount)
}

func TestDueDates_CustomIsNotAPreset(t *testing.T) {
	start := schedule.NewDate(2025, time.March, 1)

	_, err := schedule.DueDates(3, start, schedule.Custom)
	assert.ErrorIs(t, err, schedule.ErrUnknownPeriodicity)
}

// =============================================================================
// SCHEDULE STATE TESTS
// =============================================================================

func TestSchedule_OverrideDate_TouchesOnlyThatInstallment(t *testing.T) {
	// GIVEN: A monthly schedule
	// WHEN: Overriding installment 2's date
	// THEN: Only that date changes; the tag flips to custom
	start := schedule.NewDate(2025, time.March, 1)
	s, err := schedule.NewSchedule(4, start, schedule.Monthly)
	require.NoError(t, err)

	override := schedule.NewDate(2025, time.April, 15)
	require.NoError(t, s.OverrideDate(2, override))

	assert.Equal(t, schedule.Custom, s.Periodicity)
	assert.Equal(t, "2025-03-01", s.Dates[0].String())
	assert.Equal(t, "2025-04-15", s.Dates[1].String())
	assert.Equal(t, "2025-05-01", s.Dates[2].String())
	assert.Equal(t, "2025-06-01", s.Dates[3].String())

	// Overrides live on the Schedule: regenerating from the same
	// arguments reproduces the pristine sequence.
	fresh, err := schedule.DueDates(4, start, schedule.Monthly)
	require.NoError(t, err)
	assert.Equal(t, "2025-04-01", fresh[1].String())
}

func TestSchedule_Override_MayBreakMonotonicity(t *testing.T) {
	// Pulling installment 3 before installment 2 is allowed, silently.
	start := schedule.NewDate(2025, time.March, 1)
	s, err := schedule.NewSchedule(3, start, schedule.Monthly)
	require.NoError(t, err)

	require.NoError(t, s.OverrideDate(3, schedule.NewDate(2025, time.March, 15)))
	assert.True(t, s.Dates[2].Before(s.Dates[1]))
}

func TestSchedule_Override_TagDoesNotBlockFurtherEdits(t *testing.T) {
	start := schedule.NewDate(2025, time.March, 1)
	s, err := schedule.NewSchedule(3, start, schedule.Monthly)
	require.NoError(t, err)

	require.NoError(t, s.OverrideDate(1, schedule.NewDate(2025, time.March, 5)))
	require.NoError(t, s.OverrideDate(2, schedule.NewDate(2025, time.March, 20)))
	assert.Equal(t, schedule.Custom, s.Periodicity)
}

func TestSchedule_Override_OutOfRange(t *testing.T) {
	start := schedule.NewDate(2025, time.March, 1)
	s, err := schedule.NewSchedule(3, start, schedule.Monthly)
	require.NoError(t, err)

	assert.ErrorIs(t, s.OverrideDate(0, start), schedule.ErrIndexOutOfRange)
	assert.ErrorIs(t, s.OverrideDate(4, start), schedule.ErrIndexOutOfRange)
}

func TestSchedule_Rebase_RegeneratesFromNewAnchor(t *testing.T) {
	// GIVEN: A schedule with a manual override
	// WHEN: Rebasing to a new start date
	// THEN: Every date regenerates from the new anchor; the manual edit
	//       is discarded and the tag resets to the preset
	s, err := schedule.NewSchedule(3, schedule.NewDate(2025, time.March, 1), schedule.Monthly)
	require.NoError(t, err)
	require.NoError(t, s.OverrideDate(2, schedule.NewDate(2025, time.April, 20)))

	require.NoError(t, s.Rebase(schedule.NewDate(2025, time.June, 10)))

	assert.Equal(t, schedule.Monthly, s.Periodicity)
	want := []string{"2025-06-10", "2025-07-10", "2025-08-10"}
	for i, w := range want {
		assert.Equal(t, w, s.Dates[i].String())
	}
}
