package schedule_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusflow/enrollment-engine/schedule"
)

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// =============================================================================
// ALLOCATION TESTS
// =============================================================================

func TestAllocate_EvenSplit(t *testing.T) {
	amounts, err := schedule.Allocate(4, money("100.00"), money("90.00"), schedule.RoundRemainderToFirst)
	require.NoError(t, err)
	require.Len(t, amounts, 4)

	for _, a := range amounts {
		assert.True(t, a.Total.Equal(money("25.00")), "got %s", a.Total)
		assert.True(t, a.Subtotal.Equal(money("22.50")), "got %s", a.Subtotal)
	}
}

func TestAllocate_RemainderToFirst_SumsExactly(t *testing.T) {
	// GIVEN: 100.00 over 3 installments (33.333...)
	// THEN: Installment 1 absorbs the remainder; installments sum exactly
	amounts, err := schedule.Allocate(3, money("100.00"), money("100.00"), schedule.RoundRemainderToFirst)
	require.NoError(t, err)

	assert.True(t, amounts[0].Total.Equal(money("33.34")), "got %s", amounts[0].Total)
	assert.True(t, amounts[1].Total.Equal(money("33.33")))
	assert.True(t, amounts[2].Total.Equal(money("33.33")))
	assert.True(t, schedule.Sum(amounts).Equal(money("100.00")))
}

func TestAllocate_RemainderToFirst_AlwaysReconciles(t *testing.T) {
	cases := []struct {
		count int
		total string
	}{
		{3, "100.00"},
		{7, "999.99"},
		{6, "200.00"},
		{12, "1250.50"},
		{9, "0.10"},
	}

	for _, tc := range cases {
		amounts, err := schedule.Allocate(tc.count, money(tc.total), money(tc.total), schedule.RoundRemainderToFirst)
		require.NoError(t, err)
		assert.True(t, schedule.Sum(amounts).Equal(money(tc.total)),
			"count=%d total=%s got sum %s", tc.count, tc.total, schedule.Sum(amounts))
	}
}

func TestAllocate_Independent_DriftBoundedByNCents(t *testing.T) {
	// Under the no-reconciliation policy the sum may drift, but never by
	// more than one cent per installment.
	cases := []struct {
		count int
		total string
	}{
		{3, "100.00"},
		{7, "999.99"},
		{6, "200.00"},
		{12, "1250.50"},
	}

	cent := money("0.01")
	for _, tc := range cases {
		amounts, err := schedule.Allocate(tc.count, money(tc.total), money(tc.total), schedule.RoundIndependent)
		require.NoError(t, err)

		drift := schedule.Sum(amounts).Sub(money(tc.total)).Abs()
		bound := cent.Mul(decimal.NewFromInt(int64(tc.count)))
		assert.True(t, drift.LessThanOrEqual(bound),
			"count=%d total=%s drift %s exceeds %s", tc.count, tc.total, drift, bound)
	}
}

func TestAllocate_Independent_KnownDriftCase(t *testing.T) {
	// 100.00 over 3 at independent rounding: 33.33 each, sum 99.99.
	amounts, err := schedule.Allocate(3, money("100.00"), money("100.00"), schedule.RoundIndependent)
	require.NoError(t, err)

	for _, a := range amounts {
		assert.True(t, a.Total.Equal(money("33.33")))
	}
	assert.True(t, schedule.Sum(amounts).Equal(money("99.99")))
}

func TestAllocate_SingleInstallment(t *testing.T) {
	for _, policy := range []schedule.RoundingPolicy{schedule.RoundIndependent, schedule.RoundRemainderToFirst} {
		amounts, err := schedule.Allocate(1, money("250.75"), money("230.00"), policy)
		require.NoError(t, err)
		require.Len(t, amounts, 1)
		assert.True(t, amounts[0].Total.Equal(money("250.75")))
		assert.True(t, amounts[0].Subtotal.Equal(money("230.00")))
	}
}

func TestAllocate_ZeroSubtotalAllowed(t *testing.T) {
	amounts, err := schedule.Allocate(2, money("50.00"), decimal.Zero, schedule.RoundRemainderToFirst)
	require.NoError(t, err)
	assert.True(t, amounts[0].Subtotal.IsZero())
	assert.True(t, amounts[1].Subtotal.IsZero())
}

func TestAllocate_InvalidInputs(t *testing.T) {
	_, err := schedule.Allocate(0, money("10.00"), money("10.00"), schedule.RoundRemainderToFirst)
	assert.ErrorIs(t, err, schedule.ErrInvalidCount)

	_, err = schedule.Allocate(3, decimal.Zero, decimal.Zero, schedule.RoundRemainderToFirst)
	assert.ErrorIs(t, err, schedule.ErrNonPositiveAmount)

	_, err = schedule.Allocate(3, money("10.00"), money("-1.00"), schedule.RoundRemainderToFirst)
	assert.ErrorIs(t, err, schedule.ErrNonPositiveAmount)

	_, err = schedule.Allocate(3, money("10.00"), money("10.00"), schedule.RoundingPolicy("banker"))
	assert.Error(t, err)
}
