/*
allocate.go - Splitting monetary totals across installments

PURPOSE:
  Divides a plan's total and subtotal across N installments at 2-decimal
  precision. Division by N rarely lands on whole cents, so the remainder
  has to go somewhere; the policy choosing where is explicit.

ROUNDING POLICIES:
  RoundIndependent
    Every installment gets round(total/N, 2) as computed independently.
    The sum can drift from the original total by up to N cents. This
    mirrors systems that never reconciled the remainder; kept selectable
    so their books can be reproduced exactly.

  RoundRemainderToFirst
    Installments 2..N get round(total/N, 2); installment 1 absorbs the
    remainder so the installments sum back to the total to the cent.
    This is the default policy for new schedules.

PRECISION:
  All amounts are decimal.Decimal. float64 never touches money here.

SEE ALSO:
  - duedates.go: The date half of an installment
*/
package schedule

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROUNDING POLICY
// =============================================================================

// RoundingPolicy decides where the division remainder goes.
type RoundingPolicy string

const (
	// RoundIndependent gives every installment the independently rounded
	// share. Sum may differ from the total by up to N cents.
	RoundIndependent RoundingPolicy = "independent"

	// RoundRemainderToFirst reconciles the remainder into installment 1
	// so the installments sum to the total exactly.
	RoundRemainderToFirst RoundingPolicy = "remainder_to_first"
)

// minorUnitPlaces is the currency minor unit used throughout: cents.
const minorUnitPlaces = 2

// =============================================================================
// ALLOCATION
// =============================================================================

// InstallmentAmount is the monetary share of a single installment.
type InstallmentAmount struct {
	Subtotal decimal.Decimal
	Total    decimal.Decimal
}

// Allocate splits total and subtotal across count installments under the
// given policy. Count must be >= 1 and total positive; subtotal may be
// zero (plans without a pre-adjustment amount) but not negative.
func Allocate(count int, total, subtotal decimal.Decimal, policy RoundingPolicy) ([]InstallmentAmount, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: total %s", ErrNonPositiveAmount, total)
	}
	if subtotal.IsNegative() {
		return nil, fmt.Errorf("%w: subtotal %s", ErrNonPositiveAmount, subtotal)
	}

	totals, err := split(count, total, policy)
	if err != nil {
		return nil, err
	}
	subtotals, err := split(count, subtotal, policy)
	if err != nil {
		return nil, err
	}

	out := make([]InstallmentAmount, count)
	for i := range out {
		out[i] = InstallmentAmount{Subtotal: subtotals[i], Total: totals[i]}
	}
	return out, nil
}

// split divides amount into count shares at cent precision.
func split(count int, amount decimal.Decimal, policy RoundingPolicy) ([]decimal.Decimal, error) {
	n := decimal.NewFromInt(int64(count))
	share := amount.Div(n).Round(minorUnitPlaces)

	shares := make([]decimal.Decimal, count)
	for i := range shares {
		shares[i] = share
	}

	switch policy {
	case RoundIndependent:
		// Remainder is deliberately not reconciled.
	case RoundRemainderToFirst:
		rest := share.Mul(decimal.NewFromInt(int64(count - 1)))
		shares[0] = amount.Sub(rest)
	default:
		return nil, fmt.Errorf("unknown rounding policy %q", policy)
	}
	return shares, nil
}

// Sum adds up the totals of a set of installment amounts.
func Sum(amounts []InstallmentAmount) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a.Total)
	}
	return sum
}
