package sqlite

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusflow/enrollment-engine/billing"
	"github.com/campusflow/enrollment-engine/schedule"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedEnrollmentRefs inserts the student and plan rows the enrollment
// foreign keys reference.
func seedEnrollmentRefs(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SaveStudent(ctx, Student{ID: "stu-1", Name: "Ana Reyes"}))
	require.NoError(t, store.SavePlan(ctx, billing.PaymentPlan{
		ID:       "plan-x",
		Name:     "Plan X",
		Type:     billing.PaymentSingle,
		Currency: billing.Currency{Code: "MXN", Symbol: "$"},
		Subtotal: money("100.00"),
		Total:    money("100.00"),
	}))
}

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPlanRoundTrip(t *testing.T) {
	// GIVEN a saved installments plan with final amounts
	store := newTestStore(t)
	ctx := context.Background()

	finalSub := money("950.00")
	finalTot := money("1045.00")
	plan := billing.PaymentPlan{
		ID:               "plan-premium",
		Name:             "Premium 4 installments",
		Type:             billing.PaymentInstallments,
		Currency:         billing.Currency{Code: "MXN", Symbol: "$"},
		Subtotal:         money("1000.00"),
		Total:            money("1100.00"),
		InstallmentCount: 4,
		FinalSubtotal:    &finalSub,
		FinalTotal:       &finalTot,
	}
	require.NoError(t, store.SavePlan(ctx, plan))

	// WHEN resolving it back
	got, err := store.ResolvePlan(ctx, plan.ID)
	require.NoError(t, err)

	// THEN every field survives, money exactly
	assert.Equal(t, plan.Name, got.Name)
	assert.Equal(t, billing.PaymentInstallments, got.Type)
	assert.Equal(t, 4, got.InstallmentCount)
	assert.True(t, plan.Total.Equal(got.Total))
	require.NotNil(t, got.FinalTotal)
	assert.True(t, finalTot.Equal(*got.FinalTotal))
	require.NotNil(t, got.FinalSubtotal)
	assert.True(t, finalSub.Equal(*got.FinalSubtotal))
}

func TestResolvePlanNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ResolvePlan(context.Background(), "plan-missing")
	require.Error(t, err)
	assert.True(t, billing.IsNotFound(err))
}

func TestSavePlanUpsert(t *testing.T) {
	// GIVEN a plan saved twice with different totals
	store := newTestStore(t)
	ctx := context.Background()

	plan := billing.PaymentPlan{
		ID:       "plan-basic",
		Name:     "Basic",
		Type:     billing.PaymentSingle,
		Currency: billing.Currency{Code: "MXN", Symbol: "$"},
		Subtotal: money("500.00"),
		Total:    money("500.00"),
	}
	require.NoError(t, store.SavePlan(ctx, plan))

	plan.Total = money("550.00")
	require.NoError(t, store.SavePlan(ctx, plan))

	// THEN the second save wins and no duplicate row exists
	got, err := store.ResolvePlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.True(t, money("550.00").Equal(got.Total))

	plans, err := store.ListPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}

func TestEnrollmentAndPayments(t *testing.T) {
	// GIVEN a student enrolled with three installments
	store := newTestStore(t)
	ctx := context.Background()

	seedEnrollmentRefs(t, store)

	created, err := store.CreateEnrollment(ctx, billing.Enrollment{
		StudentID:      "stu-1",
		PlanID:         "plan-x",
		EnrollmentDate: schedule.MustParseDate("2025-09-01"),
		FirstDueDate:   schedule.MustParseDate("2025-09-15"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, billing.StatusActive, created.Status)

	dueDates := []string{"2025-09-15", "2025-10-15", "2025-11-15"}
	for i, due := range dueDates {
		_, err := store.CreatePaymentRecord(ctx, created.ID, i+1,
			money("100.00"), money("110.00"), schedule.MustParseDate(due))
		require.NoError(t, err)
	}

	// WHEN reading them back
	records, err := store.PaymentsByEnrollment(ctx, created.ID)
	require.NoError(t, err)

	// THEN they come back in sequence order with dates intact
	require.Len(t, records, 3)
	for i, r := range records {
		assert.Equal(t, i+1, r.SequenceNumber)
		assert.True(t, money("110.00").Equal(r.Total))
	}
	assert.Equal(t, "2025-11-15", records[2].DueDate.String())

	// AND the enrollment itself reads back whole
	got, err := store.GetEnrollment(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StudentID("stu-1"), got.StudentID)
	assert.Equal(t, "2025-09-01", got.EnrollmentDate.String())
}

func TestGetEnrollmentNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetEnrollment(context.Background(), "enr-missing")
	require.Error(t, err)
	assert.True(t, billing.IsNotFound(err))
}

func TestDuplicatePaymentSequenceRejected(t *testing.T) {
	// GIVEN an enrollment with sequence 1 already written
	store := newTestStore(t)
	ctx := context.Background()
	seedEnrollmentRefs(t, store)

	created, err := store.CreateEnrollment(ctx, billing.Enrollment{
		StudentID:      "stu-1",
		PlanID:         "plan-x",
		EnrollmentDate: schedule.MustParseDate("2025-09-01"),
		FirstDueDate:   schedule.MustParseDate("2025-09-15"),
	})
	require.NoError(t, err)

	_, err = store.CreatePaymentRecord(ctx, created.ID, 1,
		money("100.00"), money("110.00"), schedule.MustParseDate("2025-09-15"))
	require.NoError(t, err)

	// WHEN writing sequence 1 again THEN the unique constraint rejects it
	_, err = store.CreatePaymentRecord(ctx, created.ID, 1,
		money("100.00"), money("110.00"), schedule.MustParseDate("2025-09-15"))
	assert.Error(t, err)
}

func TestDuplicateEnrollmentCheck(t *testing.T) {
	// GIVEN an active enrollment pinned to a period
	store := newTestStore(t)
	ctx := context.Background()
	seedEnrollmentRefs(t, store)

	_, err := store.CreateEnrollment(ctx, billing.Enrollment{
		StudentID:            "stu-1",
		PlanID:               "plan-x",
		EnrollmentDate:       schedule.MustParseDate("2025-09-01"),
		FirstDueDate:         schedule.MustParseDate("2025-09-15"),
		PeriodControlEnabled: true,
		AcademicPeriodID:     "2025-fall",
	})
	require.NoError(t, err)

	// THEN the same student+period reads as duplicate
	dup, err := store.CheckDuplicateEnrollment(ctx, "stu-1", "2025-fall")
	require.NoError(t, err)
	assert.True(t, dup)

	// AND a different period or student does not
	dup, err = store.CheckDuplicateEnrollment(ctx, "stu-1", "2026-spring")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = store.CheckDuplicateEnrollment(ctx, "stu-2", "2025-fall")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestAbonoRoundTrip(t *testing.T) {
	// GIVEN an enrollment with a first installment and an abono against it
	store := newTestStore(t)
	ctx := context.Background()
	seedEnrollmentRefs(t, store)

	created, err := store.CreateEnrollment(ctx, billing.Enrollment{
		StudentID:      "stu-1",
		PlanID:         "plan-x",
		EnrollmentDate: schedule.MustParseDate("2025-09-01"),
		FirstDueDate:   schedule.MustParseDate("2025-09-15"),
	})
	require.NoError(t, err)

	record, err := store.CreatePaymentRecord(ctx, created.ID, 1,
		money("100.00"), money("110.00"), schedule.MustParseDate("2025-09-15"))
	require.NoError(t, err)

	saved, err := store.CreateAbono(ctx, billing.Abono{
		PaymentRecordID: record.ID,
		Method:          "cash",
		Amount:          money("50.00"),
		Reference:       "folio-123",
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	// WHEN listing abonos through the enrollment
	abonos, err := store.AbonosByEnrollment(ctx, created.ID)
	require.NoError(t, err)

	// THEN the abono reads back with amount and reference intact
	require.Len(t, abonos, 1)
	assert.Equal(t, record.ID, abonos[0].PaymentRecordID)
	assert.True(t, money("50.00").Equal(abonos[0].Amount))
	assert.Equal(t, "folio-123", abonos[0].Reference)
	assert.Empty(t, abonos[0].Note)
}

func TestStudentsAndPeriods(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveStudent(ctx, Student{ID: "stu-1", Name: "Ana Reyes", Email: "ana@example.com"}))
	require.NoError(t, store.SavePeriod(ctx, AcademicPeriod{
		ID:       "2025-fall",
		Name:     "Fall 2025",
		StartsOn: schedule.MustParseDate("2025-08-01"),
		EndsOn:   schedule.MustParseDate("2025-12-15"),
	}))

	st, err := store.GetStudent(ctx, "stu-1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "ana@example.com", st.Email)

	missing, err := store.GetStudent(ctx, "stu-404")
	require.NoError(t, err)
	assert.Nil(t, missing)

	periods, err := store.ListPeriods(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "2025-08-01", periods[0].StartsOn.String())
}
