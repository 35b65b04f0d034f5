/*
Package store provides an in-memory billing.Backend for tests and demos.

PURPOSE:
  A full Backend implementation backed by maps. Seed plans with SavePlan,
  run the orchestrator against it, and inspect what got persisted with
  the accessor methods. Safe for concurrent use.

SEE ALSO:
  - billing/backend.go: The interface being implemented
  - store/sqlite: The production implementation
*/
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campusflow/enrollment-engine/billing"
	"github.com/campusflow/enrollment-engine/schedule"
)

// =============================================================================
// MEMORY BACKEND
// =============================================================================

// Memory implements billing.Backend with in-process maps.
type Memory struct {
	mu          sync.RWMutex
	plans       map[billing.PlanID]billing.PaymentPlan
	enrollments map[billing.EnrollmentID]billing.Enrollment
	payments    map[billing.EnrollmentID][]billing.PaymentRecord
	abonos      map[billing.AbonoID]billing.Abono
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		plans:       make(map[billing.PlanID]billing.PaymentPlan),
		enrollments: make(map[billing.EnrollmentID]billing.Enrollment),
		payments:    make(map[billing.EnrollmentID][]billing.PaymentRecord),
		abonos:      make(map[billing.AbonoID]billing.Abono),
	}
}

// SavePlan seeds or replaces a plan.
func (m *Memory) SavePlan(plan billing.PaymentPlan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.ID] = plan
}

// ResolvePlan returns the plan or billing.ErrPlanNotFound.
func (m *Memory) ResolvePlan(_ context.Context, id billing.PlanID) (*billing.PaymentPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plan, ok := m.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", billing.ErrPlanNotFound, id)
	}
	return &plan, nil
}

// CheckDuplicateEnrollment reports an active enrollment for the student
// in the period.
func (m *Memory) CheckDuplicateEnrollment(_ context.Context, studentID billing.StudentID, periodID billing.AcademicPeriodID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.AcademicPeriodID == periodID && e.Status == billing.StatusActive {
			return true, nil
		}
	}
	return false, nil
}

// CreateEnrollment persists the enrollment and assigns its ID.
func (m *Memory) CreateEnrollment(_ context.Context, e billing.Enrollment) (*billing.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = billing.EnrollmentID(uuid.NewString())
	m.enrollments[e.ID] = e
	return &e, nil
}

// CreatePaymentRecord persists one installment.
func (m *Memory) CreatePaymentRecord(_ context.Context, enrollmentID billing.EnrollmentID, seq int, subtotal, total decimal.Decimal, dueDate schedule.CalendarDate) (*billing.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.enrollments[enrollmentID]; !ok {
		return nil, fmt.Errorf("%w: %s", billing.ErrEnrollmentNotFound, enrollmentID)
	}

	record := billing.PaymentRecord{
		ID:             billing.PaymentRecordID(uuid.NewString()),
		EnrollmentID:   enrollmentID,
		SequenceNumber: seq,
		Subtotal:       subtotal,
		Total:          total,
		DueDate:        dueDate,
	}
	m.payments[enrollmentID] = append(m.payments[enrollmentID], record)
	return &record, nil
}

// CreateAbono persists the partial payment.
func (m *Memory) CreateAbono(_ context.Context, a billing.Abono) (*billing.Abono, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a.ID = billing.AbonoID(uuid.NewString())
	m.abonos[a.ID] = a
	return &a, nil
}

// =============================================================================
// INSPECTION HELPERS
// =============================================================================

// Enrollments returns every persisted enrollment.
func (m *Memory) Enrollments() []billing.Enrollment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]billing.Enrollment, 0, len(m.enrollments))
	for _, e := range m.enrollments {
		out = append(out, e)
	}
	return out
}

// Payments returns the persisted installments of one enrollment.
func (m *Memory) Payments(id billing.EnrollmentID) []billing.PaymentRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]billing.PaymentRecord, len(m.payments[id]))
	copy(out, m.payments[id])
	return out
}

// Abonos returns every persisted abono.
func (m *Memory) Abonos() []billing.Abono {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]billing.Abono, 0, len(m.abonos))
	for _, a := range m.abonos {
		out = append(out, a)
	}
	return out
}
