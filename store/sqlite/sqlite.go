/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements billing.Backend plus the administrative lookups the API
  needs (plans, students, academic periods, enrollment read-back). In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  payment_plans:    Plan definitions (the money source of truth)
  students:         Student directory (minimal; the full CRM lives elsewhere)
  academic_periods: Periods for enrollment control
  enrollments:      One row per committed enrollment
  payment_records:  One row per scheduled installment
  abonos:           Initial partial payments

MONEY AND DATES:
  Monetary amounts are stored as decimal strings, never as REAL; dates
  are stored as plain ISO calendar dates with no timezone component.

INDEXES:
  idx_enrollments_student_period backs the duplicate-enrollment check;
  payment_records carries a UNIQUE(enrollment_id, sequence_number) so a
  retried installment write cannot double a sequence.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. With PostgreSQL, database-level
  concurrency control would handle this instead.

WAL MODE:
  SQLite is opened with WAL and foreign keys on.

USAGE:
  store, err := sqlite.New("./data/enrollments.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  orch := billing.NewOrchestrator(store)

SEE ALSO:
  - billing/backend.go: Interface definition
  - billing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/campusflow/enrollment-engine/billing"
	"github.com/campusflow/enrollment-engine/schedule"
)

// Store implements billing.Backend and the admin lookups using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS payment_plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		currency_code TEXT NOT NULL DEFAULT 'MXN',
		currency_symbol TEXT NOT NULL DEFAULT '$',
		subtotal TEXT NOT NULL,
		total TEXT NOT NULL,
		installment_count INTEGER NOT NULL DEFAULT 0,
		final_subtotal TEXT,
		final_total TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS academic_periods (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		starts_on TEXT NOT NULL,
		ends_on TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS enrollments (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL REFERENCES students(id),
		plan_id TEXT NOT NULL REFERENCES payment_plans(id),
		enrollment_date TEXT NOT NULL,
		first_due_date TEXT NOT NULL,
		period_control INTEGER NOT NULL DEFAULT 0,
		academic_period_id TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	-- Backs the duplicate-enrollment check (student + period + status)
	CREATE INDEX IF NOT EXISTS idx_enrollments_student_period
		ON enrollments(student_id, academic_period_id, status);

	CREATE TABLE IF NOT EXISTS payment_records (
		id TEXT PRIMARY KEY,
		enrollment_id TEXT NOT NULL REFERENCES enrollments(id),
		sequence_number INTEGER NOT NULL,
		subtotal TEXT NOT NULL,
		total TEXT NOT NULL,
		due_date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(enrollment_id, sequence_number)
	);

	CREATE INDEX IF NOT EXISTS idx_payment_records_enrollment
		ON payment_records(enrollment_id, sequence_number);
	CREATE INDEX IF NOT EXISTS idx_payment_records_due_date
		ON payment_records(due_date);

	CREATE TABLE IF NOT EXISTS abonos (
		id TEXT PRIMARY KEY,
		payment_record_id TEXT NOT NULL REFERENCES payment_records(id),
		method TEXT NOT NULL,
		amount TEXT NOT NULL,
		reference TEXT,
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_abonos_payment_record
		ON abonos(payment_record_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

// =============================================================================
// PAYMENT PLANS (billing.Backend: ResolvePlan, plus admin CRUD)
// =============================================================================

// SavePlan inserts or replaces a payment plan.
func (s *Store) SavePlan(ctx context.Context, plan billing.PaymentPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payment_plans
		(id, name, payment_type, currency_code, currency_symbol, subtotal, total,
		 installment_count, final_subtotal, final_total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			payment_type = excluded.payment_type,
			currency_code = excluded.currency_code,
			currency_symbol = excluded.currency_symbol,
			subtotal = excluded.subtotal,
			total = excluded.total,
			installment_count = excluded.installment_count,
			final_subtotal = excluded.final_subtotal,
			final_total = excluded.final_total
	`

	_, err := s.db.ExecContext(ctx, query,
		plan.ID, plan.Name, plan.Type,
		plan.Currency.Code, plan.Currency.Symbol,
		plan.Subtotal.String(), plan.Total.String(),
		plan.InstallmentCount,
		nullDecimal(plan.FinalSubtotal), nullDecimal(plan.FinalTotal),
		now(),
	)
	return err
}

// ResolvePlan returns the authoritative plan definition.
func (s *Store) ResolvePlan(ctx context.Context, id billing.PlanID) (*billing.PaymentPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, payment_type, currency_code, currency_symbol,
		       subtotal, total, installment_count, final_subtotal, final_total
		FROM payment_plans WHERE id = ?`, id)

	plan, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", billing.ErrPlanNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// ListPlans returns all plans ordered by name.
func (s *Store) ListPlans(ctx context.Context) ([]billing.PaymentPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, payment_type, currency_code, currency_symbol,
		       subtotal, total, installment_count, final_subtotal, final_total
		FROM payment_plans ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []billing.PaymentPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*billing.PaymentPlan, error) {
	var (
		plan                      billing.PaymentPlan
		subtotal, total           string
		finalSubtotal, finalTotal sql.NullString
	)

	err := row.Scan(
		&plan.ID, &plan.Name, &plan.Type,
		&plan.Currency.Code, &plan.Currency.Symbol,
		&subtotal, &total, &plan.InstallmentCount,
		&finalSubtotal, &finalTotal,
	)
	if err != nil {
		return nil, err
	}

	if plan.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return nil, fmt.Errorf("corrupt subtotal for plan %s: %w", plan.ID, err)
	}
	if plan.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("corrupt total for plan %s: %w", plan.ID, err)
	}
	if plan.FinalSubtotal, err = parseNullDecimal(finalSubtotal); err != nil {
		return nil, fmt.Errorf("corrupt final_subtotal for plan %s: %w", plan.ID, err)
	}
	if plan.FinalTotal, err = parseNullDecimal(finalTotal); err != nil {
		return nil, fmt.Errorf("corrupt final_total for plan %s: %w", plan.ID, err)
	}
	return &plan, nil
}

// =============================================================================
// DUPLICATE GUARD (billing.Backend)
// =============================================================================

// CheckDuplicateEnrollment reports whether the student already has an
// active enrollment in the academic period.
func (s *Store) CheckDuplicateEnrollment(ctx context.Context, studentID billing.StudentID, periodID billing.AcademicPeriodID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM enrollments
		WHERE student_id = ? AND academic_period_id = ? AND status = ?`,
		studentID, periodID, billing.StatusActive,
	).Scan(&count)

	return count > 0, err
}

// =============================================================================
// ENROLLMENTS (billing.Backend: CreateEnrollment, plus read-back)
// =============================================================================

// CreateEnrollment persists the enrollment and assigns its ID.
func (s *Store) CreateEnrollment(ctx context.Context, e billing.Enrollment) (*billing.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = billing.EnrollmentID(uuid.NewString())
	if e.Status == "" {
		e.Status = billing.StatusActive
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enrollments
		(id, student_id, plan_id, enrollment_date, first_due_date,
		 period_control, academic_period_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StudentID, e.PlanID,
		e.EnrollmentDate.String(), e.FirstDueDate.String(),
		e.PeriodControlEnabled, nullString(string(e.AcademicPeriodID)),
		e.Status, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}
	return &e, nil
}

// GetEnrollment returns one enrollment, or ErrEnrollmentNotFound.
func (s *Store) GetEnrollment(ctx context.Context, id billing.EnrollmentID) (*billing.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, student_id, plan_id, enrollment_date, first_due_date,
		       period_control, academic_period_id, status
		FROM enrollments WHERE id = ?`, id)

	e, err := scanEnrollment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", billing.ErrEnrollmentNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListEnrollments returns every enrollment, newest first.
func (s *Store) ListEnrollments(ctx context.Context) ([]billing.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, plan_id, enrollment_date, first_due_date,
		       period_control, academic_period_id, status
		FROM enrollments ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanEnrollment(row rowScanner) (*billing.Enrollment, error) {
	var (
		e                    billing.Enrollment
		enrollDate, firstDue string
		periodID             sql.NullString
	)

	err := row.Scan(&e.ID, &e.StudentID, &e.PlanID, &enrollDate, &firstDue,
		&e.PeriodControlEnabled, &periodID, &e.Status)
	if err != nil {
		return nil, err
	}

	if e.EnrollmentDate, err = schedule.ParseDate(enrollDate); err != nil {
		return nil, err
	}
	if e.FirstDueDate, err = schedule.ParseDate(firstDue); err != nil {
		return nil, err
	}
	e.AcademicPeriodID = billing.AcademicPeriodID(periodID.String)
	return &e, nil
}

// =============================================================================
// PAYMENT RECORDS (billing.Backend: CreatePaymentRecord, plus read-back)
// =============================================================================

// CreatePaymentRecord persists one installment and assigns its ID.
func (s *Store) CreatePaymentRecord(ctx context.Context, enrollmentID billing.EnrollmentID, seq int, subtotal, total decimal.Decimal, dueDate schedule.CalendarDate) (*billing.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := billing.PaymentRecord{
		ID:             billing.PaymentRecordID(uuid.NewString()),
		EnrollmentID:   enrollmentID,
		SequenceNumber: seq,
		Subtotal:       subtotal,
		Total:          total,
		DueDate:        dueDate,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_records
		(id, enrollment_id, sequence_number, subtotal, total, due_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.EnrollmentID, record.SequenceNumber,
		record.Subtotal.String(), record.Total.String(),
		record.DueDate.String(), now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment record: %w", err)
	}
	return &record, nil
}

// PaymentsByEnrollment returns an enrollment's installments in sequence order.
func (s *Store) PaymentsByEnrollment(ctx context.Context, id billing.EnrollmentID) ([]billing.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, enrollment_id, sequence_number, subtotal, total, due_date
		FROM payment_records
		WHERE enrollment_id = ?
		ORDER BY sequence_number ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []billing.PaymentRecord
	for rows.Next() {
		var (
			r               billing.PaymentRecord
			subtotal, total string
			due             string
		)
		if err := rows.Scan(&r.ID, &r.EnrollmentID, &r.SequenceNumber, &subtotal, &total, &due); err != nil {
			return nil, err
		}
		if r.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return nil, err
		}
		if r.Total, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		if r.DueDate, err = schedule.ParseDate(due); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// =============================================================================
// ABONOS (billing.Backend: CreateAbono, plus read-back)
// =============================================================================

// CreateAbono persists the initial partial payment.
func (s *Store) CreateAbono(ctx context.Context, a billing.Abono) (*billing.Abono, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = billing.AbonoID(uuid.NewString())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO abonos (id, payment_record_id, method, amount, reference, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.PaymentRecordID, a.Method, a.Amount.String(),
		nullString(a.Reference), nullString(a.Note), now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create abono: %w", err)
	}
	return &a, nil
}

// AbonosByEnrollment returns the abonos recorded against an enrollment's
// installments.
func (s *Store) AbonosByEnrollment(ctx context.Context, id billing.EnrollmentID) ([]billing.Abono, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.payment_record_id, a.method, a.amount, a.reference, a.note
		FROM abonos a
		JOIN payment_records p ON p.id = a.payment_record_id
		WHERE p.enrollment_id = ?
		ORDER BY a.created_at ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var abonos []billing.Abono
	for rows.Next() {
		var (
			a               billing.Abono
			amount          string
			reference, note sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.PaymentRecordID, &a.Method, &amount, &reference, &note); err != nil {
			return nil, err
		}
		if a.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		a.Reference = reference.String
		a.Note = note.String
		abonos = append(abonos, a)
	}
	return abonos, rows.Err()
}

// =============================================================================
// STUDENTS
// =============================================================================

// Student is the minimal directory record the enrollment flow needs.
// The full CRM student profile lives in another system.
type Student struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// SaveStudent inserts or updates a student.
func (s *Store) SaveStudent(ctx context.Context, st Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO students (id, name, email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email`,
		st.ID, st.Name, st.Email, now(),
	)
	return err
}

// GetStudent returns a student or nil when absent.
func (s *Store) GetStudent(ctx context.Context, id string) (*Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Student
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, created_at FROM students WHERE id = ?", id,
	).Scan(&st.ID, &st.Name, &st.Email, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &st, nil
}

// ListStudents returns all students ordered by name.
func (s *Store) ListStudents(ctx context.Context) ([]Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, created_at FROM students ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var st Student
		var createdAt string
		if err := rows.Scan(&st.ID, &st.Name, &st.Email, &createdAt); err != nil {
			return nil, err
		}
		st.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		students = append(students, st)
	}
	return students, rows.Err()
}

// =============================================================================
// ACADEMIC PERIODS
// =============================================================================

// AcademicPeriod is a named span enrollments can be pinned to.
type AcademicPeriod struct {
	ID       string
	Name     string
	StartsOn schedule.CalendarDate
	EndsOn   schedule.CalendarDate
}

// SavePeriod inserts or updates an academic period.
func (s *Store) SavePeriod(ctx context.Context, p AcademicPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO academic_periods (id, name, starts_on, ends_on, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			starts_on = excluded.starts_on,
			ends_on = excluded.ends_on`,
		p.ID, p.Name, p.StartsOn.String(), p.EndsOn.String(), now(),
	)
	return err
}

// ListPeriods returns all academic periods, most recent first.
func (s *Store) ListPeriods(ctx context.Context) ([]AcademicPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, starts_on, ends_on FROM academic_periods ORDER BY starts_on DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []AcademicPeriod
	for rows.Next() {
		var p AcademicPeriod
		var starts, ends string
		if err := rows.Scan(&p.ID, &p.Name, &starts, &ends); err != nil {
			return nil, err
		}
		if p.StartsOn, err = schedule.ParseDate(starts); err != nil {
			return nil, err
		}
		if p.EndsOn, err = schedule.ParseDate(ends); err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
