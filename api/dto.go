/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ON THE WIRE:
  Monetary amounts travel as decimal strings ("150.00"), never as JSON
  numbers. Handlers parse them with shopspring/decimal and reject
  anything that doesn't parse.

VALIDATION:
  Request types carry go-playground/validator tags; handlers run the
  shared validator before touching domain logic. Domain-level rules
  (plan type semantics, abono constraints) stay in billing.

SEE ALSO:
  - handlers.go: Uses these types
  - billing/orchestrator.go: CommitInput, the domain-side counterpart
*/
package api

// =============================================================================
// PLANS
// =============================================================================

// PlanDTO represents a payment plan in API responses.
type PlanDTO struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	CurrencyCode     string `json:"currency_code"`
	CurrencySymbol   string `json:"currency_symbol"`
	Subtotal         string `json:"subtotal"`
	Total            string `json:"total"`
	InstallmentCount int    `json:"installment_count,omitempty"`
	FinalSubtotal    string `json:"final_subtotal,omitempty"`
	FinalTotal       string `json:"final_total,omitempty"`
}

// CreatePlanRequest is the request to create or update a payment plan.
type CreatePlanRequest struct {
	ID               string `json:"id" validate:"required"`
	Name             string `json:"name" validate:"required"`
	Type             string `json:"type" validate:"required,oneof=single recurring installments"`
	CurrencyCode     string `json:"currency_code" validate:"omitempty,len=3"`
	CurrencySymbol   string `json:"currency_symbol"`
	Subtotal         string `json:"subtotal" validate:"required"`
	Total            string `json:"total" validate:"required"`
	InstallmentCount int    `json:"installment_count" validate:"omitempty,min=0"`
	FinalSubtotal    string `json:"final_subtotal"`
	FinalTotal       string `json:"final_total"`
}

// =============================================================================
// STUDENTS AND PERIODS
// =============================================================================

// StudentDTO represents a student in API responses.
type StudentDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// CreateStudentRequest is the request to create a student.
type CreateStudentRequest struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
}

// PeriodDTO represents an academic period in API responses.
type PeriodDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	StartsOn string `json:"starts_on"`
	EndsOn   string `json:"ends_on"`
}

// CreatePeriodRequest is the request to create an academic period.
type CreatePeriodRequest struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	StartsOn string `json:"starts_on" validate:"required,datetime=2006-01-02"`
	EndsOn   string `json:"ends_on" validate:"required,datetime=2006-01-02"`
}

// =============================================================================
// SCHEDULE PREVIEW
// =============================================================================

// PreviewRequest asks for a schedule without persisting anything.
// DateOverrides is keyed by 1-based sequence number.
type PreviewRequest struct {
	PlanID        string            `json:"plan_id" validate:"required"`
	FirstDueDate  string            `json:"first_due_date" validate:"required,datetime=2006-01-02"`
	Periodicity   string            `json:"periodicity" validate:"omitempty,oneof=weekly biweekly monthly"`
	DateOverrides map[string]string `json:"date_overrides,omitempty"`
}

// InstallmentDTO is one row of a schedule, previewed or persisted.
type InstallmentDTO struct {
	ID             string `json:"id,omitempty"`
	SequenceNumber int    `json:"sequence_number"`
	Subtotal       string `json:"subtotal"`
	Total          string `json:"total"`
	DueDate        string `json:"due_date"`
}

// PreviewResponse is the generated schedule for a plan.
type PreviewResponse struct {
	Plan         PlanDTO          `json:"plan"`
	Periodicity  string           `json:"periodicity,omitempty"`
	Installments []InstallmentDTO `json:"installments"`
}

// =============================================================================
// ENROLLMENT COMMIT
// =============================================================================

// AbonoRequest is the optional initial partial payment of a commit,
// and the body of the standalone abono retry endpoint.
type AbonoRequest struct {
	Method    string `json:"method" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	Reference string `json:"reference"`
	Note      string `json:"note"`
}

// CreateEnrollmentRequest is the commit form the operator submits.
type CreateEnrollmentRequest struct {
	StudentID            string            `json:"student_id" validate:"required"`
	PlanID               string            `json:"plan_id" validate:"required"`
	EnrollmentDate       string            `json:"enrollment_date" validate:"required,datetime=2006-01-02"`
	FirstDueDate         string            `json:"first_due_date" validate:"required,datetime=2006-01-02"`
	PeriodControlEnabled bool              `json:"period_control_enabled"`
	AcademicPeriodID     string            `json:"academic_period_id"`
	Periodicity          string            `json:"periodicity" validate:"omitempty,oneof=weekly biweekly monthly"`
	DateOverrides        map[string]string `json:"date_overrides,omitempty"`
	Abono                *AbonoRequest     `json:"abono,omitempty"`
}

// EnrollmentDTO represents an enrollment in API responses.
type EnrollmentDTO struct {
	ID                   string `json:"id"`
	StudentID            string `json:"student_id"`
	PlanID               string `json:"plan_id"`
	EnrollmentDate       string `json:"enrollment_date"`
	FirstDueDate         string `json:"first_due_date"`
	PeriodControlEnabled bool   `json:"period_control_enabled"`
	AcademicPeriodID     string `json:"academic_period_id,omitempty"`
	Status               string `json:"status"`
}

// AbonoDTO represents a recorded abono in API responses.
type AbonoDTO struct {
	ID              string `json:"id"`
	PaymentRecordID string `json:"payment_record_id"`
	Method          string `json:"method"`
	Amount          string `json:"amount"`
	Reference       string `json:"reference,omitempty"`
	Note            string `json:"note,omitempty"`
}

// CommitResponse is the full persisted outcome of a commit.
type CommitResponse struct {
	Enrollment EnrollmentDTO    `json:"enrollment"`
	Payments   []InstallmentDTO `json:"payments"`
	Abono      *AbonoDTO        `json:"abono,omitempty"`

	// Warning is set when the commit succeeded except for the abono step.
	Warning string `json:"warning,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`

	// Partial carries the surviving records when a commit failed after
	// the enrollment was created. There is no automatic rollback.
	Partial *CommitResponse `json:"partial,omitempty"`
}
