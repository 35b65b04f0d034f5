/*
handlers.go - HTTP API handlers for the enrollment engine

PURPOSE:
  Exposes the scheduling engine and commit orchestrator via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Plans:
    GET    /api/plans                  List payment plans
    POST   /api/plans                  Create/update a plan
    GET    /api/plans/{id}             Get plan details

  Students:
    GET    /api/students               List students
    POST   /api/students               Create a student

  Academic periods:
    GET    /api/periods                List academic periods
    POST   /api/periods                Create a period

  Schedule:
    POST   /api/schedule/preview       Generate dates + amounts, no writes

  Enrollments:
    POST   /api/enrollments            Commit an enrollment
    GET    /api/enrollments            List enrollments
    GET    /api/enrollments/{id}       Enrollment + payments + abonos
    POST   /api/enrollments/{id}/abono Retry a failed abono

ERROR HANDLING:
  The billing error taxonomy maps onto HTTP statuses:
  - 400: ValidationError, malformed JSON, bad dates or amounts
  - 404: Not-found sentinels
  - 409: ConflictError (duplicate enrollment), commit already in flight
  - 502: RemoteError (backend failed before any write survived)
  - 500: PartialCommitError, with the surviving records in the body

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - billing/orchestrator.go: The commit workflow behind POST /api/enrollments
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/campusflow/enrollment-engine/billing"
	"github.com/campusflow/enrollment-engine/schedule"
	"github.com/campusflow/enrollment-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        *sqlite.Store
	Orchestrator *billing.Orchestrator

	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewHandler creates a new handler around the store. The orchestrator
// runs against the same store.
func NewHandler(store *sqlite.Store, log logrus.FieldLogger) *Handler {
	return &Handler{
		Store:        store,
		Orchestrator: billing.NewOrchestrator(store, billing.WithLogger(log)),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		log:          log,
	}
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns all payment plans.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Store.ListPlans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list plans", err)
		return
	}

	dtos := make([]PlanDTO, len(plans))
	for i := range plans {
		dtos[i] = toPlanDTO(&plans[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPlan returns a single payment plan.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := billing.PlanID(chi.URLParam(r, "id"))

	plan, err := h.Store.ResolvePlan(r.Context(), id)
	if err != nil {
		if billing.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Plan not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan))
}

// CreatePlan creates or updates a payment plan.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	subtotal, err := decimal.NewFromString(req.Subtotal)
	if err != nil {
		writeFieldError(w, "subtotal", "must be a decimal amount")
		return
	}
	total, err := decimal.NewFromString(req.Total)
	if err != nil {
		writeFieldError(w, "total", "must be a decimal amount")
		return
	}

	plan := billing.PaymentPlan{
		ID:       billing.PlanID(req.ID),
		Name:     req.Name,
		Type:     billing.PaymentType(req.Type),
		Currency: billing.Currency{Code: req.CurrencyCode, Symbol: req.CurrencySymbol},
		Subtotal: subtotal,
		Total:    total,

		InstallmentCount: req.InstallmentCount,
	}
	if plan.Currency.Code == "" {
		plan.Currency = billing.Currency{Code: "MXN", Symbol: "$"}
	}

	if req.FinalSubtotal != "" {
		d, err := decimal.NewFromString(req.FinalSubtotal)
		if err != nil {
			writeFieldError(w, "final_subtotal", "must be a decimal amount")
			return
		}
		plan.FinalSubtotal = &d
	}
	if req.FinalTotal != "" {
		d, err := decimal.NewFromString(req.FinalTotal)
		if err != nil {
			writeFieldError(w, "final_total", "must be a decimal amount")
			return
		}
		plan.FinalTotal = &d
	}

	if plan.Type == billing.PaymentInstallments && plan.InstallmentCount < 1 {
		writeFieldError(w, "installment_count", "installments plans need at least one installment")
		return
	}

	if err := h.Store.SavePlan(r.Context(), plan); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanDTO(&plan))
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// ListStudents returns all students.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.Store.ListStudents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list students", err)
		return
	}

	dtos := make([]StudentDTO, len(students))
	for i, s := range students {
		dtos[i] = StudentDTO{ID: s.ID, Name: s.Name, Email: s.Email}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateStudent creates a new student.
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	st := sqlite.Student{ID: req.ID, Name: req.Name, Email: req.Email}
	if err := h.Store.SaveStudent(r.Context(), st); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create student", err)
		return
	}
	writeJSON(w, http.StatusCreated, StudentDTO{ID: st.ID, Name: st.Name, Email: st.Email})
}

// =============================================================================
// ACADEMIC PERIOD HANDLERS
// =============================================================================

// ListPeriods returns all academic periods.
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Store.ListPeriods(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list periods", err)
		return
	}

	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = PeriodDTO{
			ID:       p.ID,
			Name:     p.Name,
			StartsOn: p.StartsOn.String(),
			EndsOn:   p.EndsOn.String(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePeriod creates a new academic period.
func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req CreatePeriodRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	starts, ok := parseDateField(w, "starts_on", req.StartsOn)
	if !ok {
		return
	}
	ends, ok := parseDateField(w, "ends_on", req.EndsOn)
	if !ok {
		return
	}
	if ends.Before(starts) {
		writeFieldError(w, "ends_on", "must not be before starts_on")
		return
	}

	p := sqlite.AcademicPeriod{ID: req.ID, Name: req.Name, StartsOn: starts, EndsOn: ends}
	if err := h.Store.SavePeriod(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create period", err)
		return
	}
	writeJSON(w, http.StatusCreated, PeriodDTO{
		ID: p.ID, Name: p.Name,
		StartsOn: p.StartsOn.String(), EndsOn: p.EndsOn.String(),
	})
}

// =============================================================================
// SCHEDULE PREVIEW
// =============================================================================

// PreviewSchedule generates due dates and amounts for a plan without
// persisting anything.
// POST /api/schedule/preview
func (h *Handler) PreviewSchedule(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	overrides, ok := parseOverrides(w, req.DateOverrides)
	if !ok {
		return
	}
	firstDue, ok := parseDateField(w, "first_due_date", req.FirstDueDate)
	if !ok {
		return
	}

	preview, err := h.Orchestrator.Preview(r.Context(), billing.PreviewInput{
		PlanID:        billing.PlanID(req.PlanID),
		FirstDueDate:  firstDue,
		Periodicity:   schedule.Periodicity(req.Periodicity),
		DateOverrides: overrides,
	})
	if err != nil {
		writeBillingError(w, err)
		return
	}

	resp := PreviewResponse{
		Plan:        toPlanDTO(preview.Plan),
		Periodicity: string(preview.Periodicity),
	}
	for _, inst := range preview.Installments {
		resp.Installments = append(resp.Installments, InstallmentDTO{
			SequenceNumber: inst.SequenceNumber,
			Subtotal:       inst.Subtotal.StringFixed(2),
			Total:          inst.Total.StringFixed(2),
			DueDate:        inst.DueDate.String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// ENROLLMENT HANDLERS
// =============================================================================

// CreateEnrollment runs the commit workflow.
// POST /api/enrollments
func (h *Handler) CreateEnrollment(w http.ResponseWriter, r *http.Request) {
	var req CreateEnrollmentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	overrides, ok := parseOverrides(w, req.DateOverrides)
	if !ok {
		return
	}

	enrollDate, ok := parseDateField(w, "enrollment_date", req.EnrollmentDate)
	if !ok {
		return
	}
	firstDue, ok := parseDateField(w, "first_due_date", req.FirstDueDate)
	if !ok {
		return
	}

	input := billing.CommitInput{
		StudentID:            billing.StudentID(req.StudentID),
		PlanID:               billing.PlanID(req.PlanID),
		EnrollmentDate:       enrollDate,
		FirstDueDate:         firstDue,
		PeriodControlEnabled: req.PeriodControlEnabled,
		AcademicPeriodID:     billing.AcademicPeriodID(req.AcademicPeriodID),
		Periodicity:          schedule.Periodicity(req.Periodicity),
		DateOverrides:        overrides,
	}

	if req.Abono != nil {
		amount, err := decimal.NewFromString(req.Abono.Amount)
		if err != nil {
			writeFieldError(w, "abono.amount", "must be a decimal amount")
			return
		}
		input.Abono = &billing.AbonoInput{
			Method:    req.Abono.Method,
			Amount:    amount,
			Reference: req.Abono.Reference,
			Note:      req.Abono.Note,
		}
	}

	result, err := h.Orchestrator.Commit(r.Context(), input)

	// The abono step failing is the one failure that still produces a
	// result; surface both.
	var partial *billing.PartialCommitError
	if err != nil && result != nil && errors.As(err, &partial) && partial.Step == billing.StateCommittingAbono {
		h.log.WithError(partial.Err).WithField("enrollment_id", result.Enrollment.ID).
			Warn("commit succeeded but abono failed")
		resp := toCommitResponse(result)
		resp.Warning = "enrollment committed but the abono failed; retry it via POST /api/enrollments/{id}/abono"
		writeJSON(w, http.StatusCreated, resp)
		return
	}
	if err != nil {
		writeBillingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCommitResponse(result))
}

// ListEnrollments returns all enrollments, newest first.
func (h *Handler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.Store.ListEnrollments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list enrollments", err)
		return
	}

	dtos := make([]EnrollmentDTO, len(enrollments))
	for i := range enrollments {
		dtos[i] = toEnrollmentDTO(&enrollments[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEnrollment returns an enrollment with its payments and abonos.
func (h *Handler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := billing.EnrollmentID(chi.URLParam(r, "id"))

	enrollment, err := h.Store.GetEnrollment(ctx, id)
	if err != nil {
		if billing.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Enrollment not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get enrollment", err)
		return
	}

	payments, err := h.Store.PaymentsByEnrollment(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get payments", err)
		return
	}
	abonos, err := h.Store.AbonosByEnrollment(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get abonos", err)
		return
	}

	resp := map[string]any{
		"enrollment": toEnrollmentDTO(enrollment),
		"payments":   toInstallmentDTOs(payments),
	}
	if len(abonos) > 0 {
		dtos := make([]AbonoDTO, len(abonos))
		for i := range abonos {
			dtos[i] = toAbonoDTO(&abonos[i])
		}
		resp["abonos"] = dtos
	}
	writeJSON(w, http.StatusOK, resp)
}

// RetryAbono records an abono against an enrollment's first installment.
// This is the recovery path for a commit whose abono step failed.
// POST /api/enrollments/{id}/abono
func (h *Handler) RetryAbono(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := billing.EnrollmentID(chi.URLParam(r, "id"))

	var req AbonoRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeFieldError(w, "amount", "must be a decimal amount")
		return
	}
	if !amount.IsPositive() {
		writeFieldError(w, "amount", "must be greater than zero")
		return
	}

	if _, err := h.Store.GetEnrollment(ctx, id); err != nil {
		if billing.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Enrollment not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get enrollment", err)
		return
	}

	payments, err := h.Store.PaymentsByEnrollment(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get payments", err)
		return
	}
	if len(payments) == 0 {
		writeError(w, http.StatusConflict, "Enrollment has no payment records to apply an abono to", nil)
		return
	}

	saved, err := h.Store.CreateAbono(ctx, billing.Abono{
		PaymentRecordID: payments[0].ID,
		Method:          req.Method,
		Amount:          amount,
		Reference:       req.Reference,
		Note:            req.Note,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record abono", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAbonoDTO(saved))
}

// =============================================================================
// DTO MAPPING
// =============================================================================

func toPlanDTO(p *billing.PaymentPlan) PlanDTO {
	dto := PlanDTO{
		ID:               string(p.ID),
		Name:             p.Name,
		Type:             string(p.Type),
		CurrencyCode:     p.Currency.Code,
		CurrencySymbol:   p.Currency.Symbol,
		Subtotal:         p.Subtotal.StringFixed(2),
		Total:            p.Total.StringFixed(2),
		InstallmentCount: p.InstallmentCount,
	}
	if p.FinalSubtotal != nil {
		dto.FinalSubtotal = p.FinalSubtotal.StringFixed(2)
	}
	if p.FinalTotal != nil {
		dto.FinalTotal = p.FinalTotal.StringFixed(2)
	}
	return dto
}

func toEnrollmentDTO(e *billing.Enrollment) EnrollmentDTO {
	return EnrollmentDTO{
		ID:                   string(e.ID),
		StudentID:            string(e.StudentID),
		PlanID:               string(e.PlanID),
		EnrollmentDate:       e.EnrollmentDate.String(),
		FirstDueDate:         e.FirstDueDate.String(),
		PeriodControlEnabled: e.PeriodControlEnabled,
		AcademicPeriodID:     string(e.AcademicPeriodID),
		Status:               string(e.Status),
	}
}

func toInstallmentDTOs(records []billing.PaymentRecord) []InstallmentDTO {
	dtos := make([]InstallmentDTO, len(records))
	for i, rec := range records {
		dtos[i] = InstallmentDTO{
			ID:             string(rec.ID),
			SequenceNumber: rec.SequenceNumber,
			Subtotal:       rec.Subtotal.StringFixed(2),
			Total:          rec.Total.StringFixed(2),
			DueDate:        rec.DueDate.String(),
		}
	}
	return dtos
}

func toAbonoDTO(a *billing.Abono) AbonoDTO {
	return AbonoDTO{
		ID:              string(a.ID),
		PaymentRecordID: string(a.PaymentRecordID),
		Method:          a.Method,
		Amount:          a.Amount.StringFixed(2),
		Reference:       a.Reference,
		Note:            a.Note,
	}
}

func toCommitResponse(result *billing.CommitResult) CommitResponse {
	resp := CommitResponse{
		Enrollment: toEnrollmentDTO(result.Enrollment),
		Payments:   toInstallmentDTOs(result.Payments),
	}
	if result.Abono != nil {
		abono := toAbonoDTO(result.Abono)
		resp.Abono = &abono
	}
	return resp
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation. On failure it writes the error response and returns false.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: fmt.Sprintf("invalid value for %s", first.Field()),
				Field: first.Field(),
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

// parseDateField parses an ISO date from a request field, writing a 400
// and returning false on bad input.
func parseDateField(w http.ResponseWriter, field, value string) (schedule.CalendarDate, bool) {
	d, err := schedule.ParseDate(value)
	if err != nil {
		writeFieldError(w, field, "must be a date in YYYY-MM-DD form")
		return schedule.CalendarDate{}, false
	}
	return d, true
}

// parseOverrides converts wire-format overrides (string keys, ISO dates)
// into the domain shape. Writes a 400 and returns false on bad input.
func parseOverrides(w http.ResponseWriter, raw map[string]string) (map[int]schedule.CalendarDate, bool) {
	if len(raw) == 0 {
		return nil, true
	}
	overrides := make(map[int]schedule.CalendarDate, len(raw))
	for k, v := range raw {
		seq, err := strconv.Atoi(k)
		if err != nil || seq < 1 {
			writeFieldError(w, "date_overrides", fmt.Sprintf("%q is not a valid sequence number", k))
			return nil, false
		}
		d, err := schedule.ParseDate(v)
		if err != nil {
			writeFieldError(w, "date_overrides", fmt.Sprintf("%q is not a valid date (use YYYY-MM-DD)", v))
			return nil, false
		}
		overrides[seq] = d
	}
	return overrides, true
}

// writeBillingError maps the billing error taxonomy to HTTP statuses.
func writeBillingError(w http.ResponseWriter, err error) {
	var verr *billing.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Message, Field: verr.Field})
		return
	}

	var cerr *billing.ConflictError
	if errors.As(err, &cerr) {
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: cerr.Error()})
		return
	}

	if errors.Is(err, billing.ErrCommitInFlight) {
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	}

	var perr *billing.PartialCommitError
	if errors.As(err, &perr) {
		resp := ErrorResponse{
			Error:   "enrollment partially committed; manual cleanup required",
			Details: perr.Error(),
		}
		partial := CommitResponse{Payments: toInstallmentDTOs(perr.Payments)}
		if perr.Enrollment != nil {
			partial.Enrollment = toEnrollmentDTO(perr.Enrollment)
		}
		resp.Partial = &partial
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	var rerr *billing.RemoteError
	if errors.As(err, &rerr) {
		if billing.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: rerr.Err.Error()})
			return
		}
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   fmt.Sprintf("backend failure during %s", rerr.Step),
			Details: rerr.Err.Error(),
		})
		return
	}

	if billing.IsNotFound(err) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}

	writeError(w, http.StatusInternalServerError, "Internal error", err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeFieldError(w http.ResponseWriter, field, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Field: field})
}
