/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the time-off ledger via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the timeoff package.

ENDPOINTS:
  Policies:
    GET    /api/policies                   List policies
    POST   /api/policies                   Create or replace a policy from JSON
    GET    /api/policies/{id}              Get one policy

  Employees:
    GET    /api/employees                  List (?department=&policy_id=&q=)
    POST   /api/employees                  Create or update a directory record
    GET    /api/employees/{id}             Get one employee
    GET    /api/employees/{id}/balance     Balance snapshot (?year=)

  Requests:
    GET    /api/requests                   List (?employee_id=&status=)
    POST   /api/requests                   Create a REQUESTED request
    GET    /api/requests/{id}              Get one request
    PATCH  /api/requests/{id}              Change status {status, actor_id}
    GET    /api/requests/{id}/history      Status history

  Manager views:
    GET    /api/conflicts                  Conflicts of a team (?department=)
    POST   /api/conflicts                  Conflicts among supplied requests
    GET    /api/rollup                     Dashboard (?department=&window_days=&as_of=)
    GET    /api/export.xlsx                Workbook (?year=&department=)

  Scenarios:
    GET    /api/scenarios                  List demo scenarios
    POST   /api/scenarios/load             Reset and load a demo scenario

ERROR HANDLING:
  Errors are returned as JSON {error, code, details}:
  - 400: Validation errors, invalid range, malformed body
  - 404: Referenced request, policy or employee does not exist
  - 409: Status transition not permitted, or lost a concurrent update
  - 500: Internal errors (logged)

SECURITY NOTE:
  No authentication. actor_id is taken from the body as given.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/report"
	"github.com/warp/leave-engine/timeoff"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         timeoff.Store
	Ledger        *timeoff.Ledger
	Catalog       *timeoff.Catalog
	Balances      *timeoff.BalanceCalculator
	Rollup        *timeoff.Rollup
	PolicyFactory *factory.PolicyFactory
	Clock         generic.Clock
	Log           logrus.FieldLogger

	validate *validator.Validate

	// Scenario loading resets the store; only one may run at a time.
	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler wires the domain services over a single store.
func NewHandler(store timeoff.Store) *Handler {
	catalog := timeoff.NewCatalog(store, store)
	return &Handler{
		Store:         store,
		Ledger:        timeoff.NewLedger(store, store),
		Catalog:       catalog,
		Balances:      timeoff.NewBalanceCalculator(catalog, store),
		Rollup:        timeoff.NewRollup(store, store),
		PolicyFactory: factory.NewPolicyFactory(),
		Clock:         generic.SystemClock{},
		Log:           logrus.StandardLogger(),
		validate:      newValidator(),
	}
}

// newValidator reports field names by their json tag.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// ListPolicies returns all policies ordered by name.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Catalog.ListPolicies(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list policies", err)
		return
	}

	dtos := make([]PolicyDTO, len(policies))
	for i, p := range policies {
		dtos[i] = toPolicyDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePolicy parses a policy definition and stores it. An existing policy
// with the same ID is replaced.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var body factory.PolicyJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	policy, err := h.PolicyFactory.FromJSON(body)
	if err != nil {
		h.writeDomainError(w, "Invalid policy", err)
		return
	}

	saved, err := h.Catalog.SavePolicy(r.Context(), *policy)
	if err != nil {
		h.writeDomainError(w, "Failed to save policy", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPolicyDTO(*saved))
}

// GetPolicy returns a single policy.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	id := generic.PolicyID(chi.URLParam(r, "id"))

	policy, err := h.Catalog.GetPolicy(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get policy", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(*policy))
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns directory records matching the query filters.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := timeoff.EmployeeFilter{
		Department: q.Get("department"),
		PolicyID:   generic.PolicyID(q.Get("policy_id")),
		Query:      q.Get("q"),
	}

	employees, err := h.Store.ListEmployees(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := generic.EmployeeID(chi.URLParam(r, "id"))

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee stores a directory record. A policy_id must reference an
// existing policy.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	ctx := r.Context()

	if req.PolicyID != "" {
		if _, err := h.Catalog.GetPolicy(ctx, generic.PolicyID(req.PolicyID)); err != nil {
			if errors.Is(err, generic.ErrNotFound) {
				err = &generic.ValidationError{Field: "policy_id", Message: "unknown policy", Cause: err}
			}
			h.writeDomainError(w, "Invalid employee", err)
			return
		}
	}

	emp := timeoff.Employee{
		ID:         generic.EmployeeID(req.ID),
		Name:       req.Name,
		Email:      req.Email,
		Department: req.Department,
		PolicyID:   generic.PolicyID(req.PolicyID),
	}
	if err := h.Store.SaveEmployee(ctx, emp); err != nil {
		h.writeDomainError(w, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetBalance returns the employee's balance snapshot for ?year= (default:
// the current year).
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := generic.EmployeeID(chi.URLParam(r, "id"))

	year, err := h.yearParam(r)
	if err != nil {
		h.writeDomainError(w, "Invalid year", err)
		return
	}

	snap, err := h.Balances.ComputeBalance(r.Context(), id, year)
	if err != nil {
		h.writeDomainError(w, "Failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(snap))
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// ListRequests returns requests in creation order.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := timeoff.RequestFilter{
		EmployeeID: generic.EmployeeID(q.Get("employee_id")),
		Status:     timeoff.RequestStatus(strings.ToUpper(q.Get("status"))),
	}

	reqs, err := h.Ledger.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// CreateRequest submits a new request in REQUESTED status.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateTimeOffRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		h.writeDomainError(w, "Invalid dates", err)
		return
	}

	created, err := h.Ledger.CreateRequest(r.Context(), timeoff.CreateRequestInput{
		EmployeeID: generic.EmployeeID(req.EmployeeID),
		Type:       timeoff.RequestType(strings.ToUpper(req.Type)),
		StartDate:  start,
		EndDate:    end,
		Reason:     req.Reason,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(*created))
}

// GetRequest returns a single request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := generic.RequestID(chi.URLParam(r, "id"))

	req, err := h.Ledger.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// PatchRequest approves, denies or cancels a request.
func (h *Handler) PatchRequest(w http.ResponseWriter, r *http.Request) {
	id := generic.RequestID(chi.URLParam(r, "id"))

	var req PatchRequestStatus
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	updated, err := h.Ledger.SetStatus(r.Context(), id, timeoff.RequestStatus(req.Status), req.ActorID)
	if err != nil {
		h.writeDomainError(w, "Failed to update request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*updated))
}

// GetRequestHistory returns the status changes of a request, oldest first.
func (h *Handler) GetRequestHistory(w http.ResponseWriter, r *http.Request) {
	id := generic.RequestID(chi.URLParam(r, "id"))

	changes, err := h.Ledger.History(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get history", err)
		return
	}

	dtos := make([]StatusChangeDTO, len(changes))
	for i, c := range changes {
		dtos[i] = toStatusChangeDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// MANAGER VIEWS
// =============================================================================

// ListConflicts returns overlapping pairs among the team's planned requests.
func (h *Handler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.Rollup.Conflicts(r.Context(), r.URL.Query().Get("department"))
	if err != nil {
		h.writeDomainError(w, "Failed to find conflicts", err)
		return
	}
	writeJSON(w, http.StatusOK, toConflictDTOs(pairs))
}

// FindConflicts runs conflict detection over requests supplied in the body.
// Nothing is stored.
func (h *Handler) FindConflicts(w http.ResponseWriter, r *http.Request) {
	var req FindConflictsRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	reqs := make([]timeoff.TimeOffRequest, 0, len(req.Requests))
	for i, in := range req.Requests {
		start, end, err := parseRange(in.StartDate, in.EndDate)
		if err != nil {
			h.writeDomainError(w, fmt.Sprintf("Invalid dates in request %d", i), err)
			return
		}
		tr := timeoff.TimeOffRequest{
			ID:         generic.RequestID(in.ID),
			EmployeeID: generic.EmployeeID(in.EmployeeID),
			Type:       timeoff.RequestType(strings.ToUpper(in.Type)),
			Status:     timeoff.RequestStatus(in.Status),
			StartDate:  start,
			EndDate:    end,
		}
		if tr.ID == "" {
			tr.ID = generic.RequestID(fmt.Sprintf("req-%d", i+1))
		}
		if tr.Type == "" {
			tr.Type = timeoff.TypePTO
		}
		if tr.Status == "" {
			tr.Status = timeoff.StatusRequested
		}
		reqs = append(reqs, tr)
	}

	pairs, err := timeoff.FindConflicts(r.Context(), reqs)
	if err != nil {
		h.writeDomainError(w, "Failed to find conflicts", err)
		return
	}
	writeJSON(w, http.StatusOK, toConflictDTOs(pairs))
}

// GetRollup returns the manager dashboard for a team.
func (h *Handler) GetRollup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	windowDays := timeoff.DefaultWindowDays
	if s := q.Get("window_days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 366 {
			h.writeDomainError(w, "Invalid window", generic.NewValidationError("window_days", "must be an integer in 1..366"))
			return
		}
		windowDays = n
	}

	asOf := generic.Today(h.Clock)
	if s := q.Get("as_of"); s != "" {
		d, err := generic.ParseDate(s)
		if err != nil {
			h.writeDomainError(w, "Invalid as_of", &generic.ValidationError{Field: "as_of", Message: "expected YYYY-MM-DD", Cause: err})
			return
		}
		asOf = d
	}

	summary, err := h.Rollup.Summary(r.Context(), q.Get("department"), asOf, windowDays)
	if err != nil {
		h.writeDomainError(w, "Failed to build rollup", err)
		return
	}
	writeJSON(w, http.StatusOK, toRollupDTO(summary))
}

// ExportXLSX streams the team workbook for ?year=.
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	year, err := h.yearParam(r)
	if err != nil {
		h.writeDomainError(w, "Invalid year", err)
		return
	}
	department := r.URL.Query().Get("department")

	collector := &report.Collector{
		Directory: h.Store,
		Rollup:    h.Rollup,
		Balances:  h.Balances,
	}
	data, err := collector.Collect(r.Context(), department, year)
	if err != nil {
		h.writeDomainError(w, "Failed to collect report data", err)
		return
	}

	buf, err := report.WriteXLSX(data)
	if err != nil {
		h.writeDomainError(w, "Failed to render workbook", err)
		return
	}

	filename := fmt.Sprintf("leave-%d.xlsx", year)
	if department != "" {
		filename = fmt.Sprintf("leave-%s-%d.xlsx", department, year)
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.Log.WithError(err).Warn("failed to write workbook")
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message, Code: codeFor(status)}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the error taxonomy to a status code. Server-side
// failures are logged; client errors are only returned.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Log.WithError(err).Error(message)
	}
	resp := ErrorResponse{Error: message, Code: codeFor(status), Details: err.Error()}
	if errors.Is(err, generic.ErrConcurrentModification) {
		resp.Code = "CONCURRENT_MODIFICATION"
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrInvalidTransition), generic.IsRetryable(err):
		return http.StatusConflict
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "VALIDATION_ERROR"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "INVALID_TRANSITION"
	default:
		return "INTERNAL_ERROR"
	}
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the 400 response itself and returns false on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, "Invalid input", err)
			return false
		}
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			// Drop the Go struct name: "CreateTimeOffRequest.start_date" -> "start_date".
			key := fe.Namespace()
			if i := strings.Index(key, "."); i >= 0 {
				key = key[i+1:]
			}
			fields[key] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Code:    "VALIDATION_ERROR",
			Details: fields,
		})
		return false
	}
	return true
}

// yearParam reads ?year=, defaulting to the current year.
func (h *Handler) yearParam(r *http.Request) (int, error) {
	s := r.URL.Query().Get("year")
	if s == "" {
		return generic.Today(h.Clock).Year(), nil
	}
	year, err := strconv.Atoi(s)
	if err != nil || year < 1 || year > 9999 {
		return 0, generic.NewValidationError("year", fmt.Sprintf("invalid year %q", s))
	}
	return year, nil
}

func parseRange(startStr, endStr string) (generic.Date, generic.Date, error) {
	start, err := generic.ParseDate(startStr)
	if err != nil {
		return generic.Date{}, generic.Date{}, &generic.ValidationError{Field: "start_date", Message: "expected YYYY-MM-DD", Cause: err}
	}
	end, err := generic.ParseDate(endStr)
	if err != nil {
		return generic.Date{}, generic.Date{}, &generic.ValidationError{Field: "end_date", Message: "expected YYYY-MM-DD", Cause: err}
	}
	if _, err := generic.DaysInclusive(start, end); err != nil {
		return generic.Date{}, generic.Date{}, err
	}
	return start, end, nil
}
