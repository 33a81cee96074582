/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
	Provides pre-built scenarios that populate the store with realistic
	data for demos. Each scenario loads the preset policy catalog, creates
	employees and pushes requests through the real ledger, so the status
	history is the same as if people had clicked through the UI.

AVAILABLE SCENARIOS:

	single-employee: One FIXED 15-day employee with 5 approved days
	team-overlap:    Two departments with overlapping leave next week
	year-boundary:   A request spanning New Year, split across both years

HOW SCENARIOS WORK:
 1. Reset the store and the policy cache
 2. Load the preset catalog via the policy factory
 3. Create employees
 4. Create requests and decide some of them

Dates are relative to the handler clock so that the rollup always has
something to show.

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - timeoff/factory.go: DefaultCatalogJSON
  - handlers.go: Handler dependencies
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "single-employee",
		Name:        "Single Employee",
		Description: "15-day FIXED policy, one approved 5-day PTO request, 10 days remaining",
	},
	{
		ID:          "team-overlap",
		Name:        "Team Overlap",
		Description: "Engineering and sales teams with overlapping approved and pending leave next week",
	},
	{
		ID:          "year-boundary",
		Name:        "Year Boundary",
		Description: "PTO from Dec 29 to Jan 2 counted 3 days in the first year and 2 in the next",
	},
}

type scenarioLoader func(h *Handler, ctx context.Context) error

var scenarioLoaders = map[string]scenarioLoader{
	"single-employee": (*Handler).loadSingleEmployeeScenario,
	"team-overlap":    (*Handler).loadTeamOverlapScenario,
	"year-boundary":   (*Handler).loadYearBoundaryScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads the named scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if _, ok := scenarioLoaders[req.ScenarioID]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// LoadScenarioByID is LoadScenario without HTTP. Also used to seed demo data
// at startup.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	load, ok := scenarioLoaders[id]
	if !ok {
		return generic.NewValidationError("scenario_id", fmt.Sprintf("unknown scenario %q", id))
	}

	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	h.currentScenario = ""
	if err := h.Catalog.Reload(ctx); err != nil {
		return err
	}

	if err := load(h, ctx); err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}
	h.currentScenario = id
	h.Log.WithField("scenario", id).Info("scenario loaded")
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSingleEmployeeScenario(ctx context.Context) error {
	if err := h.loadPresetCatalog(ctx); err != nil {
		return err
	}
	if err := h.Store.SaveEmployee(ctx, timeoff.Employee{
		ID:         "emp-001",
		Name:       "Alice Johnson",
		Email:      "alice@example.com",
		Department: "engineering",
		PolicyID:   "pto-standard",
	}); err != nil {
		return err
	}

	year := generic.Today(h.Clock).Year()
	_, err := h.seedRequest(ctx, "emp-001", timeoff.TypePTO,
		generic.NewDate(year, 3, 10), generic.NewDate(year, 3, 14),
		timeoff.StatusApproved, "mgr-001")
	return err
}

func (h *Handler) loadTeamOverlapScenario(ctx context.Context) error {
	if err := h.loadPresetCatalog(ctx); err != nil {
		return err
	}

	employees := []timeoff.Employee{
		{ID: "emp-001", Name: "Alice Johnson", Email: "alice@example.com", Department: "engineering", PolicyID: "pto-standard"},
		{ID: "emp-002", Name: "Bob Smith", Email: "bob@example.com", Department: "engineering", PolicyID: "pto-senior"},
		{ID: "emp-003", Name: "Carol White", Email: "carol@example.com", Department: "engineering", PolicyID: "pto-accrual"},
		{ID: "emp-004", Name: "Dan Brown", Email: "dan@example.com", Department: "engineering", PolicyID: "pto-unlimited"},
		{ID: "emp-005", Name: "Erin Davis", Email: "erin@example.com", Department: "sales", PolicyID: "pto-standard"},
		{ID: "emp-006", Name: "Frank Miller", Email: "frank@example.com", Department: "sales"},
	}
	for _, e := range employees {
		if err := h.Store.SaveEmployee(ctx, e); err != nil {
			return err
		}
	}

	// Next Monday, so the week is always ahead of "today".
	today := generic.Today(h.Clock)
	monday := generic.StartOfWeek(today).AddDays(7)

	seeds := []struct {
		emp    generic.EmployeeID
		typ    timeoff.RequestType
		start  int
		end    int
		status timeoff.RequestStatus
	}{
		{"emp-001", timeoff.TypePTO, 0, 4, timeoff.StatusApproved},
		{"emp-002", timeoff.TypePTO, 3, 7, timeoff.StatusRequested},
		{"emp-003", timeoff.TypeSick, 4, 4, timeoff.StatusApproved},
		{"emp-004", timeoff.TypePTO, 1, 2, timeoff.StatusDenied},
		{"emp-002", timeoff.TypePersonal, 14, 15, timeoff.StatusCancelled},
		{"emp-005", timeoff.TypePTO, 0, 2, timeoff.StatusApproved},
		{"emp-006", timeoff.TypeUnpaid, 2, 3, timeoff.StatusRequested},
	}
	for _, s := range seeds {
		if _, err := h.seedRequest(ctx, s.emp, s.typ, monday.AddDays(s.start), monday.AddDays(s.end), s.status, "mgr-001"); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadYearBoundaryScenario(ctx context.Context) error {
	if err := h.loadPresetCatalog(ctx); err != nil {
		return err
	}
	if err := h.Store.SaveEmployee(ctx, timeoff.Employee{
		ID:         "emp-001",
		Name:       "Alice Johnson",
		Email:      "alice@example.com",
		Department: "engineering",
		PolicyID:   "pto-standard",
	}); err != nil {
		return err
	}

	year := generic.Today(h.Clock).Year()
	_, err := h.seedRequest(ctx, "emp-001", timeoff.TypePTO,
		generic.NewDate(year-1, 12, 29), generic.NewDate(year, 1, 2),
		timeoff.StatusApproved, "mgr-001")
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) loadPresetCatalog(ctx context.Context) error {
	policies, err := h.PolicyFactory.ParseCatalog(timeoff.DefaultCatalogJSON())
	if err != nil {
		return fmt.Errorf("failed to parse preset catalog: %w", err)
	}
	for _, p := range policies {
		if _, err := h.Catalog.SavePolicy(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// seedRequest creates a request and, unless status is REQUESTED, moves it
// to status through the ledger.
func (h *Handler) seedRequest(ctx context.Context, emp generic.EmployeeID, typ timeoff.RequestType, start, end generic.Date, status timeoff.RequestStatus, actor string) (*timeoff.TimeOffRequest, error) {
	req, err := h.Ledger.CreateRequest(ctx, timeoff.CreateRequestInput{
		EmployeeID: emp,
		Type:       typ,
		StartDate:  start,
		EndDate:    end,
		Reason:     "demo",
	})
	if err != nil {
		return nil, err
	}
	if status == timeoff.StatusRequested {
		return req, nil
	}
	if status == timeoff.StatusCancelled {
		actor = string(emp)
	}
	return h.Ledger.SetStatus(ctx, req.ID, status, actor)
}
