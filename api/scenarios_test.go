/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario sets up the expected state through the real
	ledger: employees, policies, request statuses and resulting balances.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/timeoff"
)

func TestScenario_SingleEmployee(t *testing.T) {
	// GIVEN: The single-employee scenario
	// WHEN: Loading it
	// THEN: Allowance 15, used 5, remaining 10 for the current year

	h, _ := setupTestServer(t)
	ctx := context.Background()

	require.NoError(t, h.LoadScenarioByID(ctx, "single-employee"))

	policies, err := h.Catalog.ListPolicies(ctx)
	require.NoError(t, err)
	assert.Len(t, policies, 4)

	snap, err := h.Balances.ComputeBalance(ctx, "emp-001", 2025)
	require.NoError(t, err)
	assert.Equal(t, timeoff.BalanceTracked, snap.Kind)
	assert.Equal(t, 15, *snap.Allowance)
	assert.Equal(t, 5, *snap.UsedDays)
	assert.Equal(t, 10, *snap.RemainingDays)

	history, err := h.Ledger.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	changes, err := h.Ledger.History(ctx, history[0].ID)
	require.NoError(t, err)
	assert.Len(t, changes, 2, "created then approved")
}

func TestScenario_TeamOverlap(t *testing.T) {
	h, _ := setupTestServer(t)
	ctx := context.Background()

	require.NoError(t, h.LoadScenarioByID(ctx, "team-overlap"))

	employees, err := h.Store.ListEmployees(ctx, timeoff.EmployeeFilter{})
	require.NoError(t, err)
	assert.Len(t, employees, 6)

	all, err := h.Ledger.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 7)

	pending, err := h.Ledger.ListByStatus(ctx, timeoff.StatusRequested)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	// Frank has no policy.
	snap, err := h.Balances.ComputeBalance(ctx, "emp-006", 2025)
	require.NoError(t, err)
	assert.Equal(t, timeoff.BalanceNotConfigured, snap.Kind)
	assert.Nil(t, snap.RemainingDays)

	// Dan is unlimited and his request was denied anyway.
	snap, err = h.Balances.ComputeBalance(ctx, "emp-004", 2025)
	require.NoError(t, err)
	assert.Equal(t, timeoff.BalanceUnlimited, snap.Kind)
}

func TestScenario_YearBoundary(t *testing.T) {
	// GIVEN: Approved PTO 2024-12-29 .. 2025-01-02
	// THEN: 3 days used in 2024, 2 days in 2025

	h, _ := setupTestServer(t)
	ctx := context.Background()

	require.NoError(t, h.LoadScenarioByID(ctx, "year-boundary"))

	prev, err := h.Balances.ComputeBalance(ctx, "emp-001", 2024)
	require.NoError(t, err)
	assert.Equal(t, 3, *prev.UsedDays)

	cur, err := h.Balances.ComputeBalance(ctx, "emp-001", 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, *cur.UsedDays)
	assert.Equal(t, 13, *cur.RemainingDays)
}

func TestScenario_ReloadResets(t *testing.T) {
	// GIVEN: team-overlap loaded
	// WHEN: Loading single-employee over it via HTTP
	// THEN: Only the new scenario's data remains

	h, router := setupTestServer(t)
	ctx := context.Background()
	require.NoError(t, h.LoadScenarioByID(ctx, "team-overlap"))

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "single-employee"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	employees, err := h.Store.ListEmployees(ctx, timeoff.EmployeeFilter{})
	require.NoError(t, err)
	assert.Len(t, employees, 1)

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "single-employee", decode[ScenarioDTO](t, rec).ID)
}

func TestScenario_Unknown(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rec), len(scenarios))
}
