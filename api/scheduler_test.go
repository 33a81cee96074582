package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictScanner_RunNow(t *testing.T) {
	// GIVEN: The team-overlap scenario
	// WHEN: Scanning engineering once
	// THEN: Three conflicts are found and logged as warnings

	h, _ := setupTestServer(t)
	require.NoError(t, h.LoadScenarioByID(context.Background(), "team-overlap"))

	logger, hook := logtest.NewNullLogger()
	scanner := NewConflictScanner(h.Rollup, logger)
	scanner.Clock = h.Clock
	scanner.Department = "engineering"

	result := scanner.RunNow(context.Background())
	require.NoError(t, result.Err)
	assert.Len(t, result.Conflicts, 3)
	assert.Equal(t, testNow, result.At)
	assert.Equal(t, result.At, scanner.LastResult().At)

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
			assert.Equal(t, "engineering", e.Data["department"])
		}
	}
	assert.Equal(t, 3, warnings)
}

func TestConflictScanner_SkipsEndedRequests(t *testing.T) {
	// GIVEN: An overlap that ended last month and one starting next week
	// WHEN: Scanning as of the test clock
	// THEN: Only the upcoming overlap is reported and logged

	h, router := setupTestServer(t)
	seedBasics(t, router)
	rec := do(t, router, http.MethodPost, "/api/employees", CreateEmployeeRequest{
		ID: "emp-002", Name: "Bob", Email: "bob@example.com", Department: "eng", PolicyID: "pto-standard",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	createRequest(t, router, "emp-001", "2025-02-03", "2025-02-05")
	createRequest(t, router, "emp-002", "2025-02-04", "2025-02-04")
	createRequest(t, router, "emp-001", "2025-03-10", "2025-03-12")
	createRequest(t, router, "emp-002", "2025-03-12", "2025-03-14")

	logger, hook := logtest.NewNullLogger()
	scanner := NewConflictScanner(h.Rollup, logger)
	scanner.Clock = h.Clock
	scanner.Department = "eng"

	result := scanner.RunNow(context.Background())
	require.NoError(t, result.Err)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "2025-03-12", result.Conflicts[0].Overlap.Start.String())

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)
}

func TestConflictScanner_CancelledContext(t *testing.T) {
	h, _ := setupTestServer(t)
	require.NoError(t, h.LoadScenarioByID(context.Background(), "team-overlap"))

	logger, _ := logtest.NewNullLogger()
	scanner := NewConflictScanner(h.Rollup, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := scanner.RunNow(ctx)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestConflictScanner_StartStop(t *testing.T) {
	h, _ := setupTestServer(t)
	logger, _ := logtest.NewNullLogger()

	scanner := NewConflictScanner(h.Rollup, logger)
	scanner.Interval = 10 * time.Millisecond
	scanner.Start()
	scanner.Start() // no-op while running

	require.Eventually(t, func() bool {
		return !scanner.LastResult().At.IsZero()
	}, time.Second, 5*time.Millisecond)

	scanner.Stop()
	scanner.Stop() // safe to call twice
}

func TestConflictScanner_Disabled(t *testing.T) {
	h, _ := setupTestServer(t)
	logger, _ := logtest.NewNullLogger()

	scanner := NewConflictScanner(h.Rollup, logger)
	scanner.Enabled = false
	scanner.Start()
	scanner.Stop()

	assert.True(t, scanner.LastResult().At.IsZero())
}
