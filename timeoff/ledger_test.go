package timeoff_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/store/memory"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	ledger  *timeoff.Ledger
	catalog *timeoff.Catalog
	balance *timeoff.BalanceCalculator
	rollup  *timeoff.Rollup
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()

	logger, _ := logtest.NewNullLogger()
	ledger := timeoff.NewLedger(store, store)
	ledger.Clock = generic.FixedClock{At: testNow}
	ledger.Log = logger
	ledger.Notifier = nil

	catalog := timeoff.NewCatalog(store, store)
	return &fixture{
		store:   store,
		ledger:  ledger,
		catalog: catalog,
		balance: timeoff.NewBalanceCalculator(catalog, store),
		rollup:  timeoff.NewRollup(store, store),
	}
}

func (f *fixture) addPolicy(t *testing.T, p timeoff.TimeOffPolicy) {
	t.Helper()
	_, err := f.catalog.SavePolicy(context.Background(), p)
	require.NoError(t, err)
}

func (f *fixture) addEmployee(t *testing.T, id, department string, policyID generic.PolicyID) {
	t.Helper()
	require.NoError(t, f.store.SaveEmployee(context.Background(), timeoff.Employee{
		ID:         generic.EmployeeID(id),
		Name:       "Employee " + id,
		Email:      id + "@example.com",
		Department: department,
		PolicyID:   policyID,
	}))
}

func (f *fixture) request(t *testing.T, employeeID string, typ timeoff.RequestType, start, end string) *timeoff.TimeOffRequest {
	t.Helper()
	req, err := f.ledger.CreateRequest(context.Background(), timeoff.CreateRequestInput{
		EmployeeID: generic.EmployeeID(employeeID),
		Type:       typ,
		StartDate:  generic.MustParseDate(start),
		EndDate:    generic.MustParseDate(end),
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) approved(t *testing.T, employeeID string, typ timeoff.RequestType, start, end string) *timeoff.TimeOffRequest {
	t.Helper()
	req := f.request(t, employeeID, typ, start, end)
	approved, err := f.ledger.Approve(context.Background(), req.ID, "manager-1")
	require.NoError(t, err)
	return approved
}

// =============================================================================
// STATE MACHINE
// =============================================================================

func TestCanTransition(t *testing.T) {
	all := []timeoff.RequestStatus{
		timeoff.StatusRequested, timeoff.StatusApproved, timeoff.StatusDenied, timeoff.StatusCancelled,
	}

	for _, from := range all {
		for _, to := range all {
			want := from == timeoff.StatusRequested && to != timeoff.StatusRequested
			assert.Equal(t, want, timeoff.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, timeoff.StatusRequested.IsTerminal())
	assert.True(t, timeoff.StatusApproved.IsTerminal())
	assert.True(t, timeoff.StatusDenied.IsTerminal())
	assert.True(t, timeoff.StatusCancelled.IsTerminal())
	assert.Empty(t, timeoff.StatusCancelled.NextStatuses())
	assert.Len(t, timeoff.StatusRequested.NextStatuses(), 3)
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateRequest_Stored(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, "alice", "eng", "")
	ctx := context.Background()

	req, err := f.ledger.CreateRequest(ctx, timeoff.CreateRequestInput{
		EmployeeID: "alice",
		Type:       timeoff.TypePTO,
		StartDate:  generic.MustParseDate("2025-03-10"),
		EndDate:    generic.MustParseDate("2025-03-12"),
		Reason:     "ski trip",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, timeoff.StatusRequested, req.Status)
	assert.Equal(t, 1, req.Version)
	assert.Equal(t, testNow, req.CreatedAt)

	stored, err := f.ledger.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, *req, *stored)

	history, err := f.ledger.History(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, timeoff.RequestStatus(""), history[0].From)
	assert.Equal(t, timeoff.StatusRequested, history[0].To)
	assert.Equal(t, "alice", history[0].ActorID)
}

func TestCreateRequest_EndBeforeStart_Rejected(t *testing.T) {
	// GIVEN: A known employee
	// WHEN: Requesting a range that ends before it starts
	// THEN: ValidationError wrapping InvalidRangeError, nothing stored

	f := newFixture(t)
	f.addEmployee(t, "alice", "eng", "")
	ctx := context.Background()

	_, err := f.ledger.CreateRequest(ctx, timeoff.CreateRequestInput{
		EmployeeID: "alice",
		Type:       timeoff.TypePTO,
		StartDate:  generic.MustParseDate("2025-03-12"),
		EndDate:    generic.MustParseDate("2025-03-10"),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrValidation)
	assert.ErrorIs(t, err, generic.ErrInvalidRange)
	var rangeErr *generic.InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "2025-03-12", rangeErr.Start.String())

	all, err := f.ledger.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateRequest_Invalid(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, "alice", "eng", "")

	tests := []struct {
		name  string
		input timeoff.CreateRequestInput
		field string
	}{
		{
			name:  "missing employee",
			input: timeoff.CreateRequestInput{Type: timeoff.TypePTO, StartDate: generic.MustParseDate("2025-03-10"), EndDate: generic.MustParseDate("2025-03-10")},
			field: "employee_id",
		},
		{
			name:  "unknown type",
			input: timeoff.CreateRequestInput{EmployeeID: "alice", Type: "VACATION", StartDate: generic.MustParseDate("2025-03-10"), EndDate: generic.MustParseDate("2025-03-10")},
			field: "type",
		},
		{
			name:  "missing dates",
			input: timeoff.CreateRequestInput{EmployeeID: "alice", Type: timeoff.TypeSick},
			field: "start_date",
		},
		{
			name:  "unknown employee",
			input: timeoff.CreateRequestInput{EmployeeID: "ghost", Type: timeoff.TypePTO, StartDate: generic.MustParseDate("2025-03-10"), EndDate: generic.MustParseDate("2025-03-10")},
			field: "employee_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.CreateRequest(context.Background(), tt.input)
			var vErr *generic.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.True(t, generic.IsClientError(err))
			assert.False(t, generic.IsNotFound(err))
		})
	}
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func TestSetStatus_ApproveThenTerminal(t *testing.T) {
	// GIVEN: An approved request
	// WHEN: Trying to deny or cancel it
	// THEN: InvalidTransitionError; the record is unchanged

	f := newFixture(t)
	f.addEmployee(t, "alice", "eng", "")
	ctx := context.Background()

	req := f.approved(t, "alice", timeoff.TypePTO, "2025-03-10", "2025-03-12")
	assert.Equal(t, timeoff.StatusApproved, req.Status)
	assert.Equal(t, "manager-1", req.DecidedBy)
	require.NotNil(t, req.DecidedAt)
	assert.Equal(t, 2, req.Version)

	for _, target := range []timeoff.RequestStatus{timeoff.StatusDenied, timeoff.StatusCancelled, timeoff.StatusRequested, timeoff.StatusApproved} {
		_, err := f.ledger.SetStatus(ctx, req.ID, target, "manager-2")
		var trErr *timeoff.InvalidTransitionError
		require.ErrorAs(t, err, &trErr, "target %s", target)
		assert.Equal(t, timeoff.StatusApproved, trErr.From)
		assert.Equal(t, target, trErr.To)
		assert.ErrorIs(t, err, generic.ErrInvalidTransition)
	}

	stored, err := f.ledger.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusApproved, stored.Status)
	assert.Equal(t, "manager-1", stored.DecidedBy)
}

func TestSetStatus_CancelOnlyFromRequested(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, "alice", "eng", "")
	ctx := context.Background()

	pending := f.request(t, "alice", timeoff.TypePTO, "2025-04-01", "2025-04-02")
	cancelled, err := f.ledger.Cancel(ctx, pending.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusCancelled, cancelled.Status)

	denied := f.request(t, "alice", timeoff.TypePTO, "2025-05-01", "2025-05-02")
	_, err = f.ledger.Deny(ctx, denied.ID, "manager-1")
	require.NoError(t, err)

	_, err = f.ledger.Cancel(ctx, denied.ID, "alice")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
}

func TestSetStatus_UnknownRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.Approve(context.Background(), "missing", "manager-1")

	var nf *generic.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "request", nf.Kind)
	assert.True(t, generic.IsNotFound(err))
}

func TestSetStatus_RequiresActorAndKnownStatus(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, "alice", "eng", "")
	req := f.request(t, "alice", timeoff.TypePTO, "2025-04-01", "2025-04-02")
	ctx := context.Background()

	_, err := f.ledger.SetStatus(ctx, req.ID, timeoff.StatusApproved, "")
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = f.ledger.SetStatus(ctx, req.ID, "ARCHIVED", "manager-1")
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestSetStatus_History(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, "alice", "eng", "")
	ctx := context.Background()

	req := f.approved(t, "alice", timeoff.TypePTO, "2025-04-01", "2025-04-02")

	history, err := f.ledger.History(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, timeoff.StatusRequested, history[1].From)
	assert.Equal(t, timeoff.StatusApproved, history[1].To)
	assert.Equal(t, "manager-1", history[1].ActorID)

	_, err = f.ledger.History(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))
}

func TestSetStatus_ConcurrentDecisions_OneWinner(t *testing.T) {
	// GIVEN: A pending request
	// WHEN: Many approvers approve or deny it at the same time
	// THEN: Exactly one succeeds; every other call sees InvalidTransitionError

	f := newFixture(t)
	f.addEmployee(t, "alice", "eng", "")
	req := f.request(t, "alice", timeoff.TypePTO, "2025-04-01", "2025-04-02")
	ctx := context.Background()

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []timeoff.RequestStatus
		invalids int
		others   []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		target := timeoff.StatusApproved
		if i%2 == 1 {
			target = timeoff.StatusDenied
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			got, err := f.ledger.SetStatus(ctx, req.ID, target, "manager")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, got.Status)
			case errors.Is(err, generic.ErrInvalidTransition):
				invalids++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, others)
	require.Len(t, winners, 1)
	assert.Equal(t, workers-1, invalids)

	stored, err := f.ledger.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], stored.Status)
	assert.Equal(t, 2, stored.Version)

	history, err := f.ledger.History(ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2, "exactly one transition recorded")
}

// =============================================================================
// LISTING
// =============================================================================

func TestList_Filters(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, "alice", "eng", "")
	f.addEmployee(t, "bob", "eng", "")
	ctx := context.Background()

	a1 := f.approved(t, "alice", timeoff.TypePTO, "2025-04-01", "2025-04-02")
	a2 := f.request(t, "alice", timeoff.TypeSick, "2025-04-10", "2025-04-10")
	b1 := f.request(t, "bob", timeoff.TypePTO, "2025-04-01", "2025-04-03")

	byAlice, err := f.ledger.ListByEmployee(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []generic.RequestID{a1.ID, a2.ID}, requestIDs(byAlice))

	pending, err := f.ledger.ListByStatus(ctx, timeoff.StatusRequested)
	require.NoError(t, err)
	assert.Equal(t, []generic.RequestID{a2.ID, b1.ID}, requestIDs(pending))

	all, err := f.ledger.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.ledger.ListByStatus(ctx, "NOPE")
	assert.ErrorIs(t, err, generic.ErrValidation)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestNotifier_ReceivesCommittedEvents(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, "alice", "eng", "")

	events := make(chan timeoff.RequestEvent, 4)
	f.ledger.Notifier = timeoff.NotifierFunc(func(_ context.Context, e timeoff.RequestEvent) {
		events <- e
	})

	req := f.request(t, "alice", timeoff.TypePTO, "2025-04-01", "2025-04-02")
	_, err := f.ledger.Approve(context.Background(), req.ID, "manager-1")
	require.NoError(t, err)

	got := []timeoff.RequestEvent{receive(t, events), receive(t, events)}
	// Dispatch is asynchronous; delivery order between the two is not fixed.
	statuses := map[timeoff.RequestStatus]timeoff.RequestEvent{}
	for _, e := range got {
		statuses[e.Request.Status] = e
	}
	require.Contains(t, statuses, timeoff.StatusRequested)
	require.Contains(t, statuses, timeoff.StatusApproved)
	assert.Equal(t, timeoff.StatusRequested, statuses[timeoff.StatusApproved].From)
	assert.Equal(t, "manager-1", statuses[timeoff.StatusApproved].ActorID)
}

func TestNotifier_PanicDoesNotFailTransition(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, "alice", "eng", "")

	done := make(chan struct{}, 2)
	f.ledger.Notifier = timeoff.NotifierFunc(func(context.Context, timeoff.RequestEvent) {
		done <- struct{}{}
		panic("mail server on fire")
	})

	req := f.request(t, "alice", timeoff.TypePTO, "2025-04-01", "2025-04-02")
	approved, err := f.ledger.Approve(context.Background(), req.ID, "manager-1")
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusApproved, approved.Status)

	<-done
	<-done
}

func TestLogNotifier_Fields(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	n := timeoff.LogNotifier{Log: logger}

	n.RequestChanged(context.Background(), timeoff.RequestEvent{
		Request: timeoff.TimeOffRequest{ID: "r1", EmployeeID: "alice", Status: timeoff.StatusApproved},
		From:    timeoff.StatusRequested,
		ActorID: "manager-1",
	})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, generic.RequestID("r1"), entry.Data["request_id"])
	assert.Equal(t, timeoff.StatusApproved, entry.Data["to"])
}

func receive(t *testing.T, ch <-chan timeoff.RequestEvent) timeoff.RequestEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return timeoff.RequestEvent{}
	}
}

func requestIDs(reqs []timeoff.TimeOffRequest) []generic.RequestID {
	ids := make([]generic.RequestID, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
	}
	return ids
}
