package timeoff_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// =============================================================================
// END-TO-END
// =============================================================================

func TestEndToEnd_ApprovedPTOReducesBalance(t *testing.T) {
	// GIVEN: A FIXED 15-day policy assigned to an employee
	// WHEN: A Mon-Fri PTO request is created and approved
	// THEN: The year's balance shows 5 used and 10 remaining

	f := newFixture(t)
	f.addPolicy(t, timeoff.StandardPTOPolicy("pto-15", "Standard PTO", 15))
	f.addEmployee(t, "alice", "eng", "pto-15")
	ctx := context.Background()

	req := f.request(t, "alice", timeoff.TypePTO, "2025-03-10", "2025-03-14")

	before, err := f.balance.ComputeBalance(ctx, "alice", 2025)
	require.NoError(t, err)
	assert.Equal(t, 0, *before.UsedDays)
	assert.Equal(t, 5, *before.PendingDays)
	assert.Equal(t, 15, *before.RemainingDays)

	_, err = f.ledger.Approve(ctx, req.ID, "manager-1")
	require.NoError(t, err)

	snap, err := f.balance.ComputeBalance(ctx, "alice", 2025)
	require.NoError(t, err)
	assert.Equal(t, timeoff.BalanceTracked, snap.Kind)
	assert.Equal(t, generic.PolicyID("pto-15"), snap.PolicyID)
	assert.Equal(t, 15, *snap.Allowance)
	assert.Equal(t, 5, *snap.UsedDays)
	assert.Equal(t, 10, *snap.RemainingDays)
	assert.Equal(t, 0, *snap.PendingDays)
}

// =============================================================================
// BALANCE
// =============================================================================

func TestBalance_OnlyApprovedPTOCounts(t *testing.T) {
	f := newFixture(t)
	f.addPolicy(t, timeoff.StandardPTOPolicy("pto-20", "PTO 20", 20))
	f.addEmployee(t, "alice", "eng", "pto-20")
	f.addEmployee(t, "bob", "eng", "pto-20")
	ctx := context.Background()

	f.approved(t, "alice", timeoff.TypePTO, "2025-03-10", "2025-03-11")  // 2
	f.approved(t, "alice", timeoff.TypeSick, "2025-04-01", "2025-04-04") // not PTO
	f.approved(t, "bob", timeoff.TypePTO, "2025-03-10", "2025-03-20")    // other employee

	denied := f.request(t, "alice", timeoff.TypePTO, "2025-05-01", "2025-05-05")
	_, err := f.ledger.Deny(ctx, denied.ID, "manager-1")
	require.NoError(t, err)

	cancelled := f.request(t, "alice", timeoff.TypePTO, "2025-06-01", "2025-06-05")
	_, err = f.ledger.Cancel(ctx, cancelled.ID, "alice")
	require.NoError(t, err)

	snap, err := f.balance.ComputeBalance(ctx, "alice", 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, *snap.UsedDays)
	assert.Equal(t, 18, *snap.RemainingDays)
	assert.Equal(t, 0, *snap.PendingDays)
}

func TestBalance_CrossYearRequestSplits(t *testing.T) {
	// GIVEN: An approved request from Dec 28, 2025 to Jan 3, 2026
	// WHEN: Computing balances for both years
	// THEN: 4 days land in 2025 and 3 days in 2026

	f := newFixture(t)
	f.addPolicy(t, timeoff.StandardPTOPolicy("pto-15", "Standard PTO", 15))
	f.addEmployee(t, "alice", "eng", "pto-15")
	ctx := context.Background()

	f.approved(t, "alice", timeoff.TypePTO, "2025-12-28", "2026-01-03")

	y2025, err := f.balance.ComputeBalance(ctx, "alice", 2025)
	require.NoError(t, err)
	y2026, err := f.balance.ComputeBalance(ctx, "alice", 2026)
	require.NoError(t, err)
	y2027, err := f.balance.ComputeBalance(ctx, "alice", 2027)
	require.NoError(t, err)

	assert.Equal(t, 4, *y2025.UsedDays)
	assert.Equal(t, 3, *y2026.UsedDays)
	assert.Equal(t, 0, *y2027.UsedDays)
}

func TestBalance_NeverNegative(t *testing.T) {
	f := newFixture(t)
	f.addPolicy(t, timeoff.StandardPTOPolicy("pto-3", "Tiny PTO", 3))
	f.addEmployee(t, "alice", "eng", "pto-3")

	f.approved(t, "alice", timeoff.TypePTO, "2025-07-01", "2025-07-10")

	snap, err := f.balance.ComputeBalance(context.Background(), "alice", 2025)
	require.NoError(t, err)
	assert.Equal(t, 10, *snap.UsedDays)
	assert.Equal(t, 0, *snap.RemainingDays)
}

func TestBalance_UnlimitedPolicy(t *testing.T) {
	f := newFixture(t)
	f.addPolicy(t, timeoff.UnlimitedPTOPolicy("unlimited", "Unlimited"))
	f.addEmployee(t, "alice", "eng", "unlimited")
	f.approved(t, "alice", timeoff.TypePTO, "2025-07-01", "2025-07-10")

	snap, err := f.balance.ComputeBalance(context.Background(), "alice", 2025)
	require.NoError(t, err)
	assert.Equal(t, timeoff.BalanceUnlimited, snap.Kind)
	assert.Nil(t, snap.Allowance)
	assert.Nil(t, snap.UsedDays)
	assert.Nil(t, snap.RemainingDays)
}

func TestBalance_NoPolicyIsNotConfigured(t *testing.T) {
	// GIVEN: An employee with no assigned policy, while other policies exist
	// WHEN: Computing the balance
	// THEN: NOT_CONFIGURED, never the first policy in the catalog

	f := newFixture(t)
	f.addPolicy(t, timeoff.StandardPTOPolicy("pto-15", "Standard PTO", 15))
	f.addEmployee(t, "alice", "eng", "")

	snap, err := f.balance.ComputeBalance(context.Background(), "alice", 2025)
	require.NoError(t, err)
	assert.Equal(t, timeoff.BalanceNotConfigured, snap.Kind)
	assert.Empty(t, snap.PolicyID)
	assert.Nil(t, snap.RemainingDays)
}

func TestBalance_LookupFailuresAreErrors(t *testing.T) {
	f := newFixture(t)
	f.addEmployee(t, "dangling", "eng", "gone")
	ctx := context.Background()

	_, err := f.balance.ComputeBalance(ctx, "ghost", 2025)
	assert.True(t, generic.IsNotFound(err))

	_, err = f.balance.ComputeBalance(ctx, "dangling", 2025)
	var nf *generic.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "policy", nf.Kind)

	_, err = f.balance.ComputeBalance(ctx, "dangling", 0)
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestBalanceFor_IgnoresForeignRequests(t *testing.T) {
	policy := timeoff.StandardPTOPolicy("p", "P", 10)
	requests := []timeoff.TimeOffRequest{
		{EmployeeID: "alice", Type: timeoff.TypePTO, Status: timeoff.StatusApproved,
			StartDate: generic.MustParseDate("2025-01-01"), EndDate: generic.MustParseDate("2025-01-02")},
		{EmployeeID: "bob", Type: timeoff.TypePTO, Status: timeoff.StatusApproved,
			StartDate: generic.MustParseDate("2025-01-01"), EndDate: generic.MustParseDate("2025-01-09")},
		{EmployeeID: "alice", Type: timeoff.TypePTO, Status: timeoff.StatusApproved,
			StartDate: generic.MustParseDate("2024-06-01"), EndDate: generic.MustParseDate("2024-06-09")},
	}

	snap := timeoff.BalanceFor("alice", &policy, requests, 2025)
	assert.Equal(t, 2, *snap.UsedDays)
	assert.Equal(t, 8, *snap.RemainingDays)
}

func TestUtilization(t *testing.T) {
	policy := timeoff.StandardPTOPolicy("p", "P", 15)
	requests := []timeoff.TimeOffRequest{
		{EmployeeID: "alice", Type: timeoff.TypePTO, Status: timeoff.StatusApproved,
			StartDate: generic.MustParseDate("2025-03-10"), EndDate: generic.MustParseDate("2025-03-14")},
	}

	u, ok := timeoff.Utilization(timeoff.BalanceFor("alice", &policy, requests, 2025))
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("0.33").Equal(u.Value), "got %s", u.Value)
	assert.Equal(t, generic.UnitRatio, u.Unit)

	_, ok = timeoff.Utilization(timeoff.BalanceFor("alice", nil, requests, 2025))
	assert.False(t, ok)

	zero := timeoff.StandardPTOPolicy("z", "Z", 0)
	_, ok = timeoff.Utilization(timeoff.BalanceFor("alice", &zero, nil, 2025))
	assert.False(t, ok)
}

// =============================================================================
// CATALOG
// =============================================================================

func TestCatalog_SaveValidatesAndCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.catalog.SavePolicy(ctx, timeoff.TimeOffPolicy{ID: "bad", Name: "Bad", Kind: timeoff.PolicyFixed})
	assert.ErrorIs(t, err, generic.ErrValidation)

	negative := timeoff.StandardPTOPolicy("neg", "Neg", -1)
	_, err = f.catalog.SavePolicy(ctx, negative)
	assert.ErrorIs(t, err, generic.ErrValidation)

	unlimited := timeoff.UnlimitedPTOPolicy("u", "U")
	days := 5
	unlimited.AnnualAllowanceDays = &days
	_, err = f.catalog.SavePolicy(ctx, unlimited)
	assert.ErrorIs(t, err, generic.ErrValidation)

	saved, err := f.catalog.SavePolicy(ctx, timeoff.AccrualPTOPolicy("acc", "Accrual", 12))
	require.NoError(t, err)
	assert.False(t, saved.CreatedAt.IsZero())

	f.addPolicy(t, timeoff.StandardPTOPolicy("std", "Standard", 15))

	list, err := f.catalog.ListPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Accrual", list[0].Name)
	assert.Equal(t, "Standard", list[1].Name)

	_, err = f.catalog.GetPolicy(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))
}

func TestCatalog_ReadsAreCopies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPolicy(t, timeoff.StandardPTOPolicy("std", "Standard", 15))

	got, err := f.catalog.GetPolicy(ctx, "std")
	require.NoError(t, err)
	*got.AnnualAllowanceDays = 99

	list, err := f.catalog.ListPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 15, *list[0].AnnualAllowanceDays)
	*list[0].AnnualAllowanceDays = 42

	again, err := f.catalog.GetPolicy(ctx, "std")
	require.NoError(t, err)
	assert.Equal(t, 15, *again.AnnualAllowanceDays)

	stored, err := f.store.GetPolicy(ctx, "std")
	require.NoError(t, err)
	assert.Equal(t, 15, *stored.AnnualAllowanceDays)
}

func TestCatalog_PolicyForEmployee(t *testing.T) {
	f := newFixture(t)
	f.addPolicy(t, timeoff.StandardPTOPolicy("std", "Standard", 15))
	f.addEmployee(t, "alice", "eng", "std")
	f.addEmployee(t, "bob", "eng", "")
	ctx := context.Background()

	p, err := f.catalog.PolicyForEmployee(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, generic.PolicyID("std"), p.ID)

	p, err = f.catalog.PolicyForEmployee(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = f.catalog.PolicyForEmployee(ctx, "ghost")
	assert.True(t, errors.Is(err, generic.ErrNotFound))
}

func TestCatalog_ReloadPicksUpStoreWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	list, err := f.catalog.ListPolicies(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, f.store.SavePolicy(ctx, timeoff.StandardPTOPolicy("direct", "Direct", 10)))
	require.NoError(t, f.catalog.Reload(ctx))

	list, err = f.catalog.ListPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, generic.PolicyID("direct"), list[0].ID)
}
