/*
Package report exports the ledger as an XLSX workbook.

SHEETS:
  Requests:  Every request of the team, one row each, with day counts
  Balances:  One row per employee for the year (allowance, used, remaining)
  Conflicts: Overlapping pairs of planned time off

Numbers that do not exist (unlimited or not configured balances) are left
blank and the Kind column says why; they are never written as 0.
*/
package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

const (
	sheetRequests  = "Requests"
	sheetBalances  = "Balances"
	sheetConflicts = "Conflicts"
)

var (
	requestHeaders  = []string{"Request ID", "Employee", "Department", "Type", "Status", "Start", "End", "Days", "Reason", "Decided By"}
	balanceHeaders  = []string{"Employee", "Department", "Policy", "Kind", "Allowance", "Used", "Remaining", "Pending", "Utilization"}
	conflictHeaders = []string{"Employee A", "Request A", "Employee B", "Request B", "Overlap Start", "Overlap End", "Overlap Days"}
)

// Data is everything one workbook shows.
type Data struct {
	Year       int
	Department string
	Employees  []timeoff.Employee
	Requests   []timeoff.TimeOffRequest
	Balances   []timeoff.BalanceSnapshot
	Conflicts  []timeoff.ConflictPair
}

// Collector gathers Data from the engine.
type Collector struct {
	Directory timeoff.Directory
	Rollup    *timeoff.Rollup
	Balances  *timeoff.BalanceCalculator
}

// Collect reads the team's requests, balances and conflicts for the year.
// Any lookup failure aborts the export.
func (c *Collector) Collect(ctx context.Context, department string, year int) (*Data, error) {
	employees, err := c.Directory.ListEmployees(ctx, timeoff.EmployeeFilter{Department: department})
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}

	requests, err := c.Rollup.TeamRequests(ctx, department)
	if err != nil {
		return nil, err
	}
	inYear := make([]timeoff.TimeOffRequest, 0, len(requests))
	for _, r := range requests {
		if _, ok := generic.ClampToYear(r.StartDate, r.EndDate, year); ok {
			inYear = append(inYear, r)
		}
	}

	balances := make([]timeoff.BalanceSnapshot, 0, len(employees))
	for _, emp := range employees {
		snap, err := c.Balances.ComputeBalance(ctx, emp.ID, year)
		if err != nil {
			return nil, err
		}
		balances = append(balances, snap)
	}

	conflicts, err := timeoff.FindConflicts(ctx, inYear)
	if err != nil {
		return nil, err
	}

	return &Data{
		Year:       year,
		Department: department,
		Employees:  employees,
		Requests:   inYear,
		Balances:   balances,
		Conflicts:  conflicts,
	}, nil
}

// WriteXLSX renders the workbook.
func WriteXLSX(data *Data) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logrus.WithError(err).Error("failed to close workbook")
		}
	}()

	byID := make(map[generic.EmployeeID]timeoff.Employee, len(data.Employees))
	for _, e := range data.Employees {
		byID[e.ID] = e
	}

	if err := f.SetSheetName("Sheet1", sheetRequests); err != nil {
		return nil, err
	}
	if err := writeRequests(f, data.Requests, byID); err != nil {
		return nil, fmt.Errorf("failed to write requests sheet: %w", err)
	}

	if _, err := f.NewSheet(sheetBalances); err != nil {
		return nil, err
	}
	if err := writeBalances(f, data.Balances, byID); err != nil {
		return nil, fmt.Errorf("failed to write balances sheet: %w", err)
	}

	if _, err := f.NewSheet(sheetConflicts); err != nil {
		return nil, err
	}
	if err := writeConflicts(f, data.Conflicts, byID); err != nil {
		return nil, fmt.Errorf("failed to write conflicts sheet: %w", err)
	}

	return f.WriteToBuffer()
}

func writeRequests(f *excelize.File, requests []timeoff.TimeOffRequest, byID map[generic.EmployeeID]timeoff.Employee) error {
	row, err := writeHeader(f, sheetRequests, 0, requestHeaders)
	if err != nil {
		return err
	}
	if len(requests) > 0 {
		if err := applyDataCellStyle(f, sheetRequests, 1, row+1, len(requestHeaders), row+len(requests)); err != nil {
			return err
		}
	}
	for _, r := range requests {
		row++
		days, _ := generic.DaysInclusive(r.StartDate, r.EndDate)
		values := []interface{}{
			string(r.ID),
			displayName(byID, r.EmployeeID),
			byID[r.EmployeeID].Department,
			string(r.Type),
			string(r.Status),
			r.StartDate.String(),
			r.EndDate.String(),
			days,
			r.Reason,
			r.DecidedBy,
		}
		if err := writeRow(f, sheetRequests, row, values); err != nil {
			return err
		}
	}
	return nil
}

func writeBalances(f *excelize.File, balances []timeoff.BalanceSnapshot, byID map[generic.EmployeeID]timeoff.Employee) error {
	row, err := writeHeader(f, sheetBalances, 0, balanceHeaders)
	if err != nil {
		return err
	}
	for _, b := range balances {
		row++
		values := []interface{}{
			displayName(byID, b.EmployeeID),
			byID[b.EmployeeID].Department,
			string(b.PolicyID),
			string(b.Kind),
			intOrBlank(b.Allowance),
			intOrBlank(b.UsedDays),
			intOrBlank(b.RemainingDays),
			intOrBlank(b.PendingDays),
			"",
		}
		if u, ok := timeoff.Utilization(b); ok {
			values[8] = u.Value.StringFixed(2)
		}
		if err := writeRow(f, sheetBalances, row, values); err != nil {
			return err
		}
	}
	return nil
}

func writeConflicts(f *excelize.File, pairs []timeoff.ConflictPair, byID map[generic.EmployeeID]timeoff.Employee) error {
	row, err := writeHeader(f, sheetConflicts, 0, conflictHeaders)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		row++
		values := []interface{}{
			displayName(byID, p.A.EmployeeID),
			string(p.A.ID),
			displayName(byID, p.B.EmployeeID),
			string(p.B.ID),
			p.Overlap.Start.String(),
			p.Overlap.End.String(),
			p.Overlap.Days(),
		}
		if err := writeRow(f, sheetConflicts, row, values); err != nil {
			return err
		}
	}
	return nil
}

func displayName(byID map[generic.EmployeeID]timeoff.Employee, id generic.EmployeeID) string {
	if e, ok := byID[id]; ok && e.Name != "" {
		return e.Name
	}
	return string(id)
}

func intOrBlank(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
