/*
Package generic provides the domain-agnostic building blocks of the leave engine.

PURPOSE:
  Calendar dates, closed day ranges, identifiers, decimal quantities and the
  error taxonomy. Nothing here knows about requests, policies or statuses;
  the timeoff package builds the ledger on top of these pieces.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A decimal quantity with a unit (e.g., 5 days, 0.35 ratio)
  - Employee/Policy/Request IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Whole days: dates never carry a time-of-day or zone
  2. Precision: ratios use decimal.Decimal to avoid floating-point drift
  3. Type Safety: Strong typing for IDs prevents mixing employee/policy IDs

SEE ALSO:
  - time.go: Date and clocks
  - period.go: DaysInclusive, ClampToYear, Overlaps
  - errors.go: ValidationError, NotFoundError, InvalidRangeError
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type PolicyID string
type RequestID string

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays  Unit = "days"
	UnitRatio Unit = "ratio"
)

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }

// Ratio divides a by b, rounded to places. A zero divisor yields zero.
func (a Amount) Ratio(b Amount, places int32) Amount {
	if b.Value.IsZero() {
		return Amount{Value: decimal.Zero, Unit: UnitRatio}
	}
	return Amount{Value: a.Value.DivRound(b.Value, places), Unit: UnitRatio}
}

// ClampZero returns a, or zero when a is negative.
func (a Amount) ClampZero() Amount {
	if a.IsNegative() {
		return Amount{Value: decimal.Zero, Unit: a.Unit}
	}
	return a
}
