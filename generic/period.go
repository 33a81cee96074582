package generic

// =============================================================================
// PERIOD - Closed range of calendar days
// =============================================================================

// Period is the closed range [Start, End]. Both endpoints are days off:
// Monday..Wednesday is three days.
//
// Every place that needs day counts, year clamping or overlap tests goes
// through this file, so the arithmetic exists exactly once.
type Period struct {
	Start Date
	End   Date
}

// NewPeriod validates end >= start.
func NewPeriod(start, end Date) (Period, error) {
	if end.Before(start) {
		return Period{}, &InvalidRangeError{Start: start, End: end}
	}
	return Period{Start: start, End: end}, nil
}

// Year returns the period covering the whole calendar year.
func Year(year int) Period {
	return Period{Start: StartOfYear(year), End: EndOfYear(year)}
}

// Days is the inclusive day count. Callers must only use it on periods built
// by NewPeriod / ClampToYear / Intersect, which guarantee End >= Start.
func (p Period) Days() int {
	return daysBetween(p.Start, p.End) + 1
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Overlaps is the closed-interval intersection test. Touching on a single
// shared day counts.
func (p Period) Overlaps(other Period) bool {
	return Overlaps(p.Start, p.End, other.Start, other.End)
}

// Intersect returns the shared days, or false when there are none.
func (p Period) Intersect(other Period) (Period, bool) {
	if !p.Overlaps(other) {
		return Period{}, false
	}
	start := p.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := p.End
	if other.End.Before(end) {
		end = other.End
	}
	return Period{Start: start, End: end}, true
}

// ClampToYear intersects the period with Jan 1..Dec 31 of year.
func (p Period) ClampToYear(year int) (Period, bool) {
	return p.Intersect(Year(year))
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// DATE-RANGE FUNCTIONS
// =============================================================================

// DaysInclusive counts calendar days spanned by [start, end], both endpoints
// included. Returns *InvalidRangeError when end < start.
func DaysInclusive(start, end Date) (int, error) {
	p, err := NewPeriod(start, end)
	if err != nil {
		return 0, err
	}
	return p.Days(), nil
}

// ClampToYear intersects [start, end] with the calendar year. The boolean is
// false when the range lies entirely outside the year (or is inverted); such
// a range contributes zero days and is not an error.
func ClampToYear(start, end Date, year int) (Period, bool) {
	if end.Before(start) {
		return Period{}, false
	}
	return Period{Start: start, End: end}.ClampToYear(year)
}

// Overlaps reports whether [startA, endA] and [startB, endB] share a day.
func Overlaps(startA, endA, startB, endB Date) bool {
	return startA.BeforeOrEqual(endB) && startB.BeforeOrEqual(endA)
}
