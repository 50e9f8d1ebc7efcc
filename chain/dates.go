/*
dates.go - Calendar day values and date sets

PURPOSE:
  Leave is requested as a set of individual calendar days, not a range.
  Dates don't have to be contiguous (e.g., every Friday in March), so
  the engine works on DateSet: a sorted, de-duplicated list of days.

KEY CONCEPTS:
  - Date: a single calendar day (no time-of-day, always UTC)
  - DateSet: unique sorted days with set algebra (union, disjoint, equal)
  - Partition: validates a full set splits exactly into approved/rejected

WHY A SET, NOT A RANGE:
  Partial approval splits the requested days into two disjoint subsets.
  Representing the request as a set makes "the union of the subsets must
  equal the original days" a direct, checkable property instead of
  string parsing over a formatted comment.

SEE ALSO:
  - chain.go: Decision carries approved/rejected DateSets
*/
package chain

import (
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// DATE - A single calendar day
// =============================================================================

// Date is a calendar day with no time-of-day component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	// Normalize through time.Date so Feb 30 becomes Mar 2, etc.
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func DateOf(t time.Time) Date {
	u := t.UTC()
	return Date{Year: u.Year(), Month: u.Month(), Day: u.Day()}
}

func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string { return d.Time().Format("2006-01-02") }

func (d Date) Before(other Date) bool { return d.Time().Before(other.Time()) }
func (d Date) After(other Date) bool  { return d.Time().After(other.Time()) }
func (d Date) Equal(other Date) bool  { return d == other }
func (d Date) IsZero() bool           { return d == Date{} }

func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// =============================================================================
// DATE SET - Unique, sorted calendar days
// =============================================================================

// DateSet is a sorted list of unique calendar days.
// Always construct through NewDateSet so the invariant holds.
type DateSet []Date

// NewDateSet builds a set from arbitrary dates, dropping duplicates
// and sorting ascending.
func NewDateSet(dates ...Date) DateSet {
	seen := make(map[Date]bool, len(dates))
	out := make(DateSet, 0, len(dates))
	for _, d := range dates {
		if d.IsZero() || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// ParseDateSet parses a list of YYYY-MM-DD strings into a set.
func ParseDateSet(raw []string) (DateSet, error) {
	dates := make([]Date, 0, len(raw))
	for _, s := range raw {
		d, err := ParseDate(s)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return NewDateSet(dates...), nil
}

func (s DateSet) Count() int    { return len(s) }
func (s DateSet) IsEmpty() bool { return len(s) == 0 }

// Earliest returns the first day of the set. Zero value if empty.
func (s DateSet) Earliest() Date {
	if len(s) == 0 {
		return Date{}
	}
	return s[0]
}

func (s DateSet) Contains(d Date) bool {
	i := sort.Search(len(s), func(i int) bool { return !s[i].Before(d) })
	return i < len(s) && s[i] == d
}

func (s DateSet) Equal(other DateSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Union returns the merged set.
func (s DateSet) Union(other DateSet) DateSet {
	merged := make([]Date, 0, len(s)+len(other))
	merged = append(merged, s...)
	merged = append(merged, other...)
	return NewDateSet(merged...)
}

// Intersects reports whether the two sets share any day.
func (s DateSet) Intersects(other DateSet) bool {
	for _, d := range other {
		if s.Contains(d) {
			return true
		}
	}
	return false
}

// Strings returns the ISO representation of every day, in order.
func (s DateSet) Strings() []string {
	out := make([]string, len(s))
	for i, d := range s {
		out[i] = d.String()
	}
	return out
}

// =============================================================================
// PARTITION CHECK - The partial-approval conservation rule
// =============================================================================

// CheckPartition validates that approved and rejected are disjoint and
// that their union is exactly full. This is the conservation property of
// partial approval: days are never created, duplicated, or dropped.
func CheckPartition(full, approved, rejected DateSet) error {
	if approved.Intersects(rejected) {
		return &DateSetMismatchError{
			Full:     full,
			Approved: approved,
			Rejected: rejected,
			Detail:   "approved and rejected subsets overlap",
		}
	}
	if !approved.Union(rejected).Equal(full) {
		return &DateSetMismatchError{
			Full:     full,
			Approved: approved,
			Rejected: rejected,
			Detail:   "union of subsets does not equal the request's date set",
		}
	}
	return nil
}
