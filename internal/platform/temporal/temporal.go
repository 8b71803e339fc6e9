// Package temporal normalizes timestamps to UTC instants and implements the
// period containment checks the decision engine relies on. All comparisons go
// through parsed instants; a timestamp that fails to parse is an error, never
// a silent pass.
package temporal

import (
	"errors"
	"fmt"
	"time"
)

// ErrParse is returned (wrapped) for timestamps that match none of the
// accepted layouts.
var ErrParse = errors.New("unparseable timestamp")

// Accepted layouts, tried in order. The unsuffixed forms are documented as
// UTC and are only accepted when strict parsing is disabled.
var (
	strictLayouts = []string{
		time.RFC3339Nano, // 2006-01-02T15:04:05.999999999Z07:00
		time.RFC3339,     // 2006-01-02T15:04:05Z07:00
	}
	lenientLayouts = []string{
		"2006-01-02T15:04:05", // unsuffixed, documented UTC
		"2006-01-02",          // date only, midnight UTC
	}
)

// Parse parses s as a UTC instant using the strict layout set (RFC 3339 with
// "Z" or an explicit offset).
func Parse(s string) (time.Time, error) {
	return parse(s, true)
}

// ParseLenient additionally accepts unsuffixed date-time and date-only forms,
// interpreting them as UTC.
func ParseLenient(s string) (time.Time, error) {
	return parse(s, false)
}

func parse(s string, strict bool) (time.Time, error) {
	for _, layout := range strictLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if !strict {
		for _, layout := range lenientLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrParse, s)
}

// Now returns the wall clock as a UTC instant. The engine never calls this
// itself; production callers pass it in so tests can inject a fixed clock.
func Now() time.Time {
	return time.Now().UTC()
}

// Period is a half-open-capable time window. A nil bound means the period is
// open-ended in that direction.
type Period struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// NewPeriod builds a closed period from two instants.
func NewPeriod(start, end time.Time) Period {
	s, e := start.UTC(), end.UTC()
	return Period{Start: &s, End: &e}
}

// Contains returns true if t falls within the period, bounds inclusive.
func (p Period) Contains(t time.Time) bool {
	if p.Start != nil && t.Before(*p.Start) {
		return false
	}
	if p.End != nil && t.After(*p.End) {
		return false
	}
	return true
}

// ContainsPeriod returns true if other lies entirely within p. An unbounded
// side of other is only contained by an unbounded side of p.
func (p Period) ContainsPeriod(other Period) bool {
	if p.Start != nil {
		if other.Start == nil || other.Start.Before(*p.Start) {
			return false
		}
	}
	if p.End != nil {
		if other.End == nil || other.End.After(*p.End) {
			return false
		}
	}
	return true
}

// Duration returns the length of a fully bounded period and whether the
// period is bounded at all.
func (p Period) Duration() (time.Duration, bool) {
	if p.Start == nil || p.End == nil {
		return 0, false
	}
	return p.End.Sub(*p.Start), true
}

// OverlapFraction returns the fraction of other covered by p, in [0,1].
// Both periods must be fully bounded; a zero-length other counts as fully
// covered when its instant lies inside p.
func (p Period) OverlapFraction(other Period) float64 {
	if p.Start == nil || p.End == nil || other.Start == nil || other.End == nil {
		if p.ContainsPeriod(other) {
			return 1
		}
		return 0
	}
	total := other.End.Sub(*other.Start)
	if total <= 0 {
		if p.Contains(*other.Start) {
			return 1
		}
		return 0
	}
	start := *other.Start
	if p.Start.After(start) {
		start = *p.Start
	}
	end := *other.End
	if p.End.Before(end) {
		end = *p.End
	}
	if !end.After(start) {
		return 0
	}
	return float64(end.Sub(start)) / float64(total)
}

// Within reports whether child lies inside parent; a nil child period means
// the child inherits the parent window and is always within it.
func Within(child *Period, parent Period) bool {
	if child == nil {
		return true
	}
	return parent.ContainsPeriod(*child)
}
