// Package slot holds the pure slot calculus: enumerating candidate
// appointment slots inside a business-hours window and half-open
// interval overlap checks. No state, no I/O.
package slot

import "time"

const DefaultDuration = time.Hour

// Slot is one fixed-duration candidate interval [Start, Start+Duration).
type Slot struct {
	Start    time.Time
	Duration time.Duration
}

func (s Slot) End() time.Time {
	return s.Start.Add(s.Duration)
}

// Enumerate returns the ordered candidate start times in [open, close),
// stepped by d. A candidate is excluded only if its full interval would
// run past close. Zero or negative windows yield an empty sequence.
func Enumerate(open, close time.Time, d time.Duration) []Slot {
	if d <= 0 {
		d = DefaultDuration
	}
	if !open.Before(close) {
		return nil
	}

	var out []Slot
	for start := open; !start.Add(d).After(close); start = start.Add(d) {
		out = append(out, Slot{Start: start, Duration: d})
	}
	return out
}

// Overlaps reports whether two half-open intervals intersect. Adjacent
// slots (end of a == start of b) do not conflict.
func Overlaps(a, b Slot) bool {
	return a.Start.Before(b.End()) && b.Start.Before(a.End())
}
