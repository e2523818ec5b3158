// Package daterange contains the whole-day date arithmetic used by the slicer:
// ranges, data bounds, presets and parsing of raw column values.
// This package has NO external dependencies and never reads the wall clock.
// "Now" is always passed in by the caller.
package daterange

import (
	"errors"
	"time"
)

var (
	// ErrNoValidDates is returned when none of the raw column values parse as a date.
	ErrNoValidDates = errors.New("no valid dates")

	// ErrInvalidRange is returned when a range has from after to.
	ErrInvalidRange = errors.New("invalid range: from after to")
)

// Range is an inclusive whole-day range. From is at 00:00:00.000 of its day and
// To is at 23:59:59.999 of its day, both in the same location.
type Range struct {
	From time.Time
	To   time.Time
}

// NewRange builds a whole-day range covering the days of from and to in loc.
func NewRange(from, to time.Time, loc *time.Location) (Range, error) {
	r := Range{From: StartOfDay(from, loc), To: EndOfDay(to, loc)}
	if r.From.After(r.To) {
		return Range{}, ErrInvalidRange
	}
	return r, nil
}

// Day returns the single-day range containing t.
func Day(t time.Time, loc *time.Location) Range {
	return Range{From: StartOfDay(t, loc), To: EndOfDay(t, loc)}
}

// Equal reports whether both ends denote the same instants.
func (r Range) Equal(other Range) bool {
	return r.From.Equal(other.From) && r.To.Equal(other.To)
}

// Days returns the number of calendar days covered by the range.
func (r Range) Days() int {
	from := time.Date(r.From.Year(), r.From.Month(), r.From.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(r.To.Year(), r.To.Month(), r.To.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours()/24) + 1
}

// String formats the range as [YYYY-MM-DD, YYYY-MM-DD].
func (r Range) String() string {
	return "[" + r.From.Format(DateLayout) + ", " + r.To.Format(DateLayout) + "]"
}

// Normalize snaps both ends to whole-day boundaries in loc.
func (r Range) Normalize(loc *time.Location) Range {
	return Range{From: StartOfDay(r.From, loc), To: EndOfDay(r.To, loc)}
}

// Clamp restricts the range to the bounds. If clamping inverts the order, the
// range collapses to the single day min(from, bounds.Max). Whole-day
// normalization is applied last, so the result always has From <= To.
func (r Range) Clamp(b Bounds, loc *time.Location) Range {
	from, to := r.From, r.To
	if from.Before(b.Min) {
		from = b.Min
	}
	if to.After(b.Max) {
		to = b.Max
	}
	if from.After(to) {
		pin := from
		if b.Max.Before(pin) {
			pin = b.Max
		}
		return Day(pin, loc)
	}
	return Range{From: from, To: to}.Normalize(loc)
}

// Bounds is the min/max of the bound date column in the visible dataset.
type Bounds struct {
	Min time.Time
	Max time.Time
}

// IsZero reports whether the bounds were never set.
func (b Bounds) IsZero() bool {
	return b.Min.IsZero() && b.Max.IsZero()
}

// Equal reports whether both bounds denote the same instants.
func (b Bounds) Equal(other Bounds) bool {
	return b.Min.Equal(other.Min) && b.Max.Equal(other.Max)
}

// Range returns the whole-day range spanning the bounds.
func (b Bounds) Range(loc *time.Location) Range {
	return Range{From: StartOfDay(b.Min, loc), To: EndOfDay(b.Max, loc)}
}

// StartOfDay returns 00:00:00.000 of t's day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns 23:59:59.999 of t's day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
}
