package daterange

import (
	"strings"
	"time"
)

// PresetID identifies a declarative date preset configured on the widget.
type PresetID string

const (
	PresetNone       PresetID = "none"
	PresetToday      PresetID = "today"
	PresetYesterday  PresetID = "yesterday"
	PresetLast3Days  PresetID = "last3days"
	PresetLast7Days  PresetID = "last7Days"
	PresetLast30Days PresetID = "last30Days"
	PresetThisMonth  PresetID = "thisMonth"
	PresetLastMonth  PresetID = "lastMonth"
	PresetMinDate    PresetID = "minDate"
	PresetMaxDate    PresetID = "maxDate"
)

// Presets lists every preset in display order.
var Presets = []PresetID{
	PresetNone,
	PresetToday,
	PresetYesterday,
	PresetLast3Days,
	PresetLast7Days,
	PresetLast30Days,
	PresetThisMonth,
	PresetLastMonth,
	PresetMinDate,
	PresetMaxDate,
}

// ParsePreset maps a settings token to a PresetID. Matching ignores case so
// "last3Days" and "last3days" are the same preset. Unknown or empty tokens
// yield PresetNone.
func ParsePreset(s string) PresetID {
	s = strings.TrimSpace(s)
	for _, p := range Presets {
		if strings.EqualFold(string(p), s) {
			return p
		}
	}
	return PresetNone
}

// IsNone reports whether the preset defers to data bounds or manual selection.
func (p PresetID) IsNone() bool {
	return ParsePreset(string(p)) == PresetNone
}

// Label returns a human-readable name for the preset.
func (p PresetID) Label() string {
	switch ParsePreset(string(p)) {
	case PresetToday:
		return "Today"
	case PresetYesterday:
		return "Yesterday"
	case PresetLast3Days:
		return "Last 3 days"
	case PresetLast7Days:
		return "Last 7 days"
	case PresetLast30Days:
		return "Last 30 days"
	case PresetThisMonth:
		return "This month"
	case PresetLastMonth:
		return "Last month"
	case PresetMinDate:
		return "Earliest date"
	case PresetMaxDate:
		return "Latest date"
	default:
		return "None"
	}
}

// Resolve computes the concrete range for a preset. Time-relative presets are
// derived from now on every call and never from a stored date. The result is
// clamped to the bounds. ok is false for PresetNone.
func Resolve(p PresetID, now time.Time, b Bounds, loc *time.Location) (r Range, ok bool) {
	today := StartOfDay(now, loc)

	switch ParsePreset(string(p)) {
	case PresetToday:
		r = Day(today, loc)
	case PresetYesterday:
		r = Day(today.AddDate(0, 0, -1), loc)
	case PresetLast3Days:
		r = lastDays(today, 3, loc)
	case PresetLast7Days:
		r = lastDays(today, 7, loc)
	case PresetLast30Days:
		r = lastDays(today, 30, loc)
	case PresetThisMonth:
		r = month(today, loc)
	case PresetLastMonth:
		r = month(time.Date(today.Year(), today.Month()-1, 1, 0, 0, 0, 0, loc), loc)
	case PresetMinDate:
		r = Day(b.Min, loc)
	case PresetMaxDate:
		r = Day(b.Max, loc)
	default:
		return Range{}, false
	}

	return r.Clamp(b, loc), true
}

// lastDays is n whole days ending today inclusive.
func lastDays(today time.Time, n int, loc *time.Location) Range {
	return Range{From: today.AddDate(0, 0, -(n - 1)), To: EndOfDay(today, loc)}
}

func month(t time.Time, loc *time.Location) Range {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)
	return Range{From: first, To: EndOfDay(last, loc)}
}
