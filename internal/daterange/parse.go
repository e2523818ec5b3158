package daterange

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-day layout used on the wire and in logs.
const DateLayout = "2006-01-02"

// TimestampLayout is used when encoding range ends into filter conditions.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// layouts are tried in order for string values. Layouts without a zone are
// interpreted in the caller's location.
var layouts = []string{
	time.RFC3339Nano,
	TimestampLayout,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	DateLayout,
	"2006/01/02",
	"01/02/2006",
}

// ParseValue converts one raw column value to a time. Supported encodings are
// time.Time, date strings in the layouts above, and numbers as epoch
// milliseconds. ok is false for anything else, including nil and NaN.
func ParseValue(v any, loc *time.Location) (t time.Time, ok bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, !x.IsZero()
	case string:
		return ParseString(x, loc)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromEpochMillis(f)
	case float64:
		return fromEpochMillis(x)
	case float32:
		return fromEpochMillis(float64(x))
	case int:
		return time.UnixMilli(int64(x)), true
	case int64:
		return time.UnixMilli(x), true
	default:
		return time.Time{}, false
	}
}

// ParseString parses a date string in any supported layout.
func ParseString(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	// Some hosts send epoch milliseconds as strings.
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}

func fromEpochMillis(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(f)), true
}

// BoundsFromValues computes the min/max of the parsable values. Malformed
// values are dropped and counted. ErrNoValidDates is returned when nothing
// parses.
func BoundsFromValues(values []any, loc *time.Location) (b Bounds, dropped int, err error) {
	found := false
	for _, v := range values {
		t, ok := ParseValue(v, loc)
		if !ok {
			dropped++
			continue
		}
		t = t.In(loc)
		if !found {
			b = Bounds{Min: t, Max: t}
			found = true
			continue
		}
		if t.Before(b.Min) {
			b.Min = t
		}
		if t.After(b.Max) {
			b.Max = t
		}
	}
	if !found {
		return Bounds{}, dropped, ErrNoValidDates
	}
	return b, dropped, nil
}
