package reconcile

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/date-slicer/internal/daterange"
)

// Snapshot is the state blob handed to the host for bookmarks. Captures hold
// the preset only; From and To exist for blobs written by older hosts and are
// honoured only when no usable preset is present.
type Snapshot struct {
	PresetID         daterange.PresetID `json:"presetId"`
	IsClearSelection bool               `json:"isClearSelection"`
	From             string             `json:"from,omitempty"`
	To               string             `json:"to,omitempty"`
}

// ClearSnapshot is the distinguished blob meaning "restore as a clear-all".
func ClearSnapshot() Snapshot {
	return Snapshot{PresetID: daterange.PresetNone, IsClearSelection: true}
}

// ParseSnapshot decodes a snapshot blob.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return s, nil
}

// Marshal encodes the snapshot blob.
func (s Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// Capture returns the state to persist: the active preset and nothing else.
func (e *Engine) Capture() Snapshot {
	p := daterange.ParsePreset(string(e.state.ActivePreset))
	return Snapshot{PresetID: p}
}

// restoreRange re-derives the range for a snapshot against the current clock.
// A usable preset always wins over any absolute dates carried alongside it.
func (e *Engine) restoreRange(s Snapshot, now time.Time, b daterange.Bounds) (r daterange.Range, preset daterange.PresetID, ok bool) {
	if p := daterange.ParsePreset(string(s.PresetID)); p != daterange.PresetNone {
		r, ok = daterange.Resolve(p, now, b, e.loc)
		return r, p, ok
	}

	from, okFrom := daterange.ParseString(s.From, e.loc)
	to, okTo := daterange.ParseString(s.To, e.loc)
	if !okFrom || !okTo {
		return daterange.Range{}, daterange.PresetNone, false
	}
	r, err := daterange.NewRange(from, to, e.loc)
	if err != nil {
		return daterange.Range{}, daterange.PresetNone, false
	}
	return r, daterange.PresetNone, true
}
