package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/date-slicer/internal/daterange"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Ready         bool           `json:"ready"`
	Selection     *SelectionJSON `json:"selection,omitempty"`
	Bounds        *SelectionJSON `json:"bounds,omitempty"`
	Preset        string         `json:"preset"`
	Manual        bool           `json:"manual"`
	Modes         []string       `json:"modes"`
	LastRule      string         `json:"last_rule,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"counts"`
	Config        ConfigJSON     `json:"config"`
}

// SelectionJSON is a whole-day range as calendar dates.
type SelectionJSON struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of widget counts.
type CountsJSON struct {
	Ticks       int `json:"ticks"`
	Rejected    int `json:"rejected"`
	Writes      int `json:"writes"`
	WriteErrors int `json:"write_errors"`
	Echoes      int `json:"echoes"`
	ClearAlls   int `json:"clear_alls"`
	Restores    int `json:"restores"`
	Adoptions   int `json:"adoptions"`
	UserChanges int `json:"user_changes"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Broker        string `json:"broker"`
	Dashboard     string `json:"dashboard"`
	Widget        string `json:"widget"`
	Table         string `json:"table"`
	Column        string `json:"column"`
	Preset        string `json:"preset"`
	HTTPAddr      string `json:"http_addr"`
	DBPath        string `json:"db_path,omitempty"`
	FlagTimeoutMs int64  `json:"flag_timeout_ms"`
	RevalidateMs  int64  `json:"revalidate_ms"`
	Location      string `json:"location"`
}

func selectionJSON(r daterange.Range) *SelectionJSON {
	return &SelectionJSON{
		From: r.From.Format(daterange.DateLayout),
		To:   r.To.Format(daterange.DateLayout),
	}
}

func buildInner(snap Snapshot) StatusInner {
	st := snap.Widget.State
	c := snap.Widget.Counts

	preset := string(st.ActivePreset)
	if preset == "" {
		preset = string(daterange.PresetNone)
	}
	modes := []string{}
	for _, m := range st.Modes() {
		modes = append(modes, string(m))
	}

	inner := StatusInner{
		Ready:         snap.Widget.Ready,
		Preset:        preset,
		Manual:        st.HasManualSelection,
		Modes:         modes,
		LastRule:      string(st.LastRule),
		LastError:     snap.LastError,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Ticks:       c.Ticks,
			Rejected:    c.Rejected,
			Writes:      c.Writes,
			WriteErrors: c.WriteErrors,
			Echoes:      c.Echoes,
			ClearAlls:   c.ClearAlls,
			Restores:    c.Restores,
			Adoptions:   c.Adoptions,
			UserChanges: c.UserChanges,
		},
		Config: ConfigJSON{
			Broker:        snap.Config.Broker,
			Dashboard:     snap.Config.Dashboard,
			Widget:        snap.Config.Widget,
			Table:         snap.Config.Table,
			Column:        snap.Config.Column,
			Preset:        snap.Config.Preset,
			HTTPAddr:      snap.Config.HTTPAddr,
			DBPath:        snap.Config.DBPath,
			FlagTimeoutMs: snap.Config.FlagTimeoutMs,
			RevalidateMs:  snap.Config.RevalidateMs,
			Location:      snap.Config.Location,
		},
	}
	if st.Selection != nil {
		inner.Selection = selectionJSON(*st.Selection)
	}
	if !st.Bounds.IsZero() {
		inner.Bounds = selectionJSON(daterange.Range{From: st.Bounds.Min, To: st.Bounds.Max})
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
