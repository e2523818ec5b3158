// Package status provides a thread-safe status tracker for the date-slicer daemon.
// It is read by HTTP handlers and published in lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/date-slicer/internal/widget"
)

// Config contains daemon configuration for display.
type Config struct {
	Broker        string
	Dashboard     string
	Widget        string
	Table         string
	Column        string
	Preset        string
	HTTPAddr      string
	DBPath        string
	FlagTimeoutMs int64
	RevalidateMs  int64
	Location      string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Widget        widget.Status
	LastError     string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the widget's state.
// Called from runLoop after every tick.
func (t *Tracker) Update(ws widget.Status) {
	t.mu.Lock()
	t.snap.Widget = ws
	t.mu.Unlock()
}

// SetError records the last operational error; empty clears it.
func (t *Tracker) SetError(msg string) {
	t.mu.Lock()
	t.snap.LastError = msg
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetTarget records a column rebinding received from the host.
func (t *Tracker) SetTarget(table, column string) {
	t.mu.Lock()
	t.snap.Config.Table = table
	t.snap.Config.Column = column
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
