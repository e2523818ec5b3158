// Package mqtt carries the dashboard filter bus over an MQTT broker, with an
// abstraction for testing.
package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sweeney/date-slicer/internal/filter"
	"github.com/sweeney/date-slicer/internal/reconcile"
)

// TopicRoot prefixes every topic of every dashboard.
const TopicRoot = "dashboards"

// Topics names the topics one widget reads and writes.
type Topics struct {
	Dashboard string
	Widget    string
	Target    filter.Target
}

func (t Topics) dashboard() string { return TopicRoot + "/" + t.Dashboard }
func (t Topics) widget() string    { return t.dashboard() + "/widgets/" + t.Widget }

// Data carries the raw values of the bound column in the visible dataset.
func (t Topics) Data() string {
	return t.dashboard() + "/data/" + t.Target.Table + "/" + t.Target.Column
}

// Filters carries the merged predicates applied to the bound column.
func (t Topics) Filters() string {
	return t.dashboard() + "/filters/" + t.Target.Table + "/" + t.Target.Column
}

// Config carries the widget's declarative settings.
func (t Topics) Config() string { return t.widget() + "/config" }

// Restore carries snapshot blobs the host wants re-applied.
func (t Topics) Restore() string { return t.widget() + "/restore" }

// State carries the last captured snapshot.
func (t Topics) State() string { return t.widget() + "/state" }

// System carries lifecycle events of the daemon.
func (t Topics) System() string { return t.widget() + "/system" }

// WithTarget returns the topics for another bound column.
func (t Topics) WithTarget(target filter.Target) Topics {
	t.Target = target
	return t
}

// subscriptions lists the topics a widget listens on, all at QoS 1.
func (t Topics) subscriptions() map[string]byte {
	return map[string]byte{
		t.Data():    1,
		t.Filters(): 1,
		t.Config():  1,
		t.Restore(): 1,
	}
}

// Bus is the filter bus as seen by the daemon.
type Bus interface {
	// ApplyPredicate writes p into the filter state of its column.
	// Returns error if publishing fails (should not crash the process).
	ApplyPredicate(ctx context.Context, p filter.Predicate, strategy filter.MergeStrategy) error

	// PublishState sends the captured snapshot, retained.
	PublishState(snap reconcile.Snapshot) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Rebind moves the data and filter subscriptions to another column.
	Rebind(target filter.Target) error

	// Events delivers parsed host messages.
	Events() <-chan Event

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "OFFLINE"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// FormatFilters creates the payload of a filters topic. An empty set is
// published as an empty array.
func FormatFilters(set filter.Set) ([]byte, error) {
	if set == nil {
		set = filter.Set{}
	}
	return json.Marshal(set)
}
