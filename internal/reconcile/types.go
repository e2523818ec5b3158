// Package reconcile contains the reconciliation state machine of the date
// slicer. On every host tick it decides which source of truth wins (user,
// preset, filter bus or snapshot), computes the resulting range and whether to
// write it back to the filter bus.
// This package has NO external dependencies (no MQTT, HTTP, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package reconcile

import (
	"errors"
	"time"

	"github.com/sweeney/date-slicer/internal/daterange"
	"github.com/sweeney/date-slicer/internal/filter"
)

var (
	// ErrNotReady is returned when user input arrives before the first tick.
	ErrNotReady = errors.New("engine not ready: no tick with data yet")

	// ErrInvalidSnapshot is returned when a snapshot blob cannot be parsed.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// DefaultFlagTimeout bounds how long a mode flag may wait for its echo.
const DefaultFlagTimeout = 300 * time.Millisecond

// Rule names the transition taken by a tick.
type Rule string

const (
	RuleBoundsChanged Rule = "BOUNDS_CHANGED"
	RulePresetChanged Rule = "PRESET_CHANGED"
	RuleClearAll      Rule = "CLEAR_ALL"
	RuleRestore       Rule = "RESTORE"
	RuleExternal      Rule = "EXTERNAL"
	RuleFallback      Rule = "FALLBACK"
	RulePresetRefresh Rule = "PRESET_REFRESH"
	RuleSteady        Rule = "STEADY"
	RuleUserChange    Rule = "USER_CHANGE"
)

// Mode is a transient flag gating which rules may run.
type Mode string

const (
	ModeLocalChange  Mode = "LOCAL_CHANGE_IN_FLIGHT"
	ModeRestoring    Mode = "RESTORING_SNAPSHOT"
	ModeClearAll     Mode = "CLEAR_ALL_IN_FLIGHT"
	ModeAwaitingEcho Mode = "AWAITING_ECHO"
)

// Settings is the declarative widget configuration supplied by the host.
type Settings struct {
	Preset daterange.PresetID
	Target filter.Target
}

// Tick is one host-driven update.
type Tick struct {
	Now      time.Time
	Bounds   daterange.Bounds
	Filters  filter.Set // merged bus state for the bound column; nil when absent
	Settings Settings
	Restore  *Snapshot // set when the host re-applies a captured state
}

// Result is the outcome of a tick or a user change.
type Result struct {
	Rule      Rule
	Class     Classification
	Selection daterange.Range
	Selected  bool              // false only before any selection exists
	Write     *filter.Predicate // non-nil when the range must be written back
	Hash      string            // hash recorded for Write
}

// State is the instance's memory across ticks. It is discarded with the
// instance; nothing in it is durable truth.
type State struct {
	Selection          *daterange.Range
	HasManualSelection bool
	ActivePreset       daterange.PresetID
	LastPresetSetting  daterange.PresetID // empty until the first tick
	Bounds             daterange.Bounds
	Target             filter.Target
	Initialized        bool // false until the first tick with data

	// Mode deadlines. Zero means the mode is not active.
	LocalChangeUntil  time.Time
	RestoringUntil    time.Time
	ClearAllUntil     time.Time
	AwaitingEchoUntil time.Time

	Guard Guard
	Clear ClearDetector

	LastRule Rule
}

// Modes lists the active mode flags.
func (s State) Modes() []Mode {
	var modes []Mode
	if !s.LocalChangeUntil.IsZero() {
		modes = append(modes, ModeLocalChange)
	}
	if !s.RestoringUntil.IsZero() {
		modes = append(modes, ModeRestoring)
	}
	if !s.ClearAllUntil.IsZero() {
		modes = append(modes, ModeClearAll)
	}
	if !s.AwaitingEchoUntil.IsZero() {
		modes = append(modes, ModeAwaitingEcho)
	}
	return modes
}
