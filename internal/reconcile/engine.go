package reconcile

import (
	"fmt"
	"time"

	"github.com/sweeney/date-slicer/internal/daterange"
	"github.com/sweeney/date-slicer/internal/filter"
)

// Engine reconciles the four sources of truth about the selected range.
// It is not safe for concurrent use; the host serializes calls.
type Engine struct {
	state   State
	timeout time.Duration
	loc     *time.Location
}

// NewEngine creates an engine. timeout bounds every mode flag; loc defines
// whole-day boundaries.
func NewEngine(timeout time.Duration, loc *time.Location) *Engine {
	if timeout <= 0 {
		timeout = DefaultFlagTimeout
	}
	if loc == nil {
		loc = time.Local
	}
	return &Engine{timeout: timeout, loc: loc}
}

// Location returns the location whole days are computed in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// State returns a copy of the engine's memory.
func (e *Engine) State() State {
	return e.state
}

// Update processes one host tick. Rules are evaluated in precedence order and
// the first match wins. At most one write is returned.
func (e *Engine) Update(t Tick) Result {
	s := &e.state
	e.expire(t.Now)

	s.Target = t.Settings.Target
	extRange, extHash := e.decodeExternal(t.Filters)
	class := s.Guard.Classify(extHash, !s.AwaitingEchoUntil.IsZero())
	if class == ClassEcho {
		e.settle()
	}
	cleared := s.Clear.Observe(extHash != "")

	first := !s.Initialized
	boundsChanged := first || !s.Bounds.Equal(t.Bounds)
	s.Initialized = true

	preset := daterange.ParsePreset(string(t.Settings.Preset))
	presetChanged := s.LastPresetSetting != preset
	restoring := t.Restore != nil || !s.RestoringUntil.IsZero()

	var res Result
	switch {
	case boundsChanged && !restoring:
		// A change seen while restoring stays pending until the restore settles.
		s.Bounds = t.Bounds
		res = e.onBoundsChanged(t, first, preset)
	case presetChanged && !restoring:
		res = e.onPresetChanged(t, preset, extHash != "")
	case cleared:
		s.Clear.Consume()
		res = e.onClearAll(t, preset, RuleClearAll)
	case t.Restore != nil:
		res = e.onRestore(t, preset)
	case class == ClassGenuine && s.LocalChangeUntil.IsZero() && s.ClearAllUntil.IsZero() && !restoring:
		res = e.onExternal(extRange, extHash)
	case extHash == "" && s.Selection == nil:
		res = e.onFallback(t)
	default:
		res = e.onSteady(t)
	}

	res.Class = class
	if s.Selection != nil {
		res.Selection = *s.Selection
		res.Selected = true
	}
	s.LastRule = res.Rule
	return res
}

// OnChange applies a range picked by the user. It has the highest effective
// priority: the selection becomes manual and is written back at once.
func (e *Engine) OnChange(r daterange.Range, now time.Time) (Result, error) {
	s := &e.state
	if !s.Initialized {
		return Result{}, ErrNotReady
	}
	if r.From.After(r.To) {
		return Result{}, fmt.Errorf("on change %v: %w", r, daterange.ErrInvalidRange)
	}
	e.expire(now)

	r = r.Normalize(e.loc)
	s.Selection = &r
	s.HasManualSelection = true
	s.LocalChangeUntil = now.Add(e.timeout)

	res := Result{Rule: RuleUserChange, Selection: r, Selected: true}
	e.write(&res, r, now)
	s.LastRule = res.Rule
	return res, nil
}

// Rule 1: another widget changed the visible dataset. Clamping an existing
// selection never writes back; only a first-tick preset seed does.
func (e *Engine) onBoundsChanged(t Tick, first bool, preset daterange.PresetID) Result {
	s := &e.state
	res := Result{Rule: RuleBoundsChanged}

	if first {
		s.LastPresetSetting = preset
		s.ActivePreset = preset
	}

	switch {
	case s.Selection != nil:
		clamped := s.Selection.Clamp(t.Bounds, e.loc)
		s.Selection = &clamped
	case first && preset != daterange.PresetNone:
		r, _ := daterange.Resolve(preset, t.Now, t.Bounds, e.loc)
		s.Selection = &r
		e.write(&res, r, t.Now)
	default:
		r := t.Bounds.Range(e.loc)
		s.Selection = &r
	}
	return res
}

// Rule 2: a configuration change re-asserts preset authority.
func (e *Engine) onPresetChanged(t Tick, preset daterange.PresetID, occupied bool) Result {
	s := &e.state
	res := Result{Rule: RulePresetChanged}

	s.HasManualSelection = false
	s.LastPresetSetting = preset
	s.ActivePreset = preset

	r, ok := daterange.Resolve(preset, t.Now, t.Bounds, e.loc)
	if !ok {
		// No preset defers to the bounds. A predicate still on the bus is
		// widened to match; an empty bus stays empty.
		full := t.Bounds.Range(e.loc)
		s.Selection = &full
		if occupied {
			e.write(&res, full, t.Now)
		}
		return res
	}
	s.Selection = &r
	e.write(&res, r, t.Now)
	return res
}

// Rule 3: the bus went from occupied to empty. The configured preset is
// re-applied and written; without one the full bounds are adopted silently.
func (e *Engine) onClearAll(t Tick, preset daterange.PresetID, rule Rule) Result {
	s := &e.state
	res := Result{Rule: rule}

	s.HasManualSelection = false
	s.ActivePreset = preset

	r, ok := daterange.Resolve(preset, t.Now, t.Bounds, e.loc)
	if !ok {
		full := t.Bounds.Range(e.loc)
		s.Selection = &full
		return res
	}
	s.Selection = &r
	s.ClearAllUntil = t.Now.Add(e.timeout)
	e.write(&res, r, t.Now)
	return res
}

// Rule 4: a snapshot is re-applied. Presets are re-derived from the current
// clock; absolute dates are a fallback for blobs without a usable preset.
func (e *Engine) onRestore(t Tick, preset daterange.PresetID) Result {
	s := &e.state
	s.LastPresetSetting = preset

	if t.Restore.IsClearSelection {
		s.Clear.Consume()
		res := e.onClearAll(t, preset, RuleRestore)
		s.RestoringUntil = t.Now.Add(e.timeout)
		return res
	}

	res := Result{Rule: RuleRestore}
	r, restored, ok := e.restoreRange(*t.Restore, t.Now, t.Bounds)
	switch {
	case ok:
		s.ActivePreset = restored
	default:
		s.ActivePreset = preset
		if r, ok = daterange.Resolve(preset, t.Now, t.Bounds, e.loc); !ok {
			r = t.Bounds.Range(e.loc)
		}
	}

	s.HasManualSelection = false
	s.Selection = &r
	s.RestoringUntil = t.Now.Add(e.timeout)
	e.write(&res, r, t.Now)
	return res
}

// Rule 5: a genuine change from elsewhere. It is sticky like a manual pick
// and never written back.
func (e *Engine) onExternal(r daterange.Range, hash string) Result {
	s := &e.state
	s.Selection = &r
	s.HasManualSelection = true
	s.Guard.RecordAdopted(hash)
	return Result{Rule: RuleExternal}
}

// Rule 6: nothing selected and nothing on the bus.
func (e *Engine) onFallback(t Tick) Result {
	s := &e.state
	res := Result{Rule: RuleFallback}

	if r, ok := daterange.Resolve(s.ActivePreset, t.Now, t.Bounds, e.loc); ok {
		s.Selection = &r
		e.write(&res, r, t.Now)
		return res
	}
	full := t.Bounds.Range(e.loc)
	s.Selection = &full
	return res
}

// Rule 7: keep the selection. A preset-driven selection follows the clock
// when no mode is in flight.
func (e *Engine) onSteady(t Tick) Result {
	s := &e.state
	res := Result{Rule: RuleSteady}

	if s.Selection == nil || s.HasManualSelection || len(s.Modes()) > 0 {
		return res
	}
	live, ok := daterange.Resolve(s.ActivePreset, t.Now, t.Bounds, e.loc)
	if !ok || live.Equal(*s.Selection) {
		return res
	}

	s.Selection = &live
	res.Rule = RulePresetRefresh
	e.write(&res, live, t.Now)
	return res
}

// write encodes the range and records its hash in the same step, so no tick
// can observe the write without the guard knowing about it.
func (e *Engine) write(res *Result, r daterange.Range, now time.Time) {
	s := &e.state
	p := filter.Encode(r, s.Target)
	hash := filter.Hash(filter.Set{p}, s.Target, e.loc)

	s.Guard.RecordWrite(hash)
	s.AwaitingEchoUntil = now.Add(e.timeout)

	res.Write = &p
	res.Hash = hash
}

func (e *Engine) decodeExternal(set filter.Set) (daterange.Range, string) {
	r, err := filter.Decode(set, e.state.Target, e.loc)
	if err != nil {
		return daterange.Range{}, ""
	}
	return r, filter.Hash(set, e.state.Target, e.loc)
}

// expire clears mode flags whose deadline has passed. It runs at the start of
// every entry point so that a tick the host never delivers cannot leave the
// engine stuck.
func (e *Engine) expire(now time.Time) {
	s := &e.state
	for _, d := range []*time.Time{&s.LocalChangeUntil, &s.RestoringUntil, &s.ClearAllUntil, &s.AwaitingEchoUntil} {
		if !d.IsZero() && !now.Before(*d) {
			*d = time.Time{}
		}
	}
}

// settle clears every mode flag once the echo of our write is observed.
func (e *Engine) settle() {
	s := &e.state
	s.LocalChangeUntil = time.Time{}
	s.RestoringUntil = time.Time{}
	s.ClearAllUntil = time.Time{}
	s.AwaitingEchoUntil = time.Time{}
}
