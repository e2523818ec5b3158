package reconcile

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/date-slicer/internal/daterange"
	"github.com/sweeney/date-slicer/internal/filter"
)

var (
	orders     = filter.Target{Table: "Orders", Column: "OrderDate"}
	yearBounds = daterange.Bounds{
		Min: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Max: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	t1 = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
)

const timeout = 300 * time.Millisecond

func newTestEngine() *Engine {
	return NewEngine(timeout, time.UTC)
}

func tick(now time.Time, preset daterange.PresetID, filters filter.Set) Tick {
	return Tick{
		Now:      now,
		Bounds:   yearBounds,
		Filters:  filters,
		Settings: Settings{Preset: preset, Target: orders},
	}
}

func resolve(t *testing.T, p daterange.PresetID, now time.Time) daterange.Range {
	t.Helper()
	r, ok := daterange.Resolve(p, now, yearBounds, time.UTC)
	if !ok {
		t.Fatalf("preset %s did not resolve", p)
	}
	return r
}

func dates(t *testing.T, from, to string) daterange.Range {
	t.Helper()
	f, _ := daterange.ParseString(from, time.UTC)
	tt, _ := daterange.ParseString(to, time.UTC)
	r, err := daterange.NewRange(f, tt, time.UTC)
	if err != nil {
		t.Fatalf("bad range %s..%s: %v", from, to, err)
	}
	return r
}

// echo returns the bus state after the host applied a result's write.
func echo(t *testing.T, res Result) filter.Set {
	t.Helper()
	if res.Write == nil {
		t.Fatalf("expected a write from rule %s", res.Rule)
	}
	return filter.Set{*res.Write}
}

func foreign(r daterange.Range) filter.Set {
	return filter.Set{filter.Encode(r, orders)}
}

func expectSelection(t *testing.T, res Result, want daterange.Range) {
	t.Helper()
	if !res.Selected {
		t.Fatalf("expected a selection, rule %s", res.Rule)
	}
	if !res.Selection.Equal(want) {
		t.Errorf("selection: got %v, want %v (rule %s)", res.Selection, want, res.Rule)
	}
}

// setupPresetEngine returns an engine that seeded last7Days on its first tick
// and saw the echo of that write.
func setupPresetEngine(t *testing.T) (*Engine, Result) {
	t.Helper()
	e := newTestEngine()
	res := e.Update(tick(t1, daterange.PresetLast7Days, nil))
	if res.Rule != RuleBoundsChanged || res.Write == nil {
		t.Fatalf("setup: expected first-tick seed with write, got %s write=%v", res.Rule, res.Write != nil)
	}
	res2 := e.Update(tick(t1.Add(100*time.Millisecond), daterange.PresetLast7Days, echo(t, res)))
	if res2.Class != ClassEcho || res2.Write != nil {
		t.Fatalf("setup: expected quiet echo, got %s write=%v", res2.Class, res2.Write != nil)
	}
	return e, res
}

func TestNewEngineDefaults(t *testing.T) {
	e := NewEngine(0, nil)
	if e.timeout != DefaultFlagTimeout {
		t.Errorf("timeout: got %v, want %v", e.timeout, DefaultFlagTimeout)
	}
	if e.Location() != time.Local {
		t.Errorf("location: got %v, want Local", e.Location())
	}
	if e.State().Initialized {
		t.Error("new engine should not be initialized")
	}
}

func TestFirstTickSeedsPresetWithWrite(t *testing.T) {
	e := newTestEngine()
	res := e.Update(tick(t1, daterange.PresetLast7Days, nil))

	if res.Rule != RuleBoundsChanged {
		t.Errorf("rule: got %s, want BOUNDS_CHANGED", res.Rule)
	}
	expectSelection(t, res, resolve(t, daterange.PresetLast7Days, t1))
	if res.Write == nil {
		t.Fatal("expected a write-back of the preset")
	}
	st := e.State()
	if st.Guard.LastWritten() != res.Hash || res.Hash == "" {
		t.Errorf("hash not recorded with the write: guard=%q result=%q", st.Guard.LastWritten(), res.Hash)
	}
	if st.LastPresetSetting != daterange.PresetLast7Days {
		t.Errorf("last preset setting: got %q", st.LastPresetSetting)
	}
}

func TestFirstTickWithoutPresetUsesBounds(t *testing.T) {
	e := newTestEngine()
	res := e.Update(tick(t1, daterange.PresetNone, nil))

	expectSelection(t, res, yearBounds.Range(time.UTC))
	if res.Write != nil {
		t.Error("bounds seed must not write back")
	}

	// Nothing changes on the next tick: no spurious preset change or clear.
	res = e.Update(tick(t1.Add(time.Second), daterange.PresetNone, nil))
	if res.Rule != RuleSteady || res.Write != nil {
		t.Errorf("second tick: got %s write=%v", res.Rule, res.Write != nil)
	}
}

func TestEchoSuppression(t *testing.T) {
	e, first := setupPresetEngine(t)
	before := e.State()

	for i := 0; i < 5; i++ {
		res := e.Update(tick(t1.Add(time.Duration(i+2)*time.Second), daterange.PresetLast7Days, echo(t, first)))
		if res.Class != ClassEcho {
			t.Errorf("tick %d: class got %s, want ECHO", i, res.Class)
		}
		if res.Write != nil {
			t.Errorf("tick %d: echo must not cause a write", i)
		}
		if res.Rule != RuleSteady {
			t.Errorf("tick %d: rule got %s, want STEADY", i, res.Rule)
		}
		expectSelection(t, res, *before.Selection)
	}

	after := e.State()
	if after.HasManualSelection != before.HasManualSelection || after.ActivePreset != before.ActivePreset {
		t.Error("echo altered local state")
	}
}

func TestClearAllRecovery(t *testing.T) {
	e, _ := setupPresetEngine(t)

	t3 := time.Date(2024, 6, 20, 9, 0, 0, 0, time.UTC)
	res := e.Update(tick(t3, daterange.PresetLast7Days, nil))

	if res.Rule != RuleClearAll {
		t.Fatalf("rule: got %s, want CLEAR_ALL", res.Rule)
	}
	expectSelection(t, res, resolve(t, daterange.PresetLast7Days, t3))
	if res.Write == nil {
		t.Error("clear-all with a preset must write back")
	}
	if e.State().HasManualSelection {
		t.Error("clear-all must clear the manual flag")
	}
}

func TestClearAllWithoutPresetAdoptsBoundsSilently(t *testing.T) {
	e := newTestEngine()
	e.Update(tick(t1, daterange.PresetNone, nil))

	ext := dates(t, "2024-03-01", "2024-03-05")
	res := e.Update(tick(t1.Add(time.Second), daterange.PresetNone, foreign(ext)))
	if res.Rule != RuleExternal {
		t.Fatalf("rule: got %s, want EXTERNAL", res.Rule)
	}

	res = e.Update(tick(t1.Add(2*time.Second), daterange.PresetNone, nil))
	if res.Rule != RuleClearAll {
		t.Fatalf("rule: got %s, want CLEAR_ALL", res.Rule)
	}
	expectSelection(t, res, yearBounds.Range(time.UTC))
	if res.Write != nil {
		t.Error("clear-all without a preset must not write back")
	}
}

func TestClearAllSurvivesBoundsChangeOnSameTick(t *testing.T) {
	e, _ := setupPresetEngine(t)

	narrowed := daterange.Bounds{Min: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Max: yearBounds.Max}
	tk := tick(t1.Add(time.Second), daterange.PresetLast7Days, nil)
	tk.Bounds = narrowed
	res := e.Update(tk)
	if res.Rule != RuleBoundsChanged {
		t.Fatalf("rule: got %s, want BOUNDS_CHANGED", res.Rule)
	}
	if res.Write != nil {
		t.Error("bounds change must not write back")
	}

	tk.Now = t1.Add(2 * time.Second)
	res = e.Update(tk)
	if res.Rule != RuleClearAll {
		t.Errorf("rule: got %s, want CLEAR_ALL on the following tick", res.Rule)
	}
	if res.Write == nil {
		t.Error("expected the preset to be written after the clear")
	}
}

func TestClearAllWinsOverForeignPredicateWhileInFlight(t *testing.T) {
	e, _ := setupPresetEngine(t)

	res := e.Update(tick(t1.Add(time.Second), daterange.PresetLast7Days, nil))
	if res.Rule != RuleClearAll {
		t.Fatalf("rule: got %s, want CLEAR_ALL", res.Rule)
	}
	presetRange := res.Selection

	ext := foreign(dates(t, "2024-03-01", "2024-03-05"))
	res = e.Update(tick(t1.Add(time.Second+100*time.Millisecond), daterange.PresetLast7Days, ext))
	if res.Class != ClassStale {
		t.Errorf("class: got %s, want STALE while clear-all is in flight", res.Class)
	}
	expectSelection(t, res, presetRange)

	// Once the flag times out, the foreign predicate is genuine.
	res = e.Update(tick(t1.Add(2*time.Second), daterange.PresetLast7Days, ext))
	if res.Rule != RuleExternal {
		t.Errorf("rule: got %s, want EXTERNAL after timeout", res.Rule)
	}
}

func TestGenuineExternalAdoptedWithoutWrite(t *testing.T) {
	e, _ := setupPresetEngine(t)

	ext := dates(t, "2024-03-01", "2024-03-05")
	res := e.Update(tick(t1.Add(time.Second), daterange.PresetLast7Days, foreign(ext)))

	if res.Rule != RuleExternal || res.Class != ClassGenuine {
		t.Fatalf("got rule %s class %s, want EXTERNAL/GENUINE", res.Rule, res.Class)
	}
	expectSelection(t, res, ext)
	if res.Write != nil {
		t.Error("adopting a foreign predicate must not write it back")
	}
	if !e.State().HasManualSelection {
		t.Error("foreign selection should be sticky")
	}

	// Same predicate on the next tick is neither re-adopted nor overridden by the preset.
	res = e.Update(tick(t1.Add(2*time.Second), daterange.PresetLast7Days, foreign(ext)))
	if res.Class != ClassKnown || res.Rule != RuleSteady || res.Write != nil {
		t.Errorf("got class %s rule %s write=%v, want KNOWN/STEADY/no write", res.Class, res.Rule, res.Write != nil)
	}
	expectSelection(t, res, ext)
}

func TestManualSelectionStickiness(t *testing.T) {
	e, _ := setupPresetEngine(t)

	manual := dates(t, "2024-03-01", "2024-03-05")
	res, err := e.OnChange(manual, t1.Add(time.Second))
	if err != nil {
		t.Fatalf("OnChange: %v", err)
	}
	if res.Rule != RuleUserChange || res.Write == nil {
		t.Fatalf("got %s write=%v, want USER_CHANGE with write", res.Rule, res.Write != nil)
	}
	bus := echo(t, res)

	later := []time.Time{
		t1.Add(time.Second + 50*time.Millisecond),
		t1.Add(5 * time.Second),
		t1.Add(48 * time.Hour),
	}
	for _, now := range later {
		res = e.Update(tick(now, daterange.PresetLast7Days, bus))
		expectSelection(t, res, manual)
		if res.Write != nil {
			t.Errorf("%v: manual selection must not be overridden by preset", now)
		}
	}
}

func TestOnChangeLocalChangeGatesExternal(t *testing.T) {
	e := newTestEngine()
	e.Update(tick(t1, daterange.PresetNone, nil))

	old := foreign(dates(t, "2024-03-01", "2024-03-05"))
	e.Update(tick(t1.Add(time.Second), daterange.PresetNone, old))

	picked := dates(t, "2024-04-01", "2024-04-03")
	if _, err := e.OnChange(picked, t1.Add(2*time.Second)); err != nil {
		t.Fatalf("OnChange: %v", err)
	}
	modes := e.State().Modes()
	if len(modes) == 0 || modes[0] != ModeLocalChange {
		t.Errorf("expected LOCAL_CHANGE_IN_FLIGHT, got %v", modes)
	}

	// Host has not applied our write yet and re-delivers the old predicate.
	res := e.Update(tick(t1.Add(2*time.Second+50*time.Millisecond), daterange.PresetNone, old))
	if res.Class != ClassStale {
		t.Errorf("class: got %s, want STALE", res.Class)
	}
	expectSelection(t, res, picked)
}

func TestModeFlagsExpireWithoutTick(t *testing.T) {
	e, _ := setupPresetEngine(t)
	res, _ := e.OnChange(dates(t, "2024-03-01", "2024-03-05"), t1.Add(time.Second))

	if len(e.State().Modes()) == 0 {
		t.Fatal("expected modes in flight after OnChange")
	}

	if res.Write == nil {
		t.Fatal("expected a write")
	}

	// The echo never arrives.
	e.expire(t1.Add(time.Second + timeout - time.Millisecond))
	if len(e.State().Modes()) == 0 {
		t.Error("modes cleared before the deadline")
	}
	e.expire(t1.Add(time.Second + timeout))
	if m := e.State().Modes(); len(m) != 0 {
		t.Errorf("expected all modes cleared, got %v", m)
	}
}

func TestEchoSettlesModes(t *testing.T) {
	e, _ := setupPresetEngine(t)
	res, _ := e.OnChange(dates(t, "2024-03-01", "2024-03-05"), t1.Add(time.Second))

	e.Update(tick(t1.Add(time.Second+10*time.Millisecond), daterange.PresetLast7Days, echo(t, res)))
	if m := e.State().Modes(); len(m) != 0 {
		t.Errorf("echo should settle all modes, got %v", m)
	}
}

func TestPresetChangeReassertsAuthority(t *testing.T) {
	e, _ := setupPresetEngine(t)
	e.OnChange(dates(t, "2024-03-01", "2024-03-05"), t1.Add(time.Second))

	now := t1.Add(2 * time.Second)
	res := e.Update(tick(now, daterange.PresetYesterday, nil))
	if res.Rule != RulePresetChanged {
		t.Fatalf("rule: got %s, want PRESET_CHANGED", res.Rule)
	}
	expectSelection(t, res, resolve(t, daterange.PresetYesterday, now))
	if res.Write == nil {
		t.Error("preset change must write back")
	}
	st := e.State()
	if st.HasManualSelection {
		t.Error("preset change must clear the manual flag")
	}
	if st.ActivePreset != daterange.PresetYesterday || st.LastPresetSetting != daterange.PresetYesterday {
		t.Errorf("preset bookkeeping: active=%q last=%q", st.ActivePreset, st.LastPresetSetting)
	}
}

func TestPresetChangedToNoneDefersToBounds(t *testing.T) {
	e, first := setupPresetEngine(t)

	now := t1.Add(time.Second)
	res := e.Update(tick(now, daterange.PresetNone, echo(t, first)))
	if res.Rule != RulePresetChanged {
		t.Fatalf("rule: got %s, want PRESET_CHANGED", res.Rule)
	}
	full := yearBounds.Range(time.UTC)
	expectSelection(t, res, full)
	if res.Write == nil {
		t.Fatal("the stale preset predicate must be widened on the bus")
	}
	got, err := filter.Decode(filter.Set{*res.Write}, orders, time.UTC)
	if err != nil || !got.Equal(full) {
		t.Errorf("written range: got %v (%v), want %v", got, err, full)
	}
	st := e.State()
	if st.HasManualSelection || st.ActivePreset != daterange.PresetNone {
		t.Errorf("bookkeeping: manual=%v active=%q", st.HasManualSelection, st.ActivePreset)
	}

	// The echo settles and later ticks hold the bounds.
	bus := echo(t, res)
	for i := 1; i <= 3; i++ {
		res = e.Update(tick(now.Add(time.Duration(i)*time.Second), daterange.PresetNone, bus))
		if res.Write != nil {
			t.Errorf("tick %d: unexpected write from %s", i, res.Rule)
		}
		expectSelection(t, res, full)
	}
}

func TestPresetChangedToNoneOnEmptyBus(t *testing.T) {
	e := newTestEngine()
	e.Update(tick(t1, daterange.PresetLast7Days, nil))

	res := e.Update(tick(t1.Add(time.Second), daterange.PresetNone, nil))
	if res.Rule != RulePresetChanged {
		t.Fatalf("rule: got %s, want PRESET_CHANGED", res.Rule)
	}
	expectSelection(t, res, yearBounds.Range(time.UTC))
	if res.Write != nil {
		t.Error("an empty bus has nothing to widen")
	}
}

func TestBoundsChangeClampsWithoutWrite(t *testing.T) {
	e := newTestEngine()
	e.Update(tick(t1, daterange.PresetNone, nil))
	e.OnChange(dates(t, "2024-01-03", "2024-01-09"), t1)

	tk := tick(t1.Add(time.Second), daterange.PresetNone, nil)
	tk.Bounds = daterange.Bounds{Min: time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC), Max: yearBounds.Max}
	res := e.Update(tk)

	if res.Rule != RuleBoundsChanged {
		t.Fatalf("rule: got %s, want BOUNDS_CHANGED", res.Rule)
	}
	expectSelection(t, res, dates(t, "2024-01-05", "2024-01-09"))
	if res.Write != nil {
		t.Error("bounds change must never write back by itself")
	}
}

func TestPresetRefreshAcrossMidnight(t *testing.T) {
	e := newTestEngine()
	late := time.Date(2024, 6, 15, 23, 59, 59, 0, time.UTC)

	res := e.Update(tick(late, daterange.PresetToday, nil))
	bus := echo(t, res)
	e.Update(tick(late.Add(100*time.Millisecond), daterange.PresetToday, bus))

	nextDay := time.Date(2024, 6, 16, 0, 0, 1, 0, time.UTC)
	res = e.Update(tick(nextDay, daterange.PresetToday, bus))
	if res.Rule != RulePresetRefresh {
		t.Fatalf("rule: got %s, want PRESET_REFRESH", res.Rule)
	}
	expectSelection(t, res, dates(t, "2024-06-16", "2024-06-16"))
	if res.Write == nil {
		t.Error("refreshed preset must be written back")
	}
}

func TestSnapshotDateFreshness(t *testing.T) {
	// Captured on the 15th by one instance...
	a := newTestEngine()
	a.Update(tick(t1, daterange.PresetYesterday, nil))
	snap := a.Capture()
	if snap.PresetID != daterange.PresetYesterday {
		t.Fatalf("capture: got %q, want yesterday", snap.PresetID)
	}
	// A host that stored the dates alongside must not resurrect them.
	snap.From, snap.To = "2024-06-14", "2024-06-14"

	// ...restored on the 20th by a recreated instance.
	t2 := time.Date(2024, 6, 20, 8, 0, 0, 0, time.UTC)
	b := newTestEngine()
	b.Update(tick(t2, daterange.PresetNone, nil))

	tk := tick(t2, daterange.PresetNone, nil)
	tk.Restore = &snap
	res := b.Update(tk)

	if res.Rule != RuleRestore {
		t.Fatalf("rule: got %s, want RESTORE", res.Rule)
	}
	expectSelection(t, res, resolve(t, daterange.PresetYesterday, t2))
	if res.Write == nil {
		t.Error("restore must write back")
	}
	st := b.State()
	if st.ActivePreset != daterange.PresetYesterday {
		t.Errorf("active preset: got %q", st.ActivePreset)
	}
	if st.HasManualSelection {
		t.Error("restore must clear the manual flag")
	}
	if st.RestoringUntil.IsZero() {
		t.Error("expected RESTORING_SNAPSHOT to be held until the echo")
	}
}

func TestRestoreFallsBackToAbsoluteDates(t *testing.T) {
	e := newTestEngine()
	e.Update(tick(t1, daterange.PresetNone, nil))

	tk := tick(t1, daterange.PresetNone, nil)
	tk.Restore = &Snapshot{PresetID: daterange.PresetNone, From: "2024-03-01", To: "2024-03-05T13:00:00Z"}
	res := e.Update(tk)

	expectSelection(t, res, dates(t, "2024-03-01", "2024-03-05"))
	if res.Write == nil {
		t.Error("restore must write back")
	}
}

func TestRestoreWithoutAnythingUsableUsesConfiguredPreset(t *testing.T) {
	e, _ := setupPresetEngine(t)
	changed, _ := e.OnChange(dates(t, "2024-03-01", "2024-03-05"), t1.Add(time.Second))

	now := t1.Add(2 * time.Second)
	tk := tick(now, daterange.PresetLast7Days, echo(t, changed))
	tk.Restore = &Snapshot{PresetID: "bogus"}
	res := e.Update(tk)

	expectSelection(t, res, resolve(t, daterange.PresetLast7Days, now))
}

func TestRestoreClearSelection(t *testing.T) {
	e, _ := setupPresetEngine(t)
	changed, _ := e.OnChange(dates(t, "2024-03-01", "2024-03-05"), t1.Add(time.Second))

	now := t1.Add(10 * time.Second)
	snap := ClearSnapshot()
	tk := tick(now, daterange.PresetLast7Days, echo(t, changed))
	tk.Restore = &snap
	res := e.Update(tk)

	if res.Rule != RuleRestore {
		t.Fatalf("rule: got %s, want RESTORE", res.Rule)
	}
	expectSelection(t, res, resolve(t, daterange.PresetLast7Days, now))
	if res.Write == nil {
		t.Error("clear restore with a preset must write back")
	}
	if e.State().HasManualSelection {
		t.Error("clear restore must clear the manual flag")
	}
}

func TestRestoreHoldsAgainstBoundsChange(t *testing.T) {
	e := newTestEngine()
	e.Update(tick(t1, daterange.PresetNone, nil))

	snap := Snapshot{PresetID: daterange.PresetLast7Days}
	tk := tick(t1, daterange.PresetNone, nil)
	tk.Restore = &snap
	restored := e.Update(tk).Selection

	next := tick(t1.Add(100*time.Millisecond), daterange.PresetNone, nil)
	next.Bounds = daterange.Bounds{Min: time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC), Max: yearBounds.Max}
	res := e.Update(next)

	if res.Rule == RuleBoundsChanged {
		t.Error("bounds change must not run while restoring")
	}
	expectSelection(t, res, restored)
	if !e.State().Bounds.Equal(yearBounds) {
		t.Error("bounds change should stay pending while restoring")
	}
}

func TestBoundsChangeDuringRestoreAppliesAfterEcho(t *testing.T) {
	e, first := setupPresetEngine(t)

	tk := tick(t1.Add(time.Second), daterange.PresetNone, echo(t, first))
	tk.Restore = &Snapshot{PresetID: daterange.PresetNone, From: "2024-03-01", To: "2024-03-05"}
	restore := e.Update(tk)
	if restore.Rule != RuleRestore {
		t.Fatalf("rule: got %s, want RESTORE", restore.Rule)
	}
	expectSelection(t, restore, dates(t, "2024-03-01", "2024-03-05"))

	narrowed := daterange.Bounds{Min: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Max: yearBounds.Max}

	// The host has not applied the restore yet; the old predicate is stale.
	held := tick(t1.Add(1100*time.Millisecond), daterange.PresetNone, echo(t, first))
	held.Bounds = narrowed
	res := e.Update(held)
	if res.Rule == RuleBoundsChanged {
		t.Fatal("bounds change must wait for the restore to settle")
	}

	settled := tick(t1.Add(1200*time.Millisecond), daterange.PresetNone, echo(t, restore))
	settled.Bounds = narrowed
	res = e.Update(settled)
	if res.Rule != RuleBoundsChanged {
		t.Fatalf("rule: got %s, want BOUNDS_CHANGED once the restore settled", res.Rule)
	}
	want := dates(t, "2024-06-01", "2024-06-01")
	expectSelection(t, res, want)
	if res.Write != nil {
		t.Error("clamping must not write back")
	}

	for i := 1; i <= 3; i++ {
		later := tick(t1.Add(time.Duration(i+1)*time.Second), daterange.PresetNone, echo(t, restore))
		later.Bounds = narrowed
		res = e.Update(later)
		if res.Rule == RuleBoundsChanged {
			t.Errorf("tick %d: bounds change applied twice", i)
		}
		expectSelection(t, res, want)
	}
}

func TestOnChangeErrors(t *testing.T) {
	e := newTestEngine()
	if _, err := e.OnChange(dates(t, "2024-03-01", "2024-03-05"), t1); !errors.Is(err, ErrNotReady) {
		t.Errorf("before first tick: got %v, want ErrNotReady", err)
	}

	e.Update(tick(t1, daterange.PresetNone, nil))
	inverted := daterange.Range{From: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	if _, err := e.OnChange(inverted, t1); !errors.Is(err, daterange.ErrInvalidRange) {
		t.Errorf("inverted range: got %v, want ErrInvalidRange", err)
	}
}

func TestUndecodablePredicateIsAbsent(t *testing.T) {
	e := newTestEngine()
	e.Update(tick(t1, daterange.PresetNone, nil))

	broken := filter.Set{{Target: orders, Conditions: []filter.Condition{{Operator: filter.OpGreaterThanOrEqual, Value: "2024-03-01"}}}}
	res := e.Update(tick(t1.Add(time.Second), daterange.PresetNone, broken))
	if res.Class != ClassAbsent {
		t.Errorf("class: got %s, want ABSENT", res.Class)
	}
	expectSelection(t, res, yearBounds.Range(time.UTC))
}

func TestCaptureOmitsAbsoluteDates(t *testing.T) {
	e, _ := setupPresetEngine(t)
	e.OnChange(dates(t, "2024-03-01", "2024-03-05"), t1.Add(time.Second))

	data, err := e.Capture().Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(data)
	if got != `{"presetId":"last7Days","isClearSelection":false}` {
		t.Errorf("unexpected capture: %s", got)
	}
	if strings.Contains(got, "2024") {
		t.Error("capture must not carry absolute dates")
	}

	parsed, err := ParseSnapshot(data)
	if err != nil || parsed.PresetID != daterange.PresetLast7Days {
		t.Errorf("ParseSnapshot: %+v, %v", parsed, err)
	}
	if _, err := ParseSnapshot([]byte("{")); !errors.Is(err, ErrInvalidSnapshot) {
		t.Errorf("expected ErrInvalidSnapshot, got %v", err)
	}
}
