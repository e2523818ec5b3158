// Package widget hosts one reconciliation engine. It turns raw host updates
// into engine ticks, performs the engine's write on the filter bus and hands
// the resulting selection to the view.
//
// All entry points are serialized: one tick runs to completion before the
// next begins, so the engine never observes concurrent calls.
package widget

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sweeney/date-slicer/internal/daterange"
	"github.com/sweeney/date-slicer/internal/filter"
	"github.com/sweeney/date-slicer/internal/reconcile"
)

// MessageNoValidDates is shown when the bound column holds no usable dates.
const MessageNoValidDates = "no valid dates"

// Bus is the write side of the dashboard filter bus.
type Bus interface {
	// ApplyPredicate writes p into the dashboard's filter state.
	// Returns error if the write could not be issued (should not crash the host).
	ApplyPredicate(ctx context.Context, p filter.Predicate, strategy filter.MergeStrategy) error
}

// Update is one delivery from the host: the visible column values, the merged
// filter state of the bound column and the declarative settings.
type Update struct {
	Values   []any
	Filters  filter.Set
	Settings reconcile.Settings
}

// Counts tallies what the widget has done since it started.
type Counts struct {
	Ticks       int
	Rejected    int // updates without a single valid date
	Writes      int
	WriteErrors int
	Echoes      int
	ClearAlls   int
	Restores    int
	Adoptions   int
	UserChanges int
}

// Status is a point-in-time view of the widget.
type Status struct {
	Ready  bool
	State  reconcile.State
	Counts Counts
}

// Config holds the optional collaborators of a widget.
type Config struct {
	FlagTimeout time.Duration
	Location    *time.Location
	Logger      *slog.Logger
	Now         func() time.Time
}

// Widget serializes host calls into a reconcile.Engine.
type Widget struct {
	mu     sync.Mutex
	engine *reconcile.Engine
	bus    Bus
	view   View
	logger *slog.Logger
	now    func() time.Time

	// last is the most recent tick built from a valid update. Restores and
	// revalidations are replayed against it.
	last   *reconcile.Tick
	counts Counts
}

// New creates a widget writing to bus and rendering into view.
func New(bus Bus, view View, cfg Config) *Widget {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if view == nil {
		view = NopView{}
	}
	return &Widget{
		engine: reconcile.NewEngine(cfg.FlagTimeout, cfg.Location),
		bus:    bus,
		view:   view,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
}

// Update runs one tick. Malformed values are dropped; when nothing parses the
// engine does not run, the view is told there is nothing to show and an error
// wrapping daterange.ErrNoValidDates is returned.
func (w *Widget) Update(ctx context.Context, u Update) (reconcile.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	bounds, dropped, err := daterange.BoundsFromValues(u.Values, w.engine.Location())
	if dropped > 0 {
		w.logger.Debug("widget: dropped malformed values", "dropped", dropped, "total", len(u.Values))
	}
	if err != nil {
		w.counts.Rejected++
		w.logger.Warn("widget: update rejected", "err", err)
		w.view.Render(Presentation{Message: MessageNoValidDates})
		return reconcile.Result{}, fmt.Errorf("update: %w", err)
	}

	t := reconcile.Tick{
		Now:      w.now(),
		Bounds:   bounds,
		Filters:  u.Filters,
		Settings: u.Settings,
	}
	return w.run(ctx, t), nil
}

// OnChange applies a range picked in the view.
func (w *Widget) OnChange(ctx context.Context, r daterange.Range) (reconcile.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	res, err := w.engine.OnChange(r, w.now())
	if err != nil {
		return reconcile.Result{}, err
	}
	w.counts.UserChanges++
	w.commit(ctx, res)
	return res, nil
}

// CaptureState returns the blob the host persists for a bookmark.
func (w *Widget) CaptureState() reconcile.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.engine.Capture()
}

// RestoreState re-applies a captured blob against the last known data and the
// current clock.
func (w *Widget) RestoreState(ctx context.Context, snap reconcile.Snapshot) (reconcile.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.last == nil {
		return reconcile.Result{}, reconcile.ErrNotReady
	}
	t := *w.last
	t.Now = w.now()
	t.Restore = &snap
	return w.run(ctx, t), nil
}

// Revalidate replays the last tick against the current clock so that presets
// roll over and expired modes are noticed without a host update. It reports
// false when there is nothing to replay yet.
func (w *Widget) Revalidate(ctx context.Context) (reconcile.Result, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.last == nil {
		return reconcile.Result{}, false
	}
	t := *w.last
	t.Now = w.now()
	return w.run(ctx, t), true
}

// Status returns a copy of the widget's state.
func (w *Widget) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.engine.State()
	return Status{
		Ready:  st.Initialized,
		State:  st,
		Counts: w.counts,
	}
}

func (w *Widget) run(ctx context.Context, t reconcile.Tick) reconcile.Result {
	res := w.engine.Update(t)

	w.counts.Ticks++
	if res.Class == reconcile.ClassEcho {
		w.counts.Echoes++
	}
	switch res.Rule {
	case reconcile.RuleClearAll:
		w.counts.ClearAlls++
	case reconcile.RuleRestore:
		w.counts.Restores++
	case reconcile.RuleExternal:
		w.counts.Adoptions++
	}

	if t.Restore != nil && res.Rule != reconcile.RuleRestore {
		w.logger.Warn("widget: restore superseded", "rule", res.Rule, "preset", t.Restore.PresetID)
	}
	t.Restore = nil
	w.last = &t
	w.commit(ctx, res)
	return res
}

// commit performs the result's write, if any, and renders the selection.
func (w *Widget) commit(ctx context.Context, res reconcile.Result) {
	if res.Write != nil {
		if err := w.bus.ApplyPredicate(ctx, *res.Write, filter.Merge); err != nil {
			w.counts.WriteErrors++
			w.logger.Warn("widget: write failed", "target", res.Write.Target.String(), "err", err)
		} else {
			w.counts.Writes++
			// The bus now holds our predicate; replays must see it as the echo.
			if w.last != nil {
				w.last.Filters = w.last.Filters.Apply(*res.Write, filter.Merge)
			}
		}
	}

	w.logger.Debug("widget: reconciled",
		"rule", res.Rule,
		"class", res.Class,
		"selection", res.Selection.String(),
		"write", res.Write != nil,
	)

	st := w.engine.State()
	w.view.Render(Presentation{
		Selection: res.Selection,
		Selected:  res.Selected,
		Bounds:    st.Bounds,
		Preset:    st.ActivePreset,
		Manual:    st.HasManualSelection,
	})
}
