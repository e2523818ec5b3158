package mqtt

import (
	"context"
	"sync"

	"github.com/sweeney/date-slicer/internal/filter"
	"github.com/sweeney/date-slicer/internal/reconcile"
)

// FakeBus is an in-memory filter bus for tests. With Echo set, every applied
// predicate comes back as a filters event the way a broker delivers the
// retained set to its subscribers.
type FakeBus struct {
	mu sync.Mutex

	// Applied contains every predicate written, in order.
	Applied []filter.Predicate

	// States contains every snapshot published.
	States []reconcile.Snapshot

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// ApplyError, if set, will be returned by ApplyPredicate.
	ApplyError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Echo makes applied predicates come back as filters events.
	Echo bool

	// Target is the column the bus is bound to.
	Target filter.Target

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	set    filter.Set
	events chan Event
}

// NewFakeBus creates a FakeBus bound to target.
func NewFakeBus(target filter.Target) *FakeBus {
	return &FakeBus{
		Target: target,
		events: make(chan Event, eventQueueSize),
	}
}

// ApplyPredicate merges p into the bus state.
func (f *FakeBus) ApplyPredicate(_ context.Context, p filter.Predicate, strategy filter.MergeStrategy) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ApplyError != nil {
		return f.ApplyError
	}
	f.Applied = append(f.Applied, p)
	f.set = f.set.Apply(p, strategy)
	if f.Echo {
		f.emit(Event{Kind: EventFilters, Filters: f.set})
	}
	return nil
}

// SetFilters replaces the bus state as another widget or a clear-all would,
// and delivers it as a filters event.
func (f *FakeBus) SetFilters(set filter.Set) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set = set
	f.emit(Event{Kind: EventFilters, Filters: set})
}

// Filters returns the current bus state.
func (f *FakeBus) Filters() filter.Set {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

// Inject delivers a host event.
func (f *FakeBus) Inject(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emit(ev)
}

func (f *FakeBus) emit(ev Event) {
	select {
	case f.events <- ev:
	default:
		// Full queue: the oldest pending event is superseded.
		select {
		case <-f.events:
		default:
		}
		f.events <- ev
	}
}

// PublishState records the snapshot.
func (f *FakeBus) PublishState(snap reconcile.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.States = append(f.States, snap)
	return nil
}

// PublishSystem records the system event.
func (f *FakeBus) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Rebind changes the bound column.
func (f *FakeBus) Rebind(target filter.Target) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Target = target
	return nil
}

// Events delivers injected and echoed events.
func (f *FakeBus) Events() <-chan Event {
	return f.events
}

// Close marks the bus as closed.
func (f *FakeBus) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake bus is "connected".
func (f *FakeBus) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Snapshot returns copies of the recorded writes and events.
func (f *FakeBus) Snapshot() (applied []filter.Predicate, states []reconcile.Snapshot, system []SystemEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]filter.Predicate(nil), f.Applied...),
		append([]reconcile.Snapshot(nil), f.States...),
		append([]SystemEvent(nil), f.SystemEvents...)
}

// Reset clears recorded events.
func (f *FakeBus) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Applied = nil
	f.States = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.ApplyError = nil
	f.PublishSystemError = nil
	f.Connected = false
	f.set = nil
}
