package reconcile

// ClearDetector infers a dashboard-wide clear from bus occupancy: a predicate
// present on one tick and absent on the next. The bus has no event for it.
//
// A detected clear stays pending until consumed, or until a predicate shows up
// again, so that a tick taken by a higher-priority rule does not lose it.
type ClearDetector struct {
	seen       bool
	wasPresent bool
	pending    bool
}

// Observe records this tick's occupancy and reports whether a clear is pending.
// The first observation only establishes a baseline.
func (d *ClearDetector) Observe(present bool) bool {
	if !d.seen {
		d.seen = true
		d.wasPresent = present
		return false
	}

	if d.wasPresent && !present {
		d.pending = true
	}
	if present {
		d.pending = false
	}
	d.wasPresent = present
	return d.pending
}

// Consume acknowledges a pending clear.
func (d *ClearDetector) Consume() {
	d.pending = false
}

// WasPresent reports the occupancy seen on the last tick.
func (d *ClearDetector) WasPresent() bool {
	return d.wasPresent
}
