package reconcile

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		external    string
		lastWritten string
		inFlight    bool
		want        Classification
	}{
		{"nothing on bus", "", "h1", false, ClassAbsent},
		{"nothing written yet", "h1", "", false, ClassGenuine},
		{"nothing written yet, in flight", "h1", "", true, ClassStale},
		{"own echo", "h1", "h1", false, ClassEcho},
		{"own echo while in flight", "h1", "h1", true, ClassEcho},
		{"foreign change", "h2", "h1", false, ClassGenuine},
		{"foreign change while in flight", "h2", "h1", true, ClassStale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.external, tt.lastWritten, tt.inFlight); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGuardRemembersAdoptedPredicate(t *testing.T) {
	var g Guard
	g.RecordWrite("ours")

	if got := g.Classify("theirs", false); got != ClassGenuine {
		t.Fatalf("first sighting: got %s, want GENUINE", got)
	}
	g.RecordAdopted("theirs")

	if got := g.Classify("theirs", false); got != ClassKnown {
		t.Errorf("second sighting: got %s, want KNOWN", got)
	}

	// After we write again, the same foreign predicate is news again.
	g.RecordWrite("ours-2")
	if got := g.Classify("theirs", false); got != ClassGenuine {
		t.Errorf("after own write: got %s, want GENUINE", got)
	}
	if g.LastWritten() != "ours-2" {
		t.Errorf("LastWritten: got %q", g.LastWritten())
	}
}

func TestClearDetector(t *testing.T) {
	var d ClearDetector

	if d.Observe(true) {
		t.Error("baseline observation must not report a clear")
	}
	if d.Observe(true) {
		t.Error("present -> present is not a clear")
	}
	if !d.Observe(false) {
		t.Fatal("present -> absent must report a clear")
	}
	// Stays latched until consumed.
	if !d.Observe(false) {
		t.Error("clear should stay pending until consumed")
	}
	d.Consume()
	if d.Observe(false) {
		t.Error("consumed clear reported again")
	}
}

func TestClearDetectorFirstTickAbsent(t *testing.T) {
	var d ClearDetector
	if d.Observe(false) {
		t.Error("absent on first tick is not a clear")
	}
	if d.Observe(false) {
		t.Error("absent -> absent is not a clear")
	}
}

func TestClearDetectorReappearanceCancelsPending(t *testing.T) {
	var d ClearDetector
	d.Observe(true)
	d.Observe(false)
	if d.Observe(true) {
		t.Error("a predicate reappearing cancels the pending clear")
	}
	if !d.WasPresent() {
		t.Error("expected occupancy to be tracked")
	}
}
