package widget

import (
	"log/slog"
	"sync"

	"github.com/sweeney/date-slicer/internal/daterange"
)

// Presentation is what the view displays after a tick.
type Presentation struct {
	Selection daterange.Range
	Selected  bool
	Bounds    daterange.Bounds
	Preset    daterange.PresetID
	Manual    bool
	Message   string // set when there is nothing to show
}

// View receives the selection to display.
type View interface {
	Render(p Presentation)
}

// NopView discards everything.
type NopView struct{}

// Render does nothing.
func (NopView) Render(Presentation) {}

// LogView logs every frame. The daemon uses it when no front end is attached.
type LogView struct {
	Logger *slog.Logger
}

// Render logs the frame at info level.
func (v LogView) Render(p Presentation) {
	if p.Message != "" {
		v.Logger.Info("view: "+p.Message)
		return
	}
	v.Logger.Info("view: selection",
		"range", p.Selection.String(),
		"preset", string(p.Preset),
		"manual", p.Manual,
	)
}

// RecordingView keeps every frame for test assertions.
type RecordingView struct {
	mu     sync.Mutex
	frames []Presentation
}

// Render records the frame.
func (v *RecordingView) Render(p Presentation) {
	v.mu.Lock()
	v.frames = append(v.frames, p)
	v.mu.Unlock()
}

// Frames returns a copy of all recorded frames.
func (v *RecordingView) Frames() []Presentation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Presentation(nil), v.frames...)
}

// Last returns the most recent frame.
func (v *RecordingView) Last() (Presentation, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.frames) == 0 {
		return Presentation{}, false
	}
	return v.frames[len(v.frames)-1], true
}
