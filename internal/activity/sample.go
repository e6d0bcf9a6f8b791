// Package activity defines activity samples and the rolling window
// Wisp summarizes to decide how the user is spending their time.
package activity

import (
	"sync"
	"time"
)

// Sample is a point-in-time snapshot of the user's foreground activity.
// Samples are produced externally at a fixed cadence; the pipeline only
// reads them.
type Sample struct {
	Timestamp     time.Time
	Process       string
	WindowTitle   string
	IdleSeconds   int
	ScreenshotRef string
}

// Category buckets a sample by what kind of program was in front.
type Category string

const (
	CategoryCode     Category = "code"
	CategoryBrowser  Category = "browser"
	CategoryTerminal Category = "terminal"
	CategoryOther    Category = "other"
)

// Window is a bounded rolling window of recent samples.
type Window struct {
	mu      sync.RWMutex
	samples []Sample
	max     int
}

// NewWindow creates a rolling window holding at most max samples.
func NewWindow(max int) *Window {
	if max <= 0 {
		max = 12
	}
	return &Window{
		samples: make([]Sample, 0, max),
		max:     max,
	}
}

// Add appends a sample, dropping the oldest once the window is full.
func (w *Window) Add(s Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = append(w.samples, s)
	if len(w.samples) > w.max {
		w.samples = w.samples[len(w.samples)-w.max:]
	}
}

// Recent returns a copy of the current window contents, oldest first.
func (w *Window) Recent() []Sample {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Sample, len(w.samples))
	copy(out, w.samples)
	return out
}

// Len returns the number of samples currently held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.samples)
}
