// Package emotion derives Wisp's current mood from recent activity and
// gates how often the companion may speak unprompted.
package emotion

import (
	"strings"
	"sync"
	"time"

	"github.com/normanking/wisp/internal/activity"
)

// Tag is a discrete mood label driving prompt tone and UI accent.
type Tag string

const (
	TagIdle       Tag = "idle"
	TagFocused    Tag = "focused"
	TagFrustrated Tag = "frustrated"
	TagHappy      Tag = "happy"
	TagSleepy     Tag = "sleepy"
	TagBored      Tag = "bored"
	TagConcerned  Tag = "concerned"
	TagSad        Tag = "sad"
	TagAngry      Tag = "angry"
	TagSurprised  Tag = "surprised"
	TagPlayful    Tag = "playful"
	TagThinking   Tag = "thinking"
	TagNeutral    Tag = "neutral"
)

// ParseTag maps a model-reported mood string to a known tag, defaulting
// to neutral for anything unrecognized.
func ParseTag(s string) Tag {
	switch Tag(strings.ToLower(strings.TrimSpace(s))) {
	case TagIdle, TagFocused, TagFrustrated, TagHappy, TagSleepy,
		TagBored, TagConcerned, TagSad, TagAngry, TagSurprised,
		TagPlayful, TagThinking, TagNeutral:
		return Tag(strings.ToLower(strings.TrimSpace(s)))
	default:
		return TagNeutral
	}
}

// MachineConfig tunes the state machine thresholds.
type MachineConfig struct {
	LateNightStartHour int           // inclusive, default 1
	LateNightEndHour   int           // inclusive, default 4
	BoredIdle          time.Duration // default 15m
	FocusTarget        time.Duration // default 60m
	FocusLowerBound    time.Duration // default 10m
	SampleInterval     time.Duration // assumed spacing of samples, default 5m
	FocusKeywords      []string      // process/title substrings meaning "working"
}

// DefaultMachineConfig returns the stock thresholds.
func DefaultMachineConfig() MachineConfig {
	return MachineConfig{
		LateNightStartHour: 1,
		LateNightEndHour:   4,
		BoredIdle:          15 * time.Minute,
		FocusTarget:        60 * time.Minute,
		FocusLowerBound:    10 * time.Minute,
		SampleInterval:     5 * time.Minute,
		FocusKeywords: []string{
			"code", "vim", "nvim", "emacs", "intellij", "goland",
			"pycharm", "sublime", "zed", "xcode", "studio",
		},
	}
}

// Machine owns the single current emotion tag for a pipeline instance.
// Update applies a fixed priority ladder; the first matching rule wins.
type Machine struct {
	mu      sync.RWMutex
	cfg     MachineConfig
	current Tag
	now     func() time.Time
}

// NewMachine creates a state machine starting at neutral.
func NewMachine(cfg MachineConfig) *Machine {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 5 * time.Minute
	}
	return &Machine{
		cfg:     cfg,
		current: TagNeutral,
		now:     time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (m *Machine) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Current returns the current emotion tag.
func (m *Machine) Current() Tag {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Set overrides the current tag, e.g. from a model's self-reported mood.
func (m *Machine) Set(tag Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = tag
}

// Update recomputes the current tag from the recent sample window, the
// live idle reading, and the recent error count. Deterministic given its
// inputs and the current local hour.
func (m *Machine) Update(samples []activity.Sample, idleSeconds int, errorCount int) Tag {
	m.mu.Lock()
	defer m.mu.Unlock()

	tag := m.derive(samples, idleSeconds, errorCount)
	m.current = tag
	return tag
}

func (m *Machine) derive(samples []activity.Sample, idleSeconds int, errorCount int) Tag {
	hour := m.now().Hour()
	if hour >= m.cfg.LateNightStartHour && hour <= m.cfg.LateNightEndHour {
		return TagSleepy
	}

	if errorCount >= 2 {
		return TagFrustrated
	}

	if time.Duration(idleSeconds)*time.Second >= m.cfg.BoredIdle {
		return TagBored
	}

	focused := m.focusedMinutes(samples)
	if focused >= m.cfg.FocusTarget {
		return TagFocused
	}

	if len(samples) == 0 {
		return TagIdle
	}

	if focused >= m.cfg.FocusLowerBound {
		return TagFocused
	}
	return TagIdle
}

// focusedMinutes approximates time spent working as the count of samples
// matching a focus keyword times the assumed sample interval.
func (m *Machine) focusedMinutes(samples []activity.Sample) time.Duration {
	matched := 0
	for _, s := range samples {
		haystack := strings.ToLower(s.Process + " " + s.WindowTitle)
		for _, kw := range m.cfg.FocusKeywords {
			if strings.Contains(haystack, kw) {
				matched++
				break
			}
		}
	}
	return time.Duration(matched) * m.cfg.SampleInterval
}
