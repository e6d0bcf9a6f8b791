package emotion

import (
	"sync"
	"time"
)

// DefaultCooldowns maps each tag to how long Wisp waits before speaking
// unprompted again while in that mood.
var DefaultCooldowns = map[Tag]time.Duration{
	TagIdle:       600 * time.Second,
	TagFocused:    900 * time.Second,
	TagFrustrated: 300 * time.Second,
	TagHappy:      480 * time.Second,
	TagSleepy:     1200 * time.Second,
	TagBored:      420 * time.Second,
	TagConcerned:  360 * time.Second,
	TagPlayful:    480 * time.Second,
}

const defaultCooldown = 600 * time.Second

// Cooldown rate-limits unprompted utterances. The mood selects how long
// to wait, but the clock is a single shared timestamp: speaking for any
// reason resets it for every mood.
type Cooldown struct {
	mu        sync.Mutex
	durations map[Tag]time.Duration
	lastSpoke time.Time
	now       func() time.Time
}

// NewCooldown creates a cooldown service. A nil durations map uses the
// defaults.
func NewCooldown(durations map[Tag]time.Duration) *Cooldown {
	if durations == nil {
		durations = DefaultCooldowns
	}
	return &Cooldown{
		durations: durations,
		now:       time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (c *Cooldown) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// CanSpeak reports whether the companion may speak right now. A
// meaningful event bypasses the cooldown entirely.
func (c *Cooldown) CanSpeak(tag Tag, meaningful bool) bool {
	if meaningful {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastSpoke.IsZero() {
		return true
	}
	return c.now().Sub(c.lastSpoke) > c.duration(tag)
}

// RecordSpoke resets the shared clock.
func (c *Cooldown) RecordSpoke() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSpoke = c.now()
}

// Seconds returns the cooldown for a tag in whole seconds.
func (c *Cooldown) Seconds(tag Tag) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.duration(tag) / time.Second)
}

func (c *Cooldown) duration(tag Tag) time.Duration {
	if d, ok := c.durations[tag]; ok {
		return d
	}
	return defaultCooldown
}
