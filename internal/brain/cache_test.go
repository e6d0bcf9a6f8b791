package brain

import (
	"fmt"
	"testing"
	"time"

	"github.com/normanking/wisp/internal/emotion"
)

func TestCache_SetGet(t *testing.T) {
	c := NewCache(4, time.Minute)

	c.Set("ctx", "hello", "hi there", emotion.TagHappy)

	hit, ok := c.Get("ctx", "hello")
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if hit.Reply != "hi there" || hit.Emotion != emotion.TagHappy {
		t.Errorf("unexpected hit: %+v", hit)
	}

	if _, ok := c.Get("other-ctx", "hello"); ok {
		t.Error("different context must not share entries")
	}
	if _, ok := c.Get("ctx", "goodbye"); ok {
		t.Error("different input must not share entries")
	}
}

func TestCache_NormalizesInput(t *testing.T) {
	c := NewCache(4, time.Minute)
	c.Set("ctx", "Hello", "hi", emotion.TagNeutral)

	if _, ok := c.Get("ctx", "  hello  "); !ok {
		t.Error("case and surrounding whitespace should not miss the cache")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	now := base
	c := NewCache(4, 30*time.Minute)
	c.SetClock(func() time.Time { return now })

	c.Set("ctx", "hello", "hi", emotion.TagNeutral)

	now = base.Add(29 * time.Minute)
	if _, ok := c.Get("ctx", "hello"); !ok {
		t.Error("entry inside TTL should hit")
	}

	now = base.Add(31 * time.Minute)
	if _, ok := c.Get("ctx", "hello"); ok {
		t.Error("expired entry must miss")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be evicted on read, len=%d", c.Len())
	}
}

func TestCache_LRUEviction(t *testing.T) {
	c := NewCache(3, time.Minute)

	for i := 0; i < 3; i++ {
		c.Set("ctx", fmt.Sprintf("q%d", i), "a", emotion.TagNeutral)
	}

	// Touch q0 so q1 becomes the eviction candidate.
	if _, ok := c.Get("ctx", "q0"); !ok {
		t.Fatal("q0 should be present")
	}

	c.Set("ctx", "q3", "a", emotion.TagNeutral)

	if _, ok := c.Get("ctx", "q1"); ok {
		t.Error("least-recently-used entry should have been evicted")
	}
	if _, ok := c.Get("ctx", "q0"); !ok {
		t.Error("recently-touched entry should survive eviction")
	}
	if c.Len() != 3 {
		t.Errorf("cache should stay at capacity, len=%d", c.Len())
	}
}

func TestCache_Clear(t *testing.T) {
	c := NewCache(4, time.Minute)
	c.Set("ctx", "hello", "hi", emotion.TagNeutral)
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Clear should empty the cache, len=%d", c.Len())
	}
}

func TestFingerprint(t *testing.T) {
	history := []ChatTurn{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "second"},
	}

	if Fingerprint(history) != Fingerprint(history) {
		t.Error("fingerprint must be deterministic")
	}
	if Fingerprint(history) == Fingerprint(history[:1]) {
		t.Error("different history tails must not collide")
	}

	// Only the last few turns matter; older turns do not shift the key.
	tail := []ChatTurn{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
		{Role: RoleUser, Content: "c"},
	}
	long := append([]ChatTurn{{Role: RoleUser, Content: "ancient"}}, tail...)
	longer := append([]ChatTurn{{Role: RoleUser, Content: "different ancient"}}, tail...)
	if Fingerprint(long) != Fingerprint(longer) {
		t.Error("turns older than the tail must not shift the fingerprint")
	}
}
