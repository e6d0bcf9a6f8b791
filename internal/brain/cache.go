package brain

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/normanking/wisp/internal/emotion"
)

// CachedResponse is a prior model answer keyed by conversation context
// and user input.
type CachedResponse struct {
	Reply    string
	Emotion  emotion.Tag
	CachedAt time.Time
}

type cacheEntry struct {
	key     string
	value   CachedResponse
	expires time.Time
}

// Cache is a bounded, LRU-ordered, TTL-expiring store of model replies.
// Entries never outlive their TTL: a get on an expired entry evicts it
// and reports a miss.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front = most recently used
	index    map[string]*list.Element
	now      func() time.Time
}

// NewCache creates a cache bounded to capacity entries with the given
// TTL.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 64
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		index:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Key builds the cache key from a context fingerprint and the user
// input. Input is normalized so near-duplicate phrasings in the same
// context reuse an answer.
func Key(contextHash, userInput string) string {
	norm := strings.ToLower(strings.TrimSpace(userInput))
	sum := sha256.Sum256([]byte(contextHash + "||" + norm))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for the key, if present and fresh.
func (c *Cache) Get(contextHash, userInput string) (CachedResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[Key(contextHash, userInput)]
	if !ok {
		return CachedResponse{}, false
	}

	entry := el.Value.(*cacheEntry)
	if c.now().After(entry.expires) {
		c.order.Remove(el)
		delete(c.index, entry.key)
		return CachedResponse{}, false
	}

	c.order.MoveToFront(el)
	return entry.value, true
}

// Set stores a reply, evicting the least-recently-used entry if at
// capacity.
func (c *Cache) Set(contextHash, userInput, reply string, emo emotion.Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := Key(contextHash, userInput)
	now := c.now()

	if el, ok := c.index[k]; ok {
		entry := el.Value.(*cacheEntry)
		entry.value = CachedResponse{Reply: reply, Emotion: emo, CachedAt: now}
		entry.expires = now.Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.index, oldest.Value.(*cacheEntry).key)
		}
	}

	el := c.order.PushFront(&cacheEntry{
		key:     k,
		value:   CachedResponse{Reply: reply, Emotion: emo, CachedAt: now},
		expires: now.Add(c.ttl),
	})
	c.index[k] = el
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.index = make(map[string]*list.Element)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
