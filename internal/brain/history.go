package brain

import (
	"fmt"
	"strings"
	"sync"
)

// CompressFunc receives a digest of turns about to be dropped, so they
// can be distilled into the memory store before they disappear.
type CompressFunc func(digest string)

// Conversation is the bounded in-memory context window for one chat
// session. Oldest turns fall off past MaxTurns; when the window climbs
// above CompressAbove, everything but the most recent KeepRecent turns
// is digested and handed to the compress callback before removal.
type Conversation struct {
	mu            sync.Mutex
	turns         []ChatTurn
	maxTurns      int
	compressAbove int
	keepRecent    int
	onCompress    CompressFunc
}

// NewConversation creates a context window. Zero values get defaults:
// max 20 turns, compress above 16, keep the 6 most recent.
func NewConversation(maxTurns, compressAbove, keepRecent int, onCompress CompressFunc) *Conversation {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	if compressAbove <= 0 || compressAbove > maxTurns {
		compressAbove = maxTurns * 4 / 5
	}
	if keepRecent <= 0 {
		keepRecent = 6
	}
	if keepRecent >= compressAbove {
		keepRecent = compressAbove / 2
	}
	return &Conversation{
		maxTurns:      maxTurns,
		compressAbove: compressAbove,
		keepRecent:    keepRecent,
		onCompress:    onCompress,
	}
}

// Append records a turn, compressing and trimming as needed. The window
// never exceeds its maximum.
func (c *Conversation) Append(role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, ChatTurn{Role: role, Content: content})

	if len(c.turns) > c.compressAbove {
		cut := len(c.turns) - c.keepRecent
		if c.onCompress != nil {
			c.onCompress(digest(c.turns[:cut]))
		}
		c.turns = append([]ChatTurn(nil), c.turns[cut:]...)
	}

	if len(c.turns) > c.maxTurns {
		c.turns = c.turns[len(c.turns)-c.maxTurns:]
	}
}

// Turns returns a copy of the current window, oldest first.
func (c *Conversation) Turns() []ChatTurn {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ChatTurn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the current number of turns.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Reset drops the whole window.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
}

// digestTurnPrefix bounds how much of each turn survives in a digest.
const digestTurnPrefix = 120

func digest(turns []ChatTurn) string {
	var b strings.Builder
	b.WriteString("Earlier in the conversation: ")
	for i, t := range turns {
		content := strings.TrimSpace(t.Content)
		if len(content) > digestTurnPrefix {
			content = content[:digestTurnPrefix] + "…"
		}
		if i > 0 {
			b.WriteString(" | ")
		}
		fmt.Fprintf(&b, "%s: %s", t.Role, content)
	}
	return b.String()
}
