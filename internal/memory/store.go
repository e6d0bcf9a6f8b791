// Package memory implements Wisp's persisted, relevance-scored,
// decaying store of facts learned about the user.
package memory

import (
	"context"
	"strings"
	"time"
	"unicode"
)

// EntryType categorizes entries.
type EntryType string

const (
	TypeFact     EntryType = "fact"     // explicit or heuristic extraction
	TypeLearning EntryType = "learning" // summaries distilled from conversation
)

// Entry is a single remembered fact. Case-insensitive content equality
// is the natural key for deduplication and merging.
type Entry struct {
	ID         string
	Type       EntryType
	Content    string
	Tags       []string
	Importance int
	CreatedAt  time.Time
	LastUsedAt *time.Time
	DecayScore float64
	Source     string
	Confidence float64
	SeenCount  int
}

// Store is the interface for memory persistence.
type Store interface {
	// AddOrUpdate inserts an entry, or merges it into an existing one
	// with equal content (case-insensitive): seen count increments and
	// confidence is recomputed.
	AddOrUpdate(ctx context.Context, e *Entry) error

	// GetRelevant returns up to max entries with confidence >= 0.8,
	// ranked by relevance to the input text. Returned entries have
	// their last-used timestamp updated so recalled memories resist
	// decay.
	GetRelevant(ctx context.Context, input string, max int) ([]Entry, error)

	// ApplyDecay runs the decay pass: at most once per half-day of
	// elapsed wall clock, it raises every entry's decay score and
	// lowers importance (floor 1) once decay exceeds its threshold.
	ApplyDecay(ctx context.Context) error

	// AddLearningSummary records a distilled conversation summary.
	AddLearningSummary(ctx context.Context, text, source string) error

	// Close releases resources.
	Close() error
}

// minConfidence is the floor below which entries are never surfaced.
const minConfidence = 0.8

// confidenceFor recomputes confidence from how often a fact has been
// seen.
func confidenceFor(seenCount int) float64 {
	c := 0.5 + float64(seenCount)*0.2
	if c > 1.0 {
		return 1.0
	}
	return c
}

// Score ranks an entry against an input text. Recently used, important,
// low-decay entries that share vocabulary with the input score highest.
func Score(e *Entry, input string, now time.Time) float64 {
	lastUsed := e.CreatedAt
	if e.LastUsedAt != nil {
		lastUsed = *e.LastUsedAt
	}
	days := now.Sub(lastUsed).Hours() / 24
	if days < 0 {
		days = 0
	}

	return 2*float64(e.Importance) - e.DecayScore +
		1/(1+days) +
		0.5*float64(tokenOverlap(e.Content, input))
}

// tokenOverlap counts distinct case-folded tokens longer than 2
// characters shared between two texts.
func tokenOverlap(a, b string) int {
	at := tokenSet(a)
	overlap := 0
	for _, tok := range tokenize(b) {
		if at[tok] {
			overlap++
			at[tok] = false // count each shared token once
		}
	}
	return overlap
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenize(text) {
		set[tok] = true
	}
	return set
}

// tokenize splits on anything that is not a letter or digit, lowercases,
// and drops tokens of 2 characters or fewer.
func tokenize(text string) []string {
	out := make([]string, 0, 8)
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 2 {
			out = append(out, cur.String())
		}
		cur.Reset()
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return out
}
