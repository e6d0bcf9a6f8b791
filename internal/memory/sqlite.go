package memory

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	_ "modernc.org/sqlite"
)

// decayThreshold is the decay score above which importance erodes.
const decayThreshold = 5.0

// decayMinInterval is the minimum wall-clock gap between decay passes.
const decayMinInterval = 12 * time.Hour

// SQLiteStore implements Store using SQLite for persistence.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// SetClock overrides the wall clock, for tests.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// migrate creates the necessary tables if they don't exist.
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		content_key TEXT NOT NULL UNIQUE,
		tags TEXT,
		importance INTEGER DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		last_used_at TIMESTAMP,
		decay_score REAL DEFAULT 0,
		source TEXT,
		confidence REAL DEFAULT 0.7,
		seen_count INTEGER DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_entries_confidence ON entries(confidence);
	CREATE INDEX IF NOT EXISTS idx_entries_created_at ON entries(created_at);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// AddOrUpdate inserts an entry or merges it into the row whose content
// matches case-insensitively.
func (s *SQLiteStore) AddOrUpdate(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contentKey := strings.ToLower(strings.TrimSpace(e.Content))
	now := s.now()

	var id string
	var seen int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, seen_count FROM entries WHERE content_key = ?`, contentKey,
	).Scan(&id, &seen)

	switch {
	case err == sql.ErrNoRows:
		if e.ID == "" {
			e.ID = newID(now)
		}
		if e.Importance <= 0 {
			e.Importance = 1
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		e.SeenCount = 1
		e.Confidence = confidenceFor(e.SeenCount)

		tagsJSON, merr := json.Marshal(e.Tags)
		if merr != nil {
			return fmt.Errorf("failed to marshal tags: %w", merr)
		}

		_, err = s.db.ExecContext(ctx, `
			INSERT INTO entries (id, type, content, content_key, tags, importance,
				created_at, last_used_at, decay_score, source, confidence, seen_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?)`,
			e.ID, string(e.Type), e.Content, contentKey, string(tagsJSON),
			e.Importance, e.CreatedAt, e.DecayScore, e.Source, e.Confidence, e.SeenCount,
		)
		return err

	case err != nil:
		return fmt.Errorf("failed to look up entry: %w", err)

	default:
		seen++
		_, err = s.db.ExecContext(ctx, `
			UPDATE entries SET seen_count = ?, confidence = ? WHERE id = ?`,
			seen, confidenceFor(seen), id,
		)
		e.ID = id
		e.SeenCount = seen
		e.Confidence = confidenceFor(seen)
		return err
	}
}

// GetRelevant returns the top-max entries by relevance score, confined
// to confidence >= 0.8, and touches each returned entry's last-used
// timestamp.
func (s *SQLiteStore) GetRelevant(ctx context.Context, input string, max int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if max <= 0 {
		max = 5
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, content, tags, importance, created_at, last_used_at,
			decay_score, source, confidence, seen_count
		FROM entries WHERE confidence >= ?`, minConfidence,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	now := s.now()
	type scored struct {
		entry Entry
		score float64
	}
	candidates := make([]scored, 0, 32)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, scored{entry: *e, score: Score(e, input, now)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > max {
		candidates = candidates[:max]
	}

	out := make([]Entry, 0, len(candidates))
	for _, c := range candidates {
		// Touch on retrieval: recalled memories resist decay.
		if _, err := s.db.ExecContext(ctx,
			`UPDATE entries SET last_used_at = ? WHERE id = ?`, now, c.entry.ID,
		); err != nil {
			return nil, fmt.Errorf("failed to touch entry: %w", err)
		}
		touched := now
		c.entry.LastUsedAt = &touched
		out = append(out, c.entry)
	}
	return out, nil
}

// ApplyDecay raises decay scores in proportion to elapsed days and
// erodes importance once an entry's decay passes the threshold. Runs at
// most once per half-day; earlier calls are no-ops.
func (s *SQLiteStore) ApplyDecay(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	last, err := s.lastDecay(ctx)
	if err != nil {
		return err
	}
	if !last.IsZero() && now.Sub(last) < decayMinInterval {
		return nil
	}

	days := 0.5
	if !last.IsZero() {
		days = now.Sub(last).Hours() / 24
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE entries SET decay_score = decay_score + ?`, 0.2*days,
	); err != nil {
		return fmt.Errorf("failed to apply decay: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE entries SET importance = MAX(1, importance - 1)
		WHERE decay_score > ?`, decayThreshold,
	); err != nil {
		return fmt.Errorf("failed to erode importance: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('last_decay', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		now.Format(time.RFC3339),
	)
	return err
}

// AddLearningSummary records a distilled conversation summary as a
// learning entry.
func (s *SQLiteStore) AddLearningSummary(ctx context.Context, text, source string) error {
	return s.AddOrUpdate(ctx, &Entry{
		Type:       TypeLearning,
		Content:    text,
		Importance: 2,
		Source:     source,
	})
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) lastDecay(ctx context.Context) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE key = 'last_decay'`,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read decay marker: %w", err)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var e Entry
	var typ string
	var tags sql.NullString
	var lastUsed sql.NullTime
	var source sql.NullString

	if err := rows.Scan(&e.ID, &typ, &e.Content, &tags, &e.Importance,
		&e.CreatedAt, &lastUsed, &e.DecayScore, &source, &e.Confidence,
		&e.SeenCount,
	); err != nil {
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}

	e.Type = EntryType(typ)
	if source.Valid {
		e.Source = source.String
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		e.LastUsedAt = &t
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &e.Tags); err != nil {
			e.Tags = nil
		}
	}
	return &e, nil
}

func newID(now time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}
