// Package reaction provides canned companion lines keyed by event type
// and mood, so common moments don't cost a model call.
package reaction

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/normanking/wisp/internal/emotion"
)

// Event identifies the trigger that wants a line.
type Event string

const (
	EventFiveMinute Event = "five_minute"
	EventHourly     Event = "hourly"
	EventIdleReturn Event = "idle_return"
)

// templateFile is the on-disk document shape.
type templateFile struct {
	Templates []templateEntry `yaml:"templates"`
}

type templateEntry struct {
	Event string   `yaml:"event"`
	Mood  string   `yaml:"mood"`
	Lines []string `yaml:"lines"`
}

// TemplateStore is a read-mostly lookup of candidate lines. Lookups are
// exact case-insensitive matches on (event, mood); a hit picks one line
// uniformly at random.
type TemplateStore struct {
	mu    sync.RWMutex
	path  string
	lines map[string][]string
}

// LoadTemplateStore reads the template file, seeding and persisting the
// built-in defaults when it is missing or unreadable.
func LoadTemplateStore(path string) (*TemplateStore, error) {
	s := &TemplateStore{
		path:  path,
		lines: make(map[string][]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.seedDefaults()
		if err := s.save(); err != nil {
			return s, fmt.Errorf("failed to persist seeded templates: %w", err)
		}
		return s, nil
	}

	var doc templateFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		s.seedDefaults()
		return s, fmt.Errorf("failed to parse template file: %w", err)
	}

	for _, t := range doc.Templates {
		s.lines[key(Event(t.Event), emotion.Tag(t.Mood))] = t.Lines
	}
	return s, nil
}

// Line returns a random candidate line for (event, mood), or false when
// no template exists and the caller should fall back to the model.
func (s *TemplateStore) Line(event Event, mood emotion.Tag) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates, ok := s.lines[key(event, mood)]
	if !ok || len(candidates) == 0 {
		return "", false
	}
	return candidates[rand.Intn(len(candidates))], true
}

func key(event Event, mood emotion.Tag) string {
	return strings.ToLower(string(event)) + "|" + strings.ToLower(string(mood))
}

// save rewrites the whole file. Callers must not hold the write lock.
func (s *TemplateStore) save() error {
	s.mu.RLock()
	doc := templateFile{}
	for k, lines := range s.lines {
		parts := strings.SplitN(k, "|", 2)
		doc.Templates = append(doc.Templates, templateEntry{
			Event: parts[0],
			Mood:  parts[1],
			Lines: lines,
		})
	}
	s.mu.RUnlock()

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

func (s *TemplateStore) seedDefaults() {
	defaults := []templateEntry{
		{Event: string(EventFiveMinute), Mood: string(emotion.TagBored), Lines: []string{
			"Things have gone quiet over there. Stretch break?",
			"Not much happening lately. Want to pick something up?",
		}},
		{Event: string(EventFiveMinute), Mood: string(emotion.TagFocused), Lines: []string{
			"You're in the zone. I'll keep quiet.",
			"Deep focus detected. Carry on!",
		}},
		{Event: string(EventFiveMinute), Mood: string(emotion.TagSleepy), Lines: []string{
			"It's really late. Maybe call it a night?",
		}},
		{Event: string(EventFiveMinute), Mood: string(emotion.TagFrustrated), Lines: []string{
			"Rough patch? A short walk sometimes shakes these loose.",
		}},
		{Event: string(EventHourly), Mood: string(emotion.TagFocused), Lines: []string{
			"An hour of solid work. Nice pace.",
		}},
		{Event: string(EventIdleReturn), Mood: string(emotion.TagHappy), Lines: []string{
			"Welcome back!",
			"There you are. Ready when you are.",
		}},
		{Event: string(EventIdleReturn), Mood: string(emotion.TagIdle), Lines: []string{
			"Welcome back! It got quiet without you.",
			"There you are. Picking up where you left off?",
		}},
		{Event: string(EventIdleReturn), Mood: string(emotion.TagBored), Lines: []string{
			"You're back! I was starting to count ceiling tiles.",
		}},
	}

	for _, t := range defaults {
		s.lines[key(Event(t.Event), emotion.Tag(t.Mood))] = t.Lines
	}
}
