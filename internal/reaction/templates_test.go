package reaction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/normanking/wisp/internal/emotion"
)

func TestLoadTemplateStore_SeedsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")

	s, err := LoadTemplateStore(path)
	if err != nil {
		t.Fatalf("seeding a missing file should not error: %v", err)
	}

	if _, ok := s.Line(EventFiveMinute, emotion.TagBored); !ok {
		t.Error("seeded defaults should cover (five_minute, bored)")
	}

	// The seeded defaults are persisted for the user to edit.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("seeded templates were not written to disk: %v", err)
	}

	reloaded, err := LoadTemplateStore(path)
	if err != nil {
		t.Fatalf("reloading the persisted file failed: %v", err)
	}
	if _, ok := reloaded.Line(EventFiveMinute, emotion.TagBored); !ok {
		t.Error("persisted defaults should survive a reload")
	}
}

func TestLoadTemplateStore_BadFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	if err := os.WriteFile(path, []byte("{{{not yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadTemplateStore(path)
	if err == nil {
		t.Error("a corrupt file should be reported")
	}
	if s == nil {
		t.Fatal("a usable store must still come back")
	}
	if _, ok := s.Line(EventFiveMinute, emotion.TagFocused); !ok {
		t.Error("corrupt file should fall back to seeded defaults")
	}
}

func TestTemplateStore_Line(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	s, err := LoadTemplateStore(path)
	if err != nil {
		t.Fatal(err)
	}

	line, ok := s.Line(EventFiveMinute, emotion.TagSleepy)
	if !ok || line == "" {
		t.Error("expected a sleepy five-minute line")
	}

	if _, ok := s.Line(EventHourly, emotion.TagAngry); ok {
		t.Error("a missing (event, mood) pair must miss so the model takes over")
	}

	// Lookups are case-insensitive on the mood.
	if _, ok := s.Line(EventFiveMinute, emotion.Tag("SLEEPY")); !ok {
		t.Error("mood matching should ignore case")
	}
}

func TestTemplateStore_IdleReturnSeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	s, err := LoadTemplateStore(path)
	if err != nil {
		t.Fatal(err)
	}

	for _, mood := range []emotion.Tag{emotion.TagHappy, emotion.TagIdle, emotion.TagBored} {
		if _, ok := s.Line(EventIdleReturn, mood); !ok {
			t.Errorf("seeded defaults should cover (idle_return, %s)", mood)
		}
	}
}
