package prompt

import (
	"strings"
	"testing"

	"github.com/normanking/wisp/internal/emotion"
)

func TestChat(t *testing.T) {
	p := Chat(Input{
		Mood:            emotion.TagHappy,
		Memories:        []string{"the user likes espresso", "the user plays guitar"},
		TimeOfDay:       "morning",
		PersonalityHint: "slightly sarcastic",
	})

	for _, want := range []string{
		"You are Wisp",
		"Never claim to have read, seen, or observed",
		"Current mood: happy",
		"It is morning for the user.",
		"Personality note: slightly sarcastic",
		"- the user likes espresso",
		"- the user plays guitar",
		`{"reply":"`,
		`"emotion":"`,
	} {
		if !strings.Contains(p, want) {
			t.Errorf("chat prompt missing %q", want)
		}
	}
}

func TestChat_OmitsEmptySections(t *testing.T) {
	p := Chat(Input{Mood: emotion.TagNeutral})

	if strings.Contains(p, "Things you remember") {
		t.Error("memory section should be omitted when empty")
	}
	if strings.Contains(p, "Personality note") {
		t.Error("personality section should be omitted when empty")
	}
	if strings.Contains(p, "It is ") {
		t.Error("time-of-day line should be omitted when empty")
	}
}

func TestFiveMinute(t *testing.T) {
	p := FiveMinute(Input{Mood: emotion.TagBored}, "mostly idle lately")

	if !strings.Contains(p, "The user appears to be mostly idle lately.") {
		t.Error("five-minute prompt missing the activity summary")
	}
	if !strings.Contains(p, "Plain text only, no JSON") {
		t.Error("ambient reactions must not ask for JSON")
	}
	if !strings.Contains(p, "Current mood: bored") {
		t.Error("five-minute prompt missing the mood")
	}
}

func TestHourly(t *testing.T) {
	p := Hourly(Input{Mood: emotion.TagFocused}, "in the editor")

	if !strings.Contains(p, "It has been about an hour.") {
		t.Error("hourly prompt missing its framing")
	}
	if !strings.Contains(p, "the user was in the editor") {
		t.Error("hourly prompt missing the summary")
	}
}

func TestTimeOfDay(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, "evening"},
		{2, "late night"},
		{4, "late night"},
		{5, "morning"},
		{11, "morning"},
		{12, "afternoon"},
		{17, "afternoon"},
		{18, "evening"},
		{23, "evening"},
	}

	for _, tt := range tests {
		if got := TimeOfDay(tt.hour); got != tt.want {
			t.Errorf("TimeOfDay(%d) = %q, want %q", tt.hour, got, tt.want)
		}
	}
}
