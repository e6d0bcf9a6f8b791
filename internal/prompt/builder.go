// Package prompt renders Wisp's system prompts. Builders are pure:
// everything they need arrives as arguments.
package prompt

import (
	"fmt"
	"strings"

	"github.com/normanking/wisp/internal/emotion"
)

const identity = `You are Wisp, a small desktop companion who keeps the user company while they work. You are warm, brief, and never preachy. You speak in one or two short sentences.`

const safetyRule = `Never claim to have read, seen, or observed the content of the user's screen, messages, or files. You only know coarse activity signals the user has chosen to share.`

// moodGuidance phrases how each mood should color the reply.
var moodGuidance = map[emotion.Tag]string{
	emotion.TagIdle:       "Keep it light and unhurried.",
	emotion.TagFocused:    "Be encouraging and very brief; don't break their flow.",
	emotion.TagFrustrated: "Be gentle and supportive, never chipper.",
	emotion.TagHappy:      "Match their good mood, a little playful is fine.",
	emotion.TagSleepy:     "Be soft and calm; a nudge toward rest is welcome.",
	emotion.TagBored:      "Offer a small spark: a suggestion or a friendly check-in.",
	emotion.TagConcerned:  "Be caring without prying.",
	emotion.TagSad:        "Be kind and quiet.",
	emotion.TagPlayful:    "A touch of humor is welcome.",
	emotion.TagThinking:   "Be measured and thoughtful.",
	emotion.TagNeutral:    "Keep a friendly, even tone.",
}

// Input carries the shared ingredients for every prompt variant.
type Input struct {
	Mood            emotion.Tag
	Memories        []string // relevance-ordered memory contents
	TimeOfDay       string   // "morning", "afternoon", "evening", "late night"; optional
	PersonalityHint string   // optional bias line from the personality file
}

// Chat renders the system prompt for interactive conversation. It asks
// the model for a strict two-field JSON object so the reply and the
// self-reported emotion can be split while streaming.
func Chat(in Input) string {
	var b strings.Builder
	writeCommon(&b, in)

	b.WriteString("\nRespond with a single JSON object and nothing else, on one line:\n")
	b.WriteString(`{"reply":"<what you say to the user>","emotion":"<one of: idle, focused, frustrated, happy, sleepy, bored, concerned, sad, angry, surprised, playful, thinking, neutral>"}`)
	b.WriteString("\n")
	return b.String()
}

// FiveMinute renders the system prompt for the five-minute ambient
// reaction to an activity summary.
func FiveMinute(in Input, summary string) string {
	var b strings.Builder
	writeCommon(&b, in)

	fmt.Fprintf(&b, "\nThe user appears to be %s. Offer one short, unprompted remark that fits the moment. Plain text only, no JSON, at most two sentences.\n", summary)
	return b.String()
}

// Hourly renders the system prompt for the hourly summary reaction.
func Hourly(in Input, summary string) string {
	var b strings.Builder
	writeCommon(&b, in)

	fmt.Fprintf(&b, "\nIt has been about an hour. Over that hour the user was %s. Offer one short reflective remark about the hour. Plain text only, no JSON, at most two sentences.\n", summary)
	return b.String()
}

func writeCommon(b *strings.Builder, in Input) {
	b.WriteString(identity)
	b.WriteString("\n")
	b.WriteString(safetyRule)
	b.WriteString("\n")

	if g, ok := moodGuidance[in.Mood]; ok {
		fmt.Fprintf(b, "Current mood: %s. %s\n", in.Mood, g)
	}
	if in.TimeOfDay != "" {
		fmt.Fprintf(b, "It is %s for the user.\n", in.TimeOfDay)
	}
	if in.PersonalityHint != "" {
		fmt.Fprintf(b, "Personality note: %s\n", in.PersonalityHint)
	}
	if len(in.Memories) > 0 {
		b.WriteString("Things you remember about the user:\n")
		for _, m := range in.Memories {
			fmt.Fprintf(b, "- %s\n", m)
		}
	}
}

// TimeOfDay maps an hour (0-23) to a coarse time-of-day tag.
func TimeOfDay(hour int) string {
	switch {
	case hour >= 1 && hour <= 4:
		return "late night"
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 18:
		return "afternoon"
	default:
		return "evening"
	}
}
