package brain

import (
	"testing"

	"github.com/normanking/wisp/internal/emotion"
)

func TestExtractPartialReply(t *testing.T) {
	tests := []struct {
		name   string
		buf    string
		want   string
		wantOK bool
	}{
		{
			name:   "marker not yet arrived",
			buf:    `{"re`,
			wantOK: false,
		},
		{
			name:   "partial reply mid-word",
			buf:    `{"reply":"Hel`,
			want:   "Hel",
			wantOK: true,
		},
		{
			name:   "completed reply stops at closing quote",
			buf:    `{"reply":"Hello there","emotion":"happy"}`,
			want:   "Hello there",
			wantOK: true,
		},
		{
			name:   "whitespace around the colon",
			buf:    `{"reply" : "Hi`,
			want:   "Hi",
			wantOK: true,
		},
		{
			name:   "escaped quote inside the reply",
			buf:    `{"reply":"say \"hi\" back`,
			want:   `say "hi" back`,
			wantOK: true,
		},
		{
			name:   "escaped newline",
			buf:    `{"reply":"line one\nline two`,
			want:   "line one\nline two",
			wantOK: true,
		},
		{
			name:   "empty reply so far",
			buf:    `{"reply":"`,
			want:   "",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractPartialReply(tt.buf)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("partial = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantText string
		wantEmo  emotion.Tag
	}{
		{
			name:     "well-formed",
			raw:      `{"reply":"Hello!","emotion":"happy"}`,
			wantText: "Hello!",
			wantEmo:  emotion.TagHappy,
		},
		{
			name:     "code-fenced json",
			raw:      "```json\n{\"reply\":\"Hi\",\"emotion\":\"playful\"}\n```",
			wantText: "Hi",
			wantEmo:  emotion.TagPlayful,
		},
		{
			name:     "unknown emotion falls back to neutral",
			raw:      `{"reply":"Hmm","emotion":"perplexed"}`,
			wantText: "Hmm",
			wantEmo:  emotion.TagNeutral,
		},
		{
			name:     "plain text passes through",
			raw:      "  just words, no json  ",
			wantText: "just words, no json",
			wantEmo:  emotion.TagNeutral,
		},
		{
			name:     "truncated json passes through raw",
			raw:      `{"reply":"cut off`,
			wantText: `{"reply":"cut off`,
			wantEmo:  emotion.TagNeutral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, emo := ParseReply(tt.raw)
			if text != tt.wantText {
				t.Errorf("reply = %q, want %q", text, tt.wantText)
			}
			if emo != tt.wantEmo {
				t.Errorf("emotion = %v, want %v", emo, tt.wantEmo)
			}
		})
	}
}
