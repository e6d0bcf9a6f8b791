package brain

import (
	"encoding/json"
	"strings"

	"github.com/normanking/wisp/internal/emotion"
)

const replyMarker = `"reply":"`

// ExtractPartialReply scrapes the reply text out of a possibly
// incomplete JSON buffer while the model is still streaming. It returns
// everything between the reply marker and the next unescaped quote, or
// the end of the buffer when the closing quote has not arrived yet.
func ExtractPartialReply(buf string) (string, bool) {
	// Tolerate whitespace around the colon.
	idx := strings.Index(buf, replyMarker)
	if idx < 0 {
		if idx = looseMarkerIndex(buf); idx < 0 {
			return "", false
		}
	} else {
		idx += len(replyMarker)
	}

	rest := buf[idx:]
	end := len(rest)
	for i := 0; i < len(rest); i++ {
		if rest[i] == '"' && !isEscaped(rest, i) {
			end = i
			break
		}
	}

	return unescapeReply(rest[:end]), true
}

// looseMarkerIndex finds `"reply"` followed by optional whitespace, a
// colon, optional whitespace, and an opening quote. Returns the index
// just past the opening quote, or -1.
func looseMarkerIndex(buf string) int {
	key := strings.Index(buf, `"reply"`)
	if key < 0 {
		return -1
	}
	i := key + len(`"reply"`)
	for i < len(buf) && (buf[i] == ' ' || buf[i] == '\t') {
		i++
	}
	if i >= len(buf) || buf[i] != ':' {
		return -1
	}
	i++
	for i < len(buf) && (buf[i] == ' ' || buf[i] == '\t') {
		i++
	}
	if i >= len(buf) || buf[i] != '"' {
		return -1
	}
	return i + 1
}

// isEscaped reports whether the byte at pos is preceded by an odd run
// of backslashes.
func isEscaped(s string, pos int) bool {
	n := 0
	for i := pos - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

func unescapeReply(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\"`, `"`)
	return s
}

// structuredReply is the two-field result the chat prompt asks for.
type structuredReply struct {
	Reply   string `json:"reply"`
	Emotion string `json:"emotion"`
}

// ParseReply parses the complete model output. Malformed output is
// tolerated: the raw text becomes the reply with a neutral emotion.
func ParseReply(raw string) (string, emotion.Tag) {
	trimmed := strings.TrimSpace(raw)

	// Models sometimes wrap JSON in a code fence.
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var parsed structuredReply
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Reply != "" {
		return parsed.Reply, emotion.ParseTag(parsed.Emotion)
	}

	return strings.TrimSpace(raw), emotion.TagNeutral
}
