package memory

import (
	"regexp"
	"strings"
)

// Heuristic fact extraction from user chat text. Patterns are narrow on
// purpose: a false memory is worse than a missed one.
var extractPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bremember that (.{4,120})`),
	regexp.MustCompile(`(?i)\bmy (?:name|birthday|timezone|dog|cat|wife|husband|partner|job|team) is (.{2,80})`),
	regexp.MustCompile(`(?i)\bi (?:really )?(?:like|love|hate|prefer) (.{3,80})`),
	regexp.MustCompile(`(?i)\bi(?:'m| am) working on (.{3,100})`),
}

// ExtractFacts scans user text for statements worth remembering and
// returns them as fact entries, unsaved.
func ExtractFacts(text, source string) []Entry {
	var out []Entry
	for _, re := range extractPatterns {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			content := strings.TrimSpace(strings.TrimRight(match[0], ".!?"))
			if content == "" {
				continue
			}
			out = append(out, Entry{
				Type:       TypeFact,
				Content:    content,
				Importance: 2,
				Source:     source,
			})
		}
	}
	return out
}
