package activity

import (
	"fmt"
	"strings"
)

// categoryKeywords maps each category to substrings matched against the
// process name and window title, case-insensitive.
var categoryKeywords = map[Category][]string{
	CategoryCode: {
		"code", "vscode", "goland", "intellij", "idea", "pycharm",
		"vim", "nvim", "neovim", "emacs", "sublime", "zed", "xcode",
	},
	CategoryBrowser: {
		"chrome", "firefox", "safari", "edge", "brave", "arc", "browser",
	},
	CategoryTerminal: {
		"terminal", "iterm", "alacritty", "kitty", "wezterm", "konsole",
		"powershell", "cmd.exe", "tmux",
	},
}

// categoryLabels are the human phrasings used in summary lines.
var categoryLabels = map[Category]string{
	CategoryCode:     "the editor",
	CategoryBrowser:  "the browser",
	CategoryTerminal: "the terminal",
	CategoryOther:    "something",
}

// Classify buckets a sample into a category by keyword containment on
// its process name and window title.
func Classify(s Sample) Category {
	haystack := strings.ToLower(s.Process + " " + s.WindowTitle)
	for _, cat := range []Category{CategoryCode, CategoryBrowser, CategoryTerminal} {
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(haystack, kw) {
				return cat
			}
		}
	}
	return CategoryOther
}

// idleSampleThreshold marks a single sample as idle.
const idleSampleThreshold = 300 // seconds

// Summarize renders a one-line natural-language description of the
// recent window. Rule ladder: mostly idle, frequent switching, single
// dominant category, generic fallback.
func Summarize(samples []Sample, idleSeconds int) string {
	if len(samples) == 0 {
		if idleSeconds >= idleSampleThreshold {
			return "away from the keyboard for a while"
		}
		return "just getting started"
	}

	idleCount := 0
	cats := make([]Category, 0, len(samples))
	seen := make(map[Category]int)
	for _, s := range samples {
		if s.IdleSeconds >= idleSampleThreshold {
			idleCount++
			continue
		}
		c := Classify(s)
		cats = append(cats, c)
		seen[c]++
	}

	if idleCount > len(samples)/2 {
		return "mostly idle lately"
	}

	switches := 0
	for i := 1; i < len(cats); i++ {
		if cats[i] != cats[i-1] {
			switches++
		}
	}

	if switches >= 4 && len(seen) >= 2 {
		top := topTwo(seen)
		return fmt.Sprintf("switching between %s and %s frequently",
			categoryLabels[top[0]], categoryLabels[top[1]])
	}

	if len(seen) == 1 {
		for c := range seen {
			return fmt.Sprintf("in %s", categoryLabels[c])
		}
	}

	return "active recently"
}

// topTwo returns the two most frequent categories, most frequent first.
func topTwo(counts map[Category]int) [2]Category {
	var first, second Category
	for _, c := range []Category{CategoryCode, CategoryBrowser, CategoryTerminal, CategoryOther} {
		n, ok := counts[c]
		if !ok {
			continue
		}
		if first == "" || n > counts[first] {
			second = first
			first = c
		} else if second == "" || n > counts[second] {
			second = c
		}
	}
	return [2]Category{first, second}
}
