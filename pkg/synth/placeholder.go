package synth

import "strings"

// Exact targets that can never locate a concrete element.
var placeholderExact = map[string]bool{
	"element":  true,
	"button":   true,
	"screen":   true,
	"text":     true,
	"field":    true,
	"экран":    true,
	"элемент":  true,
	"кнопка":   true,
	"текст":    true,
	"поле":     true,
}

// Filler openings that signal prose rather than on-screen text.
var placeholderPrefixes = []string{
	"some ",
	"any ",
	"expected ",
	"verify ",
	"ensure ",
	"check ",
	"the user ",
	"какой-то",
	"какая-то",
	"соответств",
	"ожидаем",
	"проверить",
	"убедиться",
	"отобража",
}

const placeholderMaxWords = 10

// IsPlaceholderTarget rejects assertion targets too vague or prose-like to
// reliably locate on screen: exact denylist hits, filler prefixes, long
// multi-word sentences and anything spanning lines.
func IsPlaceholderTarget(target string) bool {
	trimmed := strings.TrimSpace(target)
	if trimmed == "" {
		return true
	}
	if strings.Contains(trimmed, "\n") {
		return true
	}
	lower := strings.ToLower(trimmed)
	if placeholderExact[lower] {
		return true
	}
	for _, prefix := range placeholderPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return len(strings.Fields(lower)) > placeholderMaxWords
}
