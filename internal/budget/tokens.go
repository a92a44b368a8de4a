package budget

import (
	"strings"
	"unicode/utf8"
)

// charsPerToken is the fixed calibration for the token heuristic, roughly
// matching common chat-model tokenizers. The contract is reproducibility,
// not fidelity: the same text always yields the same estimate.
const charsPerToken = 4

// EstimateTokens estimates tokens in a string using the repo-wide heuristic.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return utf8.RuneCountInString(s) / charsPerToken
}

// truncateToTokens cuts content so its estimate fits within maxTokens,
// preferring a paragraph boundary, then a sentence end, then whitespace.
// The cut never lands mid-word. Returns the truncated text and whether a
// cut was made.
func truncateToTokens(content string, maxTokens int) (string, bool) {
	if EstimateTokens(content) <= maxTokens {
		return content, false
	}
	if maxTokens <= 0 {
		return "", true
	}

	runes := []rune(content)
	limit := maxTokens * charsPerToken
	if limit > len(runes) {
		limit = len(runes)
	}
	prefix := string(runes[:limit])

	// Paragraph boundary, as long as it keeps at least half the window.
	if cut := strings.LastIndex(prefix, "\n\n"); cut > len(prefix)/2 {
		return strings.TrimRight(prefix[:cut], " \t\n"), true
	}

	// Sentence end.
	if cut := lastSentenceEnd(prefix); cut > len(prefix)/4 {
		return strings.TrimRight(prefix[:cut], " \t\n"), true
	}

	// Whitespace, so the cut is never mid-word.
	if cut := strings.LastIndexAny(prefix, " \t\n"); cut > 0 {
		return strings.TrimRight(prefix[:cut], " \t\n"), true
	}

	// Single unbroken word longer than the window: nothing usable fits.
	return "", true
}

// lastSentenceEnd returns the byte offset just past the final sentence
// terminator in s, or -1 if none is found.
func lastSentenceEnd(s string) int {
	best := -1
	for _, term := range []string{". ", ".\n", "! ", "!\n", "? ", "?\n"} {
		if i := strings.LastIndex(s, term); i >= 0 && i+1 > best {
			best = i + 1
		}
	}
	return best
}
