// Package response extracts named sections from generated markdown and
// validates that the expected structure is present. The result is the
// gate callers use to decide whether to persist, retry, or fall back;
// response text is inert and never evaluated as code or commands.
package response

import (
	"regexp"
	"strings"

	"promptforge/internal/types"
)

// headingPattern matches markdown headings (h1-h6) at the start of a line.
var headingPattern = regexp.MustCompile(`(?m)^(#{1,6})[ \t]+(.+?)[ \t]*$`)

// fencePattern matches fenced code block delimiters at the start of a
// line, allowing up to 3 spaces of indentation per CommonMark.
var fencePattern = regexp.MustCompile("(?m)^[ ]{0,3}(`{3,}|~{3,})")

// headingNumber strips list-numbering prefixes ("1.", "2)") when matching
// a heading against an expected name.
var headingNumber = regexp.MustCompile(`^\d+[.)]\s*`)

type heading struct {
	level        int
	name         string // normalized
	headerStart  int    // byte offset of the heading line
	lineEnd      int    // byte offset just past the heading line text
	contentStart int    // byte offset where section content starts
}

// ExtractSections returns a mapping from expected section names to their
// content. Heading lines are matched case-insensitively against the
// expected names; a section's content runs until the next heading at the
// same or shallower level, or end of text. Headings inside fenced code
// blocks are ignored. Keys in the result use the expected names verbatim.
func ExtractSections(text string, expected []string) map[string]string {
	canonical := make(map[string]string, len(expected))
	for _, name := range expected {
		canonical[normalizeHeading(name)] = name
	}

	headings := parseHeadings(text)
	sections := make(map[string]string)

	for i, h := range headings {
		name, ok := canonical[h.name]
		if !ok {
			continue
		}
		if _, seen := sections[name]; seen {
			continue // first occurrence wins
		}
		end := len(text)
		for _, next := range headings[i+1:] {
			if next.level <= h.level {
				end = next.headerStart
				break
			}
			// A deeper heading matching another expected name also closes
			// this section, so sibling sections nested one level apart
			// still split cleanly.
			if _, exp := canonical[next.name]; exp {
				end = next.headerStart
				break
			}
		}
		sections[name] = strings.TrimSpace(text[h.contentStart:end])
	}

	return sections
}

// ValidateStructure checks that every expected section is present with
// non-empty content. Missing and empty names are reported together: both
// mean the output cannot be trusted.
func ValidateStructure(text string, expected []string) types.ValidationResult {
	sections := ExtractSections(text, expected)

	var missing []string
	for _, name := range expected {
		if strings.TrimSpace(sections[name]) == "" {
			missing = append(missing, name)
		}
	}

	return types.ValidationResult{
		Valid:             len(missing) == 0,
		MissingSections:   missing,
		ExtractedSections: sections,
	}
}

// parseHeadings returns all headings outside fenced code blocks, in order.
func parseHeadings(text string) []heading {
	fences := fencedRanges(text)
	matches := headingPattern.FindAllStringSubmatchIndex(text, -1)

	var out []heading
	for _, m := range matches {
		if insideRange(fences, m[0]) {
			continue
		}
		contentStart := m[1]
		if contentStart < len(text) && text[contentStart] == '\n' {
			contentStart++
		}
		out = append(out, heading{
			level:        m[3] - m[2],
			name:         normalizeHeading(text[m[4]:m[5]]),
			headerStart:  m[0],
			lineEnd:      m[1],
			contentStart: contentStart,
		})
	}
	return out
}

// normalizeHeading canonicalizes a heading or expected name for matching:
// bold markers, numbering prefixes, and trailing colons are stripped and
// the result is lowercased.
func normalizeHeading(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_")
	s = headingNumber.ReplaceAllString(s, "")
	s = strings.TrimSuffix(s, ":")
	s = strings.Trim(s, "*_ ")
	return strings.ToLower(s)
}

// fencedRanges returns byte offset ranges [start, end) of fenced code
// blocks. A closing fence must use the same character as its opener and
// be at least as long; an unclosed fence runs to end of text.
func fencedRanges(text string) [][2]int {
	matches := fencePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	var ranges [][2]int
	inFence := false
	var openChar byte
	var openLen, openStart int

	for _, m := range matches {
		chars := text[m[2]:m[3]]
		if !inFence {
			openChar = chars[0]
			openLen = len(chars)
			openStart = m[0]
			inFence = true
			continue
		}
		if chars[0] == openChar && len(chars) >= openLen {
			ranges = append(ranges, [2]int{openStart, m[1]})
			inFence = false
		}
	}
	if inFence {
		ranges = append(ranges, [2]int{openStart, len(text)})
	}
	return ranges
}

func insideRange(ranges [][2]int, pos int) bool {
	for _, r := range ranges {
		if pos >= r[0] && pos < r[1] {
			return true
		}
	}
	return false
}
