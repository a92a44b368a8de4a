package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStructure_ReportsMissing(t *testing.T) {
	text := "# PRP\n\n## Goals\n\nShip the thing.\n\n## Non-Goals\n\nNot the other thing.\n"
	expected := []string{"Goals", "Non-Goals", "Validation Plan"}

	got := ValidateStructure(text, expected)

	assert.False(t, got.Valid)
	assert.Equal(t, []string{"Validation Plan"}, got.MissingSections)
	assert.Equal(t, "Ship the thing.", got.ExtractedSections["Goals"])
	assert.Equal(t, "Not the other thing.", got.ExtractedSections["Non-Goals"])
}

func TestValidateStructure_AllPresent(t *testing.T) {
	text := "## Goals\n\na\n\n## Non-Goals\n\nb\n\n## Validation Plan\n\nc\n"

	got := ValidateStructure(text, []string{"Goals", "Non-Goals", "Validation Plan"})

	assert.True(t, got.Valid)
	assert.Empty(t, got.MissingSections)
}

func TestValidateStructure_EmptySectionIsMissing(t *testing.T) {
	// A heading with nothing under it is as useless as no heading at all.
	text := "## Goals\n\n## Non-Goals\n\nreal content\n"

	got := ValidateStructure(text, []string{"Goals", "Non-Goals"})

	assert.False(t, got.Valid)
	assert.Equal(t, []string{"Goals"}, got.MissingSections)
}

func TestExtractSections_HeadingNormalization(t *testing.T) {
	cases := []struct {
		name    string
		heading string
	}{
		{"plain", "## Validation Plan"},
		{"different level", "### Validation Plan"},
		{"lowercase", "## validation plan"},
		{"bold", "## **Validation Plan**"},
		{"numbered", "## 5. Validation Plan"},
		{"numbered paren", "## 5) Validation Plan"},
		{"trailing colon", "## Validation Plan:"},
		{"bold with colon", "## **Validation Plan:**"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text := tc.heading + "\n\nrun the tests\n"
			got := ExtractSections(text, []string{"Validation Plan"})
			require.Contains(t, got, "Validation Plan")
			assert.Equal(t, "run the tests", got["Validation Plan"])
		})
	}
}

func TestExtractSections_BoundaryAtSameOrShallowerHeading(t *testing.T) {
	text := "## Goals\n\nfirst line\n\n### Details\n\nsub content stays inside\n\n## Non-Goals\n\nafter\n"

	got := ExtractSections(text, []string{"Goals", "Non-Goals"})

	// The deeper, unexpected heading belongs to the Goals section; the
	// sibling h2 closes it.
	assert.Equal(t, "first line\n\n### Details\n\nsub content stays inside", got["Goals"])
	assert.Equal(t, "after", got["Non-Goals"])
}

func TestExtractSections_DeeperExpectedHeadingClosesSection(t *testing.T) {
	text := "## Goals\n\ngoal text\n\n### Non-Goals\n\nnon-goal text\n"

	got := ExtractSections(text, []string{"Goals", "Non-Goals"})

	assert.Equal(t, "goal text", got["Goals"])
	assert.Equal(t, "non-goal text", got["Non-Goals"])
}

func TestExtractSections_FirstOccurrenceWins(t *testing.T) {
	text := "## Goals\n\noriginal\n\n## Goals\n\nduplicate\n"

	got := ExtractSections(text, []string{"Goals"})

	assert.Equal(t, "original", got["Goals"])
}

func TestExtractSections_IgnoresHeadingsInCodeFences(t *testing.T) {
	text := "## Goals\n\nsome prose\n\n```markdown\n## Non-Goals\n\nthis is example output, not a section\n```\n\nmore prose\n"

	got := ExtractSections(text, []string{"Goals", "Non-Goals"})

	require.Contains(t, got, "Goals")
	assert.NotContains(t, got, "Non-Goals")
	assert.Contains(t, got["Goals"], "more prose", "fenced pseudo-heading must not end the section")
}

func TestExtractSections_UnclosedFenceRunsToEnd(t *testing.T) {
	text := "## Goals\n\nbefore\n\n```\n## Non-Goals\nstill inside the fence\n"

	got := ExtractSections(text, []string{"Goals", "Non-Goals"})

	assert.NotContains(t, got, "Non-Goals")
	assert.Contains(t, got["Goals"], "still inside the fence")
}

func TestExtractSections_TildeFence(t *testing.T) {
	text := "## Goals\n\n~~~\n## Non-Goals\n~~~\n\ndone\n"

	got := ExtractSections(text, []string{"Goals", "Non-Goals"})

	assert.NotContains(t, got, "Non-Goals")
}

func TestExtractSections_LastSectionRunsToEnd(t *testing.T) {
	text := "## Validation Plan\n\nstep one\nstep two"

	got := ExtractSections(text, []string{"Validation Plan"})

	assert.Equal(t, "step one\nstep two", got["Validation Plan"])
}

func TestExtractSections_NoHeadings(t *testing.T) {
	got := ExtractSections("just a paragraph of prose with no structure", []string{"Goals"})
	assert.Empty(t, got)
}

func TestValidateStructure_EmptyText(t *testing.T) {
	got := ValidateStructure("", []string{"Goals", "Non-Goals"})
	assert.False(t, got.Valid)
	assert.Equal(t, []string{"Goals", "Non-Goals"}, got.MissingSections)
}
