package prompt

import "fmt"

// TaskKind names a generation flow. Each kind carries a fixed system
// prompt and the section set its output must contain before a caller may
// trust it.
type TaskKind string

const (
	TaskFeatureSpec      TaskKind = "feature-spec"
	TaskPRP              TaskKind = "prp"
	TaskValidationReport TaskKind = "validation-report"
	TaskHealthReport     TaskKind = "health-report"
)

type taskSpec struct {
	system   string
	sections []string
}

var taskSpecs = map[TaskKind]taskSpec{
	TaskFeatureSpec: {
		system: `You are a senior product engineer writing a feature specification.

Produce clean Markdown with exactly these sections, each as a heading:
Feature Name, Description, User Value, Scope, Key Requirements,
Technical Considerations, Open Questions.

Keep Description to 2-3 sentences. Scope must state what is included and
what is explicitly excluded.`,
		sections: []string{
			"Feature Name",
			"Description",
			"User Value",
			"Scope",
			"Key Requirements",
			"Technical Considerations",
			"Open Questions",
		},
	},
	TaskPRP: {
		system: `You are a senior software architect creating a Product Requirements Prompt (PRP).

A PRP is a comprehensive document that enables an AI coding assistant to
implement a feature correctly on the first attempt. It must be
self-contained, precise, and actionable.

Your PRP must include ALL of these sections, each as a heading:
Context & Assumptions, Goals and Non-Goals, Ordered Implementation Steps,
Implementation Checklist, Validation Plan.

Be specific about file paths, function names, and technical details when
the provided context makes them clear.`,
		sections: []string{
			"Context & Assumptions",
			"Goals and Non-Goals",
			"Ordered Implementation Steps",
			"Implementation Checklist",
			"Validation Plan",
		},
	},
	TaskValidationReport: {
		system: `You are a meticulous code reviewer assessing whether an implementation
matches its requirements document.

Produce Markdown with exactly these sections, each as a heading:
Implementation Assessment, Patterns to Promote, Issues Found,
Recommendations.

Ground every claim in the provided context; never invent files or
behavior you were not shown.`,
		sections: []string{
			"Implementation Assessment",
			"Patterns to Promote",
			"Issues Found",
			"Recommendations",
		},
	},
	TaskHealthReport: {
		system: `You are auditing a project's documentation artifacts for staleness and gaps.

Produce Markdown with exactly these sections, each as a heading:
Overall Health Score, Stale Artifacts, Missing Documentation,
Recommended Actions, Process Improvements.

Overall Health Score must contain a single integer from 1 to 10 with a
one-line justification.`,
		sections: []string{
			"Overall Health Score",
			"Stale Artifacts",
			"Missing Documentation",
			"Recommended Actions",
			"Process Improvements",
		},
	},
}

// Kinds returns all registered task kinds.
func Kinds() []TaskKind {
	return []TaskKind{TaskFeatureSpec, TaskPRP, TaskValidationReport, TaskHealthReport}
}

// Valid reports whether k is a registered task kind.
func (k TaskKind) Valid() bool {
	_, ok := taskSpecs[k]
	return ok
}

// ExpectedSections returns the section names output of this kind must
// contain. The slice is a copy; callers may mutate it freely.
func ExpectedSections(k TaskKind) ([]string, error) {
	spec, ok := taskSpecs[k]
	if !ok {
		return nil, fmt.Errorf("unknown task kind %q", k)
	}
	out := make([]string, len(spec.sections))
	copy(out, spec.sections)
	return out, nil
}
