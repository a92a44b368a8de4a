// Package budget selects and truncates candidate context blocks to fit a
// token budget while preserving priority order. It is pure: no I/O, no
// shared state, and the same inputs always produce the same Selection.
package budget

import (
	"fmt"
	"sort"

	"promptforge/internal/types"
)

// MinFragmentTokens is the smallest truncated fragment worth including.
// Below this the block is skipped outright rather than reduced to a
// useless sliver.
const MinFragmentTokens = 50

// ExceededError reports that required context alone does not fit the
// budget. No network call is ever attempted after this: a document
// generated without its required context is worse than no document.
type ExceededError struct {
	RequiredTokens int
	TokenBudget    int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("required context (%d tokens) exceeds token budget (%d)",
		e.RequiredTokens, e.TokenBudget)
}

// Budget fits required and optional blocks into tokenBudget.
//
// Required blocks are never dropped or truncated; if their combined
// estimate exceeds the budget the call fails with *ExceededError before
// any I/O happens. Optional blocks are consumed in descending priority:
// included whole when they fit, truncated at a content boundary when they
// partially fit, skipped when the remaining budget is below
// MinFragmentTokens.
func Budget(required, optional []types.ContextBlock, tokenBudget int) (types.Selection, error) {
	var sel types.Selection

	requiredTokens := 0
	for _, b := range required {
		requiredTokens += blockTokens(b)
	}
	if requiredTokens > tokenBudget {
		return types.Selection{}, &ExceededError{
			RequiredTokens: requiredTokens,
			TokenBudget:    tokenBudget,
		}
	}

	sel.Blocks = append(sel.Blocks, required...)
	sel.TotalTokens = requiredTokens
	remaining := tokenBudget - requiredTokens

	// Callers hand optional blocks pre-sorted by descending priority; a
	// stable sort keeps that contract honest without reordering ties.
	sorted := make([]types.ContextBlock, len(optional))
	copy(sorted, optional)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	for _, b := range sorted {
		tokens := blockTokens(b)
		switch {
		case tokens <= remaining:
			sel.Blocks = append(sel.Blocks, b)
			sel.TotalTokens += tokens
			remaining -= tokens

		case remaining >= MinFragmentTokens:
			cut, truncated := truncateToTokens(b.Content, remaining)
			if !truncated {
				// Declared estimate disagreed with content; the content
				// actually fits, so take it whole.
				sel.Blocks = append(sel.Blocks, b)
				sel.TotalTokens += tokens
				remaining -= tokens
				continue
			}
			cutTokens := EstimateTokens(cut)
			if cut == "" || cutTokens < MinFragmentTokens {
				sel.SkippedIDs = append(sel.SkippedIDs, b.ID)
				continue
			}
			trimmed := b // blocks are immutable; copy before truncating
			trimmed.Content = cut
			trimmed.EstimatedTokens = cutTokens
			sel.Blocks = append(sel.Blocks, trimmed)
			sel.TruncatedIDs = append(sel.TruncatedIDs, b.ID)
			sel.TotalTokens += cutTokens
			remaining -= cutTokens

		default:
			sel.SkippedIDs = append(sel.SkippedIDs, b.ID)
		}
	}

	for _, b := range sel.Blocks {
		for _, kind := range scanSecrets(b.Content) {
			sel.SecretWarnings = append(sel.SecretWarnings,
				fmt.Sprintf("%s: possible %s", b.ID, kind))
		}
	}

	return sel, nil
}

// blockTokens returns the block's declared estimate, falling back to the
// heuristic when the caller did not supply one.
func blockTokens(b types.ContextBlock) int {
	if b.EstimatedTokens > 0 {
		return b.EstimatedTokens
	}
	return EstimateTokens(b.Content)
}
