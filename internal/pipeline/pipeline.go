// Package pipeline composes the four stages — budget, prompt, llm,
// response — into the straight-line flow a caller runs once per
// invocation. No state is shared across calls.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"promptforge/internal/budget"
	"promptforge/internal/llm"
	"promptforge/internal/prompt"
	"promptforge/internal/response"
	"promptforge/internal/telemetry"
	"promptforge/internal/types"
)

// Input is everything one invocation needs. Required and Optional blocks
// are created fresh by the caller; Optional should arrive sorted by
// descending priority.
type Input struct {
	TaskKind    prompt.TaskKind
	Task        string
	Required    []types.ContextBlock
	Optional    []types.ContextBlock
	TokenBudget int
	Temperature float64
	MaxTokens   int
}

// Result carries every stage's output back to the caller, which owns all
// persistence decisions. Validation, not raw content, is the gate for
// trusting Response.Content.
type Result struct {
	InvocationID string
	Selection    types.Selection
	Messages     []types.Message
	Response     types.LLMResponse
	Validation   types.ValidationResult
}

// InvocationError is returned when the transport gave up after the retry
// policy ran its course. The Result alongside it still carries the typed
// response so callers can inspect what happened.
type InvocationError struct {
	Kind    types.ErrorKind
	Message string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation failed (%s): %s", e.Kind, e.Message)
}

// Run executes budget -> prompt -> llm -> response and emits exactly one
// telemetry event. It returns an error for pre-network budget failures
// (*budget.ExceededError), bad inputs, and transport failures
// (*InvocationError); a structurally invalid completion is not an error —
// it is reported through Result.Validation.
func Run(ctx context.Context, cfg llm.Config, emitter telemetry.Emitter, logger *zap.Logger, in Input) (Result, error) {
	if emitter == nil {
		emitter = telemetry.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	res := Result{InvocationID: uuid.NewString()}

	expected, err := prompt.ExpectedSections(in.TaskKind)
	if err != nil {
		return res, err
	}

	sel, err := budget.Budget(in.Required, in.Optional, in.TokenBudget)
	if err != nil {
		emitter.Emit(telemetry.Event{
			InvocationID: res.InvocationID,
			TaskKind:     string(in.TaskKind),
			Success:      false,
			ErrorKind:    types.ErrKindBudgetExceeded,
		})
		return res, err
	}
	res.Selection = sel

	logger.Debug("context budgeted",
		zap.String("invocation_id", res.InvocationID),
		zap.Int("blocks", len(sel.Blocks)),
		zap.Int("total_tokens", sel.TotalTokens),
		zap.Strings("skipped", sel.SkippedIDs),
		zap.Strings("truncated", sel.TruncatedIDs))
	for _, warn := range sel.SecretWarnings {
		logger.Warn("possible secret in context block", zap.String("detail", warn))
	}

	msgs, err := prompt.Build(sel, in.TaskKind, in.Task)
	if err != nil {
		return res, err
	}
	res.Messages = msgs

	resp := llm.ChatCompletion(ctx, cfg, llm.Request{
		Messages:    msgs,
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
	})
	res.Response = resp

	tokensIn := resp.Usage.PromptTokens
	if tokensIn == 0 {
		tokensIn = sel.TotalTokens
	}
	emitter.Emit(telemetry.Event{
		InvocationID: res.InvocationID,
		TaskKind:     string(in.TaskKind),
		TokensIn:     tokensIn,
		TokensOut:    resp.Usage.CompletionTokens,
		LatencyMs:    resp.LatencyMs,
		RetryCount:   resp.RetryCount,
		Success:      resp.Success,
		ErrorKind:    resp.ErrorKind,
	})

	if !resp.Success {
		return res, &InvocationError{Kind: resp.ErrorKind, Message: resp.ErrorMessage}
	}

	res.Validation = response.ValidateStructure(resp.Content, expected)
	return res, nil
}
