package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptforge/internal/budget"
	"promptforge/internal/llm"
	"promptforge/internal/prompt"
	"promptforge/internal/telemetry"
	"promptforge/internal/types"
)

// captureEmitter records every telemetry event for assertions.
type captureEmitter struct {
	events []telemetry.Event
}

func (c *captureEmitter) Emit(ev telemetry.Event) {
	c.events = append(c.events, ev)
}

// prpBody is a completion carrying every section the prp task expects.
const prpBody = `## Context & Assumptions

We assume a working login page.

## Goals and Non-Goals

Ship OAuth; skip SAML.

## Ordered Implementation Steps

1. Add the provider config.

## Implementation Checklist

- [ ] provider config

## Validation Plan

Run the integration suite.
`

func chatJSON(content string) string {
	// Enough structure for the wire decoder; content arrives verbatim.
	escaped := strings.ReplaceAll(content, "\n", "\\n")
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return fmt.Sprintf(`{"model":"test-model","choices":[{"message":{"role":"assistant","content":"%s"},"finish_reason":"stop"}],"usage":{"prompt_tokens":40,"completion_tokens":60}}`, escaped)
}

func testCfg(srv *httptest.Server) llm.Config {
	return llm.Config{
		Endpoint:          srv.URL,
		Model:             "test-model",
		TimeoutPerAttempt: 2 * time.Second,
		MaxRetries:        1,
		InitialBackoff:    time.Millisecond,
		BackoffFactor:     2,
		MaxBackoff:        4 * time.Millisecond,
		HTTPClient:        srv.Client(),
	}
}

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Client().CloseIdleConnections()
		srv.Close()
	})
	return srv
}

func testInput() Input {
	return Input{
		TaskKind: prompt.TaskPRP,
		Task:     "Create a PRP for OAuth login.",
		Required: []types.ContextBlock{
			{ID: "feature", Role: types.RoleContextDoc, Content: strings.Repeat("word ", 40), Priority: types.PriorityRequired, SourceTag: "INITIAL.md"},
		},
		Optional: []types.ContextBlock{
			{ID: "rules", Role: types.RoleContextDoc, Content: strings.Repeat("word ", 40), Priority: types.PriorityPreferred, SourceTag: "CLAUDE.md"},
		},
		TokenBudget: 500,
	}
}

func TestRun_Success(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatJSON(prpBody))
	})
	emitter := &captureEmitter{}

	res, err := Run(context.Background(), testCfg(srv), emitter, nil, testInput())
	require.NoError(t, err)

	assert.NotEmpty(t, res.InvocationID)
	assert.Len(t, res.Selection.Blocks, 2)
	assert.Len(t, res.Messages, 4, "system + two blocks + task")
	require.True(t, res.Response.Success)
	assert.True(t, res.Validation.Valid, "missing: %v", res.Validation.MissingSections)
	assert.Contains(t, res.Validation.ExtractedSections, "Validation Plan")

	require.Len(t, emitter.events, 1, "exactly one event per invocation")
	ev := emitter.events[0]
	assert.Equal(t, res.InvocationID, ev.InvocationID)
	assert.Equal(t, "prp", ev.TaskKind)
	assert.Equal(t, 40, ev.TokensIn, "prompt_tokens from usage wins over the estimate")
	assert.Equal(t, 60, ev.TokensOut)
	assert.True(t, ev.Success)
}

func TestRun_BudgetExceededSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, chatJSON(prpBody))
	})
	emitter := &captureEmitter{}

	in := testInput()
	in.TokenBudget = 10 // required alone is 50 tokens

	_, err := Run(context.Background(), testCfg(srv), emitter, nil, in)

	var exceeded *budget.ExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, int32(0), hits.Load(), "a budget failure must never reach the endpoint")

	require.Len(t, emitter.events, 1)
	assert.False(t, emitter.events[0].Success)
	assert.Equal(t, types.ErrKindBudgetExceeded, emitter.events[0].ErrorKind)
}

func TestRun_TransportFailure(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	emitter := &captureEmitter{}

	res, err := Run(context.Background(), testCfg(srv), emitter, nil, testInput())

	var inv *InvocationError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, types.ErrKindServer, inv.Kind)

	// The result still carries the typed response for inspection.
	assert.False(t, res.Response.Success)
	assert.Equal(t, types.ErrKindServer, res.Response.ErrorKind)

	require.Len(t, emitter.events, 1)
	assert.False(t, emitter.events[0].Success)
	assert.Equal(t, types.ErrKindServer, emitter.events[0].ErrorKind)
	assert.Equal(t, 1, emitter.events[0].RetryCount)
}

func TestRun_StructurallyInvalidIsNotAnError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatJSON("## Goals and Non-Goals\n\nonly this section\n"))
	})

	res, err := Run(context.Background(), testCfg(srv), nil, nil, testInput())
	require.NoError(t, err, "a malformed completion is a validation outcome, not a failure")

	assert.False(t, res.Validation.Valid)
	assert.Contains(t, res.Validation.MissingSections, "Validation Plan")
	assert.Contains(t, res.Validation.MissingSections, "Context & Assumptions")
}

func TestRun_UnknownTaskKind(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	in := testInput()
	in.TaskKind = prompt.TaskKind("sonnet")

	_, err := Run(context.Background(), testCfg(srv), nil, nil, in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sonnet")
}

func TestRun_DeterministicAgainstFixedBackend(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatJSON(prpBody))
	})

	first, err := Run(context.Background(), testCfg(srv), nil, nil, testInput())
	require.NoError(t, err)
	second, err := Run(context.Background(), testCfg(srv), nil, nil, testInput())
	require.NoError(t, err)

	// Everything except the per-invocation id and measured latency must
	// match run to run.
	diff := cmp.Diff(first, second,
		cmpopts.IgnoreFields(Result{}, "InvocationID"),
		cmpopts.IgnoreFields(types.LLMResponse{}, "LatencyMs"))
	if diff != "" {
		t.Fatalf("identical inputs diverged (-first +second):\n%s", diff)
	}
	assert.NotEqual(t, first.InvocationID, second.InvocationID)
}
