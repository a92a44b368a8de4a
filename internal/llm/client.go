// Package llm performs chat-completion calls against an
// OpenAI-compatible local endpoint with per-attempt timeouts, typed error
// classification, and exponential backoff between retries.
//
// There is no client object: ChatCompletion is a function over an explicit
// immutable Config passed per call, so no hidden state survives between
// invocations and retries are always safe to issue.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"promptforge/internal/types"
)

// Config is the complete, immutable configuration for one call. Zero
// values are filled in by withDefaults so a literal with just Endpoint and
// Model set is usable.
type Config struct {
	Endpoint string
	Model    string

	// TimeoutPerAttempt bounds each individual HTTP attempt. The overall
	// wall-clock ceiling, if any, is the deadline on the context.
	TimeoutPerAttempt time.Duration

	// MaxRetries is the number of retries beyond the first attempt.
	MaxRetries int

	InitialBackoff time.Duration
	BackoffFactor  float64
	MaxBackoff     time.Duration

	// HTTPClient overrides the transport, mainly for tests. Its Timeout
	// field is ignored; per-attempt timeouts come from the context.
	HTTPClient *http.Client

	Logger *zap.Logger
}

// Request carries the per-call completion parameters.
type Request struct {
	Messages    []types.Message
	Temperature float64
	MaxTokens   int
}

func (c Config) withDefaults() Config {
	if c.TimeoutPerAttempt <= 0 {
		c.TimeoutPerAttempt = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.BackoffFactor <= 1 {
		c.BackoffFactor = 2
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// BackoffDelay returns the sleep before retry number retry (zero-based):
// min(initial x factor^retry, max).
func BackoffDelay(cfg Config, retry int) time.Duration {
	cfg = cfg.withDefaults()
	d := cfg.InitialBackoff
	for i := 0; i < retry; i++ {
		d = time.Duration(float64(d) * cfg.BackoffFactor)
		if d >= cfg.MaxBackoff {
			return cfg.MaxBackoff
		}
	}
	if d > cfg.MaxBackoff {
		return cfg.MaxBackoff
	}
	return d
}

// ChatCompletion issues the request with retry and backoff, returning a
// typed result in every case. It never panics and never returns an error:
// transport and policy failures are reported through Success and
// ErrorKind so the calling command can degrade gracefully.
//
// Retry-eligible failures are connection errors, per-attempt timeouts,
// and 5xx responses. 4xx responses, model refusals, and structurally
// malformed responses surface on first occurrence. If the context
// deadline has expired, or would expire during a pending backoff sleep,
// the loop aborts immediately with a timeout-classified failure.
func ChatCompletion(ctx context.Context, cfg Config, req Request) types.LLMResponse {
	cfg = cfg.withDefaults()
	start := time.Now()

	body, err := json.Marshal(chatRequest{
		Model:       cfg.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return failure(cfg, start, 0, types.ErrKindInvalidResponse,
			fmt.Sprintf("marshal request: %v", err))
	}

	var lastKind types.ErrorKind
	var lastMsg string

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := BackoffDelay(cfg, attempt-1)
			if deadline, ok := ctx.Deadline(); ok && time.Now().Add(delay).After(deadline) {
				return failure(cfg, start, attempt-1, types.ErrKindTimeout,
					fmt.Sprintf("overall deadline would expire during %s backoff: %s", delay, lastMsg))
			}
			if !sleep(ctx, delay) {
				return failure(cfg, start, attempt-1, types.ErrKindTimeout,
					fmt.Sprintf("canceled during backoff: %s", lastMsg))
			}
		}

		result, kind, msg := attemptOnce(ctx, cfg, body)
		if kind == types.ErrKindNone {
			result.RetryCount = attempt
			result.LatencyMs = time.Since(start).Milliseconds()
			cfg.Logger.Debug("chat completion succeeded",
				zap.Int("retries", attempt),
				zap.Int64("latency_ms", result.LatencyMs))
			return result
		}

		cfg.Logger.Warn("chat completion attempt failed",
			zap.Int("attempt", attempt),
			zap.String("error_kind", string(kind)),
			zap.String("error", msg))

		// An expired outer context means the overall ceiling was hit,
		// regardless of how the attempt itself failed.
		if ctx.Err() != nil {
			return failure(cfg, start, attempt, types.ErrKindTimeout,
				fmt.Sprintf("overall deadline exceeded: %s", msg))
		}
		if !kind.Retryable() {
			return failure(cfg, start, attempt, kind, msg)
		}

		lastKind, lastMsg = kind, msg
		if attempt == cfg.MaxRetries {
			return failure(cfg, start, attempt, lastKind,
				fmt.Sprintf("max retries exceeded: %s", lastMsg))
		}
	}
}

// Probe issues a minimal completion to verify the endpoint is reachable
// and the model answers. Used by the doctor command.
func Probe(ctx context.Context, cfg Config) error {
	resp := ChatCompletion(ctx, cfg, Request{
		Messages:  []types.Message{{Role: "user", Content: "Hello"}},
		MaxTokens: 8,
	})
	if !resp.Success {
		return fmt.Errorf("endpoint probe failed (%s): %s", resp.ErrorKind, resp.ErrorMessage)
	}
	return nil
}

// attemptOnce performs a single HTTP attempt and classifies the outcome.
func attemptOnce(ctx context.Context, cfg Config, body []byte) (types.LLMResponse, types.ErrorKind, string) {
	attemptCtx, cancel := context.WithTimeout(ctx, cfg.TimeoutPerAttempt)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost,
		cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return types.LLMResponse{}, types.ErrKindNetwork, fmt.Sprintf("build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := cfg.HTTPClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return types.LLMResponse{}, types.ErrKindTimeout, fmt.Sprintf("request timed out: %v", err)
		}
		return types.LLMResponse{}, types.ErrKindNetwork, fmt.Sprintf("request failed: %v", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if isTimeout(err) {
			return types.LLMResponse{}, types.ErrKindTimeout, fmt.Sprintf("read response: %v", err)
		}
		return types.LLMResponse{}, types.ErrKindNetwork, fmt.Sprintf("read response: %v", err)
	}

	switch {
	case httpResp.StatusCode >= 500:
		return types.LLMResponse{}, types.ErrKindServer,
			fmt.Sprintf("server error %d: %s", httpResp.StatusCode, snippet(raw))
	case httpResp.StatusCode >= 400:
		return types.LLMResponse{}, types.ErrKindClient,
			fmt.Sprintf("client error %d: %s", httpResp.StatusCode, snippet(raw))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return types.LLMResponse{}, types.ErrKindInvalidResponse,
			fmt.Sprintf("malformed response body: %v", err)
	}
	if parsed.Error != nil {
		return types.LLMResponse{}, types.ErrKindInvalidResponse,
			fmt.Sprintf("API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return types.LLMResponse{}, types.ErrKindInvalidResponse, "response has no choices"
	}

	choice := parsed.Choices[0]
	if choice.Message.Refusal != "" || choice.FinishReason == "content_filter" {
		msg := choice.Message.Refusal
		if msg == "" {
			msg = "completion stopped by content filter"
		}
		return types.LLMResponse{}, types.ErrKindRefusal, msg
	}

	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return types.LLMResponse{}, types.ErrKindInvalidResponse, "completion content is empty"
	}

	model := parsed.Model
	if model == "" {
		model = cfg.Model
	}
	return types.LLMResponse{
		Content: content,
		Model:   model,
		Usage:   parsed.Usage,
		Success: true,
	}, types.ErrKindNone, ""
}

func failure(cfg Config, start time.Time, retries int, kind types.ErrorKind, msg string) types.LLMResponse {
	cfg.Logger.Error("chat completion failed",
		zap.String("error_kind", string(kind)),
		zap.Int("retries", retries),
		zap.String("error", msg))
	return types.LLMResponse{
		Model:        cfg.Model,
		LatencyMs:    time.Since(start).Milliseconds(),
		RetryCount:   retries,
		Success:      false,
		ErrorKind:    kind,
		ErrorMessage: msg,
	}
}

// sleep waits for d or until ctx is done. Reports whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
