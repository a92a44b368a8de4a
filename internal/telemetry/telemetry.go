// Package telemetry defines the per-invocation observability event and
// the emitter boundary. The core only produces the payload; storage and
// format belong to whoever implements Emitter.
package telemetry

import (
	"go.uber.org/zap"

	"promptforge/internal/types"
)

// Event is emitted exactly once per pipeline invocation.
type Event struct {
	InvocationID string          `json:"invocation_id"`
	TaskKind     string          `json:"task_kind"`
	TokensIn     int             `json:"tokens_in"`
	TokensOut    int             `json:"tokens_out"`
	LatencyMs    int64           `json:"latency_ms"`
	RetryCount   int             `json:"retry_count"`
	Success      bool            `json:"success"`
	ErrorKind    types.ErrorKind `json:"error_kind,omitempty"`
}

// Emitter receives invocation events. Implementations own durability and
// format; Emit must not block the pipeline for long.
type Emitter interface {
	Emit(Event)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Emit(Event) {}

// ZapEmitter writes events as structured log lines.
type ZapEmitter struct {
	logger *zap.Logger
}

func NewZapEmitter(logger *zap.Logger) *ZapEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapEmitter{logger: logger}
}

func (e *ZapEmitter) Emit(ev Event) {
	e.logger.Info("invocation",
		zap.String("invocation_id", ev.InvocationID),
		zap.String("task_kind", ev.TaskKind),
		zap.Int("tokens_in", ev.TokensIn),
		zap.Int("tokens_out", ev.TokensOut),
		zap.Int64("latency_ms", ev.LatencyMs),
		zap.Int("retry_count", ev.RetryCount),
		zap.Bool("success", ev.Success),
		zap.String("error_kind", string(ev.ErrorKind)))
}
