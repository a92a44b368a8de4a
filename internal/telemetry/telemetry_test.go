package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"promptforge/internal/types"
)

func TestZapEmitter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	em := NewZapEmitter(zap.New(core))

	em.Emit(Event{
		InvocationID: "abc-123",
		TaskKind:     "prp",
		TokensIn:     400,
		TokensOut:    900,
		LatencyMs:    1234,
		RetryCount:   2,
		Success:      true,
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "invocation", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "abc-123", fields["invocation_id"])
	assert.Equal(t, "prp", fields["task_kind"])
	assert.Equal(t, int64(400), fields["tokens_in"])
	assert.Equal(t, int64(2), fields["retry_count"])
	assert.Equal(t, true, fields["success"])
}

func TestZapEmitter_ErrorKind(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	em := NewZapEmitter(zap.New(core))

	em.Emit(Event{InvocationID: "x", Success: false, ErrorKind: types.ErrKindTimeout})

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, string(types.ErrKindTimeout), fields["error_kind"])
}

func TestNewZapEmitter_NilLogger(t *testing.T) {
	em := NewZapEmitter(nil)
	assert.NotPanics(t, func() { em.Emit(Event{}) })
}
