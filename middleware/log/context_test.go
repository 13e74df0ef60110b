package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTraceID(t *testing.T) {
	t.Run("stores the given trace ID", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "my-trace")
		assert.Equal(t, "my-trace", GetTraceID(ctx))
	})

	t.Run("generates a trace ID when empty", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "")
		assert.NotEmpty(t, GetTraceID(ctx))
	})
}

func TestGetTraceID_Missing(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestNewTraceID_Unique(t *testing.T) {
	a := NewTraceID()
	b := NewTraceID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
