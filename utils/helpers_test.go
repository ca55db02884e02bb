package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTraceID(t *testing.T) {
	ctx, traceID := WithTraceID(context.Background())
	assert.Len(t, traceID, traceIDLen)
	assert.Equal(t, traceID, ctx.Value(CtxTraceID))

	same, again := WithTraceID(ctx)
	assert.Equal(t, traceID, again)
	assert.Equal(t, ctx, same)
}

func TestContextWithTraceID(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), "caller-trace")
	_, traceID := WithTraceID(ctx)
	assert.Equal(t, "caller-trace", traceID)
}
