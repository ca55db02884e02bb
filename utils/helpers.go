package utils

import (
	"context"
	"math/rand"
)

func generateRandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))] //nolint:gosec
	}
	return string(b)
}

// GenerateTraceID generates a random trace ID.
func GenerateTraceID() string {
	return generateRandomString(traceIDLen)
}

// WithTraceID attaches a new trace ID to the context, keeping the one already present
func WithTraceID(ctx context.Context) (context.Context, string) {
	if traceID, ok := ctx.Value(CtxTraceID).(string); ok && traceID != "" {
		return ctx, traceID
	}
	traceID := GenerateTraceID()
	return context.WithValue(ctx, CtxTraceID, traceID), traceID
}

// ContextWithTraceID sets the trace id carried by ctx
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, CtxTraceID, traceID)
}
