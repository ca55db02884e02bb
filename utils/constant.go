package utils

type contextKey string

const (
	CtxTraceID contextKey = "traceID"
)

const (
	TraceID    = "traceID"
	traceIDLen = 16
)
