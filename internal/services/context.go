package services

import "context"

type contextKey string

const (
	indexTypeKey contextKey = "index_type"
	runIDKey     contextKey = "run_id"
	requestIDKey contextKey = "request_id"
)

// WithIndexType annotates context with the index type being operated on.
func WithIndexType(ctx context.Context, indexType string) context.Context {
	if indexType == "" {
		return ctx
	}
	return context.WithValue(ctx, indexTypeKey, indexType)
}

// IndexTypeFromContext returns the index type if present.
func IndexTypeFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(indexTypeKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRunID annotates context with a sync or build run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
