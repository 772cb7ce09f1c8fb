package core

import "context"

// Context keys for analysis options
type contextKey string

const (
	suppressHeaderKey contextKey = "suppressHeader"
	skipRunRecordKey  contextKey = "skipRunRecord"
)

// WithSuppressHeader marks the context so that analysis headers are not printed.
func WithSuppressHeader(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressHeaderKey, true)
}

// shouldSuppressHeader returns whether headers should be suppressed from context
func shouldSuppressHeader(ctx context.Context) bool {
	val := ctx.Value(suppressHeaderKey)
	if val == nil {
		return false
	}
	suppress, ok := val.(bool)
	return ok && suppress
}

// WithSkipRunRecord marks the context so that the analysis is not written to the run history.
func WithSkipRunRecord(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipRunRecordKey, true)
}

// shouldSkipRunRecord returns whether run recording is disabled for this context
func shouldSkipRunRecord(ctx context.Context) bool {
	val := ctx.Value(skipRunRecordKey)
	if val == nil {
		return false
	}
	skip, ok := val.(bool)
	return ok && skip
}
