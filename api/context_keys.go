package api

import (
	"context"
	"time"

	"yeti/core"
)

// contextKey is a private type so only this package can set these values
type contextKey string

const (
	// ContextKeyPrincipal stores the authenticated *core.Principal
	ContextKeyPrincipal contextKey = "principal"

	// ContextKeyRequestID stores the request correlation ID (string)
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeyTraceStart stores the request start time (time.Time)
	ContextKeyTraceStart contextKey = "trace_start"
)

// WithPrincipal returns a context carrying the authenticated principal
func WithPrincipal(ctx context.Context, p *core.Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// GetPrincipal extracts the authenticated principal from the context
func GetPrincipal(ctx context.Context) (*core.Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(*core.Principal)
	return p, ok && p != nil
}

// WithRequestID returns a context carrying the request ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, id)
}

// GetRequestID extracts the request ID, or "" when none was assigned
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}

// WithTraceStart records when request handling began
func WithTraceStart(ctx context.Context, start time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyTraceStart, start)
}

// GetTraceStart returns the request start time
func GetTraceStart(ctx context.Context) (time.Time, bool) {
	start, ok := ctx.Value(ContextKeyTraceStart).(time.Time)
	return start, ok
}
