package sqlstore

import (
	"context"
)

type metaKey struct{}
type skipKey struct{}

// Meta carries operational context recorded with each history entry.
type Meta struct {
	Operator string
	TraceID  string
	Reason   string
}

// WithMeta replaces the audit metadata attached to ctx.
func WithMeta(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

// WithOperator attaches an operator identifier to the context.
func WithOperator(ctx context.Context, v string) context.Context {
	m := MetaFrom(ctx)
	m.Operator = v
	return WithMeta(ctx, m)
}

// WithTraceID attaches a trace identifier.
func WithTraceID(ctx context.Context, v string) context.Context {
	m := MetaFrom(ctx)
	m.TraceID = v
	return WithMeta(ctx, m)
}

// WithReason attaches a human-readable reason for the write.
func WithReason(ctx context.Context, v string) context.Context {
	m := MetaFrom(ctx)
	m.Reason = v
	return WithMeta(ctx, m)
}

// WithSkip disables history capture for writes made with ctx.
func WithSkip(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipKey{}, true)
}

// MetaFrom returns the audit metadata attached to ctx.
func MetaFrom(ctx context.Context) Meta {
	m, _ := ctx.Value(metaKey{}).(Meta)
	return m
}

func skipped(ctx context.Context) bool {
	v, _ := ctx.Value(skipKey{}).(bool)
	return v
}
