package ctxdata

import (
	"context"

	"graderservice/internal/model"
)

type traceIDKey struct{}
type principalKey struct{}

var (
	traceIDKeyInstance   = traceIDKey{}
	principalKeyInstance = principalKey{}
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKeyInstance, traceID)
}

func GetTraceID(ctx context.Context) (string, bool) {
	v := ctx.Value(traceIDKeyInstance)
	traceID, ok := v.(string)
	return traceID, ok
}

func WithPrincipal(ctx context.Context, principal model.Principal) context.Context {
	return context.WithValue(ctx, principalKeyInstance, principal)
}

func GetPrincipal(ctx context.Context) (model.Principal, bool) {
	v := ctx.Value(principalKeyInstance)
	principal, ok := v.(model.Principal)
	if !ok || principal.IsZero() {
		return model.Principal{}, false
	}
	return principal, true
}
