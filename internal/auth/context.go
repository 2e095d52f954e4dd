package auth

import (
	"context"

	"example.com/coursenotes/internal/identity"
)

type contextKey struct{}

func WithIdentity(ctx context.Context, who identity.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, who)
}

func FromContext(ctx context.Context) (identity.Identity, bool) {
	who, ok := ctx.Value(contextKey{}).(identity.Identity)
	return who, ok
}
