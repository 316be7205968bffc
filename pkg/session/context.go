package session

import "context"

type claimsContextKey struct{}

// WithClaims stores verified session claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, c)
}

// FromContext returns the session placed in ctx by the Gate.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return c, ok && c != nil
}

// MustFromContext is FromContext for handlers mounted behind the Gate.
func MustFromContext(ctx context.Context) *Claims {
	c, ok := FromContext(ctx)
	if !ok {
		panic("session: not found in context")
	}
	return c
}
