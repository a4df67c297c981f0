package auth

import (
	"context"

	"account-service/internal/domain"
)

type principalKey struct{}

// Principal is the authenticated account attached to a request.
type Principal struct {
	User   domain.User
	Claims Claims
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
