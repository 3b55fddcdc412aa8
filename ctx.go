package accounts

import (
	"context"
)

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithPrincipal sets the Principal in the given context
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext finds the principal stored by the session middleware
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalCtxKey).(Principal)
	return p, ok && !p.IsZero()
}

// ActorFromContext resolves the actor for an operation, falling back to
// the system actor when no principal is attached.
func ActorFromContext(ctx context.Context) ActorRef {
	if p, ok := PrincipalFromContext(ctx); ok {
		return PrincipalActor(p)
	}
	return SystemActor()
}
