package api

import (
	"context"
	"slices"
)

type keyType string

const (
	principalKey keyType = "principal"
)

// principal is the authenticated caller of a request.
type principal struct {
	Subject string
	Roles   []string
}

func (p principal) hasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// ctxWithPrincipal adds the authenticated caller to the context
func ctxWithPrincipal(ctx context.Context, p principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// ctxGetPrincipal retrieves the authenticated caller from the context
func ctxGetPrincipal(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(principalKey).(principal)
	return p, ok
}
