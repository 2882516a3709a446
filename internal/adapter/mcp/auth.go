package mcp

import (
	"context"
	"net/http"
	"strings"
)

type bearerCtxKey struct{}

// WithBearerFromRequest copies the request's bearer credential into the
// context so the dispatch pipeline can resolve a principal per call.
// Authentication itself happens inside dispatch, keeping the error payload
// shape identical for every failure class.
func WithBearerFromRequest(ctx context.Context, r *http.Request) context.Context {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ctx
	}
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == auth {
		// No "Bearer " prefix: treat the header as a raw credential.
		token = auth
	}
	return context.WithValue(ctx, bearerCtxKey{}, token)
}

// BearerFromContext returns the caller's bearer credential, if any.
func BearerFromContext(ctx context.Context) string {
	token, _ := ctx.Value(bearerCtxKey{}).(string)
	return token
}

// ContextWithBearer injects a credential directly; used by tests.
func ContextWithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerCtxKey{}, token)
}
