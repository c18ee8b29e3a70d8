// Package middleware provides the request-time authentication gate.
//
// Authenticate is deliberately non-terminating: it verifies whatever token
// the request carries and attaches the resulting identity, but it never
// rejects a request itself, so public routes pass through untouched.
// RequireAuth is the terminating gate placed on protected routes; it hands
// rejected requests to the configured entry point.
package middleware

import (
	"context"
	"net/http"

	authgate "github.com/pressops/authgate"
	"github.com/pressops/authgate/token"
)

type identityContextKey struct{}

// WithIdentity attaches an authenticated identity to ctx.
func WithIdentity(ctx context.Context, id authgate.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity attached by Authenticate.
func IdentityFromContext(ctx context.Context) (authgate.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(authgate.Identity)
	return id, ok
}

// Authenticate extracts the access token from the configured header,
// validates it (signature, embedded expiry, store-side liveness), and on
// success attaches the identity to the request context. On a missing header
// or any validation failure — including a store outage, which fails closed —
// the request continues unauthenticated and the downstream RequireAuth gate
// rejects it. The filter never reports why a token was rejected.
func Authenticate(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(engine.Headers().Access)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := engine.Validate(r.Context(), raw, token.Access)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// EntryPoint responds to requests that reached a protected route without an
// authenticated identity.
type EntryPoint func(w http.ResponseWriter, r *http.Request)

func defaultEntryPoint(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"result":"fail","msg":"unauthorized"}`))
}

// RequireAuth terminates requests that carry no authenticated identity,
// delegating the response to entry (or a plain 401 envelope when nil).
func RequireAuth(entry EntryPoint) func(http.Handler) http.Handler {
	if entry == nil {
		entry = defaultEntryPoint
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFromContext(r.Context()); !ok {
				entry(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
