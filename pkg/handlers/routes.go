// Package handlers exposes the navigation graph over HTTP.
package handlers

import "net/http"

// Authenticator wraps handlers that need an authenticated caller.
// *auth.Middleware satisfies it.
type Authenticator interface {
	RequireAuth(next http.HandlerFunc) http.HandlerFunc
}

// ScopeMiddleware attaches a request-scoped database connection to the
// request context. database.WithRequestScope returns one.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// guard composes authentication and the database scope. Authentication runs
// first so rejected requests never take a pooled connection.
func guard(authMiddleware Authenticator, scopeMiddleware ScopeMiddleware) func(http.HandlerFunc) http.HandlerFunc {
	return func(h http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuth(scopeMiddleware(h))
	}
}
