package chi

import (
	"net/http"
	"strings"
)

// exemptPaths are routes that bypass authentication.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware validates a Bearer token against the configured
// token-to-roles table and stashes the resolved roles on the request
// context for rolesFromContext. If the table is empty, authentication is
// disabled (pass-through, every request resolves to domain.RoleAny via
// rolesFromContext's zero-value fallback).
func BearerAuthMiddleware(tokens map[string][]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(tokens) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if auth == "" || !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, "missing or malformed authorization header")
				return
			}

			roles, ok := tokens[auth[len(bearerPrefix):]]
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid api token")
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithRoles(r.Context(), roles)))
		})
	}
}
