package middleware

import (
	"net/http"
	"slices"
)

// RequireRole lets a request through only when the caller, as set by Auth, holds one
// of the given roles.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := r.Context().Value(RoleKey).(string)
			if !ok {
				http.Error(w, "Could not retrieve user role from context", http.StatusInternalServerError)
				return
			}
			if !slices.Contains(allowed, role) {
				http.Error(w, "Forbidden: You do not have the required permissions for this action", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
