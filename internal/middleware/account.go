package middleware

import (
	"context"
	"net/http"
)

type AccountChecker interface {
	AccountExists(ctx context.Context, username string) (bool, error)
}

// RequireAccount rejects tokens whose account no longer exists, for example
// after the database was reset or replaced by an import.
func RequireAccount(checker AccountChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, ok := UsernameFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			exists, err := checker.AccountExists(r.Context(), username)
			if err != nil {
				http.Error(w, "unable to verify account", http.StatusInternalServerError)
				return
			}
			if !exists {
				http.Error(w, "account not found", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
