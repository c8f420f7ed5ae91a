package middleware

import (
	"net/http"

	"github.com/frahmantamala/identity-management/pkg/logger"
)

// UserContext tags the request logger with the trusted upstream user id when
// a gateway supplies one. Token validation lives in the auth handler.
func UserContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := logger.With(r.Context(), "userID", userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
