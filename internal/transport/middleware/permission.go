package middleware

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/identity-management/internal/auth"
	"github.com/frahmantamala/identity-management/internal/role"
)

// RequireRoles allows the request through when the principal holds any of the
// named roles. It assumes the auth middleware already ran.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok || user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !user.HasAnyRole(roles...) {
				slog.Warn("access denied: user lacks required role",
					"user_id", user.ID,
					"required_roles", roles)
				http.Error(w, "Forbidden: insufficient role", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminTier restricts the route to admin-capable principals.
func RequireAdminTier() func(http.Handler) http.Handler {
	names := make([]string, 0, len(role.AdminTierRoles))
	for name := range role.AdminTierRoles {
		names = append(names, name)
	}
	return RequireRoles(names...)
}
