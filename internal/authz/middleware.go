package authz

import (
	"net/http"

	"github.com/campodata/maquinaria-api/internal/models"
)

// RequireRol returns a middleware that ensures the requester holds one of
// the allowed roles.
func RequireRol(allowed ...models.Rol) func(http.Handler) http.Handler {
	allowedSet := make(map[models.Rol]struct{}, len(allowed))
	for _, rol := range allowed {
		allowedSet[rol] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rol, ok := RolFromRequest(r)
			if !ok {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}
			if _, ok := allowedSet[rol]; !ok {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
