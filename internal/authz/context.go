package authz

import (
	"context"
	"net/http"

	"github.com/campodata/maquinaria-api/internal/models"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	rolKey    contextKey = "rol"
)

// WithIdentity stores the authenticated user and role on the context.
func WithIdentity(ctx context.Context, userID string, rol models.Rol) context.Context {
	if userID != "" {
		ctx = context.WithValue(ctx, userIDKey, userID)
	}
	if rol != "" {
		ctx = context.WithValue(ctx, rolKey, rol)
	}
	return ctx
}

func UserIDFromRequest(r *http.Request) (string, bool) {
	uid, ok := r.Context().Value(userIDKey).(string)
	if !ok || uid == "" {
		return "", false
	}
	return uid, true
}

func RolFromRequest(r *http.Request) (models.Rol, bool) {
	rol, ok := r.Context().Value(rolKey).(models.Rol)
	if !ok || !models.IsValidRol(rol) {
		return "", false
	}
	return rol, true
}
