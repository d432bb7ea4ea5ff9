package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campodata/maquinaria-api/internal/authz"
	"github.com/campodata/maquinaria-api/internal/handlers"
	"github.com/campodata/maquinaria-api/internal/models"
)

// NewRouter sets up the API routes
func NewRouter(
	auth *handlers.AuthHandler,
	notify *handlers.NotifyHandler,
	subscriptions *handlers.SubscriptionHandler,
	notifications *handlers.NotificationHandler,
	programaciones *handlers.ProgramacionHandler,
	events *handlers.EventsHandler,
) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Public auth endpoints
	router.HandleFunc("/api/signup", auth.SignUp).Methods(http.MethodPost)
	router.HandleFunc("/api/login", auth.Login).Methods(http.MethodPost)

	// Webhook trigger, invoked by the database once per inserted
	// notification record. Not behind user auth.
	router.HandleFunc("/api/notify", notify.Dispatch).Methods(http.MethodPost)

	// VAPID public key for browser-side registration.
	router.HandleFunc("/api/push/public-key", subscriptions.PublicKey).Methods(http.MethodGet)

	// Authenticated API
	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.JWTMiddleware)

	api.HandleFunc("/subscriptions", subscriptions.Register).Methods(http.MethodPost)
	api.HandleFunc("/subscriptions", subscriptions.Unsubscribe).Methods(http.MethodDelete)

	// Live toast feed; one SSE session per connected client.
	api.HandleFunc("/events", events.Stream).Methods(http.MethodGet)

	api.HandleFunc("/notifications", notifications.List).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{notificationID}/leido", notifications.MarkLeido).Methods(http.MethodPut)

	api.HandleFunc("/programaciones", programaciones.Create).Methods(http.MethodPost)
	api.HandleFunc("/programaciones", programaciones.List).Methods(http.MethodGet)
	api.HandleFunc("/programaciones/reordenar", programaciones.Reordenar).Methods(http.MethodPut)
	api.HandleFunc("/programaciones/{programacionID}", programaciones.Get).Methods(http.MethodGet)
	api.HandleFunc("/programaciones/{programacionID}/iniciar", programaciones.Iniciar).Methods(http.MethodPost)
	api.HandleFunc("/programaciones/{programacionID}/finalizar", programaciones.Finalizar).Methods(http.MethodPost)

	// Approval is restricted to zone managers and admins.
	aprobacion := authz.RequireRol(models.RolJefeZona, models.RolAdmin)
	api.Handle("/programaciones/{programacionID}/aprobar",
		aprobacion(http.HandlerFunc(programaciones.Aprobar))).Methods(http.MethodPost)
	api.Handle("/programaciones/{programacionID}/rechazar",
		aprobacion(http.HandlerFunc(programaciones.Rechazar))).Methods(http.MethodPost)

	return router
}
