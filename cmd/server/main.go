package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/rs/zerolog"

	"github.com/campodata/maquinaria-api/internal/config"
	"github.com/campodata/maquinaria-api/internal/dispatch"
	"github.com/campodata/maquinaria-api/internal/handlers"
	"github.com/campodata/maquinaria-api/internal/middleware"
	"github.com/campodata/maquinaria-api/internal/migration"
	"github.com/campodata/maquinaria-api/internal/notification"
	"github.com/campodata/maquinaria-api/internal/realtime"
	"github.com/campodata/maquinaria-api/internal/repository"
	"github.com/campodata/maquinaria-api/internal/routes"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config        *config.Config
	db            *sql.DB
	logger        zerolog.Logger
	dispatcher    *dispatch.Dispatcher
	notifications notification.Service
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	migration.RunMigrations(cfg.DatabaseURL, logger)

	// Push delivery requires the VAPID key pair; refuse to start without it.
	sender, err := dispatch.NewWebPushSender(cfg.VAPID)
	if err != nil {
		logger.Fatal().Err(err).Msg("Push dispatcher configuration is incomplete")
	}

	subscriptionRepo := repository.NewSubscriptionRepository(db)
	dispatcher := dispatch.NewDispatcher(subscriptionRepo, sender, logger)

	// The notification service persists records and hands them to the push
	// dispatcher as its delivery channel.
	notificationRepo := repository.NewNotificationRepository(db)
	notificationService := notification.NewService(notificationRepo, logger, dispatcher)

	// Realtime toast feed over Postgres LISTEN/NOTIFY.
	listener, err := realtime.New(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open realtime listener")
	}

	listenerCtx, cancelListener := context.WithCancel(context.Background())
	defer cancelListener()
	go func() {
		if err := listener.Run(listenerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Realtime listener stopped")
		}
	}()

	app := &application{
		config:        cfg,
		db:            db,
		logger:        logger,
		dispatcher:    dispatcher,
		notifications: notificationService,
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter(subscriptionRepo, listener, logger)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)

	// CORS is permissive: the notify endpoint is invoked by the database
	// webhook, not by browser code.
	corsHandler := h.CORS(
		h.AllowedOrigins([]string{"*"}),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, cancelListener, logger)

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(subscriptionRepo repository.SubscriptionRepository, listener *realtime.Listener, logger zerolog.Logger) http.Handler {
	programacionRepo := repository.NewProgramacionRepository(app.db)

	authHandler := handlers.NewAuthHandler(app.db, app.config, logger)
	notifyHandler := handlers.NewNotifyHandler(app.dispatcher, logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionRepo, app.config.VAPID.PublicKey, logger)
	notificationHandler := handlers.NewNotificationHandler(app.notifications, logger)
	programacionHandler := handlers.NewProgramacionHandler(programacionRepo, app.notifications, logger)
	eventsHandler := handlers.NewEventsHandler(listener, logger)

	return routes.NewRouter(authHandler, notifyHandler, subscriptionHandler, notificationHandler, programacionHandler, eventsHandler)
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, stopListener func(), logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	// Tear down the realtime subscription.
	stopListener()
}
