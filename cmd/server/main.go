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
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	tc "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/cipulse/cipulse-api/internal/config"
	"github.com/cipulse/cipulse-api/internal/github"
	"github.com/cipulse/cipulse-api/internal/handlers"
	"github.com/cipulse/cipulse-api/internal/middleware"
	"github.com/cipulse/cipulse-api/internal/migration"
	"github.com/cipulse/cipulse-api/internal/notification"
	"github.com/cipulse/cipulse-api/internal/repository"
	"github.com/cipulse/cipulse-api/internal/routes"
	"github.com/cipulse/cipulse-api/internal/stats"
	"github.com/cipulse/cipulse-api/internal/temporal"
	"github.com/cipulse/cipulse-api/internal/temporal/activities"
	"github.com/cipulse/cipulse-api/internal/temporal/workflows"
	"github.com/cipulse/cipulse-api/internal/token"
	syncworker "github.com/cipulse/cipulse-api/internal/worker"
)

type application struct {
	config         *config.Config
	db             *sql.DB
	temporalClient tc.Client
	logger         zerolog.Logger
	notifications  notification.Service
	clients        stats.ClientFactory
	resolver       *token.Resolver
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	temporalLogger := temporal.NewTemporalAdapter(logger)

	gooseAdapter := migration.NewGooseAdapter(logger)
	goose.SetLogger(gooseAdapter)

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

	// Initialize notification service. Delivery channels are optional; the
	// service persists notifications regardless.
	var notifiers []notification.Notifier
	if len(cfg.Email.AlertRecipients) > 0 {
		emailNotifier, err := notification.NewEmailNotifier(cfg.Email, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure email notifier")
		}
		notifiers = append(notifiers, emailNotifier)
	}
	notifiers = append(notifiers, notification.NewFirebaseNotifier(cfg.Firebase, logger))

	notificationRepo := repository.NewNotificationRepository(db)
	notificationService := notification.NewService(notificationRepo, logger, notifiers...)

	// Initialize Temporal client.
	temporalClient, err := tc.Dial(tc.Options{
		Logger: temporalLogger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Unable to create Temporal client")
	}
	defer temporalClient.Close()

	// GitHub API responses are cached per process; every per-token client
	// shares the same cache.
	responseCache := github.NewResponseCache(cfg.GitHub.CacheTTL)
	clientFactory := func(accessToken string) github.Client {
		return github.NewClient(accessToken,
			github.WithBaseURL(cfg.GitHub.APIBaseURL),
			github.WithCache(responseCache),
		)
	}

	// Create the application instance.
	app := &application{
		config:         cfg,
		db:             db,
		temporalClient: temporalClient,
		logger:         logger,
		notifications:  notificationService,
		clients:        clientFactory,
		resolver:       token.NewResolver(repository.NewTokenRepository(db), logger),
	}

	// Start the Temporal worker in a separate goroutine.
	temporalWorker := app.startTemporalWorker(logger)

	// Start the periodic sync scheduler.
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	scheduler := syncworker.NewScheduler(temporalClient, cfg.Sync.Interval, logger)
	go scheduler.Start(schedulerCtx)

	// Initialize the HTTP router and middleware.
	router := app.initRouter(logger)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins([]string{"http://localhost:3000"}),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, temporalWorker, logger)

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(logger zerolog.Logger) http.Handler {
	// Repositories
	buildRepo := repository.NewBuildRepository(app.db)
	runRepo := repository.NewRunRepository(app.db)
	testRepo := repository.NewTestResultRepository(app.db)
	tokenRepo := repository.NewTokenRepository(app.db)
	userRepo := repository.NewUserRepository(app.db)
	tenantRepo := repository.NewTenantRepository(app.db)
	inviteRepo := repository.NewInviteRepository(app.db)

	// Mailer for invites
	inviteMailer, err := notification.NewSMTPInviteMailer(app.config.Email)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure invite mailer")
	}

	statsService := stats.NewService(buildRepo, runRepo, testRepo, app.resolver, app.clients, logger)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, app.config.JWTSecret, logger)
	buildHandler := handlers.NewBuildHandler(buildRepo, statsService, app.temporalClient, logger)
	tokenHandler := handlers.NewTokenHandler(tokenRepo, logger)
	tenantHandler := handlers.NewTenantHandler(tenantRepo, userRepo, logger)
	inviteHandler := handlers.NewInviteHandler(inviteRepo, tenantRepo, userRepo, inviteMailer, app.config.Email.InviteURLTemplate, logger)
	notificationHandler := handlers.NewNotificationHandler(app.notifications, logger)
	healthHandler := handlers.NewHealthHandler(app.db)

	return routes.NewRouter(authHandler, buildHandler, tokenHandler, tenantHandler, inviteHandler, notificationHandler, healthHandler)
}

func (app *application) startTemporalWorker(logger zerolog.Logger) worker.Worker {
	activityImpl := &activities.Activities{
		BuildRepo:     repository.NewBuildRepository(app.db),
		RunRepo:       repository.NewRunRepository(app.db),
		TestRepo:      repository.NewTestResultRepository(app.db),
		Resolver:      app.resolver,
		Clients:       app.clients,
		Notifications: app.notifications,
	}

	w := worker.New(app.temporalClient, temporal.TaskQueueName, worker.Options{})

	w.RegisterWorkflow(workflows.SyncWorkflow)
	w.RegisterActivity(activityImpl)

	// Start the worker in a goroutine so it doesn't block.
	go func() {
		logger.Info().Msg("Starting Temporal worker...")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("Unable to start worker")
		}
	}()

	return w
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, temporalWorker worker.Worker, logger zerolog.Logger) {
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

	// Stop the Temporal worker.
	logger.Info().Msg("Stopping Temporal worker...")
	temporalWorker.Stop()
	logger.Info().Msg("Temporal worker stopped.")
}
