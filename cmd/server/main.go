package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridetrack/internal/app"
	"ridetrack/internal/config"
	"ridetrack/internal/events"
	"ridetrack/internal/fare"
	"ridetrack/internal/handler"
	"ridetrack/internal/lifecycle"
	"ridetrack/internal/logging"
	internalRedis "ridetrack/internal/redis"
	"ridetrack/internal/repository"
	"ridetrack/internal/repository/postgres"
	"ridetrack/internal/repository/rest"
	"ridetrack/internal/routing"
	"ridetrack/internal/service"
	"ridetrack/internal/simulator"
	"ridetrack/internal/tracking"
)

// repositories are the ride backend collaborators for the configured mode.
type repositories struct {
	rides    repository.RideRepository
	requests repository.RideRequestRepository
	payments repository.PaymentRepository
}

// server bundles the HTTP server with the components that need an orderly
// shutdown.
type server struct {
	httpServer *http.Server
	manager    *tracking.Manager
	planner    *routing.Planner
	publisher  events.Publisher
}

func main() {
	// A missing .env is fine; the environment still applies.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST so the database and Redis clients get
	// instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Error("failed to initialize New Relic", "error", err)
		} else {
			logger.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
		}
	}

	repos, db, err := newRepositories(ctx, cfg, nrApp, logger)
	if err != nil {
		logger.Error("failed to set up ride backend", "mode", cfg.Backend.Mode, "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	srv := wireServer(cfg, repos, redisClient, nrApp, logger)

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port, "backend", cfg.Backend.Mode)
		if err := srv.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	srv.manager.Shutdown()
	srv.planner.Wait()
	if err := srv.publisher.Close(); err != nil {
		logger.Warn("event publisher close failed", "error", err)
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

// newRepositories builds the ride backend for cfg.Backend.Mode. The
// returned database is nil unless the mode is "postgres".
func newRepositories(ctx context.Context, cfg *config.Config, nrApp *newrelic.Application, logger *slog.Logger) (repositories, *sql.DB, error) {
	switch cfg.Backend.Mode {
	case "postgres":
		db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			return repositories{}, nil, err
		}
		logger.Info("connected to PostgreSQL", "host", cfg.Database.Host, "db", cfg.Database.DBName)
		return repositories{
			rides:    postgres.NewRideRepository(db),
			requests: postgres.NewRideRequestRepository(db),
			payments: postgres.NewPaymentRepository(db),
		}, db, nil
	case "http", "":
		client := rest.NewClient(cfg.Backend.BaseURL,
			rest.WithHTTPClient(app.NewHTTPClient(cfg.Backend.Timeout, nrApp)),
			rest.WithToken(cfg.Backend.Token),
			rest.WithLogger(logger),
		)
		return repositories{
			rides:    rest.NewRideRepository(client),
			requests: rest.NewRideRequestRepository(client),
			payments: rest.NewPaymentRepository(client),
		}, nil, nil
	default:
		return repositories{}, nil, errors.New("unknown BACKEND_MODE " + cfg.Backend.Mode)
	}
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(cfg *config.Config, repos repositories, redisClient *redis.Client, nrApp *newrelic.Application, logger *slog.Logger) *server {
	// Routing: OSRM behind the Redis candidate cache when Redis is on.
	var router routing.Router = routing.NewOSRMClient(cfg.Routing.BaseURL,
		routing.WithHTTPClient(app.NewHTTPClient(cfg.Routing.Timeout, nrApp)),
		routing.WithMaxAttempts(cfg.Routing.MaxAttempts),
	)

	var (
		positions   internalRedis.LocationStoreInterface
		managerOpts []tracking.ManagerOption
	)
	if redisClient != nil {
		router = routing.NewCachedRouter(router, internalRedis.NewRouteCache(redisClient, cfg.Routing.CacheTTL), logger)
		positions = internalRedis.NewLocationStore(redisClient)
		managerOpts = append(managerOpts, tracking.WithLocks(internalRedis.NewLockStore(redisClient)))
	}

	planner := routing.NewPlanner(router, repos.requests, routing.Config{
		Schedule:            fare.V1,
		FallbackSpeedKmh:    cfg.Routing.FallbackSpeedKmh,
		SnapToleranceMeters: cfg.Routing.SnapToleranceMeters,
		RecordTimeout:       cfg.Routing.RecordTimeout,
	}, logger)

	var publisher events.Publisher = events.NewLogPublisher(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		logger.Info("publishing lifecycle events to kafka", "topic", cfg.Kafka.Topic)
	}

	sim := simulator.New(simulator.Config{
		TickInterval:           cfg.Tracking.TickInterval,
		ArrivalThresholdMeters: cfg.Tracking.ArrivalThresholdMeters,
		StepDegrees:            cfg.Tracking.StepDegrees,
	}, simulator.WithLogger(logger))

	// Initialize services.
	paymentService := service.NewPaymentService(repos.payments, publisher, logger)

	manager := tracking.NewManager(tracking.Deps{
		Planner:   planner,
		Simulator: sim,
		Payments:  paymentService,
		Positions: positions,
		Publisher: publisher,
		Logger:    logger,
	}, tracking.Persisters{
		Rides:    lifecycle.PersisterFunc(repos.rides.UpdateStatus),
		Requests: lifecycle.PersisterFunc(repos.requests.UpdateStatus),
	}, tracking.Config{
		ArrivalTimeout:  cfg.Tracking.ArrivalTimeout,
		SessionLockTTL:  cfg.Tracking.SessionLockTTL,
		SubscriberQueue: cfg.Tracking.SubscriberQueue,
	}, managerOpts...)

	trackingService := service.NewTrackingService(repos.rides, repos.requests, manager, planner, positions, logger)

	// Create router.
	engine := app.NewRouter(app.RouterDeps{
		SessionHandler: handler.NewSessionHandler(trackingService),
		QuoteHandler:   handler.NewQuoteHandler(trackingService),
		PaymentHandler: handler.NewPaymentHandler(paymentService),
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
		Logger:         logger,
	})

	// WriteTimeout stays zero: session streams are long-lived and manage
	// their own write deadlines.
	return &server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           engine,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
			ReadTimeout:       cfg.Server.ReadTimeout,
		},
		manager:    manager,
		planner:    planner,
		publisher:  publisher,
	}
}
