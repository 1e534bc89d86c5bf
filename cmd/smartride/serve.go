package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"smartride/internal/app"
	"smartride/internal/auth"
	"smartride/internal/config"
	"smartride/internal/handler"
	"smartride/internal/metrics"
	internalRedis "smartride/internal/redis"
	"smartride/internal/repository"
	"smartride/internal/repository/memory"
	"smartride/internal/repository/postgres"
	"smartride/internal/service"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

// infra holds the process-wide connections, all optional except the logger.
type infra struct {
	db          *sql.DB
	redisClient *redis.Client
	nrApp       *newrelic.Application
	logger      *logrus.Logger
}

func serve(cfg *config.Config) error {
	logger := app.NewLogger(cfg.Log)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	deps := infra{logger: logger}

	// Initialize New Relic FIRST (before database so we can instrument DB).
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err := newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize New Relic")
		} else {
			deps.nrApp = nrApp
			logger.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	if cfg.Storage.Driver == config.StoragePostgres {
		db, err := app.NewDatabase(ctx, cfg.Database, deps.nrApp)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		deps.db = db
		logger.Info("connected to PostgreSQL")

		if cfg.Redis.Addr != "" {
			redisClient, err := app.NewRedisClient(ctx, cfg.Redis, deps.nrApp)
			if err != nil {
				return fmt.Errorf("connect to redis: %w", err)
			}
			defer redisClient.Close()
			deps.redisClient = redisClient
			logger.Info("connected to Redis")
		}
	} else {
		logger.Warn("using in-memory storage, data is lost on restart")
	}

	// Wire dependencies.
	server := wireServer(deps, cfg)

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if deps.nrApp != nil {
		deps.nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
	return nil
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(deps infra, cfg *config.Config) *http.Server {
	// Initialize repositories and stores. Interfaces stay nil when their
	// backing store is not configured.
	var (
		tripRepo  repository.TripRepository
		userRepo  repository.UserRepository
		tripCache internalRedis.TripCache
		revoker   internalRedis.TokenRevoker
	)

	if deps.db != nil {
		tripRepo = postgres.NewTripRepository(deps.db)
		userRepo = postgres.NewUserRepository(deps.db)
	} else {
		tripRepo = memory.NewTripRepository()
		userRepo = memory.NewUserRepository()
	}

	if deps.redisClient != nil {
		tripCache = internalRedis.NewCacheStore(deps.redisClient)
		revoker = internalRedis.NewRevocationStore(deps.redisClient)
	} else {
		revoker = memory.NewRevocationStore()
	}

	// Metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	// Initialize services.
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := service.NewAuthService(userRepo, issuer, revoker, cfg.Auth.BcryptCost, deps.logger)
	tripService := service.NewTripService(tripRepo, tripCache, recorder, deps.logger)
	reservationService := service.NewReservationService(tripRepo, tripCache, recorder, deps.logger)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		TripHandler:        handler.NewTripHandler(tripService),
		ReservationHandler: handler.NewReservationHandler(reservationService),
		AuthHandler:        handler.NewAuthHandler(authService),
		Authenticator:      authService,
		RedisClient:        deps.redisClient,
		NewRelicApp:        deps.nrApp,
		Gatherer:           registry,
		Logger:             deps.logger,
		AllowedOrigins:     cfg.CORS.AllowedOrigins,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
