package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsjuju-chat/backend/internal/repository"
	"whatsjuju-chat/backend/pkg/config"
	"whatsjuju-chat/backend/pkg/di"
	"whatsjuju-chat/backend/pkg/health"
	"whatsjuju-chat/backend/pkg/logger"
	"whatsjuju-chat/backend/pkg/router"
	"whatsjuju-chat/backend/shared/observability"
)

func main() {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"
	log := logger.New(logConfig)
	logger.SetGlobal(log)

	if err := cfg.Validate(); err != nil {
		log.LogError(err, "Invalid configuration")
		os.Exit(1)
	}

	log.Info("Starting application", "version", os.Getenv("APP_VERSION"), "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Observability.TracingEnabled {
		shutdown, err := observability.SetupTracing(cfg.Observability.ServiceName)
		if err != nil {
			log.LogError(err, "Tracing disabled")
		} else {
			defer shutdown(context.Background())
		}
	}

	var metricsHandler http.Handler
	if cfg.Observability.MetricsEnabled {
		metrics, err := observability.SetupMetrics(cfg.Observability.ServiceName)
		if err != nil {
			log.LogError(err, "Metrics disabled")
		} else {
			metricsHandler = metrics.Handler
			defer metrics.Provider.Shutdown(context.Background())
		}
	}

	db, err := config.NewDB(cfg)
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	if err := repository.Migrate(db); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}
	seeded, err := repository.SeedCharacters(ctx, repository.NewGormCharacterRepository(db), false)
	if err != nil {
		log.LogError(err, "Failed to seed characters")
		os.Exit(1)
	}
	if seeded > 0 {
		log.Info("Seeded default characters", "count", seeded)
	}

	container, err := di.New(ctx, db, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}
	defer container.Close()

	go container.Hub.Run(ctx)
	container.Health.Start(ctx)

	r := router.New(container)
	defer r.Close()
	// validation must be installed before the routes it guards
	if cfg.Server.OpenAPISchema != "" {
		r.AddOpenAPIValidation(cfg.Server.OpenAPISchema)
	}
	r.SetupRoutes(metricsHandler)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogError(err, "Server failed to start")
			stop()
		}
	}()

	if cfg.Server.GRPCPort != "" {
		grpcServer := health.NewGRPCServer(container.Health, cfg.Observability.ServiceName)
		lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
		if err != nil {
			log.LogError(err, "gRPC health listener failed", "port", cfg.Server.GRPCPort)
		} else {
			go func() {
				log.Info("gRPC health server starting", "port", cfg.Server.GRPCPort)
				if err := grpcServer.Serve(lis); err != nil {
					log.LogError(err, "gRPC health server stopped")
				}
			}()
			defer grpcServer.GracefulStop()
		}
	}

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	log.Info("Server exited gracefully")
}
