package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cooperative-ai/backend/internal/grpcserver"
	"cooperative-ai/backend/pkg/config"
	"cooperative-ai/backend/pkg/di"
	"cooperative-ai/backend/pkg/logger"
	"cooperative-ai/backend/pkg/router"
	"cooperative-ai/backend/shared/observability"
)

func main() {
	cfg := config.New()

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	if v := os.Getenv("APP_VERSION"); v != "" {
		router.Version = v
	}
	log.Info("Starting application",
		"version", router.Version,
		"env", cfg.Server.Env,
		"store", cfg.Store.Driver,
		"ai_provider", cfg.AI.Provider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Observability.TracingEnabled {
		shutdownTracing, err := observability.SetupTracing(cfg.Observability.ServiceName)
		if err != nil {
			log.LogError(err, "Failed to initialize tracing")
			os.Exit(1)
		}
		defer func() { _ = shutdownTracing(context.Background()) }()
	}

	container, err := di.Build(ctx, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	r, err := router.New(container)
	if err != nil {
		log.LogError(err, "Failed to initialize router")
		_ = container.Close(context.Background())
		os.Exit(1)
	}
	r.SetupRoutes()
	container.Health.Start(ctx)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := r.ReloadSchema(); err != nil {
					log.LogError(err, "Failed to reload request schema")
					continue
				}
				log.Info("Request schema reloaded", "path", cfg.Security.SchemaPath)
			}
		}
	}()

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     r.Engine,
		ReadTimeout: cfg.Server.Timeout,
		// Completions wait on the AI provider
		WriteTimeout: cfg.Server.Timeout + cfg.AI.Timeout,
	}

	var grpcSrv *grpcserver.Server
	if cfg.Server.GRPCPort != "" {
		grpcSrv = grpcserver.New(log)
		go func() {
			if err := grpcSrv.ListenAndServe(cfg.Server.GRPCPort); err != nil {
				log.LogError(err, "gRPC health server stopped")
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	if grpcSrv != nil {
		grpcSrv.SetServing(true)
	}

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serveErr:
		log.LogError(err, "Server failed")
	}

	if grpcSrv != nil {
		grpcSrv.SetServing(false)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}
	if grpcSrv != nil {
		grpcSrv.Stop()
	}
	r.Close()
	if err := container.Close(shutdownCtx); err != nil {
		log.LogError(err, "Failed to release resources")
	}

	log.Info("Server exited gracefully")
}
