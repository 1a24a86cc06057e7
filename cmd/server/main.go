// Package main provides the main entry point for the English learning backend server.
// It sets up the HTTP server, database connections, middleware, and API routes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"englishapp/internal/config"
	"englishapp/internal/di"
	"englishapp/internal/handlers"
	"englishapp/internal/observability"
	contextutils "englishapp/internal/utils"
	"englishapp/internal/version"
)

// Application encapsulates the main application logic and can be tested
type Application struct {
	container di.ServiceContainerInterface
	server    *http.Server
}

// NewApplication wires the router from the container's services
func NewApplication(container di.ServiceContainerInterface) (*Application, error) {
	userService, err := container.GetUserService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get user service")
	}
	dictionaryService, err := container.GetDictionaryService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get dictionary service")
	}
	chatService, err := container.GetChatService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get chat service")
	}
	speakingService, err := container.GetSpeakingService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get speaking service")
	}
	quizService, err := container.GetQuizService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get quiz service")
	}

	cfg := container.GetConfig()
	router := handlers.NewRouter(
		cfg,
		container.GetSchemaManager(),
		userService,
		dictionaryService,
		chatService,
		speakingService,
		quizService,
		container.GetLogger(),
	)

	return &Application{
		container: container,
		server: &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: config.DefaultHTTPTimeout,
		},
	}, nil
}

// Run serves until the context is cancelled or the listener fails
func (a *Application) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErr:
		return contextutils.WrapError(err, "server failed")
	}
}

// Shutdown drains in-flight requests, then releases the container
func (a *Application) Shutdown(ctx context.Context) error {
	httpErr := a.server.Shutdown(ctx)
	return errors.Join(httpErr, a.container.Shutdown(ctx))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.OpenTelemetry.ServiceVersion = version.Version

	providers, err := observability.SetupObservability(&cfg.OpenTelemetry, cfg.OpenTelemetry.ServiceName, observability.ParseLevel(cfg.Server.LogLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	logger := providers.Logger
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error shutting down observability: %v\n", err)
		}
	}()

	logger.Info(ctx, "Starting english backend", map[string]interface{}{
		"port":    cfg.Server.Port,
		"version": version.Version,
		"commit":  version.Commit,
	})

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err)
		os.Exit(1)
	}

	app, err := NewApplication(container)
	if err != nil {
		logger.Error(ctx, "Failed to create application", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "Application failed", err)
	} else {
		logger.Info(context.Background(), "Received shutdown signal, shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Error during application shutdown", err)
		return
	}
	logger.Info(shutdownCtx, "Shutdown completed successfully")
}
