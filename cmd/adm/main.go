// Package main provides the main entry point for the English learning backend admin CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"englishapp/cmd/adm/commands"
	"englishapp/internal/config"
	"englishapp/internal/di"
	"englishapp/internal/observability"
	"englishapp/internal/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	// The admin tool talks to the database only; telemetry exporters stay off
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	providers, err := observability.SetupObservability(&cfg.OpenTelemetry, "english-admin", zapcore.ErrorLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		return 1
	}
	logger := providers.Logger
	defer func() { _ = providers.Shutdown(ctx) }()

	container := di.NewServiceContainer(cfg, logger)
	db, err := container.GetSchemaManager().Open(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	if err := container.InitializeWithDB(ctx, db); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize services: %v\n", err)
		return 1
	}
	defer func() {
		if err := container.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}()

	rootCmd, err := newRootCmd(container)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build commands: %v\n", err)
		return 1
	}
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(container di.ServiceContainerInterface) (*cobra.Command, error) {
	userService, err := container.GetUserService()
	if err != nil {
		return nil, err
	}
	quizService, err := container.GetQuizService()
	if err != nil {
		return nil, err
	}
	quizBank, err := container.GetQuizBank()
	if err != nil {
		return nil, err
	}

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "English learning backend administration tool",
		Long: `English learning backend administration tool

Provides commands for schema migrations, user management and the quiz question bank.`,
		Version:      version.Get("english-admin").String(),
		SilenceUsage: true,
	}

	cfg := container.GetConfig()
	logger := container.GetLogger()
	rootCmd.AddCommand(commands.DatabaseCommands(container.GetSchemaManager(), logger, container.GetDatabase(), cfg.Database.URL))
	rootCmd.AddCommand(commands.UserCommands(userService, logger))
	rootCmd.AddCommand(commands.QuizCommands(quizService, quizBank, logger))

	return rootCmd, nil
}
