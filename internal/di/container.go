// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"englishapp/internal/config"
	"englishapp/internal/database"
	"englishapp/internal/llm"
	"englishapp/internal/observability"
	"englishapp/internal/services"
	contextutils "englishapp/internal/utils"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetUserService() (services.UserServiceInterface, error)
	GetDictionaryService() (services.DictionaryServiceInterface, error)
	GetChatService() (services.ChatServiceInterface, error)
	GetSpeakingService() (services.SpeakingServiceInterface, error)
	GetQuizService() (services.QuizServiceInterface, error)
	GetQuizBank() (*services.QuizBank, error)
	GetSchemaManager() *database.Manager
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:       cfg,
		logger:    logger,
		dbManager: database.NewManager(cfg.Database, logger),
		services:  make(map[string]interface{}),
	}
}

// Initialize opens the database, applies migrations and builds every service.
// A migration failure is logged and retried later by the health check.
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	db, err := sc.dbManager.Open(ctx)
	if err != nil {
		return contextutils.WrapError(err, "failed to initialize database")
	}

	if err := sc.dbManager.EnsureSchema(ctx); err != nil {
		sc.logger.Error(ctx, "Failed to apply migrations at startup", err)
	}

	if err := sc.InitializeWithDB(ctx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			sc.logger.Error(ctx, "Failed to close database after init failure", closeErr)
		}
		return err
	}
	return nil
}

// InitializeWithDB builds every service on an already opened connection pool.
// The container owns db from here on and closes it on Shutdown.
func (sc *ServiceContainer) InitializeWithDB(ctx context.Context, db *sql.DB) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	if err := sc.initializeServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapError(err, "failed to initialize services")
	}
	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetUserService returns the user service
func (sc *ServiceContainer) GetUserService() (services.UserServiceInterface, error) {
	return GetServiceAs[services.UserServiceInterface](sc, "user")
}

// GetDictionaryService returns the dictionary service
func (sc *ServiceContainer) GetDictionaryService() (services.DictionaryServiceInterface, error) {
	return GetServiceAs[services.DictionaryServiceInterface](sc, "dictionary")
}

// GetChatService returns the chat service
func (sc *ServiceContainer) GetChatService() (services.ChatServiceInterface, error) {
	return GetServiceAs[services.ChatServiceInterface](sc, "chat")
}

// GetSpeakingService returns the speaking service
func (sc *ServiceContainer) GetSpeakingService() (services.SpeakingServiceInterface, error) {
	return GetServiceAs[services.SpeakingServiceInterface](sc, "speaking")
}

// GetQuizService returns the quiz service
func (sc *ServiceContainer) GetQuizService() (services.QuizServiceInterface, error) {
	return GetServiceAs[services.QuizServiceInterface](sc, "quiz")
}

// GetQuizBank returns the spreadsheet importer/exporter
func (sc *ServiceContainer) GetQuizBank() (*services.QuizBank, error) {
	return GetServiceAs[*services.QuizBank](sc, "quiz_bank")
}

// GetSchemaManager returns the migration manager
func (sc *ServiceContainer) GetSchemaManager() *database.Manager {
	return sc.dbManager
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown releases the connection pool and anything registered after it
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup runs shutdown functions in reverse order of registration
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errs []error
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			sc.logger.Error(ctx, "Shutdown step failed", err)
			errs = append(errs, err)
		}
	}
	sc.shutdownFuncs = nil

	if len(errs) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errs)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(ctx context.Context) error {
	providers, err := llm.NewProviders(ctx, sc.cfg, sc.logger)
	if err != nil {
		return contextutils.WrapError(err, "failed to build LLM providers")
	}

	templates, err := services.NewPromptTemplateManager()
	if err != nil {
		return err
	}

	// Core services that don't depend on other services
	userService := services.NewUserService(sc.db, sc.logger)
	sc.services["user"] = userService

	sc.services["chat"] = services.NewChatService(providers.Chat, sc.cfg.Chat, sc.logger)

	sc.services["dictionary"] = services.NewDictionaryService(
		services.NewDictionaryRepository(sc.db, sc.logger),
		providers.Dictionary, templates, sc.cfg.Dictionary, sc.logger,
	)

	// Speaking validates user ids through the user service
	sc.services["speaking"] = services.NewSpeakingService(
		services.NewSpeakingRepository(sc.db, sc.logger),
		userService, providers.Speaking, templates, sc.cfg.Speaking, sc.logger,
	)

	quizRepo := services.NewQuizRepository(sc.db, sc.logger)
	generator, err := services.NewQuizGenerator(providers.Quiz, templates, sc.cfg.Quiz, sc.logger)
	if err != nil {
		return err
	}
	sc.services["quiz"] = services.NewQuizService(quizRepo, generator, sc.cfg.Quiz, sc.logger)
	sc.services["quiz_bank"] = services.NewQuizBank(quizRepo, sc.logger)

	return nil
}
