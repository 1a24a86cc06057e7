package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"englishapp/internal/config"
	"englishapp/internal/middleware"
	"englishapp/internal/observability"
	"englishapp/internal/services"
	"englishapp/internal/version"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// NewRouter creates the engine with its middleware chain and every route
func NewRouter(
	cfg *config.Config,
	schema SchemaEnsurer,
	userService services.UserServiceInterface,
	dictionaryService services.DictionaryServiceInterface,
	chatService services.ChatServiceInterface,
	speakingService services.SpeakingServiceInterface,
	quizService services.QuizServiceInterface,
	logger *observability.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = false
	router.Use(middleware.ErrorRecoveryMiddleware(logger))
	router.Use(observability.GinMiddlewareWithErrorHandling(cfg.OpenTelemetry.ServiceName)...)
	router.Use(observability.RequestLogger(logger))
	router.Use(maxBodyBytes(cfg.Server.MaxBodyBytes))

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) == 0 || (len(cfg.Server.CORSOrigins) == 1 && cfg.Server.CORSOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   config.SessionSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if cfg.Server.Debug {
		sessionOpts.SameSite = http.SameSiteDefaultMode
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))
	router.Use(middleware.SessionUser())

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.IsDevelopment = cfg.Server.Debug
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	healthHandler := NewHealthHandler(schema, logger)
	authHandler := NewAuthHandler(userService, logger)
	dictionaryHandler := NewDictionaryHandler(dictionaryService, logger)
	aiHandler := NewAIHandler(chatService, speakingService, logger)
	quizHandler := NewQuizHandler(quizService, logger)

	router.GET("/health", healthHandler.Health)
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Get(cfg.OpenTelemetry.ServiceName))
	})

	// Accounts and progress
	router.POST("/register", authHandler.Register)
	router.POST("/login", authHandler.Login)
	router.POST("/logout", authHandler.Logout)
	router.GET("/me", middleware.RequireAuth(), authHandler.Me)
	router.POST("/reset-password", authHandler.ResetPassword)
	router.POST("/update-progress", authHandler.UpdateProgress)
	router.POST("/update-avatar", authHandler.UpdateAvatar)
	router.GET("/user-info/:user_id", authHandler.UserInfo)

	// Dictionary
	router.POST("/gemini/chat", dictionaryHandler.Lookup)
	router.POST("/cache-dictionary", dictionaryHandler.CacheDictionary)

	// Assistant and speaking practice
	ai := router.Group("/ai")
	{
		ai.POST("/chat", aiHandler.Chat)
		ai.POST("/speaking/start", aiHandler.SpeakingStart)
		ai.POST("/speaking/feedback", aiHandler.SpeakingFeedback)
		ai.GET("/speaking/session/:session_id", aiHandler.SpeakingSession)
	}

	// Quizzes
	router.POST("/deepseek/generate-quiz", quizHandler.GenerateQuiz)
	router.POST("/save-quiz", quizHandler.SaveQuiz)

	if cfg.Server.Debug {
		router.GET("/routes", RouteListing(cfg.OpenTelemetry.ServiceName, router))
	}

	router.NoRoute(spaFallback(cfg.Server.StaticDir))

	return router
}

// maxBodyBytes caps the size of every request body
func maxBodyBytes(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// spaFallback serves files from staticDir and answers unknown GET paths with its index.html.
// Other methods, and any path when no build is present, get a JSON 404.
func spaFallback(staticDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		rel := strings.TrimPrefix(path.Clean("/"+c.Request.URL.Path), "/")
		if rel != "" {
			candidate := filepath.Join(staticDir, filepath.FromSlash(rel))
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				c.File(candidate)
				return
			}
		}

		index := filepath.Join(staticDir, "index.html")
		if _, err := os.Stat(index); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.File(index)
	}
}
