package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"englishapp/internal/observability"
	contextutils "englishapp/internal/utils"

	"github.com/gin-gonic/gin"
)

// ErrorRecoveryMiddleware turns a panic in a handler into a logged 500 JSON response
func ErrorRecoveryMiddleware(logger *observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			stackTrace := string(debug.Stack())

			panicErr, ok := recovered.(error)
			if !ok {
				panicErr = fmt.Errorf("panic: %v", recovered)
			}

			logger.Error(c.Request.Context(), "Panic recovered", panicErr, map[string]interface{}{
				"http.method": c.Request.Method,
				"http.path":   c.Request.URL.Path,
				"stacktrace":  stackTrace,
			})

			appErr := contextutils.NewAppErrorWithCause(
				contextutils.ErrorCodeInternalError,
				contextutils.SeverityFatal,
				"Internal server error",
				"A panic occurred while processing the request",
				panicErr,
			)

			// Add stack trace to error details in development
			if gin.Mode() == gin.DebugMode {
				appErr.Details = fmt.Sprintf("%s\nStack trace: %s", appErr.Details, stackTrace)
			}

			_ = c.Error(appErr)
			c.AbortWithStatusJSON(http.StatusInternalServerError, appErr.ToJSON())
		}()

		c.Next()
	}
}
