package observability

import (
	"errors"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"englishapp/internal/config"
	contextutils "englishapp/internal/utils"
)

// GinMiddleware creates OpenTelemetry middleware for Gin HTTP requests
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// GinMiddlewareWithErrorHandling returns otelgin followed by a handler that annotates the
// request span of failed requests with status, severity and AppError details.
func GinMiddlewareWithErrorHandling(serviceName string) []gin.HandlerFunc {
	return []gin.HandlerFunc{otelgin.Middleware(serviceName), spanErrorAttributes}
}

func spanErrorAttributes(c *gin.Context) {
	c.Next()

	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		return
	}

	statusCode := c.Writer.Status()
	if statusCode < 400 {
		return
	}

	severity := determineErrorSeverity(statusCode, c.Errors)
	errorMsg := "client error"
	if statusCode >= 500 {
		errorMsg = "server error"
	}

	var appErr *contextutils.AppError
	for _, ginErr := range c.Errors {
		if errors.As(ginErr.Err, &appErr) {
			errorMsg = appErr.Message
			break
		}
		errorMsg = ginErr.Error()
	}

	span.RecordError(errors.New(errorMsg))
	span.SetStatus(codes.Error, errorMsg)
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.String("http.method", c.Request.Method),
		attribute.String("http.path", c.Request.URL.Path),
		attribute.String("error.handler", c.HandlerName()),
		attribute.String("error.severity", severity),
	)

	if userID := sessionUserID(c); userID != "" {
		span.SetAttributes(attribute.String("error.user_id", userID))
	}
	if c.Request.ContentLength > 0 {
		span.SetAttributes(attribute.Int64("error.request_size", c.Request.ContentLength))
	}
	if appErr != nil {
		span.SetAttributes(
			attribute.String("error.code", string(appErr.Code)),
			attribute.Bool("error.retryable", contextutils.IsRetryable(appErr)),
		)
	}
	if statusCode >= 500 {
		span.SetAttributes(attribute.Bool("error.server_error", true))
	}
}

// sessionUserID reads the logged-in user from the cookie session when the session
// middleware is installed.
func sessionUserID(c *gin.Context) string {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return ""
	}
	userID, _ := sessions.Default(c).Get(config.SessionUserKey).(string)
	return userID
}

// determineErrorSeverity determines the severity level based on status code and error types
func determineErrorSeverity(statusCode int, errs []*gin.Error) string {
	for _, ginErr := range errs {
		var appErr *contextutils.AppError
		if errors.As(ginErr.Err, &appErr) {
			return string(appErr.Severity)
		}
	}

	switch {
	case statusCode >= 500:
		return string(contextutils.SeverityError)
	case statusCode >= 400:
		return string(contextutils.SeverityWarn)
	default:
		return string(contextutils.SeverityInfo)
	}
}

// RequestLogger logs one structured entry per request, at a level chosen by the status code
func RequestLogger(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  time.Since(start).Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}
		if userID := sessionUserID(c); userID != "" {
			fields["user_id"] = userID
		}

		switch {
		case statusCode >= 500:
			fields["http.error_type"] = "server_error"
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		case statusCode >= 400:
			fields["http.error_type"] = "client_error"
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		default:
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	}
}
