package handlers

import (
	"context"
	"net/http"

	"englishapp/internal/observability"

	"github.com/gin-gonic/gin"
)

// SchemaEnsurer connects to the database and applies pending migrations
type SchemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// HealthHandler reports whether the database is reachable and migrated
type HealthHandler struct {
	schema SchemaEnsurer
	logger *observability.Logger
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(schema SchemaEnsurer, logger *observability.Logger) *HealthHandler {
	return &HealthHandler{schema: schema, logger: logger}
}

// Health answers 200 when the schema is in place, 503 otherwise
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "health")
	defer observability.FinishSpan(span, nil)

	if err := h.schema.EnsureSchema(ctx); err != nil {
		h.logger.Error(ctx, "Health check failed", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "db": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "connected"})
}
