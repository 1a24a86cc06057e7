package handlers

import (
	"net/http"

	"englishapp/internal/models"
	"englishapp/internal/observability"
	"englishapp/internal/services"

	"github.com/gin-gonic/gin"
)

// DictionaryHandler handles word lookups and client cache writes
type DictionaryHandler struct {
	dictionaryService services.DictionaryServiceInterface
	logger            *observability.Logger
}

// NewDictionaryHandler creates a new DictionaryHandler instance
func NewDictionaryHandler(dictionaryService services.DictionaryServiceInterface, logger *observability.Logger) *DictionaryHandler {
	return &DictionaryHandler{dictionaryService: dictionaryService, logger: logger}
}

// Lookup answers a word from the cache or the dictionary provider.
// Provider and storage failures are still 200 with a readable reply.
func (h *DictionaryHandler) Lookup(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "dictionary_lookup")
	defer observability.FinishSpan(span, nil)

	var req DictionaryLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}

	result, err := h.dictionaryService.Lookup(ctx, req.Message)
	if err != nil {
		if soft, ok := services.AsSoftReply(err); ok {
			h.logger.Warn(ctx, "Dictionary lookup degraded", map[string]interface{}{"error": soft.Error()})
			c.JSON(http.StatusOK, ReplyResponse{Reply: soft.Reply})
			return
		}
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CacheDictionary stores a client supplied definition unless the word is cached
func (h *DictionaryHandler) CacheDictionary(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "cache_dictionary")
	defer observability.FinishSpan(span, nil)

	var req CacheDictionaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeWord(req.Word))

	err := h.dictionaryService.CacheEntry(ctx, &models.DictionaryEntry{
		Word:         req.Word,
		Phonetic:     req.Phonetic,
		WordType:     req.WordType,
		Definition:   req.Definition,
		Examples:     req.Examples,
		GrammarNotes: req.GrammarNotes,
	})
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, StatusResponse{Status: "cached"})
}
