package handlers

import (
	"net/http"

	"englishapp/internal/models"
	"englishapp/internal/observability"
	"englishapp/internal/services"

	"github.com/gin-gonic/gin"
)

// QuizHandler handles quiz generation and manual question saves
type QuizHandler struct {
	quizService services.QuizServiceInterface
	logger      *observability.Logger
}

// NewQuizHandler creates a new QuizHandler instance
func NewQuizHandler(quizService services.QuizServiceInterface, logger *observability.Logger) *QuizHandler {
	return &QuizHandler{quizService: quizService, logger: logger}
}

// GenerateQuiz returns a batch of questions for a topic and level
func (h *QuizHandler) GenerateQuiz(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "generate_quiz")
	defer observability.FinishSpan(span, nil)

	var req GenerateQuizRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		HandleBindError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeTopic(req.Topic), observability.AttributeLevel(req.Level))

	result, err := h.quizService.GenerateQuiz(ctx, req.Topic, req.Level)
	if err != nil {
		h.logger.Error(ctx, "Quiz generation failed", err, map[string]interface{}{"topic": req.Topic, "level": req.Level})
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, StatusResponse{Status: "error", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// SaveQuiz stores one question as submitted
func (h *QuizHandler) SaveQuiz(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "save_quiz")
	defer observability.FinishSpan(span, nil)

	var req SaveQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}

	err := h.quizService.SaveQuiz(ctx, &models.QuizQuestion{
		Topic:       req.Topic,
		Level:       req.Level,
		Type:        req.Type,
		Question:    req.Question,
		Options:     req.Options,
		Answer:      req.Answer,
		Explanation: req.Explanation,
	})
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, StatusResponse{Status: "quiz saved"})
}
