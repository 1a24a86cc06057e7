package handlers

import (
	"net/http"

	"englishapp/internal/middleware"
	"englishapp/internal/models"
	"englishapp/internal/observability"
	"englishapp/internal/services"

	"github.com/gin-gonic/gin"
)

// AIHandler handles the teaching assistant chat and speaking practice
type AIHandler struct {
	chatService     services.ChatServiceInterface
	speakingService services.SpeakingServiceInterface
	logger          *observability.Logger
}

// NewAIHandler creates a new AIHandler instance
func NewAIHandler(chatService services.ChatServiceInterface, speakingService services.SpeakingServiceInterface, logger *observability.Logger) *AIHandler {
	return &AIHandler{
		chatService:     chatService,
		speakingService: speakingService,
		logger:          logger,
	}
}

// Chat relays a message with its history. Provider failures come back as fallback replies.
func (h *AIHandler) Chat(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "ai_chat")
	defer observability.FinishSpan(span, nil)

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}

	reply, err := h.chatService.Reply(ctx, req.Message, convertHistory(req.History))
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, ReplyResponse{Reply: reply})
}

// convertHistory keeps the turns whose role and content are both strings
func convertHistory(items []ChatHistoryItem) []models.ChatMessage {
	history := make([]models.ChatMessage, 0, len(items))
	for _, item := range items {
		role, ok := item.Role.(string)
		if !ok {
			continue
		}
		content, ok := item.Content.(string)
		if !ok {
			continue
		}
		history = append(history, models.ChatMessage{Role: role, Content: content})
	}
	return history
}

// SpeakingStart opens a practice session with generated questions
func (h *AIHandler) SpeakingStart(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "speaking_start")
	defer observability.FinishSpan(span, nil)

	var req SpeakingStartRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		HandleBindError(c, err)
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = middleware.CurrentUserID(c)
	}
	span.SetAttributes(observability.AttributeUserID(userID), observability.AttributeTopic(req.Topic))

	start, err := h.speakingService.Start(ctx, req.Topic, userID)
	if err != nil {
		if soft, ok := services.AsSoftReply(err); ok {
			c.JSON(http.StatusOK, ReplyResponse{Reply: soft.Reply})
			return
		}
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, start)
}

// SpeakingFeedback grades one answer and records the turn
func (h *AIHandler) SpeakingFeedback(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "speaking_feedback")
	defer observability.FinishSpan(span, nil)

	var req SpeakingFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeSessionID(req.SessionID))

	feedback, err := h.speakingService.Feedback(ctx, req.SessionID, req.Question, req.Answer)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, feedback)
}

// SpeakingSession returns a session with its turns, oldest first
func (h *AIHandler) SpeakingSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "speaking_session", observability.AttributeSessionID(sessionID))
	defer observability.FinishSpan(span, nil)

	session, turns, err := h.speakingService.History(ctx, sessionID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, SpeakingSessionResponse{Session: session, Turns: turns})
}
