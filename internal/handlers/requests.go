package handlers

import (
	"errors"
	"io"

	"englishapp/internal/models"

	"github.com/gin-gonic/gin"
)

// RegisterRequest is the body of POST /register
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest is the body of POST /login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the user id as the client token
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// ResetPasswordRequest is the body of POST /reset-password
type ResetPasswordRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateProgressRequest is the body of POST /update-progress
type UpdateProgressRequest struct {
	UserID string  `json:"user_id" binding:"required"`
	XPGain int     `json:"xp_gain"`
	Streak *int    `json:"streak" binding:"omitempty,min=0"`
	Avatar *string `json:"avatar"`
}

// UpdateAvatarRequest is the body of POST /update-avatar. A null or missing avatar clears it.
type UpdateAvatarRequest struct {
	UserID string  `json:"userId" binding:"required"`
	Avatar *string `json:"avatar"`
}

// CacheDictionaryRequest is the body of POST /cache-dictionary
type CacheDictionaryRequest struct {
	Word         string `json:"word" binding:"required"`
	Phonetic     string `json:"phonetic"`
	WordType     string `json:"word_type"`
	Definition   string `json:"definition"`
	Examples     string `json:"examples"`
	GrammarNotes string `json:"grammar_notes"`
}

// DictionaryLookupRequest is the body of POST /gemini/chat
type DictionaryLookupRequest struct {
	Message string `json:"message"`
}

// ChatHistoryItem is one prior turn sent by the client. Both fields are loosely typed so a
// malformed turn is dropped instead of failing the request.
type ChatHistoryItem struct {
	Role    interface{} `json:"role"`
	Content interface{} `json:"content"`
}

// ChatRequest is the body of POST /ai/chat
type ChatRequest struct {
	Message string            `json:"message"`
	History []ChatHistoryItem `json:"history"`
}

// ReplyResponse carries an assistant reply or a readable failure message
type ReplyResponse struct {
	Reply string `json:"reply"`
}

// SpeakingStartRequest is the body of POST /ai/speaking/start
type SpeakingStartRequest struct {
	Topic  string `json:"topic"`
	UserID string `json:"user_id"`
}

// SpeakingFeedbackRequest is the body of POST /ai/speaking/feedback
type SpeakingFeedbackRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
}

// SpeakingSessionResponse is the body of GET /ai/speaking/session/:session_id
type SpeakingSessionResponse struct {
	Session *models.SpeakingSession `json:"session"`
	Turns   []models.SpeakingTurn   `json:"turns"`
}

// GenerateQuizRequest is the body of POST /deepseek/generate-quiz
type GenerateQuizRequest struct {
	Topic string `json:"topic"`
	Level string `json:"level"`
}

// SaveQuizRequest is the body of POST /save-quiz
type SaveQuizRequest struct {
	Topic       string             `json:"topic"`
	Level       string             `json:"level"`
	Type        string             `json:"type"`
	Question    string             `json:"question" binding:"required"`
	Options     models.QuizOptions `json:"options"`
	Answer      int                `json:"answer" binding:"min=0"`
	Explanation string             `json:"explanation"`
}

// StatusResponse is the {status, message} acknowledgement body
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// MessageResponse is the {message} acknowledgement body
type MessageResponse struct {
	Message string `json:"message"`
}

// bindOptionalJSON binds a body whose fields are all optional. An empty body leaves obj at its
// zero value instead of failing with EOF.
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
