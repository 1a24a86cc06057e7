package handlers

import (
	"context"
	"net/http"

	"englishapp/internal/middleware"
	"englishapp/internal/models"
	"englishapp/internal/observability"
	"englishapp/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles account and progress HTTP requests
type AuthHandler struct {
	userService services.UserServiceInterface
	logger      *observability.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(userService services.UserServiceInterface, logger *observability.Logger) *AuthHandler {
	return &AuthHandler{userService: userService, logger: logger}
}

// Register creates an account and answers with its snapshot
func (h *AuthHandler) Register(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "register")
	defer observability.FinishSpan(span, nil)

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeUsername(req.Username))

	user, err := h.userService.Register(ctx, req.Name, req.Username, req.Password)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Login verifies credentials; the user id doubles as the client token
func (h *AuthHandler) Login(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "login")
	defer observability.FinishSpan(span, nil)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeUsername(req.Username))

	user, err := h.userService.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeUserID(user.ID))

	if err := saveLoginSession(c, user); err != nil {
		// The token in the body is enough for the client
		h.logger.Warn(ctx, "Failed to save session", map[string]interface{}{"user_id": user.ID, "error": err.Error()})
	}

	c.JSON(http.StatusOK, LoginResponse{Token: user.ID, User: user})
}

// Logout clears the cookie session
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "logout")
	defer observability.FinishSpan(span, nil)

	if err := clearSession(c); err != nil {
		h.logger.Warn(ctx, "Failed to clear session", map[string]interface{}{"error": err.Error()})
	}
	c.JSON(http.StatusOK, StatusResponse{Status: "success", Message: "Logged out"})
}

// Me returns the snapshot of the signed-in user
func (h *AuthHandler) Me(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "me", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, nil)

	h.respondUser(c, ctx, userID)
}

// ResetPassword overwrites the password of a named account
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "reset_password")
	defer observability.FinishSpan(span, nil)

	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeUsername(req.Username))

	if err := h.userService.ResetPassword(ctx, req.Username, req.Password); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Đặt lại mật khẩu thành công"})
}

// UpdateProgress adds xp and overwrites streak and avatar when present
func (h *AuthHandler) UpdateProgress(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "update_progress")
	defer observability.FinishSpan(span, nil)

	var req UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeUserID(req.UserID))

	user, err := h.userService.UpdateProgress(ctx, models.ProgressUpdate{
		UserID: req.UserID,
		XPGain: req.XPGain,
		Streak: req.Streak,
		Avatar: req.Avatar,
	})
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateAvatar overwrites a user's avatar
func (h *AuthHandler) UpdateAvatar(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "update_avatar")
	defer observability.FinishSpan(span, nil)

	var req UpdateAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeUserID(req.UserID))

	if err := h.userService.UpdateAvatar(ctx, req.UserID, req.Avatar); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, StatusResponse{Status: "success", Message: "Avatar updated"})
}

// UserInfo returns the snapshot of a user
func (h *AuthHandler) UserInfo(c *gin.Context) {
	userID := c.Param("user_id")
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "user_info", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, nil)

	h.respondUser(c, ctx, userID)
}

func (h *AuthHandler) respondUser(c *gin.Context, ctx context.Context, userID string) {
	user, err := h.userService.GetUserByID(ctx, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if user == nil {
		StandardizeHTTPError(c, http.StatusNotFound, "User not found", "")
		return
	}
	c.JSON(http.StatusOK, user)
}
