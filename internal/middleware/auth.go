// Package middleware provides session and recovery middleware for the Gin web framework.
package middleware

import (
	"net/http"

	"englishapp/internal/config"
	contextutils "englishapp/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session keys for storing user information
const (
	// UserIDKey is the key used to store user ID in session
	UserIDKey = config.SessionUserKey
	// UsernameKey is the key used to store username in session
	UsernameKey = "username"
)

// SessionUser copies the signed-in user id from the cookie session into the gin and request
// contexts. Requests without a session pass through unchanged.
func SessionUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := sessionString(c, UserIDKey); ok {
			c.Set(UserIDKey, userID)
			if username, ok := sessionString(c, UsernameKey); ok {
				c.Set(UsernameKey, username)
			}
			c.Request = c.Request.WithContext(contextutils.WithUserID(c.Request.Context(), userID))
		}
		c.Next()
	}
}

// RequireAuth rejects requests that carry no signed-in user
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := sessionString(c, UserIDKey)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  string(contextutils.ErrorCodeUnauthorized),
			})
			c.Abort()
			return
		}

		c.Set(UserIDKey, userID)
		c.Request = c.Request.WithContext(contextutils.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// CurrentUserID returns the signed-in user id set by SessionUser or RequireAuth
func CurrentUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

func sessionString(c *gin.Context, key string) (string, bool) {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return "", false
	}
	value, ok := sessions.Default(c).Get(key).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
