package handlers

import (
	"englishapp/internal/middleware"
	"englishapp/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// saveLoginSession records the signed-in user in the cookie session
func saveLoginSession(c *gin.Context, user *models.User) error {
	session := sessions.Default(c)
	session.Set(middleware.UserIDKey, user.ID)
	session.Set(middleware.UsernameKey, user.Username)
	return session.Save()
}

// clearSession forgets the signed-in user
func clearSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}
