package web

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// sessionUserKey holds the authenticated email in the session
	sessionUserKey = "usuario"
	sessionMaxAge  = 7 * 24 * time.Hour
	userContextKey = "user"
)

// SessionRequired redirects requests without a session identity to the login form
func (s *WebServer) SessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := s.sessionUser(c)
		if user == "" {
			c.Redirect(http.StatusFound, "/identificarse")
			c.Abort()
			return
		}

		// Store user in context for handlers
		c.Set(userContextKey, user)
		c.Next()
	}
}

// sessionUser returns the email stored in the session, empty when anonymous.
// Behind SessionRequired the identity is read from the request context.
func (s *WebServer) sessionUser(c *gin.Context) string {
	if user := c.GetString(userContextKey); user != "" {
		return user
	}
	if user, ok := sessions.Default(c).Get(sessionUserKey).(string); ok {
		return user
	}
	return ""
}

// setSessionUser records email as the session identity
func (s *WebServer) setSessionUser(c *gin.Context, email string) {
	session := sessions.Default(c)
	session.Set(sessionUserKey, email)
	if err := session.Save(); err != nil {
		s.requestLogger(c).Error("failed to save session", zap.Error(err))
	}
}

// clearSessionUser removes the session identity
func (s *WebServer) clearSessionUser(c *gin.Context) {
	session := sessions.Default(c)
	session.Delete(sessionUserKey)
	if err := session.Save(); err != nil {
		s.requestLogger(c).Error("failed to save session", zap.Error(err))
	}
}
