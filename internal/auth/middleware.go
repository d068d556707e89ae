package auth

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CookieName holds the signed session token.
const CookieName = "faceattend_session"

const sessionContextKey = "admin_session"

// RequireAdmin redirects anonymous browsers to loginPath.
func RequireAdmin(m *Manager, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(CookieName)
		s, err := m.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, ErrSessionNotFound) {
				log.Printf("session lookup failed: %v", err)
			}
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}
		c.Set(sessionContextKey, s)
		c.Next()
	}
}

// CurrentSession returns the session RequireAdmin attached to c.
func CurrentSession(c *gin.Context) (Session, bool) {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return Session{}, false
	}
	s, ok := v.(Session)
	return s, ok
}
