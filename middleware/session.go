package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"logisticsassist/api/utils"
)

const (
	SessionCookie = "assist_session"
	// SessionKey is the gin context key holding the session handle.
	SessionKey = "session_id"
)

// Session makes sure every request carries a session handle, minting one
// into a cookie that lives for ttl when the browser has none.
func Session(ttl time.Duration, secure bool) gin.HandlerFunc {
	maxAge := int(ttl / time.Second)
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookie)
		if err != nil || !utils.ValidSessionID(id) {
			id = utils.GenerateSessionID()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, id, maxAge, "/", "", secure, true)
		}
		c.Set(SessionKey, id)
		c.Next()
	}
}

// SessionID returns the handle Session stored on c, or "".
func SessionID(c *gin.Context) string {
	return c.GetString(SessionKey)
}
