package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/townboard/backend/internal/auth"
	"github.com/townboard/backend/pkg/response"
)

const (
	// ContextAdminID is the key for the authenticated admin ID in gin context.
	ContextAdminID = "admin_id"
	// ContextAdminUsername is the key for the authenticated admin username in gin context.
	ContextAdminUsername = "admin_username"
	// ContextSessionID is the key for the admin session ID in gin context.
	ContextSessionID = auth.ContextSessionID
)

// AdminSession rejects requests without a live admin session.
// The token is read from the session cookie, or from a Bearer Authorization header.
func AdminSession(sessions *auth.SessionManager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c, cookieName)
		if token == "" {
			response.Unauthorized(c, "admin login required")
			c.Abort()
			return
		}
		claims, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired session")
			c.Abort()
			return
		}
		c.Set(ContextAdminID, claims.AdminID)
		c.Set(ContextAdminUsername, claims.Username)
		c.Set(ContextSessionID, claims.ID)
		c.Next()
	}
}

// AdminID returns the admin set by AdminSession.
func AdminID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(ContextAdminID)
	v, _ := id.(uuid.UUID)
	return v
}

func sessionToken(c *gin.Context, cookieName string) string {
	if v, err := c.Cookie(cookieName); err == nil && v != "" {
		return v
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
