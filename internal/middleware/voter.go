package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextVoterID is the key for the anonymous voter identity in gin context.
const ContextVoterID = "voter_id"

var voterReplacer = strings.NewReplacer(".", "_", ":", "_")

// VoterIDFromIP derives the voter identity from a client address.
// Two clients behind one address share an identity.
func VoterIDFromIP(ip string) string {
	return voterReplacer.Replace(ip)
}

// Voter sets ContextVoterID from the client IP as resolved by gin's trusted proxy settings.
func Voter() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextVoterID, VoterIDFromIP(c.ClientIP()))
		c.Next()
	}
}

// VoterID returns the identity set by Voter, or "" when the middleware did not run.
func VoterID(c *gin.Context) string {
	return c.GetString(ContextVoterID)
}
