package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Identity arrives from the edge proxy; this service trusts its headers and
// does no credential checking of its own.
const (
	headerUserID = "X-User-ID"
	headerAdmin  = "X-Admin"

	ctxUserID = "userID"
)

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetHeader(headerUserID)
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + headerUserID + " header"})
			return
		}
		c.Set(ctxUserID, uid)
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(headerAdmin) != "true" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
