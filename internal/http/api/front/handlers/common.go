package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/router-for-me/SnippetRelay/internal/logging"
)

// ContextEmailKey holds the email claim of the authenticated bearer token.
const ContextEmailKey = "email"

// getSubjectID extracts the authenticated subject id from gin context.
func getSubjectID(c *gin.Context) string {
	return c.GetString(logging.GinSubjectKey)
}

// getEmail extracts the email claim from gin context; may be empty.
func getEmail(c *gin.Context) string {
	return c.GetString(ContextEmailKey)
}

// abortDetail writes a {"detail": msg} error body.
func abortDetail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}
