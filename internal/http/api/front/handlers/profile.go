package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/SnippetRelay/internal/gateway"
)

// ProfileHandler serves the caller's identity and current limits.
type ProfileHandler struct {
	svc *gateway.Service
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(svc *gateway.Service) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

// Get returns the subject, email and a fresh quota decision.
func (h *ProfileHandler) Get(c *gin.Context) {
	subjectID := getSubjectID(c)
	if subjectID == "" {
		abortDetail(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var email any
	if value := getEmail(c); value != "" {
		email = value
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": subjectID,
		"email":   email,
		"limits":  h.svc.Limits(c.Request.Context(), subjectID),
	})
}
