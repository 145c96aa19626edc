package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	service string
}

// NewHealthHandler constructs a HealthHandler reporting service as its name.
func NewHealthHandler(service string) *HealthHandler {
	return &HealthHandler{service: service}
}

// Root reports that the process is up. It does not touch the store.
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": h.service})
}
