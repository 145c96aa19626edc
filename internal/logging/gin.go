package logging

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// HeaderRequestID carries the request correlation id in both directions.
const HeaderRequestID = "X-Request-ID"

const ginRequestIDKey = "requestID"

// GinSubjectKey is the gin context key holding the authenticated subject id.
const GinSubjectKey = "subjectID"

const maxRequestIDLen = 128

// SetGinRequestID stores id on the gin context.
func SetGinRequestID(c *gin.Context, id string) {
	if c == nil {
		return
	}
	c.Set(ginRequestIDKey, id)
}

// GetGinRequestID returns the request id stored on the gin context, or "".
func GetGinRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if v, ok := c.Get(ginRequestIDKey); ok {
		if id, okString := v.(string); okString {
			return id
		}
	}
	return ""
}

// RequestIDMiddleware reuses a sane client X-Request-ID or generates one, and echoes it.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		SetGinRequestID(c, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// AccessLogMiddleware emits one entry per request once the handler chain finishes.
func AccessLogMiddleware(logger log.FieldLogger) gin.HandlerFunc {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(log.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
			"request_id": GetGinRequestID(c),
		})
		if subject := c.GetString(GinSubjectKey); subject != "" {
			entry = entry.WithField("subject_id", subject)
		}
		switch {
		case status >= 500:
			entry.Error("request completed")
		case status >= 400:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	}
}
