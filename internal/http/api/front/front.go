package front

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/SnippetRelay/internal/gateway"
	"github.com/router-for-me/SnippetRelay/internal/http/api/front/handlers"
	"github.com/router-for-me/SnippetRelay/internal/logging"
	"github.com/router-for-me/SnippetRelay/internal/security"
	log "github.com/sirupsen/logrus"
)

// Options selects the routes and identity of one deployment.
type Options struct {
	ServiceName string
	Mode        string
	JWTSecret   string
}

// RegisterFrontRoutes registers the liveness route and the bearer-protected API.
func RegisterFrontRoutes(r *gin.Engine, svc *gateway.Service, opts Options) {
	if r == nil || svc == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(opts.ServiceName)
	r.GET("/", healthHandler.Root)

	authed := r.Group("/api")
	authed.Use(userAuthMiddleware(opts.JWTSecret))

	profileHandler := handlers.NewProfileHandler(svc)
	authed.GET("/me", profileHandler.Get)

	chatHandler := handlers.NewChatHandler(svc, opts.Mode)
	authed.POST("/chat", chatHandler.Chat)
}

// userAuthMiddleware validates the bearer JWT and stores its subject and email in context.
func userAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
			return
		}

		principal, errJWT := security.ParseToken(secret, strings.TrimSpace(token))
		if errJWT != nil {
			log.WithError(errJWT).WithField("request_id", logging.GetGinRequestID(c)).Debug("bearer token rejected")
			if errors.Is(errJWT, security.ErrMissingSubject) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid or expired token"})
			return
		}

		c.Set(logging.GinSubjectKey, principal.SubjectID)
		c.Set(handlers.ContextEmailKey, principal.Email)
		c.Next()
	}
}
