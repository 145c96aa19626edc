// Package http assembles the gin engine serving the relay API.
package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/router-for-me/SnippetRelay/internal/config"
	"github.com/router-for-me/SnippetRelay/internal/gateway"
	"github.com/router-for-me/SnippetRelay/internal/http/api/front"
	"github.com/router-for-me/SnippetRelay/internal/logging"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// NewEngine builds the engine with middleware and routes for cfg's operating mode.
func NewEngine(cfg config.AppConfig, svc *gateway.Service) *gin.Engine {
	engine := gin.New()
	engine.Use(
		logging.RequestIDMiddleware(),
		logging.AccessLogMiddleware(log.StandardLogger()),
		gin.CustomRecovery(recoveryHandler),
	)

	if corsHandler := newCORS(cfg.Server.CORSAllowedOrigins); corsHandler != nil {
		engine.Use(corsHandler)
		engine.OPTIONS("/*any", corsHandler)
	}

	front.RegisterFrontRoutes(engine, svc, front.Options{
		ServiceName: cfg.Server.Name,
		Mode:        cfg.Server.Mode,
		JWTSecret:   cfg.Auth.JWTSecret,
	})

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})
	return engine
}

// newCORS returns nil when no origin is allowed.
func newCORS(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return nil
	}
	corsConfig := cors.DefaultConfig()
	if lo.Contains(origins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AddAllowHeaders("Authorization", logging.HeaderRequestID)
	corsConfig.AddExposeHeaders(logging.HeaderRequestID)
	return cors.New(corsConfig)
}

func recoveryHandler(c *gin.Context, recovered any) {
	log.WithField("request_id", logging.GetGinRequestID(c)).Errorf("panic recovered: %v", recovered)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
}
