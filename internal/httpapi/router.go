package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/digitallysavvy/onlocal-gateway/pkg/registry"
	"github.com/digitallysavvy/onlocal-gateway/pkg/telemetry"
)

// NewRouter builds the gin engine mounting the gateway's HTTP surface:
// the chat-completions endpoint and its OPTIONS preflight, plus a health
// check used by process supervisors.
func NewRouter(cfg Config, reg *registry.Registry, settings *telemetry.Settings) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogMiddleware())
	r.Use(corsMiddleware())
	r.Use(bodySizeLimitMiddleware(maxRequestBodyBytes))
	r.Use(rateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	server := NewServer(cfg, reg, settings)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "models": reg.ListModels()})
	})
	r.POST("/v1/chat/completions", server.handleChatCompletions)
	r.OPTIONS("/v1/chat/completions", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	return r
}
