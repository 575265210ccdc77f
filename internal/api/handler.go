// Package api exposes the backfill controller over HTTP.
package api

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"solana-call-tracker/internal/backfill"
	"solana-call-tracker/internal/domain"
	"solana-call-tracker/internal/observability"
)

// MaxConcurrency bounds the worker count accepted by /backfill/start.
const MaxConcurrency = 100

// Controller is the job lifecycle used by the handlers.
// *backfill.Controller implements it.
type Controller interface {
	Start(ctx context.Context, opts backfill.Options) (string, error)
	Stop() bool
	Progress() domain.JobState
}

// Options configures a Handler.
type Options struct {
	APIKey       string        // required in X-API-Key for /backfill routes when set
	PushInterval time.Duration // websocket progress interval, default 1s
	Logger       *log.Logger
}

// Handler serves the control API.
type Handler struct {
	ctrl         Controller
	apiKey       string
	pushInterval time.Duration
	logger       *log.Logger
	upgrader     websocket.Upgrader
}

// New creates a Handler.
func New(ctrl Controller, opts Options) *Handler {
	h := &Handler{
		ctrl:         ctrl,
		apiKey:       opts.APIKey,
		pushInterval: opts.PushInterval,
		logger:       opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	if h.pushInterval <= 0 {
		h.pushInterval = time.Second
	}
	if h.logger == nil {
		h.logger = log.Default()
	}
	return h
}

// NewRouter returns a gin engine with recovery, tracing middleware and
// every route of h mounted.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(observability.ServiceName))
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts every route on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(observability.Handler()))

	g := r.Group("/backfill", APIKeyAuth(h.apiKey))
	g.POST("/start", h.StartBackfill)
	g.POST("/stop", h.StopBackfill)
	g.GET("/progress", h.GetProgress)
	g.GET("/progress/ws", h.StreamProgress)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// APIKeyAuth enforces the X-API-Key header. An empty key disables the check.
func APIKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		provided := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-API-Key header"})
			return
		}
		if provided != key {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid API key"})
			return
		}
		c.Next()
	}
}
