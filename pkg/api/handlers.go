package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"supapool/pkg/client"
	apperrors "supapool/pkg/errors"
	"supapool/pkg/health"
	"supapool/pkg/logger"
	"supapool/pkg/metrics"
	"supapool/pkg/pool"
)

// Handler encapsulates the HTTP surface over the connection pool
type Handler struct {
	pool     *pool.Pool
	monitor  *health.Monitor
	registry *metrics.Collector
	log      *logger.Logger
	username string
	password string
}

// NewHandler creates a new API handler
func NewHandler(p *pool.Pool, monitor *health.Monitor, registry *metrics.Collector, log *logger.Logger, username, password string) *Handler {
	return &Handler{
		pool:     p,
		monitor:  monitor,
		registry: registry,
		log:      log,
		username: username,
		password: password,
	}
}

// RegisterRoutes wires all endpoints onto the router. Health and metrics are
// public; the /api group requires basic auth when credentials are configured.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.handleHealth)
	router.GET("/metrics", gin.WrapH(h.registry.Handler()))

	api := router.Group("/api")
	if h.username != "" {
		api.Use(BasicAuthMiddleware(h.username, h.password))
	}
	api.GET("/pool/stats", h.handleStats)
	api.GET("/pool/status", h.handleStatus)
	api.GET("/pool/connections", h.handleConnections)
	api.GET("/pool/live", h.handleLive)
	api.POST("/pool/warmup", h.handleWarmup)
	api.POST("/pool/cleanup", h.handleCleanup)
	api.POST("/query", h.handleQuery)
}

func (h *Handler) handleHealth(c *gin.Context) {
	report := h.monitor.GetHealth(h.pool.Stats().ActiveConnections)
	code := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}

func (h *Handler) handleStats(c *gin.Context) {
	RespondSuccess(c, h.pool.Stats(), "")
}

func (h *Handler) handleStatus(c *gin.Context) {
	RespondSuccess(c, h.pool.Status(), "")
}

func (h *Handler) handleConnections(c *gin.Context) {
	RespondSuccess(c, h.pool.Connections(), "")
}

type warmupRequest struct {
	Count int `json:"count"`
}

func (h *Handler) handleWarmup(c *gin.Context) {
	var req warmupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, ErrInvalidRequest)
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	created := h.pool.WarmUp(ctx, req.Count)
	RespondSuccess(c, gin.H{"created": created}, "warm-up complete")
}

func (h *Handler) handleCleanup(c *gin.Context) {
	reaped := h.pool.CleanupIdle()
	RespondSuccess(c, gin.H{"reaped": reaped}, "cleanup complete")
}

func (h *Handler) handleQuery(c *gin.Context) {
	var req client.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidRequest)
		return
	}
	if req.Table == "" {
		RespondError(c, http.StatusBadRequest, "table is required")
		return
	}

	result, err := h.pool.Query(c.Request.Context(), req)
	if err != nil {
		h.log.ErrorWithErr("query failed", err, "table", req.Table)
		switch {
		case errors.Is(err, apperrors.ErrAcquireTimeout), errors.Is(err, apperrors.ErrPoolShutdown):
			RespondError(c, http.StatusServiceUnavailable, ErrPoolUnavailable)
		case errors.Is(err, apperrors.ErrConnectionFailed):
			RespondError(c, http.StatusBadGateway, ErrBackendFailed)
		default:
			RespondError(c, http.StatusInternalServerError, ErrInternalServer)
		}
		return
	}

	RespondSuccess(c, result, "")
}
