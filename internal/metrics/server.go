package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"spreadwatch/internal/model"

	"github.com/gin-gonic/gin"
)

// StatusFunc returns the JSON-serialisable engine state for /status.
type StatusFunc func() any

// ServerDeps are the collaborators the HTTP server exposes.
type ServerDeps struct {
	Health  *HealthStatus
	Metrics *Metrics
	Status  StatusFunc         // optional
	History model.AlertHistory // optional
	WS      http.Handler       // optional alert stream
}

// Server runs an HTTP server exposing /metrics, /healthz, /status,
// /alerts and /ws.
type Server struct {
	deps ServerDeps
	addr string
	srv  *http.Server
}

// NewServer creates the metrics and health server.
func NewServer(addr string, deps ServerDeps) *Server {
	s := &Server{deps: deps, addr: addr}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router builds the gin engine.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}
	r.GET("/healthz", s.handleHealth)
	r.GET("/status", s.handleStatus)
	r.GET("/alerts", s.handleAlerts)
	if s.deps.WS != nil {
		r.GET("/ws", gin.WrapH(s.deps.WS))
	}
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.deps.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		return
	}
	report, code := s.deps.Health.Report()
	c.JSON(code, report)
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.deps.Status == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "status not available"})
		return
	}
	c.JSON(http.StatusOK, s.deps.Status())
}

func (s *Server) handleAlerts(c *gin.Context) {
	if s.deps.History == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "store backend keeps no alert journal"})
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1..1000"})
			return
		}
		limit = n
	}
	events, err := s.deps.History.RecentAlerts(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if events == nil {
		events = []model.AlertEvent{}
	}
	c.JSON(http.StatusOK, events)
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("http server listening", slog.String("component", "metrics"), slog.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", slog.String("component", "metrics"), slog.Any("error", err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
