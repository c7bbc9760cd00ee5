// Package server hosts the agent's HTTP surface: the ingest and admin
// route groups plus metrics and health endpoints.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HealthStatus represents the health status of the server
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthChecker is a function that checks component health
type HealthChecker func() (ok bool, message string)

// Mountable is a route group a handler package registers itself on.
type Mountable interface {
	Register(rg *gin.RouterGroup)
}

// Config holds HTTP server configuration
type Config struct {
	Listen          string
	MetricsEnabled  bool
	MetricsEndpoint string
	Version         string
}

// Server serves the ingest API, the admin API, metrics and health.
type Server struct {
	mu        sync.RWMutex
	engine    *gin.Engine
	server    *http.Server
	checkers  map[string]HealthChecker
	startTime time.Time
	version   string
	log       zerolog.Logger
}

// New creates the server and mounts the handler groups: ingest under
// /ingest, admin under /api.
func New(cfg Config, ing, adm Mountable, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:    engine,
		checkers:  make(map[string]HealthChecker),
		startTime: time.Now(),
		version:   cfg.Version,
		log:       log,
	}

	if ing != nil {
		ing.Register(engine.Group("/ingest"))
	}
	if adm != nil {
		adm.Register(engine.Group("/api"))
	}
	if cfg.MetricsEnabled {
		endpoint := cfg.MetricsEndpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		engine.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}
	engine.GET("/health", s.healthHandler)
	engine.GET("/ready", s.readyHandler)
	engine.GET("/live", s.liveHandler)

	s.server = &http.Server{
		Addr:         cfg.Listen,
		Handler:      engine,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// RegisterHealthCheck registers a health checker
func (s *Server) RegisterHealthCheck(name string, checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = checker
}

// Handler exposes the underlying engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// healthHandler returns detailed health status
func (s *Server) healthHandler(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Checks:    make(map[string]string),
	}

	allHealthy := true
	for name, checker := range s.checkers {
		ok, msg := checker()
		if ok {
			status.Checks[name] = "ok"
		} else {
			status.Checks[name] = msg
			allHealthy = false
		}
	}

	code := http.StatusOK
	if !allHealthy {
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// readyHandler reports readiness: every registered checker must pass.
func (s *Server) readyHandler(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for name, checker := range s.checkers {
		if ok, msg := checker(); !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "check": name, "message": msg})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// liveHandler reports liveness: the process is up.
func (s *Server) liveHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
