// internal/server/server.go
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"scope-service/internal/config"
	"scope-service/internal/middleware"
	"scope-service/internal/scope"
)

// Server is the monitor HTTP server: a small read-mostly API over the
// instrument session plus a WebSocket fan-out of fresh acquisitions.
type Server struct {
	config   *config.Config
	logger   *zap.Logger
	session  *scope.Session
	hub      *Hub
	upgrader websocket.Upgrader
	http     *http.Server
}

// New creates a monitor server around an instrument session
func New(cfg *config.Config, session *scope.Session, logger *zap.Logger) *Server {
	s := &Server{
		config:   cfg,
		logger:   logger.With(zap.String("component", "server")),
		session:  session,
		hub:      NewHub(logger),
		upgrader: newUpgrader(),
	}

	s.http = &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      s.setupRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// setupRouter configures routes and middleware
func (s *Server) setupRouter() *gin.Engine {
	if !s.config.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(s.logger))
	router.Use(middleware.LoggingMiddleware(s.logger))
	router.Use(middleware.CORSMiddleware(&s.config.Server))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", s.handleHealth)
		v1.GET("/acquisition", s.handleLatest)
		v1.POST("/acquire", s.handleAcquire)
		v1.GET("/waveform.csv", s.handleWaveformCSV)
	}

	router.GET("/ws", s.handleWebSocket)

	return router
}

// Run starts the server and blocks until it stops
func (s *Server) Run() error {
	s.logger.Info("Monitor server starting", zap.String("addr", s.http.Addr))

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handleHealth reports service and instrument status
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"app":        s.config.App.Name,
		"version":    s.config.App.Version,
		"connected":  s.session.Connected(),
		"instrument": s.session.Identity(),
		"monitors":   s.hub.ClientCount(),
	})
}

// handleLatest returns the most recent acquisition
func (s *Server) handleLatest(c *gin.Context) {
	latest := s.session.Latest()
	if latest == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "no acquisition taken yet",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    latest,
	})
}

// handleAcquire runs one acquisition cycle and broadcasts the result
func (s *Server) handleAcquire(c *gin.Context) {
	acquisition, err := s.session.Acquire(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scope.ErrNotConnected) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	s.hub.Broadcast("acquisition", acquisition)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    acquisition,
	})
}

// handleWaveformCSV serves the latest acquisition's sample table
func (s *Server) handleWaveformCSV(c *gin.Context) {
	latest := s.session.Latest()
	if latest == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "no acquisition taken yet",
		})
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="waveform.csv"`)
	c.Status(http.StatusOK)

	if err := latest.WriteTable(c.Writer); err != nil {
		s.logger.Error("Failed to write waveform table", zap.Error(err))
	}
}
