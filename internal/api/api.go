// Package api provides the HTTP API for the stream scanner service.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/streamscan/stream-scanner/internal/config"
	"github.com/streamscan/stream-scanner/internal/ffmpeg"
	"github.com/streamscan/stream-scanner/internal/m3u"
	"github.com/streamscan/stream-scanner/internal/scanner"
	"github.com/streamscan/stream-scanner/internal/storage"
)

// Server represents the HTTP API server.
type Server struct {
	config     config.ServerConfig
	manager    *scanner.Manager
	presets    *scanner.PresetLoader
	repository *storage.JSONRepository
	capture    *ffmpeg.Client
	captureCfg config.FFmpegConfig
	parser     *m3u.Parser
	generator  *m3u.Generator
	logger     *zap.SugaredLogger
	router     *gin.Engine
}

// New creates a new API server.
func New(
	cfg config.ServerConfig,
	manager *scanner.Manager,
	presets *scanner.PresetLoader,
	repository *storage.JSONRepository,
	capture *ffmpeg.Client,
	captureCfg config.FFmpegConfig,
	logger *zap.SugaredLogger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:     cfg,
		manager:    manager,
		presets:    presets,
		repository: repository,
		capture:    capture,
		captureCfg: captureCfg,
		parser:     m3u.NewParser(logger),
		generator:  m3u.NewGenerator(),
		logger:     logger,
		router:     gin.New(),
	}

	s.setupRoutes()
	return s
}

// Router returns the gin router.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	// Health endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/ready", s.readyHandler)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// Scan lifecycle
		v1.POST("/scan/start", s.startScanHandler)
		v1.GET("/scan", s.listScansHandler)
		v1.GET("/scan/:id", s.scanStatusHandler)
		v1.DELETE("/scan/:id", s.cancelScanHandler)

		// Preset catalog
		v1.GET("/presets", s.listPresetsHandler)

		// Channels
		v1.GET("/channels", s.listChannelsHandler)
		v1.GET("/channels/:id", s.getChannelHandler)
		v1.PUT("/channels/:id", s.updateChannelHandler)
		v1.DELETE("/channels/:id", s.deleteChannelHandler)

		// Group statistics
		v1.GET("/groups", s.listGroupsHandler)

		// Playlist import/export
		v1.GET("/m3u/export", s.exportPlaylistHandler)
		v1.POST("/m3u/import", s.importPlaylistHandler)

		// Screenshots
		v1.POST("/screenshots", s.screenshotHandler)
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		c.Next()

		s.logger.Debugw("Request completed",
			"path", path,
			"status", c.Writer.Status(),
			"method", c.Request.Method,
		)
	}
}

// Health check handler
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "stream-scanner",
	})
}

// Readiness check handler
func (s *Server) readyHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ready",
		"service":         "stream-scanner",
		"probe_available": s.capture.Available(),
	})
}

// Start scan handler - accepts the scan request and schedules it as a
// background session.
func (s *Server) startScanHandler(c *gin.Context) {
	var req scanner.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	snapshot, err := s.manager.StartScan(req)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, scanner.ErrPresetNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, ScanStartResponse{
		ScanID: snapshot.ID,
		Status: snapshot.Status,
		Total:  snapshot.Total,
	})
}

// List scans handler
func (s *Server) listScansHandler(c *gin.Context) {
	scans := s.manager.ListScans()
	c.JSON(http.StatusOK, gin.H{
		"scans": scans,
		"count": len(scans),
	})
}

// Scan status handler
func (s *Server) scanStatusHandler(c *gin.Context) {
	snapshot, err := s.manager.GetScan(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "scan not found",
		})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// Cancel scan handler
func (s *Server) cancelScanHandler(c *gin.Context) {
	snapshot, err := s.manager.CancelScan(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "scan not found",
		})
		return
	}

	c.JSON(http.StatusOK, ScanCancelResponse{
		ScanID:    snapshot.ID,
		Status:    snapshot.Status,
		Cancelled: snapshot.Status == scanner.StatusCancelled,
	})
}

// List presets handler
func (s *Server) listPresetsHandler(c *gin.Context) {
	presets, err := s.presets.LoadAll()
	if err != nil {
		s.logger.Errorw("Failed to load presets", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to load preset catalog",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"presets": presets,
		"count":   len(presets),
	})
}
