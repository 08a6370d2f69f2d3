package api

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/streamscan/stream-scanner/internal/channel"
	"github.com/streamscan/stream-scanner/internal/ffmpeg"
	"github.com/streamscan/stream-scanner/internal/storage"
)

// List channels handler - supports group, online, and status filters.
func (s *Server) listChannelsHandler(c *gin.Context) {
	filters := storage.Filters{
		Group:            c.Query("group"),
		ValidationStatus: channel.ValidationStatus(c.Query("status")),
	}
	if raw := c.Query("online"); raw != "" {
		online, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "online must be a boolean",
			})
			return
		}
		filters.IsOnline = &online
	}

	channels, err := s.repository.FindAll(filters)
	if err != nil {
		s.logger.Errorw("Failed to list channels", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to read channels",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channels": channels,
		"count":    len(channels),
	})
}

// Get channel handler
func (s *Server) getChannelHandler(c *gin.Context) {
	ch, found, err := s.repository.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to read channels",
		})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "channel not found",
		})
		return
	}
	c.JSON(http.StatusOK, ch)
}

// Update channel handler - applies user edits and marks the channel as
// manually edited so later scan merges keep the flag.
func (s *Server) updateChannelHandler(c *gin.Context) {
	var req ChannelUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	ch, found, err := s.repository.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to read channels",
		})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "channel not found",
		})
		return
	}

	if req.Name != nil {
		ch.Name = *req.Name
	}
	if req.TvgID != nil {
		ch.TvgID = *req.TvgID
	}
	if req.TvgLogo != nil {
		ch.TvgLogo = *req.TvgLogo
	}
	if req.Group != nil {
		ch.Group = *req.Group
	}
	ch.ManuallyEdited = true

	updated, err := s.repository.Add(ch)
	if err != nil {
		s.logger.Errorw("Failed to store channel update", "channel_id", ch.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to store channel",
		})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete channel handler
func (s *Server) deleteChannelHandler(c *gin.Context) {
	removed, err := s.repository.Delete(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to delete channel",
		})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "channel not found",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// Export playlist handler - serializes stored channels as M3U text.
func (s *Server) exportPlaylistHandler(c *gin.Context) {
	filters := storage.Filters{Group: c.Query("group")}
	if raw := c.Query("online"); raw != "" {
		online, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "online must be a boolean",
			})
			return
		}
		filters.IsOnline = &online
	}

	channels, err := s.repository.FindAll(filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to read channels",
		})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="channels.m3u"`)
	c.Data(http.StatusOK, "audio/x-mpegurl", []byte(s.generator.Generate(channels)))
}

// Import playlist handler - parses an M3U body and stores its channels.
func (s *Server) importPlaylistHandler(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "failed to read request body",
		})
		return
	}

	playlist := s.parser.Parse(string(body))
	imported, skipped := 0, 0
	for _, entry := range playlist.Entries {
		ch, err := channel.New(entry.Name, entry.URL)
		if err != nil {
			s.logger.Warnw("Skipping invalid playlist entry", "name", entry.Name, "error", err)
			skipped++
			continue
		}
		ch.TvgID = entry.TvgID
		ch.TvgLogo = entry.TvgLogo
		ch.Group = entry.GroupTitle

		if _, err := s.repository.Add(ch); err != nil {
			s.logger.Errorw("Failed to store imported channel", "name", entry.Name, "error", err)
			skipped++
			continue
		}
		imported++
	}

	c.JSON(http.StatusOK, ImportResponse{Imported: imported, Skipped: skipped})
}

// Screenshot handler - captures a single frame from a stream URL.
func (s *Server) screenshotHandler(c *gin.Context) {
	var req ScreenshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}
	if err := channel.ValidateURL(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = s.captureCfg.CaptureTimeout
	}
	if timeout < 1 || timeout > 60 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "timeout must be between 1 and 60 seconds",
		})
		return
	}

	outputPath := filepath.Join(s.captureCfg.ScreenshotDir, uuid.NewString()+".png")
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(timeout)*time.Second)
	defer cancel()

	err := s.capture.CaptureFrame(ctx, req.URL, outputPath, ffmpeg.CaptureOptions{
		HWAccel: s.captureCfg.HWAccel,
	})
	if err != nil {
		s.logger.Warnw("Screenshot capture failed", "url", req.URL, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"path": outputPath,
	})
}
