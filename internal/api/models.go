// Package api provides the HTTP API for the stream scanner service.
package api

import "github.com/streamscan/stream-scanner/internal/scanner"

// ScanStartResponse acknowledges an accepted scan request.
type ScanStartResponse struct {
	ScanID string             `json:"scan_id"`
	Status scanner.ScanStatus `json:"status"`
	Total  int                `json:"total"`
}

// ScanCancelResponse acknowledges a cancellation request.
type ScanCancelResponse struct {
	ScanID    string             `json:"scan_id"`
	Status    scanner.ScanStatus `json:"status"`
	Cancelled bool               `json:"cancelled"`
}

// ChannelUpdateRequest carries user edits to a stored channel. Pointer
// fields distinguish "not provided" from "set to empty".
type ChannelUpdateRequest struct {
	Name    *string `json:"name"`
	TvgID   *string `json:"tvg_id"`
	TvgLogo *string `json:"tvg_logo"`
	Group   *string `json:"group"`
}

// GroupStatistics summarizes the channels of one group.
type GroupStatistics struct {
	Name             string  `json:"name"`
	Total            int     `json:"total"`
	Online           int     `json:"online"`
	Offline          int     `json:"offline"`
	OnlinePercentage float64 `json:"online_percentage"`
}

// ScreenshotRequest asks for a single frame capture from a stream.
type ScreenshotRequest struct {
	URL string `json:"url" binding:"required"`
	// Timeout in seconds, bounded to [1, 60]; zero selects the default.
	Timeout int `json:"timeout"`
}

// ImportResponse summarizes a playlist import.
type ImportResponse struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}
