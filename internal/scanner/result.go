package scanner

import "time"

// ErrorCategory classifies a validation failure into a closed taxonomy.
type ErrorCategory string

const (
	ErrorNetworkUnreachable    ErrorCategory = "network_unreachable"
	ErrorTimeout               ErrorCategory = "timeout"
	ErrorNoVideoStream         ErrorCategory = "no_video_stream"
	ErrorUnsupportedCodec      ErrorCategory = "unsupported_codec"
	ErrorUnsupportedProtocol   ErrorCategory = "unsupported_protocol"
	ErrorMulticastNotSupported ErrorCategory = "multicast_not_supported"
)

// ValidationResult is the immutable outcome of probing a single target.
// IsValid implies a video stream was detected and ErrorCategory is empty;
// otherwise ErrorCategory is always set.
type ValidationResult struct {
	URL           string        `json:"url"`
	Protocol      string        `json:"protocol"`
	IsValid       bool          `json:"is_valid"`
	Resolution    string        `json:"resolution,omitempty"`
	VideoCodec    string        `json:"video_codec,omitempty"`
	AudioCodec    string        `json:"audio_codec,omitempty"`
	ErrorCategory ErrorCategory `json:"error_category,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// ProgressSnapshot is a point-in-time read of a scan's counters, delivered
// to progress observers after each completed probe.
type ProgressSnapshot struct {
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Valid     int       `json:"valid"`
	Invalid   int       `json:"invalid"`
	StartedAt time.Time `json:"started_at"`
}
