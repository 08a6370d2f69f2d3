package scanner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/streamscan/stream-scanner/internal/ffmpeg"
)

const (
	defaultProbeTimeout = 10 * time.Second

	// Multicast RTP streams need longer to synchronize; probes never run
	// with less than this window.
	rtpTimeoutFloor = 20 * time.Second
)

// Prober is the external media tool boundary used for stream probing.
type Prober interface {
	Available() bool
	Probe(ctx context.Context, url string, opts ffmpeg.ProbeOptions) (*ffmpeg.ProbeResult, error)
}

// Validator probes a single URL and reports a structured result. All
// failure modes are captured in the result; Validate never returns an
// error.
type Validator interface {
	Validate(ctx context.Context, url string, timeout time.Duration) ValidationResult
}

// probeConfig holds the per-scheme probe parameters. New schemes are added
// by extending the table.
type probeConfig struct {
	options    ffmpeg.ProbeOptions
	minTimeout time.Duration
}

var probeConfigs = map[string]probeConfig{
	"http":  {},
	"https": {},
	"rtsp": {
		options: ffmpeg.ProbeOptions{RTSPTransport: "tcp"},
	},
	"rtp": {
		options:    ffmpeg.ProbeOptions{AnalyzeDuration: "10M", ProbeSize: "10M"},
		minTimeout: rtpTimeoutFloor,
	},
	"udp": {
		options: ffmpeg.ProbeOptions{AnalyzeDuration: "5M", ProbeSize: "5M"},
	},
}

// StreamValidator validates stream URLs by dispatching the URL scheme to a
// protocol-specific ffprobe invocation.
type StreamValidator struct {
	prober Prober
	logger *zap.SugaredLogger
}

// NewStreamValidator creates a validator backed by the given prober.
func NewStreamValidator(prober Prober, logger *zap.SugaredLogger) *StreamValidator {
	return &StreamValidator{prober: prober, logger: logger}
}

// Validate probes the URL under the given timeout and returns a structured
// result. An unsupported scheme or a missing probe tool short-circuits to
// an unsupported_protocol result without any external call.
func (v *StreamValidator) Validate(ctx context.Context, rawURL string, timeout time.Duration) ValidationResult {
	scheme := detectProtocol(rawURL)

	cfg, supported := probeConfigs[scheme]
	if !supported {
		v.logger.Warnw("Unsupported protocol", "url", rawURL, "protocol", scheme)
		return v.failure(rawURL, schemeOrUnknown(scheme), ErrorUnsupportedProtocol,
			"Protocol not supported by stream validator.")
	}

	if !v.prober.Available() {
		v.logger.Errorw("ffprobe is required for stream validation")
		return v.failure(rawURL, scheme, ErrorUnsupportedProtocol, "ffprobe is not installed.")
	}

	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	if cfg.minTimeout > timeout {
		timeout = cfg.minTimeout
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	probe, err := v.prober.Probe(probeCtx, rawURL, cfg.options)
	if err != nil {
		return v.classifyFailure(rawURL, scheme, err)
	}
	return v.parseProbe(rawURL, scheme, probe)
}

func (v *StreamValidator) parseProbe(rawURL, scheme string, probe *ffmpeg.ProbeResult) ValidationResult {
	video := probe.VideoStream()
	if video == nil {
		v.logger.Infow("No video stream detected", "url", rawURL)
		return v.failure(rawURL, scheme, ErrorNoVideoStream, "No video stream detected.")
	}

	result := ValidationResult{
		URL:        rawURL,
		Protocol:   scheme,
		IsValid:    true,
		VideoCodec: video.CodecName,
		Timestamp:  time.Now().UTC(),
	}
	if video.Width > 0 && video.Height > 0 {
		result.Resolution = fmt.Sprintf("%dx%d", video.Width, video.Height)
	}
	if audio := probe.AudioStream(); audio != nil {
		result.AudioCodec = audio.CodecName
	}

	v.logger.Debugw("Stream validated",
		"url", rawURL,
		"resolution", result.Resolution,
		"video_codec", result.VideoCodec,
	)
	return result
}

func (v *StreamValidator) classifyFailure(rawURL, scheme string, err error) ValidationResult {
	message := err.Error()
	var probeErr *ffmpeg.ProbeError
	if errors.As(err, &probeErr) && probeErr.Stderr != "" {
		message = strings.TrimSpace(probeErr.Stderr)
	}

	category := categorizeProbeError(message, scheme)
	if errors.Is(err, context.DeadlineExceeded) {
		category = ErrorTimeout
	}

	v.logger.Warnw("Probe failed",
		"url", rawURL,
		"protocol", scheme,
		"category", category,
		"error", message,
	)
	return v.failure(rawURL, scheme, category, message)
}

func (v *StreamValidator) failure(rawURL, scheme string, category ErrorCategory, message string) ValidationResult {
	return ValidationResult{
		URL:           rawURL,
		Protocol:      scheme,
		IsValid:       false,
		ErrorCategory: category,
		ErrorMessage:  message,
		Timestamp:     time.Now().UTC(),
	}
}

// categorizeProbeError maps probe diagnostic text onto the error taxonomy
// by substring matching, in priority order. Unrecognized text falls into
// the network_unreachable bucket.
func categorizeProbeError(diagnostic, scheme string) ErrorCategory {
	text := strings.ToLower(diagnostic)

	if strings.Contains(text, "timed out") || strings.Contains(text, "timeout") {
		return ErrorTimeout
	}
	for _, keyword := range []string{
		"connection refused",
		"no route",
		"failed to resolve",
		"network unreachable",
	} {
		if strings.Contains(text, keyword) {
			return ErrorNetworkUnreachable
		}
	}
	if scheme == "rtp" && strings.Contains(text, "multicast") {
		return ErrorMulticastNotSupported
	}
	if strings.Contains(text, "codec") && strings.Contains(text, "unsupported") {
		return ErrorUnsupportedCodec
	}
	return ErrorNetworkUnreachable
}

func detectProtocol(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Scheme)
}

func schemeOrUnknown(scheme string) string {
	if scheme == "" {
		return "unknown"
	}
	return scheme
}
