// Package ffmpeg wraps the external ffprobe/ffmpeg executables used for
// stream metadata probing and frame capture.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Stream describes one elementary stream reported by ffprobe.
type Stream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// ProbeResult is the parsed ffprobe JSON output.
type ProbeResult struct {
	Format struct {
		FormatName string `json:"format_name"`
	} `json:"format"`
	Streams []Stream `json:"streams"`
}

// VideoStream returns the first video stream, or nil.
func (r *ProbeResult) VideoStream() *Stream {
	return r.streamOfType("video")
}

// AudioStream returns the first audio stream, or nil.
func (r *ProbeResult) AudioStream() *Stream {
	return r.streamOfType("audio")
}

func (r *ProbeResult) streamOfType(codecType string) *Stream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == codecType {
			return &r.Streams[i]
		}
	}
	return nil
}

// ProbeError carries the diagnostic text ffprobe wrote to stderr.
type ProbeError struct {
	Stderr string
	Err    error
}

func (e *ProbeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("ffprobe failed: %s", e.Stderr)
	}
	return fmt.Sprintf("ffprobe failed: %v", e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// ProbeOptions selects protocol-specific ffprobe input flags.
type ProbeOptions struct {
	// RTSPTransport forces the RTSP control transport ("tcp").
	RTSPTransport string
	// AnalyzeDuration and ProbeSize enlarge the analysis buffers, e.g.
	// "10M" for slow multicast streams.
	AnalyzeDuration string
	ProbeSize       string
}

// CaptureOptions configures a single-frame capture.
type CaptureOptions struct {
	// HWAccel selects a hardware decode path ("vaapi" or "cuda"). A
	// failed hardware capture is retried once in software.
	HWAccel string
	// SeekSeconds skips into the stream before grabbing the frame.
	SeekSeconds int
}

// Client invokes ffprobe and ffmpeg found on PATH. The zero paths mean the
// corresponding tool is unavailable.
type Client struct {
	ffprobePath string
	ffmpegPath  string
	logger      *zap.SugaredLogger
}

// NewClient locates the executables on PATH. A missing tool is not an
// error here; callers check Available before probing.
func NewClient(logger *zap.SugaredLogger) *Client {
	c := &Client{logger: logger}
	if path, err := exec.LookPath("ffprobe"); err == nil {
		c.ffprobePath = path
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		c.ffmpegPath = path
	}
	if c.ffprobePath == "" {
		logger.Warnw("ffprobe not found on PATH; stream validation disabled")
	}
	return c
}

// Available reports whether ffprobe can be invoked.
func (c *Client) Available() bool {
	return c.ffprobePath != ""
}

// Version returns the first line of `ffprobe -version`, or an empty string.
func (c *Client) Version(ctx context.Context) string {
	if !c.Available() {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, c.ffprobePath, "-version").Output()
	if err != nil {
		c.logger.Errorw("Failed to read ffprobe version", "error", err)
		return ""
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line)
}

// Probe runs ffprobe against the URL and parses its JSON stream report.
// The context deadline bounds the subprocess; on failure the returned
// error is a *ProbeError retaining the stderr diagnostic text.
func (c *Client) Probe(ctx context.Context, url string, opts ProbeOptions) (*ProbeResult, error) {
	if !c.Available() {
		return nil, &ProbeError{Err: fmt.Errorf("ffprobe is not installed")}
	}

	args := buildProbeArgs(url, opts)
	cmd := exec.CommandContext(ctx, c.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &ProbeError{Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	var result ProbeResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, &ProbeError{Err: fmt.Errorf("failed to parse ffprobe output: %w", err)}
	}
	return &result, nil
}

func buildProbeArgs(url string, opts ProbeOptions) []string {
	args := []string{"-v", "error"}
	if opts.RTSPTransport != "" {
		args = append(args, "-rtsp_transport", opts.RTSPTransport)
	}
	if opts.AnalyzeDuration != "" {
		args = append(args, "-analyzeduration", opts.AnalyzeDuration)
	}
	if opts.ProbeSize != "" {
		args = append(args, "-probesize", opts.ProbeSize)
	}
	args = append(args, "-print_format", "json", "-show_format", "-show_streams", url)
	return args
}

// CaptureFrame grabs a single frame from the stream and stores it as PNG
// at outputPath. A hardware-accelerated capture that fails is retried once
// with software decoding before the error is returned.
func (c *Client) CaptureFrame(ctx context.Context, url, outputPath string, opts CaptureOptions) error {
	if c.ffmpegPath == "" {
		return fmt.Errorf("ffmpeg is not installed")
	}

	outputPath, err := sanitizeOutputPath(outputPath)
	if err != nil {
		return err
	}

	if err := c.runCapture(ctx, url, outputPath, opts); err != nil {
		if opts.HWAccel == "" {
			return err
		}
		c.logger.Warnw("Hardware-accelerated capture failed, retrying with software decoding",
			"url", url,
			"hwaccel", opts.HWAccel,
			"error", err,
		)
		opts.HWAccel = ""
		return c.runCapture(ctx, url, outputPath, opts)
	}
	return nil
}

func (c *Client) runCapture(ctx context.Context, url, outputPath string, opts CaptureOptions) error {
	args := buildCaptureArgs(url, outputPath, opts)
	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg capture failed: %s: %w", msg, err)
		}
		return fmt.Errorf("ffmpeg capture failed: %w", err)
	}
	return nil
}

func buildCaptureArgs(url, outputPath string, opts CaptureOptions) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}

	switch strings.ToLower(opts.HWAccel) {
	case "vaapi":
		device := os.Getenv("FFMPEG_VAAPI_DEVICE")
		if device == "" {
			device = "/dev/dri/renderD128"
		}
		args = append(args, "-hwaccel", "vaapi", "-hwaccel_device", device)
	case "cuda":
		args = append(args, "-hwaccel", "cuda")
	}

	seek := opts.SeekSeconds
	if seek <= 0 {
		seek = 5
	}
	args = append(args,
		"-ss", fmt.Sprintf("%d", seek),
		"-i", url,
		"-vframes", "1",
		"-f", "image2",
		"-vcodec", "png",
		"-y", outputPath,
	)
	return args
}

func sanitizeOutputPath(path string) (string, error) {
	if strings.ToLower(filepath.Ext(path)) != ".png" {
		path += ".png"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	return filepath.Clean(path), nil
}
