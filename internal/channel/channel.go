// Package channel defines the IPTV channel model and its validation
// lifecycle.
package channel

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ValidationStatus is the lifecycle state of a channel's last validation.
type ValidationStatus string

const (
	StatusUnknown    ValidationStatus = "unknown"
	StatusValidating ValidationStatus = "validating"
	StatusOnline     ValidationStatus = "online"
	StatusOffline    ValidationStatus = "offline"
	StatusError      ValidationStatus = "error"
)

var supportedProtocols = map[string]bool{
	"http":  true,
	"https": true,
	"rtp":   true,
	"rtsp":  true,
	"udp":   true,
	"mms":   true,
}

// Channel is a discovered or imported IPTV channel. Timestamps are UTC.
// The ManuallyEdited flag preserves user edits across automated updates.
type Channel struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	URL              string           `json:"url"`
	TvgID            string           `json:"tvg_id,omitempty"`
	TvgLogo          string           `json:"tvg_logo,omitempty"`
	Group            string           `json:"group,omitempty"`
	Resolution       string           `json:"resolution,omitempty"`
	IsOnline         bool             `json:"is_online"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	LastValidated    *time.Time       `json:"last_validated,omitempty"`
	ScreenshotPath   string           `json:"screenshot_path,omitempty"`
	ManuallyEdited   bool             `json:"manually_edited"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// New creates a channel with generated id and UTC timestamps. The URL must
// use a supported IPTV protocol and include a host.
func New(name, streamURL string) (Channel, error) {
	if err := ValidateURL(streamURL); err != nil {
		return Channel{}, err
	}

	now := time.Now().UTC()
	return Channel{
		ID:               uuid.NewString(),
		Name:             strings.TrimSpace(name),
		URL:              streamURL,
		ValidationStatus: StatusUnknown,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ValidateURL checks that the URL uses a supported protocol and carries
// host information.
func ValidateURL(streamURL string) error {
	parsed, err := url.Parse(streamURL)
	if err != nil {
		return fmt.Errorf("invalid stream URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !supportedProtocols[scheme] {
		if scheme == "" {
			scheme = "missing"
		}
		return fmt.Errorf("unsupported protocol: %s (supported: http, https, mms, rtp, rtsp, udp)", scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must include host information")
	}
	return nil
}
