// Package storage persists channels to a JSON file.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/streamscan/stream-scanner/internal/channel"
)

// Filters narrows FindAll results. Nil pointer fields are ignored.
type Filters struct {
	Group            string
	IsOnline         *bool
	ValidationStatus channel.ValidationStatus
	ManuallyEdited   *bool
}

// JSONRepository stores channels in a single JSON file with atomic
// replace-on-write. Entries are deduplicated by normalized URL; the first
// channel discovered for a URL keeps its id and created_at, and the
// manually_edited flag is never cleared by an automated update.
type JSONRepository struct {
	path   string
	logger *zap.SugaredLogger
	mu     sync.Mutex
}

// NewJSONRepository ensures the backing file exists.
func NewJSONRepository(path string, logger *zap.SugaredLogger) (*JSONRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte("[]\n"), 0o644); err != nil {
			return nil, fmt.Errorf("failed to initialize repository file: %w", err)
		}
	}
	return &JSONRepository{path: path, logger: logger}, nil
}

// Add inserts a channel, or merges it into an existing entry matched by
// URL.
func (r *JSONRepository) Add(ch channel.Channel) (channel.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	channels, err := r.read()
	if err != nil {
		return channel.Channel{}, err
	}

	normalized := normalizeURL(ch.URL)
	for i, existing := range channels {
		if normalizeURL(existing.URL) == normalized {
			merged := mergeChannels(existing, ch)
			channels[i] = merged
			if err := r.write(channels); err != nil {
				return channel.Channel{}, err
			}
			r.logger.Debugw("Channel updated", "channel_id", merged.ID, "url", merged.URL)
			return merged, nil
		}
	}

	channels = append(channels, ch)
	if err := r.write(channels); err != nil {
		return channel.Channel{}, err
	}
	r.logger.Debugw("Channel added", "channel_id", ch.ID, "url", ch.URL)
	return ch, nil
}

// GetByID returns the channel with the given id, or false.
func (r *JSONRepository) GetByID(id string) (channel.Channel, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	channels, err := r.read()
	if err != nil {
		return channel.Channel{}, false, err
	}
	for _, ch := range channels {
		if ch.ID == id {
			return ch, true, nil
		}
	}
	return channel.Channel{}, false, nil
}

// GetByURL returns the channel matching the normalized URL, or false.
func (r *JSONRepository) GetByURL(url string) (channel.Channel, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	channels, err := r.read()
	if err != nil {
		return channel.Channel{}, false, err
	}
	normalized := normalizeURL(url)
	for _, ch := range channels {
		if normalizeURL(ch.URL) == normalized {
			return ch, true, nil
		}
	}
	return channel.Channel{}, false, nil
}

// FindAll returns all channels matching the filters.
func (r *JSONRepository) FindAll(filters Filters) ([]channel.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	channels, err := r.read()
	if err != nil {
		return nil, err
	}

	matched := make([]channel.Channel, 0, len(channels))
	for _, ch := range channels {
		if matchesFilters(ch, filters) {
			matched = append(matched, ch)
		}
	}
	return matched, nil
}

// Delete removes a channel by id. Returns true if a record was removed.
func (r *JSONRepository) Delete(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	channels, err := r.read()
	if err != nil {
		return false, err
	}

	remaining := channels[:0]
	for _, ch := range channels {
		if ch.ID != id {
			remaining = append(remaining, ch)
		}
	}
	if len(remaining) == len(channels) {
		return false, nil
	}
	if err := r.write(remaining); err != nil {
		return false, err
	}
	r.logger.Debugw("Channel deleted", "channel_id", id)
	return true, nil
}

func (r *JSONRepository) read() ([]channel.Channel, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Warnw("Repository file missing, starting empty", "path", r.path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read repository file: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}

	var channels []channel.Channel
	if err := json.Unmarshal(raw, &channels); err != nil {
		r.logger.Errorw("Corrupted repository JSON, starting empty", "path", r.path, "error", err)
		return nil, nil
	}
	return channels, nil
}

// write serializes through a temp file and renames it into place so a
// crash mid-write never corrupts the repository.
func (r *JSONRepository) write(channels []channel.Channel) error {
	payload, err := json.MarshalIndent(channels, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize channels: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), "channels-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(payload, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace repository file: %w", err)
	}
	return nil
}

func normalizeURL(url string) string {
	return strings.ToLower(strings.TrimSpace(url))
}

func mergeChannels(existing, incoming channel.Channel) channel.Channel {
	merged := incoming
	merged.ID = existing.ID
	merged.CreatedAt = existing.CreatedAt
	merged.ManuallyEdited = existing.ManuallyEdited || incoming.ManuallyEdited
	merged.UpdatedAt = time.Now().UTC()
	return merged
}

func matchesFilters(ch channel.Channel, filters Filters) bool {
	if filters.Group != "" && ch.Group != filters.Group {
		return false
	}
	if filters.IsOnline != nil && ch.IsOnline != *filters.IsOnline {
		return false
	}
	if filters.ValidationStatus != "" && ch.ValidationStatus != filters.ValidationStatus {
		return false
	}
	if filters.ManuallyEdited != nil && ch.ManuallyEdited != *filters.ManuallyEdited {
		return false
	}
	return true
}
