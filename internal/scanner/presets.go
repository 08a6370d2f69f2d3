package scanner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrPresetNotFound is returned when a preset id has no catalog entry.
var ErrPresetNotFound = errors.New("preset not found")

// Preset is a named multicast scan configuration.
type Preset struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	Protocol         string   `json:"protocol"`
	IPRanges         []string `json:"ip_ranges"`
	Ports            []int    `json:"ports"`
	EstimatedTargets int      `json:"estimated_targets,omitempty"`
}

// ToStrategy converts the preset into a multicast strategy.
func (p Preset) ToStrategy() (*MulticastStrategy, error) {
	return NewMulticastStrategy(p.Protocol, p.IPRanges, p.Ports)
}

// PresetLoader reads the preset catalog from a JSON file of the form
// {"presets": [...]}.
type PresetLoader struct {
	path string
}

// NewPresetLoader creates a loader for the given catalog file.
func NewPresetLoader(path string) *PresetLoader {
	return &PresetLoader{path: path}
}

// LoadAll returns every preset in the catalog.
func (l *PresetLoader) LoadAll() ([]Preset, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset file %s: %w", l.path, err)
	}

	var catalog struct {
		Presets []Preset `json:"presets"`
	}
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse preset file %s: %w", l.path, err)
	}
	return catalog.Presets, nil
}

// GetByID returns the preset with the given identifier.
func (l *PresetLoader) GetByID(id string) (Preset, error) {
	presets, err := l.LoadAll()
	if err != nil {
		return Preset{}, err
	}
	for _, preset := range presets {
		if preset.ID == id {
			return preset, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %s", ErrPresetNotFound, id)
}
