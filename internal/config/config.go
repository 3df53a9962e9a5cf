// Package config loads generation settings from YAML files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/piwi3910/levelforge/internal/engine"
	"github.com/piwi3910/levelforge/internal/geom"
)

// LevelSettings describes the level to generate into.
type LevelSettings struct {
	Dim    int     `yaml:"dim"` // 2 or 3
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Depth  float64 `yaml:"depth,omitempty"`
}

// Size returns the level extents.
func (l LevelSettings) Size() geom.Size {
	return geom.Size{W: l.Width, H: l.Height, D: l.Depth}
}

// PolicySpec selects one post-processing policy by name.
type PolicySpec struct {
	Type   string  `yaml:"type"`             // align_adjacent, discard_open_chunks, discard_open_contexts
	Offset float64 `yaml:"offset,omitempty"` // align_adjacent only
}

// ExportSettings holds optional output paths. Empty paths disable the
// corresponding exporter.
type ExportSettings struct {
	PDF      string `yaml:"pdf,omitempty"`
	Manifest string `yaml:"manifest,omitempty"`
	Labels   string `yaml:"labels,omitempty"`
}

// Settings is the full generation configuration.
type Settings struct {
	Seed      int64          `yaml:"seed"`
	MaxChunks int            `yaml:"max_chunks,omitempty"` // 0 = unbounded
	Library   string         `yaml:"library,omitempty"`    // chunk library file path
	Level     LevelSettings  `yaml:"level"`
	Policies  []PolicySpec   `yaml:"policies,omitempty"`
	Exports   ExportSettings `yaml:"exports,omitempty"`
	Store     string         `yaml:"store,omitempty"` // sqlite archive path
}

// Default returns the settings used when no file is supplied: a 2D 64x64
// level, seed 1, no policies.
func Default() Settings {
	return Settings{
		Seed: 1,
		Level: LevelSettings{
			Dim:    2,
			Width:  64,
			Height: 64,
		},
	}
}

// Load reads and validates settings from a YAML file. Missing fields fall
// back to the defaults.
func Load(path string) (Settings, error) {
	s := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("config %s: %w", path, err)
	}
	return s, nil
}

// Validate checks the settings for values the generator would reject.
func (s Settings) Validate() error {
	dim := geom.Dim(s.Level.Dim)
	if !dim.Valid() {
		return fmt.Errorf("level.dim must be 2 or 3, got %d", s.Level.Dim)
	}
	if !s.Level.Size().Positive(dim) {
		return fmt.Errorf("level extents must be positive for %s (depth is required for 3D and forbidden for 2D)", dim)
	}
	if s.MaxChunks < 0 {
		return fmt.Errorf("max_chunks must not be negative, got %d", s.MaxChunks)
	}
	for i, p := range s.Policies {
		switch p.Type {
		case "align_adjacent":
			if p.Offset <= 0 {
				return fmt.Errorf("policies[%d]: align_adjacent needs a positive offset", i)
			}
		case "discard_open_chunks", "discard_open_contexts":
			if p.Offset != 0 {
				return fmt.Errorf("policies[%d]: %s does not take an offset", i, p.Type)
			}
		default:
			return fmt.Errorf("policies[%d]: unknown policy type %q", i, p.Type)
		}
	}
	return nil
}

// BuildPolicies translates the policy specs into engine policies in
// registration order. Validate must have passed.
func (s Settings) BuildPolicies() []engine.Policy {
	var policies []engine.Policy
	for _, p := range s.Policies {
		switch p.Type {
		case "align_adjacent":
			policies = append(policies, engine.AlignAdjacentContextsPolicy{Offset: p.Offset})
		case "discard_open_chunks":
			policies = append(policies, engine.DiscardOpenChunksPolicy{})
		case "discard_open_contexts":
			policies = append(policies, engine.DiscardOpenContextsPolicy{})
		}
	}
	return policies
}

// BuildTerminations returns the termination conditions implied by the
// settings.
func (s Settings) BuildTerminations() []engine.Termination {
	if s.MaxChunks <= 0 {
		return nil
	}
	return []engine.Termination{engine.MaxChunks(s.MaxChunks)}
}
