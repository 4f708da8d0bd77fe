// Package config holds the pipeline tuning parameters. A single config
// struct parameterises the whole pipeline (tolerances, clock offsets, stop
// detection thresholds) so there is exactly one processing implementation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

// PipelineConfig represents the tuning parameters for a pipeline run.
// Fields omitted from the JSON file fall back to defaults supplied by the
// Get* accessors, so partial configs are safe.
type PipelineConfig struct {
	// Session matching
	MatchTolerance       *string `json:"match_tolerance,omitempty"`        // duration string like "30m"
	StrictMatchTolerance *string `json:"strict_match_tolerance,omitempty"` // duration string like "2m"
	StrictMatching       *bool   `json:"strict_matching,omitempty"`

	// Timestamp recovery
	PositionClockOffset *string `json:"position_clock_offset,omitempty"` // duration string like "2h"
	HeaderScanLines     *int    `json:"header_scan_lines,omitempty"`

	// State segmentation
	StationarySpeedThreshold *float64 `json:"stationary_speed_threshold,omitempty"` // km/h
	StationaryRadiusMeters   *float64 `json:"stationary_radius_meters,omitempty"`
	StationaryMinDuration    *string  `json:"stationary_min_duration,omitempty"` // duration string like "60s"
	BeaconCorroboration      *string  `json:"beacon_corroboration,omitempty"`    // duration string like "120s"

	// Run orchestration
	Workers     *int    `json:"workers,omitempty"`
	AlgoVersion *string `json:"algo_version,omitempty"`
}

// EmptyPipelineConfig returns a PipelineConfig with all fields unset, so every
// accessor supplies its default.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file. The file must
// have a .json extension and stay under the max file size.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *PipelineConfig) Validate() error {
	durations := map[string]*string{
		"match_tolerance":         c.MatchTolerance,
		"strict_match_tolerance":  c.StrictMatchTolerance,
		"position_clock_offset":   c.PositionClockOffset,
		"stationary_min_duration": c.StationaryMinDuration,
		"beacon_corroboration":    c.BeaconCorroboration,
	}
	for name, v := range durations {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	if c.HeaderScanLines != nil && *c.HeaderScanLines < 1 {
		return fmt.Errorf("header_scan_lines must be positive, got %d", *c.HeaderScanLines)
	}
	if c.StationarySpeedThreshold != nil && *c.StationarySpeedThreshold < 0 {
		return fmt.Errorf("stationary_speed_threshold must be non-negative, got %f", *c.StationarySpeedThreshold)
	}
	if c.StationaryRadiusMeters != nil && *c.StationaryRadiusMeters <= 0 {
		return fmt.Errorf("stationary_radius_meters must be positive, got %f", *c.StationaryRadiusMeters)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", *c.Workers)
	}

	return nil
}

// GetMatchTolerance returns the session match tolerance, honouring strict
// mode when enabled.
func (c *PipelineConfig) GetMatchTolerance() time.Duration {
	if c.GetStrictMatching() {
		return c.getDuration(c.StrictMatchTolerance, 2*time.Minute)
	}
	return c.getDuration(c.MatchTolerance, 30*time.Minute)
}

// GetStrictMatching returns whether the stricter matching tolerance applies.
func (c *PipelineConfig) GetStrictMatching() bool {
	if c.StrictMatching == nil {
		return false
	}
	return *c.StrictMatching
}

// GetPositionClockOffset returns the fixed offset added to recovered
// position-file timestamps to compensate for the known device clock defect.
func (c *PipelineConfig) GetPositionClockOffset() time.Duration {
	return c.getDuration(c.PositionClockOffset, 2*time.Hour)
}

// GetHeaderScanLines returns how many leading non-empty lines timestamp
// recovery scans for an in-content datetime.
func (c *PipelineConfig) GetHeaderScanLines() int {
	if c.HeaderScanLines == nil {
		return 100
	}
	return *c.HeaderScanLines
}

// GetStationarySpeedThreshold returns the speed below which a vehicle counts
// as not moving.
func (c *PipelineConfig) GetStationarySpeedThreshold() float64 {
	if c.StationarySpeedThreshold == nil {
		return 5.0
	}
	return *c.StationarySpeedThreshold
}

// GetStationaryRadiusMeters returns the radius a stop must stay within.
func (c *PipelineConfig) GetStationaryRadiusMeters() float64 {
	if c.StationaryRadiusMeters == nil {
		return 50.0
	}
	return *c.StationaryRadiusMeters
}

// GetStationaryMinDuration returns the minimum length of a stationary run
// before it counts as a stop.
func (c *PipelineConfig) GetStationaryMinDuration() time.Duration {
	return c.getDuration(c.StationaryMinDuration, 60*time.Second)
}

// GetBeaconCorroboration returns the window around a depot exit within which
// a beacon-on signal marks the exit as an emergency dispatch.
func (c *PipelineConfig) GetBeaconCorroboration() time.Duration {
	return c.getDuration(c.BeaconCorroboration, 120*time.Second)
}

// GetWorkers returns how many vehicles are processed concurrently.
func (c *PipelineConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetAlgoVersion returns the algorithm version stamped onto persisted
// intervals.
func (c *PipelineConfig) GetAlgoVersion() string {
	if c.AlgoVersion == nil || *c.AlgoVersion == "" {
		return "v1"
	}
	return *c.AlgoVersion
}

func (c *PipelineConfig) getDuration(v *string, fallback time.Duration) time.Duration {
	if v == nil || *v == "" {
		return fallback
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fallback
	}
	return d
}
