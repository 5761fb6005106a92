package config

import (
	"log/slog"
	"os"
	"strconv"
)

// TrackingConfig represents decode session tracking configuration
type TrackingConfig struct {
	Enabled      bool   `json:"enabled"`       // Whether session statistics are persisted
	DatabasePath string `json:"database_path"` // Custom database path (empty = XDG cache path)
}

// GetDefaultTrackingConfig returns the default tracking configuration
func GetDefaultTrackingConfig() *TrackingConfig {
	return &TrackingConfig{
		Enabled:      true,
		DatabasePath: "", // Empty = XDG cache path
	}
}

// ApplyTrackingEnvironmentOverrides applies environment variable overrides to tracking config
func ApplyTrackingEnvironmentOverrides(config *TrackingConfig) *TrackingConfig {
	result := *config

	if trackingStr := os.Getenv("WMADEC_TRACKING"); trackingStr != "" {
		if enabled, err := strconv.ParseBool(trackingStr); err == nil {
			result.Enabled = enabled
			slog.Debug("applied tracking override from environment", "value", enabled)
		} else {
			slog.Warn("invalid WMADEC_TRACKING environment variable", "value", trackingStr, "error", err)
		}
	}

	return &result
}
