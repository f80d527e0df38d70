// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (store, services) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Mosava API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// SQLitePath is the directory holding the mosaic database file.
	SQLitePath string `env:"SQLITE_PATH,required"`

	// Admin authentication (HS256 signed tokens in the api_key header)
	EnableAuth bool   `env:"ENABLE_AUTH" envDefault:"true"`
	JWTSecret  string `env:"JWT_SECRET"`

	// NSFW content filter (remote classifier sidecar)
	EnableNSFWFilter bool    `env:"ENABLE_NSFW_FILTER" envDefault:"false"`
	NSFWServiceURL   string  `env:"NSFW_SERVICE_URL"`
	NSFWThreshold    float64 `env:"NSFW_THRESHOLD"     envDefault:"0.7"`

	// Image sizing limits for derived artifacts
	OriginalImageMaxSize int `env:"ORIGINAL_IMAGE_MAX_SIZE" envDefault:"2560"`
	ThumbnailSize        int `env:"THUMBNAIL_SIZE"          envDefault:"256"`
	GIFImageMaxSize      int `env:"GIF_IMAGE_MAX_SIZE"      envDefault:"256"`
	SampleImageMaxSize   int `env:"SAMPLE_IMAGE_MAX_SIZE"   envDefault:"1024"`

	// Segment grid planning
	UnusedAreaWeight   int `env:"UNUSED_AREA_WEIGHT"   envDefault:"10"`
	SegmentRatioWidth  int `env:"SEGMENT_RATIO_WIDTH"  envDefault:"3"`
	SegmentRatioHeight int `env:"SEGMENT_RATIO_HEIGHT" envDefault:"4"`

	// Segment filling policy
	NumSegmentsStart    int `env:"NUM_SEGMENTS_START"    envDefault:"10"`
	NumSegmentsMin      int `env:"NUM_SEGMENTS_MIN"      envDefault:"10"`
	SampleCandidatePool int `env:"SAMPLE_CANDIDATE_POOL" envDefault:"16"`

	// Brightness tier ranges (mean luma, 0-255). Ranges may be gapped;
	// a mean falling in a gap classifies as invalid.
	LowBrightnessMin    int `env:"LOW_BRIGHTNESS_MIN"    envDefault:"0"`
	LowBrightnessMax    int `env:"LOW_BRIGHTNESS_MAX"    envDefault:"85"`
	MediumBrightnessMin int `env:"MEDIUM_BRIGHTNESS_MIN" envDefault:"85"`
	MediumBrightnessMax int `env:"MEDIUM_BRIGHTNESS_MAX" envDefault:"170"`
	HighBrightnessMin   int `env:"HIGH_BRIGHTNESS_MIN"   envDefault:"170"`
	HighBrightnessMax   int `env:"HIGH_BRIGHTNESS_MAX"   envDefault:"255"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.EnableAuth && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET is required when ENABLE_AUTH is true")
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedOrigins returns the extra CORS origins from EXTRA_ORIGINS,
// a comma-separated list. Whitespace around entries is ignored.
func (c *Config) AllowedOrigins() []string {
	if c.ExtraOrigins == "" {
		return nil
	}
	parts := strings.Split(c.ExtraOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
