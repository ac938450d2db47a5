// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/cronexpr"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the cavok-api service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Database DatabaseConfig `koanf:"database"`
	Weather  WeatherConfig  `koanf:"weather"`
	Ranker   RankerConfig   `koanf:"ranker"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Cron     CronConfig     `koanf:"cron"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read.timeout"`
	WriteTimeout    time.Duration `koanf:"write.timeout"`
	IdleTimeout     time.Duration `koanf:"idle.timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown.timeout"`
}

// LoggingConfig holds application logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DatabaseConfig holds the SQLite connection configuration.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// WeatherConfig holds the forecast provider configuration. An empty APIKey
// puts the gateway into synthetic-only operation. RateLimit and RateBurst
// size the token bucket guarding the provider quota.
type WeatherConfig struct {
	APIKey      string        `koanf:"api.key"`
	BaseURL     string        `koanf:"base.url"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxRetries  int           `koanf:"max.retries"`
	BaseBackoff time.Duration `koanf:"base.backoff"`
	MaxBackoff  time.Duration `koanf:"max.backoff"`
	RateLimit   float64       `koanf:"rate.limit"`
	RateBurst   int           `koanf:"rate.burst"`
}

// RankerConfig holds the external ranking model configuration. An empty
// APIKey makes the ranker report ranker-not-configured.
type RankerConfig struct {
	APIKey  string        `koanf:"api.key"`
	BaseURL string        `koanf:"base.url"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`
}

// PipelineConfig holds the scheduling pipeline tunables.
type PipelineConfig struct {
	AutoAcceptConfidence     int           `koanf:"auto.accept.confidence"`
	RescheduleHorizonHours   int           `koanf:"reschedule.horizon.hours"`
	SearchWindowDays         int           `koanf:"search.window.days"`
	MinimumSpacingHours      int           `koanf:"minimum.spacing.hours"`
	OperatingStartHourUTC    int           `koanf:"operating.start.hour.utc"`
	OperatingEndHourUTC      int           `koanf:"operating.end.hour.utc"`
	DurationToleranceMinutes int           `koanf:"duration.tolerance.minutes"`
	MaxCandidates            int           `koanf:"max.candidates"`
	Budget                   time.Duration `koanf:"budget"`
	MaxParallelFlights       int           `koanf:"max.parallel.flights"`
}

// CronConfig holds the hourly trigger configuration.
type CronConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Schedule string `koanf:"schedule"`
}

// Load loads configuration from environment variables and defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Load defaults first
	if err := k.Load(confmap.Provider(getDefaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Load environment variables for specific keys we care about
	envOverrides := make(map[string]interface{})

	envMappings := map[string]string{
		"SERVER_PORT":                          "server.port",
		"SERVER_READ_TIMEOUT":                  "server.read.timeout",
		"SERVER_WRITE_TIMEOUT":                 "server.write.timeout",
		"SERVER_IDLE_TIMEOUT":                  "server.idle.timeout",
		"SERVER_SHUTDOWN_TIMEOUT":              "server.shutdown.timeout",
		"LOG_LEVEL":                            "logging.level",
		"LOG_FORMAT":                           "logging.format",
		"DATABASE_PATH":                        "database.path",
		"WEATHER_API_KEY":                      "weather.api.key",
		"WEATHER_API_BASE_URL":                 "weather.base.url",
		"WEATHER_TIMEOUT":                      "weather.timeout",
		"WEATHER_MAX_RETRIES":                  "weather.max.retries",
		"WEATHER_BASE_BACKOFF":                 "weather.base.backoff",
		"WEATHER_MAX_BACKOFF":                  "weather.max.backoff",
		"WEATHER_RATE_LIMIT":                   "weather.rate.limit",
		"WEATHER_RATE_BURST":                   "weather.rate.burst",
		"RANKER_API_KEY":                       "ranker.api.key",
		"RANKER_BASE_URL":                      "ranker.base.url",
		"RANKER_MODEL":                         "ranker.model",
		"RANKER_TIMEOUT":                       "ranker.timeout",
		"PIPELINE_AUTO_ACCEPT_CONFIDENCE":      "pipeline.auto.accept.confidence",
		"PIPELINE_RESCHEDULE_HORIZON_HOURS":    "pipeline.reschedule.horizon.hours",
		"PIPELINE_SEARCH_WINDOW_DAYS":          "pipeline.search.window.days",
		"PIPELINE_MINIMUM_SPACING_HOURS":       "pipeline.minimum.spacing.hours",
		"PIPELINE_OPERATING_START_HOUR":        "pipeline.operating.start.hour.utc",
		"PIPELINE_OPERATING_END_HOUR":          "pipeline.operating.end.hour.utc",
		"PIPELINE_DURATION_TOLERANCE_MINUTES":  "pipeline.duration.tolerance.minutes",
		"PIPELINE_MAX_CANDIDATES":              "pipeline.max.candidates",
		"PIPELINE_BUDGET":                      "pipeline.budget",
		"PIPELINE_MAX_PARALLEL_FLIGHTS":        "pipeline.max.parallel.flights",
		"CRON_ENABLED":                         "cron.enabled",
		"CRON_SCHEDULE":                        "cron.schedule",
		"PORT":                                 "server.port",        // Common alias
		"DB_PATH":                              "database.path",      // Common alias
	}

	// Check for environment variables and map them to nested structure
	for envKey, configKey := range envMappings {
		if value := os.Getenv(envKey); value != "" {
			parts := strings.Split(configKey, ".")
			if len(parts) == 1 {
				envOverrides[configKey] = value
			} else {
				section := parts[0]
				key := strings.Join(parts[1:], ".")
				if envOverrides[section] == nil {
					envOverrides[section] = make(map[string]interface{})
				}
				envOverrides[section].(map[string]interface{})[key] = value
			}
		}
	}

	if len(envOverrides) > 0 {
		if err := k.Load(confmap.Provider(envOverrides, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// getDefaults returns the default configuration values.
func getDefaults() map[string]interface{} {
	return map[string]interface{}{
		"server": map[string]interface{}{
			"port":             8080,
			"read.timeout":     "15s",
			"write.timeout":    "60s",
			"idle.timeout":     "60s",
			"shutdown.timeout": "10s",
		},
		"logging": map[string]interface{}{
			"level":  "info",
			"format": "json",
		},
		"database": map[string]interface{}{
			"path": "cavok.db",
		},
		"weather": map[string]interface{}{
			"api.key":      "",
			"base.url":     "https://api.weatherapi.com/v1",
			"timeout":      "10s",
			"max.retries":  3,
			"base.backoff": "2s",
			"max.backoff":  "8s",
			"rate.limit":   10.0,
			"rate.burst":   10,
		},
		"ranker": map[string]interface{}{
			"api.key":  "",
			"base.url": "https://api.openai.com/v1",
			"model":    "gpt-4o-mini",
			"timeout":  "5s",
		},
		"pipeline": map[string]interface{}{
			"auto.accept.confidence":     80,
			"reschedule.horizon.hours":   72,
			"search.window.days":         7,
			"minimum.spacing.hours":      6,
			"operating.start.hour.utc":   6,
			"operating.end.hour.utc":     18,
			"duration.tolerance.minutes": 5,
			"max.candidates":             15,
			"budget":                     "120s",
			"max.parallel.flights":       16,
		},
		"cron": map[string]interface{}{
			"enabled":  true,
			"schedule": "0 * * * *",
		},
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Weather.Timeout <= 0 {
		return fmt.Errorf("weather timeout must be positive")
	}

	if c.Weather.MaxRetries < 0 {
		return fmt.Errorf("weather max retries must not be negative")
	}

	if c.Weather.RateLimit <= 0 || c.Weather.RateBurst <= 0 {
		return fmt.Errorf("weather rate limit and burst must be positive")
	}

	if c.Ranker.Timeout <= 0 {
		return fmt.Errorf("ranker timeout must be positive")
	}

	if c.Pipeline.AutoAcceptConfidence < 0 || c.Pipeline.AutoAcceptConfidence > 100 {
		return fmt.Errorf("auto accept confidence must be in [0, 100]: %d", c.Pipeline.AutoAcceptConfidence)
	}

	if c.Pipeline.RescheduleHorizonHours <= 0 {
		return fmt.Errorf("reschedule horizon must be positive")
	}

	if c.Pipeline.SearchWindowDays <= 0 {
		return fmt.Errorf("search window must be positive")
	}

	if c.Pipeline.OperatingStartHourUTC < 0 || c.Pipeline.OperatingEndHourUTC > 24 ||
		c.Pipeline.OperatingStartHourUTC >= c.Pipeline.OperatingEndHourUTC {
		return fmt.Errorf("invalid operating hours: [%d, %d)", c.Pipeline.OperatingStartHourUTC, c.Pipeline.OperatingEndHourUTC)
	}

	if c.Pipeline.MaxCandidates <= 0 {
		return fmt.Errorf("max candidates must be positive")
	}

	if c.Pipeline.Budget <= 0 {
		return fmt.Errorf("pipeline budget must be positive")
	}

	if c.Pipeline.MaxParallelFlights <= 0 {
		return fmt.Errorf("max parallel flights must be positive")
	}

	if _, err := cronexpr.Parse(c.Cron.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", c.Cron.Schedule, err)
	}

	return nil
}
