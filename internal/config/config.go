// Package config provides hierarchical configuration loading for costscope.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the costscope server.
type Config struct {
	Server    Server    `yaml:"server"`
	Upstream  Upstream  `yaml:"upstream"`
	Breaker   Breaker   `yaml:"breaker"`
	Cache     Cache     `yaml:"cache"`
	Auth      Auth      `yaml:"auth"`
	Logging   Logging   `yaml:"logging"`
	Telemetry Telemetry `yaml:"telemetry"`
	Analytics Analytics `yaml:"analytics"`
}

// Server holds HTTP server configuration for the MCP endpoint.
type Server struct {
	Port string `yaml:"port"`
	Path string `yaml:"path"` // mount path for the MCP handler
}

// Upstream holds connection and credential configuration for the
// cost-management REST API.
type Upstream struct {
	BaseURL      string        `yaml:"base_url"`
	TokenPath    string        `yaml:"token_path"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	PageSize     int           `yaml:"page_size"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Breaker holds circuit breaker configuration for upstream calls.
type Breaker struct {
	Window                time.Duration `yaml:"window"`     // rolling stats window
	MinVolume             int           `yaml:"min_volume"` // calls before error rate applies
	ErrorThresholdPercent float64       `yaml:"error_threshold_percent"`
	ResetTimeout          time.Duration `yaml:"reset_timeout"` // open -> half-open
	CallTimeout           time.Duration `yaml:"call_timeout"`  // per wrapped call
}

// Cache holds the in-process response cache configuration.
type Cache struct {
	MaxSizeMB int64         `yaml:"max_size_mb"`
	TTL       time.Duration `yaml:"ttl"`
}

// Auth holds caller authentication configuration.
type Auth struct {
	Enabled        bool   `yaml:"enabled"`
	PrincipalsFile string `yaml:"principals_file"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Telemetry holds OpenTelemetry export configuration.
type Telemetry struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Analytics holds defaults and bounds for the aggregation tools.
type Analytics struct {
	DefaultMonthsBack       int     `yaml:"default_months_back"`
	AnomalyThresholdPercent float64 `yaml:"anomaly_threshold_percent"`
	MaxAnomalies            int     `yaml:"max_anomalies"`
	TagFetchConcurrency     int     `yaml:"tag_fetch_concurrency"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port: "8080",
			Path: "/mcp",
		},
		Upstream: Upstream{
			BaseURL:   "https://api.example-cost.test",
			TokenPath: "/oauth/token",
			PageSize:  100,
			Timeout:   15 * time.Second,
		},
		Breaker: Breaker{
			Window:                60 * time.Second,
			MinVolume:             10,
			ErrorThresholdPercent: 50,
			ResetTimeout:          30 * time.Second,
			CallTimeout:           10 * time.Second,
		},
		Cache: Cache{
			MaxSizeMB: 64,
			TTL:       5 * time.Minute,
		},
		Auth: Auth{
			Enabled:        true,
			PrincipalsFile: "principals.yaml",
		},
		Logging: Logging{
			Level:   "info",
			Service: "costscope",
		},
		Telemetry: Telemetry{
			Enabled:  false,
			Endpoint: "localhost:4317",
		},
		Analytics: Analytics{
			DefaultMonthsBack:       6,
			AnomalyThresholdPercent: 25,
			MaxAnomalies:            50,
			TagFetchConcurrency:     8,
		},
	}
}
