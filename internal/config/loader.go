package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "costscope.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "COSTSCOPE_PORT")
	setString(&cfg.Server.Path, "COSTSCOPE_MCP_PATH")

	setString(&cfg.Upstream.BaseURL, "COSTSCOPE_UPSTREAM_URL")
	setString(&cfg.Upstream.TokenPath, "COSTSCOPE_UPSTREAM_TOKEN_PATH")
	setString(&cfg.Upstream.ClientID, "COSTSCOPE_CLIENT_ID")
	setString(&cfg.Upstream.ClientSecret, "COSTSCOPE_CLIENT_SECRET")
	setString(&cfg.Upstream.Username, "COSTSCOPE_USERNAME")
	setString(&cfg.Upstream.Password, "COSTSCOPE_PASSWORD")
	setInt(&cfg.Upstream.PageSize, "COSTSCOPE_PAGE_SIZE")
	setDuration(&cfg.Upstream.Timeout, "COSTSCOPE_UPSTREAM_TIMEOUT")

	setDuration(&cfg.Breaker.Window, "COSTSCOPE_BREAKER_WINDOW")
	setInt(&cfg.Breaker.MinVolume, "COSTSCOPE_BREAKER_MIN_VOLUME")
	setFloat64(&cfg.Breaker.ErrorThresholdPercent, "COSTSCOPE_BREAKER_ERROR_PERCENT")
	setDuration(&cfg.Breaker.ResetTimeout, "COSTSCOPE_BREAKER_RESET_TIMEOUT")
	setDuration(&cfg.Breaker.CallTimeout, "COSTSCOPE_BREAKER_CALL_TIMEOUT")

	setInt64(&cfg.Cache.MaxSizeMB, "COSTSCOPE_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "COSTSCOPE_CACHE_TTL")

	setBool(&cfg.Auth.Enabled, "COSTSCOPE_AUTH_ENABLED")
	setString(&cfg.Auth.PrincipalsFile, "COSTSCOPE_PRINCIPALS_FILE")

	setString(&cfg.Logging.Level, "COSTSCOPE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "COSTSCOPE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "COSTSCOPE_LOG_ASYNC")

	setBool(&cfg.Telemetry.Enabled, "COSTSCOPE_OTEL_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "COSTSCOPE_OTEL_ENDPOINT")

	setInt(&cfg.Analytics.DefaultMonthsBack, "COSTSCOPE_DEFAULT_MONTHS_BACK")
	setFloat64(&cfg.Analytics.AnomalyThresholdPercent, "COSTSCOPE_ANOMALY_THRESHOLD")
	setInt(&cfg.Analytics.MaxAnomalies, "COSTSCOPE_MAX_ANOMALIES")
	setInt(&cfg.Analytics.TagFetchConcurrency, "COSTSCOPE_TAG_FETCH_CONCURRENCY")
}

// validate checks that required fields are set and bounds hold.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Upstream.BaseURL == "" {
		return errors.New("upstream.base_url is required")
	}
	if cfg.Upstream.PageSize < 1 || cfg.Upstream.PageSize > 500 {
		return errors.New("upstream.page_size must be in [1,500]")
	}
	if cfg.Breaker.MinVolume < 1 {
		return errors.New("breaker.min_volume must be >= 1")
	}
	if cfg.Breaker.ErrorThresholdPercent <= 0 || cfg.Breaker.ErrorThresholdPercent > 100 {
		return errors.New("breaker.error_threshold_percent must be in (0,100]")
	}
	if cfg.Breaker.CallTimeout <= 0 {
		return errors.New("breaker.call_timeout must be > 0")
	}
	if cfg.Analytics.DefaultMonthsBack < 1 || cfg.Analytics.DefaultMonthsBack > 24 {
		return errors.New("analytics.default_months_back must be in [1,24]")
	}
	if cfg.Analytics.TagFetchConcurrency < 1 {
		return errors.New("analytics.tag_fetch_concurrency must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
