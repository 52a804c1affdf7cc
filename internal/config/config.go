package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Environment variables that override credentials from the config file
const (
	EnvAccessToken = "MAL_ACCESS_TOKEN"
	EnvClientID    = "MAL_CLIENT_ID"
)

const (
	DefaultRetryAttempts = 3

	// MinConcurrentWorkers keeps every crawl round fanning out
	MinConcurrentWorkers = 2
)

// Config holds all runtime configuration parameters
type Config struct {
	APIBaseURL        string  `json:"api_base_url"`
	AccessToken       string  `json:"access_token"`
	ClientID          string  `json:"client_id"`
	ConcurrentWorkers int     `json:"concurrent_workers"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	RequestTimeoutMs  int     `json:"request_timeout_ms"`
	RetryAttempts     *int    `json:"retry_attempts,omitempty"` // nil means default; 0 disables retries
	RetryDelayMs      int     `json:"retry_delay_ms"`
	ImageWorkers      int     `json:"image_workers"`
	CacheDir          string  `json:"cache_dir"`
	DBPath            string  `json:"db_path"`
	OutputPath        string  `json:"output_path"`
	RenderFormat      string  `json:"render_format"`
	MetricsPath       string  `json:"metrics_path"`
}

// RequestTimeout returns the per-request timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// Retries returns how many times a transient failure is retried
func (c *Config) Retries() int {
	if c.RetryAttempts == nil {
		return 0
	}
	return *c.RetryAttempts
}

// RetryDelay returns the delay before the first retry
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// LoadConfig reads and validates configuration from a JSON file.
// A missing file is not an error; defaults and environment values are used.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	file, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	default:
		defer file.Close()
		decoder := json.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	applyEnv(&cfg)
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnv lets credentials come from the environment
func applyEnv(cfg *Config) {
	if token := os.Getenv(EnvAccessToken); token != "" {
		cfg.AccessToken = token
	}
	if id := os.Getenv(EnvClientID); id != "" {
		cfg.ClientID = id
	}
}

// ApplyDefaults sets default values for unspecified fields
func ApplyDefaults(cfg *Config) {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.myanimelist.net/v2"
	}
	if cfg.ConcurrentWorkers == 0 {
		cfg.ConcurrentWorkers = 8
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 10000
	}
	if cfg.RetryAttempts == nil {
		retries := DefaultRetryAttempts
		cfg.RetryAttempts = &retries
	}
	if cfg.RetryDelayMs == 0 {
		cfg.RetryDelayMs = 1000
	}
	if cfg.ImageWorkers == 0 {
		cfg.ImageWorkers = 4
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "cache/anime"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "cache/images.db"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = "anime-graph.dot"
	}
	if cfg.RenderFormat == "" {
		cfg.RenderFormat = "svg"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "metrics.json"
	}
}

// Validate checks that required fields are present and values are sensible
func Validate(cfg *Config) error {
	var err error
	if cfg.APIBaseURL == "" {
		err = multierror.Append(err, errors.New("api_base_url is required"))
	}
	if cfg.AccessToken == "" && cfg.ClientID == "" {
		err = multierror.Append(err, fmt.Errorf("access_token or client_id is required (or set %s / %s)", EnvAccessToken, EnvClientID))
	}
	if cfg.ConcurrentWorkers < MinConcurrentWorkers {
		err = multierror.Append(err, fmt.Errorf("concurrent_workers must be >= %d", MinConcurrentWorkers))
	}
	if cfg.ImageWorkers < 1 {
		err = multierror.Append(err, errors.New("image_workers must be >= 1"))
	}
	if cfg.RequestsPerSecond <= 0 {
		err = multierror.Append(err, errors.New("requests_per_second must be > 0"))
	}
	if cfg.RequestTimeoutMs < 1000 {
		err = multierror.Append(err, errors.New("request_timeout_ms must be >= 1000"))
	}
	if cfg.Retries() < 0 {
		err = multierror.Append(err, errors.New("retry_attempts must be >= 0"))
	}
	return err
}
