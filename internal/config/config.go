package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultAPIBaseURL = "http://localhost:8080"

// Config holds runtime settings for the CLI app.
type Config struct {
	APIBaseURL         string        `yaml:"api_base_url"`
	DBPath             string        `yaml:"db_path"`
	LogPath            string        `yaml:"log_path"`
	ScanMode           string        `yaml:"scan_mode"`
	AutoFetchReference bool          `yaml:"auto_fetch_reference"`
	FeedEnabled        bool          `yaml:"feed_enabled"`
	RetryInterval      time.Duration `yaml:"retry_interval"`
	RetryMaxAttempts   int           `yaml:"retry_max_attempts"`
	FeedInterval       time.Duration `yaml:"feed_interval"`
	BulkInterval       time.Duration `yaml:"bulk_interval"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	MetricsAddr        string        `yaml:"metrics_addr"`
	Debug              bool          `yaml:"debug"`
}

func Default() Config {
	return Config{
		APIBaseURL:     defaultAPIBaseURL,
		DBPath:         "mug.db",
		LogPath:        "mug.log",
		ScanMode:       "fire",
		FeedEnabled:    true,
		RetryInterval:  5 * time.Second,
		FeedInterval:   5 * time.Second,
		BulkInterval:   5 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// LoadFromEnv builds the config from defaults, then the YAML file named by
// MUG_CONFIG, then MUG_* environment variables. A .env file in the working
// directory is loaded first when present.
func LoadFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("MUG_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.APIBaseURL, "MUG_API_BASE_URL")
	setString(&c.DBPath, "MUG_DB_PATH")
	setString(&c.LogPath, "MUG_LOG_PATH")
	setString(&c.ScanMode, "MUG_SCAN_MODE")
	setString(&c.MetricsAddr, "MUG_METRICS_ADDR")

	if err := setBool(&c.AutoFetchReference, "MUG_AUTO_FETCH_REFERENCE"); err != nil {
		return err
	}
	if err := setBool(&c.FeedEnabled, "MUG_FEED_ENABLED"); err != nil {
		return err
	}
	if err := setBool(&c.Debug, "MUG_DEBUG"); err != nil {
		return err
	}
	if err := setDuration(&c.RetryInterval, "MUG_RETRY_INTERVAL"); err != nil {
		return err
	}
	if err := setDuration(&c.FeedInterval, "MUG_FEED_INTERVAL"); err != nil {
		return err
	}
	if err := setDuration(&c.BulkInterval, "MUG_BULK_INTERVAL"); err != nil {
		return err
	}
	if err := setDuration(&c.RequestTimeout, "MUG_REQUEST_TIMEOUT"); err != nil {
		return err
	}
	if v := os.Getenv("MUG_RETRY_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MUG_RETRY_MAX_ATTEMPTS must be an integer: %s", v)
		}
		c.RetryMaxAttempts = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s must be a boolean: %s", key, v)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s must be a duration: %s", key, v)
	}
	*dst = d
	return nil
}

func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("APIBaseURL is required")
	}
	if c.DBPath == "" {
		return errors.New("DBPath is required")
	}
	if c.LogPath == "" {
		return errors.New("LogPath is required")
	}
	if c.ScanMode != "fire" && c.ScanMode != "poll" {
		return fmt.Errorf("ScanMode must be fire or poll: %s", c.ScanMode)
	}
	if c.APIBaseURL[len(c.APIBaseURL)-1] == '/' {
		return fmt.Errorf("APIBaseURL must not end with '/': %s", c.APIBaseURL)
	}
	for name, d := range map[string]time.Duration{
		"RetryInterval":  c.RetryInterval,
		"FeedInterval":   c.FeedInterval,
		"BulkInterval":   c.BulkInterval,
		"RequestTimeout": c.RequestTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive: %s", name, d)
		}
	}
	if c.RetryMaxAttempts < 0 {
		return fmt.Errorf("RetryMaxAttempts must not be negative: %d", c.RetryMaxAttempts)
	}
	return nil
}
