// Package config loads fitsync's configuration: a YAML file, then
// FITSYNC_* environment overrides, then validation against an embedded
// CUE schema.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. FITSYNC_DATABASE_PATH.
const EnvPrefix = "FITSYNC_"

// Config is the full application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
	Cache    CacheConfig    `yaml:"cache" envPrefix:"CACHE_"`
	Social   SocialConfig   `yaml:"social" envPrefix:"SOCIAL_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
	Media    MediaConfig    `yaml:"media" envPrefix:"MEDIA_"`
	Metrics  MetricsConfig  `yaml:"metrics" envPrefix:"METRICS_"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"PATH"`
	// PollInterval is how often change feeds look for rows written by
	// other processes.
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
}

type CacheConfig struct {
	TTL           TTLConfig     `yaml:"ttl" envPrefix:"TTL_"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	FeedPageSize  int           `yaml:"feed_page_size" env:"FEED_PAGE_SIZE"`
}

// TTLConfig holds one lifetime per cached resource.
type TTLConfig struct {
	Profile   time.Duration `yaml:"profile" env:"PROFILE"`
	Sessions  time.Duration `yaml:"sessions" env:"SESSIONS"`
	Session   time.Duration `yaml:"session" env:"SESSION"`
	Feed      time.Duration `yaml:"feed" env:"FEED"`
	Palmares  time.Duration `yaml:"palmares" env:"PALMARES"`
	PRs       time.Duration `yaml:"prs" env:"PRS"`
	Follows   time.Duration `yaml:"follows" env:"FOLLOWS"`
	MyProfile time.Duration `yaml:"my_profile" env:"MY_PROFILE"`
}

type SocialConfig struct {
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	Retries      int           `yaml:"retries" env:"RETRIES"`
	// WritesPerSecond of 0 disables the limiter.
	WritesPerSecond float64 `yaml:"writes_per_second" env:"WRITES_PER_SECOND"`
	WriteBurst      int     `yaml:"write_burst" env:"WRITE_BURST"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// SlogLevel maps Level onto slog. Unknown values map to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MediaConfig describes the object store holding avatars, banners and
// session photos. Empty credentials fall back to the AWS default chain.
type MediaConfig struct {
	Bucket          string        `yaml:"bucket" env:"BUCKET"`
	Region          string        `yaml:"region" env:"REGION"`
	Endpoint        string        `yaml:"endpoint" env:"ENDPOINT"`
	PublicBaseURL   string        `yaml:"public_base_url" env:"PUBLIC_BASE_URL"`
	AccessKeyID     string        `yaml:"access_key_id,omitempty" env:"ACCESS_KEY_ID"`
	SecretAccessKey string        `yaml:"secret_access_key,omitempty" env:"SECRET_ACCESS_KEY"`
	UploadExpiry    time.Duration `yaml:"upload_expiry" env:"UPLOAD_EXPIRY"`
	MaxPhotos       int           `yaml:"max_photos" env:"MAX_PHOTOS"`
}

type MetricsConfig struct {
	// Addr is the listen address for /metrics and /health. Empty disables it.
	Addr string `yaml:"addr" env:"ADDR"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: "./fitsync.db", PollInterval: time.Second},
		Cache: CacheConfig{
			TTL: TTLConfig{
				Profile:   60 * time.Second,
				Sessions:  30 * time.Second,
				Session:   60 * time.Second,
				Feed:      20 * time.Second,
				Palmares:  300 * time.Second,
				PRs:       120 * time.Second,
				Follows:   30 * time.Second,
				MyProfile: 30 * time.Second,
			},
			SweepInterval: time.Minute,
			FeedPageSize:  20,
		},
		Social: SocialConfig{
			WriteTimeout:    10 * time.Second,
			Retries:         1,
			WritesPerSecond: 0,
			WriteBurst:      1,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Media: MediaConfig{
			Bucket:       "fitsync-media",
			Region:       "us-east-1",
			UploadExpiry: 5 * time.Minute,
			MaxPhotos:    5,
		},
	}
}

// ResolveEnv applies FITSYNC_* overrides. Unset variables leave the
// current values alone.
func (c *Config) ResolveEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the YAML file at path on top of Default, applies the
// environment, and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ResolveEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg as YAML to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
