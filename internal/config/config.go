// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Photo drivers.
const (
	PhotoCloudinary = "cloudinary"
	PhotoFilesystem = "filesystem"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Photo       PhotoConfig       `mapstructure:"photo"`
	Scoring     ScoringConfig     `mapstructure:"scoring"`
	Geofence    GeofenceConfig    `mapstructure:"geofence"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// StatementTimeout caps every query server-side. Zero leaves the
	// server default.
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// StorageConfig selects the challenge and attempt repositories.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// PhotoConfig holds photo validation and blob storage configuration.
type PhotoConfig struct {
	Driver       string           `mapstructure:"driver"`
	MaxBytes     int64            `mapstructure:"max_bytes"`
	AllowedTypes []string         `mapstructure:"allowed_types"`
	Cloudinary   CloudinaryConfig `mapstructure:"cloudinary"`
	Filesystem   FilesystemConfig `mapstructure:"filesystem"`
}

// CloudinaryConfig holds Cloudinary credentials.
type CloudinaryConfig struct {
	CloudName string `mapstructure:"cloud_name"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Folder    string `mapstructure:"folder"`
}

// FilesystemConfig holds local photo storage configuration. BaseURL may be
// a path ("/uploads") or an absolute URL ("https://cdn.example.com/uploads").
type FilesystemConfig struct {
	Dir     string `mapstructure:"dir"`
	BaseURL string `mapstructure:"base_url"`
}

// PathPrefix returns the path part of BaseURL, which is where the server
// mounts the photo directory.
func (f FilesystemConfig) PathPrefix() string {
	u, err := url.Parse(f.BaseURL)
	if err != nil {
		return ""
	}
	return strings.TrimRight(u.Path, "/")
}

// absoluteBaseURL reports whether BaseURL can be fetched by another host.
func (f FilesystemConfig) absoluteBaseURL() bool {
	u, err := url.Parse(f.BaseURL)
	return err == nil && u.IsAbs() && u.Host != ""
}

// ScoringConfig holds the external similarity scorer configuration.
// An empty Endpoint disables photo-only guesses.
type ScoringConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Threshold float64       `mapstructure:"threshold"`
}

// GeofenceConfig holds geofence evaluation settings.
type GeofenceConfig struct {
	ToleranceMeters float64 `mapstructure:"tolerance_meters"`
}

// RateLimitConfig limits guesses per user.
type RateLimitConfig struct {
	GuessesPerSecond float64 `mapstructure:"guesses_per_second"`
	Burst            int     `mapstructure:"burst"`
}

// LeaderboardConfig holds leaderboard defaults.
type LeaderboardConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
}

// NotifyConfig holds solve announcement configuration.
type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds the announcement bot settings. Announcements are
// disabled when Token is empty.
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

// LedgerConfig holds attempt ledger settings.
type LedgerConfig struct {
	// LockTimeout bounds how long a guess waits for its (challenge, user)
	// pair before failing.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory is loaded first if present.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. DATABASE_HOST, PHOTO_CLOUDINARY_API_KEY, NOTIFY_TELEGRAM_TOKEN
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that have no safe fallback.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Photo.Driver {
	case PhotoCloudinary, PhotoFilesystem:
	default:
		return fmt.Errorf("unknown photo driver %q", c.Photo.Driver)
	}
	// The scorer fetches challenge photos by reference, so local photos
	// need a URL it can reach.
	if c.Scoring.Endpoint != "" && c.Photo.Driver == PhotoFilesystem && !c.Photo.Filesystem.absoluteBaseURL() {
		return fmt.Errorf("photo.filesystem.base_url %q must be an absolute URL when a scorer is configured", c.Photo.Filesystem.BaseURL)
	}
	if c.Scoring.Threshold < 0 || c.Scoring.Threshold > 1 {
		return fmt.Errorf("scoring threshold %v must be within [0, 1]", c.Scoring.Threshold)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "geochallenge")
	v.SetDefault("database.name", "geochallenge")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.statement_timeout", "10s")

	v.SetDefault("storage.driver", StoragePostgres)

	v.SetDefault("photo.driver", PhotoFilesystem)
	v.SetDefault("photo.max_bytes", 16<<20)
	v.SetDefault("photo.allowed_types", []string{"image/png", "image/jpeg"})
	v.SetDefault("photo.cloudinary.folder", "geochallenge")
	v.SetDefault("photo.filesystem.dir", "uploads")
	v.SetDefault("photo.filesystem.base_url", "/uploads")

	v.SetDefault("scoring.timeout", "5s")
	v.SetDefault("scoring.threshold", 0.8)

	v.SetDefault("geofence.tolerance_meters", 3.0)

	v.SetDefault("ratelimit.guesses_per_second", 1.0)
	v.SetDefault("ratelimit.burst", 5)

	v.SetDefault("leaderboard.default_limit", 100)

	v.SetDefault("ledger.lock_timeout", "5s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}
