package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"nflpicks/tracker/internal/cloudsync"
	"nflpicks/tracker/internal/repository"
	"nflpicks/tracker/internal/storage"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Storage and registry backends.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"

	RegistryFile     = "file"
	RegistryPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP API
	HTTPPort           int      `envconfig:"HTTP_PORT" default:"8080"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Local persistence
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"file"`
	StoragePath    string `envconfig:"STORAGE_PATH" default:"data/local.json"`

	// Redis
	RedisHost      string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort      int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	RedisKeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"nfl:"`

	// Schedule registry
	RegistryBackend string `envconfig:"REGISTRY_BACKEND" default:"file"`
	SchedulePath    string `envconfig:"SCHEDULE_PATH" default:"data/schedule.json"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"nfl_tracker"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"nfl_user"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" default:""`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Cloud sync
	SyncProvider   string        `envconfig:"SYNC_PROVIDER" default:"gist"`
	GitHubAPIURL   string        `envconfig:"GITHUB_API_URL" default:"https://api.github.com"`
	GitHubToken    string        `envconfig:"GITHUB_TOKEN" default:""`
	GistID         string        `envconfig:"GIST_ID" default:""`
	SyncTimeout    time.Duration `envconfig:"SYNC_TIMEOUT" default:"10s"`
	AutoBackup     string        `envconfig:"AUTO_BACKUP" default:"none"`
	ResyncInterval time.Duration `envconfig:"RESYNC_INTERVAL" default:"5m"`
	DebounceDelay  time.Duration `envconfig:"DEBOUNCE_DELAY" default:"300ms"`

	// Score ingestion
	ESPNBaseURL string        `envconfig:"ESPN_BASE_URL" default:"https://site.api.espn.com/apis/site/v2/sports/football/nfl"`
	ESPNTimeout time.Duration `envconfig:"ESPN_TIMEOUT" default:"10s"`
	Season      int           `envconfig:"SEASON" default:"0"`
	SeasonType  int           `envconfig:"SEASON_TYPE" default:"2"`

	// Scheduler
	EnableScheduler    bool          `envconfig:"ENABLE_SCHEDULER" default:"true"`
	InitialSyncEnabled bool          `envconfig:"INITIAL_SYNC_ENABLED" default:"true"`
	ScoreRefreshCron   string        `envconfig:"SCORE_REFRESH_CRON" default:"*/30 * * * *"`
	LivePollInterval   time.Duration `envconfig:"LIVE_POLL_INTERVAL" default:"60s"`

	// Recompute job
	ReportPath string `envconfig:"REPORT_PATH" default:"data/accuracy_report.json"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory, StorageFile, StorageRedis:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of memory, file, redis (got %q)", c.StorageBackend)
	}
	if c.StorageBackend == StorageFile && c.StoragePath == "" {
		return fmt.Errorf("STORAGE_PATH is required for the file backend")
	}

	switch c.RegistryBackend {
	case RegistryFile:
		if c.SchedulePath == "" {
			return fmt.Errorf("SCHEDULE_PATH is required for the file registry")
		}
	case RegistryPostgres:
		if c.DatabasePassword == "" {
			return fmt.Errorf("DATABASE_PASSWORD is required for the postgres registry")
		}
	default:
		return fmt.Errorf("REGISTRY_BACKEND must be file or postgres (got %q)", c.RegistryBackend)
	}

	if _, err := cloudsync.ParseProviderKind(c.SyncProvider); err != nil {
		return fmt.Errorf("SYNC_PROVIDER: %w", err)
	}
	if _, err := cloudsync.ParseInterval(c.AutoBackup); err != nil {
		return fmt.Errorf("AUTO_BACKUP: %w", err)
	}
	if c.SyncTimeout <= 0 {
		return fmt.Errorf("SYNC_TIMEOUT must be positive")
	}
	if c.SeasonType < 1 || c.SeasonType > 3 {
		return fmt.Errorf("SEASON_TYPE must be 1, 2 or 3")
	}

	return nil
}

// DatabaseConfig returns the PostgreSQL connection settings
func (c *Config) DatabaseConfig() repository.Config {
	return repository.Config{
		Host:     c.DatabaseHost,
		Port:     strconv.Itoa(c.DatabasePort),
		User:     c.DatabaseUser,
		Password: c.DatabasePassword,
		Database: c.DatabaseName,
		SSLMode:  c.DatabaseSSLMode,
	}
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// RedisConfig returns the Redis persistence settings
func (c *Config) RedisConfig() storage.RedisConfig {
	return storage.RedisConfig{
		Addr:      c.RedisAddr(),
		Password:  c.RedisPassword,
		DB:        c.RedisDB,
		KeyPrefix: c.RedisKeyPrefix,
	}
}

// ProviderKind returns the configured sync provider.
func (c *Config) ProviderKind() cloudsync.ProviderKind {
	kind, _ := cloudsync.ParseProviderKind(c.SyncProvider)
	return kind
}

// AutoBackupInterval returns the configured backup cadence.
func (c *Config) AutoBackupInterval() cloudsync.Interval {
	iv, _ := cloudsync.ParseInterval(c.AutoBackup)
	return iv
}

// AllowedOrigins returns CORS origins with blanks removed.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range c.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
