package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Database    DatabaseConfig    `toml:"database"`
	ObjectStore ObjectStoreConfig `toml:"object_store"`
	Vault       VaultConfig       `toml:"vault"`
	Browser     BrowserConfig     `toml:"browser"`
	Extractor   ExtractorConfig   `toml:"extractor"`
	Scheduler   SchedulerConfig   `toml:"scheduler"`
	Logging     LoggingConfig     `toml:"logging"`
}

// DatabaseConfig selects and configures the GORM backend
type DatabaseConfig struct {
	Driver          string        `toml:"driver"` // "postgres" or "sqlite"
	URL             string        `toml:"url"`    // DSN; DATABASE_URL overrides
	Path            string        `toml:"path"`   // sqlite file path
	MaxIdleConns    int           `toml:"max_idle_conns"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	AutoMigrate     bool          `toml:"auto_migrate"`
}

// ObjectStoreConfig configures the S3-compatible document bucket
type ObjectStoreConfig struct {
	Endpoint    string `toml:"endpoint"`
	Region      string `toml:"region"`
	Bucket      string `toml:"bucket"`
	AccessKey   string `toml:"access_key"`
	SecretKey   string `toml:"secret_key"`
	Credentials string `toml:"credentials"` // "access:secret" pair; OBJECT_STORE_CREDENTIALS overrides
	UseSSL      bool   `toml:"use_ssl"`
	PublicURL   string `toml:"public_url"`
}

// VaultConfig configures credential encryption
type VaultConfig struct {
	EncryptionKey string `toml:"encryption_key" validate:"required"` // SYMMETRIC_ENCRYPTION_KEY overrides
}

// BrowserConfig configures the shared headless browser
type BrowserConfig struct {
	Headless    bool          `toml:"headless"`
	NoSandbox   bool          `toml:"no_sandbox"`
	DisableGPU  bool          `toml:"disable_gpu"`
	UserAgent   string        `toml:"user_agent"`
	NavTimeout  time.Duration `toml:"nav_timeout"`  // BROWSER_NAV_TIMEOUT_MS overrides
	NavInterval time.Duration `toml:"nav_interval"` // minimum delay between navigations per tenant
	DownloadDir string        `toml:"download_dir"` // scratch space for document downloads
}

// ExtractorConfig bounds the per-process worker fan-out
type ExtractorConfig struct {
	WorkerLimit int           `toml:"worker_limit" validate:"gte=1,lte=50"` // EXTRACTOR_WORKER_LIMIT overrides
	RunTimeout  time.Duration `toml:"run_timeout"`                          // EXTRACTION_RUN_TIMEOUT_MS overrides
}

// SchedulerConfig controls the in-memory schedule engine
type SchedulerConfig struct {
	ShutdownGrace time.Duration `toml:"shutdown_grace"` // SCHEDULER_SHUTDOWN_GRACE_MS overrides
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultConfig returns the baseline configuration before file/env layering
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Path:            "./data/conectasei.db",
			MaxIdleConns:    5,
			MaxOpenConns:    20,
			ConnMaxLifetime: time.Hour,
			AutoMigrate:     true,
		},
		ObjectStore: ObjectStoreConfig{
			Region: "us-east-1",
			UseSSL: true,
		},
		Browser: BrowserConfig{
			Headless:    true,
			NoSandbox:   true,
			DisableGPU:  true,
			UserAgent:   "ConectaSEI/2.0",
			NavTimeout:  30 * time.Second,
			NavInterval: 500 * time.Millisecond,
			DownloadDir: "./data/temp_downloads",
		},
		Extractor: ExtractorConfig{
			WorkerLimit: 5,
			RunTimeout:  30 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			ShutdownGrace: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration from TOML files in order, each layered
// over the previous, then applies environment overrides.
// Later files override earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvironmentOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvironmentOverrides applies the binding environment options over the
// file-loaded configuration. Millisecond options accept bare integers.
func applyEnvironmentOverrides(config *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		config.Database.URL = v
		config.Database.Driver = "postgres"
	}
	if v := os.Getenv("OBJECT_STORE_CREDENTIALS"); v != "" {
		config.ObjectStore.Credentials = v
	}
	if v := os.Getenv("OBJECT_STORE_BUCKET"); v != "" {
		config.ObjectStore.Bucket = v
	}
	if v := os.Getenv("OBJECT_STORE_ENDPOINT"); v != "" {
		config.ObjectStore.Endpoint = v
	}
	if v := os.Getenv("SYMMETRIC_ENCRYPTION_KEY"); v != "" {
		config.Vault.EncryptionKey = v
	}
	if v := os.Getenv("EXTRACTOR_WORKER_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Extractor.WorkerLimit = n
		}
	}
	if d, ok := envMillis("BROWSER_NAV_TIMEOUT_MS"); ok {
		config.Browser.NavTimeout = d
	}
	if d, ok := envMillis("EXTRACTION_RUN_TIMEOUT_MS"); ok {
		config.Extractor.RunTimeout = d
	}
	if d, ok := envMillis("SCHEDULER_SHUTDOWN_GRACE_MS"); ok {
		config.Scheduler.ShutdownGrace = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

func envMillis(name string) (time.Duration, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
