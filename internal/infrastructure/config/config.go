package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Catalog sources
const (
	CatalogSourceBuiltin  = "builtin"  // embedded Newton catalog only
	CatalogSourceDatabase = "database" // embedded catalog plus the latest stored version
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Catalog  CatalogConfig
	Log      LogConfig
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host        string
	Port        int
	MetricsPort int // Port for Prometheus metrics HTTP server
	Reflection  bool
}

// CacheConfig configures the canApply verdict cache
type CacheConfig struct {
	Enabled        bool
	MaxMemoryBytes int64 // Maximum memory usage in bytes (e.g., 1048576 = 1MB)
	Metrics        bool
	TTLMinutes     int // Time-to-live for cache entries in minutes
	CleanupSeconds int // Interval of the expired entry sweep, 0 disables it
}

// TTL returns the entry lifetime as a duration
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// CleanupInterval converts CleanupSeconds to a duration
func (c *CacheConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupSeconds) * time.Second
}

// CatalogConfig selects where schema definitions come from at startup
type CatalogConfig struct {
	Source string   // builtin or database
	Name   string   // catalog name in the repository
	Files  []string // extra DSL files installed after the built-in catalog
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string // trace, debug, info, warn, error
	Format string // json or console
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// findProjectRoot finds the project root directory by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Walk up the directory tree until we find go.mod
	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// InitConfig initializes viper configuration
// env: environment name (dev, test, prod)
func InitConfig(env string) error {
	if env == "" {
		env = "dev"
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("failed to find project root: %w", err)
	}

	viper.SetConfigName(fmt.Sprintf(".env.%s", env))
	viper.SetConfigType("env")
	viper.AddConfigPath(projectRoot)

	// Read config file (optional, ignore error if not found)
	_ = viper.ReadInConfig()

	// Environment variables take precedence over config file
	viper.AutomaticEnv()

	setDefaults()
	return nil
}

func setDefaults() {
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 50051)
	viper.SetDefault("METRICS_PORT", 9090)
	viper.SetDefault("SERVER_REFLECTION", true)

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 15432)
	viper.SetDefault("DB_USER", "schemareg")
	viper.SetDefault("DB_NAME", "schemareg_dev")
	viper.SetDefault("DB_SSLMODE", "disable")

	viper.SetDefault("CACHE_ENABLED", true)
	viper.SetDefault("CACHE_MAX_MEMORY_BYTES", 1024*1024) // 1MB
	viper.SetDefault("CACHE_METRICS", true)
	viper.SetDefault("CACHE_TTL_MINUTES", 60)
	viper.SetDefault("CACHE_CLEANUP_SECONDS", 60)

	viper.SetDefault("CATALOG_SOURCE", CatalogSourceBuiltin)
	viper.SetDefault("CATALOG_NAME", "newton")
	viper.SetDefault("CATALOG_FILES", "")

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
}

// Load loads configuration from viper
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:        viper.GetString("SERVER_HOST"),
			Port:        viper.GetInt("SERVER_PORT"),
			MetricsPort: viper.GetInt("METRICS_PORT"),
			Reflection:  viper.GetBool("SERVER_REFLECTION"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:        viper.GetBool("CACHE_ENABLED"),
			MaxMemoryBytes: viper.GetInt64("CACHE_MAX_MEMORY_BYTES"),
			Metrics:        viper.GetBool("CACHE_METRICS"),
			TTLMinutes:     viper.GetInt("CACHE_TTL_MINUTES"),
			CleanupSeconds: viper.GetInt("CACHE_CLEANUP_SECONDS"),
		},
		Catalog: CatalogConfig{
			Source: viper.GetString("CATALOG_SOURCE"),
			Name:   viper.GetString("CATALOG_NAME"),
			Files:  splitList(viper.GetString("CATALOG_FILES")),
		},
		Log: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks cross-field requirements
func (c *Config) Validate() error {
	switch c.Catalog.Source {
	case CatalogSourceBuiltin:
	case CatalogSourceDatabase:
		// DB_PASSWORD is required for security
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required (set via environment variable or .env file)")
		}
		if c.Catalog.Name == "" {
			return fmt.Errorf("CATALOG_NAME is required when CATALOG_SOURCE is %s", CatalogSourceDatabase)
		}
	default:
		return fmt.Errorf("unknown CATALOG_SOURCE %q (want %s or %s)", c.Catalog.Source, CatalogSourceBuiltin, CatalogSourceDatabase)
	}
	return nil
}

// UsesDatabase reports whether the catalog is read from PostgreSQL
func (c *Config) UsesDatabase() bool {
	return c.Catalog.Source == CatalogSourceDatabase
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}

// splitList parses a comma separated list, dropping empty items
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
