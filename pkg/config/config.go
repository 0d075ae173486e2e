// Package config loads the FederationServer configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (FEDERATION_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/abuseshield/federation/internal/logger"
	"github.com/abuseshield/federation/pkg/federation/models"
)

// Config is the full server configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging logger.Config `mapstructure:"logging" yaml:"logging"`

	// Server contains the HTTP surface and federation policy settings.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Database configures the relational store (MySQL, or SQLite for
	// single-node and test deployments).
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Cache configures the optional Redis read cache.
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Maintenance configures the cleanup tasks run by `federationd maintenance`.
	Maintenance MaintenanceConfig `mapstructure:"maintenance" yaml:"maintenance"`

	// Metrics controls the Prometheus endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig contains HTTP server and federation policy settings.
type ServerConfig struct {
	// Listen is the host:port the HTTP server binds to.
	Listen string `mapstructure:"listen" validate:"required" yaml:"listen"`

	// BaseURL is the externally visible base URL of this server.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Name identifies this federation server to peers and in /info.
	Name string `mapstructure:"name" yaml:"name"`

	// APIKey is the master operator key. Presenting it authenticates as
	// the master operator with all permissions. Generated if empty.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`

	// MaxUploadSize caps attachment uploads, in bytes.
	MaxUploadSize int64 `mapstructure:"max_upload_size" validate:"gt=0" yaml:"max_upload_size"`

	// MaxStorageFiles caps the number of files in the storage directory.
	// Zero disables the cap.
	MaxStorageFiles int `mapstructure:"max_storage_files" yaml:"max_storage_files"`

	// StoragePath is the attachment storage directory.
	StoragePath string `mapstructure:"storage_path" validate:"required" yaml:"storage_path"`

	// PageLimits caps list page sizes per record kind.
	PageLimits PageLimits `mapstructure:"page_limits" yaml:"page_limits"`

	// Public visibility toggles for the anonymous read path.
	PublicAuditLogs bool `mapstructure:"public_audit_logs" yaml:"public_audit_logs"`
	PublicEvidence  bool `mapstructure:"public_evidence" yaml:"public_evidence"`
	PublicBlacklist bool `mapstructure:"public_blacklist" yaml:"public_blacklist"`
	PublicEntities  bool `mapstructure:"public_entities" yaml:"public_entities"`

	// PublicAuditEntries is the set of audit entry types exposed to
	// anonymous listers when public_audit_logs is enabled.
	PublicAuditEntries []string `mapstructure:"public_audit_entries" yaml:"public_audit_entries"`

	// MinBlacklistTime is the minimum distance between a blacklist
	// record's creation and its expiry.
	MinBlacklistTime time.Duration `mapstructure:"min_blacklist_time" yaml:"min_blacklist_time"`
}

// PageLimits caps the `limit` query parameter per record kind.
type PageLimits struct {
	Operators int `mapstructure:"operators" validate:"gt=0" yaml:"operators"`
	Entities  int `mapstructure:"entities" validate:"gt=0" yaml:"entities"`
	Evidence  int `mapstructure:"evidence" validate:"gt=0" yaml:"evidence"`
	Blacklist int `mapstructure:"blacklist" validate:"gt=0" yaml:"blacklist"`
	AuditLogs int `mapstructure:"audit_logs" validate:"gt=0" yaml:"audit_logs"`
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	// Type selects the backend: "mysql" or "sqlite".
	Type string `mapstructure:"type" validate:"oneof=mysql sqlite" yaml:"type"`

	// SQLitePath is the database file for the sqlite backend.
	// ":memory:" is accepted for tests.
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`

	Host      string `mapstructure:"host" yaml:"host"`
	Port      int    `mapstructure:"port" yaml:"port"`
	Username  string `mapstructure:"username" yaml:"username"`
	Password  string `mapstructure:"password" yaml:"password"`
	Name      string `mapstructure:"name" yaml:"name"`
	Charset   string `mapstructure:"charset" yaml:"charset"`
	Collation string `mapstructure:"collation" yaml:"collation"`

	MaxOpenConns int `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
}

// CacheKindPolicy is the per-kind cache policy.
type CacheKindPolicy struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Limit   int           `mapstructure:"limit" yaml:"limit"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// CacheConfig configures the Redis cache. The cache is a performance
// accelerant only; with Enabled false every read goes to the database.
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Password string `mapstructure:"password" yaml:"password"`
	Database int    `mapstructure:"database" yaml:"database"`

	// ThrowOnErrors surfaces cache failures as request errors instead of
	// degrading to a cache miss.
	ThrowOnErrors bool `mapstructure:"throw_on_errors" yaml:"throw_on_errors"`

	// PreCacheEnabled populates the cache on writes, not just on reads.
	PreCacheEnabled bool `mapstructure:"pre_cache_enabled" yaml:"pre_cache_enabled"`

	// SystemCachingEnabled caches system records (the master operator).
	SystemCachingEnabled bool `mapstructure:"system_caching_enabled" yaml:"system_caching_enabled"`

	Operators CacheKindPolicy `mapstructure:"operators" yaml:"operators"`
	Entities  CacheKindPolicy `mapstructure:"entities" yaml:"entities"`
	Evidence  CacheKindPolicy `mapstructure:"evidence" yaml:"evidence"`
	Blacklist CacheKindPolicy `mapstructure:"blacklist" yaml:"blacklist"`
}

// MaintenanceConfig configures cleanup behavior.
type MaintenanceConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// CleanAuditLogsDays prunes audit entries older than this many days.
	// Zero disables pruning.
	CleanAuditLogsDays int `mapstructure:"clean_audit_logs_days" yaml:"clean_audit_logs_days"`

	// CleanBlacklistDays prunes lifted or expired blacklist records older
	// than this many days. Zero disables pruning.
	CleanBlacklistDays int `mapstructure:"clean_blacklist_days" yaml:"clean_blacklist_days"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "federation", "config.yaml")
}

// Default returns the configuration defaults. A fresh install with this
// configuration and a reachable database is functional.
func Default() *Config {
	return &Config{
		Logging: logger.Config{Level: "INFO", Format: "text", Output: "stdout"},
		Server: ServerConfig{
			Listen:        ":8080",
			Name:          "federation",
			MaxUploadSize: 50 * 1024 * 1024,
			StoragePath:   "/var/lib/federation/storage",
			PageLimits: PageLimits{
				Operators: 100,
				Entities:  100,
				Evidence:  100,
				Blacklist: 100,
				AuditLogs: 100,
			},
			MinBlacklistTime: 30 * time.Minute,
		},
		Database: DatabaseConfig{
			Type:         "mysql",
			Host:         "localhost",
			Port:         3306,
			Username:     "federation",
			Name:         "federation",
			Charset:      "utf8mb4",
			Collation:    "utf8mb4_unicode_ci",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Cache: CacheConfig{
			Host:      "localhost",
			Port:      6379,
			Operators: CacheKindPolicy{Enabled: true, Limit: 1000, TTL: 30 * time.Minute},
			Entities:  CacheKindPolicy{Enabled: true, Limit: 10000, TTL: 30 * time.Minute},
			Evidence:  CacheKindPolicy{Enabled: true, Limit: 10000, TTL: 30 * time.Minute},
			Blacklist: CacheKindPolicy{Enabled: true, Limit: 10000, TTL: 30 * time.Minute},
		},
		Maintenance: MaintenanceConfig{
			Enabled:            true,
			CleanAuditLogsDays: 365,
			CleanBlacklistDays: 0,
		},
	}
}

// envBindings maps configuration keys to their documented environment
// variables. Names are part of the external interface, so they are bound
// explicitly rather than derived from the key path.
var envBindings = map[string]string{
	"logging.level":                 "FEDERATION_LOG_LEVEL",
	"logging.format":                "FEDERATION_LOG_FORMAT",
	"server.listen":                 "FEDERATION_LISTEN",
	"server.base_url":               "FEDERATION_BASE_URL",
	"server.name":                   "FEDERATION_NAME",
	"server.api_key":                "FEDERATION_API_KEY",
	"server.max_upload_size":        "FEDERATION_MAX_UPLOAD_SIZE",
	"server.storage_path":           "FEDERATION_STORAGE_PATH",
	"server.public_audit_logs":      "FEDERATION_PUBLIC_AUDIT_LOGS",
	"server.public_evidence":        "FEDERATION_PUBLIC_EVIDENCE",
	"server.public_blacklist":       "FEDERATION_PUBLIC_BLACKLIST",
	"server.public_entities":        "FEDERATION_PUBLIC_ENTITIES",
	"server.min_blacklist_time":     "FEDERATION_MIN_BLACKLIST_TIME",
	"database.type":                 "FEDERATION_DATABASE_TYPE",
	"database.host":                 "FEDERATION_DATABASE_HOST",
	"database.port":                 "FEDERATION_DATABASE_PORT",
	"database.username":             "FEDERATION_DATABASE_USERNAME",
	"database.password":             "FEDERATION_DATABASE_PASSWORD",
	"database.name":                 "FEDERATION_DATABASE_NAME",
	"database.charset":              "FEDERATION_DATABASE_CHARSET",
	"database.collation":            "FEDERATION_DATABASE_COLLATION",
	"cache.enabled":                 "FEDERATION_REDIS_ENABLED",
	"cache.host":                    "FEDERATION_REDIS_HOST",
	"cache.port":                    "FEDERATION_REDIS_PORT",
	"cache.password":                "FEDERATION_REDIS_PASSWORD",
	"cache.database":                "FEDERATION_REDIS_DATABASE",
	"cache.throw_on_errors":         "FEDERATION_REDIS_THROW_ON_ERRORS",
	"cache.pre_cache_enabled":       "FEDERATION_REDIS_PRE_CACHE_ENABLED",
	"cache.system_caching_enabled":  "FEDERATION_REDIS_SYSTEM_CACHING_ENABLED",
	"cache.operators.enabled":       "FEDERATION_CACHE_OPERATORS_ENABLED",
	"cache.operators.limit":         "FEDERATION_CACHE_OPERATORS_LIMIT",
	"cache.operators.ttl":           "FEDERATION_CACHE_OPERATORS_TTL",
	"cache.entities.enabled":        "FEDERATION_CACHE_ENTITIES_ENABLED",
	"cache.entities.limit":          "FEDERATION_CACHE_ENTITIES_LIMIT",
	"cache.entities.ttl":            "FEDERATION_CACHE_ENTITIES_TTL",
	"cache.evidence.enabled":        "FEDERATION_CACHE_EVIDENCE_ENABLED",
	"cache.evidence.limit":          "FEDERATION_CACHE_EVIDENCE_LIMIT",
	"cache.evidence.ttl":            "FEDERATION_CACHE_EVIDENCE_TTL",
	"cache.blacklist.enabled":       "FEDERATION_CACHE_BLACKLIST_ENABLED",
	"cache.blacklist.limit":         "FEDERATION_CACHE_BLACKLIST_LIMIT",
	"cache.blacklist.ttl":           "FEDERATION_CACHE_BLACKLIST_TTL",
	"maintenance.enabled":           "FEDERATION_MAINTENANCE_ENABLED",
	"maintenance.clean_audit_logs_days": "FEDERATION_MAINTENANCE_CLEAN_AUDIT_LOGS_DAYS",
	"maintenance.clean_blacklist_days":  "FEDERATION_MAINTENANCE_CLEAN_BLACKLIST_DAYS",
	"metrics.enabled":               "FEDERATION_METRICS_ENABLED",
}

// Load reads the configuration from path (or the default location when
// path is empty), applies environment overrides and defaults, and
// validates the result. A missing file is not an error: env overrides on
// top of defaults are enough to run.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path == "" {
		path = DefaultConfigPath()
	}
	v.SetConfigFile(path)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := Default()
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		durationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if cfg.Server.APIKey == "" {
		key, err := models.GenerateAPIKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate master API key: %w", err)
		}
		cfg.Server.APIKey = key
		logger.Warn("no master API key configured, generated a random one",
			"api_key", key,
		)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// durationHookFunc decodes duration fields. Suffixed strings ("30m") go
// through time.ParseDuration; bare integers are seconds, matching how the
// documented environment variables (FEDERATION_MIN_BLACKLIST_TIME, cache
// TTLs) express time.
func durationHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch f.Kind() {
		case reflect.String:
			s := data.(string)
			if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
				return time.Duration(secs) * time.Second, nil
			}
			return time.ParseDuration(s)
		case reflect.Int, reflect.Int64, reflect.Float64:
			n, err := strconv.ParseInt(fmt.Sprintf("%v", data), 10, 64)
			if err != nil {
				return data, nil
			}
			return time.Duration(n) * time.Second, nil
		}
		return data, nil
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if len(c.Server.APIKey) != models.APIKeyLength {
		return fmt.Errorf("server.api_key must be exactly %d characters", models.APIKeyLength)
	}
	if c.Server.MinBlacklistTime < 0 {
		return fmt.Errorf("server.min_blacklist_time must not be negative")
	}
	for _, t := range c.Server.PublicAuditEntries {
		if !models.AuditType(t).IsValid() {
			return fmt.Errorf("server.public_audit_entries: unknown audit type %q", t)
		}
	}
	if c.Database.Type == "sqlite" && c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required for the sqlite backend")
	}
	if c.Database.Type == "mysql" && c.Database.Host == "" {
		return fmt.Errorf("database.host is required for the mysql backend")
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
