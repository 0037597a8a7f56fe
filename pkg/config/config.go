package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ekaya-docs.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Links    LinksConfig    `yaml:"links"`
	Seed     SeedConfig     `yaml:"seed"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local development without an identity provider.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`

	// Audience is the required "aud" claim. Empty disables the check.
	Audience string `yaml:"audience" env:"AUTH_AUDIENCE" env-default:"ekaya-docs"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_docs"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MinConnections int32  `yaml:"min_connections" env:"PGMIN_CONNECTIONS" env-default:"0"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	// Pool lifetimes; see pgxpool.Config for their meaning.
	MaxConnLifetime   time.Duration `yaml:"max_conn_lifetime" env:"PGMAX_CONN_LIFETIME" env-default:"1h"`
	MaxConnIdleTime   time.Duration `yaml:"max_conn_idle_time" env:"PGMAX_CONN_IDLE_TIME" env-default:"30m"`
	HealthCheckPeriod time.Duration `yaml:"health_check_period" env:"PGHEALTH_CHECK_PERIOD" env-default:"1m"`
	// MigrationTimeout bounds each migration statement so a permission problem fails fast.
	MigrationTimeout time.Duration `yaml:"migration_timeout" env:"PGMIGRATION_TIMEOUT" env-default:"60s"`
}

// RedisConfig holds the optional Redis cache configuration.
// Leave Host empty to run without a cache.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// DefaultStaleAfterDays is the link freshness window used when none is configured.
const DefaultStaleAfterDays = 90

// LinksConfig holds link maintenance settings.
type LinksConfig struct {
	// StaleAfterDays is the freshness window after which an active link needs re-verification.
	// Zero or omitted falls back to the 90 day default.
	StaleAfterDays int `yaml:"stale_after_days" env:"LINKS_STALE_AFTER_DAYS" env-default:"90"`
	// UsageCacheTTL is how long usage aggregates are cached in Redis.
	UsageCacheTTL time.Duration `yaml:"usage_cache_ttl" env:"LINKS_USAGE_CACHE_TTL" env-default:"5m"`
}

// StaleAfter returns the freshness window as a duration.
func (c *LinksConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterDays) * 24 * time.Hour
}

// SeedConfig holds the optional startup import.
type SeedConfig struct {
	// File is a YAML document imported at startup when set.
	File string `yaml:"file" env:"SEED_FILE" env-default:""`
	// Owner is the subject recorded as owner/creator of seeded rows.
	Owner string `yaml:"owner" env:"SEED_OWNER" env-default:"seed"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if cfg.Links.StaleAfterDays < 0 {
		return nil, fmt.Errorf("links.stale_after_days must not be negative, got %d", cfg.Links.StaleAfterDays)
	}
	if cfg.Links.StaleAfterDays == 0 {
		cfg.Links.StaleAfterDays = DefaultStaleAfterDays
	}

	cfg.Database.Host = resolveHostForDocker(cfg.Database.Host)
	cfg.Redis.Host = resolveHostForDocker(cfg.Redis.Host)

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	for _, pair := range strings.Split(value, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 {
			endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return endpoints
}

// resolveHostForDocker maps loopback hosts to host.docker.internal when the
// process runs inside a container, so a database on the host stays reachable.
func resolveHostForDocker(host string) string {
	if host != "localhost" && host != "127.0.0.1" {
		return host
	}
	if _, err := os.Stat("/.dockerenv"); err != nil {
		return host
	}
	return "host.docker.internal"
}

// URL returns a PostgreSQL connection URL.
func (c *DatabaseConfig) URL() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// MigrationURL returns the connection URL with a statement timeout applied.
func (c *DatabaseConfig) MigrationURL() string {
	return fmt.Sprintf("%s&statement_timeout=%d", c.URL(), c.MigrationTimeout.Milliseconds())
}
