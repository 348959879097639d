package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides (SYNC_DATABASE_PASSWORD)
const EnvPrefix = "SYNC"

// Config holds all application configuration. Keys are the snake_case
// mapstructure tags, grouped by section: database.max_open_conns.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Swagger    SwaggerConfig    `mapstructure:"swagger"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Vault      VaultConfig      `mapstructure:"vault"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Connectors ConnectorsConfig `mapstructure:"connectors"`

	v *viper.Viper
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

func (a AppConfig) IsProduction() bool { return a.Env == "production" }

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	// LogLevel is the GORM log level: silent, error, warn, info
	LogLevel           string        `mapstructure:"log_level"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
	// AutoMigrate applies the embedded migrations on server start
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// RedisConfig holds Redis connection settings. When disabled, dedup and
// locking stay in-process.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

type HTTPConfig struct {
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"`
	MaxBodySize       int64         `mapstructure:"max_body_size"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
	// No origin is allowed until configured.
	CORSAllowOrigins []string `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string `mapstructure:"trusted_proxies"`
}

// AuthConfig holds API token settings. Callers present an HS256 bearer
// token whose tenant_id claim scopes every request.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"` // defaults to app.name
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	// AllowTenantHeader accepts X-Tenant-ID without a token, development only
	AllowTenantHeader bool `mapstructure:"allow_tenant_header"`
}

type SwaggerConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	AllowedIPs []string `mapstructure:"allowed_ips"` // empty allows all
}

type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"` // OTLP gRPC, host:port
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"` // defaults to app.name
	Insecure          bool          `mapstructure:"insecure"`
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

type SyncConfig struct {
	// Workers bounds concurrent records within a page
	Workers  int `mapstructure:"workers"`
	PageSize int `mapstructure:"page_size"`
	// CallTimeout bounds every single external call
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	// LockTTL bounds how long a crashed worker can hold a sync key
	LockTTL          time.Duration `mapstructure:"lock_ttl"`
	RetryMaxAttempts int           `mapstructure:"retry_max_attempts"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay    time.Duration `mapstructure:"retry_max_delay"`
	RetryJitter      float64       `mapstructure:"retry_jitter"`
	// RecoverOnStart re-enqueues interrupted runs at boot
	RecoverOnStart bool `mapstructure:"recover_on_start"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
	MaxBodySize    int64         `mapstructure:"max_body_size"`
	// Secrets holds the shared HMAC secret per platform code
	Secrets map[string]string `mapstructure:"-"`
	// NodeID distinguishes instances in snowflake event ids (0-1023)
	NodeID        int64         `mapstructure:"node_id"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

type SchedulerConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Workers            int           `mapstructure:"workers"`
	QueueSize          int           `mapstructure:"queue_size"`
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	JobTimeout         time.Duration `mapstructure:"job_timeout"`
	FailureThreshold   int           `mapstructure:"failure_threshold"`
	SuspendOnThreshold bool          `mapstructure:"suspend_on_threshold"`
}

type VaultConfig struct {
	// MasterKey is a standard base64 encoded 32-byte key
	MasterKey string `mapstructure:"master_key"`
}

// NotifyConfig holds the outbound operator notification webhook.
type NotifyConfig struct {
	WebhookURL     string        `mapstructure:"webhook_url"`
	WebhookSecret  string        `mapstructure:"webhook_secret"`
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
}

type ConnectorsConfig struct {
	Storefront StorefrontConnectorConfig `mapstructure:"storefront"`
	Accounting AccountingConnectorConfig `mapstructure:"accounting"`
	Warehouse  WarehouseConnectorConfig  `mapstructure:"warehouse"`
}

// HTTPClientConfig holds the outbound settings shared by HTTP connectors
type HTTPClientConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	BaseURL   string  `mapstructure:"base_url"`
	RateLimit float64 `mapstructure:"rate_limit"` // requests per second, 0 disables limiting
	Burst     int     `mapstructure:"burst"`
	UserAgent string  `mapstructure:"user_agent"`
}

type StorefrontConnectorConfig struct {
	HTTPClientConfig `mapstructure:",squash"`
	TokenPath        string `mapstructure:"token_path"`
	DefaultCurrency  string `mapstructure:"default_currency"`
}

type AccountingConnectorConfig struct {
	HTTPClientConfig `mapstructure:",squash"`
	TokenPath        string        `mapstructure:"token_path"`
	DefaultCurrency  string        `mapstructure:"default_currency"`
	DefaultTaxCode   string        `mapstructure:"default_tax_code"`
	ShippingItemCode string        `mapstructure:"shipping_item_code"`
	AssertionTTL     time.Duration `mapstructure:"assertion_ttl"`
}

// WarehouseConnectorConfig stages records in object storage. The bucket
// settings sit directly under connectors.warehouse.
type WarehouseConnectorConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Prefix  string        `mapstructure:"prefix"`
	Storage StorageConfig `mapstructure:",squash"`
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Bucket       string `mapstructure:"bucket"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Endpoint     string `mapstructure:"endpoint"`
	Region       string `mapstructure:"region"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	UseSSL       bool   `mapstructure:"use_ssl"`
}

// defaults lists every key. Keys without a default are listed with their
// zero value so that SYNC_ environment variables reach them.
var defaults = map[string]any{
	"app.name": "syncengine",
	"app.env":  "development",
	"app.port": "8080",

	"http.read_timeout":        15 * time.Second,
	"http.write_timeout":       15 * time.Second,
	"http.idle_timeout":        time.Minute,
	"http.shutdown_timeout":    30 * time.Second,
	"http.max_header_bytes":    1 << 20,
	"http.max_body_size":       10 << 20,
	"http.rate_limit_enabled":  false,
	"http.rate_limit_requests": 100,
	"http.rate_limit_window":   time.Minute,
	"http.cors_allow_origins":  []string{},
	"http.cors_allow_methods":  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	"http.cors_allow_headers":  []string{"Content-Type", "X-Request-ID", "X-Tenant-ID", "Idempotency-Key"},
	"http.trusted_proxies":     []string{},

	"auth.jwt_secret":          "",
	"auth.issuer":              "",
	"auth.token_ttl":           90 * 24 * time.Hour,
	"auth.allow_tenant_header": false,

	"database.host":                 "localhost",
	"database.port":                 5432,
	"database.user":                 "postgres",
	"database.password":             "",
	"database.dbname":               "syncengine",
	"database.sslmode":              "disable",
	"database.max_open_conns":       25,
	"database.max_idle_conns":       5,
	"database.conn_max_lifetime":    time.Hour,
	"database.conn_max_idle_time":   30 * time.Minute,
	"database.log_level":            "warn",
	"database.slow_query_threshold": 200 * time.Millisecond,
	"database.auto_migrate":         false,

	"redis.enabled":  false,
	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "",
	"telemetry.insecure":                false,
	"telemetry.metrics_enabled":         false,
	"telemetry.metrics_interval":        time.Minute,
	"telemetry.logs_enabled":            false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,

	"swagger.enabled":     false,
	"swagger.allowed_ips": []string{},

	"sync.workers":            5,
	"sync.page_size":          50,
	"sync.call_timeout":       30 * time.Second,
	"sync.lock_ttl":           30 * time.Minute,
	"sync.retry_max_attempts": 4,
	"sync.retry_base_delay":   500 * time.Millisecond,
	"sync.retry_max_delay":    30 * time.Second,
	"sync.retry_jitter":       0.2,
	"sync.recover_on_start":   true,

	"webhook.idempotency_ttl": 24 * time.Hour,
	"webhook.max_body_size":   1 << 20,
	"webhook.node_id":         0,
	"webhook.purge_interval":  time.Hour,

	"scheduler.enabled":              true,
	"scheduler.workers":              4,
	"scheduler.queue_size":           256,
	"scheduler.tick_interval":        30 * time.Second,
	"scheduler.job_timeout":          time.Hour,
	"scheduler.failure_threshold":    3,
	"scheduler.suspend_on_threshold": false,

	"vault.master_key": "",

	"notify.webhook_url":     "",
	"notify.webhook_secret":  "",
	"notify.webhook_timeout": 10 * time.Second,

	"connectors.storefront.token_path":       "/oauth/token",
	"connectors.storefront.default_currency": "",

	"connectors.accounting.token_path":         "/oauth2/token",
	"connectors.accounting.default_currency":   "",
	"connectors.accounting.default_tax_code":   "",
	"connectors.accounting.shipping_item_code": "",
	"connectors.accounting.assertion_ttl":      5 * time.Minute,

	"connectors.warehouse.enabled":        false,
	"connectors.warehouse.prefix":         "staging",
	"connectors.warehouse.bucket":         "",
	"connectors.warehouse.access_key":     "",
	"connectors.warehouse.secret_key":     "",
	"connectors.warehouse.endpoint":       "",
	"connectors.warehouse.region":         "us-east-1",
	"connectors.warehouse.use_path_style": false,
	"connectors.warehouse.use_ssl":        false,
}

// webhookPlatforms are the platforms whose webhook.secrets.<platform> key is
// read. The keys are looked up one by one so env overrides such as
// SYNC_WEBHOOK_SECRETS_STOREFRONT work.
var webhookPlatforms = []string{"local", "storefront", "accounting", "warehouse"}

func init() {
	for _, system := range []string{"storefront", "accounting"} {
		prefix := "connectors." + system + "."
		defaults[prefix+"enabled"] = false
		defaults[prefix+"base_url"] = ""
		defaults[prefix+"rate_limit"] = 0.0
		defaults[prefix+"burst"] = 0
		defaults[prefix+"user_agent"] = ""
	}
	for _, platform := range webhookPlatforms {
		defaults["webhook.secrets."+platform] = ""
	}
}

// Load reads configuration with this precedence, highest first:
//  1. SYNC_ environment variables (SYNC_DATABASE_PASSWORD)
//  2. a .env file in the working directory
//  3. config.toml in . or /etc/syncengine
//  4. defaults
func Load() (*Config, error) {
	// godotenv never overrides variables that are already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/syncengine")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return build(v)
}

// build decodes v over the defaults, fills derived values and validates.
func build(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Webhook.Secrets = make(map[string]string)
	for _, platform := range webhookPlatforms {
		if secret := v.GetString("webhook.secrets." + platform); secret != "" {
			cfg.Webhook.Secrets[platform] = secret
		}
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = cfg.App.Name
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	// Without a signing secret, development accepts the tenant header
	if cfg.Auth.JWTSecret == "" && cfg.App.Env == "development" {
		cfg.Auth.AllowTenantHeader = true
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate reports every violated rule at once.
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	db := c.Database
	check(db.MaxOpenConns > 0, "database.max_open_conns must be positive")
	check(db.MaxIdleConns >= 0, "database.max_idle_conns cannot be negative")
	check(db.MaxIdleConns <= db.MaxOpenConns,
		"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)
	check(c.Telemetry.SamplingRatio >= 0 && c.Telemetry.SamplingRatio <= 1,
		"telemetry.sampling_ratio must be between 0 and 1, got %g", c.Telemetry.SamplingRatio)

	s := c.Sync
	check(s.Workers >= 1, "sync.workers must be positive")
	check(s.RetryJitter >= 0 && s.RetryJitter <= 1, "sync.retry_jitter must be between 0 and 1, got %g", s.RetryJitter)
	check(s.RetryMaxDelay >= s.RetryBaseDelay,
		"sync.retry_max_delay (%s) cannot be shorter than sync.retry_base_delay (%s)", s.RetryMaxDelay, s.RetryBaseDelay)
	check(c.Webhook.NodeID >= 0 && c.Webhook.NodeID <= 1023, "webhook.node_id must be between 0 and 1023, got %d", c.Webhook.NodeID)
	check(c.Scheduler.FailureThreshold >= 1, "scheduler.failure_threshold must be positive")

	if c.Vault.MasterKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.Vault.MasterKey)
		check(err == nil && len(key) == 32, "vault.master_key must be a base64 encoded 32-byte key")
	}
	check(c.Auth.JWTSecret == "" || len(c.Auth.JWTSecret) >= 32, "auth.jwt_secret must be at least 32 characters")
	check(c.Auth.JWTSecret != "" || c.Auth.AllowTenantHeader, "auth.jwt_secret is required unless auth.allow_tenant_header is set")
	check(!c.Connectors.Warehouse.Enabled || c.Connectors.Warehouse.Storage.Bucket != "",
		"connectors.warehouse.bucket is required when the warehouse connector is enabled")

	if c.App.IsProduction() {
		check(c.Vault.MasterKey != "", "vault.master_key is required in production")
		check(!c.Auth.AllowTenantHeader, "auth.allow_tenant_header must be false in production")
		check(db.Password != "", "database.password is required in production")
		check(db.SSLMode != "disable", "database.sslmode cannot be 'disable' in production")
		check(!slices.Contains(c.HTTP.CORSAllowOrigins, "*"), "http.cors_allow_origins cannot contain '*' in production")
		check(!c.Swagger.Enabled || len(c.Swagger.AllowedIPs) > 0, "swagger must be disabled or restricted by swagger.allowed_ips in production")
		check(!c.Telemetry.DBLogFullSQL, "telemetry.db_log_full_sql must be false in production")
	}
	return errors.Join(errs...)
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Reloadable is the subset of settings applied at runtime when config.toml changes
type Reloadable struct {
	LogLevel           string
	FailureThreshold   int
	SuspendOnThreshold bool
}

func (c *Config) reloadable() Reloadable {
	return Reloadable{
		LogLevel:           c.Log.Level,
		FailureThreshold:   c.Scheduler.FailureThreshold,
		SuspendOnThreshold: c.Scheduler.SuspendOnThreshold,
	}
}

// Watch re-reads config.toml on change and hands the reloadable settings to
// apply. An invalid file is reported to onError and the previous settings
// stay in force. Without a config file Watch does nothing.
func (c *Config) Watch(apply func(Reloadable), onError func(error)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	var mu sync.Mutex
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		next, err := build(c.v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		apply(next.reloadable())
	})
	c.v.WatchConfig()
}
