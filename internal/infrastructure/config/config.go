package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Platform  PlatformConfig
	Media     MediaConfig
	Sync      SyncConfig
	Webhook   WebhookConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Swagger   SwaggerConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// PlatformConfig holds the catalog REST API connection
type PlatformConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	APIVersion     string
	Timeout        time.Duration
}

// MediaConfig holds media upload settings
type MediaConfig struct {
	Username            string
	ApplicationPassword string
	ChunkSize           int
	MaxBytes            int
	CredentialCacheTTL  time.Duration
}

// SyncConfig holds batch tunables
type SyncConfig struct {
	CategoryPageSize int
	CleanupPageSize  int
	PublishStatus    string
	// RunRetention bounds how long run history is kept; negative keeps it forever
	RunRetention      time.Duration
	RetentionInterval time.Duration
}

// WebhookConfig holds the delivery callback registration
type WebhookConfig struct {
	TargetURL       string
	Topic           string
	Name            string
	Secret          string
	RegisterOnStart bool
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Path            string // sqlite file path
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	AuthSecret       string // HS256 secret for operator tokens; empty disables auth
	AuthIssuer       string
}

// SwaggerConfig holds API documentation endpoint configuration
type SwaggerConfig struct {
	Enabled     bool     // Whether to serve /swagger
	RequireAuth bool     // Require an operator token
	AllowedIPs  []string // IP/CIDR whitelist, empty allows all
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	LogsEnabled       bool
	DBTraceEnabled    bool

	// Pyroscope continuous profiling
	ProfilingEnabled  bool
	ProfilingEndpoint string // e.g. "http://pyroscope:4040"
	ProfilingUser     string
	ProfilingPassword string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CATSYNC_ prefix (e.g., CATSYNC_PLATFORM_CONSUMER_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("CATSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Platform: PlatformConfig{
			BaseURL:        v.GetString("platform.base_url"),
			ConsumerKey:    v.GetString("platform.consumer_key"),
			ConsumerSecret: v.GetString("platform.consumer_secret"),
			APIVersion:     v.GetString("platform.api_version"),
			Timeout:        v.GetDuration("platform.timeout"),
		},
		Media: MediaConfig{
			Username:            v.GetString("media.username"),
			ApplicationPassword: v.GetString("media.application_password"),
			ChunkSize:           v.GetInt("media.chunk_size"),
			MaxBytes:            v.GetInt("media.max_bytes"),
			CredentialCacheTTL:  v.GetDuration("media.credential_cache_ttl"),
		},
		Sync: SyncConfig{
			CategoryPageSize:  v.GetInt("sync.category_page_size"),
			CleanupPageSize:   v.GetInt("sync.cleanup_page_size"),
			PublishStatus:     v.GetString("sync.publish_status"),
			RunRetention:      v.GetDuration("sync.run_retention"),
			RetentionInterval: v.GetDuration("sync.retention_interval"),
		},
		Webhook: WebhookConfig{
			TargetURL:       v.GetString("webhook.target_url"),
			Topic:           v.GetString("webhook.topic"),
			Name:            v.GetString("webhook.name"),
			Secret:          v.GetString("webhook.secret"),
			RegisterOnStart: v.GetBool("webhook.register_on_start"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Path:            v.GetString("database.path"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Enabled:         v.GetBool("storage.enabled"),
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			Bucket:          v.GetString("storage.bucket"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			AuthSecret:       v.GetString("http.auth_secret"),
			AuthIssuer:       v.GetString("http.auth_issuer"),
		},
		Swagger: SwaggerConfig{
			Enabled:     v.GetBool("swagger.enabled"),
			RequireAuth: v.GetBool("swagger.require_auth"),
			AllowedIPs:  v.GetStringSlice("swagger.allowed_ips"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingEndpoint: v.GetString("telemetry.profiling_endpoint"),
			ProfilingUser:     v.GetString("telemetry.profiling_user"),
			ProfilingPassword: v.GetString("telemetry.profiling_password"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "catalogsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}

	cfg.Platform.BaseURL = strings.TrimRight(cfg.Platform.BaseURL, "/")
	if cfg.Platform.APIVersion == "" {
		cfg.Platform.APIVersion = "wc/v3"
	}
	if cfg.Platform.Timeout == 0 {
		cfg.Platform.Timeout = 30 * time.Second
	}

	if cfg.Media.ChunkSize == 0 {
		cfg.Media.ChunkSize = 512 * 1024
	}
	if cfg.Media.MaxBytes == 0 {
		cfg.Media.MaxBytes = 10 << 20 // 10MB
	}
	if cfg.Media.CredentialCacheTTL == 0 {
		cfg.Media.CredentialCacheTTL = 12 * time.Hour
	}

	if cfg.Sync.CategoryPageSize == 0 {
		cfg.Sync.CategoryPageSize = 100
	}
	if cfg.Sync.CleanupPageSize == 0 {
		cfg.Sync.CleanupPageSize = 100
	}
	if cfg.Sync.PublishStatus == "" {
		cfg.Sync.PublishStatus = "publish"
	}
	if cfg.Sync.RunRetention == 0 {
		cfg.Sync.RunRetention = 30 * 24 * time.Hour
	}
	if cfg.Sync.RetentionInterval == 0 {
		cfg.Sync.RetentionInterval = time.Hour
	}

	if cfg.Webhook.Topic == "" {
		cfg.Webhook.Topic = "product.updated"
	}
	if cfg.Webhook.Name == "" {
		cfg.Webhook.Name = "POS catalog sync"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "catalogsync.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "catalogsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// batches run to completion, so writes get a long deadline
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 10 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 64 << 20 // 64MB, embedded images travel inline
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.HTTP.AuthIssuer == "" {
		cfg.HTTP.AuthIssuer = "catalogsync"
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "catalogsync"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Platform.BaseURL != "" {
		u, err := url.Parse(c.Platform.BaseURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("platform.base_url must be an absolute http(s) URL, got %q", c.Platform.BaseURL)
		}
	}
	if c.Media.ChunkSize < 4 {
		return fmt.Errorf("media.chunk_size must be at least 4")
	}
	if c.Media.MaxBytes <= 0 {
		return fmt.Errorf("media.max_bytes must be positive")
	}
	if c.Sync.CategoryPageSize < 1 || c.Sync.CategoryPageSize > 100 {
		return fmt.Errorf("sync.category_page_size must be between 1 and 100, got %d", c.Sync.CategoryPageSize)
	}
	if c.Sync.CleanupPageSize < 1 || c.Sync.CleanupPageSize > 100 {
		return fmt.Errorf("sync.cleanup_page_size must be between 1 and 100, got %d", c.Sync.CleanupPageSize)
	}
	switch c.Sync.PublishStatus {
	case "publish", "draft", "pending", "private":
	default:
		return fmt.Errorf("sync.publish_status %q is not a valid publication status", c.Sync.PublishStatus)
	}
	if c.Sync.RetentionInterval < time.Minute {
		return fmt.Errorf("sync.retention_interval must be at least 1m, got %s", c.Sync.RetentionInterval)
	}
	if c.Webhook.RegisterOnStart && (c.Webhook.TargetURL == "" || c.Webhook.Secret == "") {
		return fmt.Errorf("webhook.register_on_start requires webhook.target_url and webhook.secret")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" && c.Storage.Endpoint == "" {
		return fmt.Errorf("storage.enabled requires storage.endpoint or storage.bucket")
	}

	if c.App.Env == "production" {
		if c.Platform.BaseURL == "" || c.Platform.ConsumerKey == "" || c.Platform.ConsumerSecret == "" {
			return fmt.Errorf("platform.base_url, platform.consumer_key and platform.consumer_secret are required in production")
		}
		if c.Webhook.Secret == "" {
			return fmt.Errorf("webhook.secret is required in production")
		}
		if len(c.HTTP.AuthSecret) < 32 {
			return fmt.Errorf("http.auth_secret must be at least 32 characters in production")
		}
		if c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Swagger.Enabled && !c.Swagger.RequireAuth && len(c.Swagger.AllowedIPs) == 0 {
			return fmt.Errorf("swagger endpoint must be disabled, require authentication, or have IP restriction in production")
		}
	}
	if c.Swagger.Enabled && c.Swagger.RequireAuth && c.HTTP.AuthSecret == "" {
		return fmt.Errorf("swagger.require_auth needs http.auth_secret")
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Telemetry.ProfilingEnabled && c.Telemetry.ProfilingEndpoint == "" {
		return fmt.Errorf("telemetry.profiling_endpoint is required when profiling is enabled")
	}

	return nil
}

// DSN returns the postgres connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port address of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
