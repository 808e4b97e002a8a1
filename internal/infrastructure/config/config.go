package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Bluecode      BluecodeConfig      `mapstructure:"bluecode"`
	Shop          ShopConfig          `mapstructure:"shop"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	PublicBaseURL   string        `mapstructure:"public_base_url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`
}

type DatabaseConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	MaxConnections    int           `mapstructure:"max_connections"`
	MinConnections    int           `mapstructure:"min_connections"`
	ConnMaxLifetime   time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	StatementTimeout  time.Duration `mapstructure:"statement_timeout"` // zero keeps the server default
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// BluecodeConfig tunes the provider client. The base URL overrides are empty
// in production; the sandbox flag of the merchant settings then picks the host.
type BluecodeConfig struct {
	PluginName              string        `mapstructure:"plugin_name"`
	PluginVersion           string        `mapstructure:"plugin_version"`
	HostApp                 string        `mapstructure:"host_app"`
	HostVersion             string        `mapstructure:"host_version"`
	RequestTimeout          time.Duration `mapstructure:"request_timeout"`
	APIBaseURL              string        `mapstructure:"api_base_url"`
	TokenBaseURL            string        `mapstructure:"token_base_url"`
	PortalBaseURL           string        `mapstructure:"portal_base_url"`
	StatusRetries           uint          `mapstructure:"status_retries"`
	StatusRetryDelay        time.Duration `mapstructure:"status_retry_delay"`
	LockTTL                 time.Duration `mapstructure:"lock_ttl"`
	OAuthStateTTL           time.Duration `mapstructure:"oauth_state_ttl"`
	CircuitBreakerThreshold uint32        `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout"`
}

// ShopConfig describes the merchant shown on slips and receipts.
type ShopConfig struct {
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"`
	Street   string `mapstructure:"street"`
	Zip      string `mapstructure:"zip"`
	City     string `mapstructure:"city"`
	Language string `mapstructure:"language"`
}

type WorkerConfig struct {
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	StaleAfter     time.Duration `mapstructure:"stale_after"`
	BatchSize      int           `mapstructure:"batch_size"`
	Concurrency    int           `mapstructure:"concurrency"`
	GiveUpAfter    time.Duration `mapstructure:"give_up_after"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	// A local .env is optional.
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("BLUECODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/bluecode")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if u, err := url.Parse(c.Server.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("server.public_base_url must be an absolute URL"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Bluecode.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("bluecode.request_timeout must be positive"))
	}
	if c.Bluecode.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("bluecode.lock_ttl must be positive"))
	}
	if c.Worker.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.batch_size must be positive"))
	}
	if c.Worker.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("worker.sweep_interval must be positive"))
	}
	switch c.Shop.Language {
	case "en", "de":
	default:
		errs = append(errs, fmt.Errorf("shop.language must be en or de, got %q", c.Shop.Language))
	}

	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt_secret required in production"))
		}
		if !strings.HasPrefix(c.Server.PublicBaseURL, "https://") {
			errs = append(errs, fmt.Errorf("server.public_base_url must use https in production"))
		}
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_base_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", "15s")
	// Checkout requests may block while the reconciler polls.
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "bluecode")
	v.SetDefault("database.database", "bluecode")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.statement_timeout", "10s")
	v.SetDefault("database.connect_retries", 5)
	v.SetDefault("database.connect_retry_delay", "1s")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Provider defaults
	v.SetDefault("bluecode.plugin_name", "Bluecode Checkout Gateway")
	v.SetDefault("bluecode.plugin_version", "1.0.0")
	v.SetDefault("bluecode.host_app", "Storefront")
	v.SetDefault("bluecode.host_version", "1.0.0")
	v.SetDefault("bluecode.request_timeout", "30s")
	v.SetDefault("bluecode.status_retries", 3)
	v.SetDefault("bluecode.status_retry_delay", "300ms")
	v.SetDefault("bluecode.lock_ttl", "30s")
	v.SetDefault("bluecode.oauth_state_ttl", "15m")
	v.SetDefault("bluecode.circuit_breaker_threshold", 10)
	v.SetDefault("bluecode.circuit_breaker_timeout", "30s")

	// Shop defaults
	v.SetDefault("shop.name", "Shop")
	v.SetDefault("shop.url", "http://localhost:8080")
	v.SetDefault("shop.language", "en")

	// Worker defaults
	v.SetDefault("worker.sweep_interval", "1m")
	v.SetDefault("worker.stale_after", "10m")
	v.SetDefault("worker.batch_size", 50)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.give_up_after", "72h")
	v.SetDefault("worker.idempotency_ttl", "24h")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Auth defaults
	v.SetDefault("auth.jwt_expiry", "24h")

	v.SetDefault("instance_id", "bluecode-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// MigrateURL is the DSN in the URL form golang-migrate expects.
func (c *DatabaseConfig) MigrateURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// UserAgent is sent with every provider request.
func (c *BluecodeConfig) UserAgent() string {
	return fmt.Sprintf("%s V. %s, %s V. %s", c.PluginName, c.PluginVersion, c.HostApp, c.HostVersion)
}
