// Package config loads service settings from config.toml and SHOP_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: database.host is SHOP_DATABASE_HOST.
const EnvPrefix = "SHOP"

const (
	SyncModeAsync = "async"
	SyncModeRetry = "retry"
)

// Brokers that order events can be relayed to.
const (
	BrokerMemory = "memory"
	BrokerAMQP   = "amqp"
	BrokerKafka  = "kafka"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Cart      CartConfig      `mapstructure:"cart"`
	Checkout  CheckoutConfig  `mapstructure:"checkout"`
	Event     EventConfig     `mapstructure:"event"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

func (a AppConfig) IsProduction() bool { return a.Env == "production" }

type LogConfig struct {
	Level     string        `mapstructure:"level"`  // debug, info, warn, error
	Format    string        `mapstructure:"format"` // json or console
	Output    string        `mapstructure:"output"` // stdout, stderr or a file path
	GormMode  string        `mapstructure:"gorm_mode"`
	SlowQuery time.Duration `mapstructure:"slow_query"` // 0 disables slow statement warnings
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres or sqlite
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
}

// RedisConfig locates the idempotency key store. An empty Host means no Redis.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Required bool   `mapstructure:"required"` // refuse to start without Redis
}

type JWTConfig struct {
	Secret                string        `mapstructure:"secret"`
	AccessTokenExpiration time.Duration `mapstructure:"access_token_expiration"`
	Issuer                string        `mapstructure:"issuer"`
}

type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`
}

// CartConfig controls how cart mutations are mirrored to cart records.
type CartConfig struct {
	SyncMode       string        `mapstructure:"sync_mode"`
	SyncTimeout    time.Duration `mapstructure:"sync_timeout"`     // per write
	SyncMaxRetries int           `mapstructure:"sync_max_retries"` // retry mode only
	RetryInterval  time.Duration `mapstructure:"retry_interval"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"` // idle carts are evicted after this
}

type CheckoutConfig struct {
	CommitTimeout  time.Duration `mapstructure:"commit_timeout"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// EventConfig drives the outbox relay and the broker it publishes to.
type EventConfig struct {
	ProcessorEnabled bool          `mapstructure:"processor_enabled"`
	Broker           string        `mapstructure:"broker"`
	BatchSize        int           `mapstructure:"batch_size"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	MaxRetries       int           `mapstructure:"max_retries"`
	CleanupRetention time.Duration `mapstructure:"cleanup_retention"`
	AMQPURL          string        `mapstructure:"amqp_url"`
	AMQPExchange     string        `mapstructure:"amqp_exchange"`
	KafkaBrokers     []string      `mapstructure:"kafka_brokers"`
	KafkaTopic       string        `mapstructure:"kafka_topic"`
}

type TelemetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"` // host:port of the OTLP gRPC receiver
	SamplingRatio     float64 `mapstructure:"sampling_ratio"`
	ServiceName       string  `mapstructure:"service_name"`
	Insecure          bool    `mapstructure:"insecure"`
	MetricsEnabled    bool    `mapstructure:"metrics_enabled"`
	LogsEnabled       bool    `mapstructure:"logs_enabled"`
	DBTraceEnabled    bool    `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool    `mapstructure:"db_log_full_sql"`

	ProfilingEnabled       bool   `mapstructure:"profiling_enabled"`
	ProfilingServerAddress string `mapstructure:"profiling_server_address"` // Pyroscope ingest URL
	ProfilingBasicAuthUser string `mapstructure:"profiling_basic_auth_user"`
	ProfilingBasicAuthPass string `mapstructure:"profiling_basic_auth_password"`
	ProfilingMutexFraction int    `mapstructure:"profiling_mutex_fraction"`
	ProfilingBlockRate     int    `mapstructure:"profiling_block_rate"`
	SpanProfilesEnabled    bool   `mapstructure:"span_profiles_enabled"`
}

// defaults lists every key. Env overrides only reach Unmarshal for keys
// viper already knows, so secrets get an empty default too.
var defaults = map[string]any{
	"app.name": "storefront",
	"app.env":  "development",
	"app.port": "8080",

	"database.driver":             "postgres",
	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "storefront",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  time.Hour,
	"database.conn_max_idle_time": 30 * time.Minute,

	"redis.host":     "",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,
	"redis.required": false,

	"jwt.secret":                  "",
	"jwt.access_token_expiration": 15 * time.Minute,
	"jwt.issuer":                  "storefront",

	"log.level":      "info",
	"log.format":     "console",
	"log.output":     "stdout",
	"log.gorm_mode":  "warn",
	"log.slow_query": 200 * time.Millisecond,

	"http.read_timeout":     15 * time.Second,
	"http.write_timeout":    15 * time.Second,
	"http.idle_timeout":     time.Minute,
	"http.max_header_bytes": 1 << 20,
	"http.max_body_bytes":   1 << 20,
	// cross-origin requests stay blocked until origins are configured
	"http.cors_allow_origins": []string{},
	"http.cors_allow_methods": []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	"http.cors_allow_headers": []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"},
	"http.trusted_proxies":    []string{},

	"cart.sync_mode":        SyncModeAsync,
	"cart.sync_timeout":     5 * time.Second,
	"cart.sync_max_retries": 5,
	"cart.retry_interval":   time.Second,
	"cart.session_ttl":      2 * time.Hour,

	"checkout.commit_timeout":  10 * time.Second,
	"checkout.idempotency_ttl": 24 * time.Hour,

	"event.processor_enabled": true,
	"event.broker":            BrokerMemory,
	"event.batch_size":        100,
	"event.poll_interval":     5 * time.Second,
	"event.max_retries":       5,
	"event.cleanup_retention": 7 * 24 * time.Hour,
	"event.amqp_url":          "",
	"event.amqp_exchange":     "storefront.orders",
	"event.kafka_brokers":     []string{},
	"event.kafka_topic":       "storefront.orders",

	"telemetry.enabled":            false,
	"telemetry.collector_endpoint": "localhost:4317",
	"telemetry.sampling_ratio":     1.0,
	"telemetry.service_name":       "storefront",
	"telemetry.insecure":           false,
	"telemetry.metrics_enabled":    false,
	"telemetry.logs_enabled":       false,
	"telemetry.db_trace_enabled":   false,
	"telemetry.db_log_full_sql":    false,

	"telemetry.profiling_enabled":             false,
	"telemetry.profiling_server_address":      "http://localhost:4040",
	"telemetry.profiling_basic_auth_user":     "",
	"telemetry.profiling_basic_auth_password": "",
	"telemetry.profiling_mutex_fraction":      5,
	"telemetry.profiling_block_rate":          5,
	"telemetry.span_profiles_enabled":         true,
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads ./config.toml or /app/config.toml when present. SHOP_ variables
// win over the file, which wins over the built-in defaults.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	fail := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	db := c.Database
	if db.Driver != "postgres" && db.Driver != "sqlite" {
		fail("database.driver must be postgres or sqlite, got %q", db.Driver)
	}
	if db.MaxOpenConns <= 0 {
		fail("database.max_open_conns must be positive")
	}
	if db.MaxIdleConns < 0 || db.MaxIdleConns > db.MaxOpenConns {
		fail("database.max_idle_conns must be within 0..%d, got %d", db.MaxOpenConns, db.MaxIdleConns)
	}

	if c.Cart.SyncMode != SyncModeAsync && c.Cart.SyncMode != SyncModeRetry {
		fail("cart.sync_mode must be %q or %q, got %q", SyncModeAsync, SyncModeRetry, c.Cart.SyncMode)
	}
	if c.Cart.SyncMaxRetries < 0 {
		fail("cart.sync_max_retries cannot be negative")
	}

	switch c.Event.Broker {
	case BrokerMemory:
	case BrokerAMQP:
		if c.Event.AMQPURL == "" {
			fail("event.amqp_url is required for the amqp broker")
		}
	case BrokerKafka:
		if len(c.Event.KafkaBrokers) == 0 {
			fail("event.kafka_brokers is required for the kafka broker")
		}
	default:
		fail("event.broker %q is not one of memory, amqp, kafka", c.Event.Broker)
	}

	if r := c.Telemetry.SamplingRatio; r < 0 || r > 1 {
		fail("telemetry.sampling_ratio must be within [0, 1], got %g", r)
	}
	if c.Telemetry.ProfilingEnabled && c.Telemetry.ProfilingServerAddress == "" {
		fail("telemetry.profiling_server_address is required when profiling is enabled")
	}
	if c.Telemetry.ProfilingMutexFraction < 0 || c.Telemetry.ProfilingBlockRate < 0 {
		fail("telemetry.profiling_mutex_fraction and profiling_block_rate cannot be negative")
	}

	if c.App.IsProduction() {
		if len(c.JWT.Secret) < 32 {
			fail("jwt.secret needs at least 32 characters in production")
		}
		if db.Driver != "postgres" {
			fail("database.driver must be postgres in production")
		}
		if db.Password == "" {
			fail("database.password is required in production")
		}
		if db.SSLMode == "disable" {
			fail("database.sslmode may not be disable in production")
		}
		if slices.Contains(c.HTTP.CORSAllowOrigins, "*") {
			fail("http.cors_allow_origins may not contain * in production")
		}
		if c.Telemetry.DBLogFullSQL {
			fail("telemetry.db_log_full_sql must be off in production")
		}
	}
	return errors.Join(errs...)
}

// DSN is the driver connection string. For sqlite DBName is the file path
// or URI; for postgres every part is escaped.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.DBName
	}
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return dsn.String()
}

// Addr is host:port, or "" when Redis is not configured.
func (r *RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}
