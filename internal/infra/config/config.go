package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	OrgToken  OrgTokenSettings  `mapstructure:"org_token"`
	Session   SessionSettings   `mapstructure:"session"`
	StepUp    StepUpSettings    `mapstructure:"step_up"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Links     LinkSettings      `mapstructure:"links"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DB              int           `mapstructure:"db"`
	Password        string        `mapstructure:"password"`
	TLSEnabled      bool          `mapstructure:"tls_enabled"`
	ElevationPrefix string        `mapstructure:"elevation_prefix"`
	ElevationTTL    time.Duration `mapstructure:"elevation_ttl"`
}

// KafkaSettings configures the Kafka producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// OrgTokenSettings configures the org credential codec.
type OrgTokenSettings struct {
	SigningKey string        `mapstructure:"signing_key"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// SessionSettings configures the session registry and session access tokens.
type SessionSettings struct {
	Limit             int           `mapstructure:"limit"`
	ElevationDuration time.Duration `mapstructure:"elevation_duration"`
	TokenSigningKey   string        `mapstructure:"token_signing_key"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
}

// StepUpSettings configures step-up challenge issuance and verification.
type StepUpSettings struct {
	TTL         time.Duration `mapstructure:"ttl"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	CodeLength  int           `mapstructure:"code_length"`
}

// RateLimitSettings configures the sliding windows applied to security endpoints.
type RateLimitSettings struct {
	WindowDuration    time.Duration `mapstructure:"window_duration"`
	VerifyMaxAttempts int           `mapstructure:"verify_max_attempts"`
	LoginMaxAttempts  int           `mapstructure:"login_max_attempts"`
}

// LinkSettings holds the portal URLs embedded in notification payloads.
type LinkSettings struct {
	SessionsURL string `mapstructure:"sessions_url"`
	LockURL     string `mapstructure:"lock_url"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("HELVINO")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.allowed_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.elevation_prefix",
		"redis.elevation_ttl",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"org_token.signing_key",
		"org_token.default_ttl",
		"session.limit",
		"session.elevation_duration",
		"session.token_signing_key",
		"session.token_ttl",
		"step_up.ttl",
		"step_up.max_attempts",
		"step_up.code_length",
		"rate_limit.window_duration",
		"rate_limit.verify_max_attempts",
		"rate_limit.login_max_attempts",
		"links.sessions_url",
		"links.lock_url",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "helvino-trust")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.allowed_origins", []string{"*"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "trust")
	v.SetDefault("postgres.password", "trust_password")
	v.SetDefault("postgres.database", "helvino")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.elevation_prefix", "trust:elevation")
	v.SetDefault("redis.elevation_ttl", "15m")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "trust")
	v.SetDefault("kafka.async", true)

	// Development-only keys; production deployments override via environment.
	v.SetDefault("org_token.signing_key", "helvino-dev-org-token-key")
	v.SetDefault("org_token.default_ttl", "720h")

	v.SetDefault("session.limit", 3)
	v.SetDefault("session.elevation_duration", "15m")
	v.SetDefault("session.token_signing_key", "helvino-dev-session-token-key")
	v.SetDefault("session.token_ttl", "30m")

	v.SetDefault("step_up.ttl", "10m")
	v.SetDefault("step_up.max_attempts", 5)
	v.SetDefault("step_up.code_length", 6)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.verify_max_attempts", 10)
	v.SetDefault("rate_limit.login_max_attempts", 20)

	v.SetDefault("links.sessions_url", "https://app.helvino.io/settings/sessions")
	v.SetDefault("links.lock_url", "https://app.helvino.io/security/lock")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "HELVINO_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
