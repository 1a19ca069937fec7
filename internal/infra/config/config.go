package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "FINWISE"

// Store and mail driver names accepted in configuration.
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"

	MailDriverLog   = "log"
	MailDriverSMTP  = "smtp"
	MailDriverKafka = "kafka"
)

type AppConfig struct {
	App          AppSettings          `mapstructure:"app"`
	GRPC         GRPCSettings         `mapstructure:"grpc"`
	Postgres     PostgresSettings     `mapstructure:"postgres"`
	Redis        RedisSettings        `mapstructure:"redis"`
	Kafka        KafkaSettings        `mapstructure:"kafka"`
	Auth         AuthSettings         `mapstructure:"auth"`
	Verification VerificationSettings `mapstructure:"verification"`
	Mail         MailSettings         `mapstructure:"mail"`
	Timeouts     TimeoutSettings      `mapstructure:"timeouts"`
	RateLimit    RateLimitSettings    `mapstructure:"rate_limit"`
	Argon2       Argon2Settings       `mapstructure:"argon2"`
	Telemetry    TelemetrySettings    `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

type GRPCSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
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
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// KafkaSettings configures the Kafka producer used by the kafka mail driver.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// AuthSettings configures bearer token signing and the password policy.
type AuthSettings struct {
	Secret            string        `mapstructure:"secret"`
	Issuer            string        `mapstructure:"issuer"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	MinPasswordLength int           `mapstructure:"min_password_length"`
}

// VerificationSettings configures emailed one-time codes.
type VerificationSettings struct {
	Store       string        `mapstructure:"store"`
	CodeLength  int           `mapstructure:"code_length"`
	CodeTTL     time.Duration `mapstructure:"code_ttl"`
	Retention   time.Duration `mapstructure:"retention"`
	ClaimLease  time.Duration `mapstructure:"claim_lease"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// MailSettings selects and configures the code delivery channel.
type MailSettings struct {
	Driver       string `mapstructure:"driver"`
	From         string `mapstructure:"from"`
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`
	SMTPTLS      bool   `mapstructure:"smtp_tls"`
}

// TimeoutSettings bounds calls to external collaborators.
type TimeoutSettings struct {
	Store  time.Duration `mapstructure:"store"`
	Mailer time.Duration `mapstructure:"mailer"`
}

// RateLimitSettings configures per-account windows for credential operations.
type RateLimitSettings struct {
	WindowDuration            time.Duration `mapstructure:"window_duration"`
	CodeRequestMaxAttempts    int           `mapstructure:"code_request_max_attempts"`
	PasswordChangeMaxAttempts int           `mapstructure:"password_change_max_attempts"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// IsProduction reports whether the service runs with production safeguards.
func (c *AppConfig) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.cors_allowed_origins",
		"grpc.enabled",
		"grpc.host",
		"grpc.port",
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
		"postgres.auto_migrate",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.key_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"auth.secret",
		"auth.issuer",
		"auth.token_ttl",
		"auth.min_password_length",
		"verification.store",
		"verification.code_length",
		"verification.code_ttl",
		"verification.retention",
		"verification.claim_lease",
		"verification.max_attempts",
		"mail.driver",
		"mail.from",
		"mail.smtp_host",
		"mail.smtp_port",
		"mail.smtp_username",
		"mail.smtp_password",
		"mail.smtp_tls",
		"timeouts.store",
		"timeouts.mailer",
		"rate_limit.window_duration",
		"rate_limit.code_request_max_attempts",
		"rate_limit.password_change_max_attempts",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.IsProduction() && c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret is required in production"))
	}
	if c.Auth.Secret != "" && len(c.Auth.Secret) < 32 {
		errs = append(errs, errors.New("auth.secret must be at least 32 bytes"))
	}
	if c.Auth.MinPasswordLength < 1 {
		errs = append(errs, errors.New("auth.min_password_length must be positive"))
	}

	switch c.Verification.Store {
	case StoreRedis, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("verification.store %q is not one of redis, postgres", c.Verification.Store))
	}
	if c.Verification.CodeLength < 4 || c.Verification.CodeLength > 10 {
		errs = append(errs, errors.New("verification.code_length must be between 4 and 10"))
	}
	if c.Verification.CodeTTL <= 0 {
		errs = append(errs, errors.New("verification.code_ttl must be positive"))
	}
	if c.Verification.Retention < c.Verification.CodeTTL {
		errs = append(errs, errors.New("verification.retention must not be shorter than verification.code_ttl"))
	}
	if c.Verification.ClaimLease <= 0 {
		errs = append(errs, errors.New("verification.claim_lease must be positive"))
	}
	if c.Verification.MaxAttempts < 1 {
		errs = append(errs, errors.New("verification.max_attempts must be positive"))
	}

	switch c.Mail.Driver {
	case MailDriverLog, MailDriverKafka:
	case MailDriverSMTP:
		if c.Mail.SMTPHost == "" {
			errs = append(errs, errors.New("mail.smtp_host is required for the smtp driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("mail.driver %q is not one of log, smtp, kafka", c.Mail.Driver))
	}

	if c.Timeouts.Store <= 0 || c.Timeouts.Mailer <= 0 {
		errs = append(errs, errors.New("timeouts.store and timeouts.mailer must be positive"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "finwise-identity")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.cors_allowed_origins", []string{"*"})

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "finwise")
	v.SetDefault("postgres.password", "finwise_password")
	v.SetDefault("postgres.database", "finwise")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "finwise")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "finwise")
	v.SetDefault("kafka.async", true)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "finwise")
	v.SetDefault("auth.token_ttl", "1h")
	v.SetDefault("auth.min_password_length", 6)

	v.SetDefault("verification.store", StoreRedis)
	v.SetDefault("verification.code_length", 6)
	v.SetDefault("verification.code_ttl", "10m")
	v.SetDefault("verification.retention", "1h")
	v.SetDefault("verification.claim_lease", "30s")
	v.SetDefault("verification.max_attempts", 5)

	v.SetDefault("mail.driver", MailDriverLog)
	v.SetDefault("mail.from", "FinWise <no-reply@finwise.app>")
	v.SetDefault("mail.smtp_host", "")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.smtp_username", "")
	v.SetDefault("mail.smtp_password", "")
	v.SetDefault("mail.smtp_tls", false)

	v.SetDefault("timeouts.store", "2s")
	v.SetDefault("timeouts.mailer", "5s")

	v.SetDefault("rate_limit.window_duration", "10m")
	v.SetDefault("rate_limit.code_request_max_attempts", 3)
	v.SetDefault("rate_limit.password_change_max_attempts", 10)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "finwise-identity")
	v.SetDefault("telemetry.sampling_rate", 1.0)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
