package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"

	DefaultSandboxBaseURL    = "https://dev-openapi.bdpay.co.id"
	DefaultProductionBaseURL = "https://openapi.bdpay.co.id"
)

type EnvironmentConfig struct {
	BaseURL           string `koanf:"base_url" mapstructure:"base_url"`
	MerchantCode      string `koanf:"merchant_code" mapstructure:"merchant_code"`
	PublicKey         string `koanf:"public_key" mapstructure:"public_key"`
	SecretKey         string `koanf:"secret_key" mapstructure:"secret_key"`
	PlatformPublicKey string `koanf:"platform_public_key" mapstructure:"platform_public_key"`
}

// VerificationKey returns the key used to check gateway signatures.
func (c EnvironmentConfig) VerificationKey() string {
	if key := strings.TrimSpace(c.PlatformPublicKey); key != "" {
		return key
	}
	return strings.TrimSpace(c.PublicKey)
}

type APIConfig struct {
	Sandbox    EnvironmentConfig `koanf:"sandbox" mapstructure:"sandbox"`
	Production EnvironmentConfig `koanf:"production" mapstructure:"production"`
}

type WebhookConfig struct {
	PaymentCallbackURL      string `koanf:"payment_callback_url" mapstructure:"payment_callback_url"`
	DisbursementCallbackURL string `koanf:"disbursement_callback_url" mapstructure:"disbursement_callback_url"`
	VerifySignature         bool   `koanf:"verify_signature" mapstructure:"verify_signature"`
	// DedupRedeliveries drops byte-identical callbacks seen within the
	// claim window. A redelivered callback then cannot re-apply a status
	// that a later callback replaced.
	DedupRedeliveries bool `koanf:"dedup_redeliveries" mapstructure:"dedup_redeliveries"`
	// Async acknowledges callbacks once queued and reconciles them on a
	// background worker.
	Async bool `koanf:"async" mapstructure:"async"`
}

type DefaultsConfig struct {
	Currency         string `koanf:"currency" mapstructure:"currency"`
	TimeoutSeconds   int    `koanf:"timeout" mapstructure:"timeout"`
	RetryAttempts    int    `koanf:"retry_attempts" mapstructure:"retry_attempts"`
	RetryDelayMillis int    `koanf:"retry_delay" mapstructure:"retry_delay"`
	PaymentMethod    string `koanf:"payment_method" mapstructure:"payment_method"`
	ExpiryPeriod     string `koanf:"expiry_period" mapstructure:"expiry_period"`
	FeeType          string `koanf:"fee_type" mapstructure:"fee_type"`
}

func (c DefaultsConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c DefaultsConfig) RetryDelay() time.Duration {
	if c.RetryDelayMillis <= 0 {
		return 0
	}
	return time.Duration(c.RetryDelayMillis) * time.Millisecond
}

type LoggingConfig struct {
	Enabled bool     `koanf:"enabled" mapstructure:"enabled"`
	Channel string   `koanf:"channel" mapstructure:"channel"`
	Level   LogLevel `koanf:"level" mapstructure:"level"`
	File    string   `koanf:"file" mapstructure:"file"`
}

type StoreConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr" mapstructure:"addr"`
	Password string `koanf:"password" mapstructure:"password"`
	DB       int    `koanf:"db" mapstructure:"db"`
}

type MongoConfig struct {
	URI        string `koanf:"uri" mapstructure:"uri"`
	Database   string `koanf:"database" mapstructure:"database"`
	Collection string `koanf:"collection" mapstructure:"collection"`
}

type KafkaConfig struct {
	Brokers []string `koanf:"brokers" mapstructure:"brokers"`
	Topic   string   `koanf:"topic" mapstructure:"topic"`
}

type Config struct {
	Environment string         `koanf:"environment" mapstructure:"environment"`
	API         APIConfig      `koanf:"api" mapstructure:"api"`
	Webhook     WebhookConfig  `koanf:"webhook" mapstructure:"webhook"`
	Defaults    DefaultsConfig `koanf:"defaults" mapstructure:"defaults"`
	Logging     LoggingConfig  `koanf:"logging" mapstructure:"logging"`
	Store       StoreConfig    `koanf:"store" mapstructure:"store"`
	Redis       RedisConfig    `koanf:"redis" mapstructure:"redis"`
	Mongo       MongoConfig    `koanf:"mongo" mapstructure:"mongo"`
	Kafka       KafkaConfig    `koanf:"kafka" mapstructure:"kafka"`
}

func DefaultConfig() Config {
	return Config{
		Environment: EnvironmentSandbox,
		API: APIConfig{
			Sandbox:    EnvironmentConfig{BaseURL: DefaultSandboxBaseURL},
			Production: EnvironmentConfig{BaseURL: DefaultProductionBaseURL},
		},
		Webhook: WebhookConfig{
			VerifySignature: true,
		},
		Defaults: DefaultsConfig{
			Currency:         "IDR",
			TimeoutSeconds:   30,
			RetryAttempts:    3,
			RetryDelayMillis: 1000,
			PaymentMethod:    "VA_BCA",
			ExpiryPeriod:     "30",
			FeeType:          "0",
		},
		Logging: LoggingConfig{
			Enabled: true,
			Channel: LogChannelDaily,
			Level:   LogLevelInfo,
			File:    "storage/logs/bdpay.log",
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Mongo: MongoConfig{
			Database:   "bdpay",
			Collection: "bdpay_transactions",
		},
		Kafka: KafkaConfig{
			Topic: "bdpay.transactions",
		},
	}
}

// Validate checks structural settings only. Credentials are checked when a
// client is built for the active environment.
func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case EnvironmentSandbox, EnvironmentProduction:
	default:
		return fmt.Errorf("core: environment must be sandbox or production, got %q", c.Environment)
	}
	if c.Defaults.TimeoutSeconds < 0 {
		return fmt.Errorf("core: defaults.timeout must not be negative")
	}
	if c.Defaults.RetryAttempts < 0 {
		return fmt.Errorf("core: defaults.retry_attempts must not be negative")
	}
	if c.Defaults.RetryDelayMillis < 0 {
		return fmt.Errorf("core: defaults.retry_delay must not be negative")
	}
	if !c.Logging.Level.Valid() {
		return fmt.Errorf("core: logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}

// EnvironmentName returns the normalized active environment.
func (c Config) EnvironmentName() string {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	if env == "" {
		return EnvironmentSandbox
	}
	return env
}

// Active returns the credentials and base URL for the active environment.
func (c Config) Active() EnvironmentConfig {
	var active EnvironmentConfig
	fallback := DefaultSandboxBaseURL
	if c.EnvironmentName() == EnvironmentProduction {
		active = c.API.Production
		fallback = DefaultProductionBaseURL
	} else {
		active = c.API.Sandbox
	}
	if strings.TrimSpace(active.BaseURL) == "" {
		active.BaseURL = fallback
	}
	return active
}

// ValidateCredentials checks that the active environment carries a
// merchant code and both keys.
func (c Config) ValidateCredentials() error {
	active := c.Active()
	env := c.EnvironmentName()
	missing := make([]string, 0, 3)
	if strings.TrimSpace(active.MerchantCode) == "" {
		missing = append(missing, "merchant_code")
	}
	if strings.TrimSpace(active.PublicKey) == "" {
		missing = append(missing, "public_key")
	}
	if strings.TrimSpace(active.SecretKey) == "" {
		missing = append(missing, "secret_key")
	}
	if len(missing) == 0 {
		return nil
	}
	prefix := "BDPAY_" + strings.ToUpper(env)
	return ConfigurationError(
		fmt.Sprintf(
			"BDPay configuration is incomplete for %s environment. Please check %s_MERCHANT_CODE, %s_PUBLIC_KEY, and %s_SECRET_KEY.",
			env, prefix, prefix, prefix,
		),
		map[string]any{"environment": env, "missing": missing},
	)
}
