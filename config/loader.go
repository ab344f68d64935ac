package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-bdpay/core"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/providers/structs"
)

// DefaultEnvPrefix marks the environment variables the loader reads.
// BDPAY_API__SANDBOX__MERCHANT_CODE sets api.sandbox.merchant_code.
const DefaultEnvPrefix = "BDPAY_"

//go:embed default.yml
var DefaultConfig []byte

// legacyEnv maps the flat variable names used by existing deployments.
var legacyEnv = map[string]string{
	"SANDBOX_MERCHANT_CODE":          "api.sandbox.merchant_code",
	"SANDBOX_PUBLIC_KEY":             "api.sandbox.public_key",
	"SANDBOX_SECRET_KEY":             "api.sandbox.secret_key",
	"SANDBOX_PLATFORM_PUBLIC_KEY":    "api.sandbox.platform_public_key",
	"PRODUCTION_MERCHANT_CODE":       "api.production.merchant_code",
	"PRODUCTION_PUBLIC_KEY":          "api.production.public_key",
	"PRODUCTION_SECRET_KEY":          "api.production.secret_key",
	"PRODUCTION_PLATFORM_PUBLIC_KEY": "api.production.platform_public_key",
	"PAYMENT_CALLBACK_URL":           "webhook.payment_callback_url",
	"DISBURSEMENT_CALLBACK_URL":      "webhook.disbursement_callback_url",
	"VERIFY_SIGNATURE":               "webhook.verify_signature",
	"LOGGING_ENABLED":                "logging.enabled",
	"LOG_CHANNEL":                    "logging.channel",
	"LOG_LEVEL":                      "logging.level",
}

// Loader layers the embedded defaults, an optional YAML file and the
// environment, in that order.
type Loader struct {
	Path      string
	EnvPrefix string
}

func NewLoader(path string) *Loader {
	return &Loader{Path: strings.TrimSpace(path), EnvPrefix: DefaultEnvPrefix}
}

// Load returns the merged configuration. It does not check credentials;
// core.NewClient does that for the active environment.
func (l *Loader) Load(_ context.Context) (core.Config, error) {
	k, err := l.koanf()
	if err != nil {
		return core.Config{}, err
	}
	cfg := core.DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return core.Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return core.Config{}, err
	}
	return cfg, nil
}

// LoadRaw implements core.RawConfigLoader. Values are decoded into
// core.Config first so env strings reach the provider with their field
// types.
func (l *Loader) LoadRaw(ctx context.Context) (map[string]any, error) {
	cfg, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	typed := koanf.New(".")
	if err := typed.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: flatten: %w", err)
	}
	return typed.Raw(), nil
}

func (l *Loader) koanf() (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(DefaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if l != nil && l.Path != "" {
		if _, err := os.Stat(l.Path); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", l.Path, err)
		}
		if err := k.Load(file.Provider(l.Path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", l.Path, err)
		}
	}
	prefix := DefaultEnvPrefix
	if l != nil && strings.TrimSpace(l.EnvPrefix) != "" {
		prefix = strings.TrimSpace(l.EnvPrefix)
	}
	if err := k.Load(env.ProviderWithValue(prefix, ".", envValue(prefix)), nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}
	return k, nil
}

func envValue(prefix string) func(string, string) (string, any) {
	return func(name, value string) (string, any) {
		key := envKey(strings.TrimPrefix(name, prefix))
		if key == "kafka.brokers" {
			return key, splitList(value)
		}
		return key, value
	}
}

func envKey(name string) string {
	if key, ok := legacyEnv[name]; ok {
		return key
	}
	return strings.ReplaceAll(strings.ToLower(name), "__", ".")
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var _ core.RawConfigLoader = (*Loader)(nil)
