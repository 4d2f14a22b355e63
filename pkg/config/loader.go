package config

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces all environment overrides, e.g.
// PHARMA_CACHE_DEFAULT_TTL=2h maps to cache.default_ttl.
const EnvPrefix = "PHARMA_"

// Service loads and exposes the application configuration.
type Service interface {
	// Load applies defaults, then the given sources in order, then
	// environment overrides, and validates the result.
	Load(ctx context.Context, sources ...Source) (*Config, error)
	// Get returns the most recently loaded configuration.
	Get() *Config
}

type loader struct {
	validator *validator.Validate
	current   atomic.Pointer[Config]
}

// NewService creates a new configuration service with validation support.
func NewService() Service {
	return &loader{
		validator: validator.New(),
	}
}

// Load assembles the configuration into a fresh koanf instance so concurrent
// Load and Get calls only ever touch the atomic snapshot.
func (l *loader) Load(_ context.Context, sources ...Source) (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, err
	}
	if err := loadSources(k, sources); err != nil {
		return nil, err
	}
	if err := loadEnvironment(k); err != nil {
		return nil, err
	}
	cfg, err := l.unmarshalAndValidate(k)
	if err != nil {
		return nil, err
	}
	l.current.Store(cfg)
	return cfg, nil
}

func (l *loader) Get() *Config {
	if cfg := l.current.Load(); cfg != nil {
		return cfg
	}
	return Default()
}

// loadDefaults loads the built-in defaults through the structs provider so the
// Default() struct is the single source of truth.
func loadDefaults(k *koanf.Koanf) error {
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}
	return nil
}

func loadSources(k *koanf.Koanf, sources []Source) error {
	for _, source := range sources {
		if source == nil || source.Type() == SourceEnv {
			continue
		}
		data, err := source.Load()
		if err != nil {
			return fmt.Errorf("failed to load from source %s: %w", source.Type(), err)
		}
		for key, value := range data {
			if err := k.Set(key, value); err != nil {
				return fmt.Errorf("failed to set key %s from source %s: %w", key, source.Type(), err)
			}
		}
	}
	return nil
}

func loadEnvironment(k *koanf.Koanf) error {
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key string, value string) (string, any) {
			return transformEnvKey(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

// transformEnvKey converts environment variable names to koanf paths.
// For example: CACHE_DEFAULT_TTL -> cache.default_ttl. The first segment is
// the section, the remainder keeps its underscores to match field names.
func transformEnvKey(s string) string {
	s = strings.ToLower(s)
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' })
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

func (l *loader) unmarshalAndValidate(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := l.validator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
