package config

import "context"

// SourceType identifies where a configuration value came from.
type SourceType string

const (
	SourceDefault SourceType = "default"
	SourceEnv     SourceType = "env"
	SourceMap     SourceType = "map"
)

// Source is a configuration provider. Sources are applied in order, the last
// one wins for overlapping keys.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
	Close() error
}

// envProvider marks that environment overrides should be applied. The actual
// loading is handled by koanf's native env provider in loader.go.
type envProvider struct{}

// NewEnvProvider creates a new environment variable configuration source.
func NewEnvProvider() Source {
	return &envProvider{}
}

func (e *envProvider) Load() (map[string]any, error) {
	return make(map[string]any), nil
}

func (e *envProvider) Type() SourceType {
	return SourceEnv
}

func (e *envProvider) Close() error {
	return nil
}

// mapProvider supplies explicit overrides, mostly used by tests.
type mapProvider struct {
	values map[string]any
}

// NewMapProvider creates a configuration source backed by a dot-notation map.
func NewMapProvider(values map[string]any) Source {
	return &mapProvider{values: values}
}

func (m *mapProvider) Load() (map[string]any, error) {
	if m.values == nil {
		return make(map[string]any), nil
	}
	return m.values, nil
}

func (m *mapProvider) Type() SourceType {
	return SourceMap
}

func (m *mapProvider) Close() error {
	return nil
}

// Watchable is implemented by sources that can notify about runtime changes.
// None of the built-in sources change at runtime.
type Watchable interface {
	Watch(ctx context.Context, onChange func()) error
}
