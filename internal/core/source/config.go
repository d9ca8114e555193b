package source

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML shape of the source registry file.
type FileConfig struct {
	Sources []SourceConfig `yaml:"sources"`
}

type SourceConfig struct {
	Name        string  `yaml:"name"`
	Enabled     bool    `yaml:"enabled"`
	LatencyMs   int     `yaml:"latency_ms"`
	FailureRate float64 `yaml:"failure_rate"`
}

// LoadFile reads the registry file. An empty path yields the default single
// mock source so the service runs without any configuration.
func LoadFile(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{Sources: []SourceConfig{{Name: "MOCK", Enabled: true, FailureRate: 0.05}}}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read sources file: %w", err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse sources file: %w", err)
	}
	if len(cfg.Sources) == 0 {
		return FileConfig{}, fmt.Errorf("sources file %s defines no sources", path)
	}
	return cfg, nil
}

// BuildRegistry constructs the adapter registry from file configuration.
// Every configured source is backed by the mock adapter for now.
func BuildRegistry(cfg FileConfig) *Registry {
	adapters := make([]Adapter, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		adapters = append(adapters, NewMockAdapter(sc))
	}
	return NewRegistry(adapters...)
}
