// Package config loads and validates the driver-session configuration from
// a YAML or JSON file with environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fleetlink/driverd/infra/metrics"
	"github.com/fleetlink/driverd/infra/notify"
)

type Config struct {
	Session  SessionConfig  `koanf:"session"`
	Events   EventsConfig   `koanf:"events"`
	Location LocationConfig `koanf:"location"`
	Metrics  metrics.Config `koanf:"metrics"`
	Notify   notify.Config  `koanf:"notify"`
	API      APIConfig      `koanf:"api"`
	Logging  LoggingConfig  `koanf:"logging"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("DRIVERD_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "driverd_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}
	cfg.Session.SetDefaults()
	cfg.Events.SetDefaults()
	cfg.Location.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Notify.SetDefaults()
	cfg.API.SetDefaults()
	cfg.Logging.SetDefaults()
	if err := cfg.Session.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Events.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
