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

	"github.com/jmercadier/chargeshare/core/metrics"
	"github.com/jmercadier/chargeshare/core/recommend"
	"github.com/jmercadier/chargeshare/core/simulation"
	"github.com/jmercadier/chargeshare/infra/mqtt"
	"github.com/jmercadier/chargeshare/jobs/reminder"
	"github.com/jmercadier/chargeshare/jobs/watchdog"
)

type Config struct {
	Simulation simulation.Config `json:"simulation"`
	Recommend  recommend.Config  `json:"recommend"`
	Reminder   reminder.Config   `json:"reminder"`
	Watchdog   watchdog.Config   `json:"watchdog"`
	Metrics    metrics.Config    `json:"metrics"`
	MQTT       mqtt.Config       `json:"mqtt"`
	History    HistoryConfig     `json:"history"`
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
	if err := k.Load(env.Provider("CS_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "cs_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration usable without any file, with every
// section at its defaults.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills unset fields in every section.
func (c *Config) ApplyDefaults() {
	c.Simulation.SetDefaults()
	c.Recommend.SetDefaults()
	c.Reminder.SetDefaults()
	c.Watchdog.SetDefaults()
	c.Metrics.SetDefaults()
	c.MQTT.SetDefaults()
	c.History.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return err
	}
	if err := c.Recommend.Validate(); err != nil {
		return err
	}
	if err := c.Reminder.Validate(); err != nil {
		return err
	}
	if err := c.Watchdog.Validate(); err != nil {
		return err
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	return c.History.Validate()
}
