// Package config loads the server's yaml configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr     string `yaml:"listen_addr"`
	DataDir        string `yaml:"data_dir"`
	AdvancementDir string `yaml:"advancement_dir"`

	// FlushIntervalMs paces the per-player sync driver.
	FlushIntervalMs int `yaml:"flush_interval_ms"`

	TelemetryEnabled bool `yaml:"telemetry_enabled"`
}

func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		DataDir:         "./data",
		AdvancementDir:  "./configs/advancements",
		FlushIntervalMs: 50,
	}
}

func Load(path string) (Config, error) {
	c := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	if c.FlushIntervalMs <= 0 {
		c.FlushIntervalMs = Default().FlushIntervalMs
	}
	return c, nil
}
