// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package visualizer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the visualizer server settings.
type Config struct {
	// Host is the bind address. Empty means all interfaces.
	Host string `yaml:"host"`

	// Port is the listen port. The emitter's default target assumes 8001.
	Port int `yaml:"port"`

	// HistoryLimit caps how many execution events the state endpoint
	// returns. Zero means no cap.
	HistoryLimit int `yaml:"history_limit"`
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() Config {
	return Config{
		Host: "",
		Port: 8001,
	}
}

// LoadConfig reads a YAML config file, applying defaults for unset fields.
//
// Inputs:
//
//	path - Path to the YAML file. Empty returns DefaultConfig().
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid port %d in %s", cfg.Port, path)
	}
	return cfg, nil
}

// Addr returns the host:port string for the HTTP listener.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
