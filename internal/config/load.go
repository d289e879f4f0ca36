package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	fileName = "simview.yaml"
	// EnvConfig names a config file when --config is not given.
	EnvConfig = "SIMVIEW_CONFIG"
)

// Load loads configuration with priority: defaults < file < flags.
//
// The file is the --config path, else $SIMVIEW_CONFIG, else the first of
// ./simview.yaml and <user config dir>/simview/simview.yaml that exists.
// An explicitly named file must exist.
func Load() (*Config, error) {
	cfg := Default()

	if path := configFile(); path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func configFile() string {
	if path := ConfigPath(); path != "" {
		return path
	}
	if path := os.Getenv(EnvConfig); path != "" {
		return path
	}
	for _, path := range searchPaths() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// searchPaths lists the implicit config locations, working directory first.
func searchPaths() []string {
	paths := []string{fileName}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "simview", fileName))
	}
	return paths
}

// loadFromFile merges a YAML file over the values already in cfg. Keys that
// match no field are rejected so a misspelt interval does not silently fall
// back to its default.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
