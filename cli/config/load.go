package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable consulted when --config is unset.
const EnvConfigPath = "PULSE_CONFIG"

// Load reads a YAML config file, expands environment variables, and
// unmarshals into a Config. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	var cfg Config
	if err := decodeStrict(ExpandEnv(string(data)), &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return &cfg, nil
}

func decodeStrict(doc string, cfg *Config) error {
	dec := yaml.NewDecoder(strings.NewReader(doc))
	dec.KnownFields(true)
	err := dec.Decode(cfg)
	// An empty document is a valid, empty config.
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Resolve picks the config file to load: the explicit path, then
// $PULSE_CONFIG, then <UserConfigDir>/pulse/config.yaml if it exists.
// Returns "" when no file applies. An explicit path that does not exist
// is still returned so Load can report it.
func Resolve(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	candidate := filepath.Join(dir, "pulse", "config.yaml")
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

// LoadResolved loads the file chosen by Resolve, or returns an empty
// Config when there is none.
func LoadResolved(explicit string) (*Config, string, error) {
	path := Resolve(explicit)
	if path == "" {
		return &Config{}, "", nil
	}
	cfg, err := Load(path)
	return cfg, path, err
}
