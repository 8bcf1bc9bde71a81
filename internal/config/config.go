// Package config loads the gateway's static configuration: listen
// address, storage directory, namespace separator, and default timeouts.
// Layering: the documented defaults, then the YAML file named by the
// serve command's --config flag, then MUSTER_* environment variables
// (see EnvOverrides).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AggregatorConfig is the top-level gateway configuration, loaded once at
// startup from a YAML file. ListenAddr, StorageDir and NamespaceSeparator
// can be overridden by environment variables (see EnvOverrides); the
// other fields cannot.
type AggregatorConfig struct {
	ListenAddr            string `yaml:"listen_addr"`
	StorageDir            string `yaml:"storage_dir"`
	NamespaceSeparator    string `yaml:"namespace_separator"`
	DefaultTimeoutSeconds int    `yaml:"default_timeout_s"`
	SecretKeyPath         string `yaml:"secret_key_path"`
	JWTSecretPath         string `yaml:"jwt_secret_path"`
}

// Defaults matches SPEC_FULL.md §3's documented configuration defaults.
func Defaults() AggregatorConfig {
	return AggregatorConfig{
		ListenAddr:            ":8080",
		StorageDir:            "./data",
		NamespaceSeparator:    ".",
		DefaultTimeoutSeconds: 30,
		SecretKeyPath:         "./data/secret.key",
		JWTSecretPath:         "./data/jwt.key",
	}
}

// Load reads path (if it exists) over Defaults(), then applies
// EnvOverrides. A missing file is not an error: the gateway runs on
// defaults alone for a quick local start, matching the teacher's
// permissive config loading.
func Load(path string) (AggregatorConfig, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			EnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	EnvOverrides(&cfg)
	return cfg, nil
}

// EnvOverrides applies MUSTER_*-prefixed environment variables on top of
// cfg, giving operators a way to override the file without editing it
// (container deployments, CI).
func EnvOverrides(cfg *AggregatorConfig) {
	if v := os.Getenv("MUSTER_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("MUSTER_STORAGE_DIR"); v != "" {
		cfg.StorageDir = v
	}
	if v := os.Getenv("MUSTER_NAMESPACE_SEPARATOR"); v != "" {
		cfg.NamespaceSeparator = v
	}
}

// Validate checks the loaded configuration for obviously broken values
// before the gateway starts serving.
func (c AggregatorConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.StorageDir == "" {
		return fmt.Errorf("storage_dir must not be empty")
	}
	if c.NamespaceSeparator == "" {
		return fmt.Errorf("namespace_separator must not be empty")
	}
	if c.DefaultTimeoutSeconds <= 0 {
		return fmt.Errorf("default_timeout_s must be positive")
	}
	return nil
}
