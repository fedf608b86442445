// Package config loads the rdialog configuration file.
//
// The file is YAML. It is decoded into a generic map first and then into
// Config with mapstructure, so durations may be written as strings ("5s")
// and scalars are weakly typed. Unknown keys are rejected.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rdialog/internal/logging"
)

// Config is the application configuration.
type Config struct {
	// Dialogs is the directory holding the CUE dialog definitions.
	Dialogs string `mapstructure:"dialogs"`

	// Database is the trace store path. Empty disables tracing.
	Database string `mapstructure:"database"`

	LogLevel string `mapstructure:"log_level"`
	Server   Server `mapstructure:"server"`
}

// Server configures the HTTP transport.
type Server struct {
	Addr        string        `mapstructure:"addr"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Dialogs:  "dialogs",
		LogLevel: "info",
		Server: Server{
			Addr:        ":8080",
			ReadTimeout: 10 * time.Second,
		},
	}
}

// Load reads a configuration file. Relative dialogs and database paths
// are resolved against the file's directory. An empty path returns
// Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(path)
	cfg.Dialogs = resolve(base, cfg.Dialogs)
	cfg.Database = resolve(base, cfg.Database)
	return cfg, nil
}

// Parse decodes YAML configuration over the defaults and validates it.
func Parse(data []byte) (Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive, got %s", c.Server.ReadTimeout))
	}
	return errors.Join(errs...)
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
