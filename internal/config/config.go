// Package config loads the generator settings from .locatorgen.yaml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// File names searched for, in order, in every directory.
var FileNames = []string{".locatorgen.yaml", ".locatorgen.yml"}

// Config holds every generator setting. Zero values are replaced by defaults
// when a file is loaded.
type Config struct {
	Output            string    `yaml:"output"`
	Function          string    `yaml:"function"`
	LocatorImport     string    `yaml:"locatorImport"`
	InjectTag         string    `yaml:"injectTag"`
	ConstructorMarker string    `yaml:"constructorMarker"`
	Parallelism       int       `yaml:"parallelism"`
	Log               LogConfig `yaml:"log"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `yaml:"-"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Output:            "locator_gen.go",
		Function:          "Initialize",
		LocatorImport:     "github.com/sghaida/locatorgen/locator",
		InjectTag:         "inject",
		ConstructorMarker: "locator:constructor",
		Parallelism:       0,
		Log: LogConfig{
			Level:  "warn",
			Format: FormatConsole,
		},
	}
}

// Find searches startDir and its parents for a configuration file and loads
// the first one found. Without a file it returns Default.
func Find(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", startDir, err)
	}

	for {
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return Load(path)
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Load reads and validates the file at path. Keys missing from the file keep
// their default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var err error

	if !strings.HasSuffix(c.Output, ".go") || strings.ContainsAny(c.Output, `/\`) {
		err = multierr.Append(err, fmt.Errorf("output must be a .go file name without directories, got %q", c.Output))
	}
	if strings.HasSuffix(c.Output, "_test.go") {
		err = multierr.Append(err, fmt.Errorf("output must not be a test file, got %q", c.Output))
	}
	if !token.IsIdentifier(c.Function) {
		err = multierr.Append(err, fmt.Errorf("function must be a Go identifier, got %q", c.Function))
	}
	if c.LocatorImport == "" {
		err = multierr.Append(err, errors.New("locatorImport is required"))
	}
	if c.InjectTag == "" || strings.ContainsAny(c.InjectTag, " \t:\"`") {
		err = multierr.Append(err, fmt.Errorf("injectTag must be a struct tag key, got %q", c.InjectTag))
	}
	if c.ConstructorMarker == "" || strings.ContainsAny(c.ConstructorMarker, " \t\n") {
		err = multierr.Append(err, fmt.Errorf("constructorMarker must be a single word, got %q", c.ConstructorMarker))
	}
	if c.Parallelism < 0 {
		err = multierr.Append(err, fmt.Errorf("parallelism must not be negative, got %d", c.Parallelism))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case FormatConsole, FormatJSON:
	default:
		err = multierr.Append(err, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}

	return err
}
