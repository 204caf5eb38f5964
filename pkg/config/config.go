// Package config loads run settings from an optional YAML file. Command-line
// flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Supported engines.
const (
	EngineDuckDB = "duckdb"
	EngineSQLite = "sqlite"
)

// DefaultOutputStem is the output file name, before the engine extension, used
// when none is configured.
const DefaultOutputStem = "union"

type Config struct {
	Engine string `yaml:"engine"`

	InputDir   string   `yaml:"input_dir"`
	Pattern    string   `yaml:"pattern"` // empty matches "*" + engine extension
	InputFiles []string `yaml:"input_files"`

	OutputFile         string `yaml:"output_file"`
	PreserveOutputFile bool   `yaml:"preserve_output_file"`

	// SourceFileColumn names the provenance column. Empty disables it.
	SourceFileColumn string `yaml:"source_file_column_name"`

	MemoryLimit string `yaml:"memory_limit"` // e.g. "512MB"; empty uses the engine default

	Log     LogConfig `yaml:"log"`
	Metrics struct {
		File string `yaml:"file"`
	} `yaml:"metrics"`
}

type LogConfig struct {
	ToFile bool   `yaml:"to_file"`
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"` // text or json
	Debug  bool   `yaml:"debug"`
}

// Default returns the settings used when neither a file nor flags set a value.
func Default() *Config {
	return &Config{
		Engine:           EngineSQLite,
		InputDir:         ".",
		SourceFileColumn: "source_file",
		Log: LogConfig{
			Dir:    "logs",
			Format: "text",
		},
	}
}

// LoadConfig reads path over Default and validates the result.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late in a run.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineDuckDB, EngineSQLite:
	default:
		return fmt.Errorf("engine must be %s or %s, got %q", EngineDuckDB, EngineSQLite, c.Engine)
	}
	if c.InputDir == "" {
		return errors.New("input_dir is required")
	}
	if c.Pattern != "" {
		if _, err := filepath.Match(c.Pattern, ""); err != nil {
			return fmt.Errorf("pattern %q: %w", c.Pattern, err)
		}
	}
	if c.OutputFile != "" && strings.TrimSpace(c.OutputFile) == "" {
		return errors.New("output_file must not be blank")
	}
	if c.SourceFileColumn != "" && strings.TrimSpace(c.SourceFileColumn) == "" {
		return errors.New("source_file_column_name must be empty or a column name")
	}
	if _, err := c.MemoryLimitBytes(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Log.ToFile && c.Log.Dir == "" {
		return errors.New("log.dir is required when logging to a file")
	}
	return nil
}

// MemoryLimitBytes parses MemoryLimit. Zero means the engine default.
func (c *Config) MemoryLimitBytes() (int64, error) {
	if c.MemoryLimit == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.MemoryLimit)
	if err != nil {
		return 0, fmt.Errorf("memory_limit %q: %w", c.MemoryLimit, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("memory_limit %q: too large", c.MemoryLimit)
	}
	return int64(n), nil
}

// ResolveOutput returns the output path, defaulting to "union" plus ext.
func (c *Config) ResolveOutput(ext string) string {
	if c.OutputFile == "" {
		return DefaultOutputStem + ext
	}
	return c.OutputFile
}

// ResolvePattern returns the input glob, defaulting to every file with ext.
func (c *Config) ResolvePattern(ext string) string {
	if c.Pattern == "" {
		return "*" + ext
	}
	return c.Pattern
}
