// Package config loads the application configuration from environment
// variables (TAA_ prefix) and an optional YAML file, with environment
// taking precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"taacli/internal/combine"
)

// Config is the complete application configuration.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Processing ProcessingConfig `yaml:"processing" envconfig:"PROCESSING"`
}

// LoggingConfig controls the slog setup.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig holds the filesystem layout.
type PathsConfig struct {
	ExportDir string `yaml:"export_dir" envconfig:"EXPORT_DIR"`
	LogsDir   string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// ProcessingConfig holds pipeline defaults; the CLI flags override
// them per run.
type ProcessingConfig struct {
	// Window is the default moving-average window. 1 disables
	// smoothing.
	Window int `yaml:"window" envconfig:"WINDOW"`
	// Rule is the default signal/reference combination rule.
	Rule string `yaml:"rule" envconfig:"RULE"`
}

// Load builds the configuration in precedence order: built-in
// defaults, then the config file when present, then environment
// variables. Only values a layer actually sets override the layer
// below it.
func Load() (*Config, error) {
	cfg := *Default()

	if path := configFilePath(); path != "" {
		fileCfg, err := loadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		cfg = overlay(cfg, *fileCfg)
	}

	var envCfg Config
	if err := envconfig.Process("TAA", &envCfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	cfg = overlay(cfg, envCfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "both",
			FilePath: "logs/taacli.log",
		},
		Paths: PathsConfig{
			ExportDir: "exports",
			LogsDir:   "logs",
		},
		Processing: ProcessingConfig{
			Window: 1,
			Rule:   string(combine.RuleSubtract),
		},
	}
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// overlay applies the set (non-zero) fields of over on top of base.
func overlay(base, over Config) Config {
	if over.Logging.Level != "" {
		base.Logging.Level = over.Logging.Level
	}
	if over.Logging.Output != "" {
		base.Logging.Output = over.Logging.Output
	}
	if over.Logging.FilePath != "" {
		base.Logging.FilePath = over.Logging.FilePath
	}
	if over.Paths.ExportDir != "" {
		base.Paths.ExportDir = over.Paths.ExportDir
	}
	if over.Paths.LogsDir != "" {
		base.Paths.LogsDir = over.Paths.LogsDir
	}
	if over.Processing.Window != 0 {
		base.Processing.Window = over.Processing.Window
	}
	if over.Processing.Rule != "" {
		base.Processing.Rule = over.Processing.Rule
	}
	return base
}

func (c *Config) validate() error {
	if c.Processing.Window < 1 || c.Processing.Window%2 == 0 {
		return fmt.Errorf("processing window must be an odd positive integer, got %d", c.Processing.Window)
	}
	if _, err := combine.ParseRule(c.Processing.Rule); err != nil {
		return err
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(c.Paths.LogsDir, "taacli.log")
	}
	return nil
}

// EnsureDirectories creates the export and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ExportDir, c.Paths.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// configFilePath probes the common config file locations.
func configFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}
