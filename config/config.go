package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the single YAML-loaded configuration surface for the
// collector: default filter expressions, log rotation, system-monitor
// thresholds, the SSL tracer binary path, and server defaults. The CLI
// applies only the filter expressions and the binary path, each when
// its flag is not passed; Rotation, System and Server are parsed but
// not applied by any subcommand.
type Config struct {
	SslFilters  []string          `yaml:"ssl_filters"`
	HttpFilters []string          `yaml:"http_filters"`
	Rotation    RotationConfig    `yaml:"rotation"`
	System      SystemConfig      `yaml:"system"`
	BinaryPath  string            `yaml:"binary_path"`
	Server      ServerConfig      `yaml:"server"`
}

// RotationConfig mirrors analyzer.LogRotationConfig's fields. It is
// loaded from YAML but not passed to the file logger, whose rotation
// settings come from the CLI flags.
type RotationConfig struct {
	MaxFileSize       int64  `yaml:"max_file_size"`
	MaxFiles          int    `yaml:"max_files"`
	SizeCheckInterval uint64 `yaml:"size_check_interval"`
}

// SystemConfig carries the default SystemRunner sampling thresholds.
type SystemConfig struct {
	IntervalSecs      uint64   `yaml:"interval_secs"`
	CPUThreshold      *float64 `yaml:"cpu_threshold,omitempty"`
	MemoryThresholdMB *uint64  `yaml:"memory_threshold_mb,omitempty"`
	IncludeChildren   bool     `yaml:"include_children"`
}

// ServerConfig carries the optional HTTP server's defaults.
type ServerConfig struct {
	Port    uint16 `yaml:"port"`
	LogFile string `yaml:"log_file"`
}

// Default returns AgentSight's built-in configuration, used when no
// config file is found and no --config flag is given.
func Default() *Config {
	return &Config{
		SslFilters:  nil,
		HttpFilters: nil,
		Rotation: RotationConfig{
			MaxFileSize:       10_000_000,
			MaxFiles:          5,
			SizeCheckInterval: 100,
		},
		System: SystemConfig{
			IntervalSecs:    10,
			IncludeChildren: true,
		},
		BinaryPath: "agentsight-ssl-tracer",
		Server: ServerConfig{
			Port:    8080,
			LogFile: "agentsight.log",
		},
	}
}

// Load reads a single agentsight.yaml file at path, merging its values
// over the built-in defaults. A missing file is not an error; callers
// that want to require an explicit config should stat the path first.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	return cfg, nil
}
