package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.BinaryPath != want.BinaryPath {
		t.Errorf("BinaryPath = %q, want %q", cfg.BinaryPath, want.BinaryPath)
	}
	if cfg.Rotation.MaxFiles != want.Rotation.MaxFiles {
		t.Errorf("Rotation.MaxFiles = %d, want %d", cfg.Rotation.MaxFiles, want.Rotation.MaxFiles)
	}
	if cfg.Server.Port != want.Server.Port {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, want.Server.Port)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentsight.yaml")

	raw, err := yaml.Marshal(map[string]interface{}{
		"ssl_filters":  []string{"function == SSL_read"},
		"http_filters": []string{"method == GET"},
		"binary_path":  "/usr/local/bin/agentsight-ssl-tracer",
		"rotation": map[string]interface{}{
			"max_file_size":       5_000_000,
			"max_files":           3,
			"size_check_interval": 50,
		},
		"system": map[string]interface{}{
			"interval_secs":    5,
			"include_children": false,
		},
		"server": map[string]interface{}{
			"port":     9090,
			"log_file": "custom.log",
		},
	})
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.SslFilters) != 1 || cfg.SslFilters[0] != "function == SSL_read" {
		t.Errorf("SslFilters = %v", cfg.SslFilters)
	}
	if cfg.BinaryPath != "/usr/local/bin/agentsight-ssl-tracer" {
		t.Errorf("BinaryPath = %q", cfg.BinaryPath)
	}
	if cfg.Rotation.MaxFiles != 3 || cfg.Rotation.MaxFileSize != 5_000_000 {
		t.Errorf("Rotation = %+v", cfg.Rotation)
	}
	if cfg.System.IntervalSecs != 5 || cfg.System.IncludeChildren {
		t.Errorf("System = %+v", cfg.System)
	}
	if cfg.Server.Port != 9090 || cfg.Server.LogFile != "custom.log" {
		t.Errorf("Server = %+v", cfg.Server)
	}
}
