package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeIni(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bcstcp.ini")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write ini: %v", err)
	}
	return path
}

func TestConfig_All(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		if cfg.Addr() != "127.0.0.1:8888" {
			t.Errorf("Addr() = %q", cfg.Addr())
		}
		if cfg.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v", cfg.Timeout)
		}
		if cfg.PollInterval != time.Second || cfg.MaxIterations != 1000000 {
			t.Errorf("scan = %+v", cfg.ScanConf)
		}
		if cfg.Level != "info" {
			t.Errorf("Level = %q", cfg.Level)
		}
	})

	t.Run("FileOverridesDefaults", func(t *testing.T) {
		path := writeIni(t, `
[server]
host    = 10.0.0.5
port    = 9000
timeout = 250ms

[scan]
poll_interval  = 2s
max_iterations = 30

[log]
level = debug
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		if cfg.Addr() != "10.0.0.5:9000" {
			t.Errorf("Addr() = %q", cfg.Addr())
		}
		if cfg.Timeout != 250*time.Millisecond {
			t.Errorf("Timeout = %v", cfg.Timeout)
		}
		if cfg.PollInterval != 2*time.Second || cfg.MaxIterations != 30 {
			t.Errorf("scan = %+v", cfg.ScanConf)
		}
		if cfg.Level != "debug" {
			t.Errorf("Level = %q", cfg.Level)
		}
	})

	t.Run("PartialFileKeepsDefaults", func(t *testing.T) {
		path := writeIni(t, "[server]\nport = 7000\n")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		if cfg.Host != "127.0.0.1" || cfg.Port != 7000 {
			t.Errorf("server = %+v", cfg.ServerConf)
		}
		if cfg.MaxIterations != 1000000 {
			t.Errorf("MaxIterations = %d", cfg.MaxIterations)
		}
	})

	t.Run("EnvOverridesFile", func(t *testing.T) {
		path := writeIni(t, "[server]\nhost = 10.0.0.5\nport = 9000\ntimeout = 1s\n")
		t.Setenv("BCS_HOST", "scanner.local")
		t.Setenv("BCS_PORT", "9100")
		t.Setenv("BCS_TIMEOUT", "3s")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		if cfg.Addr() != "scanner.local:9100" || cfg.Timeout != 3*time.Second {
			t.Errorf("server = %+v", cfg.ServerConf)
		}
	})

	t.Run("InvalidEnvIgnored", func(t *testing.T) {
		t.Setenv("BCS_PORT", "not-a-port")
		t.Setenv("BCS_TIMEOUT", "soon")

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		if cfg.Port != 8888 || cfg.Timeout != 5*time.Second {
			t.Errorf("server = %+v", cfg.ServerConf)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.ini")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
