package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("AURIHOME_CONFIG")
	defer os.Setenv("AURIHOME_CONFIG", originalEnv)

	os.Setenv("AURIHOME_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidDatabasePath verifies run fails when the database
// directory cannot be created.
func TestRun_InvalidDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
database:
  path: "/proc/invalid/aurihome.db"
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-client"
  qos: 1
  reconnect:
    retry_interval: 1

telemetry:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	originalEnv := os.Getenv("AURIHOME_CONFIG")
	defer os.Setenv("AURIHOME_CONFIG", originalEnv)
	os.Setenv("AURIHOME_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with an unwritable database path")
	}
}

func TestGetConfigPath(t *testing.T) {
	originalEnv := os.Getenv("AURIHOME_CONFIG")
	defer os.Setenv("AURIHOME_CONFIG", originalEnv)

	os.Setenv("AURIHOME_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %s, want %s", got, defaultConfigPath)
	}

	os.Setenv("AURIHOME_CONFIG", "/etc/aurihome/config.yaml")
	if got := getConfigPath(); got != "/etc/aurihome/config.yaml" {
		t.Errorf("getConfigPath() = %s, want /etc/aurihome/config.yaml", got)
	}
}
