package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, configFileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.StatsInterval != time.Second || cfg.PersistInterval != 5*time.Second || cfg.RoomCheckTimeout != 5*time.Second {
		t.Fatalf("intervals = %v %v %v", cfg.StatsInterval, cfg.PersistInterval, cfg.RoomCheckTimeout)
	}
	if cfg.DBPath == "" {
		t.Fatal("no default database path")
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
server: https://cinema.example.com
name: alice
username: family
stats_interval: 2s
room_check_timeout: 750ms
metrics_addr: 127.0.0.1:9100
`)
	t.Setenv("CINEMA_NAME", "bob")
	t.Setenv("CINEMA_PASSWORD", "popcorn")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Server != "https://cinema.example.com" {
		t.Errorf("Server = %q", cfg.Server)
	}
	if cfg.Name != "bob" {
		t.Errorf("Name = %q, env should win over the file", cfg.Name)
	}
	if cfg.Username != "family" || cfg.Password != "popcorn" {
		t.Errorf("credentials = %q/%q", cfg.Username, cfg.Password)
	}
	if cfg.StatsInterval != 2*time.Second || cfg.RoomCheckTimeout != 750*time.Millisecond {
		t.Errorf("durations = %v %v", cfg.StatsInterval, cfg.RoomCheckTimeout)
	}
	if cfg.PersistInterval != 5*time.Second {
		t.Errorf("PersistInterval = %v, default should survive", cfg.PersistInterval)
	}
	if cfg.MetricsAddr != "127.0.0.1:9100" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}

	bad := writeConfig(t, t.TempDir(), "stats_interval: [1, 2]\n")
	if _, err := loadConfig(bad); err == nil {
		t.Error("malformed file should fail")
	}
}

func TestFindConfigFileWalksUp(t *testing.T) {
	root := t.TempDir()
	want := writeConfig(t, root, "name: alice\n")

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	if got := findConfigFile(nested); got != want {
		t.Fatalf("findConfigFile = %q, want %q", got, want)
	}
}
