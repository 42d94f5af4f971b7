package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the .cinema.yaml client config.
type Config struct {
	Server           string        `yaml:"server"`
	WSURL            string        `yaml:"ws_url"`
	Name             string        `yaml:"name"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	DBPath           string        `yaml:"db_path"`
	StatsInterval    time.Duration `yaml:"stats_interval"`
	PersistInterval  time.Duration `yaml:"persist_interval"`
	RoomCheckTimeout time.Duration `yaml:"room_check_timeout"`
	MetricsAddr      string        `yaml:"metrics_addr"`
}

const configFileName = ".cinema.yaml"

func defaultConfig() *Config {
	return &Config{
		Server:           "http://localhost:5000",
		DBPath:           defaultDBPath(),
		StatsInterval:    time.Second,
		PersistInterval:  5 * time.Second,
		RoomCheckTimeout: 5 * time.Second,
	}
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "cinema.db")
	}
	return filepath.Join(dir, "cinema", "cinema.db")
}

// loadConfig builds the config from defaults, then the file at path (if
// any), then environment overrides.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvironmentOverrides(cfg)
	return cfg, nil
}

func applyEnvironmentOverrides(cfg *Config) {
	cfg.Server = envOrDefault("CINEMA_SERVER", cfg.Server)
	cfg.WSURL = envOrDefault("CINEMA_WS_URL", cfg.WSURL)
	cfg.Name = envOrDefault("CINEMA_NAME", cfg.Name)
	cfg.Username = envOrDefault("CINEMA_USER", cfg.Username)
	cfg.Password = envOrDefault("CINEMA_PASSWORD", cfg.Password)
	cfg.DBPath = envOrDefault("CINEMA_DB", cfg.DBPath)
	cfg.MetricsAddr = envOrDefault("CINEMA_METRICS_ADDR", cfg.MetricsAddr)
}

// findConfigFile looks for .cinema.yaml in dir or any parent directory.
func findConfigFile(dir string) string {
	for {
		path := filepath.Join(dir, configFileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
