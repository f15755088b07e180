package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// LauncherConfig is the on-disk shape of one soloctl launcher config.
type LauncherConfig struct {
	Name          string `toml:"name"`
	SocketDir     string `toml:"socket_dir"`
	ClientTimeout string `toml:"client_timeout"`
	StatusAddr    string `toml:"status_addr"`
	LogLevel      string `toml:"log_level"`
}

func LoadLauncherConfig(path string) (LauncherConfig, error) {
	var cfg LauncherConfig
	if err := loadToml(path, &cfg); err != nil {
		return LauncherConfig{}, err
	}
	if cfg.ClientTimeout == "" {
		cfg.ClientTimeout = "5s"
	}
	if err := ValidateLauncherConfig(cfg); err != nil {
		return LauncherConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateLauncherConfig(cfg LauncherConfig) error {
	if cfg.ClientTimeout != "" {
		d, err := time.ParseDuration(strings.TrimSpace(cfg.ClientTimeout))
		if err != nil {
			return fmt.Errorf("launcher config client_timeout invalid: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("launcher config client_timeout must be positive")
		}
	}
	if dir := strings.TrimSpace(cfg.SocketDir); dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("launcher config socket_dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("launcher config socket_dir is not a directory: %s", dir)
		}
	}
	return nil
}

// Timeout resolves the configured client timeout.
func (c LauncherConfig) Timeout() (time.Duration, error) {
	if strings.TrimSpace(c.ClientTimeout) == "" {
		return 5 * time.Second, nil
	}
	return time.ParseDuration(strings.TrimSpace(c.ClientTimeout))
}
