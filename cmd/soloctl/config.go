package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/soloctl/internal/launcher"
)

type fileConfig struct {
	Name              string `toml:"name"`
	SocketDir         string `toml:"socket_dir"`
	ClientTimeout     string `toml:"client_timeout"`
	ClientTimeoutMS   int64  `toml:"client_timeout_ms"`
	StatusAddr        string `toml:"status_addr"`
	Heartbeat         string `toml:"heartbeat"`
	HeartbeatInterval string `toml:"heartbeat_interval"`
}

func loadServiceConfig(path string) (launcher.ServiceConfig, error) {
	cfg := launcher.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return launcher.ServiceConfig{}, fmt.Errorf("load launcher config: %w", err)
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.AppName = name
		}
	}

	if meta.IsDefined("socket_dir") {
		cfg.SocketDir = strings.TrimSpace(raw.SocketDir)
	}

	if meta.IsDefined("client_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ClientTimeout))
		if err != nil {
			return launcher.ServiceConfig{}, fmt.Errorf("parse client_timeout: %w", err)
		}
		cfg.ClientTimeout = d
	}

	if meta.IsDefined("client_timeout_ms") {
		cfg.ClientTimeout = time.Duration(raw.ClientTimeoutMS) * time.Millisecond
	}

	if meta.IsDefined("status_addr") {
		cfg.StatusAddr = strings.TrimSpace(raw.StatusAddr)
	}

	if meta.IsDefined("heartbeat") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Heartbeat))
		if err != nil {
			return launcher.ServiceConfig{}, fmt.Errorf("parse heartbeat: %w", err)
		}
		cfg.HeartbeatInterval = d
	}

	if meta.IsDefined("heartbeat_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HeartbeatInterval))
		if err != nil {
			return launcher.ServiceConfig{}, fmt.Errorf("parse heartbeat_interval: %w", err)
		}
		cfg.HeartbeatInterval = d
	}

	return cfg, nil
}
