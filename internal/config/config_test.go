package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/soloctl/internal/testutil/testlog"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadLauncherConfig(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := writeConfig(t, `
name = "demo.app"
socket_dir = "`+dir+`"
client_timeout = "750ms"
status_addr = "127.0.0.1:7820"
log_level = "debug"
`)

	cfg, err := LoadLauncherConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "demo.app" {
		t.Fatalf("unexpected name: %q", cfg.Name)
	}
	if cfg.SocketDir != dir {
		t.Fatalf("unexpected socket_dir: %q", cfg.SocketDir)
	}
	d, err := cfg.Timeout()
	if err != nil {
		t.Fatalf("timeout: %v", err)
	}
	if d != 750*time.Millisecond {
		t.Fatalf("unexpected timeout: %v", d)
	}
}

func TestLoadLauncherConfigDefaultsTimeout(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `name = "demo.app"`)

	cfg, err := LoadLauncherConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ClientTimeout != "5s" {
		t.Fatalf("expected default client_timeout, got %q", cfg.ClientTimeout)
	}
}

func TestLoadLauncherConfigMissingFile(t *testing.T) {
	testlog.Start(t)
	if _, err := LoadLauncherConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateLauncherConfig(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cases := []struct {
		name    string
		cfg     LauncherConfig
		wantErr bool
	}{
		{"empty ok", LauncherConfig{}, false},
		{"valid", LauncherConfig{SocketDir: dir, ClientTimeout: "2s"}, false},
		{"bad duration", LauncherConfig{ClientTimeout: "soon"}, true},
		{"zero duration", LauncherConfig{ClientTimeout: "0s"}, true},
		{"negative duration", LauncherConfig{ClientTimeout: "-1s"}, true},
		{"missing socket dir", LauncherConfig{SocketDir: filepath.Join(dir, "absent")}, true},
		{"socket dir is a file", LauncherConfig{SocketDir: file}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateLauncherConfig(tc.cfg)
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestWriteTemplateRoundTrips(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := WriteTemplate(path, "launcher", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "launcher", false); err == nil {
		t.Fatal("expected overwrite refusal")
	}
	if err := WriteTemplate(path, "launcher", true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}

	// Generated template must pass its own loader.
	if _, err := LoadLauncherConfig(path); err != nil {
		t.Fatalf("template does not load: %v", err)
	}
}

func TestTemplateUnknownKind(t *testing.T) {
	testlog.Start(t)
	if _, err := Template("edge"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
