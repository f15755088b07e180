package channel

import (
	"math/rand"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNextBackoffDelayGrowthAndCap(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2.0, MaxDelay: 500 * time.Millisecond}

	if d := NextBackoffDelay(cfg, 1, nil); d != 100*time.Millisecond {
		t.Fatalf("attempt 1: %v", d)
	}
	if d := NextBackoffDelay(cfg, 2, nil); d != 200*time.Millisecond {
		t.Fatalf("attempt 2: %v", d)
	}
	if d := NextBackoffDelay(cfg, 10, nil); d != 500*time.Millisecond {
		t.Fatalf("attempt 10 should cap at max: %v", d)
	}
}

func TestNextBackoffDelayJitterBounds(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2.0, MaxDelay: time.Second, Jitter: true}
	rng := rand.New(rand.NewSource(1))

	for attempt := 2; attempt <= 5; attempt++ {
		base := NextBackoffDelay(BackoffConfig{InitialDelay: cfg.InitialDelay, Multiplier: cfg.Multiplier, MaxDelay: cfg.MaxDelay}, attempt, nil)
		got := NextBackoffDelay(cfg, attempt, rng)
		if got < base/2 || got > base+base/2 {
			t.Fatalf("attempt %d jitter out of bounds: got=%v base=%v", attempt, got, base)
		}
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{SocketDir: "/tmp"}.WithDefaults()
	def := DefaultConfig()
	if cfg.DialTimeout != def.DialTimeout || cfg.AckTimeout != def.AckTimeout {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.SocketDir != "/tmp" {
		t.Fatalf("explicit socket dir lost: %q", cfg.SocketDir)
	}
	if cfg.Limits.MaxPayloadBytes != def.Limits.MaxPayloadBytes {
		t.Fatalf("limits not defaulted: %+v", cfg.Limits)
	}
}

func TestSocketPathSanitizesName(t *testing.T) {
	tests := []struct {
		name string
		app  string
		want string
	}{
		{name: "plain", app: "notepad", want: "soloctl-notepad.sock"},
		{name: "spaces and slashes", app: "My App/v2", want: "soloctl-My-App-v2.sock"},
		{name: "dots kept", app: "demo.app", want: "soloctl-demo.app.sock"},
		{name: "empty falls back", app: "  ", want: "soloctl-app.sock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SocketPath("/run/x", tt.app)
			if filepath.Base(got) != tt.want {
				t.Fatalf("socket path: got=%q want base %q", got, tt.want)
			}
			if !strings.HasPrefix(got, "/run/x/") {
				t.Fatalf("socket dir lost: %q", got)
			}
		})
	}
}
