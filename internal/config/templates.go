package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "launcher":
		return launcherTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const launcherTemplate = `# soloctl launcher configuration.
# name defaults to the executable name when empty.
name = ""

# Directory for the channel socket and exclusivity lock file.
# Empty means the OS temp dir; both instances of an app must agree.
socket_dir = ""

# Bound on one forwarding attempt (connect + send + ack).
client_timeout = "5s"

# Local status endpoint served while primary. Empty disables it.
status_addr = "127.0.0.1:7820"

log_level = "info"
`
