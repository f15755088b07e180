// Package exclusivity answers "am I the first live instance of this
// application on this host".
//
// The flock implementation holds the lock fd for the process lifetime, so
// the claim dies with the process. A hung-but-alive holder keeps the claim;
// clearing that situation is the coordinator's recovery path, not this
// package's concern.
package exclusivity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// Oracle reports first-instance status for an application name. A true
// answer marks the caller as the holder.
type Oracle interface {
	IsFirstInstance(appName string) bool
}

// FlockOracle claims exclusivity with a non-blocking exclusive flock on a
// per-application lock file.
type FlockOracle struct {
	dir string

	mu   sync.Mutex
	held map[string]*os.File
}

// NewFlockOracle constructs an oracle placing lock files under dir
// (empty means the OS temp dir).
func NewFlockOracle(dir string) *FlockOracle {
	return &FlockOracle{dir: dir, held: make(map[string]*os.File)}
}

// IsFirstInstance tries to take the application lock. On success the lock
// fd is retained until Release or process exit. Errors opening or locking
// the file are treated as "not first": a launcher that cannot tell must
// assume a competing instance and go down the forwarding path.
func (o *FlockOracle) IsFirstInstance(appName string) bool {
	path := LockPath(o.dir, appName)

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.held[path]; ok {
		return true
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		return false
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err == nil {
		_ = f.Sync()
	}
	o.held[path] = f
	return true
}

// Release drops a held claim so another process (or test) can take it.
func (o *FlockOracle) Release(appName string) error {
	path := LockPath(o.dir, appName)

	o.mu.Lock()
	f, ok := o.held[path]
	delete(o.held, path)
	o.mu.Unlock()
	if !ok {
		return nil
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LockPath maps one application name to its lock file path.
func LockPath(dir, appName string) string {
	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "soloctl-"+sanitizeName(appName)+".lock")
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "app"
	}
	return b.String()
}
