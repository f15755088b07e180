// Package proc owns process enumeration and termination for stale-instance
// recovery. The registry is an injected capability so the coordinator's
// recovery path can be tested against a fake process table.
package proc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// commMaxLen is the kernel truncation limit for /proc/<pid>/comm.
const commMaxLen = 15

// Handle is one enumerated process. Release must be called once the caller
// is done with the handle, whatever the Terminate outcome.
type Handle interface {
	PID() int
	Name() string
	Terminate() error
	Release()
}

// Registry enumerates live processes by executable name.
type Registry interface {
	FindByName(name string) ([]Handle, error)
}

// ProcfsRegistry enumerates processes by scanning /proc. Name matching
// accounts for the kernel's comm truncation, so long executable names still
// match their running processes.
type ProcfsRegistry struct {
	root string
}

// NewProcfsRegistry constructs a registry over the live /proc tree.
func NewProcfsRegistry() *ProcfsRegistry {
	return &ProcfsRegistry{root: "/proc"}
}

// NewProcfsRegistryAt constructs a registry over an alternate proc root.
func NewProcfsRegistryAt(root string) *ProcfsRegistry {
	return &ProcfsRegistry{root: root}
}

// FindByName returns handles for every live process whose comm matches name.
func (r *ProcfsRegistry) FindByName(name string) ([]Handle, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("proc: read %s: %w", r.root, err)
	}

	want := name
	if len(want) > commMaxLen {
		want = want[:commMaxLen]
	}

	handles := make([]Handle, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		comm, err := os.ReadFile(filepath.Join(r.root, entry.Name(), "comm"))
		if err != nil {
			// Process exited between readdir and read; skip.
			continue
		}
		if strings.TrimSpace(string(comm)) != want {
			continue
		}
		handles = append(handles, &osHandle{pid: pid, name: name})
	}
	return handles, nil
}

// osHandle terminates through SIGKILL; recovery targets are presumed hung,
// so a graceful signal would only stall the takeover.
type osHandle struct {
	pid  int
	name string
}

func (h *osHandle) PID() int     { return h.pid }
func (h *osHandle) Name() string { return h.name }

func (h *osHandle) Terminate() error {
	if err := unix.Kill(h.pid, unix.SIGKILL); err != nil {
		return fmt.Errorf("proc: kill pid=%d: %w", h.pid, err)
	}
	return nil
}

// Release is a no-op for procfs handles; it keeps the handle contract
// uniform with registries that hold OS resources per process.
func (h *osHandle) Release() {}
