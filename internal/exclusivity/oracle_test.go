package exclusivity

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestFirstInstanceAcquiresClaim(t *testing.T) {
	dir := t.TempDir()
	o := NewFlockOracle(dir)

	if !o.IsFirstInstance("demo.app") {
		t.Fatal("expected first caller to hold the claim")
	}

	data, err := os.ReadFile(LockPath(dir, "demo.app"))
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("lock file pid: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("lock file pid mismatch: got=%d want=%d", pid, os.Getpid())
	}
}

func TestHeldClaimIsIdempotentForHolder(t *testing.T) {
	o := NewFlockOracle(t.TempDir())

	if !o.IsFirstInstance("demo.app") {
		t.Fatal("first acquire failed")
	}
	if !o.IsFirstInstance("demo.app") {
		t.Fatal("holder re-check should stay true")
	}
}

func TestSecondOracleSeesExistingClaim(t *testing.T) {
	dir := t.TempDir()
	first := NewFlockOracle(dir)
	second := NewFlockOracle(dir)

	if !first.IsFirstInstance("demo.app") {
		t.Fatal("first acquire failed")
	}
	if second.IsFirstInstance("demo.app") {
		t.Fatal("second oracle must observe the existing claim")
	}
}

func TestReleaseFreesClaim(t *testing.T) {
	dir := t.TempDir()
	first := NewFlockOracle(dir)
	second := NewFlockOracle(dir)

	if !first.IsFirstInstance("demo.app") {
		t.Fatal("first acquire failed")
	}
	if err := first.Release("demo.app"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !second.IsFirstInstance("demo.app") {
		t.Fatal("claim should be available after release")
	}
}

func TestReleaseWithoutClaimIsNoOp(t *testing.T) {
	o := NewFlockOracle(t.TempDir())
	if err := o.Release("never.held"); err != nil {
		t.Fatalf("release without claim: %v", err)
	}
}

func TestDistinctAppNamesDoNotContend(t *testing.T) {
	dir := t.TempDir()
	a := NewFlockOracle(dir)
	b := NewFlockOracle(dir)

	if !a.IsFirstInstance("app.one") {
		t.Fatal("app.one acquire failed")
	}
	if !b.IsFirstInstance("app.two") {
		t.Fatal("app.two should not contend with app.one")
	}
}

func TestLockPathSanitizesName(t *testing.T) {
	got := LockPath("/run/y", "My App/v2")
	if filepath.Base(got) != "soloctl-My-App-v2.lock" {
		t.Fatalf("unexpected lock path: %q", got)
	}
}
