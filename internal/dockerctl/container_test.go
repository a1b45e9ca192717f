package dockerctl

import (
	"testing"

	"github.com/docker/go-units"
)

func TestSandboxMemoryLimitParsesToOneGiB(t *testing.T) {
	got, err := units.RAMInBytes(sandboxMemoryLimit)
	if err != nil {
		t.Fatalf("RAMInBytes(%q) error = %v", sandboxMemoryLimit, err)
	}
	want := int64(1024 * 1024 * 1024)
	if got != want {
		t.Errorf("RAMInBytes(%q) = %d, want %d", sandboxMemoryLimit, got, want)
	}
}

func TestSandboxCPULimitInNanoCPUs(t *testing.T) {
	got := int64(sandboxCPULimit * 1e9)
	if got != 1_000_000_000 {
		t.Errorf("sandboxCPULimit in NanoCPUs = %d, want %d", got, 1_000_000_000)
	}
}
