package dockerctl

import (
	"errors"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/perr"
)

func TestAllocatePortInvalidRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cases := [][2]int{{0, 100}, {100, 0}, {200, 100}, {-1, 10}}
	for _, c := range cases {
		if _, err := AllocatePort(c[0], c[1], rng); err == nil {
			t.Errorf("AllocatePort(%d, %d) = nil error, want an error", c[0], c[1])
		}
	}
}

func TestAllocatePortReturnsPortInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	low, high := 40000, 40050
	port, err := AllocatePort(low, high, rng)
	if err != nil {
		t.Fatalf("AllocatePort() error = %v", err)
	}
	if port < low || port > high {
		t.Fatalf("AllocatePort() = %d, want a port within [%d,%d]", port, low, high)
	}
}

func TestAllocatePortSkipsOccupiedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer ln.Close()
	occupied := ln.Addr().(*net.TCPAddr).Port

	rng := rand.New(rand.NewSource(1))
	port, err := AllocatePort(occupied, occupied, rng)
	if err == nil {
		t.Fatalf("AllocatePort() on a single occupied port = %d, want an error", port)
	}
	if perr.KindOf(err) != perr.KindTransient {
		t.Errorf("AllocatePort() error kind = %v, want %v", perr.KindOf(err), perr.KindTransient)
	}
}

func TestIsPortTakenErr(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("bind: address already in use"), true},
		{errors.New("Ports are not available: port is already allocated"), true},
		{errors.New("some unrelated docker error"), false},
	}
	for _, tc := range cases {
		if got := isPortTakenErr(tc.err); got != tc.want {
			t.Errorf("isPortTakenErr(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestRetryOnPortTakenRetriesThenSucceeds(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	attempts := 0
	port, err := RetryOnPortTaken(40100, 40150, rng, func(port int) error {
		attempts++
		if attempts < 3 {
			return errors.New("bind: address already in use")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RetryOnPortTaken() error = %v", err)
	}
	if port < 40100 || port > 40150 {
		t.Errorf("RetryOnPortTaken() = %d, want a port within range", port)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryOnPortTakenPropagatesNonPortError(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	failure := errors.New("image not found")
	_, err := RetryOnPortTaken(40200, 40210, rng, func(port int) error {
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("RetryOnPortTaken() error = %v, want %v", err, failure)
	}
}

func TestSSHPortBinding(t *testing.T) {
	port, bindings, err := sshPortBinding(30555, "0.0.0.0")
	if err != nil {
		t.Fatalf("sshPortBinding() error = %v", err)
	}
	if port.Port() != "22" {
		t.Errorf("container port = %q, want %q", port.Port(), "22")
	}
	bs, ok := bindings[port]
	if !ok || len(bs) != 1 {
		t.Fatalf("bindings[port] = %v, want exactly one binding", bs)
	}
	if bs[0].HostPort != "30555" || bs[0].HostIP != "0.0.0.0" {
		t.Errorf("binding = %+v, want HostPort=30555 HostIP=0.0.0.0", bs[0])
	}
}
