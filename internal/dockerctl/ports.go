package dockerctl

import (
	"fmt"
	"math/rand"
	"net"
	"strings"

	"github.com/docker/go-connections/nat"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/perr"
)

// maxPortAttempts bounds retries when the host range is nearly exhausted or
// another process wins a race between our bind test and container start.
const maxPortAttempts = 20

// AllocatePort picks a free host port in [low, high] for the container's SSH
// listener (§4.2 allocate_port). It walks the range in random order and
// proves each candidate free with an actual bind+listen, since a port can be
// reserved by another process without yet being Docker-visible.
func AllocatePort(low, high int, rng *rand.Rand) (int, error) {
	if low <= 0 || high <= 0 || low > high {
		return 0, fmt.Errorf("invalid port range [%d,%d]", low, high)
	}
	span := high - low + 1
	order := rng.Perm(span)
	attempts := 0
	for _, offset := range order {
		if attempts >= maxPortAttempts {
			break
		}
		attempts++
		port := low + offset
		if portFree(port) {
			return port, nil
		}
	}
	return 0, perr.Transient("no free host port in range", nil)
}

func portFree(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// RetryOnPortTaken calls create with freshly allocated ports until it
// succeeds, allocation or create fails with anything other than a
// port-taken error, or attempts are exhausted — Docker
// itself can still report the port taken between our bind test and the
// container's PortBindings being applied (§4.2 "Port allocation races").
func RetryOnPortTaken(low, high int, rng *rand.Rand, create func(port int) error) (int, error) {
	var lastErr error
	for i := 0; i < maxPortAttempts; i++ {
		port, err := AllocatePort(low, high, rng)
		if err != nil {
			return 0, err
		}
		if err := create(port); err != nil {
			if isPortTakenErr(err) {
				lastErr = err
				continue
			}
			return 0, err
		}
		return port, nil
	}
	return 0, perr.Transient("port allocation exhausted retries", lastErr)
}

func isPortTakenErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "address already in use") || strings.Contains(msg, "port is already allocated")
}

// sshContainerPort is the fixed, in-container port every sandbox's sshd
// listens on; only the host side varies per project (§3 "SSHHostPort").
const sshContainerPort = 22

func sshPortBinding(hostPort int, hostIP string) (nat.Port, nat.PortMap, error) {
	port, err := nat.NewPort("tcp", fmt.Sprintf("%d", sshContainerPort))
	if err != nil {
		return "", nil, err
	}
	bindings := nat.PortMap{
		port: []nat.PortBinding{{HostIP: hostIP, HostPort: fmt.Sprintf("%d", hostPort)}},
	}
	return port, bindings, nil
}
