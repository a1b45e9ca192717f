package dockerctl

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-units"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/perr"
)

// SandboxSpec is everything CreateContainer needs to materialize a single
// sandbox container (§4.2 create_container). ProjectID, ObjectStoreBucket,
// ObjectStorePrefix, and SAKeyJSON are handed to the container as
// environment variables per the sandbox container contract (§6): the
// container's own startup/backup scripts use them, the control plane never
// reaches inside.
type SandboxSpec struct {
	ContainerName     string
	Image             string
	VolumeName        string
	NetworkName       string
	HostIP            string
	PortRangeLow      int
	PortRangeHigh     int
	PublicKey         string
	ProjectID         string
	ObjectStoreBucket string
	ObjectStorePrefix string
	SAKeyJSON         string
	Labels            map[string]string
}

// sandboxMemoryLimit and sandboxCPULimit are the per-sandbox resource caps
// (§4.2): 1 GiB of memory, 1 CPU.
const (
	sandboxMemoryLimit = "1GiB"
	sandboxCPULimit    = 1.0
)

// CreateContainer allocates a host port and starts the sandbox container
// attached to the given volume and network, retrying on a port race per
// RetryOnPortTaken. On any failure after the container exists, it removes
// the partially created container before returning (§4.2 "compensation").
func (c *Client) CreateContainer(ctx context.Context, rng *rand.Rand, spec SandboxSpec) (containerID string, hostPort int, err error) {
	env := []string{
		"SANDBOX_AUTHORIZED_KEY=" + spec.PublicKey,
		"SANDBOX_PROJECT_ID=" + spec.ProjectID,
		"SANDBOX_OBJECT_STORE_BUCKET=" + spec.ObjectStoreBucket,
		"SANDBOX_OBJECT_STORE_PREFIX=" + spec.ObjectStorePrefix,
		"SANDBOX_SA_KEY_JSON=" + spec.SAKeyJSON,
	}
	mounts := []mount.Mount{
		{
			Type:   mount.TypeVolume,
			Source: spec.VolumeName,
			Target: "/home/sandbox",
		},
	}

	memBytes, merr := units.RAMInBytes(sandboxMemoryLimit)
	if merr != nil {
		return "", 0, perr.Backend("parse sandbox memory limit failed", merr)
	}

	var createdID string
	port, allocErr := RetryOnPortTaken(spec.PortRangeLow, spec.PortRangeHigh, rng, func(candidate int) error {
		_, bindings, perr2 := sshPortBinding(candidate, spec.HostIP)
		if perr2 != nil {
			return perr2
		}
		cfg := &container.Config{
			Image:    spec.Image,
			Env:      env,
			Labels:   spec.Labels,
			Hostname: spec.ContainerName,
		}
		hostCfg := &container.HostConfig{
			Mounts:       mounts,
			PortBindings: bindings,
			RestartPolicy: container.RestartPolicy{
				Name: "unless-stopped",
			},
			CapAdd: []string{"SYS_ADMIN"},
			Resources: container.Resources{
				Memory:   memBytes,
				NanoCPUs: int64(sandboxCPULimit * 1e9),
				Devices: []container.DeviceMapping{
					{PathOnHost: "/dev/fuse", PathInContainer: "/dev/fuse", CgroupPermissions: "rwm"},
				},
			},
		}
		netCfg := &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				spec.NetworkName: {},
			},
		}
		resp, cerr := c.api.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, spec.ContainerName)
		if cerr != nil {
			return cerr
		}
		createdID = resp.ID
		if serr := c.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); serr != nil {
			_ = c.api.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
			createdID = ""
			return serr
		}
		return nil
	})
	if allocErr != nil {
		if createdID != "" {
			_ = c.api.ContainerRemove(ctx, createdID, container.RemoveOptions{Force: true})
		}
		return "", 0, perr.Backend("container create failed", allocErr)
	}
	return createdID, port, nil
}

// Inspect returns the raw container state, for callers that need more than
// GetContainerIP exposes.
func (c *Client) Inspect(ctx context.Context, id string) (types.ContainerJSON, error) {
	info, err := c.api.ContainerInspect(ctx, id)
	if err != nil {
		return types.ContainerJSON{}, perr.Backend("container inspect failed", err)
	}
	return info, nil
}

// ensureImage pulls the image if it isn't present locally. The orchestrator
// uses it for the base sandbox image; snapshot images are pulled with
// registry credentials by snapshot.Manager.PullForRestore.
func (c *Client) ensureImage(ctx context.Context, ref string, pullOpts types.ImagePullOptions) error {
	_, _, err := c.api.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return nil
	}
	rc, perr2 := c.api.ImagePull(ctx, ref, pullOpts)
	if perr2 != nil {
		return fmt.Errorf("pull image %s: %w", ref, perr2)
	}
	defer rc.Close()
	buf := make([]byte, 32*1024)
	for {
		if _, rerr := rc.Read(buf); rerr != nil {
			break
		}
	}
	return nil
}

// EnsureImage is the exported form used by the orchestrator before first
// creating a project's container.
func (c *Client) EnsureImage(ctx context.Context, ref string) error {
	return c.ensureImage(ctx, ref, types.ImagePullOptions{})
}
