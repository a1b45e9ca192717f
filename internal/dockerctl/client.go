// Package dockerctl implements C2: port allocation, and create/start/stop/
// delete of the container, named volume, and per-project bridge network
// that make up a sandbox (§4.2).
package dockerctl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/perr"
)

type Client struct {
	api *client.Client
}

func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}
	return &Client{api: cli}, nil
}

// Raw exposes the underlying SDK client for controllers that need Docker
// operations CleanupProjectResources/EnsureNetwork don't cover, such as the
// snapshot manager's commit/push/pull calls.
func (c *Client) Raw() *client.Client { return c.api }

func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}

// EnsureNetwork creates the project's bridge network if absent, IPv6
// disabled. No subnet is set here: the daemon assigns one from its
// configured address pools, which is where the /24 size comes from.
func (c *Client) EnsureNetwork(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("network name required")
	}
	if id, ok, err := c.findNetwork(ctx, name); err != nil {
		return "", err
	} else if ok {
		return id, nil
	}
	resp, err := c.api.NetworkCreate(ctx, name, types.NetworkCreate{
		Driver:     "bridge",
		EnableIPv6: boolPtr(false),
		IPAM: &network.IPAM{
			Config: []network.IPAMConfig{{Subnet: ""}},
		},
	})
	if err != nil {
		if isConflict(err) {
			if id, ok, ferr := c.findNetwork(ctx, name); ferr == nil && ok {
				return id, nil
			}
		}
		return "", perr.Backend("network create failed", err)
	}
	return resp.ID, nil
}

func (c *Client) findNetwork(ctx context.Context, name string) (string, bool, error) {
	args := filters.NewArgs()
	args.Add("name", name)
	list, err := c.api.NetworkList(ctx, types.NetworkListOptions{Filters: args})
	if err != nil {
		return "", false, err
	}
	for _, item := range list {
		if item.Name == name {
			return item.ID, true, nil
		}
	}
	return "", false, nil
}

func (c *Client) EnsureVolume(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("volume name required")
	}
	list, err := c.api.VolumeList(ctx, volume.ListOptions{Filters: filters.NewArgs(filters.Arg("name", name))})
	if err != nil {
		return "", err
	}
	for _, item := range list.Volumes {
		if item.Name == name {
			return item.Name, nil
		}
	}
	resp, err := c.api.VolumeCreate(ctx, volume.CreateOptions{Name: name})
	if err != nil {
		if isConflict(err) {
			return name, nil
		}
		return "", perr.Backend("volume create failed", err)
	}
	return resp.Name, nil
}

// StartContainer, StopContainer, DeleteContainer are idempotent: a
// not-found container is a no-op (§4.2).
func (c *Client) StartContainer(ctx context.Context, id string) error {
	err := c.api.ContainerStart(ctx, id, container.StartOptions{})
	if err != nil && !client.IsErrNotFound(err) {
		return perr.Backend("container start failed", err)
	}
	return nil
}

// StopContainer sends the graceful stop signal and waits up to 30s before
// forceful kill (§4.2, §5 "Timeouts").
func (c *Client) StopContainer(ctx context.Context, id string) error {
	timeout := 30
	err := c.api.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout})
	if err != nil && !client.IsErrNotFound(err) {
		return perr.Backend("container stop failed", err)
	}
	return nil
}

func (c *Client) DeleteContainer(ctx context.Context, id string) error {
	err := c.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return perr.Backend("container remove failed", err)
	}
	return nil
}

func (c *Client) RemoveVolume(ctx context.Context, name string) error {
	err := c.api.VolumeRemove(ctx, name, true)
	if err != nil && !client.IsErrNotFound(err) {
		return perr.Backend("volume remove failed", err)
	}
	return nil
}

func (c *Client) RemoveNetwork(ctx context.Context, name string) error {
	id, ok, err := c.findNetwork(ctx, name)
	if err != nil {
		return perr.Backend("network lookup failed", err)
	}
	if !ok {
		return nil
	}
	if err := c.api.NetworkRemove(ctx, id); err != nil && !client.IsErrNotFound(err) {
		return perr.Backend("network remove failed", err)
	}
	return nil
}

// GetContainerIP resolves the container's IPv4 on the given network
// (§4.2 get_container_ip). Returns perr.Transient if the container is not
// running or not attached to that network.
func (c *Client) GetContainerIP(ctx context.Context, containerID, networkName string) (string, error) {
	info, err := c.api.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", perr.Transient("container not running", err)
	}
	if info.State == nil || !info.State.Running {
		return "", perr.Transient("container not running", nil)
	}
	if info.NetworkSettings == nil {
		return "", perr.Transient("container has no network settings", nil)
	}
	ep, ok := info.NetworkSettings.Networks[networkName]
	if !ok || ep.IPAddress == "" {
		return "", perr.Transient("container not attached to network", nil)
	}
	return ep.IPAddress, nil
}

// CleanupProjectResources removes container, then volume, then network —
// each step idempotent, never erroring on missing parts (§4.2).
func (c *Client) CleanupProjectResources(ctx context.Context, containerName, volumeName, networkName string) error {
	id, _, err := c.containerIDByName(ctx, containerName)
	if err != nil {
		return perr.Backend("cleanup: container lookup failed", err)
	}
	if id != "" {
		if err := c.DeleteContainer(ctx, id); err != nil {
			return err
		}
	}
	if err := c.RemoveVolume(ctx, volumeName); err != nil {
		return err
	}
	if err := c.RemoveNetwork(ctx, networkName); err != nil {
		return err
	}
	return nil
}

func (c *Client) containerIDByName(ctx context.Context, name string) (string, *types.ContainerJSON, error) {
	info, err := c.api.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", nil, nil
		}
		return "", nil, err
	}
	return info.ID, &info, nil
}

func boolPtr(b bool) *bool { return &b }

func isConflict(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}
