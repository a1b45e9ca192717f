// Package snapshot implements C4: commit-and-push a project's container as
// an image, pull a snapshot image back for a restore, and remove a
// project's local snapshot images (§4.4). Creating the restored container
// is left to the orchestrator.
package snapshot

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/perr"
)

// backupNowCommand is the script the sandbox container image exposes for
// the control plane to trigger a final agent-home copy to the object-store
// prefix before a snapshot commit (§6 "periodically copy agent home").
var backupNowCommand = []string{"/opt/pomodex/backup-now.sh"}

type Manager struct {
	api          *client.Client
	registryBase string // e.g. "registry.example.com/pomodex"
}

func New(api *client.Client, registryBase string) *Manager {
	return &Manager{api: api, registryBase: registryBase}
}

// registryAuth builds the base64-encoded AuthConfig Docker's push/pull API
// expects, using the project's own service account key as credentials
// (§4.4 "push/pull auth"): username is the literal "_json_key", the
// password is the raw service account key JSON, matching the registry
// convention for key-based GCR/AR authentication.
func registryAuth(saKeyJSON []byte) (string, error) {
	auth := types.AuthConfig{
		Username: "_json_key",
		Password: string(saKeyJSON),
	}
	buf, err := json.Marshal(auth)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// flushAgentHome instructs the running container to copy agent home to the
// object-store prefix before it is committed (§4.4 Consistency: "the final
// copy to the object store must complete before the commit"). The control
// plane never enters the container for anything else; this is the one
// narrow exec the sandbox contract (§6) grants it.
func (m *Manager) flushAgentHome(ctx context.Context, containerID string) error {
	execResp, err := m.api.ContainerExecCreate(ctx, containerID, types.ExecConfig{
		Cmd:          backupNowCommand,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return perr.Backend("create backup exec failed", err)
	}
	attach, err := m.api.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{})
	if err != nil {
		return perr.Backend("attach backup exec failed", err)
	}
	defer attach.Close()
	if _, err := io.Copy(io.Discard, attach.Reader); err != nil {
		return perr.Backend("backup exec stream failed", err)
	}
	inspect, err := m.api.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return perr.Backend("inspect backup exec failed", err)
	}
	if inspect.ExitCode != 0 {
		return perr.Backend(fmt.Sprintf("backup-now exited %d", inspect.ExitCode), nil)
	}
	return nil
}

// Snapshot flushes the agent home directory to the object store, commits
// the running container, and tags/pushes both the timestamped and latest
// tags (§4.4 snapshot). The returned image ref is the latest tag, the one
// the orchestrator's imageForProject resolves to; the caller persists it alongside
// last_snapshot_at.
func (m *Manager) Snapshot(ctx context.Context, containerID, projectID string, saKeyJSON []byte) (string, error) {
	if err := m.flushAgentHome(ctx, containerID); err != nil {
		return "", err
	}

	base := fmt.Sprintf("%s/sandbox-%s", m.registryBase, projectID)
	latestRef := base + ":latest"
	timestampRef := fmt.Sprintf("%s:%s", base, time.Now().UTC().Format("20060102T150405Z"))

	resp, err := m.api.ContainerCommit(ctx, containerID, types.ContainerCommitOptions{
		Reference: latestRef,
		Pause:     true,
		Comment:   fmt.Sprintf("pomodex snapshot %s", time.Now().UTC().Format(time.RFC3339)),
	})
	if err != nil {
		return "", perr.Backend("container commit failed", err)
	}
	if err := m.api.ImageTag(resp.ID, timestampRef); err != nil {
		return "", perr.Backend("image tag failed", err)
	}

	auth, err := registryAuth(saKeyJSON)
	if err != nil {
		return "", perr.Backend("build registry auth failed", err)
	}
	for _, ref := range []string{latestRef, timestampRef} {
		if err := m.pushImage(ctx, ref, auth); err != nil {
			return "", err
		}
	}
	return latestRef, nil
}

func (m *Manager) pushImage(ctx context.Context, ref, auth string) error {
	rc, err := m.api.ImagePush(ctx, ref, types.ImagePushOptions{RegistryAuth: auth})
	if err != nil {
		return perr.Backend("image push failed", err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return perr.Backend("image push stream failed", err)
	}
	return nil
}

// PullForRestore pulls the given image ref using the project's service
// account credentials. The start saga calls it only when the project has a
// snapshot image; the base image is fetched through dockerctl.EnsureImage.
func (m *Manager) PullForRestore(ctx context.Context, imageRef string, saKeyJSON []byte) error {
	auth, err := registryAuth(saKeyJSON)
	if err != nil {
		return perr.Backend("build registry auth failed", err)
	}
	rc, err := m.api.ImagePull(ctx, imageRef, types.ImagePullOptions{RegistryAuth: auth})
	if err != nil {
		return perr.Backend("image pull failed", err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return perr.Backend("image pull stream failed", err)
	}
	return nil
}

// DeleteProjectImages removes every locally cached image tagged under a
// project's <registry>/sandbox-<pid> reference. Tags already pushed to the
// remote registry are not deleted. A project with no snapshots yet has
// nothing to list and is a no-op.
func (m *Manager) DeleteProjectImages(ctx context.Context, projectID string) error {
	base := fmt.Sprintf("%s/sandbox-%s", m.registryBase, projectID)
	args := filters.NewArgs(filters.Arg("reference", base+":*"))
	images, err := m.api.ImageList(ctx, types.ImageListOptions{Filters: args})
	if err != nil {
		return perr.Backend("list project images failed", err)
	}
	for _, img := range images {
		if _, err := m.api.ImageRemove(ctx, img.ID, types.ImageRemoveOptions{Force: true}); err != nil && !client.IsErrNotFound(err) {
			return perr.Backend("image remove failed", err)
		}
	}
	return nil
}
