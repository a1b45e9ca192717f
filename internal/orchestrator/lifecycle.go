package orchestrator

import (
	"context"
	"errors"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/model"
)

// StopProject runs the stop saga (§4.5 "stop saga"): verify running, mark
// snapshotting, snapshot the container, stop it, then mark stopped. Also serves the /snapshot endpoint, which
// the API table specifies as an alias for stop. On failure the project is
// left in error for the caller to retry or delete.
func (o *Orchestrator) StopProject(ctx context.Context, p model.Project) (model.Project, error) {
	if err := guardTransition("stop", p.Status); err != nil {
		return model.Project{}, err
	}
	if err := o.store.SetStatus(ctx, p.ID, model.StatusSnapshotting); err != nil {
		return model.Project{}, err
	}
	imageRef, err := o.snaps.Snapshot(ctx, p.ContainerHandle, p.ID, []byte(p.CloudSAKeyJSON))
	if err != nil {
		_ = o.store.SetStatus(ctx, p.ID, model.StatusError)
		return model.Project{}, err
	}
	if err := o.docker.StopContainer(ctx, p.ContainerHandle); err != nil {
		_ = o.store.SetStatus(ctx, p.ID, model.StatusError)
		return model.Project{}, err
	}
	p.SnapshotImageRef = imageRef
	now := nowUTC()
	p.LastSnapshotAt = &now
	p.Status = model.StatusStopped
	if err := o.store.UpdateProject(ctx, p); err != nil {
		return model.Project{}, err
	}
	return p, nil
}

// StartProject runs the start saga (§4.5 "start saga"): verify stopped,
// mark restoring, select the restore image (snapshot if any else base),
// recreate the container from it, mark running. Also serves the /restore
// endpoint, which the API table specifies as an alias for start — there is
// no separate tag-selection parameter (§9 Open Question, decided).
func (o *Orchestrator) StartProject(ctx context.Context, p model.Project) (model.Project, error) {
	if err := guardTransition("start", p.Status); err != nil {
		return model.Project{}, err
	}
	if err := o.store.SetStatus(ctx, p.ID, model.StatusRestoring); err != nil {
		return model.Project{}, err
	}

	imageRef := imageForProject(p.SnapshotImageRef, o.cfg.BaseSandboxImage)
	fromSnapshot := p.SnapshotImageRef != ""

	// The old container and its network are torn down; the volume, which
	// holds user state, survives (§4.4 "restore_from_snapshot ... attached
	// to the existing volume and a freshly created network").
	if err := o.docker.CleanupProjectResources(ctx, p.ContainerName, "", p.NetworkName); err != nil {
		_ = o.store.SetStatus(ctx, p.ID, model.StatusError)
		return model.Project{}, err
	}
	if _, err := o.docker.EnsureNetwork(ctx, p.NetworkName); err != nil {
		_ = o.store.SetStatus(ctx, p.ID, model.StatusError)
		return model.Project{}, err
	}

	if fromSnapshot {
		if err := o.snaps.PullForRestore(ctx, imageRef, []byte(p.CloudSAKeyJSON)); err != nil {
			_ = o.store.SetStatus(ctx, p.ID, model.StatusError)
			return model.Project{}, err
		}
	} else {
		if err := o.docker.EnsureImage(ctx, imageRef); err != nil {
			_ = o.store.SetStatus(ctx, p.ID, model.StatusError)
			return model.Project{}, err
		}
	}

	restoreSpec := containerSpec(o, p.ID, p.ContainerName, p.VolumeName, p.NetworkName, p.SSHPublicKey, p.ObjectStorePrefix, p.CloudSAKeyJSON)
	restoreSpec.Image = imageRef
	containerID, hostPort, err := o.docker.CreateContainer(ctx, o.rng, restoreSpec)
	if err != nil {
		_ = o.store.SetStatus(ctx, p.ID, model.StatusError)
		return model.Project{}, err
	}

	p.ContainerHandle = containerID
	p.SSHHostPort = hostPort
	p.Status = model.StatusRunning
	p.LastActiveAt = nowUTC()
	if err := o.store.UpdateProject(ctx, p); err != nil {
		return model.Project{}, err
	}
	return p, nil
}

// imageForProject is the pure selector of §4.4 image_for_project: the
// snapshot image if the project has one, otherwise the configured base
// sandbox image.
func imageForProject(snapshotRef, baseRef string) string {
	if snapshotRef != "" {
		return snapshotRef
	}
	return baseRef
}

// DeleteProject tears down every resource a project owns and removes its
// row. The three external cleanups are mutually independent and each
// idempotent (§4.5 delete), so a failure in one does not skip the others:
// every cleanup runs, failures are logged, and the DB row is still removed
// (§7). Retrying a delete after a partial earlier failure converges to a
// clean state.
func (o *Orchestrator) DeleteProject(ctx context.Context, p model.Project) error {
	if err := guardTransition("delete", p.Status); err != nil {
		return err
	}
	_ = o.store.SetStatus(ctx, p.ID, model.StatusDeleting)

	var errs []error
	if err := o.docker.CleanupProjectResources(ctx, p.ContainerName, p.VolumeName, p.NetworkName); err != nil {
		o.logger.Printf("delete project %s: docker cleanup failed: %v", p.ID, err)
		errs = append(errs, err)
	}
	if err := o.snaps.DeleteProjectImages(ctx, p.ID); err != nil {
		o.logger.Printf("delete project %s: image cleanup failed: %v", p.ID, err)
		errs = append(errs, err)
	}
	if err := o.cloud.DeleteForProject(ctx, p.CloudSAEmail); err != nil {
		o.logger.Printf("delete project %s: cloud identity cleanup failed: %v", p.ID, err)
		errs = append(errs, err)
	}

	if err := o.store.DeleteProject(ctx, p.ID); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
