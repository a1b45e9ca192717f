package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/model"
)

// CreateProject runs the create saga (§4.5 create): allocate derived names,
// mint an SSH key pair and cloud identity, create the network/volume/
// container, then persist the row as running. Each step that created a
// real resource is compensated on failure so a half-created project never
// lingers.
func (o *Orchestrator) CreateProject(ctx context.Context, userID, name string) (model.Project, error) {
	id := uuid.NewString()
	containerName := "sandbox-" + id
	volumeName := "vol-" + id
	networkName := "net-" + id
	objectPrefix := "projects/" + id

	pub, priv, err := generateSSHKeyPair()
	if err != nil {
		return model.Project{}, err
	}

	var (
		identityEmail string
		identityKey   []byte
		containerID   string
		hostPort      int
	)

	steps := []step{
		{
			name: "ensure-image",
			do: func() error {
				return o.docker.EnsureImage(ctx, o.cfg.BaseSandboxImage)
			},
		},
		{
			name: "create-network",
			do: func() error {
				_, err := o.docker.EnsureNetwork(ctx, networkName)
				return err
			},
			undo: func() { _ = o.docker.RemoveNetwork(context.Background(), networkName) },
		},
		{
			name: "create-volume",
			do: func() error {
				_, err := o.docker.EnsureVolume(ctx, volumeName)
				return err
			},
			undo: func() { _ = o.docker.RemoveVolume(context.Background(), volumeName) },
		},
		{
			name: "create-cloud-identity",
			do: func() error {
				ident, err := o.cloud.CreateForProject(ctx, id)
				if err != nil {
					return err
				}
				identityEmail = ident.ServiceAccountEmail
				identityKey = ident.KeyJSON
				return nil
			},
			undo: func() { _ = o.cloud.DeleteForProject(context.Background(), identityEmail) },
		},
		{
			name: "create-container",
			do: func() error {
				spec := containerSpec(o, id, containerName, volumeName, networkName, pub, objectPrefix, string(identityKey))
				cid, port, err := o.docker.CreateContainer(ctx, o.rng, spec)
				if err != nil {
					return err
				}
				containerID = cid
				hostPort = port
				return nil
			},
			undo: func() {
				if containerID != "" {
					_ = o.docker.DeleteContainer(context.Background(), containerID)
				}
			},
		},
	}

	if err := runSaga(o.logger, steps); err != nil {
		return model.Project{}, err
	}

	now := time.Now().UTC()
	p := model.Project{
		ID:                id,
		UserID:            userID,
		Name:              name,
		Status:            model.StatusRunning,
		ContainerHandle:   containerID,
		ContainerName:     containerName,
		VolumeName:        volumeName,
		NetworkName:       networkName,
		SSHHostPort:       hostPort,
		SSHPublicKey:      pub,
		SSHPrivateKey:     priv,
		CloudSAEmail:      identityEmail,
		CloudSAKeyJSON:    string(identityKey),
		ObjectStorePrefix: objectPrefix,
		CreatedAt:         now,
		LastActiveAt:      now,
	}
	saved, err := o.store.CreateProject(ctx, p)
	if err != nil {
		_ = o.docker.CleanupProjectResources(context.Background(), containerName, volumeName, networkName)
		_ = o.cloud.DeleteForProject(context.Background(), identityEmail)
		return model.Project{}, err
	}
	return saved, nil
}
