package orchestrator

import "github.com/Bitsy-Chuck/pomodex-sub000/internal/dockerctl"

func containerSpec(o *Orchestrator, projectID, containerName, volumeName, networkName, publicKey, objectStorePrefix, saKeyJSON string) dockerctl.SandboxSpec {
	return dockerctl.SandboxSpec{
		ContainerName:     containerName,
		Image:             o.cfg.BaseSandboxImage,
		VolumeName:        volumeName,
		NetworkName:       networkName,
		HostIP:            o.cfg.SSHHostIP,
		PortRangeLow:      o.cfg.PortRangeLow,
		PortRangeHigh:     o.cfg.PortRangeHigh,
		PublicKey:         publicKey,
		ProjectID:         projectID,
		ObjectStoreBucket: o.cfg.ObjectStoreBucket,
		ObjectStorePrefix: objectStorePrefix,
		SAKeyJSON:         saKeyJSON,
		Labels: map[string]string{
			"pomodex.managed": "true",
		},
	}
}
