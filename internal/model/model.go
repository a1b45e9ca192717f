// Package model holds the control plane's persisted domain types (§3).
package model

import "time"

type User struct {
	ID           string
	Email        string
	EmailFold    string
	PasswordHash string
	CreatedAt    time.Time
}

type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Status string

const (
	StatusCreating     Status = "creating"
	StatusRunning      Status = "running"
	StatusSnapshotting Status = "snapshotting"
	StatusStopped      Status = "stopped"
	StatusRestoring    Status = "restoring"
	StatusError        Status = "error"
	StatusDeleting     Status = "deleting"
)

// Project is a user-owned sandbox lifecycle record (§3).
type Project struct {
	ID                string
	UserID            string
	Name              string
	Status            Status
	ContainerHandle   string
	ContainerName     string
	VolumeName        string
	NetworkName       string
	SSHHostPort       int
	SSHPublicKey      string
	SSHPrivateKey     string
	CloudSAEmail      string
	CloudSAKeyJSON    string
	ObjectStorePrefix string
	SnapshotImageRef  string
	LastSnapshotAt    *time.Time
	LastBackupAt      *time.Time
	LastConnectionAt  *time.Time
	CreatedAt         time.Time
	LastActiveAt      time.Time
}

// DerivedNames returns the Docker resource names derivable from the project
// id alone (§3 invariant: "derivable from the id alone").
func (p *Project) DerivedNames() (container, volume, network string) {
	return "sandbox-" + p.ID, "vol-" + p.ID, "net-" + p.ID
}

// ProjectSummary is the list-view shape returned by GET /projects.
type ProjectSummary struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Status    Status  `json:"status"`
	CreatedAt string  `json:"created_at"`
}

// ProjectDetail is the full-view shape. SSHPrivateKey is only populated in
// the create endpoint's response; TerminalURL only while the project is
// running.
type ProjectDetail struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Status            Status  `json:"status"`
	SSHHostPort       *int    `json:"ssh_port,omitempty"`
	SSHPrivateKey     string  `json:"ssh_private_key,omitempty"`
	TerminalURL       string  `json:"terminal_url,omitempty"`
	LastSnapshotAt    *string `json:"last_snapshot_at,omitempty"`
	LastBackupAt      *string `json:"last_backup_at,omitempty"`
	SnapshotImageRef  string  `json:"snapshot_image_ref,omitempty"`
	CreatedAt         string  `json:"created_at"`
	LastActiveAt      string  `json:"last_active_at"`
}
