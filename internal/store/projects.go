package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/model"
)

func (s *Store) CreateProject(ctx context.Context, p model.Project) (model.Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.LastActiveAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (
			id, user_id, name, status, container_handle, container_name, volume_name, network_name,
			ssh_host_port, ssh_public_key, ssh_private_key, cloud_sa_email, cloud_sa_key_json,
			object_store_prefix, snapshot_image_ref, last_snapshot_at, last_backup_at, last_connection_at,
			created_at, last_active_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`,
		p.ID, p.UserID, p.Name, string(p.Status), p.ContainerHandle, p.ContainerName, p.VolumeName, p.NetworkName,
		p.SSHHostPort, p.SSHPublicKey, p.SSHPrivateKey, p.CloudSAEmail, p.CloudSAKeyJSON,
		p.ObjectStorePrefix, p.SnapshotImageRef, nullTime(p.LastSnapshotAt), nullTime(p.LastBackupAt), nullTime(p.LastConnectionAt),
		p.CreatedAt.Format(time.RFC3339), p.LastActiveAt.Format(time.RFC3339),
	)
	if err != nil {
		return model.Project{}, err
	}
	return p, nil
}

// UpdateProject overwrites the mutable fields of a project row in place.
func (s *Store) UpdateProject(ctx context.Context, p model.Project) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE projects SET
			name = ?, status = ?, container_handle = ?, container_name = ?, volume_name = ?, network_name = ?,
			ssh_host_port = ?, ssh_public_key = ?, ssh_private_key = ?, cloud_sa_email = ?, cloud_sa_key_json = ?,
			snapshot_image_ref = ?, last_snapshot_at = ?, last_backup_at = ?, last_connection_at = ?, last_active_at = ?
		WHERE id = ?
	`,
		p.Name, string(p.Status), p.ContainerHandle, p.ContainerName, p.VolumeName, p.NetworkName,
		p.SSHHostPort, p.SSHPublicKey, p.SSHPrivateKey, p.CloudSAEmail, p.CloudSAKeyJSON,
		p.SnapshotImageRef, nullTime(p.LastSnapshotAt), nullTime(p.LastBackupAt), nullTime(p.LastConnectionAt),
		p.LastActiveAt.Format(time.RFC3339), p.ID,
	)
	return err
}

// SetStatus is used by sagas to make terminal status transitions (e.g. to
// "error") without needing the full row in hand.
func (s *Store) SetStatus(ctx context.Context, id string, status model.Status) error {
	_, err := s.db.ExecContext(ctx, `UPDATE projects SET status = ? WHERE id = ?`, string(status), id)
	return err
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	return err
}

// GetProjectForUser enforces the multi-tenancy invariant: a project row is
// only visible through this path when user_id matches.
func (s *Store) GetProjectForUser(ctx context.Context, id, userID string) (model.Project, error) {
	row := s.db.QueryRowContext(ctx, projectSelect+` WHERE id = ? AND user_id = ?`, id, userID)
	return scanProject(row)
}

// GetProjectByID looks a project up by id alone, without the user_id
// filter. The API handlers, including the internal validate endpoint, use
// GetProjectForUser instead.
func (s *Store) GetProjectByID(ctx context.Context, id string) (model.Project, error) {
	row := s.db.QueryRowContext(ctx, projectSelect+` WHERE id = ?`, id)
	return scanProject(row)
}

func (s *Store) ListProjectsForUser(ctx context.Context, userID string) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx, projectSelect+` WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProjects(rows)
}

// ListRunningIdleSince returns running projects whose last_connection_at is
// before cutoff (§4.6 step 2). Projects that never connected are included
// once created_at is also before cutoff, so freshly created projects are not
// swept before anyone has had a chance to connect.
func (s *Store) ListRunningIdleSince(ctx context.Context, cutoff time.Time) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx, projectSelect+`
		WHERE status = ? AND (
			(last_connection_at IS NOT NULL AND last_connection_at < ?) OR
			(last_connection_at IS NULL AND created_at < ?)
		)
	`, string(model.StatusRunning), cutoff.Format(time.RFC3339), cutoff.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProjects(rows)
}

func (s *Store) TouchLastConnection(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE projects SET last_connection_at = ? WHERE id = ?`, at.Format(time.RFC3339), id)
	return err
}

const projectSelect = `
	SELECT id, user_id, name, status, container_handle, container_name, volume_name, network_name,
		ssh_host_port, ssh_public_key, ssh_private_key, cloud_sa_email, cloud_sa_key_json,
		object_store_prefix, snapshot_image_ref, last_snapshot_at, last_backup_at, last_connection_at,
		created_at, last_active_at
	FROM projects`

func scanProject(row *sql.Row) (model.Project, error) {
	var p model.Project
	var status, created, lastActive string
	var lastSnapshot, lastBackup, lastConn sql.NullString
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &status, &p.ContainerHandle, &p.ContainerName, &p.VolumeName, &p.NetworkName,
		&p.SSHHostPort, &p.SSHPublicKey, &p.SSHPrivateKey, &p.CloudSAEmail, &p.CloudSAKeyJSON,
		&p.ObjectStorePrefix, &p.SnapshotImageRef, &lastSnapshot, &lastBackup, &lastConn,
		&created, &lastActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Project{}, ErrNotFound
		}
		return model.Project{}, err
	}
	return finishScan(p, status, created, lastActive, lastSnapshot, lastBackup, lastConn), nil
}

func scanProjects(rows *sql.Rows) ([]model.Project, error) {
	var out []model.Project
	for rows.Next() {
		var p model.Project
		var status, created, lastActive string
		var lastSnapshot, lastBackup, lastConn sql.NullString
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &status, &p.ContainerHandle, &p.ContainerName, &p.VolumeName, &p.NetworkName,
			&p.SSHHostPort, &p.SSHPublicKey, &p.SSHPrivateKey, &p.CloudSAEmail, &p.CloudSAKeyJSON,
			&p.ObjectStorePrefix, &p.SnapshotImageRef, &lastSnapshot, &lastBackup, &lastConn,
			&created, &lastActive); err != nil {
			return nil, err
		}
		out = append(out, finishScan(p, status, created, lastActive, lastSnapshot, lastBackup, lastConn))
	}
	return out, rows.Err()
}

func finishScan(p model.Project, status, created, lastActive string, lastSnapshot, lastBackup, lastConn sql.NullString) model.Project {
	p.Status = model.Status(status)
	p.CreatedAt, _ = time.Parse(time.RFC3339, created)
	p.LastActiveAt, _ = time.Parse(time.RFC3339, lastActive)
	p.LastSnapshotAt = parseNullTime(lastSnapshot)
	p.LastBackupAt = parseNullTime(lastBackup)
	p.LastConnectionAt = parseNullTime(lastConn)
	return p
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil
	}
	return &t
}
