package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/driveworks/drivehub/pkg/models"
)

// CreateDrive inserts the drive and an owner membership in one transaction.
func (s *Postgres) CreateDrive(ctx context.Context, drive *models.Drive) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO drives (tenant_id, name, slug, owner_id) VALUES ($1, $2, $3, $4)
			 RETURNING id, created_at, updated_at`,
			drive.TenantID, drive.Name, drive.Slug, drive.OwnerID,
		).Scan(&drive.ID, &drive.CreatedAt, &drive.UpdatedAt)
		if err != nil {
			return mapErr(err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO drive_members (drive_id, user_id, role) VALUES ($1, $2, $3)`,
			drive.ID, drive.OwnerID, models.RoleOwner,
		)
		return mapErr(err)
	})
}

func (s *Postgres) GetDrive(ctx context.Context, tenantID, id string) (*models.Drive, error) {
	var d models.Drive
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, name, slug, owner_id, created_at, updated_at, deleted_at
		 FROM drives WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`,
		id, tenantID,
	).Scan(&d.ID, &d.TenantID, &d.Name, &d.Slug, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt, &d.DeletedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

// ListDrives returns the drives of a tenant the user is a member of.
func (s *Postgres) ListDrives(ctx context.Context, tenantID, userID string) ([]*models.Drive, error) {
	rows, err := s.db.Query(ctx,
		`SELECT d.id, d.tenant_id, d.name, d.slug, d.owner_id, d.created_at, d.updated_at, d.deleted_at
		 FROM drives d
		 JOIN drive_members m ON m.drive_id = d.id
		 WHERE d.tenant_id = $1 AND m.user_id = $2 AND d.deleted_at IS NULL
		 ORDER BY d.created_at`,
		tenantID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drives []*models.Drive
	for rows.Next() {
		var d models.Drive
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Name, &d.Slug, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt, &d.DeletedAt); err != nil {
			return nil, err
		}
		drives = append(drives, &d)
	}
	return drives, rows.Err()
}

func (s *Postgres) UpdateDrive(ctx context.Context, drive *models.Drive) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE drives SET name = $1, slug = $2, updated_at = now()
		 WHERE id = $3 AND tenant_id = $4 AND deleted_at IS NULL`,
		drive.Name, drive.Slug, drive.ID, drive.TenantID,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) DeleteDrive(ctx context.Context, tenantID, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE drives SET deleted_at = now() WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`,
		id, tenantID,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) UpsertDriveMember(ctx context.Context, member *models.DriveMember) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO drive_members (drive_id, user_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT (drive_id, user_id) DO UPDATE SET role = EXCLUDED.role, updated_at = now()`,
		member.DriveID, member.UserID, member.Role,
	)
	return mapErr(err)
}

func (s *Postgres) GetDriveMember(ctx context.Context, driveID, userID string) (*models.DriveMember, error) {
	var m models.DriveMember
	err := s.db.QueryRow(ctx,
		`SELECT drive_id, user_id, role, created_at, updated_at
		 FROM drive_members WHERE drive_id = $1 AND user_id = $2`,
		driveID, userID,
	).Scan(&m.DriveID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (s *Postgres) ListDriveMembers(ctx context.Context, driveID string) ([]*models.DriveMember, error) {
	rows, err := s.db.Query(ctx,
		`SELECT drive_id, user_id, role, created_at, updated_at
		 FROM drive_members WHERE drive_id = $1 ORDER BY created_at`,
		driveID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*models.DriveMember
	for rows.Next() {
		var m models.DriveMember
		if err := rows.Scan(&m.DriveID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

func (s *Postgres) RemoveDriveMember(ctx context.Context, driveID, userID string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM drive_members WHERE drive_id = $1 AND user_id = $2`,
		driveID, userID,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
