package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/driveworks/drivehub/pkg/models"
)

const pageColumns = `id, drive_id, tenant_id, parent_id, type, title, content, properties,
	revision, position, created_by, created_at, updated_at, deleted_at`

func scanPage(row pgx.Row) (*models.Page, error) {
	var p models.Page
	err := row.Scan(&p.ID, &p.DriveID, &p.TenantID, &p.ParentID, &p.Type, &p.Title,
		&p.Content, &p.Properties, &p.Revision, &p.Position, &p.CreatedBy,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (s *Postgres) CreatePage(ctx context.Context, page *models.Page) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO pages (drive_id, tenant_id, parent_id, type, title, content, properties, position, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, revision, created_at, updated_at`,
		page.DriveID, page.TenantID, page.ParentID, page.Type, page.Title,
		page.Content, page.Properties, page.Position, page.CreatedBy,
	).Scan(&page.ID, &page.Revision, &page.CreatedAt, &page.UpdatedAt)
	return mapErr(err)
}

// CreateTaskListPage creates a TASK_LIST page and its metadata row in one
// transaction.
func (s *Postgres) CreateTaskListPage(ctx context.Context, page *models.Page, list *models.TaskList) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO pages (drive_id, tenant_id, parent_id, type, title, content, properties, position, created_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id, revision, created_at, updated_at`,
			page.DriveID, page.TenantID, page.ParentID, page.Type, page.Title,
			page.Content, page.Properties, page.Position, page.CreatedBy,
		).Scan(&page.ID, &page.Revision, &page.CreatedAt, &page.UpdatedAt)
		if err != nil {
			return mapErr(err)
		}
		list.PageID = page.ID
		err = tx.QueryRow(ctx,
			`INSERT INTO task_lists (page_id, description) VALUES ($1, $2)
			 RETURNING id, created_at, updated_at`,
			list.PageID, list.Description,
		).Scan(&list.ID, &list.CreatedAt, &list.UpdatedAt)
		return mapErr(err)
	})
}

func (s *Postgres) GetPage(ctx context.Context, tenantID, id string) (*models.Page, error) {
	return scanPage(s.db.QueryRow(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`,
		id, tenantID,
	))
}

func (s *Postgres) ListPages(ctx context.Context, driveID string, parentID *string, pageType *models.PageType) ([]*models.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE drive_id = $1 AND deleted_at IS NULL`
	args := []any{driveID}
	if parentID != nil {
		args = append(args, *parentID)
		query += ` AND parent_id = $2`
	}
	if pageType != nil {
		args = append(args, *pageType)
		if parentID != nil {
			query += ` AND type = $3`
		} else {
			query += ` AND type = $2`
		}
	}
	query += ` ORDER BY position, created_at`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPages(rows)
}

func collectPages(rows pgx.Rows) ([]*models.Page, error) {
	var pages []*models.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// UpdatePageContent performs the optimistic-concurrency compare-and-swap:
// the update only applies when the stored revision equals the one the caller
// read. A lost race surfaces as ErrStaleRevision.
func (s *Postgres) UpdatePageContent(ctx context.Context, tenantID, id, content string, revision int) (*models.Page, error) {
	page, err := scanPage(s.db.QueryRow(ctx,
		`UPDATE pages SET content = $1, revision = revision + 1, updated_at = now()
		 WHERE id = $2 AND tenant_id = $3 AND revision = $4 AND deleted_at IS NULL
		 RETURNING `+pageColumns,
		content, id, tenantID, revision,
	))
	if err == nil {
		return page, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	// Distinguish a missing page from a lost revision race.
	if _, getErr := s.GetPage(ctx, tenantID, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrStaleRevision
}

func (s *Postgres) RenamePage(ctx context.Context, tenantID, id, title string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE pages SET title = $1, updated_at = now()
		 WHERE id = $2 AND tenant_id = $3 AND deleted_at IS NULL`,
		title, id, tenantID,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) MovePage(ctx context.Context, tenantID, id string, parentID *string, position float64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE pages SET parent_id = $1, position = $2, updated_at = now()
		 WHERE id = $3 AND tenant_id = $4 AND deleted_at IS NULL`,
		parentID, position, id, tenantID,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) UpdatePageProperties(ctx context.Context, tenantID, id string, properties json.RawMessage) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE pages SET properties = $1, updated_at = now()
		 WHERE id = $2 AND tenant_id = $3 AND deleted_at IS NULL`,
		properties, id, tenantID,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) TrashPage(ctx context.Context, tenantID, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE pages SET deleted_at = now() WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`,
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

func (s *Postgres) RestorePage(ctx context.Context, tenantID, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE pages SET deleted_at = NULL, updated_at = now()
		 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NOT NULL`,
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

func (s *Postgres) ListTrash(ctx context.Context, driveID string) ([]*models.Page, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE drive_id = $1 AND deleted_at IS NOT NULL ORDER BY deleted_at DESC`,
		driveID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPages(rows)
}

// SearchPages does a case-insensitive substring match over title and content.
func (s *Postgres) SearchPages(ctx context.Context, driveID, query string, limit int) ([]*models.Page, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+pageColumns+` FROM pages
		 WHERE drive_id = $1 AND deleted_at IS NULL AND (title ILIKE $2 OR content ILIKE $2)
		 ORDER BY updated_at DESC LIMIT $3`,
		driveID, "%"+query+"%", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPages(rows)
}
