package repository

import (
	"context"

	"github.com/driveworks/drivehub/pkg/models"
)

func (s *Postgres) GetTaskListByPage(ctx context.Context, pageID string) (*models.TaskList, error) {
	var l models.TaskList
	err := s.db.QueryRow(ctx,
		`SELECT id, page_id, description, created_at, updated_at FROM task_lists WHERE page_id = $1`,
		pageID,
	).Scan(&l.ID, &l.PageID, &l.Description, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &l, nil
}

func (s *Postgres) GetTaskList(ctx context.Context, id string) (*models.TaskList, error) {
	var l models.TaskList
	err := s.db.QueryRow(ctx,
		`SELECT id, page_id, description, created_at, updated_at FROM task_lists WHERE id = $1`,
		id,
	).Scan(&l.ID, &l.PageID, &l.Description, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &l, nil
}

func (s *Postgres) ListTaskItems(ctx context.Context, taskListID string) ([]*models.TaskItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, task_list_id, title, status, assignee_id, due_date, position, created_by, created_at, updated_at
		 FROM task_items WHERE task_list_id = $1 ORDER BY position, created_at`,
		taskListID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.TaskItem
	for rows.Next() {
		var t models.TaskItem
		if err := rows.Scan(&t.ID, &t.TaskListID, &t.Title, &t.Status, &t.AssigneeID,
			&t.DueDate, &t.Position, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &t)
	}
	return items, rows.Err()
}

func (s *Postgres) CreateTaskItem(ctx context.Context, item *models.TaskItem) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO task_items (task_list_id, title, status, assignee_id, due_date, position, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		item.TaskListID, item.Title, item.Status, item.AssigneeID, item.DueDate,
		item.Position, item.CreatedBy,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	return mapErr(err)
}

func (s *Postgres) GetTaskItem(ctx context.Context, id string) (*models.TaskItem, error) {
	var t models.TaskItem
	err := s.db.QueryRow(ctx,
		`SELECT id, task_list_id, title, status, assignee_id, due_date, position, created_by, created_at, updated_at
		 FROM task_items WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.TaskListID, &t.Title, &t.Status, &t.AssigneeID,
		&t.DueDate, &t.Position, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (s *Postgres) UpdateTaskItem(ctx context.Context, item *models.TaskItem) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE task_items SET title = $1, status = $2, assignee_id = $3, due_date = $4, position = $5, updated_at = now()
		 WHERE id = $6`,
		item.Title, item.Status, item.AssigneeID, item.DueDate, item.Position, item.ID,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE task_items SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) DeleteTaskItem(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM task_items WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
