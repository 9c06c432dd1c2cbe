package models

import "time"

// TaskStatus represents the state of a task item
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusCancelled:
		return true
	}
	return false
}

// TaskList is the metadata row backing a TASK_LIST page. It is created in
// the same transaction as its page.
type TaskList struct {
	ID          string    `json:"id" db:"id"`
	PageID      string    `json:"page_id" db:"page_id"`
	Description *string   `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TaskItem is a single task in a task list
type TaskItem struct {
	ID         string     `json:"id" db:"id"`
	TaskListID string     `json:"task_list_id" db:"task_list_id"`
	Title      string     `json:"title" db:"title"`
	Status     TaskStatus `json:"status" db:"status"`
	AssigneeID *string    `json:"assignee_id,omitempty" db:"assignee_id"`
	DueDate    *time.Time `json:"due_date,omitempty" db:"due_date"`
	Position   float64    `json:"position" db:"position"`
	CreatedBy  string     `json:"created_by" db:"created_by"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}
