package repository

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist or is
	// outside the caller's tenant.
	ErrNotFound = errors.New("not found")

	// ErrStaleRevision is returned when an optimistic-concurrency update
	// presents a revision that no longer matches the stored row.
	ErrStaleRevision = errors.New("stale revision")

	// ErrActiveExecutions is returned when deleting a workflow template that
	// still has running or paused executions.
	ErrActiveExecutions = errors.New("template has active executions")

	// ErrDuplicate is returned on unique-constraint violations.
	ErrDuplicate = errors.New("duplicate")
)
