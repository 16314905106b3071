// Package planner holds the pure task logic: expanding recurring series,
// bucketing tasks by deadline, filtering, and resolving group-scoped
// mutations. Nothing here performs I/O.
package planner

import "errors"

var (
	// ErrInvalidRecurrenceInput is returned when a seed task cannot be expanded.
	ErrInvalidRecurrenceInput = errors.New("invalid recurrence input")

	// ErrOwnershipViolation marks a mutation on a task owned by another user.
	ErrOwnershipViolation = errors.New("task belongs to another user")

	// ErrInvalidScope marks a scope that does not apply to the requested mutation.
	ErrInvalidScope = errors.New("invalid mutation scope")
)
