package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"todo-planner/internal/model"
)

// ErrNotFound is returned when a task or user does not exist.
var ErrNotFound = errors.New("not found")

// OpKind is the kind of a batched write.
type OpKind int

const (
	OpSet OpKind = iota
	OpDelete
)

// Op is one write inside a batch. Set ops carry the full task; delete ops
// only need the id.
type Op struct {
	Kind OpKind
	ID   string
	Task model.Task
}

// SetOp builds a write of task under its own id.
func SetOp(task model.Task) Op {
	return Op{Kind: OpSet, ID: task.ID, Task: task}
}

// DeleteOp builds a delete of id.
func DeleteOp(id string) Op {
	return Op{Kind: OpDelete, ID: id}
}

// Query selects a user's tasks. An empty GroupID selects every task.
// Results are ordered by deadline, then by recurring index.
type Query struct {
	UserID  string
	GroupID string
}

// TaskStore is the document store behind the planner. Each BatchCommit is
// one logical unit; implementations report what was applied when they
// cannot keep it atomic.
type TaskStore interface {
	Add(ctx context.Context, task model.Task) (string, error)
	Set(ctx context.Context, id string, task model.Task) error
	Get(ctx context.Context, id string) (model.Task, error)
	Delete(ctx context.Context, id string) error
	BatchCommit(ctx context.Context, ops []Op) error
	Query(ctx context.Context, q Query) ([]model.Task, error)
}

// PartialBatchFailure reports a batch that failed after some of its ops
// were already durable. Attempted holds every id of the batch.
type PartialBatchFailure struct {
	Attempted []string
	Applied   []string
	Err       error
}

func (e *PartialBatchFailure) Error() string {
	return fmt.Sprintf("batch failed after %d of %d writes (attempted: %s): %v",
		len(e.Applied), len(e.Attempted), strings.Join(e.Attempted, ","), e.Err)
}

func (e *PartialBatchFailure) Unwrap() error {
	return e.Err
}

func opIDs(ops []Op) []string {
	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.ID
	}
	return ids
}

var (
	_ TaskStore = (*TaskRepository)(nil)
	_ TaskStore = (*DatastoreTaskStore)(nil)
)
