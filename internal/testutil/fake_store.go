// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"todo-planner/internal/model"
	"todo-planner/internal/repository"
)

// ErrInjected is the error returned by injected failures.
var ErrInjected = errors.New("injected failure")

// FakeStore is an in-memory implementation of repository.TaskStore for testing.
type FakeStore struct {
	mu    sync.RWMutex
	tasks map[string]model.Task

	// Batches records every BatchCommit call in order.
	Batches [][]repository.Op

	// Error injection for testing
	AddErr   error
	GetErr   error
	QueryErr error
	// FailBatchAfter makes the next BatchCommit apply only the first n ops
	// and then fail with a PartialBatchFailure. Negative disables it.
	FailBatchAfter int
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{tasks: make(map[string]model.Task), FailBatchAfter: -1}
}

// Put stores task directly, bypassing injection and recording.
func (f *FakeStore) Put(tasks ...model.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, task := range tasks {
		f.tasks[task.ID] = task
	}
}

// All returns every stored task ordered by id.
func (f *FakeStore) All() []model.Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]model.Task, 0, len(f.tasks))
	for _, task := range f.tasks {
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Add implements repository.TaskStore.
func (f *FakeStore) Add(ctx context.Context, task model.Task) (string, error) {
	if f.AddErr != nil {
		return "", f.AddErr
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	f.Put(task)
	return task.ID, nil
}

// Set implements repository.TaskStore.
func (f *FakeStore) Set(ctx context.Context, id string, task model.Task) error {
	task.ID = id
	f.Put(task)
	return nil
}

// Get implements repository.TaskStore.
func (f *FakeStore) Get(ctx context.Context, id string) (model.Task, error) {
	if f.GetErr != nil {
		return model.Task{}, f.GetErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	task, ok := f.tasks[id]
	if !ok {
		return model.Task{}, repository.ErrNotFound
	}
	return task, nil
}

// Delete implements repository.TaskStore.
func (f *FakeStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

// BatchCommit implements repository.TaskStore.
func (f *FakeStore) BatchCommit(ctx context.Context, ops []repository.Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Batches = append(f.Batches, append([]repository.Op(nil), ops...))

	limit := len(ops)
	failing := f.FailBatchAfter >= 0
	if failing {
		if f.FailBatchAfter < limit {
			limit = f.FailBatchAfter
		}
		f.FailBatchAfter = -1
	}

	var applied []string
	for _, op := range ops[:limit] {
		switch op.Kind {
		case repository.OpSet:
			f.tasks[op.ID] = op.Task
		case repository.OpDelete:
			delete(f.tasks, op.ID)
		default:
			return fmt.Errorf("unknown op kind %d", op.Kind)
		}
		applied = append(applied, op.ID)
	}

	if failing {
		attempted := make([]string, len(ops))
		for i, op := range ops {
			attempted[i] = op.ID
		}
		return &repository.PartialBatchFailure{Attempted: attempted, Applied: applied, Err: ErrInjected}
	}
	return nil
}

// Query implements repository.TaskStore.
func (f *FakeStore) Query(ctx context.Context, q repository.Query) ([]model.Task, error) {
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []model.Task
	for _, task := range f.tasks {
		if task.UserID != q.UserID {
			continue
		}
		if q.GroupID != "" && task.GroupID() != q.GroupID {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Deadline.Equal(out[j].Deadline) {
			return out[i].Deadline.Before(out[j].Deadline)
		}
		if out[i].RecurringIndex() != out[j].RecurringIndex() {
			return out[i].RecurringIndex() < out[j].RecurringIndex()
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

var _ repository.TaskStore = (*FakeStore)(nil)
