package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"todo-planner/internal/auth"
	"todo-planner/internal/logger"
	"todo-planner/internal/model"
	"todo-planner/internal/planner"
	"todo-planner/internal/repository"
)

var (
	// ErrUnauthenticated is returned when no user is signed in.
	ErrUnauthenticated = errors.New("not signed in")
	ErrInvalidTask     = errors.New("invalid task")
	ErrAmbiguousRef    = errors.New("ambiguous task reference")
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Name        string
	Description string
	Deadline    time.Time
	Priority    model.Priority
	Tag         model.Tag
	Recurrence  *model.Recurrence
}

// TaskService wraps task-related business logic.
type TaskService struct {
	store       repository.TaskStore
	auth        auth.Provider
	expander    *planner.Expander
	coordinator *planner.Coordinator
	now         func() time.Time
}

// TaskServiceOption customises a TaskService.
type TaskServiceOption func(*TaskService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TaskServiceOption {
	return func(s *TaskService) { s.now = now }
}

// WithExpander replaces the default series expander.
func WithExpander(e *planner.Expander) TaskServiceOption {
	return func(s *TaskService) { s.expander = e }
}

func NewTaskService(store repository.TaskStore, provider auth.Provider, opts ...TaskServiceOption) *TaskService {
	s := &TaskService{
		store:    store,
		auth:     provider,
		expander: planner.NewExpander(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.coordinator = planner.NewCoordinator(s.now)
	return s
}

// logFor returns the request logger carried by ctx tagged with the service name.
func (s *TaskService) logFor(ctx context.Context) *zerolog.Logger {
	l := logger.Ctx(ctx).With().Str("component", "tasks").Logger()
	return &l
}

func (s *TaskService) currentUser(ctx context.Context) (string, error) {
	userID, ok := s.auth.CurrentUserID(ctx)
	if !ok {
		return "", ErrUnauthenticated
	}
	return userID, nil
}

// CreateTask stores a standalone task or a whole recurring series. A series
// is written in one batch; whatever part of it landed before a failure is
// removed again.
func (s *TaskService) CreateTask(ctx context.Context, input TaskInput) ([]model.Task, error) {
	userID, err := s.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := s.now()
	seed := model.Task{
		UserID:      userID,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Deadline:    input.Deadline,
		Priority:    input.Priority,
		Tag:         input.Tag,
		Recurrence:  input.Recurrence,
		CreatedAt:   now,
		ModifiedAt:  now,
	}

	if seed.Recurrence == nil {
		id, err := s.store.Add(ctx, seed)
		if err != nil {
			return nil, fmt.Errorf("add task: %w", err)
		}
		seed.ID = id
		s.logFor(ctx).Info().Str("user", userID).Str("task", id).Msg("task created")
		return []model.Task{seed}, nil
	}

	instances, err := s.expander.Expand(seed, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	ops := make([]repository.Op, len(instances))
	for i, inst := range instances {
		ops[i] = repository.SetOp(inst)
	}
	if err := s.store.BatchCommit(ctx, ops); err != nil {
		s.compensate(ctx, err, func(id string) repository.Op { return repository.DeleteOp(id) })
		return nil, fmt.Errorf("create series: %w", err)
	}
	s.logFor(ctx).Info().
		Str("user", userID).
		Str("group", instances[0].GroupID()).
		Int("instances", len(instances)).
		Msg("series created")
	return instances, nil
}

func validateInput(input TaskInput) error {
	switch {
	case strings.TrimSpace(input.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidTask)
	case input.Deadline.IsZero():
		return fmt.Errorf("%w: deadline is required", ErrInvalidTask)
	case !input.Priority.Valid():
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, input.Priority)
	case !input.Tag.Valid():
		return fmt.Errorf("%w: unknown tag %q", ErrInvalidTask, input.Tag)
	}
	if input.Recurrence != nil {
		if _, ok := planner.ChildCount(*input.Recurrence); !ok {
			return fmt.Errorf("%w: unknown recurrence %q", ErrInvalidTask, *input.Recurrence)
		}
	}
	return nil
}

// ListTasks returns every task of the signed-in user ordered by deadline.
func (s *TaskService) ListTasks(ctx context.Context) ([]model.Task, error) {
	userID, err := s.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.Query(ctx, repository.Query{UserID: userID})
}

// Categorized splits the user's tasks into the Expired, Today, Future and
// Completed buckets relative to now.
func (s *TaskService) Categorized(ctx context.Context, now time.Time) (planner.Categories, error) {
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	return planner.Categorize(tasks, now), nil
}

// Filtered returns the user's tasks matching spec.
func (s *TaskService) Filtered(ctx context.Context, spec planner.FilterSpec) ([]model.Task, error) {
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	return planner.Apply(tasks, spec), nil
}

// GetTask loads a task owned by the signed-in user.
func (s *TaskService) GetTask(ctx context.Context, id string) (model.Task, error) {
	userID, err := s.currentUser(ctx)
	if err != nil {
		return model.Task{}, err
	}
	task, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	if task.UserID != userID {
		return model.Task{}, fmt.Errorf("%w: task %s", planner.ErrOwnershipViolation, id)
	}
	return task, nil
}

// ResolveRef finds a task by its full id or by a unique id prefix.
func (s *TaskService) ResolveRef(ctx context.Context, ref string) (model.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Task{}, fmt.Errorf("%w: empty reference", ErrInvalidTask)
	}
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return model.Task{}, err
	}
	var matches []model.Task
	for _, task := range tasks {
		if task.ID == ref {
			return task, nil
		}
		if strings.HasPrefix(task.ID, ref) {
			matches = append(matches, task)
		}
	}
	switch len(matches) {
	case 0:
		return model.Task{}, fmt.Errorf("task %q: %w", ref, repository.ErrNotFound)
	case 1:
		return matches[0], nil
	}
	return model.Task{}, fmt.Errorf("%w: %q matches %d tasks", ErrAmbiguousRef, ref, len(matches))
}

// ScopeChoice tells the caller whether op on id needs a scope decision.
func (s *TaskService) ScopeChoice(ctx context.Context, id string, op planner.Operation) (planner.Pending, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return planner.Pending{}, err
	}
	return s.coordinator.Begin(planner.Request{Op: op, Target: task}), nil
}

// CompleteTask marks a single instance done. Other instances of its series
// are left alone.
func (s *TaskService) CompleteTask(ctx context.Context, id string, completed bool) (model.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	edit := task
	edit.Completed = completed
	res, err := s.mutate(ctx, planner.Request{Op: planner.OpUpdate, Target: task, Edit: edit}, planner.ScopeSingle)
	if err != nil {
		return model.Task{}, err
	}
	return res.Writes[0], nil
}

// UpdateTask applies edit to id and, for a series, to the instances scope
// selects. Name and description are always taken from edit; empty priority,
// tag and zero deadline keep the stored values.
func (s *TaskService) UpdateTask(ctx context.Context, id string, edit model.Task, scope planner.Scope) (planner.Resolution, error) {
	if strings.TrimSpace(edit.Name) == "" {
		return planner.Resolution{}, fmt.Errorf("%w: name is required", ErrInvalidTask)
	}
	if edit.Priority != "" && !edit.Priority.Valid() {
		return planner.Resolution{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, edit.Priority)
	}
	if edit.Tag != "" && !edit.Tag.Valid() {
		return planner.Resolution{}, fmt.Errorf("%w: unknown tag %q", ErrInvalidTask, edit.Tag)
	}
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return planner.Resolution{}, err
	}
	edit.Name = strings.TrimSpace(edit.Name)
	edit.Description = strings.TrimSpace(edit.Description)
	return s.mutate(ctx, planner.Request{Op: planner.OpUpdate, Target: task, Edit: edit}, scope)
}

// DeleteTask removes id and, for a series, the instances scope selects.
func (s *TaskService) DeleteTask(ctx context.Context, id string, scope planner.Scope) (planner.Resolution, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return planner.Resolution{}, err
	}
	return s.mutate(ctx, planner.Request{Op: planner.OpDelete, Target: task}, scope)
}

// mutate resolves req against a fresh snapshot of the target's series and
// commits the outcome as one batch.
func (s *TaskService) mutate(ctx context.Context, req planner.Request, scope planner.Scope) (planner.Resolution, error) {
	userID, err := s.currentUser(ctx)
	if err != nil {
		return planner.Resolution{}, err
	}

	var snapshot []model.Task
	if req.Target.InGroup() {
		snapshot, err = s.store.Query(ctx, repository.Query{UserID: userID, GroupID: req.Target.GroupID()})
		if err != nil {
			return planner.Resolution{}, fmt.Errorf("load series: %w", err)
		}
	}

	res := s.coordinator.Resolve(req, scope, snapshot, userID)
	if err := res.Err(); err != nil {
		s.logFor(ctx).Warn().Str("user", userID).Str("task", req.Target.ID).Str("op", req.Op.String()).Msg(res.Reason)
		return res, err
	}

	ops := make([]repository.Op, 0, len(res.Writes)+len(res.Deletes))
	for _, task := range res.Writes {
		ops = append(ops, repository.SetOp(task))
	}
	for _, id := range res.Deletes {
		ops = append(ops, repository.DeleteOp(id))
	}

	if err := s.store.BatchCommit(ctx, ops); err != nil {
		previous := make(map[string]model.Task, len(snapshot)+1)
		previous[req.Target.ID] = req.Target
		for _, task := range snapshot {
			previous[task.ID] = task
		}
		s.compensate(ctx, err, func(id string) repository.Op { return repository.SetOp(previous[id]) })
		return planner.Resolution{}, fmt.Errorf("%s %s: %w", req.Op, scope, err)
	}

	s.logFor(ctx).Info().
		Str("user", userID).
		Str("op", req.Op.String()).
		Str("scope", scope.String()).
		Strs("affected", res.Affected).
		Msg("tasks changed")
	return res, nil
}

// compensate reverses the writes a failed batch managed to apply.
func (s *TaskService) compensate(ctx context.Context, err error, undo func(id string) repository.Op) {
	var partial *repository.PartialBatchFailure
	if !errors.As(err, &partial) || len(partial.Applied) == 0 {
		return
	}
	ops := make([]repository.Op, len(partial.Applied))
	for i, id := range partial.Applied {
		ops[i] = undo(id)
	}
	if cerr := s.store.BatchCommit(ctx, ops); cerr != nil {
		s.logFor(ctx).Error().Err(cerr).Strs("ids", partial.Applied).Msg("compensation failed")
		return
	}
	s.logFor(ctx).Warn().Strs("ids", partial.Applied).Msg("partial batch reverted")
}
