package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-planner/internal/auth"
	"todo-planner/internal/model"
	"todo-planner/internal/planner"
	"todo-planner/internal/repository"
	"todo-planner/internal/testutil"
)

var fixedNow = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func newTestService(user string) (*TaskService, *testutil.FakeStore) {
	store := testutil.NewFakeStore()
	n := 0
	ids := func() string {
		n++
		return fmt.Sprintf("task-%d", n)
	}
	svc := NewTaskService(store, auth.Static(user),
		WithClock(func() time.Time { return fixedNow }),
		WithExpander(planner.NewExpander(planner.WithIDGenerator(ids))),
	)
	return svc, store
}

func gymInput(r *model.Recurrence) TaskInput {
	return TaskInput{
		Name:       " Gym ",
		Deadline:   time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC),
		Priority:   model.PriorityHigh,
		Tag:        model.TagSport,
		Recurrence: r,
	}
}

func weekly() *model.Recurrence {
	r := model.RecurrenceWeekly
	return &r
}

func createSeries(t *testing.T, svc *TaskService) []model.Task {
	t.Helper()
	tasks, err := svc.CreateTask(context.Background(), gymInput(weekly()))
	require.NoError(t, err)
	require.Len(t, tasks, 5)
	return tasks
}

func TestCreateTaskRequiresUser(t *testing.T) {
	svc, _ := newTestService("")
	_, err := svc.CreateTask(context.Background(), gymInput(nil))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.ListTasks(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCreateStandaloneTask(t *testing.T) {
	svc, store := newTestService("u1")

	tasks, err := svc.CreateTask(context.Background(), gymInput(nil))
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	got := tasks[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "Gym", got.Name)
	assert.Nil(t, got.Recurring)
	assert.Equal(t, fixedNow, got.CreatedAt)
	assert.Empty(t, store.Batches)
	assert.Len(t, store.All(), 1)
}

func TestCreateTaskValidation(t *testing.T) {
	svc, store := newTestService("u1")
	ctx := context.Background()

	cases := map[string]func(*TaskInput){
		"empty name":       func(in *TaskInput) { in.Name = "  " },
		"missing deadline": func(in *TaskInput) { in.Deadline = time.Time{} },
		"bad priority":     func(in *TaskInput) { in.Priority = "URGENT" },
		"bad tag":          func(in *TaskInput) { in.Tag = "GARDEN" },
		"bad recurrence": func(in *TaskInput) {
			r := model.Recurrence("HOURLY")
			in.Recurrence = &r
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := gymInput(nil)
			mutate(&in)
			_, err := svc.CreateTask(ctx, in)
			assert.ErrorIs(t, err, ErrInvalidTask)
		})
	}
	assert.Empty(t, store.All())
}

func TestCreateSeriesIsOneBatch(t *testing.T) {
	svc, store := newTestService("u1")
	tasks := createSeries(t, svc)

	require.Len(t, store.Batches, 1)
	assert.Len(t, store.Batches[0], 5)

	group := tasks[0].GroupID()
	for i, task := range tasks {
		assert.Equal(t, fmt.Sprintf("task-%d", i+1), task.ID)
		assert.Equal(t, group, task.GroupID())
		assert.Equal(t, i, task.RecurringIndex())
	}
	assert.True(t, tasks[0].IsRecurringParent())
	assert.Equal(t, time.Date(2024, 1, 29, 18, 0, 0, 0, time.UTC), tasks[4].Deadline)
}

func TestCreateSeriesRevertsPartialBatch(t *testing.T) {
	svc, store := newTestService("u1")
	store.FailBatchAfter = 2

	_, err := svc.CreateTask(context.Background(), gymInput(weekly()))
	require.Error(t, err)
	assert.ErrorIs(t, err, testutil.ErrInjected)

	require.Len(t, store.Batches, 2)
	compensation := store.Batches[1]
	require.Len(t, compensation, 2)
	for _, op := range compensation {
		assert.Equal(t, repository.OpDelete, op.Kind)
	}
	assert.Empty(t, store.All())
}

func TestListTasksOnlyOwn(t *testing.T) {
	svc, store := newTestService("u1")
	store.Put(model.Task{ID: "foreign", UserID: "u2", Name: "x", Deadline: fixedNow})
	createSeries(t, svc)

	tasks, err := svc.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, 5)
	for _, task := range tasks {
		assert.Equal(t, "u1", task.UserID)
	}
}

func TestGetTaskOwnership(t *testing.T) {
	svc, store := newTestService("u1")
	store.Put(model.Task{ID: "foreign", UserID: "u2", Name: "x", Deadline: fixedNow})

	_, err := svc.GetTask(context.Background(), "foreign")
	assert.ErrorIs(t, err, planner.ErrOwnershipViolation)

	_, err = svc.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.DeleteTask(context.Background(), "foreign", planner.ScopeSingle)
	assert.ErrorIs(t, err, planner.ErrOwnershipViolation)
	assert.Len(t, store.All(), 1)
}

func TestResolveRef(t *testing.T) {
	svc, store := newTestService("u1")
	store.Put(
		model.Task{ID: "abc123", UserID: "u1", Name: "a", Deadline: fixedNow},
		model.Task{ID: "abd456", UserID: "u1", Name: "b", Deadline: fixedNow},
		model.Task{ID: "zzz", UserID: "u2", Name: "c", Deadline: fixedNow},
	)
	ctx := context.Background()

	got, err := svc.ResolveRef(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.ID)

	got, err = svc.ResolveRef(ctx, "abd456")
	require.NoError(t, err)
	assert.Equal(t, "abd456", got.ID)

	_, err = svc.ResolveRef(ctx, "ab")
	assert.ErrorIs(t, err, ErrAmbiguousRef)

	_, err = svc.ResolveRef(ctx, "zzz")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestScopeChoice(t *testing.T) {
	svc, _ := newTestService("u1")
	ctx := context.Background()
	series := createSeries(t, svc)
	single, err := svc.CreateTask(ctx, gymInput(nil))
	require.NoError(t, err)

	pending, err := svc.ScopeChoice(ctx, single[0].ID, planner.OpDelete)
	require.NoError(t, err)
	assert.False(t, pending.NeedsChoice())

	pending, err = svc.ScopeChoice(ctx, series[1].ID, planner.OpUpdate)
	require.NoError(t, err)
	assert.True(t, pending.NeedsChoice())
	assert.Equal(t, planner.ScopeFuture, pending.Default)
}

func TestCompleteTaskTouchesOneInstance(t *testing.T) {
	svc, store := newTestService("u1")
	series := createSeries(t, svc)

	done, err := svc.CompleteTask(context.Background(), series[2].ID, true)
	require.NoError(t, err)
	assert.True(t, done.Completed)

	for _, task := range store.All() {
		assert.Equal(t, task.ID == series[2].ID, task.Completed, task.ID)
	}
}

func TestUpdateTaskFutureScope(t *testing.T) {
	svc, store := newTestService("u1")
	series := createSeries(t, svc)

	edit := series[2]
	edit.Name = "Swim"
	res, err := svc.UpdateTask(context.Background(), series[2].ID, edit, planner.ScopeFuture)
	require.NoError(t, err)
	assert.Equal(t, planner.StateAppliedToFutureOnly, res.State)
	assert.Equal(t, []string{"task-3", "task-4", "task-5"}, res.Affected)

	names := map[string]string{}
	for _, task := range store.All() {
		names[task.ID] = task.Name
	}
	assert.Equal(t, map[string]string{
		"task-1": "Gym", "task-2": "Gym", "task-3": "Swim", "task-4": "Swim", "task-5": "Swim",
	}, names)
}

func TestUpdateTaskRejectsEmptyName(t *testing.T) {
	svc, _ := newTestService("u1")
	series := createSeries(t, svc)

	edit := series[0]
	edit.Name = ""
	_, err := svc.UpdateTask(context.Background(), series[0].ID, edit, planner.ScopeAll)
	assert.ErrorIs(t, err, ErrInvalidTask)
}

func TestDeleteTaskScopes(t *testing.T) {
	svc, store := newTestService("u1")
	ctx := context.Background()
	series := createSeries(t, svc)

	_, err := svc.DeleteTask(ctx, series[0].ID, planner.ScopeSingle)
	assert.ErrorIs(t, err, planner.ErrInvalidScope)

	res, err := svc.DeleteTask(ctx, series[3].ID, planner.ScopeSingle)
	require.NoError(t, err)
	assert.Equal(t, planner.StateAppliedToOne, res.State)
	assert.Len(t, store.All(), 4)

	res, err = svc.DeleteTask(ctx, series[1].ID, planner.ScopeAll)
	require.NoError(t, err)
	assert.True(t, res.GroupEmptied)
	assert.Empty(t, store.All())
}

func TestDeleteTaskRestoresPartialBatch(t *testing.T) {
	svc, store := newTestService("u1")
	series := createSeries(t, svc)
	store.FailBatchAfter = 3

	_, err := svc.DeleteTask(context.Background(), series[0].ID, planner.ScopeAll)
	require.Error(t, err)

	assert.Len(t, store.All(), 5)
	assert.Equal(t, series, store.All())
}

func TestCategorizedAndFiltered(t *testing.T) {
	svc, store := newTestService("u1")
	store.Put(
		model.Task{ID: "old", UserID: "u1", Name: "old", Deadline: fixedNow.AddDate(0, 0, -1), Tag: model.TagHome, Priority: model.PriorityLow},
		model.Task{ID: "now", UserID: "u1", Name: "now", Deadline: fixedNow.Add(time.Hour), Tag: model.TagWork, Priority: model.PriorityHigh},
		model.Task{ID: "done", UserID: "u1", Name: "done", Deadline: fixedNow.AddDate(0, 0, -2), Completed: true, Tag: model.TagWork, Priority: model.PriorityLow},
	)
	ctx := context.Background()

	cats, err := svc.Categorized(ctx, fixedNow)
	require.NoError(t, err)
	assert.Len(t, cats[planner.BucketExpired], 1)
	assert.Len(t, cats[planner.BucketToday], 1)
	assert.Len(t, cats[planner.BucketCompleted], 1)
	assert.Empty(t, cats[planner.BucketFuture])

	got, err := svc.Filtered(ctx, planner.FilterSpec{Tags: []model.Tag{model.TagWork}, HideCompleted: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "now", got[0].ID)
}

func TestTaskServiceLogsThroughRequestLogger(t *testing.T) {
	svc, _ := newTestService("u1")
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).With().Int64("chat", 42).Logger().WithContext(context.Background())

	_, err := svc.CreateTask(ctx, gymInput(nil))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, float64(42), entry["chat"])
	assert.Equal(t, "tasks", entry["component"])
	assert.Equal(t, "task created", entry["message"])
}
