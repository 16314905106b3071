package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-planner/internal/model"
)

func task(id string, deadline time.Time, completed bool) model.Task {
	return model.Task{ID: id, Deadline: deadline, Completed: completed, Tag: model.TagWork, Priority: model.PriorityMedium}
}

func ids(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestCategorizeBuckets(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2024, 6, 15, 14, 0, 0, 0, loc)
	todayStart := time.Date(2024, 6, 15, 0, 0, 0, 0, loc)

	tasks := []model.Task{
		task("future-2", todayStart.AddDate(0, 0, 3), false),
		task("expired", todayStart.Add(-time.Hour), false),
		task("today-late", todayStart.Add(23*time.Hour), true),
		task("done-old", todayStart.AddDate(0, 0, -2), true),
		task("today-start", todayStart, false),
		task("future-1", todayStart.AddDate(0, 0, 1), false),
	}

	got := Categorize(tasks, now)

	assert.Equal(t, []string{"expired"}, ids(got[BucketExpired]))
	assert.Equal(t, []string{"today-start", "today-late"}, ids(got[BucketToday]))
	assert.Equal(t, []string{"future-1", "future-2"}, ids(got[BucketFuture]))
	assert.Equal(t, []string{"done-old"}, ids(got[BucketCompleted]))
}

func TestCategorizeBoundaryIsToday(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	got := Categorize([]model.Task{task("edge", now, false)}, now)

	assert.Equal(t, []string{"edge"}, ids(got[BucketToday]))
	assert.Empty(t, got[BucketExpired])
	assert.Empty(t, got[BucketFuture])
}

func TestCategorizeEmptyInputHasAllBuckets(t *testing.T) {
	got := Categorize(nil, time.Now())
	require.Len(t, got, 4)
	for _, b := range Buckets {
		v, ok := got[b]
		assert.True(t, ok, "bucket %s missing", b)
		assert.NotNil(t, v)
		assert.Empty(t, v)
	}
}

func TestCategorizeIsPermutation(t *testing.T) {
	now := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	var tasks []model.Task
	for i := -20; i < 20; i++ {
		tasks = append(tasks, task(time.Duration(i).String(), now.Add(time.Duration(i)*7*time.Hour), i%3 == 0))
	}

	got := Categorize(tasks, now)
	assert.Equal(t, len(tasks), got.Total())

	var all []string
	for _, b := range Buckets {
		all = append(all, ids(got[b])...)
	}
	assert.ElementsMatch(t, ids(tasks), all)
}

func TestCategorizeStableAndPure(t *testing.T) {
	now := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	same := now.AddDate(0, 0, 2)
	tasks := []model.Task{
		task("b", same, false),
		task("a", same, false),
		task("c", now.AddDate(0, 0, 1), false),
	}
	before := append([]model.Task(nil), tasks...)

	first := Categorize(tasks, now)
	second := Categorize(tasks, now)

	assert.Equal(t, []string{"c", "b", "a"}, ids(first[BucketFuture]))
	assert.Equal(t, first, second)
	assert.Equal(t, before, tasks)
}

func TestDayBoundsAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata not available: %v", err)
	}
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, loc)
	start, end := DayBounds(now)

	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, loc), end)
	assert.Equal(t, 23*time.Hour, end.Sub(start))
}
