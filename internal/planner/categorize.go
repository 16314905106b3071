package planner

import (
	"sort"
	"time"

	"todo-planner/internal/model"
)

// Bucket names a deadline-relative section of the task list.
type Bucket string

const (
	BucketExpired   Bucket = "Expired"
	BucketToday     Bucket = "Today"
	BucketFuture    Bucket = "Future"
	BucketCompleted Bucket = "Completed"
)

// Buckets lists every bucket in display order.
var Buckets = []Bucket{BucketExpired, BucketToday, BucketFuture, BucketCompleted}

// Categories maps every bucket to its tasks sorted by deadline.
// All four buckets are always present.
type Categories map[Bucket][]model.Task

// Total returns the number of tasks across all buckets.
func (c Categories) Total() int {
	n := 0
	for _, tasks := range c {
		n += len(tasks)
	}
	return n
}

// DayBounds returns local midnight of now's day and of the following day,
// both in now's location.
func DayBounds(now time.Time) (todayStart, tomorrowStart time.Time) {
	year, month, day := now.Date()
	todayStart = time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	tomorrowStart = todayStart.AddDate(0, 0, 1)
	return todayStart, tomorrowStart
}

// BucketOf places a single task relative to the given day.
func BucketOf(task model.Task, todayStart, tomorrowStart time.Time) Bucket {
	switch {
	case !task.Deadline.Before(tomorrowStart):
		return BucketFuture
	case !task.Deadline.Before(todayStart):
		return BucketToday
	case task.Completed:
		return BucketCompleted
	default:
		return BucketExpired
	}
}

// Categorize partitions tasks into buckets relative to the day containing now.
// The input slice is left untouched.
func Categorize(tasks []model.Task, now time.Time) Categories {
	todayStart, tomorrowStart := DayBounds(now)

	out := make(Categories, len(Buckets))
	for _, b := range Buckets {
		out[b] = []model.Task{}
	}
	for _, task := range tasks {
		b := BucketOf(task, todayStart, tomorrowStart)
		out[b] = append(out[b], task)
	}
	for _, b := range Buckets {
		section := out[b]
		sort.SliceStable(section, func(i, j int) bool {
			return section[i].Deadline.Before(section[j].Deadline)
		})
	}
	return out
}
