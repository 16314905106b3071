package planner

import (
	"time"

	"todo-planner/internal/model"
)

// DateRange selects deadlines by calendar date, both ends inclusive.
// Dates are compared in the location of Start, which is taken as the
// observer's zone.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// FilterSpec is a conjunction of optional predicates. The zero value
// matches every task.
type FilterSpec struct {
	DateRange *DateRange
	// Tags and Priorities are sets; empty means any.
	Tags          []model.Tag
	Priorities    []model.Priority
	HideCompleted bool
}

// IsZero reports whether no predicate is active.
func (f FilterSpec) IsZero() bool {
	return !f.hasDateRange() && len(f.Tags) == 0 && len(f.Priorities) == 0 && !f.HideCompleted
}

func (f FilterSpec) hasDateRange() bool {
	return f.DateRange != nil && !f.DateRange.Start.IsZero() && !f.DateRange.End.IsZero()
}

// Apply returns the tasks matching every predicate of spec, in input order.
func Apply(tasks []model.Task, spec FilterSpec) []model.Task {
	m := newMatcher(spec)
	out := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if m.match(task) {
			out = append(out, task)
		}
	}
	return out
}

type matcher struct {
	spec       FilterSpec
	loc        *time.Location
	from, to   int
	tags       map[model.Tag]struct{}
	priorities map[model.Priority]struct{}
}

func newMatcher(spec FilterSpec) matcher {
	m := matcher{spec: spec}
	if spec.hasDateRange() {
		m.loc = spec.DateRange.Start.Location()
		m.from = dateKey(spec.DateRange.Start, m.loc)
		m.to = dateKey(spec.DateRange.End, m.loc)
	}
	if len(spec.Tags) > 0 {
		m.tags = make(map[model.Tag]struct{}, len(spec.Tags))
		for _, t := range spec.Tags {
			m.tags[t] = struct{}{}
		}
	}
	if len(spec.Priorities) > 0 {
		m.priorities = make(map[model.Priority]struct{}, len(spec.Priorities))
		for _, p := range spec.Priorities {
			m.priorities[p] = struct{}{}
		}
	}
	return m
}

func (m matcher) match(task model.Task) bool {
	if m.spec.HideCompleted && task.Completed {
		return false
	}
	if m.tags != nil {
		if _, ok := m.tags[task.Tag]; !ok {
			return false
		}
	}
	if m.priorities != nil {
		if _, ok := m.priorities[task.Priority]; !ok {
			return false
		}
	}
	if m.loc != nil {
		d := dateKey(task.Deadline, m.loc)
		if d < m.from || d > m.to {
			return false
		}
	}
	return true
}

// dateKey folds the calendar date of t in loc into a sortable yyyymmdd int.
func dateKey(t time.Time, loc *time.Location) int {
	year, month, day := t.In(loc).Date()
	return year*10000 + int(month)*100 + day
}
