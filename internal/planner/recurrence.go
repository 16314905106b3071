package planner

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"todo-planner/internal/model"
)

// recurrencePolicy describes how a pattern is expanded: how many children
// follow the parent and where the n-th instance falls relative to the seed.
type recurrencePolicy struct {
	children int
	shift    func(seed time.Time, n int) time.Time
}

var policies = map[model.Recurrence]recurrencePolicy{
	model.RecurrenceDaily: {
		children: 7,
		shift:    func(seed time.Time, n int) time.Time { return seed.AddDate(0, 0, n) },
	},
	model.RecurrenceWeekly: {
		children: 4,
		shift:    func(seed time.Time, n int) time.Time { return seed.AddDate(0, 0, 7*n) },
	},
	model.RecurrenceMonthly: {
		children: 3,
		shift:    func(seed time.Time, n int) time.Time { return addMonthsClamped(seed, n) },
	},
	model.RecurrenceYearly: {
		children: 1,
		shift:    func(seed time.Time, n int) time.Time { return addMonthsClamped(seed, 12*n) },
	},
}

// ChildCount returns how many instances are generated after the parent
// for the given pattern.
func ChildCount(r model.Recurrence) (int, bool) {
	p, ok := policies[r]
	if !ok {
		return 0, false
	}
	return p.children, true
}

// Expander turns a seed task into the full list of instances of a series.
type Expander struct {
	newID func() string
}

// ExpanderOption customises an Expander.
type ExpanderOption func(*Expander)

// WithIDGenerator replaces the uuid generator, mostly for tests.
func WithIDGenerator(fn func() string) ExpanderOption {
	return func(e *Expander) {
		e.newID = fn
	}
}

func NewExpander(opts ...ExpanderOption) *Expander {
	e := &Expander{newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand produces the parent and its children. Instance i has index i and a
// deadline i units after the seed. If groupID is empty a new one is generated.
func (e *Expander) Expand(seed model.Task, groupID string) ([]model.Task, error) {
	if seed.Recurrence == nil {
		return nil, fmt.Errorf("%w: recurrence is not set", ErrInvalidRecurrenceInput)
	}
	if seed.Deadline.IsZero() {
		return nil, fmt.Errorf("%w: deadline is not set", ErrInvalidRecurrenceInput)
	}
	policy, ok := policies[*seed.Recurrence]
	if !ok {
		return nil, fmt.Errorf("%w: unknown pattern %q", ErrInvalidRecurrenceInput, *seed.Recurrence)
	}

	pattern := *seed.Recurrence
	instances := make([]model.Task, 0, policy.children+1)
	for i := 0; i <= policy.children; i++ {
		inst := seed
		inst.ID = e.newID()
		inst.Deadline = policy.shift(seed.Deadline, i)
		inst.Recurring = &model.RecurringInfo{
			IsParent: i == 0,
			Index:    i,
		}
		if i == 0 {
			p := pattern
			inst.Recurrence = &p
		} else {
			inst.Recurrence = nil
		}
		instances = append(instances, inst)
	}
	if groupID == "" {
		groupID = e.newID()
	}
	for i := range instances {
		instances[i].Recurring.GroupID = groupID
	}
	return instances, nil
}

// addMonthsClamped moves t by n calendar months keeping the wall clock.
// When the day does not exist in the target month the last day is used,
// so Jan 31 + 1 month is Feb 28 (or 29), never Mar 2.
func addMonthsClamped(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()
	first := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(first.Month(), first.Year()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(month time.Month, year int) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
