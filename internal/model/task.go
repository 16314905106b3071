package model

import "time"

// Priority ranks a task.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Priorities lists every priority from most to least urgent.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Tag groups tasks by area of life.
type Tag string

const (
	TagWork      Tag = "WORK"
	TagSchool    Tag = "SCHOOL"
	TagSport     Tag = "SPORT"
	TagTransport Tag = "TRANSPORT"
	TagPet       Tag = "PET"
	TagHome      Tag = "HOME"
	TagPrivate   Tag = "PRIVATE"
	TagSocial    Tag = "SOCIAL"
)

// Tags lists every tag in display order.
var Tags = []Tag{TagWork, TagSchool, TagSport, TagTransport, TagPet, TagHome, TagPrivate, TagSocial}

// Valid reports whether t is a known tag.
func (t Tag) Valid() bool {
	for _, known := range Tags {
		if t == known {
			return true
		}
	}
	return false
}

// Recurrence is the repeat pattern of a recurring series.
type Recurrence string

const (
	RecurrenceDaily   Recurrence = "DAILY"
	RecurrenceWeekly  Recurrence = "WEEKLY"
	RecurrenceMonthly Recurrence = "MONTHLY"
	RecurrenceYearly  Recurrence = "YEARLY"
)

// RecurringInfo links a task to its recurring series.
// A standalone task carries no RecurringInfo at all.
type RecurringInfo struct {
	GroupID  string
	IsParent bool
	Index    int
}

// Task represents a single item in the planner.
type Task struct {
	ID          string
	UserID      string
	Name        string
	Description string
	Deadline    time.Time
	Priority    Priority
	Tag         Tag
	Completed   bool
	// Recurrence is set only on the parent of a series.
	Recurrence *Recurrence
	Recurring  *RecurringInfo
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// GroupID returns the recurring group id, or "" for standalone tasks.
func (t Task) GroupID() string {
	if t.Recurring == nil {
		return ""
	}
	return t.Recurring.GroupID
}

// InGroup reports whether the task belongs to a recurring series.
func (t Task) InGroup() bool {
	return t.Recurring != nil && t.Recurring.GroupID != ""
}

// RecurringIndex returns the position inside the series (0 for standalone tasks).
func (t Task) RecurringIndex() int {
	if t.Recurring == nil {
		return 0
	}
	return t.Recurring.Index
}

// IsRecurringParent reports whether the task is the authored instance of its series.
func (t Task) IsRecurringParent() bool {
	return t.Recurring != nil && t.Recurring.IsParent
}
