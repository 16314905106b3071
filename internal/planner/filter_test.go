package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"todo-planner/internal/model"
)

func filterFixture() []model.Task {
	base := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	return []model.Task{
		{ID: "work-open", Tag: model.TagWork, Priority: model.PriorityHigh, Deadline: base},
		{ID: "work-done", Tag: model.TagWork, Priority: model.PriorityLow, Deadline: base.AddDate(0, 0, 1), Completed: true},
		{ID: "home-open", Tag: model.TagHome, Priority: model.PriorityMedium, Deadline: base.AddDate(0, 0, 2)},
		{ID: "pet-open", Tag: model.TagPet, Priority: model.PriorityHigh, Deadline: base.AddDate(0, 0, 5)},
		{ID: "work-late", Tag: model.TagWork, Priority: model.PriorityMedium, Deadline: base.AddDate(0, 0, 10)},
	}
}

func TestApplyZeroSpecMatchesAll(t *testing.T) {
	tasks := filterFixture()
	assert.True(t, FilterSpec{}.IsZero())
	assert.Equal(t, tasks, Apply(tasks, FilterSpec{}))
}

func TestApplyConjunction(t *testing.T) {
	got := Apply(filterFixture(), FilterSpec{Tags: []model.Tag{model.TagWork}, HideCompleted: true})
	assert.Equal(t, []string{"work-open", "work-late"}, ids(got))
}

func TestApplyEmptyTagsIsNoTagFilter(t *testing.T) {
	tasks := filterFixture()
	withEmpty := Apply(tasks, FilterSpec{Tags: []model.Tag{}, HideCompleted: true})
	without := Apply(tasks, FilterSpec{HideCompleted: true})
	assert.Equal(t, without, withEmpty)
}

func TestApplyPriorities(t *testing.T) {
	got := Apply(filterFixture(), FilterSpec{Priorities: []model.Priority{model.PriorityHigh, model.PriorityLow}})
	assert.Equal(t, []string{"work-open", "work-done", "pet-open"}, ids(got))
}

func TestApplyDateRangeInclusiveByDay(t *testing.T) {
	spec := FilterSpec{DateRange: &DateRange{
		Start: time.Date(2024, 4, 11, 23, 59, 0, 0, time.UTC),
		End:   time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
	}}
	got := Apply(filterFixture(), spec)
	assert.Equal(t, []string{"work-done", "home-open", "pet-open"}, ids(got))
}

func TestApplyDateRangeUsesObserverZone(t *testing.T) {
	// 22:30 UTC on the 10th is already the 11th in UTC+3.
	tasks := []model.Task{{ID: "late", Deadline: time.Date(2024, 4, 10, 22, 30, 0, 0, time.UTC)}}
	loc := time.FixedZone("UTC+3", 3*60*60)
	day := time.Date(2024, 4, 11, 0, 0, 0, 0, loc)

	got := Apply(tasks, FilterSpec{DateRange: &DateRange{Start: day, End: day}})
	assert.Equal(t, []string{"late"}, ids(got))

	utcDay := time.Date(2024, 4, 11, 0, 0, 0, 0, time.UTC)
	got = Apply(tasks, FilterSpec{DateRange: &DateRange{Start: utcDay, End: utcDay}})
	assert.Empty(t, got)
}

func TestApplyHalfOpenDateRangeIgnored(t *testing.T) {
	tasks := filterFixture()
	spec := FilterSpec{DateRange: &DateRange{Start: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}}
	assert.True(t, spec.IsZero())
	assert.Equal(t, tasks, Apply(tasks, spec))
}

func TestApplyIdempotent(t *testing.T) {
	tasks := filterFixture()
	spec := FilterSpec{Tags: []model.Tag{model.TagWork, model.TagPet}, HideCompleted: true}
	assert.Equal(t, Apply(tasks, spec), Apply(tasks, spec))
}
