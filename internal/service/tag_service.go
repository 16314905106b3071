package service

import (
	"context"

	"todo-planner/internal/model"
)

var tagLabels = map[model.Tag]string{
	model.TagWork:      "Работа",
	model.TagSchool:    "Учёба",
	model.TagSport:     "Спорт",
	model.TagTransport: "Транспорт",
	model.TagPet:       "Питомцы",
	model.TagHome:      "Дом",
	model.TagPrivate:   "Личное",
	model.TagSocial:    "Общение",
}

// TagLabel returns the display name of t.
func TagLabel(t model.Tag) string {
	if label, ok := tagLabels[t]; ok {
		return label
	}
	return string(t)
}

// TagCount is the number of open tasks carrying a tag.
type TagCount struct {
	Tag   model.Tag
	Label string
	Open  int
}

// TagService provides helpers around tags.
type TagService struct {
	tasks *TaskService
}

func NewTagService(tasks *TaskService) *TagService {
	return &TagService{tasks: tasks}
}

// List returns every tag in display order.
func (s *TagService) List() []model.Tag {
	return append([]model.Tag(nil), model.Tags...)
}

// Counts returns the open task count for every tag, zeros included.
func (s *TagService) Counts(ctx context.Context) ([]TagCount, error) {
	tasks, err := s.tasks.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	open := make(map[model.Tag]int, len(model.Tags))
	for _, task := range tasks {
		if !task.Completed {
			open[task.Tag]++
		}
	}
	out := make([]TagCount, len(model.Tags))
	for i, tag := range model.Tags {
		out[i] = TagCount{Tag: tag, Label: TagLabel(tag), Open: open[tag]}
	}
	return out, nil
}
