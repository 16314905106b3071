package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-planner/internal/model"
)

func TestTagCounts(t *testing.T) {
	svc, store := newTestService("u1")
	store.Put(
		model.Task{ID: "a", UserID: "u1", Tag: model.TagWork, Deadline: fixedNow},
		model.Task{ID: "b", UserID: "u1", Tag: model.TagWork, Deadline: fixedNow},
		model.Task{ID: "c", UserID: "u1", Tag: model.TagWork, Deadline: fixedNow, Completed: true},
		model.Task{ID: "d", UserID: "u1", Tag: model.TagPet, Deadline: fixedNow},
		model.Task{ID: "e", UserID: "u2", Tag: model.TagPet, Deadline: fixedNow},
	)

	tags := NewTagService(svc)
	counts, err := tags.Counts(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, len(model.Tags))

	byTag := map[model.Tag]int{}
	for _, c := range counts {
		byTag[c.Tag] = c.Open
	}
	assert.Equal(t, 2, byTag[model.TagWork])
	assert.Equal(t, 1, byTag[model.TagPet])
	assert.Equal(t, 0, byTag[model.TagSchool])
	assert.Equal(t, "Работа", counts[0].Label)
	assert.Equal(t, model.Tags, tags.List())
}

func TestTagLabelFallsBack(t *testing.T) {
	assert.Equal(t, "GARDEN", TagLabel("GARDEN"))
}
