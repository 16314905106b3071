package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertFromTelegram(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	first, err := repo.UpsertFromTelegram(ctx, 42, "Ann", "", "ann")
	require.NoError(t, err)
	assert.True(t, first.Anonymous)
	assert.NotEmpty(t, first.ID)

	again, err := repo.UpsertFromTelegram(ctx, 42, "Anna", "K", "ann")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	found, err := repo.FindByTelegramID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Anna", found.FirstName)

	users, err := repo.ListWithTelegram(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestAttachEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	user, err := repo.CreateAnonymous(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.AttachEmail(ctx, user.ID, "a@example.com", "hash"))
	found, err := repo.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.False(t, found.Anonymous)
	assert.Equal(t, "hash", found.PasswordHash)

	assert.ErrorIs(t, repo.AttachEmail(ctx, "missing", "b@example.com", "x"), ErrNotFound)
	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
