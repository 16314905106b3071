package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-planner/internal/repository"
)

func newSessions(t *testing.T) *Sessions {
	t.Helper()
	db, err := repository.NewDB("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewSessions(repository.NewUserRepository(db))
}

func TestCurrentUserIDNeedsSession(t *testing.T) {
	s := newSessions(t)
	_, ok := s.CurrentUserID(context.Background())
	assert.False(t, ok)

	_, ok = s.CurrentUserID(WithSession(context.Background(), "chat-1"))
	assert.False(t, ok)
}

func TestTelegramSignInAndOut(t *testing.T) {
	s := newSessions(t)
	ctx := WithSession(context.Background(), "chat-1")

	user, err := s.SignInTelegram(ctx, "chat-1", 1001, "Ann", "", "ann")
	require.NoError(t, err)

	id, ok := s.CurrentUserID(ctx)
	require.True(t, ok)
	assert.Equal(t, user.ID, id)
	assert.True(t, s.Active("chat-1"))

	s.SignOut("chat-1")
	_, ok = s.CurrentUserID(ctx)
	assert.False(t, ok)
}

func TestRegisterAndEmailSignIn(t *testing.T) {
	s := newSessions(t)
	ctx := context.Background()

	anon, err := s.SignInAnonymously(ctx, "device-a")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Register(ctx, "device-a", "me@example.com", "123"), ErrWeakPassword)
	require.NoError(t, s.Register(ctx, "device-a", " Me@Example.com ", "secret-pass"))
	assert.ErrorIs(t, s.Register(ctx, "device-a", "me@example.com", "secret-pass"), ErrEmailTaken)

	_, err = s.SignInWithEmail(ctx, "device-b", "me@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.SignInWithEmail(ctx, "device-b", "nobody@example.com", "secret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	user, err := s.SignInWithEmail(ctx, "device-b", "me@example.com", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, anon.ID, user.ID)

	id, ok := s.CurrentUserID(WithSession(ctx, "device-b"))
	require.True(t, ok)
	assert.Equal(t, anon.ID, id)

	profile, err := s.CurrentUser(WithSession(ctx, "device-b"))
	require.NoError(t, err)
	require.NotNil(t, profile.Email)
	assert.Equal(t, "me@example.com", *profile.Email)
	assert.False(t, profile.Anonymous)
}

func TestCurrentUserNeedsSession(t *testing.T) {
	s := newSessions(t)
	_, err := s.CurrentUser(WithSession(context.Background(), "chat-9"))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestStaticProvider(t *testing.T) {
	id, ok := Static("u1").CurrentUserID(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "u1", id)

	_, ok = Static("").CurrentUserID(context.Background())
	assert.False(t, ok)
}
