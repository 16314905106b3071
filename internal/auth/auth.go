// Package auth keeps track of who is signed in. Sessions are keyed by an
// opaque string (the Telegram chat id for the bot) carried in the context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"todo-planner/internal/model"
	"todo-planner/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrNoSession          = errors.New("no active session")
)

// Provider exposes the id of the signed-in user, if any.
type Provider interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

type sessionKey struct{}

// WithSession attaches a session key to ctx.
func WithSession(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKey{}, key)
}

// SessionFrom returns the session key carried by ctx.
func SessionFrom(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(sessionKey{}).(string)
	return key, ok && key != ""
}

// Static is a Provider that always reports the same user. Empty means
// signed out.
type Static string

func (s Static) CurrentUserID(context.Context) (string, bool) {
	return string(s), s != ""
}

// Sessions is the in-process session table.
type Sessions struct {
	users    *repository.UserRepository
	mu       sync.RWMutex
	sessions map[string]string
}

var _ Provider = (*Sessions)(nil)

func NewSessions(users *repository.UserRepository) *Sessions {
	return &Sessions{users: users, sessions: make(map[string]string)}
}

// CurrentUserID implements Provider.
func (s *Sessions) CurrentUserID(ctx context.Context) (string, bool) {
	key, ok := SessionFrom(ctx)
	if !ok {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.sessions[key]
	return id, ok
}

// CurrentUser loads the profile of the user signed in under ctx.
func (s *Sessions) CurrentUser(ctx context.Context) (*model.User, error) {
	id, ok := s.CurrentUserID(ctx)
	if !ok {
		return nil, ErrNoSession
	}
	return s.users.FindByID(ctx, id)
}

// SignInAnonymously starts a session for a fresh credential-less user.
func (s *Sessions) SignInAnonymously(ctx context.Context, key string) (*model.User, error) {
	user, err := s.users.CreateAnonymous(ctx)
	if err != nil {
		return nil, err
	}
	s.bind(key, user.ID)
	return user, nil
}

// SignInTelegram starts a session for the anonymous user bound to a
// Telegram account, creating it on first contact.
func (s *Sessions) SignInTelegram(ctx context.Context, key string, telegramID int64, firstName, lastName, username string) (*model.User, error) {
	user, err := s.users.UpsertFromTelegram(ctx, telegramID, firstName, lastName, username)
	if err != nil {
		return nil, err
	}
	s.bind(key, user.ID)
	return user, nil
}

// Register attaches email credentials to the user signed in under key.
func (s *Sessions) Register(ctx context.Context, key, email, password string) error {
	email = normalizeEmail(email)
	if len(password) < 6 {
		return ErrWeakPassword
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	userID, ok := s.lookup(key)
	if !ok {
		return ErrNoSession
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.AttachEmail(ctx, userID, email, string(hash))
}

// SignInWithEmail checks the password and switches the session to that user.
func (s *Sessions) SignInWithEmail(ctx context.Context, key, email, password string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	s.bind(key, user.ID)
	return user, nil
}

// SignOut ends the session under key.
func (s *Sessions) SignOut(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}

// Active reports whether key has a session.
func (s *Sessions) Active(key string) bool {
	_, ok := s.lookup(key)
	return ok
}

func (s *Sessions) bind(key, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = userID
}

func (s *Sessions) lookup(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.sessions[key]
	return id, ok
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
