// Package session holds the viewer's session context.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/daybook-net/daybook/internal/entities"
	"github.com/daybook-net/daybook/internal/store"
)

// Event is a session lifecycle transition delivered to the owning shell.
type Event int

const (
	// LoggedIn ...
	LoggedIn Event = iota + 1
	// LoggedOut ...
	LoggedOut
)

// Authenticator exchanges credentials for a session with the remote backend.
type Authenticator interface {
	// Login returns the authenticated user and their bearer token.
	Login(ctx context.Context, username, password string) (*entities.User, string, error)
	Logout(ctx context.Context) error
}

// Session is the explicit session context. Components that need the current
// viewer receive the session instead of reading ambient global state, and the
// navigation shell consumes Events to switch its root on login/logout.
type Session struct {
	auth Authenticator

	mu    sync.RWMutex
	user  *entities.User
	token string

	events chan Event
}

// New ...
func New(auth Authenticator) *Session {
	return &Session{
		auth:   auth,
		events: make(chan Event, 1),
	}
}

// Events delivers login/logout transitions to the single owning consumer.
// The channel is buffered; an event nobody is ready for is dropped rather
// than blocking the session.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Current returns the logged-in viewer, nil when there is none.
func (s *Session) Current() *entities.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.user
}

// Token returns the bearer token of the active session.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// SetCurrent replaces the viewer held by the session, e.g. after a profile
// edit or a post creation stamped LastPostedAt.
func (s *Session) SetCurrent(u *entities.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

// Login ...
func (s *Session) Login(ctx context.Context, username, password string) error {
	u, token, err := s.auth.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("%w: failed to log in: %w", store.ErrAuth, err)
	}

	s.mu.Lock()
	s.user, s.token = u, token
	s.mu.Unlock()

	s.emit(LoggedIn)

	return nil
}

// Logout ends the remote session first; the local session is kept when that
// fails.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.auth.Logout(ctx); err != nil {
		return fmt.Errorf("%w: failed to log out: %w", store.ErrAuth, err)
	}

	s.mu.Lock()
	s.user, s.token = nil, ""
	s.mu.Unlock()

	s.emit(LoggedOut)

	return nil
}

func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
	}
}
