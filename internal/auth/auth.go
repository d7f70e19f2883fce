// Package auth simulates sign-in. There is no credential store: any non-empty
// email and password are accepted after a fixed delay.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fjod/qahwa-storefront/internal/projection"
)

const (
	MsgInvalidLogin  = "Email ou mot de passe invalide"
	MsgInvalidSignup = "Informations invalides"

	MinPasswordLength = 6
	DefaultDelay      = time.Second
)

var ErrValidation = errors.New("validation failed")

type Phase string

const (
	PhaseIdle    Phase = "IDLE"
	PhaseLoading Phase = "LOADING"
	PhaseSuccess Phase = "SUCCESS"
	PhaseError   Phase = "ERROR"
)

type Session struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// State is the published auth view. Message is set only in PhaseError.
type State struct {
	Phase   Phase    `json:"phase"`
	Message string   `json:"message,omitempty"`
	Session *Session `json:"session,omitempty"`
}

type Service struct {
	mu    sync.Mutex
	state State
	seq   uint64
	hub   *projection.Hub[State]
	log   *slog.Logger
	delay time.Duration
	sleep func(time.Duration)
}

func NewService(delay time.Duration, log *slog.Logger) *Service {
	s := &Service{
		state: State{Phase: PhaseIdle},
		hub:   projection.NewHub[State](),
		log:   log,
		delay: delay,
		sleep: time.Sleep,
	}
	s.hub.Publish(s.state)
	return s
}

// Login moves to Loading, waits out the simulated network delay and then
// settles on Success or Error. It returns the settled state.
func (s *Service) Login(ctx context.Context, email, password string) State {
	return s.attempt(ctx, "login", func() (*Session, string) {
		if email == "" || password == "" {
			return nil, MsgInvalidLogin
		}
		name, _, _ := strings.Cut(email, "@")
		return &Session{Email: email, Name: name}, ""
	})
}

// Signup succeeds when name and email are set and the password is long enough.
func (s *Service) Signup(ctx context.Context, name, email, password string) State {
	return s.attempt(ctx, "signup", func() (*Session, string) {
		if name == "" || email == "" || len([]rune(password)) < MinPasswordLength {
			return nil, MsgInvalidSignup
		}
		return &Session{Email: email, Name: name}, ""
	})
}

// ValidateSignup is the form-level check run before Signup is allowed.
func ValidateSignup(name, email, password, confirm string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case strings.TrimSpace(email) == "":
		return fmt.Errorf("%w: email is required", ErrValidation)
	case len([]rune(password)) < MinPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	case password != confirm:
		return fmt.Errorf("%w: passwords do not match", ErrValidation)
	}
	return nil
}

// Logout clears the session from any state. A login still waiting on its
// delay is discarded when it completes.
func (s *Service) Logout(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.set(ctx, State{Phase: PhaseIdle})
	return s.state
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) Watch() (<-chan State, func()) {
	return s.hub.Subscribe()
}

func (s *Service) Close() {
	s.hub.Close()
}

func (s *Service) attempt(ctx context.Context, op string, check func() (*Session, string)) State {
	s.mu.Lock()
	s.seq++
	id := s.seq
	previous := s.state.Session
	s.set(ctx, State{Phase: PhaseLoading, Session: previous})
	s.mu.Unlock()

	s.sleep(s.delay)

	session, msg := check()

	s.mu.Lock()
	defer s.mu.Unlock()

	if id != s.seq {
		s.log.DebugContext(ctx, "auth attempt superseded", slog.String("op", op))
		return s.state
	}

	if session == nil {
		s.set(ctx, State{Phase: PhaseError, Message: msg, Session: previous})
		s.log.InfoContext(ctx, "auth failed", slog.String("op", op))
		return s.state
	}

	s.set(ctx, State{Phase: PhaseSuccess, Session: session})
	s.log.InfoContext(ctx, "auth succeeded", slog.String("op", op), slog.String("name", session.Name))
	return s.state
}

func (s *Service) set(ctx context.Context, next State) {
	s.log.DebugContext(ctx, "auth state changed",
		slog.String("from", string(s.state.Phase)),
		slog.String("to", string(next.Phase)))
	s.state = next
	s.hub.Publish(next)
}
