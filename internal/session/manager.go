package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/EmaRG1/user-manager/internal/model"
	"github.com/EmaRG1/user-manager/internal/service"
)

type Status int

const (
	StatusLoading Status = iota
	StatusUnauthenticated
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

type Session struct {
	Status Status
	State
}

type Authenticator interface {
	Login(ctx context.Context, email, password string) (service.LoginResult, error)
	Logout(ctx context.Context) error
	ProcessUserData(token string, user *model.Profile) (model.Profile, error)
}

type Verifier interface {
	Verify(token string) bool
	RemainingSeconds(token string) (int64, bool)
}

type Options struct {
	// RevalidateInterval is how often Run re-checks the token.
	RevalidateInterval time.Duration
	// RenewWarning is the remaining lifetime under which Init logs that
	// the token should be renewed.
	RenewWarning time.Duration
}

// Manager holds the tab's authentication state and keeps it in sync with
// the Store.
type Manager struct {
	store    *Store
	auth     Authenticator
	verifier Verifier
	opts     Options
	log      zerolog.Logger

	mu        sync.RWMutex
	session   Session
	listeners map[int]func(Session)
	nextID    int
}

func NewManager(store *Store, authenticator Authenticator, verifier Verifier, opts Options, log zerolog.Logger) *Manager {
	if opts.RevalidateInterval <= 0 {
		opts.RevalidateInterval = time.Minute
	}
	if opts.RenewWarning <= 0 {
		opts.RenewWarning = 5 * time.Minute
	}
	return &Manager{
		store:     store,
		auth:      authenticator,
		verifier:  verifier,
		opts:      opts,
		log:       log.With().Str("component", "session").Logger(),
		session:   Session{Status: StatusLoading},
		listeners: map[int]func(Session){},
	}
}

// Init restores a stored session. The token is not verified here; Run
// takes care of that.
func (m *Manager) Init(ctx context.Context) Session {
	state := m.store.Load(ctx)
	if !state.IsAuthenticated {
		return m.set(Session{Status: StatusUnauthenticated})
	}

	if remaining, ok := m.verifier.RemainingSeconds(state.Token); ok && remaining < int64(m.opts.RenewWarning/time.Second) {
		m.log.Warn().Int64("remaining_seconds", remaining).Msg("session token close to expiry, renewal recommended")
	}
	return m.set(Session{Status: StatusAuthenticated, State: state})
}

// Login authenticates against the auth service and establishes the session.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	res, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return m.Establish(ctx, res.Token, res.User)
}

// Establish enriches user with the records embedded in token, persists the
// pair and marks the tab authenticated.
func (m *Manager) Establish(ctx context.Context, token string, user model.Profile) error {
	enriched, err := m.auth.ProcessUserData(token, &user)
	if err != nil {
		m.log.Error().Err(err).Msg("establish session")
		return err
	}
	if err := m.store.Save(ctx, enriched, token); err != nil {
		return err
	}
	m.set(Session{
		Status: StatusAuthenticated,
		State: State{
			IsAuthenticated: true,
			Token:           token,
			User:            &enriched,
			Role:            enriched.Role,
		},
	})
	return nil
}

// Logout always ends the local session, even if the remote call fails.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.RLock()
	hasToken := m.session.Token != ""
	m.mu.RUnlock()

	if hasToken {
		if err := m.auth.Logout(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.log.Error().Err(err).Msg("remote logout failed")
		}
	}
	// The clear must happen even when ctx is already done.
	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		m.log.Error().Err(err).Msg("clear session storage")
	}
	m.set(Session{Status: StatusUnauthenticated})
}

// UpdateUser merges patch into the live user and the stored snapshot.
func (m *Manager) UpdateUser(ctx context.Context, patch model.ProfilePatch) {
	m.mu.Lock()
	if m.session.User == nil {
		m.mu.Unlock()
		return
	}
	updated := m.session.User.Apply(patch)
	m.session.User = &updated
	m.session.Role = updated.Role
	snapshot := m.session
	m.mu.Unlock()

	if err := m.store.MergeUser(ctx, patch); err != nil {
		m.log.Error().Err(err).Msg("update stored session user")
	}
	m.notify(snapshot)
}

// Run re-validates the token every RevalidateInterval while authenticated
// and logs out as soon as it fails. It returns when ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.RevalidateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.revalidate(ctx)
		}
	}
}

func (m *Manager) revalidate(ctx context.Context) {
	m.mu.RLock()
	token := m.session.Token
	authenticated := m.session.Status == StatusAuthenticated
	m.mu.RUnlock()
	if !authenticated {
		return
	}
	if !m.verifier.Verify(token) {
		m.log.Info().Msg("session token expired during session")
		m.Logout(ctx)
	}
}

func (m *Manager) Snapshot() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

func (m *Manager) IsAdmin() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Role == model.RoleAdmin
}

// Subscribe registers fn for every state change and returns a function that
// removes it.
func (m *Manager) Subscribe(fn func(Session)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) set(s Session) Session {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
	m.notify(s)
	return s
}

func (m *Manager) notify(s Session) {
	m.mu.RLock()
	listeners := make([]func(Session), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(s)
	}
}
