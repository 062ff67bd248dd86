// Package session holds the client's authentication session and broadcasts
// every change to subscribed views.
//
// A Manager is built by the composition root, initialized once at startup,
// and passed to whatever needs it. There is no package-level instance.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/apricopt/zoro-web/internal/cli/client"
	"github.com/apricopt/zoro-web/internal/handoff"
)

// ErrStaleOperation is returned when an operation finished after a newer one
// had started; its result was discarded
var ErrStaleOperation = errors.New("session changed by a newer operation")

// Backend is the subset of the API client the session needs
type Backend interface {
	Token() string
	SetToken(token string) error
	ClearToken() error
	LoadToken() (string, error)
	IsTokenValid() bool
	Login(ctx context.Context, email, password string) (*client.AuthResponse, error)
	Register(ctx context.Context, data client.RegisterRequest) (*client.AuthResponse, error)
	RevokeSession(ctx context.Context) error
	CurrentUser(ctx context.Context) (*client.User, error)
	CurrentUserWithToken(ctx context.Context, token string) (*client.User, error)
}

// Listener receives the full snapshot after every publish
type Listener func(State)

type listenerEntry struct {
	id uint64
	fn Listener
}

// DesktopAuthData is what the desktop application receives on handoff
type DesktopAuthData struct {
	Token     string       `json:"token"`
	User      *client.User `json:"user"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Manager is the single source of truth for authentication state
type Manager struct {
	backend     Backend
	launcher    handoff.Launcher
	callbackURL string
	logger      zerolog.Logger
	now         func() time.Time

	mu        sync.RWMutex
	state     State
	listeners []listenerEntry
	nextID    uint64

	// publishMu serializes publishes so listeners observe them in order
	publishMu sync.Mutex

	// ops counts started state-mutating operations; only the newest may publish a result
	ops          atomic.Uint64
	initializing atomic.Bool
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithCallbackURL overrides the desktop callback URL
func WithCallbackURL(callback string) Option {
	return func(m *Manager) { m.callbackURL = callback }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager in the uninitialized (loading, empty) state.
// Nothing is read or fetched until Initialize is called.
func NewManager(backend Backend, launcher handoff.Launcher, opts ...Option) *Manager {
	if launcher == nil {
		launcher = handoff.SystemLauncher{}
	}

	m := &Manager{
		backend:     backend,
		launcher:    launcher,
		callbackURL: handoff.DefaultCallbackURL,
		logger:      log.Logger,
		now:         time.Now,
		state:       State{IsLoading: true},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current snapshot
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Phase is like State().Phase() but reports PhaseUninitialized before any operation ran
func (m *Manager) Phase() Phase {
	if m.ops.Load() == 0 {
		return PhaseUninitialized
	}
	return m.State().Phase()
}

// Subscribe registers a listener invoked with every published snapshot, in
// subscription order. The returned function removes exactly this listener.
// Listeners run on the publishing goroutine and must not call mutating
// Manager operations synchronously.
func (m *Manager) Subscribe(fn Listener) (unsubscribe func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, l := range m.listeners {
				if l.id == id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// begin starts a state-mutating operation and returns its number. With
// loading set it publishes IsLoading=true, keeping the other fields.
func (m *Manager) begin(loading bool) uint64 {
	n := m.ops.Add(1)
	if loading {
		m.apply(n, nil, func(s State) State {
			s.IsLoading = true
			return s
		})
	}
	return n
}

// apply runs effect and publishes update(state) if operation n is still the
// newest one. It reports whether anything was published.
func (m *Manager) apply(n uint64, effect func() error, update func(State) State) bool {
	m.publishMu.Lock()
	defer m.publishMu.Unlock()

	if m.ops.Load() != n {
		m.logger.Debug().Uint64("op", n).Msg("Discarding result of superseded session operation")
		return false
	}

	if effect != nil {
		if err := effect(); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to persist session token")
		}
	}

	m.mu.Lock()
	from := m.state
	m.state = normalize(update(m.state))
	snapshot := m.state
	listeners := make([]listenerEntry, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	m.logger.Debug().
		Bool("from_authenticated", from.IsAuthenticated).
		Bool("from_loading", from.IsLoading).
		Bool("to_authenticated", snapshot.IsAuthenticated).
		Bool("to_loading", snapshot.IsLoading).
		Int("listeners", len(listeners)).
		Msg("Auth state change")

	for _, l := range listeners {
		l.fn(snapshot)
	}
	return true
}

// clear forgets the token everywhere and publishes the unauthenticated state
func (m *Manager) clear(n uint64) bool {
	return m.apply(n, m.backend.ClearToken, func(State) State {
		return unauthenticated()
	})
}

// authenticate publishes an authenticated snapshot. persist stores the token
// (with a fresh timestamp) as part of the same step.
func (m *Manager) authenticate(n uint64, user *client.User, token string, persist bool) bool {
	var effect func() error
	if persist {
		effect = func() error { return m.backend.SetToken(token) }
	}
	return m.apply(n, effect, func(State) State {
		return State{User: user, Token: token, IsAuthenticated: true}
	})
}

// stopLoading publishes IsLoading=false leaving the auth fields unchanged
func (m *Manager) stopLoading(n uint64) {
	m.apply(n, nil, func(s State) State {
		s.IsLoading = false
		return s
	})
}

// Initialize restores a persisted token, validates it locally and against the
// backend, and publishes the outcome. Any failure ends in the unauthenticated
// state with storage cleared; nothing is returned to the caller. Concurrent
// calls while one is in progress return immediately.
func (m *Manager) Initialize(ctx context.Context) {
	if !m.initializing.CompareAndSwap(false, true) {
		return
	}
	defer m.initializing.Store(false)

	n := m.begin(true)

	token, err := m.backend.LoadToken()
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to read persisted token")
		m.clear(n)
		return
	}
	if token == "" {
		m.logger.Debug().Msg("No persisted token")
		m.clear(n)
		return
	}

	if !m.backend.IsTokenValid() {
		m.logger.Info().Msg("Persisted token expired, signing out")
		m.clear(n)
		return
	}

	user, err := m.backend.CurrentUser(ctx)
	if err != nil {
		m.logger.Info().Err(err).Msg("Token validation failed, signing out")
		m.clear(n)
		return
	}

	m.authenticate(n, user, token, false)
	m.logger.Debug().Str("email", user.Email).Msg("Session restored")
}

// Login authenticates with email and password. On failure the loading flag is
// dropped, the session is left as it was, and the error is returned.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	n := m.begin(true)

	resp, err := m.backend.Login(ctx, email, password)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Login failed")
		m.stopLoading(n)
		return err
	}

	return m.adopt(ctx, n, resp.Token)
}

// Register creates an account and signs in with the issued token
func (m *Manager) Register(ctx context.Context, data client.RegisterRequest) error {
	n := m.begin(true)

	resp, err := m.backend.Register(ctx, data)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Registration failed")
		m.stopLoading(n)
		return err
	}

	return m.adopt(ctx, n, resp.Token)
}

// adopt fetches the user for a freshly issued token and publishes the
// authenticated state. The token is persisted only if n is still current.
func (m *Manager) adopt(ctx context.Context, n uint64, token string) error {
	user, err := m.backend.CurrentUserWithToken(ctx, token)
	if err != nil {
		m.stopLoading(n)
		return fmt.Errorf("failed to fetch user: %w", err)
	}

	if !m.authenticate(n, user, token, true) {
		return ErrStaleOperation
	}
	return nil
}

// Logout revokes the session server-side on a best-effort basis and then
// always clears the token and user locally
func (m *Manager) Logout(ctx context.Context) {
	n := m.begin(true)

	if err := m.backend.RevokeSession(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Logout failed")
	}

	m.clear(n)
}

// HandleOAuthCallback adopts a token delivered by an OAuth redirect. If the
// token is rejected the session is cleared and the error returned.
func (m *Manager) HandleOAuthCallback(ctx context.Context, token string) error {
	n := m.begin(true)

	user, err := m.backend.CurrentUserWithToken(ctx, token)
	if err != nil {
		m.clear(n)
		return fmt.Errorf("failed to fetch user: %w", err)
	}

	if !m.authenticate(n, user, token, true) {
		return ErrStaleOperation
	}
	return nil
}

// RefreshUser refetches the current user. A rejected token logs the user out.
// It does nothing while another operation is loading, and it never starts an
// operation of its own: the result is applied only if no operation began
// while the request was in flight.
func (m *Manager) RefreshUser(ctx context.Context) error {
	current := m.State()
	if current.IsLoading || !current.IsAuthenticated || current.Token == "" {
		return nil
	}

	n := m.ops.Load()

	user, err := m.backend.CurrentUser(ctx)
	if err != nil {
		if m.ops.Load() != n {
			m.logger.Debug().Err(err).Msg("Ignoring failed refresh of a replaced session")
			return nil
		}
		m.logger.Warn().Err(err).Msg("Failed to refresh user")
		m.Logout(ctx)
		return err
	}

	m.apply(n, nil, func(s State) State {
		s.User = user
		return s
	})
	return nil
}

// DesktopAuthData packages the session for the desktop application, or
// returns nil when not authenticated
func (m *Manager) DesktopAuthData() *DesktopAuthData {
	s := m.State()
	if !s.IsAuthenticated || s.User == nil || s.Token == "" {
		return nil
	}

	return &DesktopAuthData{
		Token:     s.Token,
		User:      s.User,
		ExpiresAt: m.now().Add(client.TokenFreshness),
	}
}

// HandoffURL returns the desktop callback URL for the current session
func (m *Manager) HandoffURL() (string, bool) {
	data := m.DesktopAuthData()
	if data == nil {
		return "", false
	}

	u, err := handoff.URL(m.callbackURL, data.Token)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to build desktop callback URL")
		return "", false
	}
	return u, true
}

// RedirectToDesktop hands the session token to the desktop application. It is
// a no-op when not authenticated; a rejected handoff is logged, not returned.
func (m *Manager) RedirectToDesktop() {
	u, ok := m.HandoffURL()
	if !ok {
		return
	}

	if err := m.launcher.Open(u); err != nil {
		m.logger.Warn().Err(err).Msg("Desktop redirect failed")
	}
}
