package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"posdash/internal/api"
	"posdash/internal/logger"
	"posdash/pkg/models"
)

var _ api.Credentials = (*Manager)(nil)

// Manager owns the sign-in lifecycle: SignIn sets the credential, SignOut
// clears it. It is the Credentials given to the API client.
type Manager struct {
	store *Store
	now   func() time.Time
	log   zerolog.Logger

	mu      sync.RWMutex
	current *Session
}

// NewManager restores the stored session, if any.
func NewManager(store *Store) (*Manager, error) {
	m := &Manager{
		store: store,
		now:   time.Now,
		log:   logger.WithComponent("session"),
	}

	sess, err := store.Load()
	switch {
	case errors.Is(err, ErrNoSession):
		m.log.Debug().Msg("No stored session")
	case err != nil:
		return nil, fmt.Errorf("failed to restore session: %w", err)
	default:
		m.current = sess
		m.log.Debug().
			Str("user", sess.User.Username).
			Str("token", logger.MaskSecret(sess.JWT)).
			Msg("Session restored")
	}

	return m, nil
}

// SignIn stores jwt for user and makes it the active credential.
func (m *Manager) SignIn(jwt string, user models.User) error {
	jwt = strings.TrimSpace(jwt)
	if jwt == "" {
		return errors.New("empty token")
	}

	sess := Session{JWT: jwt, User: user, SignedInAt: m.now().UTC()}
	if err := m.store.Save(sess); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	m.mu.Lock()
	m.current = &sess
	m.mu.Unlock()

	m.log.Info().Str("user", user.Username).Msg("Signed in")
	return nil
}

// SignOut clears the credential. Signing out twice is not an error.
func (m *Manager) SignOut() error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	m.log.Info().Msg("Signed out")
	return nil
}

// Current returns the active session.
func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

// Require returns the active session or ErrNotSignedIn.
func (m *Manager) Require() (Session, error) {
	sess, ok := m.Current()
	if !ok {
		return Session{}, ErrNotSignedIn
	}
	return sess, nil
}

// Token implements api.Credentials.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.JWT
}
