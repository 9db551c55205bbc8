// Package session is the single source of truth for who is signed in and
// which credential proves it. State is persisted through a store.Backend
// and loaded back by Hydrate.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/naveenspark/shopdrop/internal/store"
	"github.com/naveenspark/shopdrop/pkg/domain"
)

// Namespace is the fixed persistence namespace of the session snapshot.
const Namespace = "auth-storage"

const snapshotKey = "state"

var (
	// ErrNotAuthenticated is returned by gated operations when nobody is signed in.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrForbidden is returned when the signed-in user lacks the required role.
	ErrForbidden = errors.New("insufficient role")
)

// snapshot is the persisted form of the session.
type snapshot struct {
	domain.Session
	Cookies []storedCookie `json:"cookies,omitempty"`
}

// Store holds the current session. The access token lives in a memguard
// enclave and is only decrypted for the duration of AccessToken.
type Store struct {
	backend store.Backend
	logger  *slog.Logger

	mu      sync.RWMutex
	user    *domain.User
	token   *memguard.Enclave
	cookies map[string]storedCookie
	jar     *cookiejar.Jar
	gen     uint64 // bumped by SignIn and Logout
	dirty   bool   // written since construction; hydration must not clobber it

	hydrated    chan struct{}
	hydrateOnce sync.Once
	hydrateErr  error
}

// New returns an empty, not yet hydrated Store.
func New(backend store.Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	jar, _ := cookiejar.New(nil) //nolint:errcheck // only fails on a bad PublicSuffixList
	return &Store{
		backend:  backend,
		logger:   logger,
		cookies:  make(map[string]storedCookie),
		jar:      jar,
		hydrated: make(chan struct{}),
	}
}

// Hydrate loads the persisted snapshot into memory. It runs once; later calls
// return the first result. The hydrated signal fires even when loading fails,
// in which case the session starts empty.
func (s *Store) Hydrate(ctx context.Context) error {
	s.hydrateOnce.Do(func() {
		s.hydrateErr = s.load(ctx)
		close(s.hydrated)
	})
	return s.hydrateErr
}

func (s *Store) load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("session.Hydrate: %w", err)
	}
	data, err := s.backend.Get(Namespace, snapshotKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("session.Hydrate: read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("session.Hydrate: decode snapshot: %w", err)
	}
	if snap.User != nil {
		if err := snap.User.Validate(); err != nil {
			s.logger.Warn("discarding persisted user", "error", err)
			snap.User = nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		s.logger.Debug("session written before hydration, keeping in-memory state")
		return nil
	}
	s.user = snap.User
	s.token = newEnclave(snap.AccessToken)
	for _, c := range snap.Cookies {
		if c.expired() {
			continue
		}
		s.cookies[c.key()] = c
		c.seed(s.jar)
	}
	s.logger.Debug("session hydrated", "authenticated", s.user != nil)
	return nil
}

// Hydrated is closed once the persisted snapshot has been loaded.
func (s *Store) Hydrated() <-chan struct{} {
	return s.hydrated
}

// IsHydrated reports whether Hydrate has completed.
func (s *Store) IsHydrated() bool {
	select {
	case <-s.hydrated:
		return true
	default:
		return false
	}
}

// WaitHydrated blocks until hydration completes or ctx is done.
func (s *Store) WaitHydrated(ctx context.Context) error {
	select {
	case <-s.hydrated:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session.WaitHydrated: %w", ctx.Err())
	}
}

// AccessToken returns the current bearer token, or "" when there is none.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokenLocked()
}

func (s *Store) tokenLocked() string {
	if s.token == nil {
		return ""
	}
	buf, err := s.token.Open()
	if err != nil {
		s.logger.Error("open token enclave", "error", err)
		return ""
	}
	defer buf.Destroy()
	return string(buf.Bytes())
}

// SetAccessToken replaces the bearer token and persists it. The user is left
// untouched.
func (s *Store) SetAccessToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = newEnclave(token)
	s.dirty = true
	if err := s.persistLocked(); err != nil {
		return fmt.Errorf("session.SetAccessToken: %w", err)
	}
	return nil
}

// Generation numbers the current session. It changes whenever the session
// changes hands, on SignIn and on Logout.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// RotateAccessToken is SetAccessToken for a refresh that started in session
// gen. It stores nothing and reports false when that session has ended.
func (s *Store) RotateAccessToken(gen uint64, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.logger.Debug("dropping token of ended session", "gen", gen, "current", s.gen)
		return false, nil
	}
	s.token = newEnclave(token)
	s.dirty = true
	if err := s.persistLocked(); err != nil {
		return true, fmt.Errorf("session.RotateAccessToken: %w", err)
	}
	return true, nil
}

// SetUser replaces the user record. It does not change the token.
func (s *Store) SetUser(u *domain.User) error {
	if u != nil {
		if err := u.Validate(); err != nil {
			return fmt.Errorf("session.SetUser: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u.Clone()
	s.dirty = true
	if err := s.persistLocked(); err != nil {
		return fmt.Errorf("session.SetUser: %w", err)
	}
	return nil
}

// SignIn stores the token and user of a sign-in or sign-up response together.
func (s *Store) SignIn(resp domain.AuthResponse) error {
	if err := resp.Validate(); err != nil {
		return fmt.Errorf("session.SignIn: %w", err)
	}
	if resp.User == nil {
		return fmt.Errorf("session.SignIn: %w", domain.ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = newEnclave(resp.AccessToken)
	s.user = resp.User.Clone()
	s.gen++
	s.dirty = true
	if err := s.persistLocked(); err != nil {
		return fmt.Errorf("session.SignIn: %w", err)
	}
	return nil
}

// Logout clears the token, the refresh cookies and the user in one step and
// removes the persisted snapshot. It performs no network I/O.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.logoutLocked(); err != nil {
		return fmt.Errorf("session.Logout: %w", err)
	}
	return nil
}

// EndSession is Logout for session gen only. It reports false and leaves the
// store alone when gen has already ended.
func (s *Store) EndSession(gen uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false, nil
	}
	if err := s.logoutLocked(); err != nil {
		return true, fmt.Errorf("session.EndSession: %w", err)
	}
	return true, nil
}

func (s *Store) logoutLocked() error {
	s.token = nil
	s.user = nil
	s.cookies = make(map[string]storedCookie)
	s.jar, _ = cookiejar.New(nil) //nolint:errcheck // see New
	s.gen++
	s.dirty = true
	return s.backend.Delete(Namespace, snapshotKey)
}

// User returns a copy of the signed-in user, or nil.
func (s *Store) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// Authenticated reports whether a user is signed in. Callers gating protected
// views must check IsHydrated first; before hydration this is always false.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// Session returns a copy of the current session.
func (s *Store) Session() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Session{AccessToken: s.tokenLocked(), User: s.user.Clone()}
}

// RequireUser waits for hydration and returns the signed-in user.
func (s *Store) RequireUser(ctx context.Context) (*domain.User, error) {
	if err := s.WaitHydrated(ctx); err != nil {
		return nil, err
	}
	u := s.User()
	if u == nil {
		return nil, ErrNotAuthenticated
	}
	return u, nil
}

// RequireRole is RequireUser restricted to users holding role.
func (s *Store) RequireRole(ctx context.Context, role domain.Role) (*domain.User, error) {
	u, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if u.Role != role {
		return nil, fmt.Errorf("%w: need %s, have %s", ErrForbidden, role, u.Role)
	}
	return u, nil
}

func (s *Store) persistLocked() error {
	snap := snapshot{
		Session: domain.Session{AccessToken: s.tokenLocked(), User: s.user},
		Cookies: s.cookieListLocked(),
	}
	if snap.AccessToken == "" && snap.User == nil && len(snap.Cookies) == 0 {
		return s.backend.Delete(Namespace, snapshotKey)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.backend.Put(Namespace, snapshotKey, data)
}

func newEnclave(token string) *memguard.Enclave {
	if token == "" {
		return nil
	}
	return memguard.NewEnclave([]byte(token))
}
