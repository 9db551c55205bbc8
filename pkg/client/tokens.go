package client

import "sync"

// TokenStore is where the client reads the bearer token before every request
// and writes the rotated token after a refresh.
//
// Sessions are numbered. A request remembers the generation it started in,
// and a refresh that completes after that session ended must not bring it
// back: RotateAccessToken and EndSession report false and change nothing
// when gen is no longer current.
type TokenStore interface {
	AccessToken() string
	Generation() uint64
	RotateAccessToken(gen uint64, token string) (bool, error)
	EndSession(gen uint64) (bool, error)
}

// MemoryTokens is a TokenStore that keeps the token in memory only.
type MemoryTokens struct {
	mu    sync.RWMutex
	token string
	gen   uint64
}

// NewMemoryTokens returns a MemoryTokens holding token.
func NewMemoryTokens(token string) *MemoryTokens {
	return &MemoryTokens{token: token}
}

func (m *MemoryTokens) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *MemoryTokens) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

// SetAccessToken stores token in the current session.
func (m *MemoryTokens) SetAccessToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryTokens) RotateAccessToken(gen uint64, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return false, nil
	}
	m.token = token
	return true, nil
}

func (m *MemoryTokens) EndSession(gen uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return false, nil
	}
	m.token = ""
	m.gen++
	return true, nil
}

// Logout clears the token and ends the current session.
func (m *MemoryTokens) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.gen++
	return nil
}
