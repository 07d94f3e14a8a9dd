package auth

import "sync"

// Token is the token endpoint's response document.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
	Domain       string `json:"domain,omitempty"`
	MemberID     string `json:"member_id,omitempty"`
	Status       string `json:"status,omitempty"`
}

// TokenStore guards the in-memory access token shared by concurrent callers.
// Expiry is never tracked locally; a 401 from the portal is the only
// invalidation signal.
type TokenStore struct {
	mu     sync.RWMutex
	access string
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the cached access token, or "" when unset.
func (s *TokenStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.access
}

// Set replaces the cached access token.
func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = token
}

// Clear drops the cached access token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = ""
}

// ClearIf drops the cached access token only while it still equals the
// rejected one, so a 401 observed against a stale token cannot wipe a
// newer token installed by a concurrent refresh.
func (s *TokenStore) ClearIf(rejected string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.access == rejected {
		s.access = ""
	}
}
