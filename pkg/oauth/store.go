package oauth

import (
	"sync"
	"time"
)

// Store is the persistence seam for clients, codes, tokens, and consent
// records. MemoryStore is the only implementation spec.md requires
// (single-instance deployment); the interface exists so a future
// Redis-backed store — as the teacher's authserver supports — has
// somewhere to plug in without touching the handlers.
type Store interface {
	PutClient(c *Client)
	GetClient(id string) (*Client, bool)
	DeleteClient(id string)

	PutAuthCode(c *AuthCode)
	TakeAuthCode(code string) (*AuthCode, bool) // marks used atomically
	GetAuthCode(code string) (*AuthCode, bool)

	PutAccessToken(t *AccessToken)
	GetAccessToken(token string) (*AccessToken, bool)
	DeleteAccessToken(token string)

	PutRefreshToken(t *RefreshToken)
	GetRefreshToken(token string) (*RefreshToken, bool)
	DeleteRefreshToken(token string)

	PutConsent(userKey string, c Consent)
	GetConsent(userKey, clientID string) (Consent, bool)

	// CleanupExpired removes every auth code, access token, and refresh
	// token whose expiry has passed as of now.
	CleanupExpired(now time.Time)
}

// MemoryStore is a mutex-guarded in-memory Store, grounded on the shape
// of pkg/authserver's in-memory storage (register/get/expire) but keyed
// on our own opaque-token types rather than fosite's Requester model.
type MemoryStore struct {
	mu            sync.Mutex
	clients       map[string]*Client
	codes         map[string]*AuthCode
	accessTokens  map[string]*AccessToken
	refreshTokens map[string]*RefreshToken
	consents      map[string]map[string]Consent // userKey -> clientID -> Consent
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:       make(map[string]*Client),
		codes:         make(map[string]*AuthCode),
		accessTokens:  make(map[string]*AccessToken),
		refreshTokens: make(map[string]*RefreshToken),
		consents:      make(map[string]map[string]Consent),
	}
}

func (s *MemoryStore) PutClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
}

func (s *MemoryStore) GetClient(id string) (*Client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	return c, ok
}

func (s *MemoryStore) DeleteClient(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, id)
}

func (s *MemoryStore) PutAuthCode(c *AuthCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[c.Code] = c
}

// TakeAuthCode returns the code, marking it used and deleting it under the
// store lock, so a second call for the same code (concurrent or later)
// finds nothing and must reject the exchange (spec.md §4.11 "deletes code
// BEFORE issuing tokens").
func (s *MemoryStore) TakeAuthCode(code string) (*AuthCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return nil, false
	}
	already := c.Used
	c.Used = true
	delete(s.codes, code)
	if already {
		return nil, false
	}
	return c, true
}

func (s *MemoryStore) GetAuthCode(code string) (*AuthCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	return c, ok
}

func (s *MemoryStore) PutAccessToken(t *AccessToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTokens[t.Token] = t
}

func (s *MemoryStore) GetAccessToken(token string) (*AccessToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.accessTokens[token]
	return t, ok
}

func (s *MemoryStore) DeleteAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accessTokens, token)
}

func (s *MemoryStore) PutRefreshToken(t *RefreshToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens[t.Token] = t
}

func (s *MemoryStore) GetRefreshToken(token string) (*RefreshToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refreshTokens[token]
	return t, ok
}

func (s *MemoryStore) DeleteRefreshToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refreshTokens, token)
}

func (s *MemoryStore) PutConsent(userKey string, c Consent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byClient, ok := s.consents[userKey]
	if !ok {
		byClient = make(map[string]Consent)
		s.consents[userKey] = byClient
	}
	byClient[c.ClientID] = c
}

func (s *MemoryStore) GetConsent(userKey, clientID string) (Consent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byClient, ok := s.consents[userKey]
	if !ok {
		return Consent{}, false
	}
	c, ok := byClient[clientID]
	return c, ok
}

// CleanupExpired implements Store.
func (s *MemoryStore) CleanupExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, c := range s.codes {
		if now.After(c.ExpiresAt) {
			delete(s.codes, code)
		}
	}
	for tok, t := range s.accessTokens {
		if now.After(t.ExpiresAt) {
			delete(s.accessTokens, tok)
		}
	}
	for tok, t := range s.refreshTokens {
		if !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt) {
			delete(s.refreshTokens, tok)
		}
	}
}
