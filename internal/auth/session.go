package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"
	"time"
)

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// Session configuration
const (
	SessionDuration   = 12 * time.Hour
	TokenDuration     = time.Hour
	SessionIDLength   = 32 // 256 bits
	SessionCookieName = "session_id"
)

type sessionEntry struct {
	userID    string
	expiresAt time.Time
}

// Sessions maps opaque identifiers to user IDs until they expire. The same
// type backs browser session cookies and API bearer tokens.
type Sessions struct {
	mu    sync.Mutex
	items map[string]sessionEntry
	ttl   time.Duration
	clock Clock
}

// NewSessions returns a store whose entries live for ttl. A nil clock uses
// the system clock.
func NewSessions(ttl time.Duration, clock Clock) *Sessions {
	if clock == nil {
		clock = realClock{}
	}
	return &Sessions{items: make(map[string]sessionEntry), ttl: ttl, clock: clock}
}

// Create starts a session for userID and returns its identifier.
func (s *Sessions) Create(userID string) (string, error) {
	id, err := generateSessionID()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = sessionEntry{userID: userID, expiresAt: s.clock.Now().Add(s.ttl)}
	return id, nil
}

// Validate returns the user ID of a live session.
func (s *Sessions) Validate(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[id]
	if !ok {
		return "", ErrSessionNotFound
	}
	if !s.clock.Now().Before(entry.expiresAt) {
		delete(s.items, id)
		return "", ErrSessionExpired
	}
	return entry.userID, nil
}

// Delete removes a session (logout).
func (s *Sessions) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

// Cleanup removes all expired sessions.
func (s *Sessions) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for id, entry := range s.items {
		if !now.Before(entry.expiresAt) {
			delete(s.items, id)
		}
	}
}

// Len returns the number of stored sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Cookie helpers

// SetCookie sets the session cookie on the response. secure is false for
// plain-HTTP local runs.
func SetCookie(w http.ResponseWriter, sessionID string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionDuration.Seconds()),
	})
}

// ClearCookie removes the session cookie.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// GetFromRequest retrieves the session ID from the request cookie.
func GetFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrSessionNotFound
		}
		return "", err
	}
	return cookie.Value, nil
}

func generateSessionID() (string, error) {
	bytes := make([]byte, SessionIDLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
