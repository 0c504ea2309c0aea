package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	sessionCookieName  = "face_check_session"
	sessionDuration    = 24 * time.Hour   // absolute lifetime
	sessionIdleTimeout = 30 * time.Minute // lifetime without requests
	cleanupInterval    = 5 * time.Minute
	defaultMaxSessions = 1000
)

type contextKey string

const sessionContextKey contextKey = "session"

// Session is one visitor. Every visitor gets a session on first request.
// ExpiresAt moves forward on every request, up to CreatedAt+sessionDuration.
// Read it through the manager.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionManager issues signed visitor sessions and expires idle ones. At
// most maxSessions live at once; creating one more evicts the session closest
// to expiry.
type SessionManager struct {
	secret      []byte
	sessions    map[string]*Session
	maxSessions int
	mu          sync.RWMutex

	onExpire []func(id string)
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionManager creates a session manager and starts its cleanup loop.
func NewSessionManager(secret string) *SessionManager {
	if secret == "" {
		secret = "face-check-dev-secret-change-in-production"
	}
	sm := &SessionManager{
		secret:      []byte(secret),
		sessions:    make(map[string]*Session),
		maxSessions: defaultMaxSessions,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
	go sm.cleanupLoop()
	return sm
}

// OnExpire registers fn to run for every session that is removed.
// Register before serving requests.
func (sm *SessionManager) OnExpire(fn func(id string)) {
	sm.onExpire = append(sm.onExpire, fn)
}

// CreateSession creates a new session, evicting the one closest to expiry
// when the manager is full.
func (sm *SessionManager) CreateSession() *Session {
	now := sm.now()
	session := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(sessionIdleTimeout),
	}

	var evicted string
	sm.mu.Lock()
	if sm.maxSessions > 0 && len(sm.sessions) >= sm.maxSessions {
		evicted = sm.oldestLocked()
		delete(sm.sessions, evicted)
	}
	sm.sessions[session.ID] = session
	sm.mu.Unlock()

	if evicted != "" {
		sm.notifyExpired(evicted)
	}
	return session
}

// oldestLocked returns the ID of the session that expires first.
func (sm *SessionManager) oldestLocked() string {
	var oldest *Session
	for _, s := range sm.sessions {
		if oldest == nil || s.ExpiresAt.Before(oldest.ExpiresAt) {
			oldest = s
		}
	}
	if oldest == nil {
		return ""
	}
	return oldest.ID
}

// GetSession returns a live session by ID and extends its idle deadline, or nil.
func (sm *SessionManager) GetSession(sessionID string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, ok := sm.sessions[sessionID]
	now := sm.now()
	if !ok || now.After(session.ExpiresAt) {
		return nil
	}
	deadline := now.Add(sessionIdleTimeout)
	if limit := session.CreatedAt.Add(sessionDuration); deadline.After(limit) {
		deadline = limit
	}
	session.ExpiresAt = deadline
	return session
}

// ExpiresAt returns the current deadline of a session, or false if it is gone.
func (sm *SessionManager) ExpiresAt(sessionID string) (time.Time, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, ok := sm.sessions[sessionID]
	if !ok {
		return time.Time{}, false
	}
	return session.ExpiresAt, true
}

// DeleteSession removes a session and notifies expiry listeners.
func (sm *SessionManager) DeleteSession(sessionID string) {
	sm.mu.Lock()
	_, ok := sm.sessions[sessionID]
	delete(sm.sessions, sessionID)
	sm.mu.Unlock()

	if ok {
		sm.notifyExpired(sessionID)
	}
}

func (sm *SessionManager) notifyExpired(sessionID string) {
	for _, fn := range sm.onExpire {
		fn(sessionID)
	}
}

// Count returns the number of tracked sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// SetSessionCookie sets the signed session cookie on the response.
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID + "." + sm.signData(session.ID),
		Path:     "/",
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionDuration.Seconds()),
	})
}

// GetSessionFromRequest extracts a valid session from the request cookie.
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) *Session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil
	}
	sessionID, signature, ok := strings.Cut(cookie.Value, ".")
	if !ok || !sm.verifySignature(sessionID, signature) {
		return nil
	}
	return sm.GetSession(sessionID)
}

// Stop ends the cleanup loop.
func (sm *SessionManager) Stop() {
	sm.stopOnce.Do(func() { close(sm.stop) })
}

func (sm *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sm.stop:
			return
		case <-ticker.C:
			if n := sm.removeExpired(); n > 0 {
				log.Printf("Removed %d expired sessions", n)
			}
		}
	}
}

func (sm *SessionManager) removeExpired() int {
	now := sm.now()
	var expired []string
	sm.mu.RLock()
	for id, s := range sm.sessions {
		if now.After(s.ExpiresAt) {
			expired = append(expired, id)
		}
	}
	sm.mu.RUnlock()

	for _, id := range expired {
		sm.DeleteSession(id)
	}
	return len(expired)
}

// signData creates an HMAC signature for data
func (sm *SessionManager) signData(data string) string {
	h := hmac.New(sha256.New, sm.secret)
	h.Write([]byte(data))
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}

// verifySignature verifies an HMAC signature
func (sm *SessionManager) verifySignature(data, signature string) bool {
	expected := sm.signData(data)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// WithSession attaches the visitor's session to the request context,
// creating one and setting its cookie when the request carries none.
func WithSession(sm *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := sm.GetSessionFromRequest(r)
			if session == nil {
				session = sm.CreateSession()
				sm.SetSessionCookie(w, session)
			}
			next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), session)))
		})
	}
}

// SetSessionInContext stores session in ctx.
func SetSessionInContext(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// GetSessionFromContext retrieves the session from context.
func GetSessionFromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionContextKey).(*Session)
	return session
}
