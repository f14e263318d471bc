package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/benagdipa/fwpm-sub001/internal/apiclient"
)

// FlashMessage represents a one-time notification stored in session.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Identity is the signed-in user as reported by the backend at login.
type Identity struct {
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
}

// Reasons attached to SessionCleared events.
const (
	ReasonLogout  = "logout"
	ReasonExpired = "expired"
)

// SessionEventKind distinguishes session lifecycle events.
type SessionEventKind string

const (
	SessionEstablished SessionEventKind = "established"
	SessionCleared     SessionEventKind = "cleared"
)

// SessionEvent is delivered to subscribers after the change has been persisted.
type SessionEvent struct {
	Kind      SessionEventKind
	SessionID string
	Identity  Identity
	Reason    string
}

// SessionManager orchestrates cookie based sessions backed by Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	sealer     *tokenSealer

	subMu  sync.RWMutex
	subs   map[int]func(context.Context, SessionEvent)
	nextID int
}

// Session holds per-request session data. It is safe for concurrent use by the
// goroutines serving one request.
type Session struct {
	ID string

	mu          sync.Mutex
	values      map[string]string
	identity    *Identity
	token       string
	flashes     []FlashMessage
	previousID  string
	isNew       bool
	dirty       bool
	destroyed   bool
	established bool
}

type sessionPayload struct {
	Values   map[string]string `json:"values"`
	Identity *Identity         `json:"identity,omitempty"`
	Token    string            `json:"token,omitempty"`
	Flashes  []FlashMessage    `json:"flashes"`
}

// NewSessionManager constructs a SessionManager. The secret also keys the
// encryption of bearer tokens at rest.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		sealer:     newTokenSealer([]byte(secret)),
		subs:       make(map[int]func(context.Context, SessionEvent)),
	}
}

// Subscribe registers fn for session lifecycle events and returns a function removing it.
func (sm *SessionManager) Subscribe(fn func(context.Context, SessionEvent)) func() {
	sm.subMu.Lock()
	id := sm.nextID
	sm.nextID++
	sm.subs[id] = fn
	sm.subMu.Unlock()
	return func() {
		sm.subMu.Lock()
		delete(sm.subs, id)
		sm.subMu.Unlock()
	}
}

func (sm *SessionManager) notify(ctx context.Context, evt SessionEvent) {
	sm.subMu.RLock()
	subs := make([]func(context.Context, SessionEvent), 0, len(sm.subs))
	for _, fn := range sm.subs {
		subs = append(subs, fn)
	}
	sm.subMu.RUnlock()
	for _, fn := range subs {
		fn(ctx, evt)
	}
}

// Load loads or creates a new session for request.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newSession(), nil
		}
		return nil, err
	}

	payload, err := sm.client.Get(ctx, sm.redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return sm.newSession(), nil
		}
		return nil, err
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	sess := sm.newSession()
	sess.ID = cookie.Value
	sess.values = stored.Values
	if sess.values == nil {
		sess.values = make(map[string]string)
	}
	sess.identity = stored.Identity
	sess.flashes = stored.Flashes
	if stored.Token != "" {
		// An unreadable token (rotated secret) leaves the session anonymous.
		if token, err := sm.sealer.open(stored.Token); err == nil {
			sess.token = token
		}
	}
	sess.isNew = false
	sess.dirty = false
	return sess, nil
}

// Commit persists the session and writes cookie headers as needed.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}
	evt, err := sm.commitLocked(ctx, w, sess)
	if err != nil {
		return err
	}
	if evt != nil {
		sm.notify(ctx, *evt)
	}
	return nil
}

func (sm *SessionManager) commitLocked(ctx context.Context, w http.ResponseWriter, sess *Session) (*SessionEvent, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.destroyed {
		keys := []string{sm.redisKey(sess.ID)}
		if sess.previousID != "" {
			keys = append(keys, sm.redisKey(sess.previousID))
		}
		if err := sm.client.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return nil, err
		}
		sm.expireCookie(w)
		return nil, nil
	}

	if sess.dirty || sess.isNew {
		data, err := sm.encode(sess)
		if err != nil {
			return nil, err
		}
		if sess.isNew {
			if err := sm.client.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl).Err(); err != nil {
				return nil, err
			}
		} else {
			// A loaded session only updates a key that still exists, so a
			// teardown by a concurrent request is never written back. The
			// cookie is left alone: it may already name a newer login, and a
			// stale id loads as a fresh anonymous session anyway.
			kept, err := sm.client.SetXX(ctx, sm.redisKey(sess.ID), data, sm.ttl).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return nil, err
			}
			if !kept {
				sess.identity = nil
				sess.token = ""
				sess.destroyed = true
				return nil, nil
			}
		}
		if sess.previousID != "" {
			if err := sm.client.Del(ctx, sm.redisKey(sess.previousID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
				return nil, err
			}
			sess.previousID = ""
		}
		sess.dirty = false
		sess.isNew = false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sm.ttl),
	})

	if !sess.established {
		return nil, nil
	}
	sess.established = false
	evt := &SessionEvent{Kind: SessionEstablished, SessionID: sess.ID}
	if sess.identity != nil {
		evt.Identity = *sess.identity
	}
	return evt, nil
}

func (sm *SessionManager) expireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Teardown clears all persisted state of sess right away and reports whether a
// stored session was actually removed. Repeated or concurrent teardowns of the
// same session report true at most once, and only that call notifies subscribers.
func (sm *SessionManager) Teardown(ctx context.Context, sess *Session, reason string) (bool, error) {
	if sess == nil {
		return false, nil
	}
	sess.mu.Lock()
	var identity Identity
	if sess.identity != nil {
		identity = *sess.identity
	}
	sess.identity = nil
	sess.token = ""
	sess.values = make(map[string]string)
	sess.destroyed = true
	id := sess.ID
	sess.mu.Unlock()

	removed, err := sm.client.Del(ctx, sm.redisKey(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	if removed == 0 {
		return false, nil
	}
	sm.notify(ctx, SessionEvent{Kind: SessionCleared, SessionID: id, Identity: identity, Reason: reason})
	return true, nil
}

// Destroy marks the session for deletion on commit without notifying subscribers.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.mu.Lock()
	sess.destroyed = true
	sess.mu.Unlock()
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// TokenStore binds sess to the API client's persistence boundary.
func (sm *SessionManager) TokenStore(sess *Session) *TokenStore {
	return &TokenStore{manager: sm, sess: sess}
}

// TokenStore adapts a Session to apiclient.SessionStore.
type TokenStore struct {
	manager *SessionManager
	sess    *Session
}

// Token implements apiclient.SessionStore.
func (t *TokenStore) Token(context.Context) (string, error) {
	if t.sess == nil {
		return "", nil
	}
	return t.sess.Token(), nil
}

// Clear implements apiclient.SessionStore.
func (t *TokenStore) Clear(ctx context.Context) (bool, error) {
	return t.manager.Teardown(ctx, t.sess, ReasonExpired)
}

var _ apiclient.SessionStore = (*TokenStore)(nil)

// Session helpers

// Establish records a successful login. A session that already lives in
// Redis moves to a fresh id; the old key is removed on commit.
func (s *Session) Establish(identity Identity, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isNew {
		if s.previousID == "" {
			s.previousID = s.ID
		}
		s.ID = newSessionID()
		s.isNew = true
	}
	s.identity = &identity
	s.token = token
	s.destroyed = false
	s.established = true
	s.dirty = true
}

// Identity returns the signed-in user, if any.
func (s *Session) Identity() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// Token returns the bearer token or "".
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Authenticated reports whether the session carries an identity and a token
// that has not visibly expired.
func (s *Session) Authenticated(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil || s.token == "" || s.destroyed {
		return false
	}
	return !apiclient.TokenExpired(s.token, now)
}

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// AddFlash queues a flash message.
func (s *Session) AddFlash(msg FlashMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes = append(s.flashes, msg)
	s.dirty = true
}

// PopFlash retrieves and clears the oldest flash message.
func (s *Session) PopFlash() *FlashMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.flashes) == 0 {
		return nil
	}
	msg := s.flashes[0]
	s.flashes = s.flashes[1:]
	s.dirty = true
	return &msg
}

func (sm *SessionManager) encode(sess *Session) ([]byte, error) {
	payload := sessionPayload{Values: sess.values, Identity: sess.identity, Flashes: sess.flashes}
	if sess.token != "" {
		sealed, err := sm.sealer.seal(sess.token)
		if err != nil {
			return nil, err
		}
		payload.Token = sealed
	}
	return json.Marshal(payload)
}

func (sm *SessionManager) newSession() *Session {
	return &Session{
		ID:     newSessionID(),
		values: make(map[string]string),
		isNew:  true,
		dirty:  true,
	}
}

func (sm *SessionManager) redisKey(id string) string {
	return "console:session:" + id
}

func newSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
