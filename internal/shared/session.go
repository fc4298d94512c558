package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// SessionUser is the sanitized user snapshot embedded in a session.
// The password hash is never part of this struct.
type SessionUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Hospital string `json:"hospital"`
	Position string `json:"position"`
}

// SessionManager orchestrates cookie based sessions backed by Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session holds per-request session data.
type Session struct {
	ID        string
	user      *SessionUser
	createdAt time.Time
	manager   *SessionManager
	isNew     bool
	dirty     bool
	destroyed bool
}

// StoredSession is a live session as seen by a bulk enumeration.
type StoredSession struct {
	ID   string
	User *SessionUser
}

type sessionPayload struct {
	User      *SessionUser `json:"user,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
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
			sess := sm.newSession()
			sess.ID = cookie.Value
			sess.isNew = true
			return sess, nil
		}
		return nil, err
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	sess := sm.newSession()
	sess.ID = cookie.Value
	sess.user = stored.User
	sess.createdAt = stored.CreatedAt
	sess.isNew = false
	sess.dirty = false
	return sess, nil
}

// Save persists the session to Redis immediately. Login uses this before the
// eviction scan so the scan observes the session it must keep.
func (sm *SessionManager) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.destroyed {
		return nil
	}
	if sess.ID == "" {
		sess.ID = sm.generateSessionID()
	}
	data, err := json.Marshal(sessionPayload{User: sess.user, CreatedAt: sess.createdAt})
	if err != nil {
		return err
	}
	if err := sm.client.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl).Err(); err != nil {
		return err
	}
	sess.dirty = false
	return nil
}

// Commit persists the session and writes cookie headers as needed.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		if err := sm.client.Del(ctx, sm.redisKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
		})
		return nil
	}

	if sess.dirty || sess.isNew {
		if err := sm.Save(ctx, sess); err != nil {
			return err
		}
	}

	if sess.ID != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
			Expires:  time.Now().Add(sm.ttl),
		})
	}

	return nil
}

// Destroy marks the session for deletion.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// LiveSessions enumerates every live session in the store.
func (sm *SessionManager) LiveSessions(ctx context.Context) ([]StoredSession, error) {
	var (
		sessions []StoredSession
		cursor   uint64
	)
	for {
		keys, next, err := sm.client.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			payload, err := sm.client.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue // expired between scan and get
				}
				return nil, err
			}
			var stored sessionPayload
			if err := json.Unmarshal(payload, &stored); err != nil {
				continue
			}
			sessions = append(sessions, StoredSession{ID: key[len(sessionKeyPrefix):], User: stored.User})
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return sessions, nil
}

// EvictUserSessions destroys every live session carrying userID except keepID.
// Callers must persist the surviving session before invoking this, otherwise
// the scan cannot observe it. Returns the number of sessions destroyed.
func (sm *SessionManager) EvictUserSessions(ctx context.Context, userID, keepID string) (int, error) {
	sessions, err := sm.LiveSessions(ctx)
	if err != nil {
		return 0, err
	}
	evicted := 0
	for _, stored := range sessions {
		if stored.User == nil || stored.User.ID != userID || stored.ID == keepID {
			continue
		}
		if err := sm.client.Del(ctx, sm.redisKey(stored.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return evicted, err
		}
		evicted++
	}
	return evicted, nil
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// Session helpers

// SetUser associates the session with a sanitized user snapshot.
func (s *Session) SetUser(user *SessionUser) {
	s.user = user
	s.dirty = true
}

// User returns the embedded user snapshot, nil when unauthenticated.
func (s *Session) User() *SessionUser {
	if s == nil {
		return nil
	}
	return s.user
}

// CreatedAt reports when the session was first issued.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Destroyed reports whether the session is marked for deletion.
func (s *Session) Destroyed() bool {
	return s.destroyed
}

func (sm *SessionManager) newSession() *Session {
	return &Session{
		ID:        sm.generateSessionID(),
		createdAt: time.Now().UTC(),
		manager:   sm,
		isNew:     true,
		dirty:     true,
	}
}

func (sm *SessionManager) redisKey(id string) string {
	return sessionKeyPrefix + id
}

func (sm *SessionManager) generateSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	if len(sm.secret) > 0 {
		for i := range b {
			b[i] ^= sm.secret[i%len(sm.secret)]
		}
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
