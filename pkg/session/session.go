// Package session keeps login state in a signed cookie backed by Redis.
// The cookie carries a JWT whose ID names the server-side session record;
// deleting the record revokes the cookie before it expires.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultCookieName = "itdesk_session"

var ErrNoSession = errors.New("no active session")

type Options struct {
	Secret     string
	TTL        time.Duration
	Secure     bool
	CookieName string
}

type Session struct {
	ID        string
	UserID    uint
	Role      string
	ExpiresAt time.Time
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Manager struct {
	rdb        *redis.Client
	secret     []byte
	ttl        time.Duration
	secure     bool
	cookieName string
}

// NewManager builds a session manager. With a nil Redis client sessions are
// stateless and only expire with the cookie.
func NewManager(rdb *redis.Client, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 12 * time.Hour
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	return &Manager{
		rdb:        rdb,
		secret:     []byte(opts.Secret),
		ttl:        opts.TTL,
		secure:     opts.Secure,
		cookieName: opts.CookieName,
	}
}

func redisKey(id string) string {
	return "session:" + id
}

// Create issues a signed token for userID and records the session.
func (m *Manager) Create(ctx context.Context, userID uint, role string) (string, *Session, error) {
	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		ExpiresAt: now.Add(m.ttl),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session: %w", err)
	}

	if m.rdb != nil {
		if err := m.rdb.Set(ctx, redisKey(sess.ID), sess.UserID, m.ttl).Err(); err != nil {
			return "", nil, fmt.Errorf("failed to store session: %w", err)
		}
	}

	return token, sess, nil
}

// Resolve verifies token and checks that its session has not been revoked.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrNoSession
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || c.ID == "" {
		return nil, ErrNoSession
	}

	userID, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return nil, ErrNoSession
	}

	if m.rdb != nil {
		stored, err := m.rdb.Get(ctx, redisKey(c.ID)).Result()
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
		if stored != c.Subject {
			return nil, ErrNoSession
		}
	}

	sess := &Session{ID: c.ID, UserID: uint(userID), Role: c.Role}
	if c.ExpiresAt != nil {
		sess.ExpiresAt = c.ExpiresAt.Time
	}
	return sess, nil
}

// Revoke deletes the server-side record for sessionID.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	if m.rdb == nil || sessionID == "" {
		return nil
	}
	return m.rdb.Del(ctx, redisKey(sessionID)).Err()
}

// Start creates a session and writes the cookie.
func (m *Manager) Start(c *gin.Context, userID uint, role string) (*Session, error) {
	token, sess, err := m.Create(c.Request.Context(), userID, role)
	if err != nil {
		return nil, err
	}
	m.writeCookie(c, token, int(m.ttl.Seconds()))
	return sess, nil
}

// Load resolves the session carried by the request cookie.
func (m *Manager) Load(c *gin.Context) (*Session, error) {
	token, err := c.Cookie(m.cookieName)
	if err != nil {
		return nil, ErrNoSession
	}
	return m.Resolve(c.Request.Context(), token)
}

// End revokes the request's session, if any, and clears the cookie.
func (m *Manager) End(c *gin.Context) error {
	var err error
	if sess, loadErr := m.Load(c); loadErr == nil {
		err = m.Revoke(c.Request.Context(), sess.ID)
	}
	m.writeCookie(c, "", -1)
	return err
}

func (m *Manager) writeCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, value, maxAge, "/", "", m.secure, true)
}
