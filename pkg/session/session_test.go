package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client
}

func TestManager_CreateResolveRevoke(t *testing.T) {
	ctx := context.Background()
	m := NewManager(setupTestRedis(t), Options{Secret: "test-secret", TTL: time.Hour})

	token, sess, err := m.Create(ctx, 42, "user")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)

	resolved, err := m.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), resolved.UserID)
	assert.Equal(t, "user", resolved.Role)
	assert.Equal(t, sess.ID, resolved.ID)

	require.NoError(t, m.Revoke(ctx, sess.ID))
	_, err = m.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_RejectsForeignTokens(t *testing.T) {
	ctx := context.Background()
	rdb := setupTestRedis(t)

	issuer := NewManager(rdb, Options{Secret: "other-secret"})
	token, _, err := issuer.Create(ctx, 1, "super_admin")
	require.NoError(t, err)

	m := NewManager(rdb, Options{Secret: "test-secret"})
	_, err = m.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = m.Resolve(ctx, "")
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = m.Resolve(ctx, "not.a.jwt")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_Stateless(t *testing.T) {
	ctx := context.Background()
	m := NewManager(nil, Options{Secret: "test-secret"})

	token, sess, err := m.Create(ctx, 9, "user")
	require.NoError(t, err)

	// Without Redis there is nothing to revoke; the token stays valid.
	require.NoError(t, m.Revoke(ctx, sess.ID))
	resolved, err := m.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uint(9), resolved.UserID)
}

func TestManager_CookieRoundTrip(t *testing.T) {
	m := NewManager(setupTestRedis(t), Options{Secret: "test-secret"})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/login", nil)

	_, err := m.Start(c, 5, "user")
	require.NoError(t, err)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	c2.Request = httptest.NewRequest(http.MethodGet, "/user-dashboard", nil)
	c2.Request.AddCookie(cookies[0])

	sess, err := m.Load(c2)
	require.NoError(t, err)
	assert.Equal(t, uint(5), sess.UserID)

	require.NoError(t, m.End(c2))
	_, err = m.Resolve(context.Background(), cookies[0].Value)
	assert.ErrorIs(t, err, ErrNoSession)
}
