package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "dojo_session", "secret", time.Hour, false), mr
}

func commitAndCookie(t *testing.T, sm *SessionManager, sess *Session) *http.Cookie {
	t.Helper()
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rr, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestSessionRoundTrip(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Set("earnings_period", "3months")
	sess.AddFlash(FlashMessage{Kind: "info", Message: "Dashboard refreshed"})
	cookie := commitAndCookie(t, sm, sess)
	assert.True(t, mr.Exists(sessionKeyPrefix+sess.ID))
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "3months", loaded.Get("earnings_period"))

	flash := loaded.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Dashboard refreshed", flash.Message)
	assert.Nil(t, loaded.PopFlash())
}

func TestSessionRejectsTamperedCookie(t *testing.T) {
	sm, _ := newTestSessions(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	cookie := commitAndCookie(t, sm, sess)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookie.Name, Value: sess.ID + ".forged"})
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, loaded.ID)
}

func TestSessionDestroyClearsStore(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	commitAndCookie(t, sm, sess)

	sm.Destroy(sess)
	cookie := commitAndCookie(t, sm, sess)
	assert.Equal(t, -1, cookie.MaxAge)
	assert.False(t, mr.Exists(sessionKeyPrefix+sess.ID))
}

func TestUnchangedSessionExtendsExpiry(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	commitAndCookie(t, sm, sess)

	mr.FastForward(30 * time.Minute)
	commitAndCookie(t, sm, sess)
	assert.Equal(t, time.Hour, mr.TTL(sessionKeyPrefix+sess.ID))
}

func TestCSRFTokens(t *testing.T) {
	m := NewCSRFManager("secret")
	ctx := context.Background()
	sess := &Session{ID: "s1"}

	token, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	again, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, m.VerifyToken(ctx, sess, token))
	assert.ErrorIs(t, m.VerifyToken(ctx, &Session{ID: "s2"}, token), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, m.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.VerifyToken(ctx, nil, token), ErrCSRFTokenMissing)

	_, err = m.EnsureToken(ctx, nil)
	assert.Error(t, err)
}
