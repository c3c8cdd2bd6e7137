package auth

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/userstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeUsers map[string]*userstore.User

func (f fakeUsers) FindByID(_ context.Context, id string) (*userstore.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, userstore.UserNotFound{Key: id}
	}
	cp := *u
	return &cp, nil
}

func acquireSessions(t *testing.T, users fakeUsers) (*Sessions, SessionStore) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	store, err := InMemorySessionStore(ctx, time.Hour)
	require.NoError(t, err)
	return NewSessions(store, users, SessionOptions{TTL: time.Hour}), store
}

func TestEstablishThenRestore(t *testing.T) {
	ctx := context.Background()
	users := fakeUsers{"u-1": {ID: "u-1", Username: "alice"}}
	sessions, _ := acquireSessions(t, users)

	rec := httptest.NewRecorder()
	token, err := sessions.Establish(ctx, rec, users["u-1"])
	require.NoError(t, err)
	require.NotEmpty(t, token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	require.Equal(t, DefaultSessionCookie, c.Name)
	require.Equal(t, token, c.Value)
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, http.SameSiteLaxMode, c.SameSite)

	req := httptest.NewRequest(http.MethodGet, "/secrets", nil)
	req.AddCookie(c)
	u, err := sessions.RestoreRequest(req)
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Equal(t, "u-1", u.ID)

	other, err := sessions.Establish(ctx, httptest.NewRecorder(), users["u-1"])
	require.NoError(t, err)
	require.NotEqual(t, token, other)
}

func TestRestoreRereadsTheUser(t *testing.T) {
	ctx := context.Background()
	users := fakeUsers{"u-1": {ID: "u-1", Username: "alice"}}
	sessions, _ := acquireSessions(t, users)

	token, err := sessions.Establish(ctx, httptest.NewRecorder(), users["u-1"])
	require.NoError(t, err)
	users["u-1"].Secret = "updated"

	u, err := sessions.Restore(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "updated", u.Secret)

	delete(users, "u-1")
	u, err = sessions.Restore(ctx, token)
	require.NoError(t, err)
	require.Nil(t, u)
}

func TestRestoreUnknownOrExpired(t *testing.T) {
	ctx := context.Background()
	users := fakeUsers{"u-1": {ID: "u-1", Username: "alice"}}
	sessions, store := acquireSessions(t, users)

	for _, token := range []string{"", "not-a-token"} {
		u, err := sessions.Restore(ctx, token)
		require.NoError(t, err)
		require.Nil(t, u)
	}

	token, err := sessions.Establish(ctx, httptest.NewRecorder(), users["u-1"])
	require.NoError(t, err)
	sessions.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	u, err := sessions.Restore(ctx, token)
	require.NoError(t, err)
	require.Nil(t, u)

	entry, err := store.Lookup(ctx, token)
	require.NoError(t, err)
	require.Nil(t, entry, "expired sessions should be dropped")
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	users := fakeUsers{"u-1": {ID: "u-1", Username: "alice"}}
	sessions, _ := acquireSessions(t, users)

	token, err := sessions.Establish(ctx, httptest.NewRecorder(), users["u-1"])
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, sessions.Invalidate(ctx, rec, token))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "", cookies[0].Value)
	require.True(t, cookies[0].MaxAge < 0)

	u, err := sessions.Restore(ctx, token)
	require.NoError(t, err)
	require.Nil(t, u)

	// anonymous logout is a no-op
	require.NoError(t, sessions.Invalidate(ctx, httptest.NewRecorder(), ""))
}

func TestInsecureCookie(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store, err := InMemorySessionStore(ctx, time.Minute)
	require.NoError(t, err)
	users := fakeUsers{"u-1": {ID: "u-1"}}
	sessions := NewSessions(store, users, SessionOptions{InsecureCookie: true, CookieName: "sid"})

	rec := httptest.NewRecorder()
	_, err = sessions.Establish(ctx, rec, users["u-1"])
	require.NoError(t, err)
	c := rec.Result().Cookies()[0]
	require.Equal(t, "sid", c.Name)
	require.False(t, c.Secure)

	_, err = sessions.Establish(ctx, rec, &userstore.User{})
	require.Error(t, err)
}

func TestLoginDropsPreviousSession(t *testing.T) {
	ctx := context.Background()
	users := fakeUsers{"u-1": {ID: "u-1", Username: "alice"}}
	sessions, _ := acquireSessions(t, users)

	rec := httptest.NewRecorder()
	first, err := sessions.Establish(ctx, rec, users["u-1"])
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	second, err := sessions.Login(httptest.NewRecorder(), req, users["u-1"])
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	u, err := sessions.Restore(ctx, first)
	require.NoError(t, err)
	require.Nil(t, u, "the previous token must stop working")

	u, err = sessions.Restore(ctx, second)
	require.NoError(t, err)
	require.Equal(t, "u-1", u.ID)
}

func TestSessionLogsUseContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := logutil.WithLogger(context.Background(), zerolog.New(&buf).Level(zerolog.DebugLevel))
	users := fakeUsers{"u-1": {ID: "u-1", Username: "alice"}}
	sessions, _ := acquireSessions(t, users)

	token, err := sessions.Establish(ctx, httptest.NewRecorder(), users["u-1"])
	require.NoError(t, err)
	require.Contains(t, buf.String(), "Session established")
	require.Contains(t, buf.String(), `"user_id":"u-1"`)
	require.NotContains(t, buf.String(), token)
}
