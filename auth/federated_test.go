package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/andrebq/secrets/internal/testutil"
	"github.com/andrebq/secrets/userstore"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	*httptest.Server
	profile   Profile
	failToken atomic.Bool
}

func newFakeProvider(t *testing.T, p Profile) *fakeProvider {
	fp := &fakeProvider{profile: p}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if fp.failToken.Load() {
			http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(fp.profile)
	})
	fp.Server = httptest.NewServer(mux)
	t.Cleanup(fp.Close)
	return fp
}

func (fp *fakeProvider) config() ProviderConfig {
	return ProviderConfig{
		ClientID:     "client-1",
		ClientSecret: "shh",
		RedirectURL:  "http://localhost:7000/auth/google/secrets",
		AuthURL:      fp.URL + "/authorize",
		TokenURL:     fp.URL + "/token",
		UserInfoURL:  fp.URL + "/userinfo",
		Scopes:       []string{"email", "profile"},
		HTTPClient:   fp.Client(),
	}
}

func testKeyFn(t *testing.T) KeyFn {
	keyfn, err := KeyFnFromEnv(StateKeyEnvVar, func(string) string { return "" }, func(string, string) error { return nil })
	require.NoError(t, err)
	return keyfn
}

// beginLogin runs Begin and returns the state and cookie the browser would
// carry back to the callback.
func beginLogin(t *testing.T, b *Broker) (string, *http.Cookie) {
	rec := httptest.NewRecorder()
	require.NoError(t, b.Begin(rec, httptest.NewRequest(http.MethodGet, "/auth/google", nil)))
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "client-1", loc.Query().Get("client_id"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return loc.Query().Get("state"), cookies[0]
}

func callback(state, code string, c *http.Cookie) *http.Request {
	q := url.Values{}
	q.Set("state", state)
	q.Set("code", code)
	req := httptest.NewRequest(http.MethodGet, "/auth/google/secrets?"+q.Encode(), nil)
	if c != nil {
		req.AddCookie(c)
	}
	return req
}

func TestFederatedLoginIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireUserStore(ctx, t)
	defer cleanup()
	fp := newFakeProvider(t, Profile{ID: "g-123", DisplayName: "Gina", Email: "gina@x.com"})
	b, err := NewBroker(fp.config(), store, testKeyFn(t), true)
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 2; i++ {
		state, c := beginLogin(t, b)
		u, err := b.Complete(httptest.NewRecorder(), callback(state, "good-code", c))
		require.NoError(t, err)
		require.Equal(t, "Gina", u.Username)
		require.Equal(t, "gina@x.com", u.Email)
		require.Equal(t, "g-123", u.FederatedID)
		require.Empty(t, u.PasswordHash)
		ids = append(ids, u.ID)
	}
	require.Equal(t, ids[0], ids[1])
}

func TestFederatedLoginRejectsBadState(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireUserStore(ctx, t)
	defer cleanup()
	fp := newFakeProvider(t, Profile{ID: "g-123", DisplayName: "Gina"})
	b, err := NewBroker(fp.config(), store, testKeyFn(t), true)
	require.NoError(t, err)
	other, err := NewBroker(fp.config(), store, testKeyFn(t), true)
	require.NoError(t, err)

	state, c := beginLogin(t, b)
	foreignState, foreignCookie := beginLogin(t, other)

	for name, req := range map[string]*http.Request{
		"no cookie":        callback(state, "good-code", nil),
		"wrong cookie":     callback(state, "good-code", foreignCookie),
		"foreign key":      callback(foreignState, "good-code", foreignCookie),
		"tampered":         callback(state+"x", "good-code", c),
		"bad code":         callback(state, "bad-code", c),
		"provider refused": httptest.NewRequest(http.MethodGet, "/auth/google/secrets?error=access_denied", nil),
	} {
		_, err := b.Complete(httptest.NewRecorder(), req)
		require.ErrorIs(t, err, ErrProviderExchangeFailed, name)
	}

	_, err = store.FindByFederatedID(ctx, "g-123")
	var notFound userstore.UserNotFound
	require.True(t, errors.As(err, &notFound), "no user should be created on failure")
}

func TestFederatedProviderFailureCreatesNoUser(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireUserStore(ctx, t)
	defer cleanup()
	fp := newFakeProvider(t, Profile{ID: "g-9", DisplayName: "Gus"})
	fp.failToken.Store(true)
	b, err := NewBroker(fp.config(), store, testKeyFn(t), true)
	require.NoError(t, err)

	state, c := beginLogin(t, b)
	_, err = b.Complete(httptest.NewRecorder(), callback(state, "good-code", c))
	require.ErrorIs(t, err, ErrProviderExchangeFailed)

	_, err = store.FindByFederatedID(ctx, "g-9")
	require.Error(t, err)
}

func TestResolveFallsBackForUsername(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireUserStore(ctx, t)
	defer cleanup()
	b, err := NewBroker(GoogleProvider("client-1", "shh", "http://localhost/cb"), store, testKeyFn(t), false)
	require.NoError(t, err)

	u, err := b.Resolve(ctx, Profile{ID: "g-1", Email: "e@x.com"})
	require.NoError(t, err)
	require.Equal(t, "e@x.com", u.Username)

	u, err = b.Resolve(ctx, Profile{ID: "g-2"})
	require.NoError(t, err)
	require.Equal(t, "g-2", u.Username)

	_, err = b.Resolve(ctx, Profile{})
	require.ErrorIs(t, err, ErrProviderExchangeFailed)
}
