package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/andrebq/secrets/auth"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/userstore"
)

type (
	ctxKey byte
)

const (
	LoginPath = "/login"
)

var (
	userKey       = ctxKey(1)
	restoreErrKey = ctxKey(2)
)

// Identify restores the caller's session once per request and stores the
// user in the request context. Anonymous requests pass through. When the
// session cannot be restored the request continues as anonymous and
// Protect refuses it, so public pages and logout keep working.
func (s *Realm) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := s.Sessions.RestoreRequest(r)
		if err != nil {
			log := logutil.GetOrDefault(r.Context())
			log.Error().Err(err).Msg("Unable to restore session")
			r = r.WithContext(context.WithValue(r.Context(), restoreErrKey, err))
		} else if u != nil {
			r = r.WithContext(context.WithValue(r.Context(), userKey, u))
		}
		next.ServeHTTP(w, r)
	})
}

// Protect redirects anonymous callers to the login page, or fails the
// request when Identify could not tell who the caller is.
func (s *Realm) Protect(sensitive http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err, ok := r.Context().Value(restoreErrKey).(error); ok {
			WriteStoreError(w, err)
			return
		}
		if !s.IsAuthenticated(r) {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}
		sensitive.ServeHTTP(w, r)
	})
}

func (s *Realm) IsAuthenticated(r *http.Request) bool {
	return UserFromContext(r.Context()) != nil
}

// AuthorizeSecretSubmission returns the record a secret may be written
// to, which is always the session's own user.
func (s *Realm) AuthorizeSecretSubmission(r *http.Request) (*userstore.User, error) {
	u := UserFromContext(r.Context())
	if u == nil {
		return nil, auth.ErrUnauthenticated
	}
	cp := *u
	return &cp, nil
}

func UserFromContext(ctx context.Context) *userstore.User {
	u, _ := ctx.Value(userKey).(*userstore.User)
	return u
}

// WriteStoreError answers 503 when the store is unavailable and 500 for
// anything else.
func WriteStoreError(w http.ResponseWriter, err error) {
	var unavailable userstore.Unavailable
	if errors.As(err, &unavailable) {
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "Internal error", http.StatusInternalServerError)
}
