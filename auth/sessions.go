package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/userstore"
)

type (
	userFinder interface {
		FindByID(ctx context.Context, id string) (*userstore.User, error)
	}

	SessionOptions struct {
		CookieName string
		TTL        time.Duration
		// InsecureCookie drops the Secure flag, only for plain HTTP on localhost
		InsecureCookie bool
	}

	// Sessions converts identities into opaque tokens and back.
	Sessions struct {
		store          SessionStore
		users          userFinder
		cookieName     string
		ttl            time.Duration
		insecureCookie bool
		now            func() time.Time
	}
)

const (
	DefaultSessionCookie = "secrets_session"
	DefaultSessionTTL    = 24 * time.Hour
)

func NewSessions(store SessionStore, users userFinder, opts SessionOptions) *Sessions {
	if opts.CookieName == "" {
		opts.CookieName = DefaultSessionCookie
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultSessionTTL
	}
	return &Sessions{
		store:          store,
		users:          users,
		cookieName:     opts.CookieName,
		ttl:            opts.TTL,
		insecureCookie: opts.InsecureCookie,
		now:            time.Now,
	}
}

// Establish records a new session for u and attaches its token to w.
// The caller is logged in only after Establish returns without error.
func (s *Sessions) Establish(ctx context.Context, w http.ResponseWriter, u *userstore.User) (string, error) {
	if u == nil || u.ID == "" {
		return "", errors.New("cannot establish a session without a user id")
	}
	token, err := newToken()
	if err != nil {
		return "", err
	}
	err = s.store.Save(ctx, token, SessionEntry{
		UserID:    u.ID,
		Username:  u.Username,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("unable to save session, cause %w", err)
	}
	http.SetCookie(w, s.cookie(token, int(s.ttl.Seconds())))
	log := logutil.GetOrDefault(ctx)
	log.Debug().Str("user_id", u.ID).Msg("Session established")
	return token, nil
}

// Login establishes a session for u and forgets the one r already
// carried, if any.
func (s *Sessions) Login(w http.ResponseWriter, r *http.Request, u *userstore.User) (string, error) {
	ctx := r.Context()
	if previous := s.Token(r); previous != "" {
		if err := s.store.Delete(ctx, previous); err != nil {
			return "", fmt.Errorf("unable to delete previous session, cause %w", err)
		}
	}
	return s.Establish(ctx, w, u)
}

// Token extracts the session token from r, empty if there is none.
func (s *Sessions) Token(r *http.Request) string {
	c, err := r.Cookie(s.cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// Restore returns the user bound to token, or nil when the token is
// unknown, expired or points to a user that no longer exists.
// The user is always re-read from the store.
func (s *Sessions) Restore(ctx context.Context, token string) (*userstore.User, error) {
	if token == "" {
		return nil, nil
	}
	entry, err := s.store.Lookup(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("unable to lookup session, cause %w", err)
	}
	if entry == nil {
		return nil, nil
	}
	if s.now().Sub(entry.CreatedAt) > s.ttl {
		s.drop(ctx, token)
		return nil, nil
	}
	u, err := s.users.FindByID(ctx, entry.UserID)
	var notFound userstore.UserNotFound
	if errors.As(err, &notFound) {
		s.drop(ctx, token)
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return u, nil
}

// RestoreRequest is Restore using the token carried by r.
func (s *Sessions) RestoreRequest(r *http.Request) (*userstore.User, error) {
	return s.Restore(r.Context(), s.Token(r))
}

// Invalidate forgets token and expires the cookie on w.
func (s *Sessions) Invalidate(ctx context.Context, w http.ResponseWriter, token string) error {
	if token != "" {
		if err := s.store.Delete(ctx, token); err != nil {
			return fmt.Errorf("unable to delete session, cause %w", err)
		}
	}
	c := s.cookie("", -1)
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
	return nil
}

func (s *Sessions) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !s.insecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Sessions) drop(ctx context.Context, token string) {
	if err := s.store.Delete(ctx, token); err != nil {
		log := logutil.GetOrDefault(ctx)
		log.Warn().Err(err).Msg("Unable to drop stale session")
	}
}

func newToken() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("unable to generate session token, cause %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}
