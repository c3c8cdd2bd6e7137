package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/userstore"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type (
	// Profile is what the identity provider tells us about the caller.
	Profile struct {
		ID          string `json:"sub"`
		DisplayName string `json:"name"`
		Email       string `json:"email"`
	}

	ProviderConfig struct {
		ClientID     string
		ClientSecret string
		RedirectURL  string
		AuthURL      string
		TokenURL     string
		UserInfoURL  string
		Scopes       []string
		// HTTPClient is used to talk to the provider, nil means http.DefaultClient
		HTTPClient *http.Client
	}

	// Broker runs the authorization-code flow against a single provider
	// and maps the resulting profile to a local user.
	Broker struct {
		oauth          *oauth2.Config
		userInfoURL    string
		client         *http.Client
		users          UserStore
		keyfn          KeyFn
		insecureCookie bool
		now            func() time.Time
	}
)

const (
	GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	stateCookie   = "secrets_oauth_state"
	stateLifetime = 10 * time.Minute
)

// GoogleProvider returns the configuration for Google sign-in.
func GoogleProvider(clientID, clientSecret, redirectURL string) ProviderConfig {
	return ProviderConfig{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		AuthURL:      google.Endpoint.AuthURL,
		TokenURL:     google.Endpoint.TokenURL,
		UserInfoURL:  GoogleUserInfoURL,
		Scopes:       []string{"email", "profile"},
	}
}

func NewBroker(cfg ProviderConfig, users UserStore, keyfn KeyFn, insecureCookie bool) (*Broker, error) {
	switch {
	case cfg.ClientID == "":
		return nil, errors.New("auth: missing oauth client id")
	case cfg.AuthURL == "" || cfg.TokenURL == "" || cfg.UserInfoURL == "":
		return nil, errors.New("auth: incomplete provider endpoints")
	case keyfn == nil:
		return nil, errors.New("auth: missing state key")
	}
	return &Broker{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL:    cfg.UserInfoURL,
		client:         cfg.HTTPClient,
		users:          users,
		keyfn:          keyfn,
		insecureCookie: insecureCookie,
		now:            time.Now,
	}, nil
}

// Begin redirects the caller to the provider. The state parameter is a
// signed token whose nonce is also kept in a cookie, both must match on
// the way back.
func (b *Broker) Begin(w http.ResponseWriter, r *http.Request) error {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return fmt.Errorf("unable to generate state nonce, cause %w", err)
	}
	nonce := hex.EncodeToString(raw[:])
	now := b.now()
	key, err := b.keyfn(r.Context())
	if err != nil {
		return fmt.Errorf("unable to load state key, cause %w", err)
	}
	defer key.Zero()
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        nonce,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateLifetime)),
	}).SignedString(key[:])
	if err != nil {
		return fmt.Errorf("unable to sign state, cause %w", err)
	}
	http.SetCookie(w, b.stateCookie(nonce, int(stateLifetime.Seconds())))
	http.Redirect(w, r, b.oauth.AuthCodeURL(state), http.StatusFound)
	return nil
}

// Complete handles the provider callback. Provider side failures are
// reported as ErrProviderExchangeFailed, store failures are returned as-is.
// No user is created unless the profile was obtained.
func (b *Broker) Complete(w http.ResponseWriter, r *http.Request) (*userstore.User, error) {
	ctx := r.Context()
	defer http.SetCookie(w, b.stateCookie("", -1))

	q := r.URL.Query()
	if perr := q.Get("error"); perr != "" {
		return nil, fmt.Errorf("%w, cause provider returned %q", ErrProviderExchangeFailed, perr)
	}
	if err := b.checkState(ctx, r, q.Get("state")); err != nil {
		return nil, fmt.Errorf("%w, cause %v", ErrProviderExchangeFailed, err)
	}
	code := q.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%w, cause missing authorization code", ErrProviderExchangeFailed)
	}
	if b.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.client)
	}
	tok, err := b.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w, cause %v", ErrProviderExchangeFailed, err)
	}
	profile, err := b.fetchProfile(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("%w, cause %v", ErrProviderExchangeFailed, err)
	}
	return b.Resolve(ctx, profile)
}

// Resolve returns the user bound to the profile, creating it on first
// sight.
func (b *Broker) Resolve(ctx context.Context, p Profile) (*userstore.User, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("%w, cause profile without subject", ErrProviderExchangeFailed)
	}
	username := p.DisplayName
	if username == "" {
		username = p.Email
	}
	if username == "" {
		username = p.ID
	}
	u, created, err := b.users.FindOrCreateFederated(ctx, userstore.User{
		FederatedID: p.ID,
		Username:    username,
		Email:       p.Email,
	})
	if err != nil {
		return nil, err
	}
	if created {
		log := logutil.GetOrDefault(ctx)
		log.Info().Str("user_id", u.ID).Msg("Federated user created")
	}
	return u, nil
}

func (b *Broker) checkState(ctx context.Context, r *http.Request, state string) error {
	if state == "" {
		return errors.New("missing state")
	}
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" {
		return errors.New("missing state cookie")
	}
	key, err := b.keyfn(ctx)
	if err != nil {
		return err
	}
	defer key.Zero()
	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(state, &claims, func(*jwt.Token) (interface{}, error) {
		return key[:], nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(b.now))
	if err != nil {
		return fmt.Errorf("invalid state, cause %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(claims.ID), []byte(c.Value)) != 1 {
		return errors.New("state does not match cookie")
	}
	return nil
}

func (b *Broker) fetchProfile(ctx context.Context, tok *oauth2.Token) (Profile, error) {
	var p Profile
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.userInfoURL, nil)
	if err != nil {
		return p, err
	}
	res, err := b.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return p, fmt.Errorf("unable to fetch profile, cause %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return p, fmt.Errorf("profile endpoint answered %v", res.Status)
	}
	err = json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&p)
	if err != nil {
		return p, fmt.Errorf("unable to decode profile, cause %w", err)
	}
	return p, nil
}

func (b *Broker) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     stateCookie,
		Value:    value,
		Path:     "/auth/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !b.insecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
