package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/userstore"
)

type (
	// UserStore is the subset of userstore.Store used by this package.
	UserStore interface {
		FindByID(ctx context.Context, id string) (*userstore.User, error)
		FindByUsername(ctx context.Context, username string) ([]userstore.User, error)
		Create(ctx context.Context, u userstore.User) (*userstore.User, error)
		FindOrCreateFederated(ctx context.Context, u userstore.User) (*userstore.User, bool, error)
	}

	// Credentials registers and verifies local accounts.
	Credentials struct {
		users  UserStore
		hasher PasswordHasher
		// compared when the username is unknown, so both failure modes
		// cost the same
		decoy string
	}
)

func NewCredentials(users UserStore, hasher PasswordHasher) (*Credentials, error) {
	decoy, err := hasher.Hash(PlainText("not a real password"))
	if err != nil {
		return nil, fmt.Errorf("unable to prepare credential verifier, cause %w", err)
	}
	return &Credentials{
		users:  users,
		hasher: hasher,
		decoy:  decoy,
	}, nil
}

// Register creates a local account. An empty username falls back to the
// email and vice versa. A username already used by another local account
// is rejected, federated accounts do not reserve usernames.
//
// passwd is zeroed before returning.
func (c *Credentials) Register(ctx context.Context, email, username string, passwd PlainText) (*userstore.User, error) {
	defer passwd.Zero()
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if username == "" {
		username = email
	}
	if email == "" {
		email = username
	}
	if username == "" || len(passwd) == 0 {
		return nil, ErrDuplicateOrInvalid
	}
	existing, err := c.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].Local() {
			return nil, ErrDuplicateOrInvalid
		}
	}
	hash, err := c.hasher.Hash(passwd)
	if err != nil {
		return nil, fmt.Errorf("%w, cause %v", ErrDuplicateOrInvalid, err)
	}
	return c.users.Create(ctx, userstore.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
	})
}

// Verify returns the local account matching username and passwd.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
//
// passwd is zeroed before returning.
func (c *Credentials) Verify(ctx context.Context, username string, passwd PlainText) (*userstore.User, error) {
	defer passwd.Zero()
	log := logutil.GetOrDefault(ctx)
	candidates, err := c.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	compared := false
	for i := range candidates {
		u := candidates[i]
		if !u.Local() {
			continue
		}
		compared = true
		ok, err := c.hasher.Compare(u.PasswordHash, passwd)
		if err != nil {
			log.Warn().Err(err).Str("user_id", u.ID).Msg("Stored password hash cannot be interpreted")
			continue
		}
		if ok {
			return &u, nil
		}
	}
	if !compared {
		c.hasher.Compare(c.decoy, passwd)
	}
	return nil, ErrInvalidCredentials
}
