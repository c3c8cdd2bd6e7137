package api

import (
	"context"

	"github.com/andrebq/secrets/auth"
	"github.com/andrebq/secrets/userstore"
)

type (
	// Users is the store as seen by the web layer.
	Users interface {
		auth.UserStore
		Save(ctx context.Context, u *userstore.User) error
		FindAllWithSecret(ctx context.Context) ([]userstore.User, error)
		Ping(ctx context.Context) error
	}

	// Realm bundles everything needed to authenticate a request. It is
	// built once at startup and passed to the router.
	Realm struct {
		Users       Users
		Credentials *auth.Credentials
		Sessions    *auth.Sessions
		// Broker is nil when federated login is disabled
		Broker *auth.Broker
	}
)

func NewRealm(users Users, creds *auth.Credentials, sessions *auth.Sessions, broker *auth.Broker) *Realm {
	return &Realm{
		Users:       users,
		Credentials: creds,
		Sessions:    sessions,
		Broker:      broker,
	}
}
