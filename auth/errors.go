package auth

import "errors"

var (
	ErrDuplicateOrInvalid     = errors.New("auth: duplicate or invalid registration")
	ErrInvalidCredentials     = errors.New("auth: invalid credentials")
	ErrUnauthenticated        = errors.New("auth: unauthenticated")
	ErrProviderExchangeFailed = errors.New("auth: provider exchange failed")
)
