package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
)

type (
	// Key signs the federated login state.
	Key [32]byte

	KeyFn func(context.Context) (*Key, error)
)

const (
	StateKeyEnvVar = "SECRETS_STATE_KEY"
)

func (k *Key) Zero() {
	for i := range k {
		k[i] = 0
	}
}

// KeyFnFromEnv reads a base64 key from varname and clears the variable.
// When the variable is empty a random key is generated, which means
// in-flight federated logins do not survive a restart.
func KeyFnFromEnv(varname string, getfn func(string) string, setfn func(string, string) error) (KeyFn, error) {
	if getfn == nil {
		getfn = os.Getenv
	}
	if setfn == nil {
		setfn = os.Setenv
	}
	val := getfn(varname)
	setfn(varname, "")
	var stateKey Key
	if val == "" {
		if _, err := rand.Read(stateKey[:]); err != nil {
			return nil, fmt.Errorf("auth: unable to generate state key, cause %w", err)
		}
	} else {
		buf, err := base64.StdEncoding.DecodeString(val)
		if err != nil {
			return nil, fmt.Errorf("auth: cannot decode string to valid key, cause %v", err)
		} else if len(buf) != len(stateKey) {
			return nil, fmt.Errorf("auth: decoded key has %v bytes expecting %v", len(buf), len(stateKey))
		}
		copy(stateKey[:], buf)
	}
	return func(_ context.Context) (*Key, error) {
		k := stateKey
		return &k, nil
	}, nil
}
