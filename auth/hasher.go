package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

type (
	PlainText []byte

	// PasswordHasher produces one-way salted hashes. Compare returns false
	// with a nil error when the password does not match, errors are
	// reserved for hashes that cannot be interpreted.
	PasswordHasher interface {
		Hash(passwd PlainText) (string, error)
		Compare(hash string, passwd PlainText) (bool, error)
	}

	Argon2Hasher struct {
		Time    uint32
		Memory  uint32
		Threads uint8
		SaltLen int
		KeyLen  uint32
		Rand    io.Reader
	}

	BcryptHasher struct {
		Cost int
	}

	hasherSet struct {
		primary PasswordHasher
		argon   Argon2Hasher
		bcrypt  BcryptHasher
	}
)

const (
	argon2Prefix = "$argon2id$"

	AlgoArgon2id = "argon2id"
	AlgoBcrypt   = "bcrypt"
)

var (
	errMalformedHash = errors.New("auth: malformed password hash")
)

func (p PlainText) Zero() {
	for i := range p {
		p[i] = 0
	}
}

// DefaultArgon2 returns the parameters used for new local accounts.
func DefaultArgon2() Argon2Hasher {
	threads := runtime.NumCPU() / 2
	if threads < 1 {
		threads = 1
	}
	// 7 passes over 10 MB should be a good replacement
	// for 1 pass over 64 MB of ram.
	return Argon2Hasher{
		Time:    7,
		Memory:  10 * 1024,
		Threads: uint8(threads),
		SaltLen: 16,
		KeyLen:  32,
	}
}

// NewPasswordHasher hashes new passwords with algo and verifies hashes
// produced by any supported algorithm.
func NewPasswordHasher(algo string) (PasswordHasher, error) {
	set := &hasherSet{
		argon:  DefaultArgon2(),
		bcrypt: BcryptHasher{Cost: bcrypt.DefaultCost},
	}
	switch algo {
	case "", AlgoArgon2id:
		set.primary = set.argon
	case AlgoBcrypt:
		set.primary = set.bcrypt
	default:
		return nil, fmt.Errorf("auth: unknown password hash algorithm %q", algo)
	}
	return set, nil
}

func (h *hasherSet) Hash(passwd PlainText) (string, error) {
	return h.primary.Hash(passwd)
}

func (h *hasherSet) Compare(hash string, passwd PlainText) (bool, error) {
	switch {
	case strings.HasPrefix(hash, argon2Prefix):
		return h.argon.Compare(hash, passwd)
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return h.bcrypt.Compare(hash, passwd)
	}
	return false, errMalformedHash
}

func (a Argon2Hasher) Hash(passwd PlainText) (string, error) {
	src := a.Rand
	if src == nil {
		src = rand.Reader
	}
	saltLen := a.SaltLen
	if saltLen <= 0 {
		saltLen = 16
	}
	keyLen := a.KeyLen
	if keyLen == 0 {
		keyLen = 32
	}
	threads := a.Threads
	if threads == 0 {
		threads = 1
	}
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(src, salt); err != nil {
		return "", fmt.Errorf("unable to generate salt, cause %w", err)
	}
	key := argon2.IDKey(passwd, salt, a.Time, a.Memory, threads, keyLen)
	return fmt.Sprintf("%vv=%d$m=%d,t=%d,p=%d$%v$%v", argon2Prefix, argon2.Version, a.Memory, a.Time, threads,
		base64.RawStdEncoding.EncodeToString(salt), base64.RawStdEncoding.EncodeToString(key)), nil
}

// Compare uses the parameters stored in the hash, not the ones in a.
func (a Argon2Hasher) Compare(hash string, passwd PlainText) (bool, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, errMalformedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, errMalformedHash
	}
	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil || time == 0 || threads == 0 {
		return false, errMalformedHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, errMalformedHash
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false, errMalformedHash
	}
	actual := argon2.IDKey(passwd, salt, time, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}

func (b BcryptHasher) Hash(passwd PlainText) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	buf, err := bcrypt.GenerateFromPassword(passwd, cost)
	if err != nil {
		return "", fmt.Errorf("unable to hash password, cause %w", err)
	}
	return string(buf), nil
}

func (b BcryptHasher) Compare(hash string, passwd PlainText) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), passwd)
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	} else if err != nil {
		return false, errMalformedHash
	}
	return true, nil
}
