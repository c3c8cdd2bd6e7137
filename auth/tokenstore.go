package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

type (
	// SessionStore keeps the server side of a session. Lookup returns a nil
	// entry, and no error, for unknown tokens.
	SessionStore interface {
		Save(ctx context.Context, token string, entry SessionEntry) error
		Lookup(ctx context.Context, token string) (*SessionEntry, error)
		Delete(ctx context.Context, token string) error
	}

	// SessionEntry is what a token points to. Username is kept for
	// display only, the user id is the only field trusted for access.
	SessionEntry struct {
		UserID    string    `json:"uid"`
		Username  string    `json:"username"`
		CreatedAt time.Time `json:"created_at"`
	}

	memStore struct {
		cache *bigcache.BigCache
	}
)

// InMemorySessionStore keeps entries for at most ttl. Entries are lost when
// the process exits.
func InMemorySessionStore(ctx context.Context, ttl time.Duration) (SessionStore, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %v", ttl)
	}
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Verbose = false
	cfg.Shards = 64
	cfg.CleanWindow = time.Minute
	if ttl < 2*cfg.CleanWindow {
		cfg.CleanWindow = ttl / 2
	}
	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create session cache, cause %w", err)
	}
	return &memStore{
		cache: cache,
	}, nil
}

func (m *memStore) Save(ctx context.Context, token string, entry SessionEntry) error {
	buf, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("unable to encode session entry, cause %w", err)
	}
	return m.cache.Set(token, buf)
}

func (m *memStore) Lookup(ctx context.Context, token string) (*SessionEntry, error) {
	buf, err := m.cache.Get(token)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var entry SessionEntry
	err = json.Unmarshal(buf, &entry)
	if err != nil {
		return nil, fmt.Errorf("unable to decode session entry, cause %w", err)
	}
	return &entry, nil
}

func (m *memStore) Delete(ctx context.Context, token string) error {
	err := m.cache.Delete(token)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return err
}
