// Package dedupe provides a goleveldb-backed "seen signature" cache that
// fronts Postgres, adapted from gateway/auth's leveldb nonce store. The
// swap store is already idempotent under replay via its own unique key
// constraint; this cache exists only to let the projector skip the
// round-trip to Postgres entirely for signatures it has already projected,
// which matters under the account-stream's at-least-once delivery.
package dedupe

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
)

// SignatureCache records swap signatures the projector has already applied.
type SignatureCache struct {
	db *leveldb.DB
}

// Open opens (or creates) the cache at path.
func Open(path string) (*SignatureCache, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("dedupe cache path required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve dedupe path: %w", err)
	}
	db, err := leveldb.OpenFile(abs, nil)
	if err != nil {
		return nil, fmt.Errorf("open dedupe cache: %w", err)
	}
	return &SignatureCache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *SignatureCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Seen reports whether signature has already been recorded, and records it
// if not. The boolean return mirrors EnsureNonce's "already observed" shape.
func (c *SignatureCache) Seen(signature string) (bool, error) {
	if c == nil || c.db == nil {
		return false, fmt.Errorf("dedupe cache not configured")
	}
	key := []byte(signature)
	_, err := c.db.Get(key, nil)
	switch {
	case err == leveldb.ErrNotFound:
		if putErr := c.db.Put(key, []byte{1}, nil); putErr != nil {
			return false, fmt.Errorf("record signature: %w", putErr)
		}
		return false, nil
	case err != nil:
		return false, fmt.Errorf("lookup signature: %w", err)
	default:
		return true, nil
	}
}
