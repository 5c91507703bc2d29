// Package cache stores verification outcomes so re-runs of a deck do not
// spend backend quota on claims that were already checked.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache defines the byte-level store behind the verification cache
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// keyPrefix is bumped whenever the stored Verification shape changes
const keyPrefix = "deckcheck:v1:"

// CacheKey derives the cache key for a claim. Claims differing only in case
// or whitespace share a key.
func CacheKey(claim string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(claim), " "))
	hash := sha256.Sum256([]byte(normalized))
	return keyPrefix + hex.EncodeToString(hash[:])
}
