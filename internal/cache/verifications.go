package cache

import (
	"encoding/json"
	"time"

	"github.com/ppiankov/deckcheck/internal/model"
)

// Verifications is a typed view over a Cache keyed by claim
type Verifications struct {
	store Cache
	ttl   time.Duration
}

// NewVerifications wraps store; ttl 0 uses the store's default
func NewVerifications(store Cache, ttl time.Duration) *Verifications {
	return &Verifications{store: store, ttl: ttl}
}

// FromConfig builds the configured verification cache, or nil when disabled
func FromConfig(cfg model.CacheConfig) *Verifications {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Dir == "" {
		return NewVerifications(NewMemoryCache(cfg.MemoryTTL, 10*time.Minute), cfg.MemoryTTL)
	}
	return NewVerifications(NewLayeredCache(cfg.MemoryTTL, cfg.Dir, cfg.DiskTTL), cfg.DiskTTL)
}

// Lookup returns the stored verification for claim
func (v *Verifications) Lookup(claim model.Claim) (model.Verification, bool) {
	if v == nil {
		return model.Verification{}, false
	}
	data, ok := v.store.Get(CacheKey(claim))
	if !ok {
		return model.Verification{}, false
	}

	var out model.Verification
	if err := json.Unmarshal(data, &out); err != nil {
		return model.Verification{}, false
	}
	if out.Sources == nil {
		out.Sources = []model.Source{}
	}
	return out, true
}

// Store records a verification. Built-in defaults (no backend) are not
// cached so a later run with a backend configured still checks the claim.
func (v *Verifications) Store(claim model.Claim, result model.Verification) error {
	if v == nil || result.Backend == "" {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return v.store.Set(CacheKey(claim), data, v.ttl)
}
