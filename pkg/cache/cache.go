// Package cache provides a small byte cache used to memoize compilation.
//
// Compiling the same canonical path with the same transform and options is
// deterministic, so the command stream can be cached by content hash and
// replayed on repeat jobs without recompiling. The cache stores opaque
// bytes; serialization of the command stream is the caller's concern.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// TTLCompile is the default lifetime of cached command streams. Compilation
// output only changes when the compiler does, so entries can live long.
const TTLCompile = 30 * 24 * time.Hour

// Cache stores byte blobs under string keys with optional expiry.
type Cache interface {
	// Get returns the cached bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// CompileKeyOpts are the inputs that affect compilation output. Any change
// to them must produce a different cache key.
type CompileKeyOpts struct {
	Transform   any     `json:"transform"`
	AreaWidth   float64 `json:"area_width"`
	AreaHeight  float64 `json:"area_height"`
	MinStep     float64 `json:"min_step"`
	DrawSpeed   float64 `json:"draw_speed"`
	TravelSpeed float64 `json:"travel_speed"`
}

// Keyer generates cache keys.
type Keyer interface {
	// CompileKey keys a compiled command stream by the path fingerprint and
	// everything else that feeds the compiler.
	CompileKey(fingerprint string, opts CompileKeyOpts) string
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// CompileKey generates a key for compiled command stream caching.
func (k *DefaultKeyer) CompileKey(fingerprint string, opts CompileKeyOpts) string {
	return hashKey("compile", fingerprint, opts)
}

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	// Use full SHA-256 hash (64 hex chars / 256 bits) to prevent collisions
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
