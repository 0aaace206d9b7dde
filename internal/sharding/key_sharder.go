// Package sharding assigns keys to shards and tracks which shard
// handles are reachable. Placement uses a fixed modulo over a stable
// hash rather than a consistent-hashing ring: the number of shards
// here is a deployment-time constant, not a churning node set.
package sharding

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"regexp"

	kverrors "github.com/adtech/kvserving/internal/errors"
)

// KeySharder assigns every key a shard number in [0, numShards) using a
// stable 64-bit hash of the key's sharding component, seeded so every
// instance in a deployment agrees on placement without coordination.
type KeySharder struct {
	numShards   int
	seed        string
	shardingKey *regexp.Regexp
}

// Config controls KeySharder construction.
type Config struct {
	NumShards int
	// ShardingKeyRegex, if non-empty, is compiled once and its first
	// capture group -- when present -- becomes the sharding key in
	// place of the full key. Keys that don't match fall back to the
	// full key.
	ShardingKeyRegex string
	// Seed is the fixed hashing seed shared by every instance of one
	// deployment; two processes with the same seed and numShards
	// always agree on shard_num_for_key.
	Seed string
}

// New compiles cfg.ShardingKeyRegex once and returns a ready KeySharder.
func New(cfg Config) (*KeySharder, error) {
	if cfg.NumShards < 1 {
		return nil, kverrors.InvalidArgument("num_shards must be >= 1", nil)
	}
	ks := &KeySharder{numShards: cfg.NumShards, seed: cfg.Seed}
	if cfg.ShardingKeyRegex != "" {
		re, err := regexp.Compile(cfg.ShardingKeyRegex)
		if err != nil {
			return nil, kverrors.InvalidArgument("invalid sharding_key_regex", err)
		}
		ks.shardingKey = re
	}
	return ks, nil
}

// NumShards reports the configured shard count.
func (ks *KeySharder) NumShards() int { return ks.numShards }

// ShardingKeyFor extracts the component of key that determines its
// shard: the regex's first capture group if one matches, else key
// itself.
func (ks *KeySharder) ShardingKeyFor(key string) string {
	if ks.shardingKey == nil {
		return key
	}
	m := ks.shardingKey.FindStringSubmatch(key)
	if len(m) < 2 {
		return key
	}
	return m[1]
}

// ShardNumForKey returns the shard number and the sharding key used to
// compute it.
func (ks *KeySharder) ShardNumForKey(key string) (shardNum int, shardingKey string) {
	shardingKey = ks.ShardingKeyFor(key)
	return int(ks.hash(shardingKey) % uint64(ks.numShards)), shardingKey
}

// hash is a stable 64-bit hash, seeded so the result is reproducible
// across processes and restarts: any two instances with the same seed
// and numShards place every key identically without coordination.
func (ks *KeySharder) hash(s string) uint64 {
	h := sha256.New()
	fmt.Fprintf(h, "%s:%s", ks.seed, s)
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}
