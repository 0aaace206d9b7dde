// Package cache implements the in-memory key/value and key-set store: a
// logical-time-versioned, concurrently-readable-and-writable cache striped
// across a fixed number of lock stripes. One cache object holds three
// disjoint namespaces (scalar values, string key-sets, uint32 key-sets);
// reading one namespace never observes another, mirroring the upstream
// comment that "one cache object is only for keys in one namespace" while
// keeping all three namespaces for a given key hash under the same stripe
// lock so kind mismatches can be detected atomically.
package cache

import (
	"hash/maphash"
	"sync"

	kverrors "github.com/adtech/kvserving/internal/errors"
)

// DefaultStripeCount is one stripe per several dozen expected cores:
// enough stripes that concurrent writers to different keys rarely
// contend, but few enough that per-stripe bookkeeping stays cheap.
const DefaultStripeCount = 64

type namespaceKind int

const (
	kindNone namespaceKind = iota
	kindScalar
	kindStringSet
	kindUint32Set
)

func (k namespaceKind) String() string {
	switch k {
	case kindScalar:
		return "scalar"
	case kindStringSet:
		return "string_set"
	case kindUint32Set:
		return "uint32_set"
	default:
		return "none"
	}
}

type scalarEntry struct {
	value           string
	lastLogicalTime int64
	tombstone       bool
}

// stripe holds one lock-protected shard of all three namespaces. Every key
// that hashes to this stripe -- regardless of which namespace it currently
// belongs to -- is guarded by mu, so a scalar mutation and a set mutation
// racing on the same key never both succeed.
type stripe struct {
	mu      sync.RWMutex
	scalar  map[string]*scalarEntry
	strSet  map[string]*stringSetEntry
	u32Set  map[string]*uint32SetEntry
}

func newStripe() *stripe {
	return &stripe{
		scalar: make(map[string]*scalarEntry),
		strSet: make(map[string]*stringSetEntry),
		u32Set: make(map[string]*uint32SetEntry),
	}
}

// kindLocked returns which namespace currently owns key in this stripe.
// Caller must hold at least a read lock on the stripe.
func (s *stripe) kindLocked(key string) namespaceKind {
	if _, ok := s.scalar[key]; ok {
		return kindScalar
	}
	if _, ok := s.strSet[key]; ok {
		return kindStringSet
	}
	if _, ok := s.u32Set[key]; ok {
		return kindUint32Set
	}
	return kindNone
}

// Cache is the concurrent in-memory store described by the design: safe
// for any number of concurrent readers and writers, with no global lock.
type Cache struct {
	stripes     []*stripe
	stripeCount uint64
	seed        maphash.Seed
}

// Config controls stripe sizing; zero value uses DefaultStripeCount.
type Config struct {
	StripeCount int
}

// New creates an empty Cache.
func New(cfg Config) *Cache {
	n := cfg.StripeCount
	if n <= 0 {
		n = DefaultStripeCount
	}
	c := &Cache{
		stripes:     make([]*stripe, n),
		stripeCount: uint64(n),
		seed:        maphash.MakeSeed(),
	}
	for i := range c.stripes {
		c.stripes[i] = newStripe()
	}
	return c
}

func (c *Cache) stripeFor(key string) *stripe {
	var h maphash.Hash
	h.SetSeed(c.seed)
	_, _ = h.WriteString(key)
	return c.stripes[h.Sum64()%c.stripeCount]
}

// GetValues looks up scalar values for the given keys. Absent or
// tombstoned keys are simply omitted from the result, per the contract.
func (c *Cache) GetValues(keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		s := c.stripeFor(key)
		s.mu.RLock()
		e, ok := s.scalar[key]
		if ok && !e.tombstone {
			out[key] = e.value
		}
		s.mu.RUnlock()
	}
	return out
}

// UpdateKeyValue applies a scalar update iff logicalTime is strictly newer
// than anything previously observed for key (invariant 1). A set-valued
// key targeted by a scalar mutation is a kind-mismatch error and leaves
// the cache untouched (invariant unaffected, failure reported upward).
func (c *Cache) UpdateKeyValue(key, value string, logicalTime int64) error {
	s := c.stripeFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if kind := s.kindLocked(key); kind != kindNone && kind != kindScalar {
		return kverrors.KindMismatch(key, kindScalar.String(), kind.String())
	}

	e, ok := s.scalar[key]
	if ok && e.lastLogicalTime >= logicalTime {
		return nil
	}
	if !ok {
		e = &scalarEntry{}
		s.scalar[key] = e
	}
	e.value = value
	e.lastLogicalTime = logicalTime
	e.tombstone = false
	return nil
}

// DeleteKey writes a scalar tombstone iff logicalTime is strictly newer
// than the key's last observed mutation.
func (c *Cache) DeleteKey(key string, logicalTime int64) error {
	s := c.stripeFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if kind := s.kindLocked(key); kind != kindNone && kind != kindScalar {
		return kverrors.KindMismatch(key, kindScalar.String(), kind.String())
	}

	e, ok := s.scalar[key]
	if ok && e.lastLogicalTime >= logicalTime {
		return nil
	}
	if !ok {
		e = &scalarEntry{}
		s.scalar[key] = e
	}
	e.value = ""
	e.lastLogicalTime = logicalTime
	e.tombstone = true
	return nil
}

// CacheStats summarizes namespace occupancy, exposed for /metrics and
// health checks.
type CacheStats struct {
	ScalarEntries     int
	StringSetEntries  int
	Uint32SetEntries  int
	TombstonedScalars int
}

// Stats walks every stripe under a read lock and aggregates counts.
func (c *Cache) Stats() CacheStats {
	var stats CacheStats
	for _, s := range c.stripes {
		s.mu.RLock()
		stats.ScalarEntries += len(s.scalar)
		stats.StringSetEntries += len(s.strSet)
		stats.Uint32SetEntries += len(s.u32Set)
		for _, e := range s.scalar {
			if e.tombstone {
				stats.TombstonedScalars++
			}
		}
		s.mu.RUnlock()
	}
	return stats
}

// RemoveDeletedKeys physically reclaims scalar tombstones and exhausted
// set elements with logical_time <= cutoff across every namespace and
// every stripe (invariant 3's GC horizon), reporting how many keys it
// reclaimed so callers can feed it to a gauge or counter.
func (c *Cache) RemoveDeletedKeys(cutoff int64) int {
	reclaimed := 0
	for _, s := range c.stripes {
		s.mu.Lock()
		for key, e := range s.scalar {
			if e.tombstone && e.lastLogicalTime <= cutoff {
				delete(s.scalar, key)
				reclaimed++
			}
		}
		for key, e := range s.strSet {
			e.cleanup(cutoff)
			if e.empty() {
				delete(s.strSet, key)
				reclaimed++
			}
		}
		for key, e := range s.u32Set {
			e.cleanup(cutoff)
			if e.empty() {
				delete(s.u32Set, key)
				reclaimed++
			}
		}
		s.mu.Unlock()
	}
	return reclaimed
}
