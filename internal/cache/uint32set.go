package cache

import (
	"github.com/RoaringBitmap/roaring"

	kverrors "github.com/adtech/kvserving/internal/errors"
)

// uint32ElemMeta tracks one logical_commit_time plus a deleted flag per
// value, so Add/Remove stay idempotent under replay.
type uint32ElemMeta struct {
	logicalTime int64
	deleted     bool
}

// uint32SetEntry stores a set of uint32 values as a Roaring bitmap for
// efficient membership/union/intersection, alongside per-value metadata
// for out-of-order mutation handling -- the same split the original
// UInt32ValueSet uses.
type uint32SetEntry struct {
	present  *roaring.Bitmap
	metadata map[uint32]*uint32ElemMeta
}

func newUint32SetEntry() *uint32SetEntry {
	return &uint32SetEntry{
		present:  roaring.NewBitmap(),
		metadata: make(map[uint32]*uint32ElemMeta),
	}
}

func (e *uint32SetEntry) values() []uint32 {
	return e.present.ToArray()
}

func (e *uint32SetEntry) empty() bool { return len(e.metadata) == 0 }

func (e *uint32SetEntry) applyAdd(values []uint32, logicalTime int64) {
	for _, v := range values {
		meta, ok := e.metadata[v]
		if ok && meta.logicalTime >= logicalTime {
			continue
		}
		if !ok {
			meta = &uint32ElemMeta{}
			e.metadata[v] = meta
		}
		meta.logicalTime = logicalTime
		meta.deleted = false
		e.present.Add(v)
	}
}

func (e *uint32SetEntry) applyRemove(values []uint32, logicalTime int64) {
	for _, v := range values {
		meta, ok := e.metadata[v]
		if ok && meta.logicalTime >= logicalTime {
			continue
		}
		if !ok {
			meta = &uint32ElemMeta{}
			e.metadata[v] = meta
		}
		meta.logicalTime = logicalTime
		meta.deleted = true
		e.present.Remove(v)
	}
}

// cleanup drops metadata (and bitmap membership, already absent) for
// values marked deleted at or before cutoff.
func (e *uint32SetEntry) cleanup(cutoff int64) {
	for v, meta := range e.metadata {
		if meta.deleted && meta.logicalTime <= cutoff {
			delete(e.metadata, v)
		}
	}
}

// GetUint32ValueSet returns the materialized uint32 membership for each
// key; absent keys are omitted.
func (c *Cache) GetUint32ValueSet(keys []string) map[string][]uint32 {
	out := make(map[string][]uint32, len(keys))
	for _, key := range keys {
		s := c.stripeFor(key)
		s.mu.RLock()
		if e, ok := s.u32Set[key]; ok {
			if vals := e.values(); len(vals) > 0 {
				out[key] = vals
			}
		}
		s.mu.RUnlock()
	}
	return out
}

// UpdateKeyValueUint32Set applies SetAdd for each of valuesAdded at
// logicalTime on the uint32 namespace.
func (c *Cache) UpdateKeyValueUint32Set(key string, valuesAdded []uint32, logicalTime int64) error {
	s := c.stripeFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if kind := s.kindLocked(key); kind != kindNone && kind != kindUint32Set {
		return kverrors.KindMismatch(key, kindUint32Set.String(), kind.String())
	}

	e, ok := s.u32Set[key]
	if !ok {
		e = newUint32SetEntry()
		s.u32Set[key] = e
	}
	e.applyAdd(valuesAdded, logicalTime)
	return nil
}

// DeleteValuesInUint32Set applies SetRemove for each of valuesRemoved at
// logicalTime on the uint32 namespace.
func (c *Cache) DeleteValuesInUint32Set(key string, valuesRemoved []uint32, logicalTime int64) error {
	s := c.stripeFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if kind := s.kindLocked(key); kind != kindNone && kind != kindUint32Set {
		return kverrors.KindMismatch(key, kindUint32Set.String(), kind.String())
	}

	e, ok := s.u32Set[key]
	if !ok {
		e = newUint32SetEntry()
		s.u32Set[key] = e
	}
	e.applyRemove(valuesRemoved, logicalTime)
	return nil
}
