package lookup

import "github.com/adtech/kvserving/internal/cache"

// LocalLookup is a thin read facade over the Cache: it never mutates,
// and it is the backend ShardedLookup uses for whichever bucket of
// keys belongs to the process's own shard, so those reads skip the
// wire entirely.
type LocalLookup struct {
	cache *cache.Cache
}

// New wraps c in a LocalLookup.
func New(c *cache.Cache) *LocalLookup {
	return &LocalLookup{cache: c}
}

// GetKeyValues resolves scalar values for keys, tagging any key the
// Cache doesn't have as NotFound rather than omitting it -- callers
// one level up (ShardedLookup) rely on every requested key appearing
// in the result map.
func (l *LocalLookup) GetKeyValues(keys []string) map[string]SingleLookupResult {
	values := l.cache.GetValues(keys)
	out := make(map[string]SingleLookupResult, len(keys))
	for _, key := range keys {
		if v, found := values[key]; found {
			out[key] = ok(v)
			continue
		}
		out[key] = notFound()
	}
	return out
}

// GetKeyValueSet resolves string key-sets for keys.
func (l *LocalLookup) GetKeyValueSet(keys []string) map[string]SingleLookupResult {
	sets := l.cache.GetKeyValueSet(keys)
	out := make(map[string]SingleLookupResult, len(keys))
	for _, key := range keys {
		members, found := sets[key]
		if !found {
			out[key] = notFound()
			continue
		}
		elems := make([]string, 0, len(members))
		for elem := range members {
			elems = append(elems, elem)
		}
		out[key] = okSet(elems)
	}
	return out
}

// GetUint32ValueSet resolves uint32 key-sets for keys.
func (l *LocalLookup) GetUint32ValueSet(keys []string) map[string]SingleLookupResult {
	sets := l.cache.GetUint32ValueSet(keys)
	out := make(map[string]SingleLookupResult, len(keys))
	for _, key := range keys {
		vals, found := sets[key]
		if !found {
			out[key] = notFound()
			continue
		}
		out[key] = okUint32Set(vals)
	}
	return out
}
