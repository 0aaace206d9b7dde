// Package lookup holds the result types shared by every reader of the
// Cache -- LocalLookup, ShardedLookup, and the query engine -- plus
// LocalLookup itself, the "own-shard" read path.
package lookup

import kverrors "github.com/adtech/kvserving/internal/errors"

// Status mirrors the flat error taxonomy at per-key granularity: a
// single failing key never fails the whole batch, it's carried here
// instead.
type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusInternal
)

func (s Status) String() string {
	switch s {
	case StatusNotFound:
		return "NotFound"
	case StatusInternal:
		return "Internal"
	default:
		return "OK"
	}
}

// SingleLookupResult carries exactly one of Value, KeysetValues, or
// Uint32Values on success, or Status/Message on failure -- the Go
// rendering of the wire union described in the internal lookup
// response.
type SingleLookupResult struct {
	Status        Status
	Message       string
	Value         string
	KeysetValues  []string
	Uint32Values  []uint32
}

func ok(value string) SingleLookupResult {
	return SingleLookupResult{Status: StatusOK, Value: value}
}

func okSet(values []string) SingleLookupResult {
	return SingleLookupResult{Status: StatusOK, KeysetValues: values}
}

func okUint32Set(values []uint32) SingleLookupResult {
	return SingleLookupResult{Status: StatusOK, Uint32Values: values}
}

func notFound() SingleLookupResult {
	return SingleLookupResult{Status: StatusNotFound, Message: kverrors.NotFound("").Message}
}

func internal(message string) SingleLookupResult {
	return SingleLookupResult{Status: StatusInternal, Message: message}
}
