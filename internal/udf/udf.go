// Package udf specifies the capability boundary between the core data
// plane and the user-defined function that shapes each response. The
// sandbox the UDF actually runs in is out of scope; this package only
// names what the core exposes to it.
package udf

import "context"

// DataAccess is everything a UDF invocation may call into the core
// for: scalar/keyset lookups against the sharded cluster and
// set-algebra queries. ShardedLookup and the query Engine both satisfy
// the relevant parts of this interface once adapted.
type DataAccess interface {
	GetValues(ctx context.Context, keys []string) (map[string]Result, error)
	GetKeyValueSet(ctx context.Context, keys []string) (map[string]Result, error)
	GetUint32ValueSet(ctx context.Context, keys []string) (map[string]Result, error)
	RunQuery(ctx context.Context, query string) ([]string, error)
}

// Result is the UDF-facing shape of one key's lookup outcome, decoupled
// from internal/lookup.SingleLookupResult so the UDF boundary doesn't
// leak internal types.
type Result struct {
	Found        bool
	Value        string
	KeysetValues []string
	Uint32Values []uint32
}

// Runner invokes one UDF against one partition of a request and
// returns its output bytes, or an error contained to that partition.
// The UDF process/sandbox itself is external; Runner is the seam the
// core calls through.
type Runner interface {
	Run(ctx context.Context, partition Partition, data DataAccess) (Output, error)
}

// Partition is one UDF invocation unit within a larger request; a
// single request may fan out to many partitions, each independently
// succeeding or failing.
type Partition struct {
	ID      string
	Input   []byte
	Context map[string]string
}

// Output is one partition's UDF result.
type Output struct {
	Status  Status
	Message string
	Payload []byte
}

// Status reports whether a partition's UDF invocation succeeded,
// mirroring lookup.Status so a failed partition never poisons others
// in the same request.
type Status int

const (
	StatusOK Status = iota
	StatusFailed
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}
