// Package rpc implements the shard-to-shard internal wire protocol:
// two RPCs (Lookup, RunQuery) carried over gRPC, encoded with a
// gob-based codec registered in place of the usual protobuf one,
// since no protoc-generated stubs are available to this codebase.
package rpc

// LookupKind selects which Cache namespace a Lookup call reads,
// generalizing the wire protocol's lookup_sets flag to the three
// namespaces the Cache actually has.
type LookupKind int32

const (
	LookupKindScalar LookupKind = iota
	LookupKindStringSet
	LookupKindUint32Set
)

// Status mirrors lookup.Status on the wire, kept as a separate type so
// this package doesn't need to import internal/lookup just to move
// bytes.
type Status int32

const (
	StatusOK Status = iota
	StatusNotFound
	StatusInternal
)

// WireResult is the per-key union carried in an InternalLookupResponse.
type WireResult struct {
	Status       Status
	Message      string
	Value        string
	KeysetValues []string
	Uint32Values []uint32
}

// InternalLookupRequest asks the remote shard to resolve Keys in the
// namespace named by Kind. Padding is the number of additional bytes
// the caller expects this request to occupy on the wire; the gob codec
// appends that many zero bytes so every bucket in a batch is the same
// size regardless of how many keys it actually carries.
type InternalLookupRequest struct {
	Keys       []string
	Kind       LookupKind
	Padding    int
	LogContext map[string]string
}

// InternalLookupResponse carries one WireResult per requested key.
type InternalLookupResponse struct {
	KVPairs map[string]WireResult
	Padding int
}

// InternalRunQueryRequest asks the remote shard to evaluate Query
// against its own Cache contents and hand back the flat result.
type InternalRunQueryRequest struct {
	Query   string
	Padding int
}

// InternalRunQueryResponse is the flat result of evaluating Query.
type InternalRunQueryResponse struct {
	Elements []string
	Padding  int
}
