// Package ingestion applies delta-file and realtime mutation streams
// to the Cache in logical-time order, drops records that don't belong
// to this shard, and drives periodic tombstone reclamation.
package ingestion

// ValueType names which Cache namespace a record mutates.
type ValueType int

const (
	ValueTypeScalar ValueType = iota
	ValueTypeStringSet
	ValueTypeUint32Set
)

// MutationType is Update (upsert) or Delete (tombstone / remove).
type MutationType int

const (
	MutationUpdate MutationType = iota
	MutationDelete
)

// Record is the Go rendering of the data-ingestion interface's wire
// shape: one mutation, scalar or set-valued, at a given logical time.
type Record struct {
	Key               string
	ValueType         ValueType
	Value             string   // set iff ValueType == ValueTypeScalar
	StringSetValues   []string // set iff ValueType == ValueTypeStringSet
	Uint32SetValues   []uint32 // set iff ValueType == ValueTypeUint32Set
	LogicalCommitTime int64
	Mutation          MutationType
}
