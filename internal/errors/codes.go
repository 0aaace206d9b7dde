// Package errors defines the flat error taxonomy shared by every data-plane
// component: Cache, LocalLookup, ShardedLookup, the query engine, and the
// ingestion coordinator all report failures through *KVError so a single
// switch maps them onto gRPC status codes at the edge.
package errors

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is the flat error taxonomy: per-key failures never raise above
// Kind, they're carried inside a SingleLookupResult instead.
type Kind int

const (
	// KindOK is the zero value; never attached to a constructed KVError.
	KindOK Kind = iota
	KindInvalidArgument
	KindNotFound
	KindInternal
	KindDeadlineExceeded
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindNotFound:
		return "NotFound"
	case KindInternal:
		return "Internal"
	case KindDeadlineExceeded:
		return "DeadlineExceeded"
	case KindUnauthenticated:
		return "Unauthenticated"
	default:
		return "OK"
	}
}

// KVError is a structured error carrying one of the flat Kinds plus
// whatever context the caller attached.
type KVError struct {
	Kind    Kind
	Message string
	Details map[string]any
	Cause   error
}

func (e *KVError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *KVError) Unwrap() error { return e.Cause }

// ToGRPCStatus maps the flat Kind onto a gRPC status code.
func (e *KVError) ToGRPCStatus() *status.Status {
	return status.New(e.grpcCode(), e.Error())
}

func (e *KVError) grpcCode() codes.Code {
	switch e.Kind {
	case KindInvalidArgument:
		return codes.InvalidArgument
	case KindNotFound:
		return codes.NotFound
	case KindInternal:
		return codes.Internal
	case KindDeadlineExceeded:
		return codes.DeadlineExceeded
	case KindUnauthenticated:
		return codes.Unauthenticated
	default:
		return codes.OK
	}
}

// New constructs a KVError of the given kind.
func New(kind Kind, message string, cause error) *KVError {
	return &KVError{Kind: kind, Message: message, Details: map[string]any{}, Cause: cause}
}

// WithDetail attaches a key/value pair of diagnostic context and returns
// the same error for chaining.
func (e *KVError) WithDetail(key string, value any) *KVError {
	e.Details[key] = value
	return e
}

func InvalidArgument(message string, cause error) *KVError {
	return New(KindInvalidArgument, message, cause)
}

func NotFound(key string) *KVError {
	return New(KindNotFound, "key not found", nil).WithDetail("key", key)
}

func Internal(message string, cause error) *KVError {
	return New(KindInternal, message, cause)
}

func DeadlineExceeded(message string) *KVError {
	return New(KindDeadlineExceeded, message, nil)
}

func Unauthenticated(message string) *KVError {
	return New(KindUnauthenticated, message, nil)
}

// KindMismatch reports a set-op-on-scalar-key (or vice versa) fatal
// data-plane error for one record; the ingestion coordinator reports it
// and drops the record without touching the Cache.
func KindMismatch(key, wantKind, gotKind string) *KVError {
	return New(KindInternal, fmt.Sprintf("key %q has kind %s, mutation targeted kind %s", key, gotKind, wantKind), nil).
		WithDetail("key", key).
		WithDetail("want_kind", wantKind).
		WithDetail("got_kind", gotKind)
}

// Is reports whether err is a *KVError of the given Kind.
func Is(err error, kind Kind) bool {
	kv, ok := err.(*KVError)
	return ok && kv.Kind == kind
}

// GetKind extracts the Kind from err, defaulting to KindInternal for
// errors that didn't originate in this package.
func GetKind(err error) Kind {
	if kv, ok := err.(*KVError); ok {
		return kv.Kind
	}
	return KindInternal
}
