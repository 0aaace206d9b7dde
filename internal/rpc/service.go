package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// Server is implemented by whatever can actually answer Lookup and
// RunQuery for this process's shard -- in practice an adapter wrapping
// LocalLookup and the query Engine.
type Server interface {
	Lookup(ctx context.Context, req *InternalLookupRequest) (*InternalLookupResponse, error)
	RunQuery(ctx context.Context, req *InternalRunQueryRequest) (*InternalRunQueryResponse, error)
}

const serviceName = "kvserving.internal.InternalLookup"

// ServiceDesc is registered with a *grpc.Server in place of a
// protoc-generated one; Lookup and RunQuery are the only two methods
// the internal shard-to-shard protocol needs.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Lookup", Handler: lookupHandler},
		{MethodName: "RunQuery", Handler: runQueryHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal.rpc",
}

func lookupHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(InternalLookupRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Lookup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Lookup"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Lookup(ctx, req.(*InternalLookupRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func runQueryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(InternalRunQueryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).RunQuery(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/RunQuery"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).RunQuery(ctx, req.(*InternalRunQueryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterServer registers srv's methods on s.
func RegisterServer(s grpc.ServiceRegistrar, srv Server) {
	s.RegisterService(&ServiceDesc, srv)
}
