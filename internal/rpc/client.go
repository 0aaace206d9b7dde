package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/adtech/kvserving/internal/lookup"
	"github.com/adtech/kvserving/internal/sharding"
)

// Client implements sharding.RemoteLookupClient over a gRPC connection
// to one peer shard, using this package's gob codec instead of
// protobuf.
type Client struct {
	addr string
	conn *grpc.ClientConn
}

var _ sharding.RemoteLookupClient = (*Client)(nil)

// Dial connects to a peer advertising addr and returns a ready Client.
// It returns *Client rather than sharding.RemoteLookupClient, so it is
// not itself a sharding.Dialer; callers wrap it in a closure, as
// cmd/dataserver's dialer does.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.Dial(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dialing shard peer %s: %w", addr, err)
	}
	return &Client{addr: addr, conn: conn}, nil
}

func (c *Client) lookup(ctx context.Context, kind LookupKind, keys []string, padding int) (map[string]lookup.SingleLookupResult, error) {
	req := &InternalLookupRequest{Keys: keys, Kind: kind, Padding: padding}
	resp := new(InternalLookupResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Lookup", req, resp); err != nil {
		return nil, fmt.Errorf("lookup rpc to %s: %w", c.addr, err)
	}
	out := make(map[string]lookup.SingleLookupResult, len(resp.KVPairs))
	for key, w := range resp.KVPairs {
		out[key] = fromWireResult(w)
	}
	return out, nil
}

func (c *Client) GetValues(ctx context.Context, keys []string, padding int) (map[string]lookup.SingleLookupResult, error) {
	return c.lookup(ctx, LookupKindScalar, keys, padding)
}

func (c *Client) GetKeyValueSet(ctx context.Context, keys []string, padding int) (map[string]lookup.SingleLookupResult, error) {
	return c.lookup(ctx, LookupKindStringSet, keys, padding)
}

func (c *Client) GetUint32ValueSet(ctx context.Context, keys []string, padding int) (map[string]lookup.SingleLookupResult, error) {
	return c.lookup(ctx, LookupKindUint32Set, keys, padding)
}

func (c *Client) RunQuery(ctx context.Context, query string, padding int) ([]string, error) {
	req := &InternalRunQueryRequest{Query: query, Padding: padding}
	resp := new(InternalRunQueryResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/RunQuery", req, resp); err != nil {
		return nil, fmt.Errorf("run_query rpc to %s: %w", c.addr, err)
	}
	return resp.Elements, nil
}

func (c *Client) Close() error { return c.conn.Close() }
