package sharding

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hashicorp/memberlist"
	"go.uber.org/zap"

	"github.com/adtech/kvserving/internal/lookup"
)

// RemoteLookupClient is the capability ShardManager hands out for every
// shard other than the process's own: a pooled connection capable of
// the same three reads and the query RPC, each padded to a caller-given
// wire length for traffic-shape privacy.
type RemoteLookupClient interface {
	GetValues(ctx context.Context, keys []string, padding int) (map[string]lookup.SingleLookupResult, error)
	GetKeyValueSet(ctx context.Context, keys []string, padding int) (map[string]lookup.SingleLookupResult, error)
	GetUint32ValueSet(ctx context.Context, keys []string, padding int) (map[string]lookup.SingleLookupResult, error)
	RunQuery(ctx context.Context, query string, padding int) ([]string, error)
	Close() error
}

// Dialer constructs a RemoteLookupClient for a peer's advertised
// address. ShardManager takes one as a dependency instead of importing
// a concrete transport, so the gossip delegate stays transport-agnostic
// and never has to import a storage engine.
type Dialer func(addr string) (RemoteLookupClient, error)

// nodeMeta is gossiped via memberlist's Delegate.NodeMeta, the
// mechanism this package's gossip delegate uses to carry each peer's
// shard assignment and advertised address to the rest of the cluster.
type nodeMeta struct {
	ShardNum int    `json:"shard_num"`
	Addr     string `json:"addr"`
}

// ShardManager owns one RemoteLookupClient handle per shard id except
// the process's own shard, kept current by a memberlist-driven
// discovery loop: as peers join, leave, or update their advertised
// shard/address, handles are dialed, redialed, or dropped.
type ShardManager struct {
	mu           sync.RWMutex
	handles      map[int]RemoteLookupClient
	nodeShards   map[string]int // memberlist node name -> shard num, to clean up on leave
	currentShard int
	dial         Dialer
	self         nodeMeta
	logger       *zap.Logger

	ml *memberlist.Memberlist
}

// ManagerConfig configures ShardManager construction.
type ManagerConfig struct {
	NodeID        string
	CurrentShard  int
	BindPort      int
	SeedNodes     []string
	AdvertiseAddr string
	Dial          Dialer
	Logger        *zap.Logger
}

// NewShardManager starts a memberlist instance advertising the node's
// own shard and address, and returns a ShardManager that will track
// peer handles as membership events arrive.
func NewShardManager(cfg ManagerConfig) (*ShardManager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sm := &ShardManager{
		handles:      make(map[int]RemoteLookupClient),
		nodeShards:   make(map[string]int),
		currentShard: cfg.CurrentShard,
		dial:         cfg.Dial,
		self:         nodeMeta{ShardNum: cfg.CurrentShard, Addr: cfg.AdvertiseAddr},
		logger:       logger,
	}

	mlConfig := memberlist.DefaultLocalConfig()
	mlConfig.Name = cfg.NodeID
	mlConfig.BindPort = cfg.BindPort
	mlConfig.Delegate = sm
	mlConfig.Events = sm

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, err
	}
	sm.ml = ml

	if len(cfg.SeedNodes) > 0 {
		if _, err := ml.Join(cfg.SeedNodes); err != nil {
			sm.logger.Warn("failed to join some seed nodes", zap.Error(err))
		}
	}
	return sm, nil
}

// Get returns a borrowed handle for shardNum, or false if no peer has
// advertised that shard yet -- ShardedLookup must treat that as an
// internal error for the affected bucket, never as NotFound.
func (sm *ShardManager) Get(shardNum int) (RemoteLookupClient, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	h, ok := sm.handles[shardNum]
	return h, ok
}

// CurrentShard reports the shard number this process serves locally.
func (sm *ShardManager) CurrentShard() int { return sm.currentShard }

// KnownShards reports every remote shard number with a live handle,
// for health reporting.
func (sm *ShardManager) KnownShards() []int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]int, 0, len(sm.handles))
	for shardNum := range sm.handles {
		out = append(out, shardNum)
	}
	return out
}

// Shutdown leaves the cluster and closes every remote handle.
func (sm *ShardManager) Shutdown() error {
	sm.mu.Lock()
	for _, h := range sm.handles {
		_ = h.Close()
	}
	sm.mu.Unlock()
	return sm.ml.Shutdown()
}

// --- memberlist.Delegate ---

func (sm *ShardManager) NodeMeta(limit int) []byte {
	data, _ := json.Marshal(sm.self)
	if len(data) > limit {
		return data[:limit]
	}
	return data
}

func (sm *ShardManager) NotifyMsg(data []byte) {}

func (sm *ShardManager) GetBroadcasts(overhead, limit int) [][]byte { return nil }

func (sm *ShardManager) LocalState(join bool) []byte {
	data, _ := json.Marshal(sm.self)
	return data
}

func (sm *ShardManager) MergeRemoteState(buf []byte, join bool) {}

// --- memberlist.EventDelegate ---

func (sm *ShardManager) NotifyJoin(n *memberlist.Node)   { sm.refresh(n) }
func (sm *ShardManager) NotifyUpdate(n *memberlist.Node) { sm.refresh(n) }

func (sm *ShardManager) NotifyLeave(n *memberlist.Node) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	shardNum, ok := sm.nodeShards[n.Name]
	if !ok {
		return
	}
	delete(sm.nodeShards, n.Name)
	if h, ok := sm.handles[shardNum]; ok {
		_ = h.Close()
		delete(sm.handles, shardNum)
	}
}

func (sm *ShardManager) refresh(n *memberlist.Node) {
	var meta nodeMeta
	if err := json.Unmarshal(n.Meta, &meta); err != nil {
		sm.logger.Warn("failed to unmarshal peer metadata", zap.String("node", n.Name), zap.Error(err))
		return
	}
	if meta.ShardNum == sm.currentShard {
		return // never dial ourselves
	}

	client, err := sm.dial(meta.Addr)
	if err != nil {
		sm.logger.Warn("failed to dial shard peer", zap.String("node", n.Name), zap.Int("shard_num", meta.ShardNum), zap.Error(err))
		return
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if old, ok := sm.handles[meta.ShardNum]; ok {
		_ = old.Close()
	}
	sm.handles[meta.ShardNum] = client
	sm.nodeShards[n.Name] = meta.ShardNum
}
