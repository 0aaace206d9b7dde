// Command dataserver runs one shard of the key/value serving tier: it
// owns the in-memory Cache, answers internal Lookup/RunQuery RPCs from
// peer shards, and drives ingestion from delta files and realtime
// messages into the Cache.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/adtech/kvserving/internal/config"
	"github.com/adtech/kvserving/internal/health"
	"github.com/adtech/kvserving/internal/ingestion"
	"github.com/adtech/kvserving/internal/lookup"
	"github.com/adtech/kvserving/internal/metrics"
	"github.com/adtech/kvserving/internal/query"
	"github.com/adtech/kvserving/internal/ratelimiter"
	"github.com/adtech/kvserving/internal/rpc"
	"github.com/adtech/kvserving/internal/sharding"
	"github.com/adtech/kvserving/internal/shardedlookup"
	kvcache "github.com/adtech/kvserving/internal/cache"
)

func main() {
	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.String("node_id", cfg.Server.NodeID),
		zap.Int("shard_num", cfg.Sharding.ShardNum),
		zap.Int("num_shards", cfg.Sharding.NumShards))

	cache := kvcache.New(kvcache.Config{})
	local := lookup.New(cache)

	sharder, err := sharding.New(sharding.Config{
		NumShards:        cfg.Sharding.NumShards,
		ShardingKeyRegex: cfg.Sharding.ShardingKeyRegex,
		Seed:             cfg.Sharding.HashSeed,
	})
	if err != nil {
		logger.Fatal("failed to build key sharder", zap.Error(err))
	}

	m := metrics.New(cfg.Server.NodeID)

	var queryFetcher query.SetFetcher
	var shardManager *sharding.ShardManager

	if cfg.Sharding.NumShards > 1 {
		shardManager, err = sharding.NewShardManager(sharding.ManagerConfig{
			NodeID:        cfg.Server.NodeID,
			CurrentShard:  cfg.Sharding.ShardNum,
			BindPort:      cfg.Discovery.BindPort,
			SeedNodes:     cfg.Discovery.SeedNodes,
			AdvertiseAddr: cfg.Server.AdvertiseAddr,
			Dial:          dialer(),
			Logger:        logger,
		})
		if err != nil {
			logger.Fatal("failed to start shard manager", zap.Error(err))
		}
		defer shardManager.Shutdown()

		sharded, err := shardedlookup.New(sharder, shardManager, local, m.ForShardedLookup(), logger)
		if err != nil {
			logger.Fatal("failed to build sharded lookup", zap.Error(err))
		}
		queryFetcher = sharded
	} else {
		queryFetcher = singleShardFetcher{local: local}
	}

	queryEngine := query.New(queryFetcher, m.ForQuery())

	rl := ratelimiter.New(ratelimiter.Config{
		Capacity: cfg.RateLimit.Capacity,
		FillRate: cfg.RateLimit.FillRate,
	})

	coordinator := ingestion.New(ingestion.Config{
		Cache:      cache,
		Sharder:    sharder,
		ShardNum:   cfg.Sharding.ShardNum,
		NumShards:  cfg.Sharding.NumShards,
		NumWorkers: cfg.Ingestion.DataLoadingNumThreads,
		Metrics:    m.ForIngestion(),
		Logger:     logger,
	})
	defer coordinator.Stop(cfg.Server.ShutdownTimeout)

	gcCtx, gcCancel := context.WithCancel(context.Background())
	defer gcCancel()
	go coordinator.RunGC(gcCtx, cfg.Ingestion.GCInterval, cfg.Ingestion.GCSafetyMarginMillis, func() int64 {
		return time.Now().UnixMilli()
	})

	checker := health.New(health.Config{
		NodeID:        cfg.Server.NodeID,
		Cache:         cache,
		ShardManager:  shardManagerTopology(shardManager),
		Coordinator:   coordinator,
		ExpectedPeers: cfg.Sharding.NumShards - 1,
		Logger:        logger,
	})
	healthCtx, healthCancel := context.WithCancel(context.Background())
	defer healthCancel()
	go checker.Start(healthCtx)

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Port, cfg.Metrics.Path, checker, logger)
	}

	sampleCtx, sampleCancel := context.WithCancel(context.Background())
	defer sampleCancel()
	go sampleGauges(sampleCtx, cache, shardManagerTopology(shardManager), cfg.Sharding.NumShards-1, m)

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(rateLimitInterceptor(rl, m)))
	rpc.RegisterServer(grpcServer, rpc.NewLocalServer(local, queryEngine, m.ForRPC()))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	logger.Info("data server starting", zap.String("address", addr))

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down gracefully")
		checker.SetReadiness(false)
		grpcServer.GracefulStop()
	}()

	if err := grpcServer.Serve(listener); err != nil {
		logger.Fatal("failed to serve", zap.Error(err))
	}
}

// rateLimitInterceptor admits or rejects each internal Lookup/RunQuery
// RPC against the shared token bucket before it reaches LocalServer.
func rateLimitInterceptor(rl *ratelimiter.RateLimiter, m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !rl.TryAcquire(1) {
			m.RecordRateLimitDecision(false)
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		m.RecordRateLimitDecision(true)
		return handler(ctx, req)
	}
}

// dialer returns a sharding.Dialer backed by the internal gRPC
// transport in internal/rpc.
func dialer() sharding.Dialer {
	return func(addr string) (sharding.RemoteLookupClient, error) {
		return rpc.Dial(addr)
	}
}

// singleShardFetcher answers GetShardedKeyValueSet directly from the
// local cache when the deployment has only one shard -- no fan-out,
// no padding, because there is nothing to fan out to.
type singleShardFetcher struct {
	local *lookup.LocalLookup
}

func (f singleShardFetcher) GetShardedKeyValueSet(ctx context.Context, identifiers []string) (map[string]map[string]struct{}, error) {
	results := f.local.GetKeyValueSet(identifiers)
	out := make(map[string]map[string]struct{}, len(results))
	for id, res := range results {
		if res.Status != lookup.StatusOK {
			continue
		}
		set := make(map[string]struct{}, len(res.KeysetValues))
		for _, v := range res.KeysetValues {
			set[v] = struct{}{}
		}
		out[id] = set
	}
	return out, nil
}

// shardManagerTopology adapts a possibly-nil *sharding.ShardManager
// into health.ShardTopology; a single-shard deployment has none.
func shardManagerTopology(sm *sharding.ShardManager) health.ShardTopology {
	if sm == nil {
		return nil
	}
	return sm
}

// sampleGauges periodically samples cache occupancy and shard
// connectivity into their gauges -- both are point-in-time snapshots
// rather than per-operation observations, so a ticker is simpler than
// threading a Metrics call through every Cache/ShardManager method.
func sampleGauges(ctx context.Context, cache *kvcache.Cache, topology health.ShardTopology, expectedPeers int, m *metrics.Metrics) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		stats := cache.Stats()
		m.UpdateCacheStats(stats.ScalarEntries, stats.StringSetEntries, stats.Uint32SetEntries, stats.TombstonedScalars)
		if topology != nil {
			m.UpdateShardTopology(len(topology.KnownShards()), expectedPeers)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func serveMetrics(port int, path string, checker *health.Checker, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	checker.RegisterHandlers(mux)

	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics server starting", zap.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}

func initLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	return cfg.Build()
}
