// Package health reports liveness and readiness for one data-server
// process: a periodic background check feeding an HTTP probe endpoint,
// watching cache occupancy, shard connectivity, and ingestion progress.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adtech/kvserving/internal/cache"
	"github.com/adtech/kvserving/internal/ingestion"
)

// Status is the coarse health verdict: healthy, degraded, or unhealthy.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is one named check's outcome.
type CheckResult struct {
	Name      string
	Status    Status
	Message   string
	Timestamp time.Time
}

// ShardTopology is the subset of ShardManager the checker needs; an
// interface so tests don't have to stand up memberlist.
type ShardTopology interface {
	CurrentShard() int
	KnownShards() []int
}

// Checker periodically inspects the cache, shard topology, and
// ingestion coordinator and answers liveness/readiness probes.
type Checker struct {
	nodeID        string
	cache         *cache.Cache
	shardManager  ShardTopology
	coordinator   *ingestion.Coordinator
	expectedPeers int
	logger        *zap.Logger

	mu          sync.RWMutex
	lastCheck   time.Time
	status      Status
	checks      map[string]CheckResult
	livenessOK  bool
	readinessOK bool
}

// Config configures Checker construction. ShardManager and
// Coordinator are optional: a single-shard deployment with no
// ingestion wired yet simply skips those checks.
type Config struct {
	NodeID        string
	Cache         *cache.Cache
	ShardManager  ShardTopology
	Coordinator   *ingestion.Coordinator
	ExpectedPeers int
	Logger        *zap.Logger
}

// New creates a Checker. cfg.Cache must not be nil.
func New(cfg Config) *Checker {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		nodeID:        cfg.NodeID,
		cache:         cfg.Cache,
		shardManager:  cfg.ShardManager,
		coordinator:   cfg.Coordinator,
		expectedPeers: cfg.ExpectedPeers,
		logger:        logger,
		checks:        make(map[string]CheckResult),
		livenessOK:    true,
		readinessOK:   true,
		status:        StatusHealthy,
	}
}

// Start runs periodic checks until ctx is cancelled.
func (h *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	h.runChecks()

	for {
		select {
		case <-ticker.C:
			h.runChecks()
		case <-ctx.Done():
			h.logger.Info("health checker stopped")
			return
		}
	}
}

func (h *Checker) runChecks() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastCheck = time.Now()

	results := []CheckResult{h.checkCache()}
	if h.shardManager != nil {
		results = append(results, h.checkShardConnectivity())
	}
	if h.coordinator != nil {
		results = append(results, h.checkIngestion())
	}

	allHealthy := true
	allReady := true
	for _, r := range results {
		h.checks[r.Name] = r
		if r.Status != StatusHealthy {
			allHealthy = false
		}
		if r.Status == StatusUnhealthy {
			allReady = false
		}
	}

	switch {
	case !allReady:
		h.status = StatusUnhealthy
	case !allHealthy:
		h.status = StatusDegraded
	default:
		h.status = StatusHealthy
	}

	h.livenessOK = true
	h.readinessOK = allReady

	h.logger.Debug("health check completed",
		zap.String("status", string(h.status)),
		zap.Bool("readiness", h.readinessOK))
}

// checkCache reports on cache occupancy. It is never unhealthy; it
// reports degraded when more than 1000 scalar entries exist and over
// half of them are tombstones, surfacing tombstone buildup for operators.
func (h *Checker) checkCache() CheckResult {
	stats := h.cache.Stats()
	status := StatusHealthy
	if stats.TombstonedScalars > stats.ScalarEntries/2 && stats.ScalarEntries > 1000 {
		status = StatusDegraded
	}
	msg := "scalar=" + strconv.Itoa(stats.ScalarEntries) +
		" string_sets=" + strconv.Itoa(stats.StringSetEntries) +
		" uint32_sets=" + strconv.Itoa(stats.Uint32SetEntries) +
		" tombstoned=" + strconv.Itoa(stats.TombstonedScalars)
	return CheckResult{Name: "cache_occupancy", Status: status, Message: msg, Timestamp: time.Now()}
}

// checkShardConnectivity flags a process as degraded when it cannot
// reach every other shard it expects to fan out to -- a ShardedLookup
// request touching a missing shard fails that bucket as Internal, so
// this surfaces the same condition before a caller hits it.
func (h *Checker) checkShardConnectivity() CheckResult {
	known := h.shardManager.KnownShards()
	if h.expectedPeers == 0 || len(known) >= h.expectedPeers {
		return CheckResult{
			Name:      "shard_connectivity",
			Status:    StatusHealthy,
			Message:   strconv.Itoa(len(known)) + " peer shard(s) reachable",
			Timestamp: time.Now(),
		}
	}
	return CheckResult{
		Name:      "shard_connectivity",
		Status:    StatusDegraded,
		Message:   strconv.Itoa(len(known)) + " of " + strconv.Itoa(h.expectedPeers) + " peer shards reachable",
		Timestamp: time.Now(),
	}
}

// checkIngestion flags a process as degraded if delta or realtime
// application has started failing -- a rising failed counter usually
// means malformed records or a cache kind-mismatch upstream.
func (h *Checker) checkIngestion() CheckResult {
	stats := h.coordinator.Stats()
	status := StatusHealthy
	if stats.TotalFailed > 0 {
		status = StatusDegraded
	}
	msg := "updated=" + strconv.FormatInt(stats.TotalUpdated, 10) +
		" deleted=" + strconv.FormatInt(stats.TotalDeleted, 10) +
		" dropped=" + strconv.FormatInt(stats.TotalDropped, 10) +
		" failed=" + strconv.FormatInt(stats.TotalFailed, 10)
	return CheckResult{Name: "ingestion", Status: status, Message: msg, Timestamp: time.Now()}
}

// IsLive reports the liveness probe's verdict.
func (h *Checker) IsLive() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.livenessOK
}

// IsReady reports the readiness probe's verdict.
func (h *Checker) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.readinessOK
}

// SetReadiness lets a process mark itself unready during graceful
// shutdown before it stops accepting connections.
func (h *Checker) SetReadiness(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readinessOK = ready
}

// Checks returns a copy of every named check's latest result.
func (h *Checker) Checks() map[string]CheckResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]CheckResult, len(h.checks))
	for k, v := range h.checks {
		out[k] = v
	}
	return out
}

func (h *Checker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	live := h.IsLive()
	w.Header().Set("Content-Type", "application/json")
	if !live {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"healthy": live, "node_id": h.nodeID})
}

func (h *Checker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ready := h.IsReady()
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ready": ready, "node_id": h.nodeID})
}

// RegisterHandlers mounts the liveness and readiness probes on mux.
func (h *Checker) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/health/live", h.LivenessHandler)
	mux.HandleFunc("/health/ready", h.ReadinessHandler)
}
