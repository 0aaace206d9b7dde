// Package config loads the server's configuration from a YAML file,
// overlaid with environment variables, through a LoadConfig/
// setDefaults/Validate pipeline.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds the gRPC server's own listening configuration.
type ServerConfig struct {
	NodeID          string        `yaml:"node_id" env:"KV_NODE_ID"`
	Host            string        `yaml:"host" env:"KV_HOST"`
	Port            int           `yaml:"port" env:"KV_PORT"`
	AdvertiseAddr   string        `yaml:"advertise_addr" env:"KV_ADVERTISE_ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"KV_SHUTDOWN_TIMEOUT"`
}

// ShardingConfig holds the recognized sharding options.
type ShardingConfig struct {
	NumShards           int    `yaml:"num_shards" env:"KV_NUM_SHARDS"`
	ShardNum            int    `yaml:"shard_num" env:"KV_SHARD_NUM"`
	ShardingKeyRegex    string `yaml:"sharding_key_regex" env:"KV_SHARDING_KEY_REGEX"`
	UseShardingKeyRegex bool   `yaml:"use_sharding_key_regex" env:"KV_USE_SHARDING_KEY_REGEX"`
	// HashSeed is the fixed hashing seed every instance of one
	// deployment must share so they agree on placement.
	HashSeed string `yaml:"hash_seed" env:"KV_HASH_SEED"`
}

// DiscoveryConfig holds the memberlist-based shard discovery loop's
// configuration.
type DiscoveryConfig struct {
	BindPort  int      `yaml:"bind_port" env:"KV_DISCOVERY_BIND_PORT"`
	SeedNodes []string `yaml:"seed_nodes" env:"KV_DISCOVERY_SEED_NODES" envSeparator:","`
}

// IngestionConfig holds the data-loading and realtime-updater knobs.
type IngestionConfig struct {
	DataLoadingNumThreads     int           `yaml:"data_loading_num_threads" env:"KV_DATA_LOADING_NUM_THREADS"`
	RealtimeUpdaterNumThreads int           `yaml:"realtime_updater_num_threads" env:"KV_REALTIME_UPDATER_NUM_THREADS"`
	BackupPollFrequencySecs   int           `yaml:"backup_poll_frequency_secs" env:"KV_BACKUP_POLL_FREQUENCY_SECS"`
	GCInterval                time.Duration `yaml:"gc_interval" env:"KV_GC_INTERVAL"`
	GCSafetyMarginMillis      int64         `yaml:"gc_safety_margin_millis" env:"KV_GC_SAFETY_MARGIN_MILLIS"`
}

// UDFConfig holds the sizing knobs for the (external) UDF runtime.
type UDFConfig struct {
	NumWorkers    int `yaml:"udf_num_workers" env:"KV_UDF_NUM_WORKERS"`
	TimeoutMillis int `yaml:"udf_timeout_millis" env:"KV_UDF_TIMEOUT_MILLIS"`
}

// RateLimitConfig configures the per-process request-admission token
// bucket.
type RateLimitConfig struct {
	Capacity float64 `yaml:"capacity" env:"KV_RATE_LIMIT_CAPACITY"`
	FillRate float64 `yaml:"fill_rate" env:"KV_RATE_LIMIT_FILL_RATE"`
}

// MetricsConfig holds the Prometheus exporter's configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"KV_METRICS_ENABLED"`
	Port    int    `yaml:"port" env:"KV_METRICS_PORT"`
	Path    string `yaml:"path" env:"KV_METRICS_PATH"`
}

// LoggingConfig holds the zap logger's configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"KV_LOG_LEVEL"`
	Format string `yaml:"format" env:"KV_LOG_FORMAT"`
}

// Config is the complete configuration tree for one data-server
// process.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Sharding  ShardingConfig  `yaml:"sharding"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	UDF       UDFConfig       `yaml:"udf"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoadConfig reads filePath as YAML, overlays environment variables,
// fills in defaults, and validates the result.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to overlay environment variables: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 50052
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Sharding.NumShards == 0 {
		cfg.Sharding.NumShards = 1
	}

	if cfg.Ingestion.DataLoadingNumThreads == 0 {
		cfg.Ingestion.DataLoadingNumThreads = 4
	}
	if cfg.Ingestion.RealtimeUpdaterNumThreads == 0 {
		cfg.Ingestion.RealtimeUpdaterNumThreads = 2
	}
	if cfg.Ingestion.BackupPollFrequencySecs == 0 {
		cfg.Ingestion.BackupPollFrequencySecs = 30
	}
	if cfg.Ingestion.GCInterval == 0 {
		cfg.Ingestion.GCInterval = 5 * time.Minute
	}
	if cfg.Ingestion.GCSafetyMarginMillis == 0 {
		cfg.Ingestion.GCSafetyMarginMillis = 60_000
	}

	if cfg.UDF.NumWorkers == 0 {
		cfg.UDF.NumWorkers = 4
	}
	if cfg.UDF.TimeoutMillis == 0 {
		cfg.UDF.TimeoutMillis = 100
	}

	if cfg.RateLimit.Capacity == 0 {
		cfg.RateLimit.Capacity = 10000
	}
	if cfg.RateLimit.FillRate == 0 {
		cfg.RateLimit.FillRate = 10000
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks invariants LoadConfig's caller must not violate.
func (c *Config) Validate() error {
	if c.Server.NodeID == "" {
		return fmt.Errorf("server.node_id is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Sharding.NumShards < 1 {
		return fmt.Errorf("sharding.num_shards must be >= 1")
	}
	if c.Sharding.ShardNum < 0 || c.Sharding.ShardNum >= c.Sharding.NumShards {
		return fmt.Errorf("sharding.shard_num must be in [0, num_shards)")
	}
	if c.Sharding.UseShardingKeyRegex && c.Sharding.ShardingKeyRegex == "" {
		return fmt.Errorf("sharding.sharding_key_regex is required when use_sharding_key_regex is set")
	}
	if c.Sharding.NumShards > 1 && c.Sharding.HashSeed == "" {
		return fmt.Errorf("sharding.hash_seed is required for multi-shard deployments")
	}
	return nil
}
