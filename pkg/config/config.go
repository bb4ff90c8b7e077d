// Package config loads the searcher configuration from a YAML file with
// environment-variable overrides. It provides typed structs for every
// subsystem (Server, Redis, Kafka, Index, Search, Cache, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Redis   RedisConfig   `yaml:"redis"`
	Index   IndexConfig   `yaml:"index"`
	Search  SearchConfig  `yaml:"search"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RateLimit       RateLimit     `yaml:"rateLimit"`
}

// RateLimit bounds the request rate of each client. A zero rate disables
// limiting.
type RateLimit struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
	MaxClients        int     `yaml:"maxClients"`
}

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables search analytics.
type KafkaConfig struct {
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchEvents string `yaml:"searchEvents"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// IndexConfig describes the corpus loaded into in-memory shards at start-up.
type IndexConfig struct {
	CorpusPath    string   `yaml:"corpusPath"`
	NumShards     int      `yaml:"numShards"`
	Analyzer      string   `yaml:"analyzer"`
	KeywordFields []string `yaml:"keywordFields"`
}

// SearchConfig controls query execution limits and cache sizes.
type SearchConfig struct {
	DefaultField        string `yaml:"defaultField"`
	DefaultLimit        int    `yaml:"defaultLimit"`
	MaxResults          int    `yaml:"maxResults"`
	Parallel            bool   `yaml:"parallel"`
	FieldCacheSize      int    `yaml:"fieldCacheSize"`
	ComparatorCacheSize int    `yaml:"comparatorCacheSize"`
	MaxClauseCount      int    `yaml:"maxClauseCount"`
}

// CacheConfig controls the Redis result cache and the circuit breaker that
// guards it.
type CacheConfig struct {
	Enabled          bool          `yaml:"enabled"`
	TTL              time.Duration `yaml:"ttl"`
	FailureThreshold int           `yaml:"failureThreshold"`
	SuccessThreshold int           `yaml:"successThreshold"`
	OpenTimeout      time.Duration `yaml:"openTimeout"`
	OperationTimeout time.Duration `yaml:"operationTimeout"`
	ConnectAttempts  int           `yaml:"connectAttempts"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the searcher cannot run with.
func (c *Config) Validate() error {
	if c.Index.NumShards < 1 {
		return fmt.Errorf("index.numShards must be at least 1, got %d", c.Index.NumShards)
	}
	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("search.defaultLimit must be at least 1, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search.maxResults (%d) is below search.defaultLimit (%d)",
			c.Search.MaxResults, c.Search.DefaultLimit)
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("server.rateLimit.requestsPerSecond must not be negative, got %v", c.Server.RateLimit.RequestsPerSecond)
	}
	if c.Search.MaxClauseCount < 1 {
		return fmt.Errorf("search.maxClauseCount must be at least 1, got %d", c.Search.MaxClauseCount)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit: RateLimit{
				RequestsPerSecond: 50,
				Burst:             100,
				MaxClients:        10000,
			},
		},
		Kafka: KafkaConfig{
			Topics: KafkaTopics{
				SearchEvents: "search-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Index: IndexConfig{
			NumShards: 2,
			Analyzer:  "english",
		},
		Search: SearchConfig{
			DefaultField:        "body",
			DefaultLimit:        10,
			MaxResults:          1000,
			Parallel:            true,
			FieldCacheSize:      256,
			ComparatorCacheSize: 256,
			MaxClauseCount:      1024,
		},
		Cache: CacheConfig{
			Enabled:          false,
			TTL:              60 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			OpenTimeout:      30 * time.Second,
			OperationTimeout: 100 * time.Millisecond,
			ConnectAttempts:  3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_SERVER_RATE_LIMIT_RPS"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.RateLimit.RequestsPerSecond = rps
		}
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_INDEX_CORPUS_PATH"); v != "" {
		cfg.Index.CorpusPath = v
	}
	if v := os.Getenv("SP_INDEX_NUM_SHARDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.NumShards = n
		}
	}
	if v := os.Getenv("SP_INDEX_ANALYZER"); v != "" {
		cfg.Index.Analyzer = v
	}
	if v := os.Getenv("SP_SEARCH_PARALLEL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Search.Parallel = b
		}
	}
	if v := os.Getenv("SP_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
