package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"StockSight/pkg/util"

	"gopkg.in/yaml.v3"
)

// DefaultSymbols is the ticker universe offered by the symbol selector.
var DefaultSymbols = []string{"AAPL", "GOOGL", "AMZN", "MSFT", "TSLA", "FB", "NVDA", "JPM", "V", "JNJ"}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SlowThreshold   time.Duration `yaml:"slow_threshold"`
	} `yaml:"server"`
	Logging struct {
		Level     string `yaml:"level"`
		Format    string `yaml:"format"`
		Output    string `yaml:"output"`
		Collector struct {
			Enabled     bool          `yaml:"enabled"`
			Interval    time.Duration `yaml:"interval"`
			Threshold   int           `yaml:"threshold"`
			Topic       string        `yaml:"topic"`
			IncludeWarn bool          `yaml:"include_warn"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Remote struct {
		BaseURL      string        `yaml:"base_url"`
		ProbeSymbol  string        `yaml:"probe_symbol"`
		ProbeTimeout time.Duration `yaml:"probe_timeout"`
		Timeout      time.Duration `yaml:"timeout"`
		Retries      int           `yaml:"retries"`
	} `yaml:"remote"`
	Provider struct {
		Mode              string  `yaml:"mode"` // auto, remote, synthetic
		LatencyMultiplier float64 `yaml:"latency_multiplier"`
		Seed              uint64  `yaml:"seed"`
	} `yaml:"provider"`
	Symbols []string `yaml:"symbols"`
	Cache   struct {
		TTL        time.Duration `yaml:"ttl"`
		MemorySize int           `yaml:"memory_size"`
		MemoryTTL  time.Duration `yaml:"memory_ttl"` // L1 cap in front of redis
		Redis      struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	RateLimit struct {
		Enabled  bool    `yaml:"enabled"`
		Capacity float64 `yaml:"capacity"`
		Refill   float64 `yaml:"refill_per_sec"`
	} `yaml:"rate_limit"`
	Stream struct {
		Interval     time.Duration `yaml:"interval"`
		PingInterval time.Duration `yaml:"ping_interval"`
	} `yaml:"stream"`
	Snapshots struct {
		Enabled    bool          `yaml:"enabled"`
		Cron       string        `yaml:"cron"`
		Backend    string        `yaml:"backend"` // none, sqlite, clickhouse, kafka
		Timeout    time.Duration `yaml:"timeout"`
		SQLitePath string        `yaml:"sqlite_path"`
		RunOnStart bool          `yaml:"run_on_start"`
		// Concurrency bounds the quote fetches in flight per collection.
		Concurrency int `yaml:"concurrency"`
	} `yaml:"snapshots"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		// Consumer drives cmd/sink, which reads the snapshots topic back
		// into a queryable store.
		Consumer struct {
			GroupID     string        `yaml:"group_id"`
			StartOffset string        `yaml:"start_offset"` // earliest, latest
			Workers     int           `yaml:"workers"`
			RetryMax    int           `yaml:"retry_max"`
			BackoffMin  time.Duration `yaml:"backoff_min"`
			BackoffMax  time.Duration `yaml:"backoff_max"`
			DLQTopic    string        `yaml:"dlq_topic"`
			Store       string        `yaml:"store"` // sqlite, clickhouse
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		Table            string        `yaml:"table"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("REMOTE_BASE_URL"); v != "" {
		c.Remote.BaseURL = v
	}
	if v := os.Getenv("PROVIDER_MODE"); v != "" {
		c.Provider.Mode = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = util.SplitList(v)
	}
	if v := os.Getenv("SNAPSHOT_BACKEND"); v != "" {
		c.Snapshots.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Cache.Redis.Enabled = true
		c.Cache.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Cache.Redis.Port = p
			}
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	// Env may have broken an invariant.
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Logging.Collector.Interval == 0 {
		c.Logging.Collector.Interval = 30 * time.Second
	}
	if c.Logging.Collector.Threshold == 0 {
		c.Logging.Collector.Threshold = 100
	}
	if c.Logging.Collector.Topic == "" {
		c.Logging.Collector.Topic = "stocksight.logs"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Remote.ProbeSymbol == "" {
		c.Remote.ProbeSymbol = "AAPL"
	}
	if c.Remote.ProbeTimeout == 0 {
		c.Remote.ProbeTimeout = 3 * time.Second
	}
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = 10 * time.Second
	}
	if c.Provider.Mode == "" {
		c.Provider.Mode = "auto"
	}
	if c.Provider.LatencyMultiplier == 0 {
		c.Provider.LatencyMultiplier = 1
	}
	if len(c.Symbols) == 0 {
		c.Symbols = append([]string(nil), DefaultSymbols...)
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 15 * time.Minute
	}
	if c.Cache.MemorySize == 0 {
		c.Cache.MemorySize = 1000
	}
	if c.Cache.Redis.Port == 0 {
		c.Cache.Redis.Port = 6379
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "stocksight"
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 20
	}
	if c.RateLimit.Refill == 0 {
		c.RateLimit.Refill = 10
	}
	if c.Stream.Interval == 0 {
		c.Stream.Interval = 5 * time.Second
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = 30 * time.Second
	}
	if c.Snapshots.Cron == "" {
		c.Snapshots.Cron = "0 */15 * * * *"
	}
	if c.Snapshots.Backend == "" {
		c.Snapshots.Backend = "none"
	}
	if c.Snapshots.Timeout == 0 {
		c.Snapshots.Timeout = 30 * time.Second
	}
	if c.Snapshots.SQLitePath == "" {
		c.Snapshots.SQLitePath = "data/snapshots.db"
	}
	if c.Snapshots.Concurrency <= 0 {
		c.Snapshots.Concurrency = 8
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "stocksight.snapshots"
	}
	if c.Kafka.Consumer.GroupID == "" {
		c.Kafka.Consumer.GroupID = "stocksight-sink"
	}
	if c.Kafka.Consumer.StartOffset == "" {
		c.Kafka.Consumer.StartOffset = "earliest"
	}
	if c.Kafka.Consumer.Workers == 0 {
		c.Kafka.Consumer.Workers = 4
	}
	if c.Kafka.Consumer.RetryMax == 0 {
		c.Kafka.Consumer.RetryMax = 3
	}
	if c.Kafka.Consumer.BackoffMin == 0 {
		c.Kafka.Consumer.BackoffMin = 100 * time.Millisecond
	}
	if c.Kafka.Consumer.BackoffMax == 0 {
		c.Kafka.Consumer.BackoffMax = 5 * time.Second
	}
	if c.Kafka.Consumer.Store == "" {
		c.Kafka.Consumer.Store = "sqlite"
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "stocksight"
	}
	if c.ClickHouse.Table == "" {
		c.ClickHouse.Table = "quote_snapshots"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Provider.Mode {
	case "auto", "remote", "synthetic":
	default:
		return fmt.Errorf("provider.mode must be 'auto', 'remote' or 'synthetic', got '%s'", c.Provider.Mode)
	}
	if c.Provider.Mode != "synthetic" && c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required unless provider.mode is 'synthetic'")
	}
	if c.Provider.LatencyMultiplier < 0 {
		return fmt.Errorf("provider.latency_multiplier cannot be negative")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols cannot be empty")
	}
	switch c.Snapshots.Backend {
	case "none", "sqlite", "clickhouse", "kafka":
	default:
		return fmt.Errorf("snapshots.backend must be one of none, sqlite, clickhouse, kafka, got '%s'", c.Snapshots.Backend)
	}
	if c.Snapshots.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when snapshots.backend is 'kafka'")
	}
	if c.Snapshots.Backend == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when snapshots.backend is 'clickhouse'")
	}
	switch c.Kafka.Consumer.Store {
	case "sqlite", "clickhouse":
	default:
		return fmt.Errorf("kafka.consumer.store must be 'sqlite' or 'clickhouse', got '%s'", c.Kafka.Consumer.Store)
	}
	switch c.Kafka.Consumer.StartOffset {
	case "earliest", "latest":
	default:
		return fmt.Errorf("kafka.consumer.start_offset must be 'earliest' or 'latest', got '%s'", c.Kafka.Consumer.StartOffset)
	}
	if c.Logging.Collector.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("logging.collector requires kafka.brokers")
	}
	return nil
}

// RemoteAPIBase returns the prediction API root (origin + /api).
func (c *Config) RemoteAPIBase() string {
	return strings.TrimRight(c.Remote.BaseURL, "/") + "/api"
}
