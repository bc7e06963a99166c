package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"5s"`
		CORS            bool          `yaml:"cors"`
		CacheMaxAge     time.Duration `yaml:"cache_max_age" default:"30s"`
		RateLimit       struct {
			PerSecond float64       `yaml:"per_second" default:"2"`
			Burst     int           `yaml:"burst" default:"10"`
			Idle      time.Duration `yaml:"idle" default:"10m"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Log struct {
		Level      string `yaml:"level" default:"info"`
		Format     string `yaml:"format" default:"json"`
		Output     string `yaml:"output" default:"stdout"`
		TimeFormat string `yaml:"time_format"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
	Forecast struct {
		Window          int     `yaml:"window" default:"120"`
		DefaultSteps    int     `yaml:"default_steps" default:"10"`
		ConfidenceLevel float64 `yaml:"confidence_level" default:"0.95"`
		MaxEvaluations  int     `yaml:"max_evaluations" default:"2000"`
		ArimaOrder      []int   `yaml:"arima_order" default:"[5,1,0]"`
		SeasonalOrder   []int   `yaml:"seasonal_order" default:"[1,1,1,5]"`
	} `yaml:"forecast"`
	Provider struct {
		Type  string `yaml:"type" default:"alphavantage"`
		Cache struct {
			Type    string        `yaml:"type" default:"memory"`
			TTL     time.Duration `yaml:"ttl" default:"15m"`
			MaxSize int           `yaml:"max_size" default:"1000"`
		} `yaml:"cache"`
	} `yaml:"provider"`
	AlphaVantage struct {
		APIKey            string        `yaml:"api_key"`
		BaseURL           string        `yaml:"base_url" default:"https://www.alphavantage.co/query"`
		RequestsPerMinute int           `yaml:"requests_per_minute" default:"5"`
		Timeout           time.Duration `yaml:"timeout" default:"15s"`
	} `yaml:"alphavantage"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"fincast"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		MaxConnections   int           `yaml:"max_connections" default:"10"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		InitSchema       bool          `yaml:"init_schema"`
		HistoryLimit     int           `yaml:"history_limit" default:"240"`
	} `yaml:"clickhouse"`
	SQLite struct {
		Path         string `yaml:"path" default:"data/fincast.db"`
		HistoryLimit int    `yaml:"history_limit" default:"240"`
	} `yaml:"sqlite"`
	Orders struct {
		Type string `yaml:"type" default:"file"`
		Path string `yaml:"path" default:"configs/orders.yaml"`
		Key  string `yaml:"key" default:"fincast:orders"`
	} `yaml:"orders"`
	Redis struct {
		Addr         string        `yaml:"addr" default:"localhost:6379"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		PoolSize     int           `yaml:"pool_size" default:"10"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
		PoolTimeout  time.Duration `yaml:"pool_timeout" default:"4s"`
		Prefix       string        `yaml:"prefix" default:"fincast"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		ForecastTopic string   `yaml:"forecast_topic" default:"fincast.forecasts"`
		RequestTopic  string   `yaml:"request_topic"`
		RequiredAcks  int      `yaml:"required_acks" default:"-1"`
		Compression   string   `yaml:"compression" default:"snappy"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"fincast"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"100"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Scheduler struct {
		Enabled    bool          `yaml:"enabled"`
		Spec       string        `yaml:"spec" default:"30 21 * * 1-5"`
		Watchlist  []string      `yaml:"watchlist"`
		JobTimeout time.Duration `yaml:"job_timeout" default:"2m"`
	} `yaml:"scheduler"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// Validation runs after the overrides so secrets may live only in the environment.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		c.AlphaVantage.APIKey = v
	}
	if v := getenv("PROVIDER"); v != "" {
		c.Provider.Type = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("WATCHLIST"); v != "" {
		c.Scheduler.Watchlist = splitList(v)
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	switch c.Provider.Type {
	case "alphavantage":
		if c.AlphaVantage.APIKey == "" {
			return fmt.Errorf("alphavantage.api_key is required for provider 'alphavantage'")
		}
	case "clickhouse":
		if c.ClickHouse.Host == "" || c.ClickHouse.Database == "" {
			return fmt.Errorf("clickhouse.host and clickhouse.database are required")
		}
	case "sqlite":
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required")
		}
	default:
		return fmt.Errorf("provider.type must be 'alphavantage', 'clickhouse' or 'sqlite', got '%s'", c.Provider.Type)
	}

	switch c.Provider.Cache.Type {
	case "none", "memory":
	case "redis", "layered":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for provider.cache.type '%s'", c.Provider.Cache.Type)
		}
	default:
		return fmt.Errorf("provider.cache.type must be 'none', 'memory', 'redis' or 'layered', got '%s'", c.Provider.Cache.Type)
	}

	switch c.Orders.Type {
	case "file":
		if c.Orders.Path == "" {
			return fmt.Errorf("orders.path is required")
		}
	case "redis":
		if c.Orders.Key == "" || c.Redis.Addr == "" {
			return fmt.Errorf("orders.key and redis.addr are required for orders.type 'redis'")
		}
	default:
		return fmt.Errorf("orders.type must be 'file' or 'redis', got '%s'", c.Orders.Type)
	}

	if len(c.Forecast.ArimaOrder) != 3 {
		return fmt.Errorf("forecast.arima_order needs 3 values, got %d", len(c.Forecast.ArimaOrder))
	}
	if len(c.Forecast.SeasonalOrder) != 4 {
		return fmt.Errorf("forecast.seasonal_order needs 4 values, got %d", len(c.Forecast.SeasonalOrder))
	}
	if !(c.Forecast.ConfidenceLevel > 0 && c.Forecast.ConfidenceLevel < 1) {
		return fmt.Errorf("forecast.confidence_level must be in (0,1), got %v", c.Forecast.ConfidenceLevel)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Scheduler.Enabled && len(c.Scheduler.Watchlist) == 0 {
		return fmt.Errorf("scheduler.watchlist cannot be empty when the scheduler is enabled")
	}
	return nil
}
