// Package config loads the swapbook server configuration from defaults, an
// optional YAML file, a .env file, SWAPBOOK_ environment variables and
// command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SWAPBOOK_SERVER_GRPC_ADDR
const EnvPrefix = "SWAPBOOK"

// Supported backends and notification drivers
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendPebble = "pebble"

	DriverKafkaGo = "kafka-go"
	DriverSarama  = "sarama"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		GRPCAddr    string   `yaml:"grpc_addr"`
		HTTPAddr    string   `yaml:"http_addr"`
		LogLevel    string   `yaml:"log_level"`
		LogFormat   string   `yaml:"log_format"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`

	Book struct {
		Name     string        `yaml:"name"`
		Backend  string        `yaml:"backend"`
		OrderTTL time.Duration `yaml:"order_ttl"`
	} `yaml:"book"`

	Matching struct {
		EnforceOwnership bool `yaml:"enforce_ownership"`
		ExcludeExpired   bool `yaml:"exclude_expired"`
	} `yaml:"matching"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Pebble struct {
		Path string `yaml:"path"`
	} `yaml:"pebble"`

	Kafka struct {
		Enabled    bool   `yaml:"enabled"`
		Driver     string `yaml:"driver"`
		BrokerAddr string `yaml:"broker_addr"`
		Topic      string `yaml:"topic"`
	} `yaml:"kafka"`

	Telemetry struct {
		Enabled     bool   `yaml:"enabled"`
		Endpoint    string `yaml:"endpoint"`
		ServiceName string `yaml:"service_name"`
	} `yaml:"telemetry"`

	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"ratelimit"`
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{}
	cfg.Server.GRPCAddr = ":50051"
	cfg.Server.HTTPAddr = ":8080"
	cfg.Server.LogLevel = "info"
	cfg.Server.LogFormat = "pretty"
	cfg.Book.Name = "swapbook"
	cfg.Book.Backend = BackendMemory
	cfg.Book.OrderTTL = 24 * time.Hour
	cfg.Matching.EnforceOwnership = true
	cfg.Matching.ExcludeExpired = true
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Prefix = "swapbook"
	cfg.Pebble.Path = "data/swapbook"
	cfg.Kafka.Driver = DriverKafkaGo
	cfg.Kafka.BrokerAddr = "localhost:9092"
	cfg.Kafka.Topic = "swapbook-matches"
	cfg.Telemetry.Endpoint = "localhost:4317"
	cfg.Telemetry.ServiceName = "swapbook"
	cfg.RateLimit.Burst = 20
	return cfg
}

// LoadConfig builds the configuration for the given command line arguments
// (without the program name)
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("swapbook", flag.ContinueOnError)
	configFile := fs.String("config", "", "Path to config file (YAML)")
	envFile := fs.String("env", "", "Path to a .env file (default: ./.env when present)")
	grpcPort := fs.Int("grpc_port", 50051, "The gRPC server port")
	httpPort := fs.Int("http_port", 8080, "The HTTP server port")
	logLevel := fs.String("log_level", "info", "Log level: debug, info, warn, error")
	logFormat := fs.String("log_format", "pretty", "Log format: json, pretty")
	backend := fs.String("backend", BackendMemory, "Order book backend: memory, redis, pebble")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()

	if *configFile != "" {
		yamlFile, err := os.ReadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}
	applyEnv(cfg)

	// explicitly set flags win over every other source
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "grpc_port":
			cfg.Server.GRPCAddr = fmt.Sprintf(":%d", *grpcPort)
		case "http_port":
			cfg.Server.HTTPAddr = fmt.Sprintf(":%d", *httpPort)
		case "log_level":
			cfg.Server.LogLevel = *logLevel
		case "log_format":
			cfg.Server.LogFormat = *logFormat
		case "backend":
			cfg.Book.Backend = *backend
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides cfg with SWAPBOOK_<SECTION>_<KEY> environment variables
func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	boolean := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	integer := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	str("server.grpc_addr", &cfg.Server.GRPCAddr)
	str("server.http_addr", &cfg.Server.HTTPAddr)
	str("server.log_level", &cfg.Server.LogLevel)
	str("server.log_format", &cfg.Server.LogFormat)
	if v.IsSet("server.cors_origins") {
		cfg.Server.CORSOrigins = splitList(v.GetString("server.cors_origins"))
	}

	str("book.name", &cfg.Book.Name)
	str("book.backend", &cfg.Book.Backend)
	if v.IsSet("book.order_ttl") {
		cfg.Book.OrderTTL = v.GetDuration("book.order_ttl")
	}

	boolean("matching.enforce_ownership", &cfg.Matching.EnforceOwnership)
	boolean("matching.exclude_expired", &cfg.Matching.ExcludeExpired)

	str("redis.addr", &cfg.Redis.Addr)
	str("redis.password", &cfg.Redis.Password)
	integer("redis.db", &cfg.Redis.DB)
	str("redis.prefix", &cfg.Redis.Prefix)

	str("pebble.path", &cfg.Pebble.Path)

	boolean("kafka.enabled", &cfg.Kafka.Enabled)
	str("kafka.driver", &cfg.Kafka.Driver)
	str("kafka.broker_addr", &cfg.Kafka.BrokerAddr)
	str("kafka.topic", &cfg.Kafka.Topic)

	boolean("telemetry.enabled", &cfg.Telemetry.Enabled)
	str("telemetry.endpoint", &cfg.Telemetry.Endpoint)
	str("telemetry.service_name", &cfg.Telemetry.ServiceName)

	if v.IsSet("ratelimit.requests_per_second") {
		cfg.RateLimit.RequestsPerSecond = v.GetFloat64("ratelimit.requests_per_second")
	}
	integer("ratelimit.burst", &cfg.RateLimit.Burst)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration for unsupported values
func (c *Config) Validate() error {
	var errs []error
	if c.Server.GRPCAddr == "" {
		errs = append(errs, errors.New("server.grpc_addr must not be empty"))
	}
	switch c.Server.LogFormat {
	case "json", "pretty":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Server.LogFormat))
	}

	switch c.Book.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr must not be empty"))
		}
	case BackendPebble:
		if c.Pebble.Path == "" {
			errs = append(errs, errors.New("pebble.path must not be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Book.Backend))
	}
	if c.Book.OrderTTL <= 0 {
		errs = append(errs, errors.New("book.order_ttl must be positive"))
	}

	if c.Kafka.Enabled {
		switch c.Kafka.Driver {
		case DriverKafkaGo, DriverSarama:
		default:
			errs = append(errs, fmt.Errorf("unknown kafka driver %q", c.Kafka.Driver))
		}
		if c.Kafka.BrokerAddr == "" || c.Kafka.Topic == "" {
			errs = append(errs, errors.New("kafka.broker_addr and kafka.topic must not be empty"))
		}
	}

	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("ratelimit values must not be negative"))
	}
	return errors.Join(errs...)
}
