package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Server struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
	IdleTimeoutMS  int    `yaml:"idle_timeout_ms"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes"`
}

type Redis struct {
	Backend    string `yaml:"backend"` // "redis" or "memory"
	URL        string `yaml:"url"`
	TimeoutMS  int    `yaml:"timeout_ms"` // per-decision store deadline
	PoolSize   int    `yaml:"pool_size"`
	KeyPrefix  string `yaml:"key_prefix"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type Observability struct {
	LogLevel       string `yaml:"log_level"`       // "debug","info","warn","error"
	PrometheusPath string `yaml:"prometheus_path"` // e.g. "/prometheus"
}

// Policy holds the defaults for fields omitted from a POST /check body.
type Policy struct {
	Capacity   int64   `yaml:"capacity"`
	RefillRate float64 `yaml:"refill_rate"`
	Tokens     int64   `yaml:"tokens"`
}

// LoadTest is the fixed policy behind GET /check.
type LoadTest struct {
	ClientID string `yaml:"client_id"`
	Policy   `yaml:",inline"`
}

type Root struct {
	Server        Server        `yaml:"server"`
	Redis         Redis         `yaml:"redis"`
	Observability Observability `yaml:"observability"`
	Policy        Policy        `yaml:"policy"`
	LoadTest      LoadTest      `yaml:"load_test"`
}

func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s Server) ReadTimeout() time.Duration {
	if s.ReadTimeoutMS == 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

func (s Server) WriteTimeout() time.Duration {
	if s.WriteTimeoutMS == 0 {
		return 10 * time.Second
	}
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

func (s Server) IdleTimeout() time.Duration {
	if s.IdleTimeoutMS == 0 {
		return 60 * time.Second
	}
	return time.Duration(s.IdleTimeoutMS) * time.Millisecond
}

func (s Server) MaxBody() int64 {
	if s.MaxBodyBytes == 0 {
		return 1 << 20
	}
	return s.MaxBodyBytes
} // default 1MB

func (r Redis) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

func (r Redis) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

// ClientOptions parses URL into go-redis options. The "tcp://" scheme used by
// other Redis clients is accepted as an alias of "redis://".
func (r Redis) ClientOptions() (*redis.Options, error) {
	u := r.URL
	if rest, ok := strings.CutPrefix(u, "tcp://"); ok {
		u = "redis://" + rest
	}
	opts, err := redis.ParseURL(u)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if r.PoolSize > 0 {
		opts.PoolSize = r.PoolSize
	}
	return opts, nil
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and fills defaults.
func Load(path string) (*Root, error) {
	var cfg Root
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Root) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Redis.Backend == "" {
		cfg.Redis.Backend = BackendRedis
	}
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "tcp://127.0.0.1:6379"
	}
	if cfg.Redis.TimeoutMS <= 0 {
		cfg.Redis.TimeoutMS = 250
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "rate_limit:"
	}
	if cfg.Redis.TTLSeconds <= 0 {
		cfg.Redis.TTLSeconds = 3600
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.PrometheusPath == "" {
		cfg.Observability.PrometheusPath = "/prometheus"
	}
	cfg.Policy.fill(Policy{Capacity: 100, RefillRate: 10.0, Tokens: 1})
	if cfg.LoadTest.ClientID == "" {
		cfg.LoadTest.ClientID = "load_test"
	}
	cfg.LoadTest.fill(Policy{Capacity: 1000, RefillRate: 100.0, Tokens: 1})
}

func (p *Policy) fill(def Policy) {
	if p.Capacity <= 0 {
		p.Capacity = def.Capacity
	}
	if p.RefillRate <= 0 {
		p.RefillRate = def.RefillRate
	}
	if p.Tokens <= 0 {
		p.Tokens = def.Tokens
	}
}

func (cfg *Root) validate() error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}
	switch cfg.Redis.Backend {
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Redis.Backend)
	}
	if !strings.HasPrefix(cfg.Observability.PrometheusPath, "/") {
		return fmt.Errorf("prometheus path %q must start with /", cfg.Observability.PrometheusPath)
	}
	return nil
}
