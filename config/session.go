package config

import (
	"fmt"
	"strings"
	"time"
)

// SessionBackend selects where sessions are kept.
type SessionBackend string

const (
	// SessionBackendMemory keeps sessions in process memory.
	SessionBackendMemory SessionBackend = "memory"
	// SessionBackendRedis keeps sessions in Redis and shares change events across replicas.
	SessionBackendRedis SessionBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionBackend.
func (b *SessionBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "redis":
		*b = SessionBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid SessionBackend: %q (valid options: memory, redis)", v)
	}
}

// SessionConfig contains session store configuration.
type SessionConfig struct {
	Backend   SessionBackend `env:"BACKEND"    envDefault:"memory"`
	IdleTTL   time.Duration  `env:"IDLE_TTL"   envDefault:"12h"`
	KeyPrefix string         `env:"KEY_PREFIX" envDefault:"sen:session:"`
	// CookieName is the browser cookie carrying the session ID.
	CookieName string `env:"COOKIE_NAME" envDefault:"session_id"`
	// ReapInterval is how often the memory backend sweeps idle sessions.
	ReapInterval time.Duration `env:"REAP_INTERVAL" envDefault:"5m"`
}

// Sanitize applies defaults to empty or non-positive values.
func (s *SessionConfig) Sanitize() {
	if s.IdleTTL <= 0 {
		s.IdleTTL = 12 * time.Hour
	}
	if s.KeyPrefix = strings.TrimSpace(s.KeyPrefix); s.KeyPrefix == "" {
		s.KeyPrefix = "sen:session:"
	}
	if s.CookieName = strings.TrimSpace(s.CookieName); s.CookieName == "" {
		s.CookieName = "session_id"
	}
	if s.ReapInterval <= 0 {
		s.ReapInterval = 5 * time.Minute
	}
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}
