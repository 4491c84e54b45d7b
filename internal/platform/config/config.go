// Package config builds runtime configuration from the environment so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures everything the authgate binary needs at startup.
type Server struct {
	Addr string

	JWTSigningKey string
	TokenIssuer   string
	TokenAudience string

	CacheTTL        time.Duration
	TraceEnabled    bool
	ErrorBufferSize int

	Redis       RedisConfig
	PostgresDSN string

	KafkaBrokers []string
	KafkaTopic   string
}

// RedisConfig holds connection tuning for the decision cache. An empty
// URL means Redis is not configured and the in-process cache is used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from AUTHGATE_* environment variables.
func FromEnv() Server {
	addr := os.Getenv("AUTHGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("AUTHGATE_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	issuer := os.Getenv("AUTHGATE_TOKEN_ISSUER")
	if issuer == "" {
		issuer = "authgate"
	}
	audience := os.Getenv("AUTHGATE_TOKEN_AUDIENCE")
	if audience == "" {
		audience = "authgate"
	}

	var brokers []string
	if raw := os.Getenv("AUTHGATE_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}
	topic := os.Getenv("AUTHGATE_KAFKA_TOPIC")
	if topic == "" {
		topic = "authgate.decisions"
	}

	return Server{
		Addr:            addr,
		JWTSigningKey:   jwtSigningKey,
		TokenIssuer:     issuer,
		TokenAudience:   audience,
		CacheTTL:        envDuration("AUTHGATE_CACHE_TTL", 30*time.Second),
		TraceEnabled:    os.Getenv("AUTHGATE_TRACE_ENABLED") == "true",
		ErrorBufferSize: envInt("AUTHGATE_ERROR_BUFFER_SIZE", 32),
		Redis: RedisConfig{
			URL:          os.Getenv("AUTHGATE_REDIS_URL"),
			PoolSize:     envInt("AUTHGATE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("AUTHGATE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("AUTHGATE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("AUTHGATE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("AUTHGATE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		PostgresDSN:  os.Getenv("AUTHGATE_POSTGRES_DSN"),
		KafkaBrokers: brokers,
		KafkaTopic:   topic,
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
