package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	DatabaseURL     string
	JWTSigningKey   string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	Redis           RedisConfig
	Push            PushConfig
	Bridge          BridgeConfig
}

// RedisConfig configures the optional Redis connection used by the event bridge.
// An empty URL disables the bridge.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PushConfig tunes push connections.
type PushConfig struct {
	Heartbeat     time.Duration
	Buffer        int
	ConnectLimit  int
	ConnectWindow time.Duration
}

// BridgeConfig names the pub/sub channel shared by all instances.
type BridgeConfig struct {
	Channel string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:            envString("QSYNC_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSigningKey:   jwtSigningKey,
		LogLevel:        envString("LOG_LEVEL", "info"),
		LogFormat:       envString("LOG_FORMAT", "json"),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Push: PushConfig{
			Heartbeat:     envDuration("PUSH_HEARTBEAT", 25*time.Second),
			Buffer:        envInt("PUSH_BUFFER", 64),
			ConnectLimit:  envInt("PUSH_CONNECT_LIMIT", 30),
			ConnectWindow: envDuration("PUSH_CONNECT_WINDOW", time.Minute),
		},
		Bridge: BridgeConfig{
			Channel: envString("EVENT_BRIDGE_CHANNEL", "qsync:events"),
		},
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
