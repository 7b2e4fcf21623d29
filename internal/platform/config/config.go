package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	liststrings "checkin/pkg/platform/strings"
)

// Config is the full runtime configuration, built from the environment so
// main stays lean.
type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Events   EventsConfig
	Visit    VisitConfig
	LogLevel string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	AdminToken     string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
}

// DatabaseConfig selects the visit store. An empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
	Migrate  bool
}

// RedisConfig enables shared dedupe and rate-limit state across instances.
// An empty URL keeps that state in process.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// EventsConfig selects where visit-recorded events go: "kafka", "nats" or "log".
type EventsConfig struct {
	Driver       string
	KafkaBrokers []string
	KafkaTopic   string
	NATSURL      string
	NATSSubject  string
}

// VisitConfig holds the tuning knobs of the recording pipeline.
type VisitConfig struct {
	DedupeWindow time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration
	// RateLimitAlgorithm is "sliding_window" (default) or "token_bucket".
	RateLimitAlgorithm string

	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerCooldown         time.Duration

	MaxAttempts      int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	CommitTimeout    time.Duration
	ReplicatedCommit bool
}

// DefaultVisitConfig returns the pipeline defaults.
func DefaultVisitConfig() VisitConfig {
	return VisitConfig{
		DedupeWindow:            10 * time.Second,
		RateLimitRequests:       30,
		RateLimitWindow:         time.Minute,
		RateLimitAlgorithm:      "sliding_window",
		BreakerFailureThreshold: 5,
		BreakerSuccessThreshold: 1,
		BreakerCooldown:         30 * time.Second,
		MaxAttempts:             5,
		InitialBackoff:          20 * time.Millisecond,
		MaxBackoff:              500 * time.Millisecond,
		CommitTimeout:           5 * time.Second,
		ReplicatedCommit:        true,
	}
}

// FromEnv builds a Config from environment variables. A .env file in the
// working directory is loaded first when present; real env vars win.
func FromEnv() Config {
	_ = godotenv.Load()

	defaults := DefaultVisitConfig()
	return Config{
		Server: Server{
			Addr:           getEnv("CHECKIN_ADDR", ":8080"),
			AdminToken:     getEnv("ADMIN_API_TOKEN", "dev-admin-token-change-in-production"),
			AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", 5*time.Second),
			WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			RequestTimeout: getDuration("SERVER_REQUEST_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: int32(getInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getInt("DB_MIN_CONNS", 1)),
			Migrate:  getBool("DB_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Events: EventsConfig{
			Driver:       getEnv("EVENTS_DRIVER", "log"),
			KafkaBrokers: getList("KAFKA_BROKERS", []string{"localhost:9092"}),
			KafkaTopic:   getEnv("KAFKA_VISITS_TOPIC", "checkin.visits"),
			NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
			NATSSubject:  getEnv("NATS_VISITS_SUBJECT", "visit.recorded"),
		},
		Visit: VisitConfig{
			DedupeWindow:            getDuration("VISIT_DEDUPE_WINDOW", defaults.DedupeWindow),
			RateLimitRequests:       getInt("VISIT_RATE_LIMIT_REQUESTS", defaults.RateLimitRequests),
			RateLimitWindow:         getDuration("VISIT_RATE_LIMIT_WINDOW", defaults.RateLimitWindow),
			RateLimitAlgorithm:      getEnv("VISIT_RATE_LIMIT_ALGORITHM", defaults.RateLimitAlgorithm),
			BreakerFailureThreshold: getInt("VISIT_BREAKER_FAILURE_THRESHOLD", defaults.BreakerFailureThreshold),
			BreakerSuccessThreshold: getInt("VISIT_BREAKER_SUCCESS_THRESHOLD", defaults.BreakerSuccessThreshold),
			BreakerCooldown:         getDuration("VISIT_BREAKER_COOLDOWN", defaults.BreakerCooldown),
			MaxAttempts:             getInt("VISIT_MAX_ATTEMPTS", defaults.MaxAttempts),
			InitialBackoff:          getDuration("VISIT_INITIAL_BACKOFF", defaults.InitialBackoff),
			MaxBackoff:              getDuration("VISIT_MAX_BACKOFF", defaults.MaxBackoff),
			CommitTimeout:           getDuration("VISIT_COMMIT_TIMEOUT", defaults.CommitTimeout),
			ReplicatedCommit:        getBool("VISIT_REPLICATED_COMMIT", defaults.ReplicatedCommit),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	out := liststrings.SplitList(value, ",")
	if len(out) == 0 {
		return fallback
	}
	return out
}
