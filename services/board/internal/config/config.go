package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	platformconfig "github.com/example/board-platform/internal/platform/config"
)

type IdentityConfig struct {
	Endpoint       string
	Platform       string
	Token          string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	CacheTTL       time.Duration
}

type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

type LedgerConfig struct {
	QueueSize    int
	WriteTimeout time.Duration
	DrainTimeout time.Duration
}

type Config struct {
	App platformconfig.AppConfig

	APIToken  string
	JWTSecret string
	GRPCAddr  string

	MongoURI      string
	MongoDatabase string
	DatabaseURL   string
	RedisURL      string
	NATSURL       string

	Identity IdentityConfig
	Breaker  BreakerConfig
	Ledger   LedgerConfig
}

func Load() (Config, error) {
	app, err := platformconfig.Load()
	if err != nil {
		return Config{}, err
	}

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	endpoint := strings.TrimRight(strings.TrimSpace(os.Getenv("AUTH_ENDPOINT")), "/")
	if endpoint == "" {
		return Config{}, errors.New("AUTH_ENDPOINT is required")
	}
	apiToken := strings.TrimSpace(os.Getenv("BOARD_API_TOKEN"))
	if apiToken == "" && app.IsProduction() {
		return Config{}, errors.New("BOARD_API_TOKEN is required in production")
	}
	mongoDB := strings.TrimSpace(os.Getenv("MONGO_DATABASE"))
	if mongoDB == "" {
		mongoDB = "board"
	}
	grpcAddr := strings.TrimSpace(os.Getenv("GRPC_ADDR"))
	if grpcAddr == "" {
		grpcAddr = ":9110"
	}

	return Config{
		App:           app,
		APIToken:      apiToken,
		JWTSecret:     jwtSecret,
		GRPCAddr:      grpcAddr,
		MongoURI:      strings.TrimSpace(os.Getenv("MONGO_URI")),
		MongoDatabase: mongoDB,
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:      strings.TrimSpace(os.Getenv("REDIS_URL")),
		NATSURL:       strings.TrimSpace(os.Getenv("NATS_URL")),
		Identity: IdentityConfig{
			Endpoint:       endpoint,
			Platform:       strings.TrimSpace(os.Getenv("AUTH_PLATFORM")),
			Token:          strings.TrimSpace(os.Getenv("AUTH_TOKEN")),
			Timeout:        envDuration("IDENTITY_TIMEOUT", 5*time.Second),
			MaxRetries:     envInt("IDENTITY_MAX_RETRIES", 2),
			RetryBaseDelay: envDuration("IDENTITY_RETRY_BASE_DELAY", 200*time.Millisecond),
			CacheTTL:       envDuration("PROFILE_CACHE_TTL", 5*time.Minute),
		},
		Breaker: BreakerConfig{
			MaxRequests:      uint32(envInt("CB_MAX_REQUESTS", 5)),
			Interval:         envDuration("CB_INTERVAL", 60*time.Second),
			Timeout:          envDuration("CB_TIMEOUT", 30*time.Second),
			FailureThreshold: uint32(envInt("CB_FAILURE_THRESHOLD", 5)),
		},
		Ledger: LedgerConfig{
			QueueSize:    envInt("LEDGER_QUEUE_SIZE", 1024),
			WriteTimeout: envDuration("LEDGER_WRITE_TIMEOUT", 5*time.Second),
			DrainTimeout: envDuration("LEDGER_DRAIN_TIMEOUT", 10*time.Second),
		},
	}, nil
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
