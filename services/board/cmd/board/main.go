package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/board-platform/internal/platform/auth"
	"github.com/example/board-platform/internal/platform/cache"
	"github.com/example/board-platform/internal/platform/db"
	"github.com/example/board-platform/internal/platform/events"
	"github.com/example/board-platform/internal/platform/httpserver"
	"github.com/example/board-platform/internal/platform/logging"
	"github.com/example/board-platform/internal/platform/mongodb"
	"github.com/example/board-platform/internal/platform/natsconn"
	"github.com/example/board-platform/internal/platform/run"
	"github.com/example/board-platform/services/board/internal/config"
	"github.com/example/board-platform/services/board/internal/grpcapi"
	"github.com/example/board-platform/services/board/internal/handlers"
	"github.com/example/board-platform/services/board/internal/identity"
	"github.com/example/board-platform/services/board/internal/ledger"
	"github.com/example/board-platform/services/board/internal/service"
	"github.com/example/board-platform/services/board/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.App.LogLevel, cfg.App.ServiceName)
	if err != nil {
		panic(err)
	}

	threads, votes, closeStores := initStores(cfg, log)

	directory, closeCache := initDirectory(cfg, log)

	publisher, closeNATS := initEvents(cfg, log)

	writer := ledger.NewWriter(votes, ledger.Options{
		QueueSize:    cfg.Ledger.QueueSize,
		WriteTimeout: cfg.Ledger.WriteTimeout,
		DrainTimeout: cfg.Ledger.DrainTimeout,
		Logger:       log.Named("ledger"),
	})

	svc := service.New(service.Deps{
		Threads:   threads,
		Votes:     votes,
		Ledger:    writer,
		Directory: directory,
		Events:    publisher,
		Log:       log,
	})

	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc:    svc.Ping,
		Logger:       log,
		ExtraHeaders: []string{auth.APITokenHeader},
	})
	r.Get("/", handlers.Banner())
	r.Route("/board", func(r chi.Router) {
		r.Use(auth.RequireAPIToken(cfg.APIToken))
		r.Use(auth.RequireUser(verifier))
		r.Mount("/", handlers.Routes(svc, log))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.App.HTTP.Addr, Logger: log, Router: r})
	health := grpcapi.NewHealthServer(cfg.GRPCAddr, svc.Ping, log)

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		ledgerCtx, stopLedger := context.WithCancel(context.Background())
		ledgerDone := make(chan struct{})
		go func() {
			_ = writer.Run(ledgerCtx)
			close(ledgerDone)
		}()

		err := run.Group(ctx, srv.Run, health.Run)

		// the ledger outlives the HTTP server so late votes are still written
		stopLedger()
		<-ledgerDone
		return err
	})

	closeNATS()
	closeCache()
	closeStores()
	_ = log.Sync()
	run.Exit(code)
}

// initStores selects the thread store and vote ledger backend: MongoDB when
// MONGO_URI is set, else Postgres when DATABASE_URL is set, else in-memory.
// In production (APP_ENV=production) a failing backend or the in-memory
// fallback terminates the process.
func initStores(cfg config.Config, log *zap.Logger) (store.ThreadStore, store.VoteLedger, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fallback := func(reason string, err error) (store.ThreadStore, store.VoteLedger, func()) {
		if cfg.App.IsProduction() {
			log.Error(reason+" in production", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn(reason+", using in-memory stores (development only)", zap.Error(err))
		return store.NewInMemoryThreadStore(), store.NewInMemoryVoteLedger(), func() {}
	}

	switch {
	case cfg.MongoURI != "":
		database, err := mongodb.Connect(ctx, mongodb.Config{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
			AppName:  cfg.App.ServiceName,
		})
		if err != nil {
			return fallback("mongo unavailable", err)
		}
		threads := store.NewMongoThreadStore(database)
		votes := store.NewMongoVoteLedger(database)
		if err := threads.EnsureIndexes(ctx); err != nil {
			log.Warn("mongo thread indexes", zap.Error(err))
		}
		if err := votes.EnsureIndexes(ctx); err != nil {
			_ = mongodb.Disconnect(context.Background(), database)
			return fallback("mongo vote index unavailable", err)
		}
		log.Info("board store: mongo", zap.String("database", cfg.MongoDatabase))
		return threads, votes, func() { _ = mongodb.Disconnect(context.Background(), database) }

	case cfg.DatabaseURL != "":
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fallback("postgres unavailable", err)
		}
		if err := store.EnsurePostgresSchema(ctx, pool); err != nil {
			pool.Close()
			return fallback("postgres schema failed", err)
		}
		log.Info("board store: postgres")
		return store.NewPostgresThreadStore(pool), store.NewPostgresVoteLedger(pool), pool.Close

	default:
		return fallback("MONGO_URI and DATABASE_URL not set", nil)
	}
}

// initDirectory builds the identity client, fronted by a Redis profile
// cache when REDIS_URL is set.
func initDirectory(cfg config.Config, log *zap.Logger) (identity.Directory, func()) {
	cb := identity.NewBreaker(cfg.Breaker.MaxRequests, cfg.Breaker.Interval, cfg.Breaker.Timeout, cfg.Breaker.FailureThreshold, log)
	client := identity.New(cfg.Identity.Endpoint, identity.ClientConfig{
		Platform:       cfg.Identity.Platform,
		Token:          cfg.Identity.Token,
		Timeout:        cfg.Identity.Timeout,
		MaxRetries:     cfg.Identity.MaxRetries,
		RetryBaseDelay: cfg.Identity.RetryBaseDelay,
	}, identity.WithCircuitBreaker(cb), identity.WithLogger(log.Named("identity")))

	if cfg.RedisURL == "" {
		return client, func() {}
	}
	profiles, err := cache.NewRedisCache(cfg.RedisURL, cfg.Identity.CacheTTL, "board:profile:")
	if err != nil {
		log.Warn("redis profile cache disabled", zap.Error(err))
		return client, func() {}
	}
	log.Info("profile cache: redis", zap.Duration("ttl", cfg.Identity.CacheTTL))
	closeCache := func() {
		if err := profiles.Close(); err != nil {
			log.Warn("redis close", zap.Error(err))
		}
	}
	return identity.NewCachedDirectory(client, profiles, log.Named("identity")), closeCache
}

// initEvents connects the activity publisher. Without NATS the publisher
// is a no-op.
func initEvents(cfg config.Config, log *zap.Logger) (*events.Publisher, func()) {
	if cfg.NATSURL == "" {
		log.Info("NATS_URL not set, board events disabled")
		return events.New(nil, log), func() {}
	}
	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.App.ServiceName, Logger: log})
	if err != nil {
		log.Error("nats connect, board events disabled", zap.Error(err))
		return events.New(nil, log), func() {}
	}
	js, err := nc.JetStream()
	if err != nil {
		log.Error("jetstream, board events disabled", zap.Error(err))
		nc.Close()
		return events.New(nil, log), func() {}
	}
	if err := events.EnsureStream(js); err != nil {
		log.Warn("ensure board stream", zap.Error(err))
	}
	return events.New(js, log.Named("events")), func() { _ = nc.Drain() }
}
