package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p3root/StratisFullNode/internal/api"
	"github.com/p3root/StratisFullNode/internal/chain"
	"github.com/p3root/StratisFullNode/internal/config"
	"github.com/p3root/StratisFullNode/internal/federation"
	"github.com/p3root/StratisFullNode/internal/listener"
	"github.com/p3root/StratisFullNode/internal/peg"
	"github.com/p3root/StratisFullNode/internal/publisher"
	"github.com/p3root/StratisFullNode/internal/voting"
	"github.com/p3root/StratisFullNode/internal/worker"
	"github.com/p3root/StratisFullNode/pkg/db/postgres"
	"github.com/p3root/StratisFullNode/pkg/db/postgres/crosschain"
	"github.com/p3root/StratisFullNode/pkg/db/postgres/gov"
	"github.com/p3root/StratisFullNode/pkg/rpc"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	// Setup logging
	setupLogging(cfg.LogLevel)

	zapLog, err := zapLogger(cfg.LogLevel)
	if err != nil {
		slog.Error("failed to create zap logger", "err", err)
		os.Exit(1)
	}
	defer func() { _ = zapLog.Sync() }()

	slog.Info("starting federation gateway",
		"federation_size", len(cfg.FederationMembers),
		"counterchain_endpoints", len(cfg.CounterChainURLs),
	)

	// Connect to PostgreSQL
	pg, err := postgres.New(ctx, zapLog, cfg.PostgresURL)
	if err != nil {
		slog.Error("failed to connect to postgres", "err", err)
		os.Exit(1)
	}
	defer pg.Close()

	govDB, err := gov.New(ctx, pg)
	if err != nil {
		slog.Error("failed to initialize governance schema", "err", err)
		os.Exit(1)
	}

	crossDB, err := crosschain.New(ctx, pg, cfg.SyncStartHeight)
	if err != nil {
		slog.Error("failed to initialize cross-chain schema", "err", err)
		os.Exit(1)
	}

	// Connect to Redis
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("failed to parse redis url", "err", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	// Create publisher
	pub, err := publisher.New(redisClient, cfg.EventsTopic, cfg.WakeupTopic)
	if err != nil {
		slog.Error("failed to create publisher", "err", err)
		os.Exit(1)
	}
	defer pub.Close()

	// Governance wiring
	roster := federation.NewRoster(cfg.FederationMembers...)
	whitelistStore := gov.NewWhitelist(govDB)
	executor := voting.NewResultExecutor(whitelistStore, roster)
	engine := voting.NewEngine(govDB, roster, executor, cfg.FederationKey, pub.PublishPollExecuted)

	// Settlement wiring. The consensus pipeline that connects blocks owns
	// the header view and node state; it appends headers and feeds observed
	// votes into the engine.
	headerView := chain.NewMemory([32]byte{}, time.Now().UTC())
	nodeState := chain.StaticNodeState{}

	counterChain := rpc.NewWithOpts(rpc.Opts{
		Endpoints: cfg.CounterChainURLs,
		RPS:       cfg.RPCRPS,
		Burst:     cfg.RPCBurst,
	})

	conversions := crosschain.NewConversionRequests(crossDB)
	transfers := crosschain.NewTransfers(crossDB)
	sync := peg.NewSynchronizer(counterChain, conversions, transfers, headerView, nodeState, pub.PublishDepositsRecorded)
	loop := peg.NewLoop(sync)

	// Create worker
	wrk, err := worker.New(worker.Config{
		RedisClient:   redisClient,
		Loop:          loop,
		Topic:         cfg.WakeupTopic,
		ConsumerGroup: cfg.ConsumerGroup,
	})
	if err != nil {
		slog.Error("failed to create worker", "err", err)
		os.Exit(1)
	}
	defer wrk.Close()

	// Create API server
	server, err := api.NewServer(engine, whitelistStore, conversions, zapLog, cfg.HTTPAddr, cfg.AdminToken)
	if err != nil {
		slog.Error("failed to create api server", "err", err)
		os.Exit(1)
	}

	// Run all components
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(ctx)
	})

	g.Go(func() error {
		return loop.Run(ctx)
	})

	g.Go(func() error {
		slog.Info("starting worker")
		return wrk.Run(ctx)
	})

	if cfg.CounterChainWS != "" {
		lst := listener.New(listener.Config{
			URL:            cfg.CounterChainWS,
			ReconnectDelay: config.ParseDuration("WS_RECONNECT_DELAY", time.Second),
		}, func(height uint64) {
			if err := pub.PublishMaturedTip(height); err != nil {
				slog.Error("failed to publish matured tip", "height", height, "err", err)
			}
		})
		g.Go(func() error {
			slog.Info("starting counter-chain listener", "url", cfg.CounterChainWS)
			return lst.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		slog.Error("federation gateway error", "err", err)
		os.Exit(1)
	}

	slog.Info("shutdown complete")
}

func zapLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	return cfg.Build()
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
