package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stormdex/internal/api"
	"stormdex/internal/audit"
	"stormdex/internal/chain"
	"stormdex/internal/config"
	"stormdex/internal/enrich"
	"stormdex/internal/gecko"
	"stormdex/internal/listing"
	"stormdex/internal/metrics"
	"stormdex/internal/model"
	"stormdex/internal/notify"
	"stormdex/internal/session"
	"stormdex/internal/storage/postgres"
)

const archiveQueue = 16

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	policy, err := enrich.ParsePolicy(cfg.CursorPolicy)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	geckoClient := gecko.NewClient(cfg.APIBase, cfg.Network,
		gecko.WithRetries(cfg.HTTPRetries),
		gecko.WithTimeout(cfg.HTTPTimeout),
	)
	auditClient := audit.NewClient(cfg.AuditBase, cfg.AuditChain,
		audit.WithRetries(cfg.HTTPRetries),
		audit.WithTimeout(cfg.HTTPTimeout),
	)

	var wallet notify.Wallet
	if cfg.WalletKey != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		w, err := chain.NewWallet(chainClient, cfg.WalletKey, cfg.DepositAddress)
		if err != nil {
			return err
		}
		logger.Info("deposit wallet ready",
			zap.String("from", w.Address().Hex()),
			zap.String("to", cfg.DepositAddress),
		)
		wallet = w
	}

	notifier := notify.NewNotifier(notify.Config{
		SuccessTTL: cfg.NotifySuccess,
		PendingTTL: cfg.NotifyPending,
		ErrorTTL:   cfg.NotifyError,
	}, wallet, m, logger)

	batcher := enrich.NewBatcher(enrich.Config{
		BatchSize: cfg.BatchSize,
		Interval:  cfg.BatchInterval,
		Timeout:   cfg.HTTPTimeout,
		Policy:    policy,
	}, auditClient, notifier, m, logger)

	var sessions session.Store
	if cfg.RedisAddr != "" {
		redisStore := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL)
		if err := redisStore.Ping(ctx); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisStore.Close()
		sessions = redisStore
	} else {
		sessions = session.NewMemoryStore(cfg.SessionTTL)
	}
	curiosity := session.NewCache(session.Config{
		MinBuys: cfg.CuriosityMinBuys,
		MaxBuys: cfg.CuriosityMaxBuys,
	}, sessions, geckoClient, m, logger)

	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	archive := make(chan func(context.Context) error, archiveQueue)
	enqueue := func(job func(context.Context) error) {
		if store == nil {
			return
		}
		select {
		case archive <- job:
		default:
			logger.Warn("archive queue full, dropping write")
		}
	}

	poller := listing.NewPoller(listing.Config{
		Pages:    cfg.Pages,
		Interval: cfg.PollInterval,
		Timeout:  cfg.HTTPTimeout,
	}, geckoClient, m, logger)

	hub := api.NewHub(m, logger)

	poller.Subscribe(func(snap listing.Snapshot) {
		batcher.Update(listing.EligibleAddresses(snap.Pools))
		hub.Broadcast("pools", snap)
		enqueue(func(ctx context.Context) error {
			return store.PutPools(ctx, snap.UpdatedAt, snap.Pools)
		})
	})
	batcher.Subscribe(func(audits map[string]model.AuditRecord) {
		hub.Broadcast("audits", audits)
		records := make([]model.AuditRecord, 0, len(audits))
		for _, rec := range audits {
			records = append(records, rec)
		}
		enqueue(func(ctx context.Context) error {
			return store.PutAudits(ctx, records)
		})
	})
	notifier.Subscribe(func(st notify.State) {
		hub.Broadcast("notification", st)
	})
	notifier.OnSuccess(func(digest string) {
		hub.Broadcast("reveal", map[string]string{"digest": digest})
	})

	server := api.NewServer(cfg.Listen, api.Deps{
		Pools:     poller,
		Audits:    batcher,
		Curiosity: curiosity,
		Notifier:  notifier,
		Market:    geckoClient,
		Hub:       hub,
		Gatherer:  reg,
		Logger:    logger,
	})

	logger.Info("stormdex start",
		zap.String("api_base", cfg.APIBase),
		zap.String("network", cfg.Network),
		zap.Ints("pages", cfg.Pages),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Duration("batch_interval", cfg.BatchInterval),
		zap.String("cursor_policy", string(policy)),
		zap.String("listen", cfg.Listen),
		zap.Bool("redis", cfg.RedisAddr != ""),
		zap.Bool("postgres", store != nil),
		zap.Bool("deposits", wallet != nil),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error { return batcher.Run(gctx) })
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if store != nil {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case job := <-archive:
					writeCtx, cancel := context.WithTimeout(gctx, 10*time.Second)
					if err := job(writeCtx); err != nil {
						logger.Warn("archive write failed", zap.Error(err))
					}
					cancel()
				}
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("stormdex stopped")
	return nil
}
