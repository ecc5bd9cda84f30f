package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stormdex/internal/config"
	"stormdex/internal/gecko"
	"stormdex/internal/listing"
	"stormdex/internal/storage"
)

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSnapshot(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := gecko.NewClient(cfg.APIBase, cfg.Network,
		gecko.WithRetries(cfg.HTTPRetries),
		gecko.WithTimeout(cfg.HTTPTimeout),
	)
	poller := listing.NewPoller(listing.Config{Pages: cfg.Pages, Timeout: cfg.HTTPTimeout}, client, nil, logger)
	if err := poller.Poll(ctx); err != nil {
		return fmt.Errorf("listing cycle: %w", err)
	}
	snap, _ := poller.Snapshot()

	sink := storage.NewJsonlStorage(cfg.Out)
	if err := sink.PutPools(ctx, snap.UpdatedAt, snap.Pools); err != nil {
		return err
	}

	logger.Info("snapshot written",
		zap.String("network", cfg.Network),
		zap.Ints("pages", cfg.Pages),
		zap.Int("pools", len(snap.Pools)),
		zap.Int("eligible", len(listing.EligibleAddresses(snap.Pools))),
		zap.String("out", cfg.Out),
	)
	return nil
}
