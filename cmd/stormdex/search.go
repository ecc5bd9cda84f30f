package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stormdex/internal/config"
	"stormdex/internal/gecko"
	"stormdex/internal/model"
)

func runSearch(cmd *cobra.Command, args []string) error {
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
	tokens, err := client.SearchPools(ctx, args[0])
	if err != nil {
		return err
	}
	if tokens == nil {
		tokens = []model.TokenMetadata{}
	}
	logger.Debug("search done", zap.String("query", args[0]), zap.Int("tokens", len(tokens)))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(tokens)
}
