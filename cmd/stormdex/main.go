package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "stormdex",
		Short:        "Live pool listing with batched token audits",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Poll listings, enrich audits and serve the API",
		RunE:  runServe,
	}

	addUpstreamFlags(runCmd)
	runCmd.Flags().Duration("poll-interval", 10*time.Second, "listing poll interval")
	runCmd.Flags().String("audit-base", "https://api.gopluslabs.io/api/v1", "audit API base URL")
	runCmd.Flags().String("audit-chain", "sui", "audit API chain id")
	runCmd.Flags().Int("batch-size", 5, "tokens per audit request")
	runCmd.Flags().Duration("batch-interval", 3*time.Second, "audit batch cadence")
	runCmd.Flags().String("cursor-policy", "recompute", "cursor policy when the eligible list changes (recompute, sticky)")
	runCmd.Flags().Int("curiosity-min-buys", 50, "minimum 24h buys for the curiosity pick (inclusive)")
	runCmd.Flags().Int("curiosity-max-buys", 300, "maximum 24h buys for the curiosity pick (exclusive)")
	runCmd.Flags().Duration("session-ttl", 12*time.Hour, "session selection lifetime")
	runCmd.Flags().String("redis-addr", "", "Redis address for session selections (empty keeps them in memory)")
	runCmd.Flags().String("redis-password", "", "Redis password")
	runCmd.Flags().Int("redis-db", 0, "Redis database")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for the snapshot archive (optional)")
	runCmd.Flags().String("listen", ":8080", "HTTP listen address")
	runCmd.Flags().String("rpc", "", "EVM RPC URL for deposits")
	runCmd.Flags().String("wallet-key", "", "hex private key used to sign deposits")
	runCmd.Flags().String("deposit-address", "", "deposit destination address")
	runCmd.Flags().Duration("notify-success", 4*time.Second, "success notification lifetime")
	runCmd.Flags().Duration("notify-pending", 15*time.Second, "pending notification lifetime")
	runCmd.Flags().Duration("notify-error", 10*time.Second, "error notification lifetime")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Run one listing cycle and append the pools to a JSONL file",
		RunE:  runSnapshot,
	}

	addUpstreamFlags(snapshotCmd)
	snapshotCmd.Flags().String("out", "./data/pools.jsonl", "output JSONL path")
	snapshotCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(snapshotCmd)

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search pools by token name or symbol",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}

	addUpstreamFlags(searchCmd)
	searchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(searchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addUpstreamFlags(cmd *cobra.Command) {
	cmd.Flags().String("api-base", "https://api.geckoterminal.com/api/v2", "listing API base URL")
	cmd.Flags().String("network", "sui-network", "listing network slug")
	cmd.Flags().String("pages", "1,2", "listing pages fetched per cycle (comma-separated)")
	cmd.Flags().Int("http-retries", 0, "transport retries per upstream request")
	cmd.Flags().Duration("http-timeout", 30*time.Second, "timeout for each upstream request and for a whole listing cycle or audit batch")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
