package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "STORMDEX"

// Upstream holds settings shared by every command that talks to the venue API.
type Upstream struct {
	APIBase     string
	Network     string
	Pages       []int
	HTTPRetries int
	HTTPTimeout time.Duration
}

// Config holds configuration for the run command.
type Config struct {
	Upstream
	PollInterval     time.Duration
	AuditBase        string
	AuditChain       string
	BatchSize        int
	BatchInterval    time.Duration
	CursorPolicy     string
	CuriosityMinBuys int
	CuriosityMaxBuys int
	SessionTTL       time.Duration
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	PGDSN            string
	Listen           string
	RPCURL           string
	WalletKey        string
	DepositAddress   string
	NotifySuccess    time.Duration
	NotifyPending    time.Duration
	NotifyError      time.Duration
	LogLevel         string
}

// Load merges .env, config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("poll-interval", 10*time.Second)
		v.SetDefault("audit-base", "https://api.gopluslabs.io/api/v1")
		v.SetDefault("audit-chain", "sui")
		v.SetDefault("batch-size", 5)
		v.SetDefault("batch-interval", 3*time.Second)
		v.SetDefault("cursor-policy", "recompute")
		v.SetDefault("curiosity-min-buys", 50)
		v.SetDefault("curiosity-max-buys", 300)
		v.SetDefault("session-ttl", 12*time.Hour)
		v.SetDefault("listen", ":8080")
		v.SetDefault("notify-success", 4*time.Second)
		v.SetDefault("notify-pending", 15*time.Second)
		v.SetDefault("notify-error", 10*time.Second)
	})
	if err != nil {
		return Config{}, err
	}
	upstream, err := loadUpstream(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Upstream:         upstream,
		PollInterval:     v.GetDuration("poll-interval"),
		AuditBase:        v.GetString("audit-base"),
		AuditChain:       v.GetString("audit-chain"),
		BatchSize:        v.GetInt("batch-size"),
		BatchInterval:    v.GetDuration("batch-interval"),
		CursorPolicy:     v.GetString("cursor-policy"),
		CuriosityMinBuys: v.GetInt("curiosity-min-buys"),
		CuriosityMaxBuys: v.GetInt("curiosity-max-buys"),
		SessionTTL:       v.GetDuration("session-ttl"),
		RedisAddr:        v.GetString("redis-addr"),
		RedisPassword:    v.GetString("redis-password"),
		RedisDB:          v.GetInt("redis-db"),
		PGDSN:            v.GetString("pg-dsn"),
		Listen:           v.GetString("listen"),
		RPCURL:           v.GetString("rpc"),
		WalletKey:        v.GetString("wallet-key"),
		DepositAddress:   v.GetString("deposit-address"),
		NotifySuccess:    v.GetDuration("notify-success"),
		NotifyPending:    v.GetDuration("notify-pending"),
		NotifyError:      v.GetDuration("notify-error"),
		LogLevel:         v.GetString("log-level"),
	}

	switch {
	case cfg.PollInterval <= 0:
		return Config{}, fmt.Errorf("poll-interval must be positive")
	case cfg.BatchSize <= 0:
		return Config{}, fmt.Errorf("batch-size must be positive")
	case cfg.BatchInterval <= 0:
		return Config{}, fmt.Errorf("batch-interval must be positive")
	case cfg.CuriosityMinBuys >= cfg.CuriosityMaxBuys:
		return Config{}, fmt.Errorf("curiosity-min-buys must be below curiosity-max-buys")
	}
	if (cfg.WalletKey == "") != (cfg.DepositAddress == "") {
		return Config{}, fmt.Errorf("wallet-key and deposit-address must be set together")
	}
	if cfg.WalletKey != "" && cfg.RPCURL == "" {
		return Config{}, fmt.Errorf("rpc is required when wallet-key is set")
	}

	return cfg, nil
}

// SnapshotConfig holds configuration for the one-shot snapshot and search commands.
type SnapshotConfig struct {
	Upstream
	Out      string
	LogLevel string
}

// LoadSnapshot merges .env, config file, environment variables, and flags into SnapshotConfig.
func LoadSnapshot(cfgFile string, flags *pflag.FlagSet) (SnapshotConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("out", "./data/pools.jsonl")
	})
	if err != nil {
		return SnapshotConfig{}, err
	}
	upstream, err := loadUpstream(v)
	if err != nil {
		return SnapshotConfig{}, err
	}
	return SnapshotConfig{
		Upstream: upstream,
		Out:      v.GetString("out"),
		LogLevel: v.GetString("log-level"),
	}, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("api-base", "https://api.geckoterminal.com/api/v2")
	v.SetDefault("network", "sui-network")
	v.SetDefault("pages", "1,2")
	v.SetDefault("http-retries", 0)
	v.SetDefault("http-timeout", 30*time.Second)
	v.SetDefault("log-level", "info")
	if defaults != nil {
		defaults(v)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func loadUpstream(v *viper.Viper) (Upstream, error) {
	pages, err := getInts(v, "pages")
	if err != nil {
		return Upstream{}, err
	}
	up := Upstream{
		APIBase:     strings.TrimRight(v.GetString("api-base"), "/"),
		Network:     v.GetString("network"),
		Pages:       pages,
		HTTPRetries: v.GetInt("http-retries"),
		HTTPTimeout: v.GetDuration("http-timeout"),
	}
	if up.APIBase == "" {
		return Upstream{}, fmt.Errorf("api-base is required")
	}
	if up.Network == "" {
		return Upstream{}, fmt.Errorf("network is required")
	}
	if len(up.Pages) == 0 {
		return Upstream{}, fmt.Errorf("at least one page is required")
	}
	if up.HTTPTimeout <= 0 {
		return Upstream{}, fmt.Errorf("http-timeout must be positive")
	}
	return up, nil
}

func getInts(v *viper.Viper, key string) ([]int, error) {
	items := getStringSlice(v, key)
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, err := strconv.Atoi(item)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid %s entry: %s", key, item)
		}
		out = append(out, n)
	}
	return out, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	case []int:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, strconv.Itoa(item))
		}
		return items
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
