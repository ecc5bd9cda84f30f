// Package session selects one curiosity pool per browsing session, loads its
// trade history once, and serves the cached result on later activations.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"stormdex/internal/metrics"
	"stormdex/internal/model"
)

const (
	DefaultMinBuys = 50
	DefaultMaxBuys = 300
)

// TradeSource loads the trade history of one pool.
type TradeSource interface {
	Trades(ctx context.Context, poolAddress string) ([]model.Trade, error)
}

// Config bounds the 24h buy count of candidate pools to [MinBuys, MaxBuys).
type Config struct {
	MinBuys int
	MaxBuys int
}

// Selection is the cached pick of one session.
type Selection struct {
	Pool    model.PoolRecord      `json:"pool"`
	Buys    []model.Trade         `json:"buys"`
	Sells   []model.Trade         `json:"sells"`
	Trades  []model.Trade         `json:"trades"`
	Holders []model.HolderBalance `json:"holders"`
}

// Cache computes a Selection at most once per session.
type Cache struct {
	cfg     Config
	store   Store
	trades  TradeSource
	metrics *metrics.Metrics
	logger  *zap.Logger
	group   singleflight.Group
	pick    func(n int) int
}

func NewCache(cfg Config, store Store, trades TradeSource, m *metrics.Metrics, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinBuys <= 0 && cfg.MaxBuys <= 0 {
		cfg.MinBuys, cfg.MaxBuys = DefaultMinBuys, DefaultMaxBuys
	}
	if store == nil {
		store = NewMemoryStore(0)
	}
	return &Cache{
		cfg:     cfg,
		store:   store,
		trades:  trades,
		metrics: m,
		logger:  logger,
		pick:    rand.IntN,
	}
}

// Candidates returns the pools whose buy count falls inside the configured band.
func (c *Cache) Candidates(pools []model.PoolRecord) []model.PoolRecord {
	out := make([]model.PoolRecord, 0)
	for _, p := range pools {
		if p.Buys >= c.cfg.MinBuys && p.Buys < c.cfg.MaxBuys {
			out = append(out, p)
		}
	}
	return out
}

// Activate returns the session's selection, computing it from pools on the
// first call. ok is false when no pool qualifies; that empty state is not
// cached, so a later activation with a fresher listing may still select.
// Concurrent activations of the same session share one computation.
func (c *Cache) Activate(ctx context.Context, sessionID string, pools []model.PoolRecord) (sel Selection, ok bool, err error) {
	type outcome struct {
		sel Selection
		ok  bool
	}
	v, err, _ := c.group.Do(sessionID, func() (any, error) {
		// Shared by every waiter, so one caller going away must not fail the rest.
		ctx := context.WithoutCancel(ctx)
		cached, err := c.store.Get(ctx, sessionID)
		if err == nil {
			c.metrics.ObserveSession("hit")
			return outcome{sel: cached, ok: true}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("session store read failed", zap.String("session", sessionID), zap.Error(err))
		}

		candidates := c.Candidates(pools)
		if len(candidates) == 0 {
			c.metrics.ObserveSession("empty")
			return outcome{}, nil
		}
		pool := candidates[c.pick(len(candidates))]

		trades, err := c.trades.Trades(ctx, pool.Address)
		if err != nil {
			c.metrics.ObserveSession("error")
			return nil, fmt.Errorf("load trades for %s: %w", pool.Address, err)
		}
		buys, sells := Partition(trades)
		fresh := Selection{
			Pool:    pool,
			Buys:    buys,
			Sells:   sells,
			Trades:  trades,
			Holders: Holders(trades),
		}
		if err := c.store.Set(ctx, sessionID, fresh); err != nil {
			c.logger.Warn("session store write failed", zap.String("session", sessionID), zap.Error(err))
		}
		c.metrics.ObserveSession("selected")
		c.logger.Debug("session selection computed",
			zap.String("session", sessionID),
			zap.String("pool", pool.Address),
			zap.Int("trades", len(trades)),
		)
		return outcome{sel: fresh, ok: true}, nil
	})
	if err != nil {
		return Selection{}, false, err
	}
	out := v.(outcome)
	return out.sel, out.ok, nil
}

// Cached returns the session's selection without computing one.
func (c *Cache) Cached(ctx context.Context, sessionID string) (Selection, error) {
	return c.store.Get(ctx, sessionID)
}

// Clear drops the session's selection so the next activation selects again.
func (c *Cache) Clear(ctx context.Context, sessionID string) error {
	c.group.Forget(sessionID)
	return c.store.Delete(ctx, sessionID)
}
