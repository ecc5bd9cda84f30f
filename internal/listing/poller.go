// Package listing polls the venue's pool listing and publishes display-ready snapshots.
package listing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stormdex/internal/gecko"
	"stormdex/internal/metrics"
	"stormdex/internal/model"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultTimeout  = 30 * time.Second
)

// Source fetches one page of the pool listing.
type Source interface {
	NewPools(ctx context.Context, page int) (gecko.ListingPage, error)
}

// Config holds runtime settings for the poller. Timeout bounds one whole cycle.
type Config struct {
	Pages    []int
	Interval time.Duration
	Timeout  time.Duration
}

// CycleError reports the listing page that failed a cycle.
type CycleError struct {
	Cycle uint64
	Page  int
	Err   error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle %d page %d: %v", e.Cycle, e.Page, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

// Snapshot is an immutable published pool list.
type Snapshot struct {
	Pools     []model.PoolRecord `json:"pools"`
	Cycle     uint64             `json:"cycle"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func (s Snapshot) clone() Snapshot {
	s.Pools = slices.Clone(s.Pools)
	return s
}

// Poller fetches listing pages on a fixed cadence and replaces the published
// snapshot wholesale. A failed cycle leaves the previous snapshot in place.
type Poller struct {
	cfg     Config
	source  Source
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time

	current atomic.Pointer[Snapshot]
	cycle   atomic.Uint64

	mu        sync.Mutex
	listeners []func(Snapshot)
}

// NewPoller builds a Poller with its dependencies.
func NewPoller(cfg Config, source Source, m *metrics.Metrics, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Pages) == 0 {
		cfg.Pages = []int{1, 2}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Poller{
		cfg:     cfg,
		source:  source,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Subscribe registers fn to receive a copy of every published snapshot.
// fn runs on the polling goroutine and must not block.
func (p *Poller) Subscribe(fn func(Snapshot)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Snapshot returns a copy of the latest published snapshot.
func (p *Poller) Snapshot() (Snapshot, bool) {
	snap := p.current.Load()
	if snap == nil {
		return Snapshot{Pools: []model.PoolRecord{}}, false
	}
	return snap.clone(), true
}

// Pools returns a copy of the currently published pool records.
func (p *Poller) Pools() []model.PoolRecord {
	snap, _ := p.Snapshot()
	return snap.Pools
}

// Run polls immediately and then again Interval after each cycle completes,
// until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if p.source == nil {
		return fmt.Errorf("listing source is nil")
	}

	for {
		if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logFailure(err)
		}

		timer := time.NewTimer(p.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *Poller) logFailure(err error) {
	var cerr *CycleError
	if !errors.As(err, &cerr) {
		p.logger.Warn("listing cycle failed, keeping previous snapshot", zap.Error(err))
		return
	}
	p.logger.Warn("listing cycle failed, keeping previous snapshot",
		zap.Uint64("cycle", cerr.Cycle),
		zap.Int("page", cerr.Page),
		zap.Error(cerr.Err),
	)
}

// Poll runs one listing cycle: all pages are requested concurrently, merged
// in page order and published as a new snapshot. A page failure is returned
// as *CycleError.
func (p *Poller) Poll(ctx context.Context) error {
	cycle := p.cycle.Add(1)
	started := p.now()

	cycleCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	pages := make([]gecko.ListingPage, len(p.cfg.Pages))
	g, gctx := errgroup.WithContext(cycleCtx)
	for i, page := range p.cfg.Pages {
		g.Go(func() error {
			result, err := p.source.NewPools(gctx, page)
			if err != nil {
				return &CycleError{Cycle: cycle, Page: page, Err: err}
			}
			pages[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		p.metrics.ObserveCycle("error", time.Since(started).Seconds())
		return err
	}
	if err := ctx.Err(); err != nil {
		// Torn down while requests were outstanding; drop the results.
		return err
	}

	now := p.now()
	records := Merge(pages, now)
	snap := &Snapshot{Pools: records, Cycle: cycle, UpdatedAt: now}
	p.current.Store(snap)

	eligible := 0
	for _, record := range records {
		if record.AuditEligible {
			eligible++
		}
	}
	p.metrics.ObserveCycle("ok", time.Since(started).Seconds())
	p.metrics.SetPublished(len(records), eligible)
	p.logger.Debug("listing published",
		zap.Uint64("cycle", cycle),
		zap.Int("pools", len(records)),
		zap.Int("eligible", eligible),
	)

	p.mu.Lock()
	listeners := slices.Clone(p.listeners)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(snap.clone())
	}
	return nil
}
