// Package enrich sweeps the audit-eligible pool list in fixed-size slices and
// accumulates token audit records.
package enrich

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"stormdex/internal/metrics"
	"stormdex/internal/model"
)

const (
	DefaultBatchSize = 5
	DefaultInterval  = 3 * time.Second
	DefaultTimeout   = 30 * time.Second
)

// Source returns audit records keyed by the requested addresses.
type Source interface {
	FetchAudits(ctx context.Context, addresses []string) (map[string]model.AuditRecord, error)
}

// Alerter surfaces a failed batch to the user.
type Alerter interface {
	Alert(message string)
}

// Config holds runtime settings for the batcher. Timeout bounds one batch
// request; a batch that times out counts as failed.
type Config struct {
	BatchSize int
	Interval  time.Duration
	Timeout   time.Duration
	Policy    Policy
}

// Status is a point-in-time view of the sweep.
type Status struct {
	Policy   Policy `json:"policy"`
	Cursor   int    `json:"cursor"`
	Queued   int    `json:"queued"`
	InFlight bool   `json:"in_flight"`
	Audited  int    `json:"audited"`
}

type result struct {
	flight  *flight
	records map[string]model.AuditRecord
	err     error
}

// Batcher owns the sweep cursor. At most one batch request is outstanding at
// any time; the cursor moves once per completed request, failed or not.
type Batcher struct {
	cfg     Config
	source  Source
	alerter Alerter
	metrics *metrics.Metrics
	logger  *zap.Logger

	sweep   *sweep
	updates chan []string
	results chan result

	audits atomic.Pointer[map[string]model.AuditRecord]
	status atomic.Pointer[Status]

	mu        sync.Mutex
	listeners []func(map[string]model.AuditRecord)
}

// NewBatcher builds a Batcher with its dependencies. alerter may be nil.
func NewBatcher(cfg Config, source Source, alerter Alerter, m *metrics.Metrics, logger *zap.Logger) *Batcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyRecompute
	}
	b := &Batcher{
		cfg:     cfg,
		source:  source,
		alerter: alerter,
		metrics: m,
		logger:  logger,
		sweep:   newSweep(cfg.Policy, cfg.BatchSize),
		updates: make(chan []string, 1),
		results: make(chan result, 1),
	}
	empty := map[string]model.AuditRecord{}
	b.audits.Store(&empty)
	st := b.sweep.status(0)
	b.status.Store(&st)
	return b
}

// Subscribe registers fn to receive the full audit set after every merge.
func (b *Batcher) Subscribe(fn func(map[string]model.AuditRecord)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Update hands the batcher a newly published eligible list. Only the latest
// list is kept if the loop has not consumed the previous one yet.
func (b *Batcher) Update(eligible []string) {
	addrs := slices.Clone(eligible)
	if addrs == nil {
		addrs = []string{}
	}
	for {
		select {
		case b.updates <- addrs:
			return
		default:
		}
		select {
		case <-b.updates:
		default:
		}
	}
}

// Audits returns a copy of every audit record gathered so far.
func (b *Batcher) Audits() map[string]model.AuditRecord {
	return maps.Clone(*b.audits.Load())
}

// Audit looks up the record for one token address.
func (b *Batcher) Audit(address string) (model.AuditRecord, bool) {
	rec, ok := (*b.audits.Load())[address]
	return rec, ok
}

func (b *Batcher) Status() Status {
	return *b.status.Load()
}

// Run drives the sweep until ctx is cancelled.
func (b *Batcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case eligible := <-b.updates:
			kick := b.sweep.update(eligible, b.audited())
			b.publishStatus()
			if kick {
				b.dispatch(ctx)
			}
		case <-ticker.C:
			b.dispatch(ctx)
		case res := <-b.results:
			b.complete(res)
		}
	}
}

func (b *Batcher) audited() int {
	return len(*b.audits.Load())
}

func (b *Batcher) dispatch(ctx context.Context) {
	f, ok := b.sweep.next()
	if !ok {
		return
	}
	b.publishStatus()
	b.logger.Debug("audit batch dispatched",
		zap.Int("cursor", f.cursor),
		zap.Int("size", len(f.addresses)),
	)

	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()

		res := result{flight: f}
		defer func() {
			if r := recover(); r != nil {
				res.records = nil
				res.err = fmt.Errorf("audit source panic: %v", r)
			}
			select {
			case b.results <- res:
			case <-ctx.Done():
			}
		}()
		res.records, res.err = b.source.FetchAudits(fetchCtx, f.addresses)
	}()
}

func (b *Batcher) complete(res result) {
	b.sweep.complete(res.flight)

	if res.err != nil {
		b.logger.Warn("audit batch failed",
			zap.Int("cursor", res.flight.cursor),
			zap.Strings("addresses", res.flight.addresses),
			zap.Error(res.err),
		)
		b.metrics.ObserveBatch("error", b.sweep.cursor, b.audited())
		if b.alerter != nil {
			b.alerter.Alert(fmt.Sprintf("Failed to load token audits for %d pools", len(res.flight.addresses)))
		}
		b.publishStatus()
		return
	}

	next := maps.Clone(*b.audits.Load())
	for addr, rec := range res.records {
		next[addr] = rec
	}
	b.audits.Store(&next)
	b.metrics.ObserveBatch("ok", b.sweep.cursor, len(next))
	b.logger.Debug("audit batch merged",
		zap.Int("records", len(res.records)),
		zap.Int("total", len(next)),
	)
	b.publishStatus()

	b.mu.Lock()
	listeners := slices.Clone(b.listeners)
	b.mu.Unlock()
	for _, fn := range listeners {
		fn(maps.Clone(next))
	}
}

func (b *Batcher) publishStatus() {
	st := b.sweep.status(b.audited())
	b.status.Store(&st)
}
