package enrich

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stormdex/internal/model"
)

type fakeSource struct {
	mu      sync.Mutex
	calls   [][]string
	release chan struct{}
	fail    bool
}

func (f *fakeSource) FetchAudits(ctx context.Context, addrs []string) (map[string]model.AuditRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, slices.Clone(addrs))
	release, fail := f.release, f.fail
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("upstream unavailable")
	}
	out := make(map[string]model.AuditRecord, len(addrs))
	for _, a := range addrs {
		out[a] = model.AuditRecord{Address: a, Mintable: model.No, LiquidityBurnt: model.Yes}
	}
	return out, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSource) call(i int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

type recordingAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingAlerter) Alert(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *recordingAlerter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func startBatcher(t *testing.T, cfg Config, src Source, alerter Alerter) *Batcher {
	t.Helper()
	b := NewBatcher(cfg, src, alerter, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return b
}

func TestBatcherSweepsAllEligible(t *testing.T) {
	src := &fakeSource{}
	b := startBatcher(t, Config{BatchSize: 5, Interval: 10 * time.Millisecond}, src, nil)

	b.Update(addresses(12))

	require.Eventually(t, func() bool { return len(b.Audits()) == 12 }, 2*time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return src.callCount() > 3 }, 60*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, addresses(12)[0:5], src.call(0))
	assert.Equal(t, addresses(12)[10:12], src.call(2))

	rec, ok := b.Audit("0x07")
	require.True(t, ok)
	assert.Equal(t, model.Yes, rec.LiquidityBurnt)
	assert.Equal(t, 15, b.Status().Cursor)
}

func TestBatcherImmediateFirstBatch(t *testing.T) {
	src := &fakeSource{}
	b := startBatcher(t, Config{BatchSize: 5, Interval: time.Hour}, src, nil)

	b.Update(addresses(3))
	require.Eventually(t, func() bool { return len(b.Audits()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, src.callCount())
}

func TestBatcherSlowBatchBlocksNextTick(t *testing.T) {
	src := &fakeSource{release: make(chan struct{})}
	b := startBatcher(t, Config{BatchSize: 5, Interval: 5 * time.Millisecond}, src, nil)

	b.Update(addresses(12))
	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, time.Millisecond)
	assert.Never(t, func() bool { return src.callCount() > 1 }, 50*time.Millisecond, 2*time.Millisecond)
	assert.True(t, b.Status().InFlight)

	close(src.release)
	require.Eventually(t, func() bool { return len(b.Audits()) == 12 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, src.callCount())
}

func TestBatcherHungBatchTimesOut(t *testing.T) {
	src := &fakeSource{release: make(chan struct{})}
	alerts := &recordingAlerter{}
	b := startBatcher(t, Config{BatchSize: 5, Interval: 10 * time.Millisecond, Timeout: 30 * time.Millisecond}, src, alerts)

	b.Update(addresses(12))

	require.Eventually(t, func() bool { return b.Status().Cursor == 15 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, src.callCount())
	assert.Equal(t, addresses(12)[5:10], src.call(1))
	assert.Equal(t, 3, alerts.count())
	assert.False(t, b.Status().InFlight)
}

func TestBatcherFailureAdvancesAndAlerts(t *testing.T) {
	src := &fakeSource{fail: true}
	alerts := &recordingAlerter{}
	b := startBatcher(t, Config{BatchSize: 5, Interval: 10 * time.Millisecond}, src, alerts)

	b.Update(addresses(7))

	require.Eventually(t, func() bool { return b.Status().Cursor == 10 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return src.callCount() > 2 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 2, alerts.count())
	assert.Empty(t, b.Audits())
}

func TestBatcherSubscribe(t *testing.T) {
	src := &fakeSource{}
	b := NewBatcher(Config{BatchSize: 2, Interval: 10 * time.Millisecond}, src, nil, nil, nil)
	got := make(chan int, 8)
	b.Subscribe(func(audits map[string]model.AuditRecord) { got <- len(audits) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	b.Update(addresses(3))
	assert.Equal(t, 2, <-got)
	assert.Equal(t, 3, <-got)
}

func TestBatcherUpdateKeepsLatest(t *testing.T) {
	b := NewBatcher(Config{}, &fakeSource{}, nil, nil, nil)
	b.Update(addresses(1))
	b.Update(addresses(4))

	got := <-b.updates
	assert.Len(t, got, 4)
	assert.Equal(t, DefaultBatchSize, b.cfg.BatchSize)
	assert.Equal(t, PolicyRecompute, b.cfg.Policy)
}
