package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stormdex/internal/model"
)

type fakeTrades struct {
	calls atomic.Int32
	delay time.Duration
	gate  chan struct{}
	err   error
	out   []model.Trade
}

func (f *fakeTrades) Trades(ctx context.Context, pool string) ([]model.Trade, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func trade(sender, side string, usd float64, offset time.Duration) model.Trade {
	return model.Trade{Sender: sender, Side: side, VolumeUSD: usd, Timestamp: base.Add(offset)}
}

func listing() []model.PoolRecord {
	return []model.PoolRecord{
		{Address: "0xlow", Buys: 10},
		{Address: "0xmid", Buys: 120},
		{Address: "0xedge", Buys: 300},
		{Address: "0xmin", Buys: 50},
	}
}

func TestHoldersOrdering(t *testing.T) {
	trades := []model.Trade{
		trade("0xa", model.SideBuy, 50, 0),
		trade("0xb", model.SideSell, 10, time.Second),
		trade("0xc", model.SideBuy, 30, 2*time.Second),
		trade("0xd", model.SideSell, 5, 3*time.Second),
	}
	got := Holders(trades)
	require.Len(t, got, 4)
	nets := []float64{got[0].Net, got[1].Net, got[2].Net, got[3].Net}
	assert.Equal(t, []float64{50, 30, -10, -5}, nets)
	assert.Equal(t, "0xa", got[0].Address)
	assert.Equal(t, "0xd", got[3].Address)
}

func TestHoldersNetsPerAddress(t *testing.T) {
	trades := []model.Trade{
		trade("0xb", model.SideSell, 4, 2*time.Second),
		trade("0xa", model.SideBuy, 10, 0),
		trade("0xa", model.SideSell, 3, time.Second),
		trade("0xb", model.SideBuy, 4, 3*time.Second),
	}
	got := Holders(trades)
	require.Len(t, got, 2)
	assert.Equal(t, model.HolderBalance{Address: "0xa", Net: 7}, got[0])
	// zero is non-negative and keeps first-seen order among equals
	assert.Equal(t, model.HolderBalance{Address: "0xb", Net: 0}, got[1])
}

func TestPartition(t *testing.T) {
	trades := []model.Trade{
		trade("0xa", model.SideBuy, 1, 0),
		trade("0xb", model.SideSell, 2, 0),
		trade("0xc", "unknown", 3, 0),
		trade("0xd", model.SideBuy, 4, 0),
	}
	buys, sells := Partition(trades)
	assert.Len(t, buys, 2)
	assert.Len(t, sells, 1)
	assert.Equal(t, "0xd", buys[1].Sender)
}

func TestCandidatesBand(t *testing.T) {
	c := NewCache(Config{}, nil, &fakeTrades{}, nil, nil)
	got := c.Candidates(listing())
	require.Len(t, got, 2)
	assert.Equal(t, "0xmid", got[0].Address)
	assert.Equal(t, "0xmin", got[1].Address)
}

func TestActivateFetchesOnce(t *testing.T) {
	src := &fakeTrades{out: []model.Trade{trade("0xa", model.SideBuy, 5, 0)}}
	c := NewCache(Config{}, NewMemoryStore(time.Hour), src, nil, nil)

	first, ok, err := c.Activate(context.Background(), "s1", listing())
	require.NoError(t, err)
	require.True(t, ok)

	second, ok, err := c.Activate(context.Background(), "s1", []model.PoolRecord{{Address: "0xother", Buys: 100}})
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, src.calls.Load())
	assert.Len(t, first.Buys, 1)
	assert.Len(t, first.Holders, 1)
}

func TestActivateConcurrentSharesFetch(t *testing.T) {
	src := &fakeTrades{delay: 30 * time.Millisecond}
	c := NewCache(Config{}, nil, src, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.Activate(context.Background(), "s1", listing())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestActivateSurvivesFirstCallerCancel(t *testing.T) {
	src := &fakeTrades{gate: make(chan struct{})}
	c := NewCache(Config{}, nil, src, nil, nil)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.Activate(firstCtx, "s1", listing())
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	type outcome struct {
		ok  bool
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		_, ok, err := c.Activate(context.Background(), "s1", listing())
		second <- outcome{ok: ok, err: err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(src.gate)

	got := <-second
	require.NoError(t, got.err)
	assert.True(t, got.ok)
	assert.NoError(t, <-firstErr)
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestActivateEmptyNotCached(t *testing.T) {
	src := &fakeTrades{}
	c := NewCache(Config{}, nil, src, nil, nil)

	_, ok, err := c.Activate(context.Background(), "s1", []model.PoolRecord{{Address: "0xlow", Buys: 1}})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, src.calls.Load())

	_, ok, err = c.Activate(context.Background(), "s1", listing())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestActivateTradeFailureNotCached(t *testing.T) {
	src := &fakeTrades{err: errors.New("boom")}
	c := NewCache(Config{}, nil, src, nil, nil)

	_, _, err := c.Activate(context.Background(), "s1", listing())
	require.Error(t, err)
	_, err = c.Cached(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClearAllowsReselection(t *testing.T) {
	src := &fakeTrades{}
	c := NewCache(Config{}, nil, src, nil, nil)
	picks := []int{0, 1}
	c.pick = func(n int) int {
		p := picks[0]
		picks = picks[1:]
		return p
	}

	first, _, err := c.Activate(context.Background(), "s1", listing())
	require.NoError(t, err)
	require.NoError(t, c.Clear(context.Background(), "s1"))
	second, _, err := c.Activate(context.Background(), "s1", listing())
	require.NoError(t, err)

	assert.Equal(t, "0xmid", first.Pool.Address)
	assert.Equal(t, "0xmin", second.Pool.Address)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := base
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(context.Background(), "s1", Selection{Pool: model.PoolRecord{Address: "0x1"}}))
	got, err := s.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "0x1", got.Pool.Address)

	now = now.Add(2 * time.Minute)
	_, err = s.Get(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}
