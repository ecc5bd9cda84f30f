package enrich

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addresses(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("0x%02d", i)
	}
	return out
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyRecompute, p)

	p, err = ParsePolicy(" Sticky ")
	require.NoError(t, err)
	assert.Equal(t, PolicySticky, p)

	_, err = ParsePolicy("random")
	assert.Error(t, err)
}

func TestSweepCoversQueueInCeilCycles(t *testing.T) {
	for _, policy := range []Policy{PolicyRecompute, PolicySticky} {
		t.Run(string(policy), func(t *testing.T) {
			s := newSweep(policy, 5)
			require.True(t, s.update(addresses(12), 0))

			var batches [][]string
			for {
				f, ok := s.next()
				if !ok {
					break
				}
				batches = append(batches, f.addresses)
				s.complete(f)
			}
			require.Len(t, batches, 3)
			assert.Equal(t, addresses(12)[0:5], batches[0])
			assert.Equal(t, addresses(12)[5:10], batches[1])
			assert.Equal(t, addresses(12)[10:12], batches[2])
			assert.Equal(t, 15, s.cursor)
		})
	}
}

func TestSweepSingleFlight(t *testing.T) {
	s := newSweep(PolicyRecompute, 5)
	s.update(addresses(12), 0)

	f, ok := s.next()
	require.True(t, ok)
	_, ok = s.next()
	assert.False(t, ok, "second slice must wait for the first to complete")

	s.complete(f)
	f2, ok := s.next()
	require.True(t, ok)
	assert.Equal(t, 5, f2.cursor)
}

func TestSweepNoKickOnceAudited(t *testing.T) {
	s := newSweep(PolicyRecompute, 5)
	assert.False(t, s.update(nil, 0))
	assert.False(t, s.update(addresses(3), 2))
	assert.True(t, s.update(addresses(4), 0))
}

func TestSweepStickyKeepsCursor(t *testing.T) {
	s := newSweep(PolicySticky, 5)
	s.update(addresses(12), 0)
	f, _ := s.next()
	s.complete(f)
	require.Equal(t, 5, s.cursor)

	// new list, audits already present: cursor keeps climbing
	assert.False(t, s.update(addresses(20), 5))
	f, ok := s.next()
	require.True(t, ok)
	assert.Equal(t, addresses(20)[5:10], f.addresses)
	s.complete(f)
	assert.Equal(t, 10, s.cursor)

	// shrinking list leaves the cursor past the end
	s.update(addresses(8), 10)
	_, ok = s.next()
	assert.False(t, ok)
}

func TestSweepStickyResetsWhileUnaudited(t *testing.T) {
	s := newSweep(PolicySticky, 5)
	s.update(addresses(12), 0)
	f, _ := s.next()
	s.complete(f)

	assert.True(t, s.update(addresses(12), 0))
	assert.Equal(t, 0, s.cursor)
}

func TestSweepRecomputeSkipsAttempted(t *testing.T) {
	s := newSweep(PolicyRecompute, 5)
	s.update(addresses(8), 0)
	f, _ := s.next()
	s.complete(f)

	list := append(addresses(8), "0xnew")
	assert.False(t, s.update(list, 5))
	assert.Equal(t, 0, s.cursor)
	assert.Equal(t, []string{"0x05", "0x06", "0x07", "0xnew"}, s.queue)

	// unchanged list is not a new generation
	gen := s.generation
	s.update(list, 5)
	assert.Equal(t, gen, s.generation)
}

func TestSweepRecomputeStaleFlightKeepsCursor(t *testing.T) {
	s := newSweep(PolicyRecompute, 5)
	s.update(addresses(12), 0)
	f, _ := s.next()

	s.update(addresses(13), 0)
	s.complete(f)
	assert.Equal(t, 0, s.cursor)
	assert.Nil(t, s.inFlight)

	next, ok := s.next()
	require.True(t, ok)
	assert.Equal(t, addresses(13)[5:10], next.addresses)
}
