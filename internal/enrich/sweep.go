package enrich

import (
	"fmt"
	"slices"
	"strings"
)

// Policy decides how the cursor reacts when the eligible list changes between listing cycles.
type Policy string

const (
	// PolicyRecompute rebuilds the queue and resets the cursor whenever the
	// eligible list changes. Addresses already attempted are not queued again.
	PolicyRecompute Policy = "recompute"
	// PolicySticky replaces the queue but keeps the cursor climbing; the cursor
	// is reset only while no audit record exists yet.
	PolicySticky Policy = "sticky"
)

// ParsePolicy validates a policy name. Empty selects PolicyRecompute.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(name))) {
	case "", PolicyRecompute:
		return PolicyRecompute, nil
	case PolicySticky:
		return PolicySticky, nil
	default:
		return "", fmt.Errorf("unknown cursor policy: %s", name)
	}
}

// flight is the token carried by an outstanding batch request.
type flight struct {
	generation uint64
	cursor     int
	addresses  []string
}

// sweep is the cursor bookkeeping of the batcher. It is owned by a single
// goroutine and is not safe for concurrent use.
type sweep struct {
	policy     Policy
	size       int
	queue      []string
	cursor     int
	generation uint64
	inFlight   *flight
	attempted  map[string]struct{}
	eligible   []string
}

func newSweep(policy Policy, size int) *sweep {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &sweep{
		policy:    policy,
		size:      size,
		attempted: make(map[string]struct{}),
	}
}

// update applies a newly published eligible list and reports whether the
// first slice should be requested without waiting for the next tick.
func (s *sweep) update(eligible []string, audited int) bool {
	if s.policy == PolicySticky {
		s.queue = slices.Clone(eligible)
		if audited == 0 && len(eligible) > 0 {
			s.cursor = 0
			return true
		}
		return false
	}

	if s.eligible != nil && slices.Equal(eligible, s.eligible) {
		return false
	}
	s.eligible = slices.Clone(eligible)
	s.generation++
	s.cursor = 0
	s.queue = make([]string, 0, len(eligible))
	for _, addr := range eligible {
		if _, done := s.attempted[addr]; done {
			continue
		}
		s.queue = append(s.queue, addr)
	}
	return audited == 0 && len(s.queue) > 0
}

// next takes the slice at the cursor. It returns false while a batch is
// outstanding or when the cursor has reached the end of the queue.
func (s *sweep) next() (*flight, bool) {
	if s.inFlight != nil || s.cursor >= len(s.queue) {
		return nil, false
	}
	end := min(s.cursor+s.size, len(s.queue))
	f := &flight{
		generation: s.generation,
		cursor:     s.cursor,
		addresses:  slices.Clone(s.queue[s.cursor:end]),
	}
	for _, addr := range f.addresses {
		s.attempted[addr] = struct{}{}
	}
	s.inFlight = f
	return f, true
}

// complete releases the in-flight token and advances the cursor by the batch
// size whether or not the request succeeded. Under PolicyRecompute a batch
// issued against an older queue does not move the current cursor.
func (s *sweep) complete(f *flight) {
	if f == nil || s.inFlight != f {
		return
	}
	s.inFlight = nil
	if s.policy == PolicySticky || f.generation == s.generation {
		s.cursor += s.size
	}
}

func (s *sweep) status(audited int) Status {
	return Status{
		Policy:   s.policy,
		Cursor:   s.cursor,
		Queued:   len(s.queue),
		InFlight: s.inFlight != nil,
		Audited:  audited,
	}
}
