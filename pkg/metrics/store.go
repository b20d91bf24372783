package metrics

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultWindow is the lookback used by Recent when the caller passes a
// non-positive window.
const DefaultWindow = time.Hour

// Store is a bounded, retention-pruned history of metric samples. It is
// written by a single ingest path and read through snapshot copies, so a
// reader never observes a half-built cycle.
type Store struct {
	mu        sync.RWMutex
	samples   []Sample // ring, ordered oldest..newest starting at head
	head      int
	count     int
	capacity  int
	retention time.Duration
}

// NewStore sizes the ring from the retention window and the expected
// sample interval. Capacity never drops below 16 so bursty collectors
// with coarse retention still get a usable window.
func NewStore(retention, sampleInterval time.Duration) *Store {
	capacity := 16
	if sampleInterval > 0 && retention > sampleInterval {
		if n := int(retention / sampleInterval); n > capacity {
			capacity = n
		}
	}
	return &Store{
		samples:   make([]Sample, capacity),
		capacity:  capacity,
		retention: retention,
	}
}

// Add appends a sample and prunes anything strictly older than the
// retention period. Malformed samples are the collector's problem and are
// accepted as-is; Add never fails.
func (s *Store) Add(sample Sample) {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == s.capacity {
		// Overwrite the oldest slot.
		s.samples[s.head] = sample
		s.head = (s.head + 1) % s.capacity
	} else {
		s.samples[(s.head+s.count)%s.capacity] = sample
		s.count++
	}

	s.pruneLocked(time.Now())
}

// Prune drops samples strictly older than the retention period relative
// to now. The scheduler calls this at cycle end.
func (s *Store) Prune(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
}

func (s *Store) pruneLocked(now time.Time) {
	if s.retention <= 0 {
		return
	}
	cutoff := now.Add(-s.retention)
	dropped := 0
	for s.count > 0 {
		oldest := s.samples[s.head]
		if !oldest.Timestamp.Before(cutoff) {
			break
		}
		s.samples[s.head] = Sample{}
		s.head = (s.head + 1) % s.capacity
		s.count--
		dropped++
	}
	if dropped > 0 {
		log.Debug().
			Int("dropped", dropped).
			Int("remaining", s.count).
			Msg("Pruned expired metric samples")
	}
}

// Recent returns an ordered copy of the samples within the window,
// oldest first. A non-positive window means DefaultWindow.
func (s *Store) Recent(window time.Duration) []Sample {
	if window <= 0 {
		window = DefaultWindow
	}
	cutoff := time.Now().Add(-window)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Sample, 0, s.count)
	for i := 0; i < s.count; i++ {
		sample := s.samples[(s.head+i)%s.capacity]
		if sample.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, sample)
	}
	return out
}

// All returns a copy of every retained sample, oldest first.
func (s *Store) All() []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Sample, 0, s.count)
	for i := 0; i < s.count; i++ {
		out = append(out, s.samples[(s.head+i)%s.capacity])
	}
	return out
}

// Latest returns the newest sample, or false when the store is empty.
func (s *Store) Latest() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return Sample{}, false
	}
	return s.samples[(s.head+s.count-1)%s.capacity], true
}

// Len reports the number of retained samples.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Capacity reports the fixed ring size.
func (s *Store) Capacity() int {
	return s.capacity
}
