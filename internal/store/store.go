// Package store implements C1, the per-sensor append-only raw sample
// buffer. It is the only component that mutates shared state; everything
// downstream operates on immutable slices handed out by its read methods.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/sawpanic/sentinel/internal/domain"
)

// sampleKey identifies a sample for the append-is-idempotent contract:
// on a duplicate (ts, channel) the latest write wins.
type sampleKey struct {
	ts      int64
	channel domain.Channel
}

// sensorBuffer holds one sensor's time-ordered raw history plus an index
// for O(1) duplicate detection on append.
type sensorBuffer struct {
	samples []domain.Sample
	index   map[sampleKey]int // sampleKey -> position in samples
}

// Store is the in-RAM Sample Store. It is exclusively owned by the engine
// driver; readers such as the snapshot writer only ever see copies
// returned by Tail/Since, never the backing slice.
type Store struct {
	mu   sync.RWMutex
	bufs map[string]*sensorBuffer
}

// New creates an empty Store.
func New() *Store {
	return &Store{bufs: make(map[string]*sensorBuffer)}
}

// Append adds a batch of raw samples for one sensor. Duplicate (ts,
// channel) pairs are resolved latest-write-wins; the batch need not be
// pre-sorted. After append the sensor's buffer remains ts-ascending.
func (s *Store) Append(sensorID string, batch []domain.Sample) {
	if len(batch) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.bufs[sensorID]
	if !ok {
		buf = &sensorBuffer{index: make(map[sampleKey]int)}
		s.bufs[sensorID] = buf
	}

	for _, sample := range batch {
		key := sampleKey{ts: sample.Timestamp.UnixNano(), channel: sample.Channel}
		if pos, exists := buf.index[key]; exists {
			buf.samples[pos] = sample // latest write wins
			continue
		}
		buf.index[key] = len(buf.samples)
		buf.samples = append(buf.samples, sample)
	}

	sort.Slice(buf.samples, func(i, j int) bool {
		return buf.samples[i].Timestamp.Before(buf.samples[j].Timestamp)
	})
	// Sorting invalidates the index's positions; rebuild it.
	for i, sample := range buf.samples {
		buf.index[sampleKey{ts: sample.Timestamp.UnixNano(), channel: sample.Channel}] = i
	}
}

// Tail returns the last n samples for a sensor, oldest first. A copy is
// returned so callers may not mutate the store's history.
func (s *Store) Tail(sensorID string, n int) []domain.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, ok := s.bufs[sensorID]
	if !ok || n <= 0 {
		return nil
	}
	start := len(buf.samples) - n
	if start < 0 {
		start = 0
	}
	out := make([]domain.Sample, len(buf.samples)-start)
	copy(out, buf.samples[start:])
	return out
}

// Since returns every sample for a sensor at or after ts, oldest first.
func (s *Store) Since(sensorID string, ts time.Time) []domain.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, ok := s.bufs[sensorID]
	if !ok {
		return nil
	}
	idx := sort.Search(len(buf.samples), func(i int) bool {
		return !buf.samples[i].Timestamp.Before(ts)
	})
	out := make([]domain.Sample, len(buf.samples)-idx)
	copy(out, buf.samples[idx:])
	return out
}

// All returns the full raw history for a sensor, oldest first.
func (s *Store) All(sensorID string) []domain.Sample {
	return s.Since(sensorID, time.Time{})
}

// LastTS returns the most recent timestamp seen for a sensor and whether
// any sample exists at all.
func (s *Store) LastTS(sensorID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, ok := s.bufs[sensorID]
	if !ok || len(buf.samples) == 0 {
		return time.Time{}, false
	}
	return buf.samples[len(buf.samples)-1].Timestamp, true
}

// Trim evicts every sample older than the cutoff, across all sensors. Runs
// on a cadence and at publish time.
func (s *Store) Trim(olderThan time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sensorID, buf := range s.bufs {
		idx := sort.Search(len(buf.samples), func(i int) bool {
			return !buf.samples[i].Timestamp.Before(olderThan)
		})
		if idx == 0 {
			continue
		}
		kept := make([]domain.Sample, len(buf.samples)-idx)
		copy(kept, buf.samples[idx:])
		newIndex := make(map[sampleKey]int, len(kept))
		for i, sample := range kept {
			newIndex[sampleKey{ts: sample.Timestamp.UnixNano(), channel: sample.Channel}] = i
		}
		s.bufs[sensorID] = &sensorBuffer{samples: kept, index: newIndex}
	}
}

// SensorIDs returns every sensor id currently tracked, for iteration by
// the driver.
func (s *Store) SensorIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.bufs))
	for id := range s.bufs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
