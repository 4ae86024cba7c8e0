package prices

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store is an append-only log of price observations. Observations sharing a
// series and day bucket coexist; the latest one supersedes the others when
// prices are read.
type Store interface {
	// Append records observations. Exact duplicates are ignored.
	Append(ctx context.Context, obs ...Observation) error

	// History returns the daily series for key between from and to
	// (inclusive, by day), one observation per day, ascending.
	History(ctx context.Context, key SeriesKey, from, to time.Time) ([]Observation, error)

	// LatestOnOrBefore returns the latest observation for key at or before t.
	LatestOnOrBefore(ctx context.Context, key SeriesKey, t time.Time) (Observation, bool, error)

	// Snapshot returns an immutable view of every series from source.
	Snapshot(ctx context.Context, source string) (*Snapshot, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	series map[SeriesKey][]Observation // ordered by ObservedAt
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{series: make(map[SeriesKey][]Observation)}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, obs ...Observation) error {
	for _, o := range obs {
		if err := o.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range obs {
		key := o.Series()
		list := s.series[key]
		i := sort.Search(len(list), func(i int) bool {
			return !list[i].ObservedAt.Before(o.ObservedAt)
		})
		if i < len(list) && list[i].ObservedAt.Equal(o.ObservedAt) && list[i].Price.Equal(o.Price) {
			continue
		}
		list = append(list, Observation{})
		copy(list[i+1:], list[i:])
		list[i] = o
		s.series[key] = list
	}
	return nil
}

// History implements Store.
func (s *MemoryStore) History(_ context.Context, key SeriesKey, from, to time.Time) ([]Observation, error) {
	s.mu.RLock()
	daily := dailyLatest(s.series[key])
	s.mu.RUnlock()

	return clipDays(daily, from, to), nil
}

// LatestOnOrBefore implements Store.
func (s *MemoryStore) LatestOnOrBefore(_ context.Context, key SeriesKey, t time.Time) (Observation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.series[key]
	i := sort.Search(len(list), func(i int) bool { return list[i].ObservedAt.After(t) })
	if i == 0 {
		return Observation{}, false, nil
	}
	return list[i-1], true, nil
}

// Snapshot implements Store.
func (s *MemoryStore) Snapshot(_ context.Context, source string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := NewSeriesKey("", "", source).Source
	var all []Observation
	for key, list := range s.series {
		if want != "" && key.Source != want {
			continue
		}
		all = append(all, list...)
	}
	return NewSnapshot(all), nil
}

// dailyLatest keeps the last observation of each day. list must be sorted
// by ObservedAt.
func dailyLatest(list []Observation) []Observation {
	out := make([]Observation, 0, len(list))
	for _, o := range list {
		if n := len(out); n > 0 && out[n-1].Day().Equal(o.Day()) {
			out[n-1] = o
			continue
		}
		out = append(out, o)
	}
	return out
}

// clipDays keeps daily observations whose day lies within [from, to]. A zero
// bound is open.
func clipDays(daily []Observation, from, to time.Time) []Observation {
	out := make([]Observation, 0, len(daily))
	for _, o := range daily {
		d := o.Day()
		if !from.IsZero() && d.Before(Day(from)) {
			continue
		}
		if !to.IsZero() && d.After(Day(to)) {
			continue
		}
		out = append(out, o)
	}
	return out
}
