package prices

import (
	"sort"
	"time"
)

// Snapshot is an immutable, source-filtered view of a Store. Analytics read
// a single Snapshot so that one computation sees consistent prices.
type Snapshot struct {
	bySeries map[printing][]Observation // daily latest, ascending
	byName   map[string]printing        // name -> printing with lowest set code
}

type printing struct {
	name string
	set  string
}

// NewSnapshot builds a snapshot from raw observations in any order. When
// several sources are mixed the later observation of a day wins.
func NewSnapshot(obs []Observation) *Snapshot {
	raw := make(map[printing][]Observation)
	for _, o := range obs {
		k := NewSeriesKey(o.CardName, o.SetCode, "")
		p := printing{name: k.CardName, set: k.SetCode}
		raw[p] = append(raw[p], o)
	}

	s := &Snapshot{
		bySeries: make(map[printing][]Observation, len(raw)),
		byName:   make(map[string]printing),
	}
	for p, list := range raw {
		sort.SliceStable(list, func(i, j int) bool { return list[i].ObservedAt.Before(list[j].ObservedAt) })
		s.bySeries[p] = dailyLatest(list)

		if existing, ok := s.byName[p.name]; !ok || p.set < existing.set {
			s.byName[p.name] = p
		}
	}
	return s
}

// resolve finds the series for a printing. An explicit set code matches
// that printing or a set-less series for the name, never another printing.
// An empty set code falls back to the name's lowest set code.
func (s *Snapshot) resolve(name, setCode string) ([]Observation, bool) {
	if s == nil {
		return nil, false
	}
	k := NewSeriesKey(name, setCode, "")
	if k.SetCode != "" {
		if list, ok := s.bySeries[printing{name: k.CardName, set: k.SetCode}]; ok {
			return list, true
		}
		list, ok := s.bySeries[printing{name: k.CardName}]
		return list, ok
	}
	p, ok := s.byName[k.CardName]
	if !ok {
		return nil, false
	}
	return s.bySeries[p], true
}

// LatestOnOrBefore returns the latest daily price on or before day t.
func (s *Snapshot) LatestOnOrBefore(name, setCode string, t time.Time) (Observation, bool) {
	list, ok := s.resolve(name, setCode)
	if !ok {
		return Observation{}, false
	}
	day := Day(t)
	i := sort.Search(len(list), func(i int) bool { return list[i].Day().After(day) })
	if i == 0 {
		return Observation{}, false
	}
	return list[i-1], true
}

// Latest returns the most recent price of a printing.
func (s *Snapshot) Latest(name, setCode string) (Observation, bool) {
	list, ok := s.resolve(name, setCode)
	if !ok || len(list) == 0 {
		return Observation{}, false
	}
	return list[len(list)-1], true
}

// History returns the daily series of a printing within [from, to].
func (s *Snapshot) History(name, setCode string, from, to time.Time) []Observation {
	list, _ := s.resolve(name, setCode)
	return clipDays(list, from, to)
}

// Trailing returns up to n most recent daily observations, ascending.
func (s *Snapshot) Trailing(name, setCode string, n int) []Observation {
	list, _ := s.resolve(name, setCode)
	if n > 0 && len(list) > n {
		list = list[len(list)-n:]
	}
	out := make([]Observation, len(list))
	copy(out, list)
	return out
}

// Bounds returns the first and last observed day across the snapshot.
func (s *Snapshot) Bounds() (first, last time.Time, ok bool) {
	if s == nil {
		return time.Time{}, time.Time{}, false
	}
	for _, list := range s.bySeries {
		if len(list) == 0 {
			continue
		}
		if !ok || list[0].Day().Before(first) {
			first = list[0].Day()
		}
		if !ok || list[len(list)-1].Day().After(last) {
			last = list[len(list)-1].Day()
		}
		ok = true
	}
	return first, last, ok
}

// Names returns the card names with at least one observation, sorted.
func (s *Snapshot) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.byName))
	for name := range s.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// With returns a copy of s with obs layered on top. Used to overlay freshly
// fetched prices without mutating a shared snapshot.
func (s *Snapshot) With(obs ...Observation) *Snapshot {
	var all []Observation
	if s != nil {
		for _, list := range s.bySeries {
			all = append(all, list...)
		}
	}
	all = append(all, obs...)
	return NewSnapshot(all)
}

