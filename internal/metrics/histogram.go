package metrics

import (
	"math"
	"slices"
	"sync"
	"time"
)

// Histogram keeps a bounded window of duration samples (milliseconds) and
// reports percentiles over it.
type Histogram struct {
	mu      sync.RWMutex
	samples []float64
	maxSize int
}

// NewHistogram creates a histogram holding at most maxSize samples.
// When the window is full the oldest fifth is dropped.
func NewHistogram(maxSize int) *Histogram {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Histogram{
		samples: make([]float64, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record adds a sample.
func (h *Histogram) Record(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples = append(h.samples, float64(d.Microseconds())/1000.0)
	if len(h.samples) > h.maxSize {
		h.samples = h.samples[h.maxSize/5:]
	}
}

// LatencyStats summarizes a histogram in milliseconds.
type LatencyStats struct {
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// Stats returns a summary of the current window.
func (h *Histogram) Stats() LatencyStats {
	h.mu.RLock()
	sorted := slices.Clone(h.samples)
	h.mu.RUnlock()

	if len(sorted) == 0 {
		return LatencyStats{}
	}
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return LatencyStats{
		Mean:  sum / float64(len(sorted)),
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		P99:   percentile(sorted, 99),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Count: len(sorted),
	}
}

// Percentile returns the value at percentile p (0-100).
func (h *Histogram) Percentile(p float64) float64 {
	h.mu.RLock()
	sorted := slices.Clone(h.samples)
	h.mu.RUnlock()

	if len(sorted) == 0 {
		return 0
	}
	slices.Sort(sorted)
	return percentile(sorted, p)
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []float64, p float64) float64 {
	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	fraction := index - float64(lower)
	return sorted[lower]*(1-fraction) + sorted[upper]*fraction
}

// Count returns the number of samples in the window.
func (h *Histogram) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.samples)
}

// Reset clears all samples.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = h.samples[:0]
}
