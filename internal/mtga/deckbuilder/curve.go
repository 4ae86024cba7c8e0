package deckbuilder

import (
	"fmt"
	"math"
	"sort"
)

// CurveConfig defines mana value buckets and the target share of nonland
// cards in each. Bounds are inclusive upper bounds of every bucket but the
// last, which is open: Bounds [1 2 3 4 5] gives 0-1, 2, 3, 4, 5, 6+.
type CurveConfig struct {
	Bounds  []float64 `toml:"bounds" json:"bounds"`
	Targets []float64 `toml:"targets" json:"targets"` // one per bucket, summing to 1
}

// DefaultCurve returns the default commander curve.
func DefaultCurve() CurveConfig {
	return CurveConfig{
		Bounds:  []float64{1, 2, 3, 4, 5},
		Targets: []float64{0.12, 0.22, 0.22, 0.18, 0.13, 0.13},
	}
}

// Validate checks bucket and target consistency.
func (c CurveConfig) Validate() error {
	if len(c.Targets) != len(c.Bounds)+1 {
		return fmt.Errorf("curve needs %d targets for %d bounds, got %d", len(c.Bounds)+1, len(c.Bounds), len(c.Targets))
	}
	for i := 1; i < len(c.Bounds); i++ {
		if c.Bounds[i] <= c.Bounds[i-1] {
			return fmt.Errorf("curve bounds must be increasing")
		}
	}
	sum := 0.0
	for _, t := range c.Targets {
		if t < 0 {
			return fmt.Errorf("curve targets must not be negative")
		}
		sum += t
	}
	if math.Abs(sum-1) > 0.001 {
		return fmt.Errorf("curve targets must sum to 1, got %.3f", sum)
	}
	return nil
}

// Len returns the number of buckets.
func (c CurveConfig) Len() int { return len(c.Bounds) + 1 }

// Bucket returns the bucket index of a mana value.
func (c CurveConfig) Bucket(manaValue float64) int {
	for i, b := range c.Bounds {
		if manaValue <= b {
			return i
		}
	}
	return len(c.Bounds)
}

// Label returns a display label such as "0-1", "3" or "6+".
func (c CurveConfig) Label(bucket int) string {
	lo := 0.0
	if bucket > 0 {
		lo = c.Bounds[bucket-1] + 1
	}
	if bucket >= len(c.Bounds) {
		return fmt.Sprintf("%g+", lo)
	}
	hi := c.Bounds[bucket]
	if lo >= hi {
		return fmt.Sprintf("%g", hi)
	}
	return fmt.Sprintf("%g-%g", lo, hi)
}

// TargetCounts distributes n cards over the buckets by target share using
// largest remainders, so the counts always sum to n.
func (c CurveConfig) TargetCounts(n int) []int {
	counts := make([]int, c.Len())
	if n <= 0 {
		return counts
	}

	type rem struct {
		bucket int
		frac   float64
	}
	rems := make([]rem, c.Len())
	assigned := 0
	for i, t := range c.Targets {
		exact := t * float64(n)
		counts[i] = int(math.Floor(exact))
		assigned += counts[i]
		rems[i] = rem{bucket: i, frac: exact - float64(counts[i])}
	}

	sort.SliceStable(rems, func(i, j int) bool { return rems[i].frac > rems[j].frac })
	for i := 0; assigned < n; i = (i + 1) % len(rems) {
		counts[rems[i].bucket]++
		assigned++
	}
	return counts
}

// Deviation returns the share of cards that would have to move bucket to
// match the targets for the same number of cards (0 = perfect, 1 = worst).
func (c CurveConfig) Deviation(counts []int) float64 {
	n := 0
	for _, v := range counts {
		n += v
	}
	if n == 0 {
		return 0
	}
	targets := c.TargetCounts(n)
	diff := 0
	for i := range counts {
		d := counts[i] - targets[i]
		if d < 0 {
			d = -d
		}
		diff += d
	}
	return float64(diff) / float64(2*n)
}
