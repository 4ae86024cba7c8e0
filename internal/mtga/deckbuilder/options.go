// Package deckbuilder assembles legal singleton decks from an owned card
// pool. Assembly is an explicit state machine (see Assembler) driven by a
// weighted synergy score and configurable curve and land targets.
package deckbuilder

import "fmt"

// Weights are the relative weights of the synergy signals.
type Weights struct {
	TagOverlap      float64 `toml:"tag_overlap" json:"tagOverlap"`
	CurveFit        float64 `toml:"curve_fit" json:"curveFit"`
	ColorEfficiency float64 `toml:"color_efficiency" json:"colorEfficiency"`
	Prior           float64 `toml:"prior" json:"prior"`
}

// Options tunes the assembler. Zero values are replaced by defaults in
// NewAssembler, so a partially filled Options is valid.
type Options struct {
	Curve   CurveConfig `toml:"curve"`
	Weights Weights     `toml:"weights"`

	// CommanderTagWeight is how much more a tag shared with the commander
	// counts than a tag shared with the rest of the deck.
	CommanderTagWeight float64 `toml:"commander_tag_weight"`

	// Cards scoring at least SeedThreshold against the commander alone
	// anchor the deck, at most SeedCap of them.
	SeedThreshold float64 `toml:"seed_threshold"`
	SeedCap       int     `toml:"seed_cap"`

	// Land formula defaults, used when the format does not override them.
	BaseLands   float64 `toml:"base_lands"`
	LandScaling float64 `toml:"land_scaling"`

	// CurveTolerance is the largest acceptable share of misplaced spells
	// (0-1) before curve balancing swaps cards.
	CurveTolerance float64 `toml:"curve_tolerance"`

	// MaxBalanceIterations caps curve balancing swaps.
	MaxBalanceIterations int `toml:"max_balance_iterations"`

	// UnlimitedBasics treats basic lands as available without owning them.
	UnlimitedBasics bool `toml:"unlimited_basics"`
}

// DefaultOptions returns the built-in tuning.
func DefaultOptions() Options {
	return Options{
		Curve: DefaultCurve(),
		Weights: Weights{
			TagOverlap:      0.45,
			CurveFit:        0.25,
			ColorEfficiency: 0.15,
			Prior:           0.15,
		},
		CommanderTagWeight:   2.0,
		SeedThreshold:        0.45,
		SeedCap:              12,
		BaseLands:            31,
		LandScaling:          2.0,
		CurveTolerance:       0.10,
		MaxBalanceIterations: 25,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if len(o.Curve.Bounds) == 0 && len(o.Curve.Targets) == 0 {
		o.Curve = d.Curve
	}
	if o.Weights == (Weights{}) {
		o.Weights = d.Weights
	}
	if o.CommanderTagWeight <= 0 {
		o.CommanderTagWeight = d.CommanderTagWeight
	}
	if o.SeedThreshold <= 0 {
		o.SeedThreshold = d.SeedThreshold
	}
	if o.SeedCap <= 0 {
		o.SeedCap = d.SeedCap
	}
	if o.BaseLands <= 0 {
		o.BaseLands = d.BaseLands
	}
	if o.LandScaling <= 0 {
		o.LandScaling = d.LandScaling
	}
	if o.CurveTolerance <= 0 {
		o.CurveTolerance = d.CurveTolerance
	}
	if o.MaxBalanceIterations <= 0 {
		o.MaxBalanceIterations = d.MaxBalanceIterations
	}
	return o
}

// Validate checks the options for internal consistency.
func (o Options) Validate() error {
	if err := o.Curve.Validate(); err != nil {
		return err
	}
	w := o.Weights
	if w.TagOverlap < 0 || w.CurveFit < 0 || w.ColorEfficiency < 0 || w.Prior < 0 {
		return fmt.Errorf("synergy weights must not be negative")
	}
	if o.SeedThreshold < 0 {
		return fmt.Errorf("seed threshold must not be negative")
	}
	if o.CurveTolerance < 0 || o.CurveTolerance > 1 {
		return fmt.Errorf("curve tolerance must be within 0-1, got %v", o.CurveTolerance)
	}
	return nil
}
