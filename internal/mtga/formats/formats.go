// Package formats describes the construction rules of the supported
// singleton formats.
package formats

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ramonehamilton/deckforge/internal/apperr"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
)

//go:embed formats.yaml
var defaultFormats []byte

// Rules holds the construction rules of one format.
type Rules struct {
	Name              cards.Format `yaml:"name" json:"name"`
	LegalityKey       cards.Format `yaml:"legality_key" json:"legalityKey,omitempty"` // defaults to Name
	DeckSize          int          `yaml:"deck_size" json:"deckSize"`                 // includes the commander
	CommanderRequired bool         `yaml:"commander_required" json:"commanderRequired"`
	Singleton         bool         `yaml:"singleton" json:"singleton"`
	MinLands          int          `yaml:"min_lands" json:"minLands"`
	MaxLands          int          `yaml:"max_lands" json:"maxLands"`

	// CommanderAnyCreature lets any creature lead the deck (pauper commander).
	CommanderAnyCreature bool `yaml:"commander_any_creature" json:"commanderAnyCreature,omitempty"`

	// Land formula overrides; zero means the assembler default.
	BaseLands   float64 `yaml:"base_lands" json:"baseLands,omitempty"`
	LandScaling float64 `yaml:"land_scaling" json:"landScaling,omitempty"`
}

// MainDeckSize returns the number of cards excluding the commander.
func (r Rules) MainDeckSize() int {
	if r.CommanderRequired {
		return r.DeckSize - 1
	}
	return r.DeckSize
}

// Legality returns the format key used in card legalities.
func (r Rules) Legality() cards.Format {
	if r.LegalityKey != "" {
		return r.LegalityKey
	}
	return r.Name
}

func (r Rules) validate() error {
	switch {
	case r.Name == "":
		return fmt.Errorf("format name is required")
	case r.DeckSize <= 0:
		return fmt.Errorf("format %s: deck size must be positive", r.Name)
	case r.MinLands < 0 || r.MaxLands < r.MinLands:
		return fmt.Errorf("format %s: invalid land range %d-%d", r.Name, r.MinLands, r.MaxLands)
	case r.MaxLands > r.MainDeckSize():
		return fmt.Errorf("format %s: max lands %d exceeds main deck size %d", r.Name, r.MaxLands, r.MainDeckSize())
	case r.BaseLands < 0 || r.LandScaling < 0:
		return fmt.Errorf("format %s: land formula must not be negative", r.Name)
	}
	return nil
}

// Registry is an immutable set of format rules.
type Registry struct {
	rules map[cards.Format]Rules
}

type document struct {
	Formats []Rules `yaml:"formats"`
}

// Parse reads a YAML format table.
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse formats: %w", err)
	}

	reg := &Registry{rules: make(map[cards.Format]Rules, len(doc.Formats))}
	for _, r := range doc.Formats {
		r.Name = cards.Format(strings.ToLower(string(r.Name)))
		if err := r.validate(); err != nil {
			return nil, err
		}
		if _, dup := reg.rules[r.Name]; dup {
			return nil, fmt.Errorf("duplicate format %s", r.Name)
		}
		reg.rules[r.Name] = r
	}
	return reg, nil
}

// Default returns the built-in format table.
func Default() *Registry {
	reg, err := Parse(defaultFormats)
	if err != nil {
		panic(fmt.Sprintf("embedded formats.yaml is invalid: %v", err))
	}
	return reg
}

// Lookup returns the rules for f or an InputError for unknown formats.
func (r *Registry) Lookup(f cards.Format) (Rules, error) {
	rules, ok := r.rules[cards.Format(strings.ToLower(string(f)))]
	if !ok {
		return Rules{}, apperr.Input(apperr.ReasonUnknownFormat, string(f))
	}
	return rules, nil
}

// Names returns the known format names in sorted order.
func (r *Registry) Names() []cards.Format {
	out := make([]cards.Format, 0, len(r.rules))
	for f := range r.rules {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
