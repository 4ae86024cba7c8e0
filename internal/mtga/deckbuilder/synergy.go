package deckbuilder

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
)

// Score is a synergy score with its per-signal breakdown. Signals are
// normalized to 0-1 before weighting.
type Score struct {
	Total        float64 `json:"total"`
	TagOverlap   float64 `json:"tagOverlap"`
	CurveFit     float64 `json:"curveFit"`
	ColorPenalty float64 `json:"colorPenalty"`
	Prior        float64 `json:"prior"`
}

// Scorer computes the affinity between a card and a partial deck.
type Scorer struct {
	weights            Weights
	commanderTagWeight float64
}

// NewScorer creates a scorer from options.
func NewScorer(opts Options) *Scorer {
	opts = opts.withDefaults()
	return &Scorer{weights: opts.Weights, commanderTagWeight: opts.CommanderTagWeight}
}

// Score rates card against deck. The total is never negative: a card with
// no signal scores 0 and is deprioritized rather than excluded.
func (s *Scorer) Score(card *cards.Card, deck *PartialDeck) Score {
	sc := Score{
		TagOverlap:   s.tagOverlap(card, deck),
		CurveFit:     curveFit(card, deck),
		ColorPenalty: colorPenalty(card, deck),
		Prior:        prior(card),
	}

	total := s.weights.TagOverlap*sc.TagOverlap +
		s.weights.CurveFit*sc.CurveFit +
		s.weights.Prior*sc.Prior -
		s.weights.ColorEfficiency*sc.ColorPenalty
	sc.Total = math.Max(0, round(total))
	return sc
}

// tagOverlap is the weighted share of the card's synergy tags already
// present in the deck. Tags shared with the commander weigh more.
func (s *Scorer) tagOverlap(card *cards.Card, deck *PartialDeck) float64 {
	n := 0
	matched := 0.0
	for _, t := range card.Tags {
		if engineTags[t] {
			continue
		}
		n++
		switch {
		case deck.cmdTags[t]:
			matched += s.commanderTagWeight
		case deck.tags[t] > 0:
			matched++
		}
	}
	if n == 0 {
		return 0
	}
	return matched / (float64(n) * s.commanderTagWeight)
}

// curveFit favors cards close to the most under-filled curve bucket.
func curveFit(card *cards.Card, deck *PartialDeck) float64 {
	if card.IsLand() {
		return 0
	}
	under := deck.MostUnderfilled()
	if under < 0 {
		return 0
	}
	d := deck.curve.Bucket(card.ManaValue) - under
	if d < 0 {
		d = -d
	}
	return 1 / float64(1+d)
}

// colorPenalty grows with each mana cost color beyond the first, relative
// to the width of the commander's identity.
func colorPenalty(card *cards.Card, deck *PartialDeck) float64 {
	extra := card.ManaCostColors().Len() - 1
	if extra <= 0 {
		return 0
	}
	width := len(cards.AllColors)
	if deck.HasIdentity {
		width = max(deck.Identity.Len(), 1)
	}
	return math.Min(1, float64(extra)/float64(width))
}

func prior(card *cards.Card) float64 {
	if card.HasTag(cards.TagGameChanger) || card.HasTag(cards.TagStaple) {
		return 1
	}
	return 0
}

// round trims float noise so equal scores compare equal.
func round(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

// candidate is a pool card under consideration.
type candidate struct {
	card  *cards.Card
	owned int
	price *decimal.Decimal
	score Score
}

// ratio is synergy per unit price. Unpriced or free cards rank first.
func (c *candidate) ratio() float64 {
	if c.price == nil || !c.price.IsPositive() {
		return math.Inf(1)
	}
	return c.score.Total / c.price.InexactFloat64()
}

// rank scores candidates against deck and orders them by score desc, mana
// value asc, name asc. With a budget, equal scores prefer the better
// synergy-per-price ratio.
func (s *Scorer) rank(cands []*candidate, deck *PartialDeck, budgeted bool) {
	for _, c := range cands {
		c.score = s.Score(c.card, deck)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return less(cands[i], cands[j], budgeted)
	})
}

func less(a, b *candidate, budgeted bool) bool {
	if a.score.Total != b.score.Total {
		return a.score.Total > b.score.Total
	}
	if budgeted {
		if ra, rb := a.ratio(), b.ratio(); ra != rb {
			return ra > rb
		}
	}
	if a.card.ManaValue != b.card.ManaValue {
		return a.card.ManaValue < b.card.ManaValue
	}
	return strings.ToLower(a.card.Name) < strings.ToLower(b.card.Name)
}
