package deckbuilder

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/mtga/formats"
)

// engineTags carry rule or prior meaning and are not synergy markers.
var engineTags = map[string]bool{
	cards.TagAnyNumber:      true,
	cards.TagCanBeCommander: true,
	cards.TagStaple:         true,
	cards.TagGameChanger:    true,
}

// PartialDeck is the working deck during assembly. It tracks what the
// scorer and legality filter need incrementally.
type PartialDeck struct {
	Commander   *cards.Card
	Identity    cards.ColorSet
	HasIdentity bool

	// SpellTarget is the number of nonland cards the deck aims for.
	SpellTarget int

	curve   CurveConfig
	order   []*cards.Card // main deck in insertion order
	counts  map[string]int
	tags    map[string]int
	cmdTags map[string]bool
	buckets []int
	spells  int
	lands   int
	mvSum   float64
}

// NewPartialDeck starts a deck led by commander (which may be nil).
func NewPartialDeck(commander *cards.Card, curve CurveConfig, spellTarget int) *PartialDeck {
	d := &PartialDeck{
		Commander:   commander,
		SpellTarget: spellTarget,
		curve:       curve,
		counts:      make(map[string]int),
		tags:        make(map[string]int),
		cmdTags:     make(map[string]bool),
		buckets:     make([]int, curve.Len()),
	}
	if commander != nil {
		d.Identity = commander.ColorIdentity
		d.HasIdentity = true
		for _, t := range commander.Tags {
			if !engineTags[t] {
				d.cmdTags[t] = true
				d.tags[t]++
			}
		}
	}
	return d
}

// Add puts one copy of card in the main deck.
func (d *PartialDeck) Add(card *cards.Card) {
	d.order = append(d.order, card)
	d.counts[cards.Key(card.Name, "")]++
	for _, t := range card.Tags {
		if !engineTags[t] {
			d.tags[t]++
		}
	}
	if card.IsLand() {
		d.lands++
		return
	}
	d.spells++
	d.mvSum += card.ManaValue
	d.buckets[d.curve.Bucket(card.ManaValue)]++
}

// Remove takes one copy of card out of the main deck.
func (d *PartialDeck) Remove(card *cards.Card) bool {
	idx := -1
	for i, c := range d.order {
		if c == card {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	d.order = append(d.order[:idx], d.order[idx+1:]...)

	key := cards.Key(card.Name, "")
	if d.counts[key]--; d.counts[key] <= 0 {
		delete(d.counts, key)
	}
	for _, t := range card.Tags {
		if engineTags[t] {
			continue
		}
		if d.tags[t]--; d.tags[t] <= 0 {
			delete(d.tags, t)
		}
	}
	if card.IsLand() {
		d.lands--
		return true
	}
	d.spells--
	d.mvSum -= card.ManaValue
	d.buckets[d.curve.Bucket(card.ManaValue)]--
	return true
}

// Contains returns how many copies of the named card the main deck holds.
// The commander counts as one copy.
func (d *PartialDeck) Contains(name string) int {
	n := d.counts[cards.Key(name, "")]
	if d.Commander != nil && cards.Key(d.Commander.Name, "") == cards.Key(name, "") {
		n++
	}
	return n
}

// Size returns the number of main deck cards (commander excluded).
func (d *PartialDeck) Size() int { return len(d.order) }

// Spells returns the number of nonland cards.
func (d *PartialDeck) Spells() int { return d.spells }

// Lands returns the number of land cards.
func (d *PartialDeck) Lands() int { return d.lands }

// Cards returns the main deck in insertion order.
func (d *PartialDeck) Cards() []*cards.Card { return d.order }

// AverageManaValue returns the mean mana value of nonland cards.
func (d *PartialDeck) AverageManaValue() float64 {
	if d.spells == 0 {
		return 0
	}
	return d.mvSum / float64(d.spells)
}

// BucketCounts returns a copy of the nonland counts per curve bucket.
func (d *PartialDeck) BucketCounts() []int {
	out := make([]int, len(d.buckets))
	copy(out, d.buckets)
	return out
}

// MostUnderfilled returns the bucket furthest below its target for
// SpellTarget spells, or -1 when no bucket is short. Ties go to the lower
// bucket.
func (d *PartialDeck) MostUnderfilled() int {
	targets := d.curve.TargetCounts(d.SpellTarget)
	best, bestGap := -1, 0
	for i, t := range targets {
		if gap := t - d.buckets[i]; gap > bestGap {
			best, bestGap = i, gap
		}
	}
	return best
}

// DeckCard is one entry of an assembled deck.
type DeckCard struct {
	Card     *cards.Card      `json:"card"`
	Quantity int              `json:"quantity"`
	Score    float64          `json:"score"`
	Stage    State            `json:"stage"`
	Price    *decimal.Decimal `json:"price,omitempty"` // per copy
}

// Deck is an assembled deck. Analysis is derived and can be recomputed
// from the cards at any time.
type Deck struct {
	ID             string           `json:"id,omitempty"`
	Name           string           `json:"name"`
	Format         cards.Format     `json:"format"`
	Commander      *cards.Card      `json:"commander,omitempty"`
	CommanderPrice *decimal.Decimal `json:"commanderPrice,omitempty"`
	Cards          []DeckCard       `json:"cards"`
	Analysis       *Analysis        `json:"analysis,omitempty"`
}

// Size returns the total number of cards including the commander.
func (d *Deck) Size() int {
	n := 0
	if d.Commander != nil {
		n = 1
	}
	for _, c := range d.Cards {
		n += c.Quantity
	}
	return n
}

// CurveBucket is one bar of the mana curve.
type CurveBucket struct {
	Label  string `json:"label"`
	Count  int    `json:"count"`
	Target int    `json:"target"`
}

// Analysis summarizes an assembled deck.
type Analysis struct {
	Size             int                 `json:"size"`
	SpellCount       int                 `json:"spellCount"`
	LandCount        int                 `json:"landCount"`
	AverageManaValue float64             `json:"averageManaValue"`
	Curve            []CurveBucket       `json:"curve"`
	CurveDeviation   float64             `json:"curveDeviation"`
	ColorIdentity    cards.ColorSet      `json:"colorIdentity"`
	ColorPips        map[cards.Color]int `json:"colorPips"`
	TotalPrice       decimal.Decimal     `json:"totalPrice"`
	UnpricedCards    []string            `json:"unpricedCards,omitempty"`
}

// Analyze derives the analysis of the deck.
func (d *Deck) Analyze(curve CurveConfig) *Analysis {
	a := &Analysis{
		Size:       d.Size(),
		ColorPips:  make(map[cards.Color]int),
		TotalPrice: decimal.Zero,
	}
	buckets := make([]int, curve.Len())
	mvSum := 0.0

	addPrice := func(name string, price *decimal.Decimal, qty int) {
		if price == nil {
			a.UnpricedCards = append(a.UnpricedCards, name)
			return
		}
		a.TotalPrice = a.TotalPrice.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}

	if d.Commander != nil {
		a.ColorIdentity = d.Commander.ColorIdentity
		for c, n := range cards.ColorPips(d.Commander.ManaCost) {
			a.ColorPips[c] += n
		}
		addPrice(d.Commander.Name, d.CommanderPrice, 1)
	}

	for _, dc := range d.Cards {
		a.ColorIdentity = a.ColorIdentity.Union(dc.Card.ColorIdentity)
		addPrice(dc.Card.Name, dc.Price, dc.Quantity)
		if dc.Card.IsLand() {
			a.LandCount += dc.Quantity
			continue
		}
		a.SpellCount += dc.Quantity
		mvSum += dc.Card.ManaValue * float64(dc.Quantity)
		buckets[curve.Bucket(dc.Card.ManaValue)] += dc.Quantity
		for c, n := range cards.ColorPips(dc.Card.ManaCost) {
			a.ColorPips[c] += n * dc.Quantity
		}
	}

	if a.SpellCount > 0 {
		a.AverageManaValue = mvSum / float64(a.SpellCount)
	}
	targets := curve.TargetCounts(a.SpellCount)
	for i, n := range buckets {
		a.Curve = append(a.Curve, CurveBucket{Label: curve.Label(i), Count: n, Target: targets[i]})
	}
	a.CurveDeviation = curve.Deviation(buckets)
	sort.Strings(a.UnpricedCards)
	return a
}

// Validate checks the deck against the format's construction rules:
// exact size, singleton, legality, commander identity and land range.
func Validate(d *Deck, rules formats.Rules) error {
	if rules.CommanderRequired && d.Commander == nil {
		return fmt.Errorf("%s requires a commander", rules.Name)
	}
	if size := d.Size(); size != rules.DeckSize {
		return fmt.Errorf("deck has %d cards, %s requires %d", size, rules.Name, rules.DeckSize)
	}

	var identity cards.ColorSet
	if d.Commander != nil {
		identity = d.Commander.ColorIdentity
	}

	seen := make(map[string]int)
	lands := 0
	for _, dc := range d.Cards {
		card := dc.Card
		if dc.Quantity < 1 {
			return fmt.Errorf("%s has quantity %d", card.Name, dc.Quantity)
		}
		if card.LegalityIn(rules.Legality()) != cards.Legal {
			return fmt.Errorf("%s is %s in %s", card.Name, card.LegalityIn(rules.Legality()), rules.Name)
		}
		if d.Commander != nil && !card.ColorIdentity.SubsetOf(identity) {
			return fmt.Errorf("%s (%s) is outside commander identity %s", card.Name, card.ColorIdentity, identity)
		}
		key := cards.Key(card.Name, "")
		seen[key] += dc.Quantity
		if rules.Singleton && seen[key] > 1 && !card.SingletonExempt() {
			return fmt.Errorf("%s appears %d times in a singleton deck", card.Name, seen[key])
		}
		if card.IsLand() {
			lands += dc.Quantity
		}
	}
	if d.Commander != nil && seen[cards.Key(d.Commander.Name, "")] > 0 {
		return fmt.Errorf("commander %s also appears in the main deck", d.Commander.Name)
	}
	if lands < rules.MinLands || lands > rules.MaxLands {
		return fmt.Errorf("deck has %d lands, %s allows %d-%d", lands, rules.Name, rules.MinLands, rules.MaxLands)
	}
	return nil
}
