package deckbuilder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/apperr"
	"github.com/ramonehamilton/deckforge/internal/collection"
	"github.com/ramonehamilton/deckforge/internal/metrics"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/mtga/formats"
	"github.com/ramonehamilton/deckforge/internal/prices"
)

// State is a stage of the assembly state machine.
type State string

const (
	StateInit           State = "INIT"
	StateSeeding        State = "SEEDING"
	StateFilling        State = "FILLING"
	StateCurveBalancing State = "CURVE_BALANCING"
	StateLandFill       State = "LAND_FILL"
	StateValidated      State = "VALIDATED"
	StateFailed         State = "FAILED"
)

// CatalogLookup resolves card records. *cards.Catalog implements it.
type CatalogLookup interface {
	Lookup(name, setCode string) (*cards.Card, bool)
}

// PriceLookup returns the latest known price of a printing.
// *prices.Snapshot implements it.
type PriceLookup interface {
	Latest(name, setCode string) (prices.Observation, bool)
}

// Request describes one assembly.
type Request struct {
	Name         string
	Collection   *collection.Collection
	Format       cards.Format
	Commander    string
	CommanderSet string
	Budget       *decimal.Decimal // optional total deck price limit
	Prices       PriceLookup      // required when Budget is set
}

// StageEvent records one state machine step.
type StageEvent struct {
	State    State         `json:"state"`
	Duration time.Duration `json:"duration"`
	Added    int           `json:"added"`
	Note     string        `json:"note,omitempty"`
}

// Result is the outcome of an assembly. Deck is set only in VALIDATED.
type Result struct {
	State      State        `json:"state"`
	Reason     string       `json:"reason,omitempty"`
	Deck       *Deck        `json:"deck,omitempty"`
	Exclusions []Exclusion  `json:"exclusions,omitempty"`
	Trace      []StageEvent `json:"trace"`
}

// AssemblerConfig configures an Assembler.
type AssemblerConfig struct {
	Options Options
	Metrics *metrics.Engine // optional
	Logger  *slog.Logger
}

// Assembler builds decks from owned cards. It holds no per-request state
// and is safe for concurrent use.
type Assembler struct {
	catalog CatalogLookup
	formats *formats.Registry
	opts    Options
	scorer  *Scorer
	metrics *metrics.Engine
	logger  *slog.Logger
}

// NewAssembler creates an assembler over a catalog snapshot.
func NewAssembler(catalog CatalogLookup, registry *formats.Registry, config AssemblerConfig) (*Assembler, error) {
	opts := config.Options.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid assembly options: %w", err)
	}
	if registry == nil {
		registry = formats.Default()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Assembler{
		catalog: catalog,
		formats: registry,
		opts:    opts,
		scorer:  NewScorer(opts),
		metrics: config.Metrics,
		logger:  logger,
	}, nil
}

// Options returns the effective options.
func (a *Assembler) Options() Options { return a.opts }

// Assemble runs the state machine to completion. A FAILED run returns the
// result together with an *apperr.Error describing the reason; the caller
// may relax constraints and retry. If ctx ends between stages the partial
// work is discarded and ctx.Err() is returned.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	run := &assembly{
		a:          a,
		req:        req,
		basics:     make(map[string]*candidate),
		seeds:      make(map[*cards.Card]bool),
		deferred:   make(map[string]bool),
		swappedOut: make(map[*cards.Card]bool),
		excluded:   make(map[string]bool),
		spent:      decimal.Zero,
	}

	state := StateInit
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stageStart := time.Now()
		run.added, run.note = 0, ""
		next := run.step(state)
		d := time.Since(stageStart)

		run.trace = append(run.trace, StageEvent{State: state, Duration: d, Added: run.added, Note: run.note})
		a.metrics.RecordStage(string(state), d)

		if state == StateValidated || state == StateFailed {
			break
		}
		state = next
	}

	res := &Result{State: state, Exclusions: run.finalExclusions(), Trace: run.trace}

	switch {
	case run.internal != nil:
		a.metrics.RecordAssembly("internal", time.Since(start))
		a.logger.Error("Assembled deck failed validation", "format", req.Format, "error", run.internal)
		res.State = StateFailed
		res.Reason = run.internal.Reason
		return res, run.internal

	case state == StateFailed:
		res.Reason = run.failure.Reason
		a.metrics.RecordAssembly(run.failure.Reason, time.Since(start))
		a.logger.Info("Deck assembly failed",
			"format", req.Format, "commander", req.Commander, "reason", run.failure.Reason, "entity", run.failure.Entity)
		return res, run.failure
	}

	res.Deck = run.result
	a.metrics.RecordAssembly("validated", time.Since(start))
	a.logger.Info("Deck assembled",
		"format", req.Format, "commander", req.Commander,
		"cards", res.Deck.Size(), "lands", res.Deck.Analysis.LandCount,
		"duration", time.Since(start))
	return res, nil
}

type pick struct {
	cand  *candidate
	stage State
	score float64
}

// assembly is the state of a single run.
type assembly struct {
	a   *Assembler
	req Request

	rules     formats.Rules
	identity  *cards.ColorSet
	commander *cards.Card
	cmdPrice  *decimal.Decimal
	deck      *PartialDeck
	poolAvgMV float64

	spells []*candidate          // remaining nonland candidates
	lands  []*candidate          // remaining nonbasic land candidates
	basics map[string]*candidate // keyed by lowercase name
	picks  []pick

	seeds      map[*cards.Card]bool
	deferred   map[string]bool // names skipped for budget
	swappedOut map[*cards.Card]bool
	excluded   map[string]bool
	exclusions []Exclusion
	spent      decimal.Decimal

	added    int
	note     string
	trace    []StageEvent
	failure  *apperr.Error
	internal *apperr.Error
	result   *Deck
}

func (r *assembly) step(state State) State {
	switch state {
	case StateInit:
		return r.init()
	case StateSeeding:
		return r.seed()
	case StateFilling:
		return r.fill()
	case StateCurveBalancing:
		return r.balance()
	case StateLandFill:
		return r.landFill()
	case StateValidated:
		r.validate()
		return StateValidated
	default:
		r.note = r.failure.Reason
		return StateFailed
	}
}

func (r *assembly) fail(err *apperr.Error) State {
	r.failure = err
	return StateFailed
}

func (r *assembly) budgeted() bool { return r.req.Budget != nil }

func (r *assembly) mainSize() int { return r.rules.MainDeckSize() }

// landsFor applies ceil(base + avgMV * scaling) clamped to the format's land
// range.
func (r *assembly) landsFor(avgMV float64) int {
	base, scale := r.a.opts.BaseLands, r.a.opts.LandScaling
	if r.rules.BaseLands > 0 {
		base = r.rules.BaseLands
	}
	if r.rules.LandScaling > 0 {
		scale = r.rules.LandScaling
	}
	n := int(math.Ceil(base + avgMV*scale))
	n = max(r.rules.MinLands, min(n, r.rules.MaxLands))
	return min(n, r.mainSize())
}

func (r *assembly) priceOf(card *cards.Card) *decimal.Decimal {
	if r.req.Prices == nil {
		return nil
	}
	obs, ok := r.req.Prices.Latest(card.Name, card.SetCode)
	if !ok {
		return nil
	}
	p := obs.Price
	return &p
}

// affordable reports whether c fits the remaining budget plus slack.
// Unpriced cards are treated as free.
func (r *assembly) affordable(c *candidate, slack decimal.Decimal) bool {
	if !r.budgeted() || c.price == nil {
		return true
	}
	return r.spent.Add(*c.price).LessThanOrEqual(r.req.Budget.Add(slack))
}

func (r *assembly) exclude(name, reason string, stage State) {
	key := cards.Key(name, "")
	if r.excluded[key] {
		return
	}
	r.excluded[key] = true
	r.exclusions = append(r.exclusions, Exclusion{Card: name, Reason: reason, Stage: stage})
}

func (r *assembly) init() State {
	rules, err := r.a.formats.Lookup(r.req.Format)
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return r.fail(appErr)
		}
		return r.fail(apperr.Input(apperr.ReasonUnknownFormat, string(r.req.Format)))
	}
	r.rules = rules

	if r.req.Collection.Len() == 0 {
		return r.fail(apperr.Input(apperr.ReasonEmptyCollection, ""))
	}
	if r.req.Budget != nil && r.req.Budget.IsNegative() {
		return r.fail(apperr.Input("budget must not be negative", r.req.Budget.String()))
	}

	if name := strings.TrimSpace(r.req.Commander); name != "" || rules.CommanderRequired {
		if name == "" {
			return r.fail(apperr.Input(apperr.ReasonInvalidCommander, "none given"))
		}
		card, ok := r.a.catalog.Lookup(name, r.req.CommanderSet)
		if !ok || !CheckCommander(card, rules) {
			return r.fail(apperr.Input(apperr.ReasonInvalidCommander, name))
		}
		r.commander = card
		r.cmdPrice = r.priceOf(card)
		id := card.ColorIdentity
		r.identity = &id
	}

	r.buildPool()

	available := len(r.spells) + len(r.lands)
	for _, b := range r.basics {
		available += b.owned
	}
	if available < r.mainSize() {
		r.note = fmt.Sprintf("%d legal cards for %d slots", available, r.mainSize())
		return r.fail(apperr.Infeasible(apperr.ReasonInsufficientCards, r.note))
	}

	if r.cmdPrice != nil {
		r.spent = *r.cmdPrice
		if r.budgeted() && r.spent.GreaterThan(*r.req.Budget) {
			return r.fail(apperr.Infeasible(apperr.ReasonBudgetInfeasible, r.commander.Name))
		}
	}

	r.deck = NewPartialDeck(r.commander, r.a.opts.Curve, r.mainSize()-r.landsFor(r.poolAvgMV))
	r.note = fmt.Sprintf("%d spell and %d land candidates", len(r.spells), len(r.lands))
	return StateSeeding
}

// buildPool resolves owned cards against the catalog and filters them for
// the format and commander identity. Each name enters the pool once;
// basic land quantities are summed.
func (r *assembly) buildPool() {
	var cmdKey string
	if r.commander != nil {
		cmdKey = cards.Key(r.commander.Name, "")
	}

	pooled := make(map[string]bool)
	mvSum := 0.0

	for _, oc := range r.req.Collection.Items() {
		card, ok := r.a.catalog.Lookup(oc.Card.Name, oc.Card.SetCode)
		if !ok {
			r.exclude(oc.Card.Name, ExcludeNotInCatalog, StateInit)
			continue
		}
		key := cards.Key(card.Name, "")
		if key == cmdKey {
			r.exclude(card.Name, ExcludeCommander, StateInit)
			continue
		}
		if r.excluded[key] {
			continue
		}
		if b, ok := r.basics[key]; ok {
			b.owned += oc.Quantity
			continue
		}
		if pooled[key] {
			continue
		}

		if d := Check(card, r.rules, r.identity, nil); !d.OK {
			r.exclude(card.Name, d.Reason, StateInit)
			continue
		}

		c := &candidate{card: card, owned: oc.Quantity, price: r.priceOf(card)}
		switch {
		case card.IsBasicLand():
			r.basics[key] = c
		case card.IsLand():
			r.lands = append(r.lands, c)
		default:
			r.spells = append(r.spells, c)
			mvSum += card.ManaValue
		}
		pooled[key] = true
	}

	if r.a.opts.UnlimitedBasics {
		r.addUnlimitedBasics()
	}

	if len(r.spells) > 0 {
		r.poolAvgMV = mvSum / float64(len(r.spells))
	}
}

const unlimited = 1 << 20

// addUnlimitedBasics makes one basic per identity color available in any
// quantity, using the catalog record when there is one.
func (r *assembly) addUnlimitedBasics() {
	colors := cards.AllColors
	if r.identity != nil {
		colors = r.identity.Colors()
	}
	names := make([]string, 0, len(colors)+1)
	for _, c := range colors {
		names = append(names, cards.BasicLandNames[c])
	}
	if len(colors) == 0 {
		names = append(names, cards.Wastes)
	}

	for _, name := range names {
		key := cards.Key(name, "")
		if b, ok := r.basics[key]; ok {
			b.owned = unlimited
			continue
		}
		card, ok := r.a.catalog.Lookup(name, "")
		if !ok {
			card = syntheticBasic(name, r.rules.Legality())
		}
		if d := Check(card, r.rules, r.identity, nil); !d.OK {
			continue
		}
		r.basics[key] = &candidate{card: card, owned: unlimited, price: r.priceOf(card)}
	}
}

func syntheticBasic(name string, legality cards.Format) *cards.Card {
	var identity cards.ColorSet
	for c, n := range cards.BasicLandNames {
		if n == name {
			identity = cards.NewColorSet(c)
		}
	}
	return &cards.Card{
		Name:          name,
		ColorIdentity: identity,
		TypeLine:      "Basic Land — " + name,
		Rarity:        "common",
		Legalities:    map[cards.Format]cards.Legality{legality: cards.Legal},
	}
}

// take moves c from the candidate pools into the deck.
func (r *assembly) take(c *candidate, stage State) {
	r.spells = removeCandidate(r.spells, c)
	r.lands = removeCandidate(r.lands, c)

	r.deck.Add(c.card)
	if c.price != nil {
		r.spent = r.spent.Add(*c.price)
	}
	r.picks = append(r.picks, pick{cand: c, stage: stage, score: c.score.Total})
	r.added++

	if !c.card.IsLand() {
		r.deck.SpellTarget = r.mainSize() - r.landsFor(r.deck.AverageManaValue())
	}
}

func removeCandidate(list []*candidate, c *candidate) []*candidate {
	for i, x := range list {
		if x == c {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// best ranks pool against the current deck and returns the highest ranked
// legal, affordable candidate accepted by filter. Candidates skipped for
// budget are remembered so they can be reported.
func (r *assembly) best(pool []*candidate, filter func(*candidate) bool, slack decimal.Decimal) *candidate {
	r.a.scorer.rank(pool, r.deck, r.budgeted())
	for _, c := range pool {
		if r.swappedOut[c.card] || (filter != nil && !filter(c)) {
			continue
		}
		if !Check(c.card, r.rules, r.identity, r.deck).OK {
			continue
		}
		if !r.affordable(c, slack) {
			r.deferred[cards.Key(c.card.Name, "")] = true
			continue
		}
		return c
	}
	return nil
}

// seed adds the cards with the strongest synergy against the commander
// alone. They anchor the theme and are never swapped out.
func (r *assembly) seed() State {
	r.a.scorer.rank(r.spells, r.deck, r.budgeted())
	ranked := append([]*candidate(nil), r.spells...)

	for _, c := range ranked {
		if r.added >= r.a.opts.SeedCap || r.deck.Spells() >= r.deck.SpellTarget {
			break
		}
		if c.score.Total < r.a.opts.SeedThreshold {
			break
		}
		if !Check(c.card, r.rules, r.identity, r.deck).OK {
			continue
		}
		if !r.affordable(c, decimal.Zero) {
			r.deferred[cards.Key(c.card.Name, "")] = true
			continue
		}
		r.take(c, StateSeeding)
		r.seeds[c.card] = true
	}
	return StateFilling
}

// fill greedily adds the best remaining candidate until the spell target.
// Over-budget candidates are skipped, not dropped, and are reconsidered on
// every step.
func (r *assembly) fill() State {
	for r.deck.Spells() < r.deck.SpellTarget {
		c := r.best(r.spells, nil, decimal.Zero)
		if c == nil {
			r.note = "candidates exhausted"
			break
		}
		r.take(c, StateFilling)
	}
	return StateCurveBalancing
}

// balance swaps the weakest card of an over-filled curve bucket for the
// best candidate of an under-filled one until the curve is within
// tolerance, nothing can improve, or the iteration cap is hit.
func (r *assembly) balance() State {
	curve := r.a.opts.Curve
	swaps := 0

	for i := 0; i < r.a.opts.MaxBalanceIterations; i++ {
		counts := r.deck.BucketCounts()
		if curve.Deviation(counts) <= r.a.opts.CurveTolerance {
			break
		}

		targets := curve.TargetCounts(r.deck.Spells())
		under := make(map[int]bool)
		var over []int
		for b := range counts {
			switch {
			case counts[b] > targets[b]:
				over = append(over, b)
			case counts[b] < targets[b]:
				under[b] = true
			}
		}
		if len(over) == 0 || len(under) == 0 {
			break
		}
		sort.SliceStable(over, func(x, y int) bool {
			return counts[over[x]]-targets[over[x]] > counts[over[y]]-targets[over[y]]
		})

		swapped := false
		for _, b := range over {
			victim := r.weakestIn(b)
			if victim == nil {
				continue
			}
			slack := decimal.Zero
			if victim.cand.price != nil {
				slack = *victim.cand.price
			}
			repl := r.best(r.spells, func(c *candidate) bool {
				return under[curve.Bucket(c.card.ManaValue)]
			}, slack)
			if repl == nil {
				continue
			}
			r.swap(victim, repl)
			swaps++
			swapped = true
			break
		}
		if !swapped {
			break
		}
	}

	r.note = fmt.Sprintf("%d swaps, deviation %.3f", swaps, curve.Deviation(r.deck.BucketCounts()))
	return StateLandFill
}

// weakestIn returns the lowest scoring non-seed spell in bucket.
func (r *assembly) weakestIn(bucket int) *pick {
	var weakest *pick
	var weakestScore float64
	for i := range r.picks {
		p := &r.picks[i]
		card := p.cand.card
		if card.IsLand() || r.seeds[card] || r.a.opts.Curve.Bucket(card.ManaValue) != bucket {
			continue
		}
		s := r.a.scorer.Score(card, r.deck).Total
		if weakest == nil || s < weakestScore || (s == weakestScore && weaker(card, weakest.cand.card)) {
			weakest, weakestScore = p, s
		}
	}
	return weakest
}

// weaker breaks score ties between swap victims: higher mana value first,
// then the later name.
func weaker(a, b *cards.Card) bool {
	if a.ManaValue != b.ManaValue {
		return a.ManaValue > b.ManaValue
	}
	return strings.ToLower(a.Name) > strings.ToLower(b.Name)
}

func (r *assembly) swap(victim *pick, repl *candidate) {
	out := victim.cand
	r.deck.Remove(out.card)
	if out.price != nil {
		r.spent = r.spent.Sub(*out.price)
	}
	for i := range r.picks {
		if r.picks[i].cand == out {
			r.picks = append(r.picks[:i], r.picks[i+1:]...)
			break
		}
	}
	r.swappedOut[out.card] = true
	r.spells = append(r.spells, out)
	r.take(repl, StateCurveBalancing)
}

// landFill sizes the mana base with the land formula, back-fills spells
// when the formula leaves slots open, then adds owned nonbasic lands and
// splits the rest across basics by color pips.
func (r *assembly) landFill() State {
	remaining := r.mainSize() - r.deck.Size()
	formula := r.landsFor(r.deck.AverageManaValue())
	landCount := min(formula, remaining)

	for extra := remaining - landCount; extra > 0; extra-- {
		c := r.best(r.spells, nil, decimal.Zero)
		if c == nil {
			break
		}
		r.take(c, StateLandFill)
	}

	landCount = r.mainSize() - r.deck.Size()
	if landCount > r.rules.MaxLands {
		return r.fail(r.shortfall(fmt.Sprintf("%d land slots, at most %d allowed", landCount, r.rules.MaxLands)))
	}

	nonbasic := 0
	for nonbasic < landCount {
		c := r.best(r.lands, nil, decimal.Zero)
		if c == nil {
			break
		}
		r.take(c, StateLandFill)
		nonbasic++
	}

	alloc, ok := r.allocateBasics(landCount - nonbasic)
	if !ok {
		return r.fail(r.shortfall(fmt.Sprintf("not enough basic lands for %d slots", landCount-nonbasic)))
	}
	for _, a := range alloc {
		for i := 0; i < a.count; i++ {
			r.take(a.cand, StateLandFill)
		}
	}

	if r.budgeted() && r.spent.GreaterThan(*r.req.Budget) {
		return r.fail(apperr.Infeasible(apperr.ReasonBudgetInfeasible, "lands exceed remaining budget"))
	}

	r.note = fmt.Sprintf("%d lands (formula %d), %d nonbasic", landCount, formula, nonbasic)
	return StateValidated
}

// shortfall picks the failure reason when the deck cannot be completed.
func (r *assembly) shortfall(detail string) *apperr.Error {
	if len(r.deferred) > 0 {
		return apperr.Infeasible(apperr.ReasonBudgetInfeasible, detail)
	}
	return apperr.Infeasible(apperr.ReasonInsufficientCards, detail)
}

type basicAlloc struct {
	cand  *candidate
	count int
}

// allocateBasics splits n basic lands across colors in proportion to the
// colored pips of the chosen nonland cards (commander included), flooring
// each share and giving the remainder to the most frequent color. Colors
// without enough owned basics pass their shortfall to the next most
// frequent color.
func (r *assembly) allocateBasics(n int) ([]basicAlloc, bool) {
	if n <= 0 {
		return nil, true
	}

	pips := make(map[cards.Color]int)
	if r.commander != nil {
		for c, k := range cards.ColorPips(r.commander.ManaCost) {
			pips[c] += k
		}
	}
	for _, card := range r.deck.Cards() {
		if card.IsLand() {
			continue
		}
		for c, k := range cards.ColorPips(card.ManaCost) {
			pips[c] += k
		}
	}

	colors := cards.AllColors
	if r.identity != nil {
		colors = r.identity.Colors()
	}

	// Owned basics grouped by the single color they produce, name ordered.
	byColor := make(map[cards.Color][]*candidate)
	var colorless []*candidate
	for _, b := range sortedBasics(r.basics) {
		cs := b.card.ColorIdentity.Colors()
		if len(cs) == 0 {
			colorless = append(colorless, b)
			continue
		}
		byColor[cs[0]] = append(byColor[cs[0]], b)
	}
	avail := func(list []*candidate) int {
		total := 0
		for _, b := range list {
			total += b.owned
		}
		return total
	}

	// Colors by pip frequency, WUBRG breaking ties.
	order := append([]cards.Color(nil), colors...)
	sort.SliceStable(order, func(i, j int) bool { return pips[order[i]] > pips[order[j]] })

	share := make(map[cards.Color]int)
	totalPips := 0
	for _, c := range colors {
		totalPips += pips[c]
	}
	assigned := 0
	if totalPips > 0 {
		for _, c := range colors {
			share[c] = n * pips[c] / totalPips
			assigned += share[c]
		}
		share[order[0]] += n - assigned
	} else if len(colors) > 0 {
		for i, c := range colors {
			share[c] = n / len(colors)
			if i < n%len(colors) {
				share[c]++
			}
		}
	}

	short := 0
	if len(colors) == 0 {
		short = n
	}
	for _, c := range colors {
		if a := avail(byColor[c]); share[c] > a {
			short += share[c] - a
			share[c] = a
		}
	}
	for _, c := range order {
		if short == 0 {
			break
		}
		give := min(avail(byColor[c])-share[c], short)
		share[c] += give
		short -= give
	}
	wastes := min(avail(colorless), short)
	short -= wastes
	if short > 0 {
		return nil, false
	}

	var out []basicAlloc
	spread := func(list []*candidate, count int) {
		for _, b := range list {
			if count == 0 {
				return
			}
			take := min(b.owned, count)
			out = append(out, basicAlloc{cand: b, count: take})
			count -= take
		}
	}
	for _, c := range colors {
		spread(byColor[c], share[c])
	}
	spread(colorless, wastes)
	return out, true
}

func sortedBasics(m map[string]*candidate) []*candidate {
	out := make([]*candidate, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].card.Name < out[j].card.Name })
	return out
}

// validate builds the final deck and checks every construction rule. A
// violation here is a bug in an earlier stage, not bad input.
func (r *assembly) validate() {
	deck := &Deck{
		Name:           r.req.Name,
		Format:         r.rules.Name,
		Commander:      r.commander,
		CommanderPrice: r.cmdPrice,
	}
	if deck.Name == "" && r.commander != nil {
		deck.Name = fmt.Sprintf("%s (%s)", r.commander.Name, r.rules.Name)
	}

	index := make(map[*cards.Card]int)
	for _, p := range r.picks {
		if i, ok := index[p.cand.card]; ok {
			deck.Cards[i].Quantity++
			continue
		}
		index[p.cand.card] = len(deck.Cards)
		deck.Cards = append(deck.Cards, DeckCard{
			Card:     p.cand.card,
			Quantity: 1,
			Score:    p.score,
			Stage:    p.stage,
			Price:    p.cand.price,
		})
	}
	sortDeckCards(deck.Cards)
	deck.Analysis = deck.Analyze(r.a.opts.Curve)

	if err := Validate(deck, r.rules); err != nil {
		r.internal = apperr.Internal("assembled deck failed validation: %v", err)
		return
	}
	r.note = fmt.Sprintf("%d cards", deck.Size())
	r.result = deck
}

// sortDeckCards orders spells by mana value then name, followed by
// nonbasic and then basic lands by name.
func sortDeckCards(list []DeckCard) {
	rank := func(c *cards.Card) int {
		switch {
		case c.IsBasicLand():
			return 2
		case c.IsLand():
			return 1
		}
		return 0
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].Card, list[j].Card
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra < rb
		}
		if a.ManaValue != b.ManaValue {
			return a.ManaValue < b.ManaValue
		}
		return a.Name < b.Name
	})
}

// finalExclusions returns pool exclusions plus budget deferrals that never
// made the deck, ordered by card name.
func (r *assembly) finalExclusions() []Exclusion {
	out := append([]Exclusion(nil), r.exclusions...)

	inDeck := make(map[string]bool)
	for _, p := range r.picks {
		inDeck[cards.Key(p.cand.card.Name, "")] = true
	}
	var names []string
	for key := range r.deferred {
		if !inDeck[key] {
			names = append(names, key)
		}
	}
	sort.Strings(names)
	for _, key := range names {
		name := key
		for _, c := range append(append([]*candidate(nil), r.spells...), r.lands...) {
			if cards.Key(c.card.Name, "") == key {
				name = c.card.Name
				break
			}
		}
		out = append(out, Exclusion{Card: name, Reason: ExcludeOverBudget, Stage: StateFilling})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Card) < strings.ToLower(out[j].Card)
	})
	return out
}
