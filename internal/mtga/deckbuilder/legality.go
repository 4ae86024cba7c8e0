package deckbuilder

import (
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/mtga/formats"
)

// Exclusion reasons recorded when a card is kept out of a deck.
const (
	ExcludeNotLegal     = "not legal in format"
	ExcludeBanned       = "banned in format"
	ExcludeIdentity     = "outside commander color identity"
	ExcludeDuplicate    = "already in deck"
	ExcludeNotInCatalog = "not in catalog"
	ExcludeCommander    = "is the commander"
	ExcludeOverBudget   = "over budget"
)

// Decision is the legality verdict for one card.
type Decision struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Exclusion records why a pool card is not in the deck. Exclusions are
// metadata and never stop assembly.
type Exclusion struct {
	Card   string `json:"card"`
	Reason string `json:"reason"`
	Stage  State  `json:"stage"`
}

var allowed = Decision{OK: true}

// Check decides whether card may join deck under rules. identity limits
// the card's color identity when non-nil. deck may be nil to skip the
// singleton check. Check has no side effects.
func Check(card *cards.Card, rules formats.Rules, identity *cards.ColorSet, deck *PartialDeck) Decision {
	switch card.LegalityIn(rules.Legality()) {
	case cards.Legal:
	case cards.Banned:
		return Decision{Reason: ExcludeBanned}
	default:
		return Decision{Reason: ExcludeNotLegal}
	}

	if identity != nil && !card.ColorIdentity.SubsetOf(*identity) {
		return Decision{Reason: ExcludeIdentity}
	}

	if rules.Singleton && deck != nil && !card.SingletonExempt() && deck.Contains(card.Name) > 0 {
		return Decision{Reason: ExcludeDuplicate}
	}

	return allowed
}

// CheckCommander reports whether card may lead a deck in the format. The
// commander slot accepts legal and restricted (commander-only) cards.
func CheckCommander(card *cards.Card, rules formats.Rules) bool {
	switch card.LegalityIn(rules.Legality()) {
	case cards.Legal, cards.Restricted:
	default:
		return false
	}
	if rules.CommanderAnyCreature && card.IsCreature() {
		return true
	}
	return card.CanBeCommander()
}
