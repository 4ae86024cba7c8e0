// Package stats supplies the play statistics the analytics engine treats as
// opaque inputs: per-card inclusion rates and per-deck game records.
package stats

import (
	"context"
	"strings"
	"sync"
)

// Provider answers statistics queries. Implementations must be safe for
// concurrent use.
type Provider interface {
	// InclusionRate returns the share (0-1) of tracked decks playing the
	// card. found is false when the card has never been observed.
	InclusionRate(ctx context.Context, cardName string) (rate float64, found bool, err error)

	// DeckRecord returns the game record of a deck.
	DeckRecord(ctx context.Context, deckID string) (Record, bool, error)
}

// Static is an in-memory Provider for fixed data sets and tests.
type Static struct {
	mu        sync.RWMutex
	inclusion map[string]float64
	records   map[string]Record
}

// NewStatic returns an empty Static provider.
func NewStatic() *Static {
	return &Static{
		inclusion: make(map[string]float64),
		records:   make(map[string]Record),
	}
}

// SetInclusionRate records the inclusion rate of a card.
func (s *Static) SetInclusionRate(cardName string, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inclusion[normalize(cardName)] = rate
}

// SetRecord records the game record of a deck.
func (s *Static) SetRecord(deckID string, r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[deckID] = r
}

// InclusionRate implements Provider.
func (s *Static) InclusionRate(_ context.Context, cardName string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rate, ok := s.inclusion[normalize(cardName)]
	return rate, ok, nil
}

// DeckRecord implements Provider.
func (s *Static) DeckRecord(_ context.Context, deckID string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[deckID]
	return r, ok, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
