package storage

import (
	"context"
	"fmt"

	"github.com/ramonehamilton/deckforge/internal/apperr"
	"github.com/ramonehamilton/deckforge/internal/collection"
	"github.com/ramonehamilton/deckforge/internal/mtga/deckbuilder"
	"github.com/ramonehamilton/deckforge/internal/storage/repository"
	"github.com/ramonehamilton/deckforge/internal/stats"
)

// Service provides the persistence operations used by the engines.
type Service struct {
	db         *DB
	prices     repository.PriceRepository
	collection repository.CollectionRepository
	decks      repository.DeckRepository
	stats      repository.StatsRepository
}

// NewService creates a new storage service.
func NewService(db *DB) *Service {
	return &Service{
		db:         db,
		prices:     repository.NewPriceRepository(db.Conn()),
		collection: repository.NewCollectionRepository(db.Conn()),
		decks:      repository.NewDeckRepository(db.Conn()),
		stats:      repository.NewStatsRepository(db.Conn()),
	}
}

// Prices returns the price store and cache backing.
func (s *Service) Prices() repository.PriceRepository { return s.prices }

// Stats returns the persistent statistics provider.
func (s *Service) Stats() repository.StatsRepository { return s.stats }

// Close closes the underlying database.
func (s *Service) Close() error { return s.db.Close() }

// LoadCollection reads the stored collection.
func (s *Service) LoadCollection(ctx context.Context) (*collection.Collection, error) {
	return s.collection.Load(ctx)
}

// ImportCollection stores imported cards. With replace the stored
// collection is discarded first; otherwise the import is merged into it.
// The merged result is returned.
func (s *Service) ImportCollection(ctx context.Context, imported *collection.Collection, replace bool) (*collection.Collection, error) {
	var result *collection.Collection
	err := s.db.WithTransaction(ctx, func(tx *Tx) error {
		result = imported
		if !replace {
			existing, err := tx.Collection.Load(ctx)
			if err != nil {
				return err
			}
			result = existing.Merge(imported)
		}
		return tx.Collection.Replace(ctx, result)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import collection: %w", err)
	}
	return result, nil
}

// SaveDeck stores a deck and its card list atomically.
func (s *Service) SaveDeck(ctx context.Context, deck *deckbuilder.Deck) (string, error) {
	var id string
	err := s.db.WithTransaction(ctx, func(tx *Tx) error {
		var err error
		id, err = tx.Decks.Save(ctx, deck)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetDeck loads a saved deck. A missing deck is DataUnavailable.
func (s *Service) GetDeck(ctx context.Context, id string) (*deckbuilder.Deck, error) {
	deck, err := s.decks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, apperr.Unavailable(apperr.ReasonNotFound, id)
	}
	return deck, nil
}

// ListDecks lists the saved decks, newest first.
func (s *Service) ListDecks(ctx context.Context) ([]*repository.DeckSummary, error) {
	return s.decks.List(ctx)
}

// DeleteDeck removes a deck and its games.
func (s *Service) DeleteDeck(ctx context.Context, id string) error {
	return s.decks.Delete(ctx, id)
}

// RecordGame stores a game result for a saved deck.
func (s *Service) RecordGame(ctx context.Context, game stats.Game) error {
	if _, err := stats.ParseOutcome(string(game.Outcome)); err != nil {
		return apperr.Input(err.Error(), game.DeckID)
	}
	deck, err := s.decks.GetByID(ctx, game.DeckID)
	if err != nil {
		return err
	}
	if deck == nil {
		return apperr.Input("unknown deck", game.DeckID)
	}
	return s.stats.RecordGame(ctx, game)
}

// RecomputeInclusionRates derives card inclusion rates from saved decks.
func (s *Service) RecomputeInclusionRates(ctx context.Context) (int, error) {
	var n int
	err := s.db.WithTransaction(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.Stats.RecomputeInclusionRates(ctx)
		return err
	})
	return n, err
}
