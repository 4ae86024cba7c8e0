package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/stats"
)

// StatsRepository stores game results and card inclusion rates. It is the
// persistent stats.Provider.
type StatsRepository interface {
	stats.Provider

	// RecordGame stores one game of a saved deck.
	RecordGame(ctx context.Context, game stats.Game) error

	// Games returns the games of a deck, oldest first.
	Games(ctx context.Context, deckID string) ([]stats.Game, error)

	// SetInclusionRate stores an externally sourced inclusion rate.
	SetInclusionRate(ctx context.Context, cardName string, rate float64) error

	// RecomputeInclusionRates replaces every inclusion rate with the share
	// of saved decks that play each card. It returns the number of cards
	// rated.
	RecomputeInclusionRates(ctx context.Context) (int, error)
}

// statsRepository is the concrete implementation of StatsRepository.
type statsRepository struct {
	db  DBTX
	now func() time.Time
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(db DBTX) StatsRepository {
	return &statsRepository{db: db, now: time.Now}
}

// RecordGame stores one game.
func (r *statsRepository) RecordGame(ctx context.Context, game stats.Game) error {
	if strings.TrimSpace(game.DeckID) == "" {
		return fmt.Errorf("game has no deck id")
	}
	if _, err := stats.ParseOutcome(string(game.Outcome)); err != nil {
		return err
	}
	playedAt := game.PlayedAt
	if playedAt.IsZero() {
		playedAt = r.now()
	}

	query := `INSERT INTO deck_games (deck_id, outcome, played_at) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, game.DeckID, string(game.Outcome), toUnix(playedAt)); err != nil {
		return fmt.Errorf("failed to record game: %w", err)
	}
	return nil
}

// Games returns the games of a deck, oldest first.
func (r *statsRepository) Games(ctx context.Context, deckID string) ([]stats.Game, error) {
	query := `
		SELECT outcome, played_at
		FROM deck_games
		WHERE deck_id = ?
		ORDER BY played_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var games []stats.Game
	for rows.Next() {
		var (
			outcome  string
			playedAt int64
		)
		if err := rows.Scan(&outcome, &playedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, stats.Game{
			DeckID:   deckID,
			Outcome:  stats.Outcome(outcome),
			PlayedAt: fromUnix(playedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate games: %w", err)
	}
	return games, nil
}

// DeckRecord summarizes the games of a deck. found is false when the deck
// has no recorded games.
func (r *statsRepository) DeckRecord(ctx context.Context, deckID string) (stats.Record, bool, error) {
	games, err := r.Games(ctx, deckID)
	if err != nil {
		return stats.Record{}, false, err
	}
	if len(games) == 0 {
		return stats.Record{}, false, nil
	}
	return stats.Summarize(games), true, nil
}

// InclusionRate returns the stored inclusion rate of a card.
func (r *statsRepository) InclusionRate(ctx context.Context, cardName string) (float64, bool, error) {
	var rate float64
	err := r.db.QueryRowContext(ctx, `SELECT rate FROM card_inclusion WHERE name_key = ?`, cards.Key(cardName, "")).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get inclusion rate: %w", err)
	}
	return rate, true, nil
}

// SetInclusionRate stores an inclusion rate in [0, 1].
func (r *statsRepository) SetInclusionRate(ctx context.Context, cardName string, rate float64) error {
	if strings.TrimSpace(cardName) == "" {
		return fmt.Errorf("inclusion rate has no card name")
	}
	if rate < 0 || rate > 1 {
		return fmt.Errorf("inclusion rate for %s must be between 0 and 1, got %g", cardName, rate)
	}

	query := `
		INSERT INTO card_inclusion (name_key, card_name, rate, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name_key) DO UPDATE SET
			card_name = excluded.card_name,
			rate = excluded.rate,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, cards.Key(cardName, ""), strings.TrimSpace(cardName), rate, toUnix(r.now())); err != nil {
		return fmt.Errorf("failed to set inclusion rate: %w", err)
	}
	return nil
}

// RecomputeInclusionRates derives inclusion rates from the saved decks.
func (r *statsRepository) RecomputeInclusionRates(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decks`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count decks: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM card_inclusion`); err != nil {
		return 0, fmt.Errorf("failed to clear inclusion rates: %w", err)
	}
	if total == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO card_inclusion (name_key, card_name, rate, updated_at)
		SELECT name_key, MIN(card_name), CAST(COUNT(DISTINCT deck_id) AS REAL) / ?, ?
		FROM deck_cards
		GROUP BY name_key
	`
	res, err := r.db.ExecContext(ctx, query, total, toUnix(r.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to recompute inclusion rates: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count inclusion rates: %w", err)
	}
	return int(n), nil
}
