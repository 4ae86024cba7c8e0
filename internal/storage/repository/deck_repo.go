package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/mtga/deckbuilder"
)

// DeckSummary is the listing view of a saved deck.
type DeckSummary struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Format    cards.Format `json:"format"`
	Commander string       `json:"commander,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// DeckRepository handles database operations for decks.
type DeckRepository interface {
	// Save inserts or replaces a deck. A deck without an ID gets a new
	// UUID, which is written back to deck.ID and returned.
	Save(ctx context.Context, deck *deckbuilder.Deck) (string, error)

	// GetByID retrieves a deck by its ID. It returns nil when no deck
	// has that ID.
	GetByID(ctx context.Context, id string) (*deckbuilder.Deck, error)

	// List retrieves all decks, newest first.
	List(ctx context.Context) ([]*DeckSummary, error)

	// Delete deletes a deck and its recorded games.
	Delete(ctx context.Context, id string) error
}

// deckRepository is the concrete implementation of DeckRepository.
type deckRepository struct {
	db  DBTX
	now func() time.Time
}

// NewDeckRepository creates a new deck repository.
func NewDeckRepository(db DBTX) DeckRepository {
	return &deckRepository{db: db, now: time.Now}
}

// Save inserts or replaces a deck and its card list.
func (r *deckRepository) Save(ctx context.Context, deck *deckbuilder.Deck) (string, error) {
	if deck == nil {
		return "", fmt.Errorf("deck cannot be nil")
	}
	if deck.ID == "" {
		deck.ID = uuid.NewString()
	}

	payload, err := json.Marshal(deck)
	if err != nil {
		return "", fmt.Errorf("failed to encode deck: %w", err)
	}

	commander := ""
	if deck.Commander != nil {
		commander = deck.Commander.Name
	}
	now := toUnix(r.now())

	query := `
		INSERT INTO decks (id, name, format, commander, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			format = excluded.format,
			commander = excluded.commander,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, deck.ID, deck.Name, string(deck.Format), commander, string(payload), now, now); err != nil {
		return "", fmt.Errorf("failed to save deck: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM deck_cards WHERE deck_id = ?`, deck.ID); err != nil {
		return "", fmt.Errorf("failed to clear deck cards: %w", err)
	}

	insert := `
		INSERT INTO deck_cards (deck_id, name_key, card_name, quantity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(deck_id, name_key) DO UPDATE SET quantity = quantity + excluded.quantity
	`
	entries := make([]deckbuilder.DeckCard, 0, len(deck.Cards)+1)
	if deck.Commander != nil {
		entries = append(entries, deckbuilder.DeckCard{Card: deck.Commander, Quantity: 1})
	}
	entries = append(entries, deck.Cards...)
	for _, dc := range entries {
		if dc.Card == nil || dc.Quantity < 1 {
			continue
		}
		if _, err := r.db.ExecContext(ctx, insert, deck.ID, cards.Key(dc.Card.Name, ""), dc.Card.Name, dc.Quantity); err != nil {
			return "", fmt.Errorf("failed to save deck card %s: %w", dc.Card.Name, err)
		}
	}

	return deck.ID, nil
}

// GetByID retrieves a deck by its ID.
func (r *deckRepository) GetByID(ctx context.Context, id string) (*deckbuilder.Deck, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM decks WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck: %w", err)
	}

	var deck deckbuilder.Deck
	if err := json.Unmarshal([]byte(payload), &deck); err != nil {
		return nil, fmt.Errorf("failed to decode deck %s: %w", id, err)
	}
	deck.ID = id
	return &deck, nil
}

// List retrieves all decks, newest first.
func (r *deckRepository) List(ctx context.Context) ([]*DeckSummary, error) {
	query := `
		SELECT id, name, format, commander, created_at, updated_at
		FROM decks
		ORDER BY updated_at DESC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decks []*DeckSummary
	for rows.Next() {
		var (
			s                    DeckSummary
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Format, &s.Commander, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deck: %w", err)
		}
		s.CreatedAt = fromUnix(createdAt)
		s.UpdatedAt = fromUnix(updatedAt)
		decks = append(decks, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decks: %w", err)
	}
	return decks, nil
}

// Delete deletes a deck by its ID.
func (r *deckRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete deck: %w", err)
	}
	return nil
}
