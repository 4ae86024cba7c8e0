package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/collection"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
)

// CollectionRepository persists the owned collection.
type CollectionRepository interface {
	// Load reads the whole collection. An empty table yields an empty
	// collection.
	Load(ctx context.Context) (*collection.Collection, error)

	// Replace deletes the stored collection and writes c. Run it inside a
	// transaction to make the swap atomic.
	Replace(ctx context.Context, c *collection.Collection) error

	// Clear removes every owned card.
	Clear(ctx context.Context) error
}

// collectionRepository is the concrete implementation of CollectionRepository.
type collectionRepository struct {
	db  DBTX
	now func() time.Time
}

// NewCollectionRepository creates a new collection repository.
func NewCollectionRepository(db DBTX) CollectionRepository {
	return &collectionRepository{db: db, now: time.Now}
}

// Load reads the whole collection.
func (r *collectionRepository) Load(ctx context.Context) (*collection.Collection, error) {
	query := `
		SELECT card_name, set_code, quantity, purchase_price, purchase_date
		FROM collection_cards
		ORDER BY name_key, set_key
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []collection.Record
	for rows.Next() {
		var (
			rec          collection.Record
			price        decimal.NullDecimal
			purchaseDate sql.NullInt64
		)
		if err := rows.Scan(&rec.Name, &rec.SetCode, &rec.Quantity, &price, &purchaseDate); err != nil {
			return nil, fmt.Errorf("failed to scan collection card: %w", err)
		}
		if price.Valid {
			rec.PurchasePrice = &price.Decimal
		}
		if purchaseDate.Valid {
			d := fromUnix(purchaseDate.Int64)
			rec.PurchaseDate = &d
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collection: %w", err)
	}

	c, err := collection.FromRecords(records)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild collection: %w", err)
	}
	return c, nil
}

// Replace deletes the stored collection and writes c.
func (r *collectionRepository) Replace(ctx context.Context, c *collection.Collection) error {
	if err := r.Clear(ctx); err != nil {
		return err
	}

	query := `
		INSERT INTO collection_cards (
			name_key, set_key, card_name, set_code, quantity,
			purchase_price, purchase_date, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := toUnix(r.now())
	for _, oc := range c.Items() {
		var price decimal.NullDecimal
		if oc.PurchasePrice != nil {
			price = decimal.NewNullDecimal(*oc.PurchasePrice)
		}
		var purchaseDate sql.NullInt64
		if oc.PurchaseDate != nil {
			purchaseDate = sql.NullInt64{Int64: toUnix(*oc.PurchaseDate), Valid: true}
		}

		_, err := r.db.ExecContext(ctx, query,
			cards.Key(oc.Card.Name, ""),
			cards.Key(oc.Card.SetCode, ""),
			oc.Card.Name,
			oc.Card.SetCode,
			oc.Quantity,
			price,
			purchaseDate,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to store %s: %w", oc.Card.Name, err)
		}
	}
	return nil
}

// Clear removes every owned card.
func (r *collectionRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM collection_cards`); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	return nil
}
