package storage

import (
	"context"
	"fmt"

	"github.com/ramonehamilton/deckforge/internal/storage/repository"
)

// Tx exposes the repositories bound to one transaction.
type Tx struct {
	Prices     repository.PriceRepository
	Collection repository.CollectionRepository
	Decks      repository.DeckRepository
	Stats      repository.StatsRepository
}

// TxFunc is a function that runs within a transaction.
type TxFunc func(tx *Tx) error

// WithTransaction runs fn with repositories bound to a new transaction. It
// commits when fn returns nil and rolls back on error or panic.
func (db *DB) WithTransaction(ctx context.Context, fn TxFunc) (err error) {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		} else if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil {
				err = fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
			}
		} else {
			err = sqlTx.Commit()
			if err != nil {
				err = fmt.Errorf("failed to commit transaction: %w", err)
			}
		}
	}()

	err = fn(&Tx{
		Prices:     repository.NewPriceRepository(sqlTx),
		Collection: repository.NewCollectionRepository(sqlTx),
		Decks:      repository.NewDeckRepository(sqlTx),
		Stats:      repository.NewStatsRepository(sqlTx),
	})
	return err
}
