package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/prices"
)

// PriceRepository persists the price history and the price cache.
type PriceRepository interface {
	prices.Store
	prices.CacheBacking

	// Count returns the number of stored observations.
	Count(ctx context.Context) (int, error)

	// PruneBefore deletes observations older than t and returns how many
	// were removed.
	PruneBefore(ctx context.Context, t time.Time) (int64, error)
}

// priceRepository is the concrete implementation of PriceRepository.
type priceRepository struct {
	db DBTX
}

// NewPriceRepository creates a new price repository.
func NewPriceRepository(db DBTX) PriceRepository {
	return &priceRepository{db: db}
}

// Append records observations. Rows identical in series, timestamp and
// price are ignored.
func (r *priceRepository) Append(ctx context.Context, obs ...prices.Observation) error {
	for _, o := range obs {
		if err := o.Validate(); err != nil {
			return err
		}
	}

	query := `
		INSERT OR IGNORE INTO price_observations (
			name_key, set_key, source, card_name, set_code, price, observed_at, day
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, o := range obs {
		key := o.Series()
		_, err := r.db.ExecContext(ctx, query,
			key.CardName,
			key.SetCode,
			key.Source,
			o.CardName,
			o.SetCode,
			o.Price.String(),
			toUnix(o.ObservedAt),
			prices.DayKey(o.ObservedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to append price for %s: %w", o.CardName, err)
		}
	}
	return nil
}

// History returns the last observation of each day between from and to.
// A zero bound is open.
func (r *priceRepository) History(ctx context.Context, key prices.SeriesKey, from, to time.Time) ([]prices.Observation, error) {
	fromDay, toDay := "0000-00-00", "9999-99-99"
	if !from.IsZero() {
		fromDay = prices.DayKey(from)
	}
	if !to.IsZero() {
		toDay = prices.DayKey(to)
	}

	query := `
		SELECT card_name, set_code, source, price, observed_at
		FROM price_observations
		WHERE name_key = ? AND set_key = ? AND source = ? AND day BETWEEN ? AND ?
		ORDER BY observed_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, key.CardName, key.SetCode, key.Source, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var daily []prices.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		if n := len(daily); n > 0 && daily[n-1].Day().Equal(o.Day()) {
			daily[n-1] = o
			continue
		}
		daily = append(daily, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price history: %w", err)
	}
	return daily, nil
}

// LatestOnOrBefore returns the latest observation at or before t.
func (r *priceRepository) LatestOnOrBefore(ctx context.Context, key prices.SeriesKey, t time.Time) (prices.Observation, bool, error) {
	query := `
		SELECT card_name, set_code, source, price, observed_at
		FROM price_observations
		WHERE name_key = ? AND set_key = ? AND source = ? AND observed_at <= ?
		ORDER BY observed_at DESC, id DESC
		LIMIT 1
	`
	o, err := scanObservation(r.db.QueryRowContext(ctx, query, key.CardName, key.SetCode, key.Source, toUnix(t)))
	if errors.Is(err, sql.ErrNoRows) {
		return prices.Observation{}, false, nil
	}
	if err != nil {
		return prices.Observation{}, false, err
	}
	return o, true, nil
}

// Snapshot loads every observation from source. An empty source loads all
// sources.
func (r *priceRepository) Snapshot(ctx context.Context, source string) (*prices.Snapshot, error) {
	want := prices.NewSeriesKey("", "", source).Source
	query := `
		SELECT card_name, set_code, source, price, observed_at
		FROM price_observations
		WHERE ? = '' OR source = ?
		ORDER BY observed_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, want, want)
	if err != nil {
		return nil, fmt.Errorf("failed to query price snapshot: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var all []prices.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price snapshot: %w", err)
	}
	return prices.NewSnapshot(all), nil
}

// GetCached returns the persisted cache entry of a series.
func (r *priceRepository) GetCached(ctx context.Context, key prices.SeriesKey) (prices.Observation, time.Time, bool, error) {
	query := `
		SELECT card_name, set_code, source, price, observed_at, updated_at
		FROM price_cache
		WHERE name_key = ? AND set_key = ? AND source = ?
	`
	var (
		o          prices.Observation
		observedAt int64
		updatedAt  int64
	)
	err := r.db.QueryRowContext(ctx, query, key.CardName, key.SetCode, key.Source).Scan(
		&o.CardName,
		&o.SetCode,
		&o.Source,
		&o.Price,
		&observedAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return prices.Observation{}, time.Time{}, false, nil
	}
	if err != nil {
		return prices.Observation{}, time.Time{}, false, fmt.Errorf("failed to get cached price: %w", err)
	}
	o.ObservedAt = fromUnix(observedAt)
	return o, fromUnix(updatedAt), true, nil
}

// PutCached upserts the cache entry of the observation's series.
func (r *priceRepository) PutCached(ctx context.Context, o prices.Observation, updatedAt time.Time) error {
	if err := o.Validate(); err != nil {
		return err
	}

	key := o.Series()
	query := `
		INSERT INTO price_cache (
			name_key, set_key, source, card_name, set_code, price, observed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name_key, set_key, source) DO UPDATE SET
			card_name = excluded.card_name,
			set_code = excluded.set_code,
			price = excluded.price,
			observed_at = excluded.observed_at,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		key.CardName,
		key.SetCode,
		key.Source,
		o.CardName,
		o.SetCode,
		o.Price.String(),
		toUnix(o.ObservedAt),
		toUnix(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to cache price for %s: %w", o.CardName, err)
	}
	return nil
}

// Count returns the number of stored observations.
func (r *priceRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM price_observations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count price observations: %w", err)
	}
	return n, nil
}

// PruneBefore deletes observations older than t.
func (r *priceRepository) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM price_observations WHERE observed_at < ?`, toUnix(t))
	if err != nil {
		return 0, fmt.Errorf("failed to prune price observations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned observations: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (prices.Observation, error) {
	var (
		o          prices.Observation
		price      decimal.Decimal
		observedAt int64
	)
	if err := row.Scan(&o.CardName, &o.SetCode, &o.Source, &price, &observedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return o, err
		}
		return o, fmt.Errorf("failed to scan price observation: %w", err)
	}
	o.Price = price
	o.ObservedAt = fromUnix(observedAt)
	return o, nil
}
