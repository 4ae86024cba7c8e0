package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/prices"
	"github.com/ramonehamilton/deckforge/internal/storage"
	"github.com/ramonehamilton/deckforge/internal/storage/repository"
)

func day(d, hour int) time.Time {
	return time.Date(2024, 1, d, hour, 0, 0, 0, time.UTC)
}

func obs(name, price string, at time.Time) prices.Observation {
	return prices.Observation{
		CardName:   name,
		SetCode:    "C21",
		Source:     "scryfall",
		Price:      decimal.RequireFromString(price),
		ObservedAt: at,
	}
}

func setupPriceRepo(t *testing.T) repository.PriceRepository {
	t.Helper()
	return repository.NewPriceRepository(storage.NewTestDB(t).Conn())
}

func TestPriceRepository_AppendAndHistory(t *testing.T) {
	repo := setupPriceRepo(t)
	ctx := context.Background()

	err := repo.Append(ctx,
		obs("Sol Ring", "1.50", day(1, 9)),
		obs("Sol Ring", "1.75", day(1, 18)), // supersedes the morning price
		obs("Sol Ring", "2.00", day(3, 9)),
		obs("Sol Ring", "2.00", day(3, 9)), // exact duplicate
	)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 stored observations, got %d", n)
	}

	key := prices.NewSeriesKey("sol ring", "c21", "Scryfall")
	history, err := repo.History(ctx, key, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 daily points, got %d", len(history))
	}
	if !history[0].Price.Equal(decimal.RequireFromString("1.75")) {
		t.Errorf("expected day 1 closing price 1.75, got %s", history[0].Price)
	}
	if history[0].CardName != "Sol Ring" {
		t.Errorf("expected original card name, got %q", history[0].CardName)
	}

	clipped, err := repo.History(ctx, key, day(2, 0), day(5, 0))
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(clipped) != 1 || !clipped[0].ObservedAt.Equal(day(3, 9)) {
		t.Errorf("expected only the day 3 point, got %+v", clipped)
	}
}

func TestPriceRepository_AppendRejectsInvalid(t *testing.T) {
	repo := setupPriceRepo(t)

	bad := obs("Sol Ring", "-1", day(1, 0))
	if err := repo.Append(context.Background(), bad); err == nil {
		t.Error("expected negative price to be rejected")
	}
}

func TestPriceRepository_LatestOnOrBefore(t *testing.T) {
	repo := setupPriceRepo(t)
	ctx := context.Background()

	if err := repo.Append(ctx, obs("Sol Ring", "1.00", day(1, 0)), obs("Sol Ring", "3.00", day(4, 0))); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	key := prices.NewSeriesKey("Sol Ring", "C21", "scryfall")

	tests := []struct {
		name  string
		at    time.Time
		found bool
		price string
	}{
		{"before first", day(1, 0).Add(-time.Second), false, ""},
		{"exact first", day(1, 0), true, "1.00"},
		{"between", day(3, 0), true, "1.00"},
		{"after last", day(9, 0), true, "3.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found, err := repo.LatestOnOrBefore(ctx, key, tt.at)
			if err != nil {
				t.Fatalf("lookup failed: %v", err)
			}
			if found != tt.found {
				t.Fatalf("expected found=%v, got %v", tt.found, found)
			}
			if found && !got.Price.Equal(decimal.RequireFromString(tt.price)) {
				t.Errorf("expected %s, got %s", tt.price, got.Price)
			}
		})
	}
}

func TestPriceRepository_Snapshot(t *testing.T) {
	repo := setupPriceRepo(t)
	ctx := context.Background()

	other := obs("Sol Ring", "9.99", day(2, 0))
	other.Source = "tcgplayer"
	if err := repo.Append(ctx, obs("Sol Ring", "1.00", day(1, 0)), other); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	snap, err := repo.Snapshot(ctx, "scryfall")
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	latest, ok := snap.Latest("Sol Ring", "")
	if !ok || !latest.Price.Equal(decimal.RequireFromString("1.00")) {
		t.Errorf("expected scryfall-only latest 1.00, got %+v ok=%v", latest, ok)
	}

	all, err := repo.Snapshot(ctx, "")
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if latest, _ := all.Latest("Sol Ring", "C21"); !latest.Price.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("expected all-source latest 9.99, got %s", latest.Price)
	}
}

func TestPriceRepository_Cache(t *testing.T) {
	repo := setupPriceRepo(t)
	ctx := context.Background()
	key := prices.NewSeriesKey("Sol Ring", "C21", "scryfall")

	if _, _, found, err := repo.GetCached(ctx, key); err != nil || found {
		t.Fatalf("expected empty cache, found=%v err=%v", found, err)
	}

	if err := repo.PutCached(ctx, obs("Sol Ring", "1.00", day(1, 0)), day(1, 1)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := repo.PutCached(ctx, obs("Sol Ring", "1.25", day(2, 0)), day(2, 1)); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, updatedAt, found, err := repo.GetCached(ctx, key)
	if err != nil || !found {
		t.Fatalf("expected cached entry, found=%v err=%v", found, err)
	}
	if !got.Price.Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("expected upserted price 1.25, got %s", got.Price)
	}
	if !updatedAt.Equal(day(2, 1)) {
		t.Errorf("expected updated_at %v, got %v", day(2, 1), updatedAt)
	}
}

func TestPriceRepository_PruneBefore(t *testing.T) {
	repo := setupPriceRepo(t)
	ctx := context.Background()

	if err := repo.Append(ctx, obs("Sol Ring", "1.00", day(1, 0)), obs("Sol Ring", "2.00", day(5, 0))); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	removed, err := repo.PruneBefore(ctx, day(3, 0))
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 pruned row, got %d", removed)
	}
}

func TestPriceRepository_BacksCache(t *testing.T) {
	repo := setupPriceRepo(t)
	ctx := context.Background()
	now := day(10, 12)

	calls := 0
	source := prices.SourceFunc{
		SourceName: "scryfall",
		Fn: func(context.Context, string, string) (prices.Observation, error) {
			calls++
			return obs("Sol Ring", "1.10", now), nil
		},
	}

	cache := prices.NewCache(source, prices.CacheConfig{Backing: repo, Recorder: repo, Now: func() time.Time { return now }})
	if _, err := cache.Get(ctx, "Sol Ring", "C21"); err != nil {
		t.Fatalf("get failed: %v", err)
	}

	// A fresh cache over the same table is served from the backing row.
	restarted := prices.NewCache(source, prices.CacheConfig{Backing: repo, Now: func() time.Time { return now }})
	got, err := restarted.Get(ctx, "Sol Ring", "C21")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected one upstream fetch, got %d", calls)
	}
	if !got.Price.Equal(decimal.RequireFromString("1.10")) {
		t.Errorf("expected 1.10, got %s", got.Price)
	}

	if n, _ := repo.Count(ctx); n != 1 {
		t.Errorf("expected fetched price recorded in history, got %d rows", n)
	}
}
