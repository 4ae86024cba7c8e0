package prices

import (
	"context"
	"fmt"
	"time"

	"github.com/ramonehamilton/deckforge/internal/apperr"
)

// Source fetches the current market price of a printing from an upstream
// provider. Implementations own their transport and retry policy.
type Source interface {
	Name() string
	Fetch(ctx context.Context, cardName, setCode string) (Observation, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc struct {
	SourceName string
	Fn         func(ctx context.Context, cardName, setCode string) (Observation, error)
}

// Name implements Source.
func (f SourceFunc) Name() string { return f.SourceName }

// Fetch implements Source.
func (f SourceFunc) Fetch(ctx context.Context, cardName, setCode string) (Observation, error) {
	return f.Fn(ctx, cardName, setCode)
}

// StoreSource serves the latest stored observation as the current price.
// It lets the engines run offline against previously recorded prices.
type StoreSource struct {
	Store      Store
	SourceName string
	Now        func() time.Time
}

// Name implements Source.
func (s *StoreSource) Name() string { return s.SourceName }

// Fetch implements Source.
func (s *StoreSource) Fetch(ctx context.Context, cardName, setCode string) (Observation, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	obs, ok, err := s.Store.LatestOnOrBefore(ctx, NewSeriesKey(cardName, setCode, s.SourceName), now)
	if err != nil {
		return Observation{}, fmt.Errorf("failed to read stored price: %w", err)
	}
	if !ok {
		return Observation{}, apperr.Unavailable(apperr.ReasonMissingPrice, cardName)
	}
	return obs, nil
}
