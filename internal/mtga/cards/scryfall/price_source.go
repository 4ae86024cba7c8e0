package scryfall

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ramonehamilton/deckforge/internal/apperr"
	"github.com/ramonehamilton/deckforge/internal/prices"
)

// SourceName identifies observations fetched from Scryfall.
const SourceName = "scryfall"

// Currency selects which Scryfall price field is observed.
type Currency string

const (
	USD     Currency = "usd"
	USDFoil Currency = "usd_foil"
	EUR     Currency = "eur"
)

// PriceSource implements prices.Source on top of the named card endpoint.
type PriceSource struct {
	client   *Client
	currency Currency
	now      func() time.Time
}

// NewPriceSource creates a price source reading the given currency.
func NewPriceSource(client *Client, currency Currency) *PriceSource {
	if currency == "" {
		currency = USD
	}
	return &PriceSource{client: client, currency: currency, now: time.Now}
}

// Name implements prices.Source.
func (s *PriceSource) Name() string {
	if s.currency == USD {
		return SourceName
	}
	return SourceName + "_" + string(s.currency)
}

// Fetch implements prices.Source. Unknown cards and printings without a
// market price are reported as DataUnavailable.
func (s *PriceSource) Fetch(ctx context.Context, cardName, setCode string) (prices.Observation, error) {
	card, err := s.client.GetCardByName(ctx, cardName, setCode)
	if err != nil {
		if IsNotFound(err) {
			return prices.Observation{}, apperr.Unavailable(apperr.ReasonMissingPrice, cardName).Wrap(err)
		}
		return prices.Observation{}, err
	}

	raw := s.pick(card.Prices)
	if raw == nil || *raw == "" {
		return prices.Observation{}, apperr.Unavailable(apperr.ReasonMissingPrice, cardName)
	}
	price, err := decimal.NewFromString(*raw)
	if err != nil {
		return prices.Observation{}, fmt.Errorf("invalid %s price %q for %s: %w", s.currency, *raw, cardName, err)
	}

	return prices.Observation{
		CardName:   card.Name,
		SetCode:    strings.ToLower(card.SetCode),
		Source:     s.Name(),
		Price:      price,
		ObservedAt: s.now(),
	}, nil
}

func (s *PriceSource) pick(p Prices) *string {
	switch s.currency {
	case USDFoil:
		return p.USDFoil
	case EUR:
		return p.EUR
	default:
		return p.USD
	}
}
