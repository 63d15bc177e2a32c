package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
)

var (
	// ErrUnknownSymbol means the ticker has no provider mapping.
	ErrUnknownSymbol = errors.New("unknown asset symbol")
	// ErrPriceUnavailable means the symbol is known but the provider fetch failed.
	ErrPriceUnavailable = errors.New("price unavailable")
)

// QuoteService is the on-demand single-asset price path: symbol -> provider
// id via the mapping table, then one live fetch. Errors propagate to the
// caller, unlike the scheduled cycle which swallows them per asset.
type QuoteService struct {
	market   port.MarketData
	mappings port.MappingRepository
}

func NewQuoteService(market port.MarketData, mappings port.MappingRepository) *QuoteService {
	return &QuoteService{market: market, mappings: mappings}
}

// LookupAndFetchPrice resolves the symbol and fetches its current price.
// Returns ErrUnknownSymbol or ErrPriceUnavailable (wrapping the cause).
func (s *QuoteService) LookupAndFetchPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	mapping, err := s.mappings.FindBySymbol(ctx, symbol)
	if errors.Is(err, port.ErrMappingNotFound) {
		log.Warn().Str("symbol", symbol).Msg("no asset mapping for symbol")
		return domain.PriceQuote{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	if err != nil {
		return domain.PriceQuote{}, err
	}

	quote, err := s.market.FetchLatestPrice(ctx, mapping.AssetID)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Str("asset", mapping.AssetID).Msg("on-demand price fetch failed")
		return domain.PriceQuote{}, fmt.Errorf("%w for %s: %w", ErrPriceUnavailable, symbol, err)
	}
	return quote, nil
}
