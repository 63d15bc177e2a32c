package port

import (
	"context"

	"coinfolio/internal/domain"
)

// MarketData is the provider-facing contract the application layer consumes.
// Implemented by the CoinCap client.
type MarketData interface {
	FetchAllAssets(ctx context.Context) ([]domain.SymbolMapping, error)
	FetchLatestPrice(ctx context.Context, assetID string) (domain.PriceQuote, error)
}

// QuotePublisher receives every quote the syncer successfully wrote back.
// Implementations must not block the sync cycle.
type QuotePublisher interface {
	PublishQuote(ctx context.Context, quote domain.PriceQuote)
}
