package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is a single price fetched from the provider. It is transient:
// produced per fetch and consumed immediately by write-back or the caller.
type PriceQuote struct {
	AssetID   string          `json:"assetId"`
	Symbol    string          `json:"symbol"`
	PriceUSD  decimal.Decimal `json:"priceUsd"`
	FetchedAt time.Time       `json:"fetchedAt"`
}
