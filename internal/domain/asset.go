package domain

import "github.com/shopspring/decimal"

// SymbolMapping links a user-facing ticker to the provider's canonical asset id.
type SymbolMapping struct {
	AssetID string // provider id, e.g. "bitcoin"
	Symbol  string // ticker, e.g. "BTC"
}

// Asset is a single position inside a wallet. Name matches a provider asset id,
// PriceUSD is the last price the syncer wrote back.
type Asset struct {
	ID       int64
	WalletID int64
	Name     string
	Symbol   string
	Quantity decimal.Decimal
	PriceUSD decimal.Decimal
}

// Wallet groups the assets held by one user. One wallet per email.
type Wallet struct {
	ID     int64
	Email  string
	Assets []Asset
}
