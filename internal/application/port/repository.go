package port

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"coinfolio/internal/domain"
)

var (
	// ErrMappingNotFound means no symbol mapping exists for the requested ticker.
	ErrMappingNotFound = errors.New("symbol mapping not found")
	// ErrWalletNotFound means the requested wallet id does not exist.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrWalletExists means a wallet for the email already exists.
	ErrWalletExists = errors.New("wallet already exists for this email")
)

// MappingRepository stores the symbol -> provider asset id table. Rebuilt at
// process start from a full asset listing; read by the on-demand quote path.
type MappingRepository interface {
	// ReplaceAll upserts the given mappings. Symbol uniqueness holds post-write.
	ReplaceAll(ctx context.Context, mappings []domain.SymbolMapping) error

	// FindBySymbol looks up one mapping by its exact ticker.
	// Returns ErrMappingNotFound when absent.
	FindBySymbol(ctx context.Context, symbol string) (domain.SymbolMapping, error)
}

// AssetLedger is the view of persisted positions the price syncer needs:
// which assets are held, and per-name price write-back.
type AssetLedger interface {
	// DistinctAssetNames returns the deduplicated set of provider asset ids
	// currently held by any wallet.
	DistinctAssetNames(ctx context.Context) ([]string, error)

	// UpdatePriceByName sets the cached price on every position holding the
	// named asset. Returns the number of rows touched. Single-row-atomic per
	// asset; no cross-asset transaction.
	UpdatePriceByName(ctx context.Context, name string, price decimal.Decimal) (int64, error)
}

// WalletRepository persists wallets and their positions.
type WalletRepository interface {
	// CreateWallet creates an empty wallet for the email.
	// Returns ErrWalletExists if the email already has one.
	CreateWallet(ctx context.Context, email string) (domain.Wallet, error)

	// GetWallet loads a wallet with its assets. Returns ErrWalletNotFound.
	GetWallet(ctx context.Context, id int64) (domain.Wallet, error)

	// UpsertAsset adds the position to the wallet. If the wallet already holds
	// the symbol, the quantity is added to the existing row; otherwise a new
	// row is created with the given price.
	UpsertAsset(ctx context.Context, walletID int64, asset domain.Asset) error
}

// Storage bundles the repositories one backend provides.
type Storage interface {
	Mappings() MappingRepository
	Ledger() AssetLedger
	Wallets() WalletRepository
	Close() error
}
