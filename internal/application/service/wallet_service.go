package service

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
)

// PriceLookup is the on-demand quote capability wallet mutation depends on.
// Satisfied by QuoteService.
type PriceLookup interface {
	LookupAndFetchPrice(ctx context.Context, symbol string) (domain.PriceQuote, error)
}

// WalletService handles wallet creation, lookup and asset additions.
type WalletService struct {
	wallets port.WalletRepository
	quotes  PriceLookup
}

func NewWalletService(wallets port.WalletRepository, quotes PriceLookup) *WalletService {
	return &WalletService{wallets: wallets, quotes: quotes}
}

// CreateWallet creates an empty wallet for the email. One wallet per email.
func (s *WalletService) CreateWallet(ctx context.Context, email string) (domain.Wallet, error) {
	wallet, err := s.wallets.CreateWallet(ctx, email)
	if err != nil {
		return domain.Wallet{}, err
	}
	log.Info().Int64("wallet", wallet.ID).Msg("wallet created")
	return wallet, nil
}

// AddAsset adds quantity of the symbol to the wallet, priced live via the
// provider. An existing position for the symbol has its quantity increased;
// a new one is created with the fetched price.
func (s *WalletService) AddAsset(ctx context.Context, walletID int64, symbol string, quantity decimal.Decimal) (domain.Wallet, error) {
	if _, err := s.wallets.GetWallet(ctx, walletID); err != nil {
		return domain.Wallet{}, err
	}

	quote, err := s.quotes.LookupAndFetchPrice(ctx, symbol)
	if err != nil {
		return domain.Wallet{}, err
	}

	asset := domain.Asset{
		WalletID: walletID,
		Name:     quote.AssetID,
		Symbol:   symbol,
		Quantity: quantity,
		PriceUSD: quote.PriceUSD,
	}
	if err := s.wallets.UpsertAsset(ctx, walletID, asset); err != nil {
		return domain.Wallet{}, err
	}

	log.Info().
		Int64("wallet", walletID).
		Str("symbol", symbol).
		Str("quantity", quantity.String()).
		Msg("asset added to wallet")
	return s.wallets.GetWallet(ctx, walletID)
}

// GetWallet loads a wallet with its positions.
func (s *WalletService) GetWallet(ctx context.Context, walletID int64) (domain.Wallet, error) {
	return s.wallets.GetWallet(ctx, walletID)
}
