package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
)

// Repo is the postgres-backed storage, for deployments where the wallet data
// outlives a single host.
type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) Mappings() port.MappingRepository { return r }
func (r *Repo) Ledger() port.AssetLedger         { return r }
func (r *Repo) Wallets() port.WalletRepository   { return r }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS asset_symbol_mappings (
  asset_id TEXT PRIMARY KEY,
  symbol TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS wallets (
  id BIGSERIAL PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assets (
  id BIGSERIAL PRIMARY KEY,
  wallet_id BIGINT NOT NULL REFERENCES wallets(id),
  name TEXT NOT NULL,
  symbol TEXT NOT NULL,
  quantity NUMERIC NOT NULL,
  price_usd NUMERIC NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE(wallet_id, symbol)
);
CREATE INDEX IF NOT EXISTS idx_assets_name ON assets(name);
`)
	return err
}

func (r *Repo) ReplaceAll(ctx context.Context, mappings []domain.SymbolMapping) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, m := range mappings {
		// evict a stale holder of the ticker before upserting by asset id,
		// so the symbol UNIQUE constraint holds across re-listings
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM asset_symbol_mappings WHERE symbol = $1 AND asset_id <> $2`,
			m.Symbol, m.AssetID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO asset_symbol_mappings(asset_id, symbol) VALUES($1, $2)
			ON CONFLICT (asset_id) DO UPDATE SET symbol = EXCLUDED.symbol`,
			m.AssetID, m.Symbol); err != nil {
			return fmt.Errorf("upsert mapping %s: %w", m.AssetID, err)
		}
	}
	return tx.Commit()
}

func (r *Repo) FindBySymbol(ctx context.Context, symbol string) (domain.SymbolMapping, error) {
	var m domain.SymbolMapping
	err := r.db.QueryRowContext(ctx,
		`SELECT asset_id, symbol FROM asset_symbol_mappings WHERE symbol = $1`, symbol).
		Scan(&m.AssetID, &m.Symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SymbolMapping{}, port.ErrMappingNotFound
	}
	if err != nil {
		return domain.SymbolMapping{}, err
	}
	return m, nil
}

func (r *Repo) DistinctAssetNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT name FROM assets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *Repo) UpdatePriceByName(ctx context.Context, name string, price decimal.Decimal) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE assets SET price_usd = $1, updated_at = now() WHERE name = $2`,
		price.String(), name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repo) CreateWallet(ctx context.Context, email string) (domain.Wallet, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO wallets(email) VALUES($1)
		ON CONFLICT (email) DO NOTHING
		RETURNING id`, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Wallet{}, port.ErrWalletExists
	}
	if err != nil {
		return domain.Wallet{}, err
	}
	return domain.Wallet{ID: id, Email: email, Assets: []domain.Asset{}}, nil
}

func (r *Repo) GetWallet(ctx context.Context, id int64) (domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.QueryRowContext(ctx, `SELECT id, email FROM wallets WHERE id = $1`, id).
		Scan(&w.ID, &w.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Wallet{}, port.ErrWalletNotFound
	}
	if err != nil {
		return domain.Wallet{}, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, wallet_id, name, symbol, quantity::text, price_usd::text
		FROM assets WHERE wallet_id = $1 ORDER BY id`, id)
	if err != nil {
		return domain.Wallet{}, err
	}
	defer rows.Close()

	w.Assets = []domain.Asset{}
	for rows.Next() {
		var a domain.Asset
		var quantity, price string
		if err := rows.Scan(&a.ID, &a.WalletID, &a.Name, &a.Symbol, &quantity, &price); err != nil {
			return domain.Wallet{}, err
		}
		if a.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return domain.Wallet{}, err
		}
		if a.PriceUSD, err = decimal.NewFromString(price); err != nil {
			return domain.Wallet{}, err
		}
		w.Assets = append(w.Assets, a)
	}
	return w, rows.Err()
}

func (r *Repo) UpsertAsset(ctx context.Context, walletID int64, asset domain.Asset) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO assets(wallet_id, name, symbol, quantity, price_usd)
		VALUES($1, $2, $3, $4, $5)
		ON CONFLICT (wallet_id, symbol) DO UPDATE SET
		quantity = assets.quantity + EXCLUDED.quantity, updated_at = now()`,
		walletID, asset.Name, asset.Symbol, asset.Quantity.String(), asset.PriceUSD.String())
	return err
}

var _ port.Storage = (*Repo)(nil)
