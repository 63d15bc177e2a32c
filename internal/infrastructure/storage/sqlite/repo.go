package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"coinfolio/internal/application/port"
	"coinfolio/internal/domain"
)

// Repo is the sqlite-backed storage. A single connection keeps writes
// serialized, which is all the per-row atomicity the syncer needs.
type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

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
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  email TEXT NOT NULL UNIQUE,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS assets (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  wallet_id INTEGER NOT NULL REFERENCES wallets(id),
  name TEXT NOT NULL,
  symbol TEXT NOT NULL,
  quantity TEXT NOT NULL,
  price_usd TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  UNIQUE(wallet_id, symbol)
);
CREATE INDEX IF NOT EXISTS idx_assets_name ON assets(name);
CREATE INDEX IF NOT EXISTS idx_assets_wallet ON assets(wallet_id);
`)
	return err
}

// ReplaceAll upserts the full provider listing. INSERT OR REPLACE evicts rows
// conflicting on either unique key, so symbol uniqueness survives re-listings
// where a ticker moved to a different asset id.
func (r *Repo) ReplaceAll(ctx context.Context, mappings []domain.SymbolMapping) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO asset_symbol_mappings(asset_id, symbol) VALUES(?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range mappings {
		if _, err := stmt.ExecContext(ctx, m.AssetID, m.Symbol); err != nil {
			return fmt.Errorf("upsert mapping %s: %w", m.AssetID, err)
		}
	}
	return tx.Commit()
}

func (r *Repo) FindBySymbol(ctx context.Context, symbol string) (domain.SymbolMapping, error) {
	var m domain.SymbolMapping
	err := r.db.QueryRowContext(ctx,
		`SELECT asset_id, symbol FROM asset_symbol_mappings WHERE symbol = ?`, symbol).
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
		`UPDATE assets SET price_usd = ?, updated_at = ? WHERE name = ?`,
		price.String(), time.Now().UnixMilli(), name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repo) CreateWallet(ctx context.Context, email string) (domain.Wallet, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM wallets WHERE email = ?`, email).Scan(&exists)
	if err != nil {
		return domain.Wallet{}, err
	}
	if exists > 0 {
		return domain.Wallet{}, port.ErrWalletExists
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO wallets(email, created_at) VALUES(?, ?)`, email, time.Now().UnixMilli())
	if err != nil {
		return domain.Wallet{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Wallet{}, err
	}
	return domain.Wallet{ID: id, Email: email, Assets: []domain.Asset{}}, nil
}

func (r *Repo) GetWallet(ctx context.Context, id int64) (domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.QueryRowContext(ctx, `SELECT id, email FROM wallets WHERE id = ?`, id).
		Scan(&w.ID, &w.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Wallet{}, port.ErrWalletNotFound
	}
	if err != nil {
		return domain.Wallet{}, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, wallet_id, name, symbol, quantity, price_usd FROM assets WHERE wallet_id = ? ORDER BY id`, id)
	if err != nil {
		return domain.Wallet{}, err
	}
	defer rows.Close()

	w.Assets = []domain.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return domain.Wallet{}, err
		}
		w.Assets = append(w.Assets, a)
	}
	return w, rows.Err()
}

// UpsertAsset adds a position. Quantities are decimal text, so the
// read-modify-write happens in Go inside one transaction.
func (r *Repo) UpsertAsset(ctx context.Context, walletID int64, asset domain.Asset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var quantity string
	err = tx.QueryRowContext(ctx,
		`SELECT quantity FROM assets WHERE wallet_id = ? AND symbol = ?`, walletID, asset.Symbol).
		Scan(&quantity)
	now := time.Now().UnixMilli()

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO assets(wallet_id, name, symbol, quantity, price_usd, created_at, updated_at)
			 VALUES(?, ?, ?, ?, ?, ?, ?)`,
			walletID, asset.Name, asset.Symbol, asset.Quantity.String(), asset.PriceUSD.String(), now, now)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		current, err := decimal.NewFromString(quantity)
		if err != nil {
			return fmt.Errorf("corrupt quantity %q for wallet %d %s: %w", quantity, walletID, asset.Symbol, err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE assets SET quantity = ?, updated_at = ? WHERE wallet_id = ? AND symbol = ?`,
			current.Add(asset.Quantity).String(), now, walletID, asset.Symbol)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func scanAsset(rows *sql.Rows) (domain.Asset, error) {
	var a domain.Asset
	var quantity, price string
	if err := rows.Scan(&a.ID, &a.WalletID, &a.Name, &a.Symbol, &quantity, &price); err != nil {
		return domain.Asset{}, err
	}
	var err error
	if a.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return domain.Asset{}, fmt.Errorf("corrupt quantity %q: %w", quantity, err)
	}
	if a.PriceUSD, err = decimal.NewFromString(price); err != nil {
		return domain.Asset{}, fmt.Errorf("corrupt price %q: %w", price, err)
	}
	return a, nil
}

var _ port.Storage = (*Repo)(nil)
