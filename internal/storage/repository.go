package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"kakeibo/internal/core"
	"kakeibo/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists the six durable transaction fields. The balance
// column deliberately does not exist: balances are a per-view projection and
// are never trusted from storage.
type SQLiteRepository struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const selectColumns = "id, account, date, item, type, amount"

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		tx      core.Transaction
		rawDate string
		rawType string
	)
	if err := row.Scan(&tx.ID, &tx.Account, &rawDate, &tx.Item, &rawType, &tx.Amount); err != nil {
		return core.Transaction{}, err
	}
	when, err := core.ParseWhen(rawDate)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("stored date for id %d: %w", tx.ID, err)
	}
	tx.Date = when
	tx.Type = core.Type(rawType)
	return tx, nil
}

// ListTransactions returns transactions ordered by date then id; the string
// date format sorts chronologically, and the id tie-break keeps equal
// timestamps in insertion order for the stable balance fold downstream.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, account string) ([]core.Transaction, error) {
	query := "SELECT " + selectColumns + " FROM transactions"
	args := []any{}
	if account != "" {
		query += " WHERE account = ?"
		args = append(args, account)
	}
	query += " ORDER BY date, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM transactions WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, store.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return tx, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO transactions (account, date, item, type, amount) VALUES (?, ?, ?, ?, ?)",
		tx.Account, tx.Date.String(), tx.Item, string(tx.Type), tx.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("last insert id: %w", err)
	}
	tx.ID = id
	tx.Balance = 0

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"account", tx.Account,
		"item", tx.Item,
		"type", string(tx.Type),
		"amount", tx.Amount)

	return tx, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET account = ?, date = ?, item = ?, type = ?, amount = ? WHERE id = ?",
		tx.Account, tx.Date.String(), tx.Item, string(tx.Type), tx.Amount, tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Accounts(ctx context.Context) ([]string, error) {
	return r.distinct(ctx,
		"SELECT DISTINCT account FROM transactions WHERE account <> '' ORDER BY account")
}

func (r *SQLiteRepository) Items(ctx context.Context, account string) ([]string, error) {
	if account != "" {
		return r.distinct(ctx,
			"SELECT DISTINCT item FROM transactions WHERE item <> '' AND account = ? ORDER BY item", account)
	}
	return r.distinct(ctx,
		"SELECT DISTINCT item FROM transactions WHERE item <> '' ORDER BY item")
}

func (r *SQLiteRepository) distinct(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("distinct query: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate values: %w", err)
	}
	return out, nil
}

// AppendAll inserts a batch inside a single database transaction, so a
// failed append-mode import leaves no partial rows behind.
func (r *SQLiteRepository) AppendAll(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer dbTx.Rollback()

	out, err := insertAll(ctx, dbTx, txs)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}

	slog.InfoContext(ctx, "Ledger batch appended", "count", len(out))
	return out, nil
}

// ReplaceAll swaps the whole ledger inside a single database transaction,
// so a failed replace-mode import leaves the previous data untouched.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, "DELETE FROM transactions"); err != nil {
		return nil, fmt.Errorf("clear transactions: %w", err)
	}

	out, err := insertAll(ctx, dbTx, txs)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace: %w", err)
	}

	slog.InfoContext(ctx, "Ledger replaced", "count", len(out))
	return out, nil
}

func insertAll(ctx context.Context, dbTx *sql.Tx, txs []core.Transaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		res, err := dbTx.ExecContext(ctx,
			"INSERT INTO transactions (account, date, item, type, amount) VALUES (?, ?, ?, ?, ?)",
			tx.Account, tx.Date.String(), tx.Item, string(tx.Type), tx.Amount)
		if err != nil {
			return nil, fmt.Errorf("insert batch row: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id in batch: %w", err)
		}
		tx.ID = id
		tx.Balance = 0
		out = append(out, tx)
	}
	return out, nil
}
