package store

import (
	"context"
	"errors"

	"kakeibo/internal/core"
)

// ErrNotFound is returned when a transaction id does not exist.
var ErrNotFound = errors.New("transaction not found")

// Ports for the transaction store backends.
type (
	// TransactionLister returns transactions ordered by date then id, so a
	// stable re-sort by date preserves insertion order for equal timestamps.
	// An empty account means no account restriction.
	TransactionLister interface {
		ListTransactions(ctx context.Context, account string) ([]core.Transaction, error)
	}

	TransactionGetter interface {
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	}

	// TransactionWriter mutates the ledger. Update replaces all mutable
	// fields wholesale; the id is immutable.
	TransactionWriter interface {
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, id int64) error
	}

	// RegistryReader exposes the account and item registries: the distinct
	// strings observed in stored transactions.
	RegistryReader interface {
		Accounts(ctx context.Context) ([]string, error)
		Items(ctx context.Context, account string) ([]string, error)
	}

	// Appender adds a batch of transactions all-or-nothing (CSV append-mode
	// import). On error the ledger is unchanged.
	Appender interface {
		AppendAll(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error)
	}

	// Replacer swaps the whole ledger in one shot (CSV replace-mode import).
	Replacer interface {
		ReplaceAll(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error)
	}
)

// Store is the full backend contract the HTTP server wires against.
type Store interface {
	TransactionLister
	TransactionGetter
	TransactionWriter
	RegistryReader
	Appender
	Replacer
}
