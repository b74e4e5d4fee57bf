// Package memory is an in-process store backend, used as the dev default and
// by handler tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"kakeibo/internal/core"
	"kakeibo/internal/store"
)

type Store struct {
	mu     sync.Mutex
	txs    []core.Transaction
	nextID int64
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{nextID: 1}
}

// Seed pre-loads transactions, assigning ids; meant for tests and demos.
func (s *Store) Seed(txs ...core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		tx.ID = s.nextID
		s.nextID++
		s.txs = append(s.txs, tx)
	}
}

func (s *Store) ListTransactions(_ context.Context, account string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		if account == "" || tx.Account == account {
			out = append(out, tx)
		}
	}
	sortByDateThenID(out)
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, store.ErrNotFound
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx.ID = s.nextID
	s.nextID++
	tx.Balance = 0
	s.txs = append(s.txs, tx)
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.txs {
		if s.txs[i].ID == tx.ID {
			tx.Balance = 0
			s.txs[i] = tx
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.txs {
		if s.txs[i].ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) Accounts(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, tx := range s.txs {
		if tx.Account == "" {
			continue
		}
		if _, ok := seen[tx.Account]; ok {
			continue
		}
		seen[tx.Account] = struct{}{}
		names = append(names, tx.Account)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Items(_ context.Context, account string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	labels := make([]string, 0)
	for _, tx := range s.txs {
		if account != "" && tx.Account != account {
			continue
		}
		if tx.Item == "" {
			continue
		}
		if _, ok := seen[tx.Item]; ok {
			continue
		}
		seen[tx.Item] = struct{}{}
		labels = append(labels, tx.Item)
	}
	sort.Strings(labels)
	return labels, nil
}

func (s *Store) AppendAll(_ context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		tx.ID = s.nextID
		s.nextID++
		tx.Balance = 0
		out = append(out, tx)
	}
	s.txs = append(s.txs, out...)
	return out, nil
}

func (s *Store) ReplaceAll(_ context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txs = nil
	s.nextID = 1
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		tx.ID = s.nextID
		s.nextID++
		tx.Balance = 0
		s.txs = append(s.txs, tx)
		out = append(out, tx)
	}
	return out, nil
}

func sortByDateThenID(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Time.Equal(txs[j].Date.Time) {
			return txs[i].Date.Time.Before(txs[j].Date.Time)
		}
		return txs[i].ID < txs[j].ID
	})
}
