package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/store"
)

func entry(account, date, item string, t core.Type, amount int64) core.Transaction {
	w, err := core.ParseWhen(date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{Account: account, Date: w, Item: item, Type: t, Amount: amount}
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.CreateTransaction(ctx, entry("main", "2025-06-10", "salary", core.Income, 300000))
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.CreateTransaction(ctx, entry("main", "2025-06-11", "rent", core.Expense, 80000))
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Errorf("ids = %d,%d want 1,2", first.ID, second.ID)
	}
}

func TestListOrderedByDateThenID(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Seed(
		entry("main", "2025-06-10", "later insert, same day", core.Income, 1),
		entry("main", "2025-06-01", "earliest", core.Income, 2),
		entry("main", "2025-06-10", "same day again", core.Income, 3),
	)

	got, err := s.ListTransactions(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d transactions", len(got))
	}
	if got[0].ID != 2 {
		t.Errorf("first should be the earliest date, got id %d", got[0].ID)
	}
	if got[1].ID != 1 || got[2].ID != 3 {
		t.Errorf("same-day entries must keep id order, got %d,%d", got[1].ID, got[2].ID)
	}
}

func TestListFiltersByAccount(t *testing.T) {
	s := New()
	s.Seed(
		entry("main", "2025-06-01", "a", core.Income, 1),
		entry("card", "2025-06-02", "b", core.Expense, 2),
	)

	got, err := s.ListTransactions(context.Background(), "card")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Account != "card" {
		t.Errorf("got %+v", got)
	}
}

func TestUpdateReplacesWholesale(t *testing.T) {
	s := New()
	ctx := context.Background()
	created, _ := s.CreateTransaction(ctx, entry("main", "2025-06-10", "salary", core.Income, 300000))

	updated := entry("card", "2025-06-12 10:00", "bonus", core.Income, 50000)
	updated.ID = created.ID
	if err := s.UpdateTransaction(ctx, updated); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Account != "card" || got.Item != "bonus" || got.Amount != 50000 {
		t.Errorf("update not applied: %+v", got)
	}
	if !got.Date.HasClock || got.Date.Time != time.Date(2025, 6, 12, 10, 0, 0, 0, time.UTC) {
		t.Errorf("date not replaced: %+v", got.Date)
	}
}

func TestNotFoundErrors(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.GetTransaction(ctx, 99); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get unknown id: %v", err)
	}
	if err := s.UpdateTransaction(ctx, core.Transaction{ID: 99}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Update unknown id: %v", err)
	}
	if err := s.DeleteTransaction(ctx, 99); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Delete unknown id: %v", err)
	}
}

func TestRegistries(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Seed(
		entry("reserve", "2025-06-01", "seed", core.Income, 1),
		entry("main", "2025-06-02", "salary", core.Income, 2),
		entry("main", "2025-06-03", "rent", core.Expense, 3),
		entry("main", "2025-07-02", "salary", core.Income, 4),
	)

	accounts, err := s.Accounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 2 || accounts[0] != "main" || accounts[1] != "reserve" {
		t.Errorf("Accounts = %v", accounts)
	}

	items, err := s.Items(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Errorf("Items = %v", items)
	}

	mainItems, err := s.Items(ctx, "main")
	if err != nil {
		t.Fatal(err)
	}
	if len(mainItems) != 2 || mainItems[0] != "rent" || mainItems[1] != "salary" {
		t.Errorf("Items(main) = %v", mainItems)
	}
}

func TestAppendAll(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Seed(entry("main", "2025-01-01", "existing", core.Income, 1))

	appended, err := s.AppendAll(ctx, []core.Transaction{
		entry("main", "2025-06-01", "salary", core.Income, 300000),
		entry("card", "2025-06-02", "dining", core.Expense, 4000),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(appended) != 2 || appended[0].ID != 2 || appended[1].ID != 3 {
		t.Errorf("appended = %+v", appended)
	}

	all, _ := s.ListTransactions(ctx, "")
	if len(all) != 3 || all[0].Item != "existing" {
		t.Errorf("append disturbed existing rows: %+v", all)
	}
}

func TestReplaceAll(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Seed(entry("old", "2025-01-01", "stale", core.Income, 1))

	replaced, err := s.ReplaceAll(ctx, []core.Transaction{
		entry("new", "2025-06-01", "fresh", core.Income, 100),
		entry("new", "2025-06-02", "fresher", core.Expense, 50),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(replaced) != 2 || replaced[0].ID != 1 || replaced[1].ID != 2 {
		t.Errorf("replaced = %+v", replaced)
	}

	all, _ := s.ListTransactions(ctx, "")
	if len(all) != 2 || all[0].Account != "new" {
		t.Errorf("old data survived replace: %+v", all)
	}
}
