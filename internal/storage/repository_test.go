package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ebisaa944/ExpenseTracker/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testTx(title, amount string, typ core.TransactionType, category string, date core.Date) core.Transaction {
	a, err := core.ParseAmount(amount)
	if err != nil {
		panic(err)
	}
	return core.Transaction{
		Title:    title,
		Amount:   a,
		Type:     typ,
		Category: category,
		Date:     date,
	}
}

func TestInsertAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Insert(ctx, testTx("Pay", "1000.50", core.Income, "Salary", core.NewDate(2024, 1, 5)))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("Insert should assign an ID")
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("Insert should assign CreatedAt")
	}

	got, err := repo.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Pay" || got.Amount.String() != "1000.50" || got.Type != core.Income {
		t.Fatalf("Get returned %+v", got)
	}
	if got.Date.String() != "2024-01-05" {
		t.Fatalf("Date = %s, want 2024-01-05", got.Date)
	}
}

func TestGetNotFound(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.Get(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(999) = %v, want ErrNotFound", err)
	}
}

func TestListOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Insert out of date order; same-date rows must keep insertion order
	// reversed only by the created_at/id tie breakers (newest first).
	old, _ := repo.Insert(ctx, testTx("Old", "10.00", core.Expense, "Groceries", core.NewDate(2024, 1, 1)))
	mid1, _ := repo.Insert(ctx, testTx("Mid first", "20.00", core.Expense, "Rent", core.NewDate(2024, 1, 10)))
	mid2, _ := repo.Insert(ctx, testTx("Mid second", "30.00", core.Income, "Salary", core.NewDate(2024, 1, 10)))
	newest, _ := repo.Insert(ctx, testTx("New", "40.00", core.Expense, "Debt", core.NewDate(2024, 2, 1)))

	txs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(txs) != 4 {
		t.Fatalf("List returned %d rows, want 4", len(txs))
	}
	wantOrder := []int64{newest.ID, mid2.ID, mid1.ID, old.ID}
	for i, want := range wantOrder {
		if txs[i].ID != want {
			t.Fatalf("position %d: id = %d, want %d (order %v)", i, txs[i].ID, want, txs)
		}
	}
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Insert(ctx, testTx("Rent", "250.00", core.Expense, "Rent", core.NewDate(2024, 1, 10)))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestListEmpty(t *testing.T) {
	repo := newTestRepo(t)
	txs, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("List on empty database returned %d rows", len(txs))
	}
}
