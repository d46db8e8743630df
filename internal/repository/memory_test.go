package repository

import (
	"context"
	"testing"
	"time"

	"kiosk/internal/domain"
)

func TestMemoryStore_MemberCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	members := NewMemoryMembers(store)

	m := domain.Member{Username: "jokke", Balance: 100, Active: true}
	if err := members.Create(ctx, &m); err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.ID == 0 {
		t.Fatalf("no id")
	}

	got, err := members.GetByUsername(ctx, "jokke")
	if err != nil || got.ID != m.ID {
		t.Fatalf("get by username: %v", err)
	}

	m.Balance = 200
	if err := members.Update(ctx, &m); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = members.GetByID(ctx, m.ID)
	if got.Balance != 200 {
		t.Fatalf("balance expected 200, got %v", got.Balance)
	}

	if _, err := members.GetByUsername(ctx, "notinthere"); err != ErrNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryProducts_RoomFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	products := NewMemoryProducts(store)

	everywhere := domain.Product{Name: "beer", Price: 900, Active: true}
	scoped := domain.Product{Name: "special", Price: 500, Active: true, Rooms: []int64{2}}
	if err := products.Create(ctx, &everywhere); err != nil {
		t.Fatal(err)
	}
	if err := products.Create(ctx, &scoped); err != nil {
		t.Fatal(err)
	}

	roomOne := int64(1)
	list, _ := products.List(ctx, ProductFilter{RoomID: &roomOne})
	if len(list) != 1 || list[0].ID != everywhere.ID {
		t.Fatalf("room 1 expected only unscoped product, got %v", list)
	}

	roomTwo := int64(2)
	list, _ = products.List(ctx, ProductFilter{RoomID: &roomTwo})
	if len(list) != 2 {
		t.Fatalf("room 2 expected both products, got %v", list)
	}
}

func TestMemorySales_CountAndFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sales := NewMemorySales(store)

	base := time.Date(2017, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		s := domain.Sale{MemberID: 1, ProductID: 7, Price: 100, Timestamp: base.Add(time.Duration(i) * time.Hour)}
		if err := sales.Insert(ctx, &s); err != nil {
			t.Fatal(err)
		}
		if s.ID == "" {
			t.Fatalf("no id")
		}
	}

	product := int64(7)
	n, _ := sales.Count(ctx, SaleFilter{ProductID: &product})
	if n != 3 {
		t.Fatalf("count expected 3, got %v", n)
	}

	since := base.Add(30 * time.Minute)
	n, _ = sales.Count(ctx, SaleFilter{ProductID: &product, Since: &since})
	if n != 2 {
		t.Fatalf("count since expected 2, got %v", n)
	}

	list, _ := sales.List(ctx, SaleFilter{ProductID: &product})
	for i := 1; i < len(list); i++ {
		if list[i].Timestamp.Before(list[i-1].Timestamp) {
			t.Fatalf("list not ordered by timestamp")
		}
	}
}

func TestMemorySales_DistinctTimestamps(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sales := NewMemorySales(store)

	ts := time.Date(2017, 1, 1, 12, 0, 0, 0, time.UTC)
	// две продажи одного мультизаказа делят момент времени
	for i := 0; i < 2; i++ {
		s := domain.Sale{MemberID: 1, ProductID: int64(i + 1), Price: 100, Timestamp: ts}
		if err := sales.Insert(ctx, &s); err != nil {
			t.Fatal(err)
		}
	}
	s := domain.Sale{MemberID: 1, ProductID: 3, Price: 100, Timestamp: ts.Add(10 * time.Second)}
	if err := sales.Insert(ctx, &s); err != nil {
		t.Fatal(err)
	}

	n, _ := sales.CountDistinctTimestamps(ctx, 1, ts.Add(-time.Minute))
	if n != 2 {
		t.Fatalf("distinct timestamps expected 2, got %v", n)
	}
}

func TestMemoryTx_TransactionalUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tx := NewMemoryTx(store)
	members := NewMemoryMembers(store)
	sales := NewMemorySales(store)

	m := domain.Member{Username: "jon", Balance: 100, Active: true}
	if err := members.Create(ctx, &m); err != nil {
		t.Fatal(err)
	}

	// emulate atomic debit with sale insert
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		mm, err := members.GetByID(ctx, m.ID)
		if err != nil {
			return err
		}
		if err := mm.Fulfill(domain.NewPayTransaction(40)); err != nil {
			return err
		}
		if err := members.Update(ctx, mm); err != nil {
			return err
		}
		return sales.Insert(ctx, &domain.Sale{MemberID: m.ID, ProductID: 1, Price: 40})
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	mm, _ := members.GetByID(context.Background(), m.ID)
	if mm.Balance != 60 {
		t.Fatalf("balance expected 60, got %v", mm.Balance)
	}
	member := m.ID
	n, _ := sales.Count(context.Background(), SaleFilter{MemberID: &member})
	if n != 1 {
		t.Fatalf("sale count expected 1, got %v", n)
	}
}
