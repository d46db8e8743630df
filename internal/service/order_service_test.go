package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"kiosk/internal/domain"
	"kiosk/internal/repository"
)

type env struct {
	store    *repository.MemoryStore
	members  *repository.MemoryMembers
	products *repository.MemoryProducts
	rooms    *repository.MemoryRooms
	sales    *repository.MemorySales
	payments *repository.MemoryPayments

	orderSvc   *OrderService
	ledgerSvc  *LedgerService
	productSvc *ProductService
	memberSvc  *MemberService

	now time.Time
}

func setup(t *testing.T) *env {
	t.Helper()
	store := repository.NewMemoryStore()
	e := &env{
		store:    store,
		members:  repository.NewMemoryMembers(store),
		products: repository.NewMemoryProducts(store),
		rooms:    repository.NewMemoryRooms(store),
		sales:    repository.NewMemorySales(store),
		payments: repository.NewMemoryPayments(store),
		now:      time.Date(2018, 3, 1, 20, 0, 0, 0, time.UTC),
	}
	tx := repository.NewMemoryTx(store)
	e.orderSvc = NewOrderService(e.members, e.products, e.sales, tx)
	e.ledgerSvc = NewLedgerService(e.members, e.products, e.sales, e.payments, tx)
	e.productSvc = NewProductService(e.products, e.sales)
	e.memberSvc = NewMemberService(e.members, e.products, e.sales, e.payments)
	clock := func() time.Time { return e.now }
	e.orderSvc.Now = clock
	e.ledgerSvc.Now = clock
	e.productSvc.Now = clock
	e.memberSvc.Now = clock
	return e
}

func (e *env) member(t *testing.T, balance int64) *domain.Member {
	t.Helper()
	m := domain.Member{Username: "jokke", Gender: domain.GenderMale, Balance: balance, Active: true}
	if err := e.members.Create(context.Background(), &m); err != nil {
		t.Fatal(err)
	}
	return &m
}

func (e *env) product(t *testing.T, p domain.Product) *domain.Product {
	t.Helper()
	if err := e.products.Create(context.Background(), &p); err != nil {
		t.Fatal(err)
	}
	return &p
}

func (e *env) room(t *testing.T) *domain.Room {
	t.Helper()
	r := domain.Room{Name: "room"}
	if err := e.rooms.Create(context.Background(), &r); err != nil {
		t.Fatal(err)
	}
	return &r
}

func i64(v int64) *int64 { return &v }

func TestOrderFromProducts(t *testing.T) {
	e := setup(t)
	m := e.member(t, 100)
	r := e.room(t)
	beer := e.product(t, domain.Product{Name: "beer", Price: 10, Active: true})

	order := OrderFromProducts(m, r, []*domain.Product{beer, beer})

	if len(order.Items) != 1 {
		t.Fatalf("expected one item, got %v", len(order.Items))
	}
	if order.Items[0].Product.ID != beer.ID || order.Items[0].Count != 2 {
		t.Fatalf("expected beer x2, got %+v", order.Items[0])
	}
}

func TestOrderFromProductsKeepsFirstAppearanceOrder(t *testing.T) {
	e := setup(t)
	m := e.member(t, 100)
	beer := e.product(t, domain.Product{Name: "beer", Price: 10, Active: true})
	soda := e.product(t, domain.Product{Name: "soda", Price: 5, Active: true})

	order := OrderFromProducts(m, nil, []*domain.Product{beer, soda, beer})

	if len(order.Items) != 2 {
		t.Fatalf("expected two items, got %v", len(order.Items))
	}
	if order.Items[0].Product.ID != beer.ID || order.Items[0].Count != 2 {
		t.Fatalf("first item expected beer x2, got %+v", order.Items[0])
	}
	if order.Items[1].Product.ID != soda.ID || order.Items[1].Count != 1 {
		t.Fatalf("second item expected soda x1, got %+v", order.Items[1])
	}
}

func TestOrderTotal(t *testing.T) {
	e := setup(t)
	m := e.member(t, 100)
	beer := e.product(t, domain.Product{Name: "beer", Price: 10, Active: true})

	single := OrderFromProducts(m, nil, []*domain.Product{beer})
	if single.Total() != 10 {
		t.Fatalf("total expected 10, got %v", single.Total())
	}

	double := OrderFromProducts(m, nil, []*domain.Product{beer, beer})
	if double.Total() != 20 {
		t.Fatalf("total expected 20, got %v", double.Total())
	}
}

func TestOrderExecute(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	m := e.member(t, 100)
	r := e.room(t)
	beer := e.product(t, domain.Product{Name: "beer", Price: 10, Active: true})

	order := OrderFromProducts(m, r, []*domain.Product{beer, beer})
	if err := e.orderSvc.Execute(ctx, order); err != nil {
		t.Fatalf("execute: %v", err)
	}

	mm, _ := e.members.GetByID(ctx, m.ID)
	if mm.Balance != 80 {
		t.Fatalf("balance expected 80, got %v", mm.Balance)
	}
	// баланс в заказе обновлён для вызывающего
	if order.Member.Balance != 80 {
		t.Fatalf("order member balance expected 80, got %v", order.Member.Balance)
	}

	// одна строка продажи на позицию, цена — сумма строки
	list, _ := e.sales.List(ctx, repository.SaleFilter{MemberID: &m.ID})
	if len(list) != 1 {
		t.Fatalf("expected one sale row, got %v", len(list))
	}
	if list[0].Price != 20 {
		t.Fatalf("sale price expected 20, got %v", list[0].Price)
	}
	if list[0].RoomID == nil || *list[0].RoomID != r.ID {
		t.Fatalf("sale room expected %v, got %v", r.ID, list[0].RoomID)
	}
	if !list[0].Timestamp.Equal(e.now) {
		t.Fatalf("sale timestamp expected %v, got %v", e.now, list[0].Timestamp)
	}
}

func TestOrderExecuteNoRemaining(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	m := e.member(t, 100)
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	beer := e.product(t, domain.Product{
		Name: "beer", Price: 10, Active: true,
		StartDate: &start, Quantity: i64(1),
	})
	if err := e.sales.Insert(ctx, &domain.Sale{MemberID: m.ID, ProductID: beer.ID, Price: 100, Timestamp: e.now.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}

	order := OrderFromProducts(m, nil, []*domain.Product{beer})
	err := e.orderSvc.Execute(ctx, order)
	if !errors.Is(err, domain.ErrNoMoreInventory) {
		t.Fatalf("expected no more inventory, got %v", err)
	}

	// журнал и баланс не тронуты
	mm, _ := e.members.GetByID(ctx, m.ID)
	if mm.Balance != 100 {
		t.Fatalf("balance must be untouched, got %v", mm.Balance)
	}
	n, _ := e.sales.Count(ctx, repository.SaleFilter{MemberID: &m.ID})
	if n != 1 {
		t.Fatalf("no new sale rows expected, got %v", n)
	}
}

func TestOrderExecuteSomeRemaining(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	m := e.member(t, 100)
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	beer := e.product(t, domain.Product{
		Name: "beer", Price: 10, Active: true,
		StartDate: &start, Quantity: i64(2),
	})
	if err := e.sales.Insert(ctx, &domain.Sale{MemberID: m.ID, ProductID: beer.ID, Price: 100, Timestamp: e.now.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}

	// остался один, просим два
	order := OrderFromProducts(m, nil, []*domain.Product{beer, beer})
	err := e.orderSvc.Execute(ctx, order)
	if !errors.Is(err, domain.ErrNoMoreInventory) {
		t.Fatalf("expected no more inventory, got %v", err)
	}
}

func TestOrderExecuteNoMoney(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	m := e.member(t, 5)
	beer := e.product(t, domain.Product{Name: "beer", Price: 10, Active: true, Quantity: i64(10)})

	order := OrderFromProducts(m, nil, []*domain.Product{beer})
	err := e.orderSvc.Execute(ctx, order)
	if !errors.Is(err, domain.ErrStregforbud) {
		t.Fatalf("expected stregforbud, got %v", err)
	}

	mm, _ := e.members.GetByID(ctx, m.ID)
	if mm.Balance != 5 {
		t.Fatalf("balance must be untouched, got %v", mm.Balance)
	}
	n, _ := e.sales.Count(ctx, repository.SaleFilter{MemberID: &m.ID})
	if n != 0 {
		t.Fatalf("no sale rows expected, got %v", n)
	}
	pp, _ := e.products.GetByID(ctx, beer.ID)
	if pp.Bought != 0 {
		t.Fatalf("bought must be untouched, got %v", pp.Bought)
	}
}

func TestOrderExecuteDeactivatedProduct(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	m := e.member(t, 100)
	past := e.now.Add(-time.Hour)
	beer := e.product(t, domain.Product{Name: "beer", Price: 10, Active: true, DeactivateDate: &past})

	order := OrderFromProducts(m, nil, []*domain.Product{beer})
	err := e.orderSvc.Execute(ctx, order)
	if !errors.Is(err, domain.ErrNoMoreInventory) {
		t.Fatalf("expected no more inventory, got %v", err)
	}
}

func TestOrderExecuteBumpsBoughtOnlyForLimitedStock(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	m := e.member(t, 10000)
	limited := e.product(t, domain.Product{Name: "limited", Price: 100, Active: true, Quantity: i64(10)})
	unlimited := e.product(t, domain.Product{Name: "beer", Price: 100, Active: true})

	order := OrderFromProducts(m, nil, []*domain.Product{limited, unlimited})
	if err := e.orderSvc.Execute(ctx, order); err != nil {
		t.Fatalf("execute: %v", err)
	}

	pl, _ := e.products.GetByID(ctx, limited.ID)
	if pl.Bought != 1 {
		t.Fatalf("limited bought expected 1, got %v", pl.Bought)
	}
	pu, _ := e.products.GetByID(ctx, unlimited.ID)
	if pu.Bought != 0 {
		t.Fatalf("unlimited bought expected 0, got %v", pu.Bought)
	}
}

func TestOrderExecuteConcurrentStockRace(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	beer := e.product(t, domain.Product{
		Name: "beer", Price: 10, Active: true,
		StartDate: &start, Quantity: i64(1),
	})

	const n = 8
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		m := domain.Member{Username: "m", Balance: 100, Active: true}
		if err := e.members.Create(ctx, &m); err != nil {
			t.Fatal(err)
		}
		go func(m *domain.Member) {
			order := OrderFromProducts(m, nil, []*domain.Product{beer})
			results <- e.orderSvc.Execute(ctx, order)
		}(&m)
	}

	var succeeded int
	for i := 0; i < n; i++ {
		if err := <-results; err == nil {
			succeeded++
		} else if !errors.Is(err, domain.ErrNoMoreInventory) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// единственную единицу остатка может получить только один заказ
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful order, got %v", succeeded)
	}
	product := beer.ID
	rows, _ := e.sales.Count(ctx, repository.SaleFilter{ProductID: &product})
	if rows != 1 {
		t.Fatalf("expected one sale row, got %v", rows)
	}
}

// журнал, отказывающий на второй вставке
type failingSales struct {
	repository.SaleRepository
	inserts int
}

func (f *failingSales) Insert(ctx context.Context, s *domain.Sale) error {
	f.inserts++
	if f.inserts > 1 {
		return errors.New("journal unavailable")
	}
	return f.SaleRepository.Insert(ctx, s)
}

func TestOrderExecutePartialInsertFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	m := e.member(t, 1000)
	beer := e.product(t, domain.Product{Name: "beer", Price: 100, Active: true, Quantity: i64(10)})
	soda := e.product(t, domain.Product{Name: "soda", Price: 50, Active: true})

	flaky := &failingSales{SaleRepository: e.sales}
	svc := NewOrderService(e.members, e.products, flaky, repository.NewMemoryTx(e.store))
	svc.Now = func() time.Time { return e.now }

	order := OrderFromProducts(m, nil, []*domain.Product{beer, soda})
	if err := svc.Execute(ctx, order); err == nil {
		t.Fatalf("expected insert failure")
	}

	// ни следа от заказа: баланс, журнал и счётчик купленного как были
	mm, _ := e.members.GetByID(ctx, m.ID)
	if mm.Balance != 1000 {
		t.Fatalf("balance expected restored 1000, got %v", mm.Balance)
	}
	n, _ := e.sales.Count(ctx, repository.SaleFilter{MemberID: &m.ID})
	if n != 0 {
		t.Fatalf("sale rows expected 0, got %v", n)
	}
	pp, _ := e.products.GetByID(ctx, beer.ID)
	if pp.Bought != 0 {
		t.Fatalf("bought expected restored 0, got %v", pp.Bought)
	}
}
