package service

import (
	"context"
	"time"

	"kiosk/internal/domain"
	"kiosk/internal/repository"
)

// OrderItem позиция заказа: товар и запрошенное количество
type OrderItem struct {
	Product *domain.Product
	Count   int64
}

// Order эфемерный заказ. Не сохраняется сам по себе — результатом
// исполнения становятся строки продаж.
type Order struct {
	Member *domain.Member
	Room   *domain.Room
	Items  []*OrderItem
}

// OrderFromProducts сворачивает плоский список товаров в позиции:
// по одной на товар, количество равно числу вхождений, порядок — по
// первому появлению
func OrderFromProducts(member *domain.Member, room *domain.Room, products []*domain.Product) *Order {
	o := &Order{Member: member, Room: room}
	index := make(map[int64]*OrderItem)
	for _, p := range products {
		if it, ok := index[p.ID]; ok {
			it.Count++
			continue
		}
		it := &OrderItem{Product: p, Count: 1}
		index[p.ID] = it
		o.Items = append(o.Items, it)
	}
	return o
}

// Total суммарная стоимость заказа в эре
func (o *Order) Total() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.Product.Price * it.Count
	}
	return total
}

// OrderService исполняет заказы атомарно относительно баланса участника
// и остатков товаров
type OrderService struct {
	members  repository.MemberRepository
	products repository.ProductRepository
	sales    repository.SaleRepository
	tx       repository.TxManager

	Now func() time.Time
}

func NewOrderService(
	members repository.MemberRepository,
	products repository.ProductRepository,
	sales repository.SaleRepository,
	tx repository.TxManager,
) *OrderService {
	return &OrderService{members: members, products: products, sales: sales, tx: tx, Now: time.Now}
}

// Execute исполняет заказ целиком или никак. Порядок жёсткий: сначала
// доступность и остатки всех позиций (ErrNoMoreInventory, журнал не
// тронут), затем единое списание (ErrStregforbud, продажи не созданы),
// затем по одной строке продажи на позицию по цене строки.
func (s *OrderService) Execute(ctx context.Context, order *Order) error {
	if order.Member == nil || len(order.Items) == 0 {
		return ErrInvalidInput
	}
	for _, it := range order.Items {
		if it.Count < 1 {
			return ErrInvalidInput
		}
	}

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		now := s.Now()

		// свежие строки товаров: проверка по ним, не по снимку вызывающего
		fresh := make([]*domain.Product, len(order.Items))
		for i, it := range order.Items {
			p, err := s.products.GetByID(ctx, it.Product.ID)
			if err != nil {
				return err
			}
			ok, err := productAvailable(ctx, s.sales, p, now, it.Count)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrNoMoreInventory
			}
			fresh[i] = p
		}

		member, err := s.members.GetByID(ctx, order.Member.ID)
		if err != nil {
			return err
		}

		// единая дебетовая транзакция на весь заказ
		t := domain.NewPayTransaction(0)
		for i, it := range order.Items {
			t.Add(fresh[i].Price * it.Count)
		}
		if err := member.Fulfill(t); err != nil {
			return err
		}
		if err := s.members.Update(ctx, member); err != nil {
			return err
		}

		// при сбое посреди цикла откатываем всё уже записанное: строки
		// журнала, счётчики купленного и списание — заказ целиком или никак
		var inserted []string
		var bumped []*domain.Product
		undo := func() {
			for _, id := range inserted {
				_ = s.sales.Delete(ctx, id)
			}
			for _, p := range bumped {
				p.Bought--
				_ = s.products.Update(ctx, p)
			}
			member.Rollback(t)
			_ = s.members.Update(ctx, member)
		}

		for i, it := range order.Items {
			p := fresh[i]
			sale := &domain.Sale{
				MemberID:  member.ID,
				ProductID: p.ID,
				Price:     p.Price * it.Count,
				Timestamp: now,
			}
			if order.Room != nil {
				roomID := order.Room.ID
				sale.RoomID = &roomID
			}
			if err := s.sales.Insert(ctx, sale); err != nil {
				undo()
				return err
			}
			inserted = append(inserted, sale.ID)
			if p.Quantity != nil {
				p.Bought++
				if err := s.products.Update(ctx, p); err != nil {
					p.Bought--
					undo()
					return err
				}
				bumped = append(bumped, p)
			}
		}

		order.Member.Balance = member.Balance
		return nil
	})
}
