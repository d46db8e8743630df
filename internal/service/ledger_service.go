package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"kiosk/internal/domain"
	"kiosk/internal/repository"
)

var (
	// ErrSaleAlreadyRecorded повторная запись уже записанной продажи —
	// ошибка программирования, не пользовательская ситуация
	ErrSaleAlreadyRecorded = errors.New("sale already recorded")
	// ErrSaleNotRecorded сторнировать можно только записанную продажу
	ErrSaleNotRecorded = errors.New("sale not recorded")
	// ErrPaymentNotRecorded сторнировать можно только записанный платёж
	ErrPaymentNotRecorded = errors.New("payment not recorded")
)

// LedgerService явные операции журнала вместо скрытых хуков сохранения:
// каждая пара "движение баланса + строка журнала" выполняется в одной
// транзакции и ровно один раз
type LedgerService struct {
	members  repository.MemberRepository
	products repository.ProductRepository
	sales    repository.SaleRepository
	payments repository.PaymentRepository
	tx       repository.TxManager

	Now func() time.Time
}

func NewLedgerService(
	members repository.MemberRepository,
	products repository.ProductRepository,
	sales repository.SaleRepository,
	payments repository.PaymentRepository,
	tx repository.TxManager,
) *LedgerService {
	return &LedgerService{
		members:  members,
		products: products,
		sales:    sales,
		payments: payments,
		tx:       tx,
		Now:      time.Now,
	}
}

// RecordSale записывает одиночную продажу: списывает цену с баланса и
// вставляет строку журнала. Продажа с непустым ID уже записана — отказ.
func (s *LedgerService) RecordSale(ctx context.Context, sale *domain.Sale) error {
	if sale.ID != "" {
		return ErrSaleAlreadyRecorded
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		member, err := s.members.GetByID(ctx, sale.MemberID)
		if err != nil {
			return err
		}
		if err := member.Fulfill(domain.NewPayTransaction(sale.Price)); err != nil {
			return err
		}
		if err := s.members.Update(ctx, member); err != nil {
			return err
		}
		if sale.Timestamp.IsZero() {
			sale.Timestamp = s.Now()
		}
		sale.ID = uuid.NewString()
		if err := s.sales.Insert(ctx, sale); err != nil {
			sale.ID = ""
			return err
		}
		return s.bumpBought(ctx, sale.ProductID, 1)
	})
}

// ReverseSale сторнирует записанную продажу: удаляет строку и возвращает
// цену на баланс ровно один раз. Незаписанная продажа — отказ.
func (s *LedgerService) ReverseSale(ctx context.Context, sale *domain.Sale) error {
	if sale.ID == "" {
		return ErrSaleNotRecorded
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.sales.Delete(ctx, sale.ID); err != nil {
			return err
		}
		member, err := s.members.GetByID(ctx, sale.MemberID)
		if err != nil {
			return err
		}
		member.MakePayment(sale.Price)
		if err := s.members.Update(ctx, member); err != nil {
			return err
		}
		if err := s.bumpBought(ctx, sale.ProductID, -1); err != nil {
			return err
		}
		sale.ID = ""
		return nil
	})
}

// RecordPayment записывает платёж и зачисляет сумму. Повторный вызов для
// уже записанного платежа — no-op: двойного зачисления быть не должно.
func (s *LedgerService) RecordPayment(ctx context.Context, payment *domain.Payment) error {
	if payment.ID != "" {
		return nil
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		member, err := s.members.GetByID(ctx, payment.MemberID)
		if err != nil {
			return err
		}
		member.MakePayment(payment.Amount)
		if err := s.members.Update(ctx, member); err != nil {
			return err
		}
		if payment.Timestamp.IsZero() {
			payment.Timestamp = s.Now()
		}
		payment.ID = uuid.NewString()
		if err := s.payments.Insert(ctx, payment); err != nil {
			payment.ID = ""
			return err
		}
		return nil
	})
}

// ReversePayment сторнирует записанный платёж ровно один раз
func (s *LedgerService) ReversePayment(ctx context.Context, payment *domain.Payment) error {
	if payment.ID == "" {
		return ErrPaymentNotRecorded
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.payments.Delete(ctx, payment.ID); err != nil {
			return err
		}
		member, err := s.members.GetByID(ctx, payment.MemberID)
		if err != nil {
			return err
		}
		member.MakePayment(-payment.Amount)
		if err := s.members.Update(ctx, member); err != nil {
			return err
		}
		payment.ID = ""
		return nil
	})
}

// ReverseSaleByID сторно по идентификатору строки журнала
func (s *LedgerService) ReverseSaleByID(ctx context.Context, id string) error {
	sale, err := s.sales.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.ReverseSale(ctx, sale)
}

// ReversePaymentByID сторно платежа по идентификатору
func (s *LedgerService) ReversePaymentByID(ctx context.Context, id string) error {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.ReversePayment(ctx, payment)
}

// bumpBought счётчик купленного ведётся только у товаров с конечным запасом
func (s *LedgerService) bumpBought(ctx context.Context, productID, delta int64) error {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if p.Quantity == nil {
		return nil
	}
	p.Bought += delta
	return s.products.Update(ctx, p)
}
