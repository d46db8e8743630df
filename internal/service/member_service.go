package service

import (
	"context"
	"time"

	"kiosk/internal/booze"
	"kiosk/internal/domain"
	"kiosk/internal/repository"
)

// окно, в котором повторные покупки считаются "только что"
const multibuyHintWindow = 60 * time.Second

// MemberInfo сводка для экрана участника
type MemberInfo struct {
	Member      *domain.Member  `json:"member"`
	LastSales   []domain.Sale   `json:"last_sales"`
	LastPayment *domain.Payment `json:"last_payment,omitempty"`
	Stregforbud bool            `json:"stregforbud"`
}

// MemberService выборка участников и производные от их истории величины
type MemberService struct {
	members  repository.MemberRepository
	products repository.ProductRepository
	sales    repository.SaleRepository
	payments repository.PaymentRepository

	Now func() time.Time
}

func NewMemberService(
	members repository.MemberRepository,
	products repository.ProductRepository,
	sales repository.SaleRepository,
	payments repository.PaymentRepository,
) *MemberService {
	return &MemberService{
		members:  members,
		products: products,
		sales:    sales,
		payments: payments,
		Now:      time.Now,
	}
}

func (s *MemberService) Create(ctx context.Context, m domain.Member) (*domain.Member, error) {
	if m.Username == "" {
		return nil, ErrInvalidInput
	}
	if m.Gender == "" {
		m.Gender = domain.GenderUnknown
	}
	cp := m
	if err := s.members.Create(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// GetActiveByUsername участник по имени; неактивные не видны покупкам
func (s *MemberService) GetActiveByUsername(ctx context.Context, username string) (*domain.Member, error) {
	m, err := s.members.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !m.Active {
		return nil, repository.ErrNotFound
	}
	return m, nil
}

// Promille оценка промилле по всей истории покупок участника
func (s *MemberService) Promille(ctx context.Context, member *domain.Member) (float64, error) {
	list, err := s.sales.List(ctx, repository.SaleFilter{MemberID: &member.ID})
	if err != nil {
		return 0, err
	}
	alcoholByProduct := make(map[int64]float64)
	drinks := make([]booze.Drink, 0, len(list))
	for _, sale := range list {
		ml, ok := alcoholByProduct[sale.ProductID]
		if !ok {
			p, err := s.products.GetByID(ctx, sale.ProductID)
			if err != nil {
				return 0, err
			}
			ml = p.AlcoholContentML
			alcoholByProduct[sale.ProductID] = ml
		}
		drinks = append(drinks, booze.Drink{AlcoholML: ml, Timestamp: sale.Timestamp})
	}
	return booze.Promille(member.Gender, drinks, s.Now()), nil
}

// MultibuyHint участник только что сделал больше одной отдельной покупки —
// стоит подсказать про множитель
func (s *MemberService) MultibuyHint(ctx context.Context, memberID int64, now time.Time) (bool, error) {
	n, err := s.sales.CountDistinctTimestamps(ctx, memberID, now.Add(-multibuyHintWindow))
	if err != nil {
		return false, err
	}
	return n > 1, nil
}

// Info экран участника: последние 10 продаж (новые сверху) и последний платёж
func (s *MemberService) Info(ctx context.Context, memberID int64) (*MemberInfo, error) {
	m, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if !m.Active {
		return nil, repository.ErrNotFound
	}

	list, err := s.sales.List(ctx, repository.SaleFilter{MemberID: &memberID})
	if err != nil {
		return nil, err
	}
	// разворачиваем: репозиторий отдаёт по возрастанию времени
	last := make([]domain.Sale, 0, 10)
	for i := len(list) - 1; i >= 0 && len(last) < 10; i-- {
		last = append(last, list[i])
	}

	payments, err := s.payments.ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	var lastPayment *domain.Payment
	if len(payments) > 0 {
		lastPayment = &payments[len(payments)-1]
	}

	return &MemberInfo{
		Member:      m,
		LastSales:   last,
		LastPayment: lastPayment,
		Stregforbud: m.HasStregforbud(),
	}, nil
}
