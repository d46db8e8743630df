package service

import (
	"context"
	"errors"
	"time"

	"kiosk/internal/domain"
	"kiosk/internal/repository"
)

var ErrInvalidInput = errors.New("invalid input")

// ProductService инкапсулирует логику прилавка: доступность товара,
// списки по помещениям и административные операции
type ProductService struct {
	products repository.ProductRepository
	sales    repository.SaleRepository

	// Now источник времени, подменяется в тестах
	Now func() time.Time
}

func NewProductService(products repository.ProductRepository, sales repository.SaleRepository) *ProductService {
	return &ProductService{products: products, sales: sales, Now: time.Now}
}

// productAvailable общая проверка доступности: флаг активности, окно
// деактивации и остаток. Пересчитывается по живому журналу продаж,
// на сущности ничего не кэшируется.
func productAvailable(ctx context.Context, sales repository.SaleRepository, p *domain.Product, now time.Time, count int64) (bool, error) {
	if !p.Active {
		return false, nil
	}
	if p.DeactivateDate != nil && !now.Before(*p.DeactivateDate) {
		return false, nil
	}
	if p.Quantity == nil {
		return true, nil
	}
	// start_date == nil с конечным остатком считает все продажи за всю историю
	f := repository.SaleFilter{ProductID: &p.ID, Since: p.StartDate}
	sold, err := sales.Count(ctx, f)
	if err != nil {
		return false, err
	}
	return *p.Quantity-sold >= count, nil
}

// IsActive может ли товар быть продан прямо сейчас
func (s *ProductService) IsActive(ctx context.Context, p *domain.Product, now time.Time) (bool, error) {
	return productAvailable(ctx, s.sales, p, now, 1)
}

// ActiveForRoom прилавок помещения: только доступные сейчас товары
func (s *ProductService) ActiveForRoom(ctx context.Context, roomID int64) ([]domain.Product, error) {
	all, err := s.products.List(ctx, repository.ProductFilter{RoomID: &roomID})
	if err != nil {
		return nil, err
	}
	now := s.Now()
	out := make([]domain.Product, 0, len(all))
	for _, p := range all {
		ok, err := s.IsActive(ctx, &p, now)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetForSale товар по id для покупки из помещения: существует, активен,
// окно деактивации не истекло, доступен в помещении. Остаток здесь не
// проверяется — это делает исполнение заказа.
func (s *ProductService) GetForSale(ctx context.Context, id, roomID int64, now time.Time) (*domain.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, repository.ErrNotFound
	}
	if p.DeactivateDate != nil && !now.Before(*p.DeactivateDate) {
		return nil, repository.ErrNotFound
	}
	if !inRoom(p, roomID) {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func inRoom(p *domain.Product, roomID int64) bool {
	if len(p.Rooms) == 0 {
		return true
	}
	for _, id := range p.Rooms {
		if id == roomID {
			return true
		}
	}
	return false
}

// ListByActivation административный список: activated == nil — все товары,
// иначе только те, чья вычисленная доступность совпадает с флагом
func (s *ProductService) ListByActivation(ctx context.Context, activated *bool) ([]domain.Product, error) {
	all, err := s.products.List(ctx, repository.ProductFilter{})
	if err != nil {
		return nil, err
	}
	if activated == nil {
		return all, nil
	}
	now := s.Now()
	out := make([]domain.Product, 0, len(all))
	for _, p := range all {
		ok, err := s.IsActive(ctx, &p, now)
		if err != nil {
			return nil, err
		}
		if ok == *activated {
			out = append(out, p)
		}
	}
	return out, nil
}

// ToggleActive массовое переключение активности; дата деактивации при
// переключении всегда сбрасывается
func (s *ProductService) ToggleActive(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		p, err := s.products.GetByID(ctx, id)
		if err != nil {
			return err
		}
		p.Active = !p.Active
		p.DeactivateDate = nil
		if err := s.products.Update(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProductService) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if p.Name == "" || p.Price < 0 {
		return nil, ErrInvalidInput
	}
	if p.Quantity != nil && *p.Quantity < 0 {
		return nil, ErrInvalidInput
	}
	cp := p
	if err := s.products.Create(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.products.GetByID(ctx, id)
}

func (s *ProductService) Update(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if p.ID <= 0 || p.Name == "" || p.Price < 0 {
		return nil, ErrInvalidInput
	}
	cp := p
	if err := s.products.Update(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}
