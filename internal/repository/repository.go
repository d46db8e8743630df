package repository

import (
	"context"
	"errors"
	"time"

	"kiosk/internal/domain"
)

// ErrNotFound возвращается, когда сущность не найдена
var ErrNotFound = errors.New("not found")

// ProductFilter параметры выборки товаров
type ProductFilter struct {
	// товар доступен в помещении: пустой scope товара = все помещения
	RoomID *int64
}

// SaleFilter параметры выборки продаж
type SaleFilter struct {
	MemberID  *int64
	ProductID *int64
	Since     *time.Time // строго позже
	Until     *time.Time
}

// MemberRepository репозиторий участников
type MemberRepository interface {
	Create(ctx context.Context, m *domain.Member) error
	GetByID(ctx context.Context, id int64) (*domain.Member, error)
	GetByUsername(ctx context.Context, username string) (*domain.Member, error)
	Update(ctx context.Context, m *domain.Member) error
}

// ProductRepository репозиторий товаров
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	List(ctx context.Context, f ProductFilter) ([]domain.Product, error)
}

// RoomRepository репозиторий помещений
type RoomRepository interface {
	Create(ctx context.Context, r *domain.Room) error
	GetByID(ctx context.Context, id int64) (*domain.Room, error)
}

// SaleRepository журнал продаж, строки неизменяемы после вставки
type SaleRepository interface {
	Insert(ctx context.Context, s *domain.Sale) error
	GetByID(ctx context.Context, id string) (*domain.Sale, error)
	Delete(ctx context.Context, id string) error
	// List отдаёт продажи по фильтру, отсортированные по времени
	List(ctx context.Context, f SaleFilter) ([]domain.Sale, error)
	Count(ctx context.Context, f SaleFilter) (int64, error)
	// CountDistinctTimestamps число различных моментов продаж участника
	// строго позже since
	CountDistinctTimestamps(ctx context.Context, memberID int64, since time.Time) (int64, error)
}

// PaymentRepository журнал платежей
type PaymentRepository interface {
	Insert(ctx context.Context, p *domain.Payment) error
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	Delete(ctx context.Context, id string) error
	// ListByMember отдаёт платежи участника, отсортированные по времени
	ListByMember(ctx context.Context, memberID int64) ([]domain.Payment, error)
}

// TxManager абстракция транзакции. Для in-memory — глобальная блокировка
// записи на всё время check-then-commit.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
