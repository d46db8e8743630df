package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"kiosk/internal/domain"
)

// MemoryStore объединённое in-memory хранилище и простой генератор ID
type MemoryStore struct {
	mu           sync.RWMutex
	nextMemberID int64
	nextProdID   int64
	nextRoomID   int64
	membersByID  map[int64]domain.Member
	productsByID map[int64]domain.Product
	roomsByID    map[int64]domain.Room
	salesByID    map[string]domain.Sale
	paymentsByID map[string]domain.Payment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextMemberID: 1,
		nextProdID:   1,
		nextRoomID:   1,
		membersByID:  make(map[int64]domain.Member),
		productsByID: make(map[int64]domain.Product),
		roomsByID:    make(map[int64]domain.Room),
		salesByID:    make(map[string]domain.Sale),
		paymentsByID: make(map[string]domain.Payment),
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// Ensure interfaces
var (
	_ MemberRepository  = (*MemoryMembers)(nil)
	_ ProductRepository = (*MemoryProducts)(nil)
	_ RoomRepository    = (*MemoryRooms)(nil)
	_ SaleRepository    = (*MemorySales)(nil)
	_ PaymentRepository = (*MemoryPayments)(nil)
)

// MemberRepository implementation
type MemoryMembers struct{ store *MemoryStore }

func NewMemoryMembers(store *MemoryStore) *MemoryMembers { return &MemoryMembers{store: store} }

func (r *MemoryMembers) Create(ctx context.Context, m *domain.Member) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	m.ID = r.store.nextMemberID
	r.store.nextMemberID++
	r.store.membersByID[m.ID] = *m
	return nil
}

func (r *MemoryMembers) GetByID(ctx context.Context, id int64) (*domain.Member, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	m, ok := r.store.membersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := m
	return &cp, nil
}

func (r *MemoryMembers) GetByUsername(ctx context.Context, username string) (*domain.Member, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	for _, m := range r.store.membersByID {
		if m.Username == username {
			cp := m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryMembers) Update(ctx context.Context, m *domain.Member) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	if _, ok := r.store.membersByID[m.ID]; !ok {
		return ErrNotFound
	}
	r.store.membersByID[m.ID] = *m
	return nil
}

// ProductRepository implementation
type MemoryProducts struct{ store *MemoryStore }

func NewMemoryProducts(store *MemoryStore) *MemoryProducts { return &MemoryProducts{store: store} }

func (r *MemoryProducts) Create(ctx context.Context, p *domain.Product) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	p.ID = r.store.nextProdID
	r.store.nextProdID++
	r.store.productsByID[p.ID] = *p
	return nil
}

func (r *MemoryProducts) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	p, ok := r.store.productsByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (r *MemoryProducts) Update(ctx context.Context, p *domain.Product) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	if _, ok := r.store.productsByID[p.ID]; !ok {
		return ErrNotFound
	}
	r.store.productsByID[p.ID] = *p
	return nil
}

func (r *MemoryProducts) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	out := make([]domain.Product, 0)
	for _, p := range r.store.productsByID {
		if f.RoomID != nil && !productInRoom(p, *f.RoomID) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func productInRoom(p domain.Product, roomID int64) bool {
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

// RoomRepository implementation
type MemoryRooms struct{ store *MemoryStore }

func NewMemoryRooms(store *MemoryStore) *MemoryRooms { return &MemoryRooms{store: store} }

func (r *MemoryRooms) Create(ctx context.Context, room *domain.Room) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	room.ID = r.store.nextRoomID
	r.store.nextRoomID++
	r.store.roomsByID[room.ID] = *room
	return nil
}

func (r *MemoryRooms) GetByID(ctx context.Context, id int64) (*domain.Room, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	room, ok := r.store.roomsByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := room
	return &cp, nil
}

// SaleRepository implementation
type MemorySales struct{ store *MemoryStore }

func NewMemorySales(store *MemoryStore) *MemorySales { return &MemorySales{store: store} }

func (r *MemorySales) Insert(ctx context.Context, s *domain.Sale) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	r.store.salesByID[s.ID] = *s
	return nil
}

func (r *MemorySales) GetByID(ctx context.Context, id string) (*domain.Sale, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	s, ok := r.store.salesByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := s
	return &cp, nil
}

func (r *MemorySales) Delete(ctx context.Context, id string) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	if _, ok := r.store.salesByID[id]; !ok {
		return ErrNotFound
	}
	delete(r.store.salesByID, id)
	return nil
}

func matchSale(s domain.Sale, f SaleFilter) bool {
	if f.MemberID != nil && s.MemberID != *f.MemberID {
		return false
	}
	if f.ProductID != nil && s.ProductID != *f.ProductID {
		return false
	}
	if f.Since != nil && !s.Timestamp.After(*f.Since) {
		return false
	}
	if f.Until != nil && s.Timestamp.After(*f.Until) {
		return false
	}
	return true
}

func (r *MemorySales) List(ctx context.Context, f SaleFilter) ([]domain.Sale, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	out := make([]domain.Sale, 0)
	for _, s := range r.store.salesByID {
		if matchSale(s, f) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *MemorySales) Count(ctx context.Context, f SaleFilter) (int64, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	var n int64
	for _, s := range r.store.salesByID {
		if matchSale(s, f) {
			n++
		}
	}
	return n, nil
}

func (r *MemorySales) CountDistinctTimestamps(ctx context.Context, memberID int64, since time.Time) (int64, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	seen := make(map[time.Time]struct{})
	for _, s := range r.store.salesByID {
		if s.MemberID == memberID && s.Timestamp.After(since) {
			seen[s.Timestamp] = struct{}{}
		}
	}
	return int64(len(seen)), nil
}

// PaymentRepository implementation
type MemoryPayments struct{ store *MemoryStore }

func NewMemoryPayments(store *MemoryStore) *MemoryPayments { return &MemoryPayments{store: store} }

func (r *MemoryPayments) Insert(ctx context.Context, p *domain.Payment) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}
	r.store.paymentsByID[p.ID] = *p
	return nil
}

func (r *MemoryPayments) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	p, ok := r.store.paymentsByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (r *MemoryPayments) Delete(ctx context.Context, id string) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)
	if _, ok := r.store.paymentsByID[id]; !ok {
		return ErrNotFound
	}
	delete(r.store.paymentsByID, id)
	return nil
}

func (r *MemoryPayments) ListByMember(ctx context.Context, memberID int64) ([]domain.Payment, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)
	out := make([]domain.Payment, 0)
	for _, p := range r.store.paymentsByID {
		if p.MemberID == memberID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Tx manager using write lock to emulate transaction boundary
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// Для in-memory используем блокировку записи и помечаем контекст, чтобы репозитории пропускали внутренние локи
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	ctx = context.WithValue(ctx, txKey{}, true)
	return fn(ctx)
}
