package domain

import "errors"

var (
	// ErrStregforbud баланс не покрывает списание
	ErrStregforbud = errors.New("stregforbud: insufficient balance")
	// ErrNoMoreInventory остатка товара не хватает на запрошенное количество
	ErrNoMoreInventory = errors.New("no more inventory")
)

// CanFulfill проверяет, переживёт ли баланс транзакцию. Чистый предикат.
func (m *Member) CanFulfill(t Transaction) bool {
	return m.Balance+t.Change() >= 0
}

// Fulfill применяет транзакцию к балансу. Если баланс ушёл бы в минус,
// возвращает ErrStregforbud и не трогает баланс.
func (m *Member) Fulfill(t Transaction) error {
	if !m.CanFulfill(t) {
		return ErrStregforbud
	}
	m.Balance += t.Change()
	return nil
}

// Rollback безусловно отменяет ранее применённую транзакцию.
// Вызывающий гарантирует, что отменяет именно успешный Fulfill.
func (m *Member) Rollback(t Transaction) {
	m.Balance -= t.Change()
}

// MakePayment безусловно изменяет баланс; отрицательная сумма — сторно
func (m *Member) MakePayment(amount int64) {
	m.Balance += amount
}

// HasStregforbud участнику запрещены покупки при отрицательном балансе
func (m *Member) HasStregforbud() bool {
	return m.Balance < 0
}
