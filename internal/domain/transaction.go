package domain

// Transaction накапливает сумму по Add и отдаёт подписанное изменение
// баланса через Change. Знак зависит от вида транзакции.
type Transaction interface {
	Add(delta int64)
	Change() int64
}

// PayTransaction дебетовая транзакция: оплата товара, Change() <= 0
type PayTransaction struct {
	amount int64
}

func NewPayTransaction(amount int64) *PayTransaction {
	return &PayTransaction{amount: amount}
}

// Add добавляет неотрицательную величину к сумме списания
func (t *PayTransaction) Add(delta int64) { t.amount += delta }

func (t *PayTransaction) Change() int64 { return -t.amount }

// GetTransaction кредитовая транзакция: внесение наличных, Change() >= 0
type GetTransaction struct {
	amount int64
}

func NewGetTransaction(amount int64) *GetTransaction {
	return &GetTransaction{amount: amount}
}

func (t *GetTransaction) Add(delta int64) { t.amount += delta }

func (t *GetTransaction) Change() int64 { return t.amount }
