package domain

import (
	"fmt"
	"time"
)

// Gender пол участника, влияет на коэффициент распределения алкоголя
type Gender string

const (
	GenderMale    Gender = "M"
	GenderFemale  Gender = "F"
	GenderUnknown Gender = "U"
)

// Member участник клуба с предоплаченным балансом (в эре)
type Member struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
	Gender    Gender `json:"gender"`
	Balance   int64  `json:"balance"`
	Active    bool   `json:"active"`
}

// Room помещение, в котором стоит киоск
type Room struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Product товар на прилавке. Quantity == nil — запас не ограничен,
// Rooms пустой — товар доступен во всех помещениях.
type Product struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Price            int64      `json:"price"`
	Active           bool       `json:"active"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	Quantity         *int64     `json:"quantity,omitempty"`
	DeactivateDate   *time.Time `json:"deactivate_date,omitempty"`
	AlcoholContentML float64    `json:"alcohol_content_ml"`
	Bought           int64      `json:"bought"`
	Rooms            []int64    `json:"rooms,omitempty"`
}

// Sale факт продажи. Price — цена на момент продажи, не текущая цена товара.
// Пустой ID означает, что продажа ещё не записана.
type Sale struct {
	ID        string    `json:"id"`
	MemberID  int64     `json:"member_id"`
	ProductID int64     `json:"product_id"`
	RoomID    *int64    `json:"room_id,omitempty"`
	Price     int64     `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Payment внесение наличных на баланс участника
type Payment struct {
	ID        string    `json:"id"`
	MemberID  int64     `json:"member_id"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceDisplay форматирует цену в эре как кроны: 900 -> "9.00 kr."
func PriceDisplay(price int64) string {
	return fmt.Sprintf("%d.%02d kr.", price/100, price%100)
}

// ActiveStr короткий маркер активности для списков
func ActiveStr(active bool) string {
	if active {
		return "+"
	}
	return "-"
}
