package models

import "time"

// PaymentStatus статус ручной проверки платежа.
type PaymentStatus string

const (
	PaymentAwaiting PaymentStatus = "awaiting_verification"
	PaymentApproved PaymentStatus = "approved"
	PaymentRejected PaymentStatus = "rejected"
)

// Plan описывает тариф премиума.
type Plan struct {
	Code  string
	Name  string
	Price float64 // USDT
	Days  int
}

// Plans доступные тарифы премиума.
var Plans = map[string]Plan{
	"basic":    {Code: "basic", Name: "Basic", Price: 2.99, Days: 30},
	"standard": {Code: "standard", Name: "Standard", Price: 7.99, Days: 90},
	"premium":  {Code: "premium", Name: "Premium", Price: 19.99, Days: 365},
}

// PlanOrder порядок вывода тарифов.
var PlanOrder = []string{"basic", "standard", "premium"}

// Payment заявка на оплату, ожидающая ручной проверки администратором.
type Payment struct {
	ID         string
	UserID     int64
	Plan       string
	Network    string // bsc или sol
	TxHash     string
	Price      float64
	Days       int
	Status     PaymentStatus
	CreatedAt  time.Time
	VerifiedAt *time.Time
}

// PendingSelection выбор тарифа, сохранённый до отправки хэша транзакции.
type PendingSelection struct {
	PaymentID string    `json:"payment_id"`
	UserID    int64     `json:"user_id"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification сообщение, доставляемое через очередь уведомлений.
type Notification struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}
