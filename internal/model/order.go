package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending    = "PENDING"
	OrderStatusInDelivery = "IN_DELIVERY"
	OrderStatusPaused     = "PAUSED"
	OrderStatusDelivered  = "DELIVERED"
	OrderStatusFailed     = "FAILED"
)

const (
	PaymentStatusPaid   = "PAID"
	PaymentStatusUnpaid = "UNPAID"
)

const (
	PaymentMethodCard = "CARD"
	PaymentMethodCash = "CASH"
)

type Order struct {
	ID            int             `json:"ID"`
	Number        int64           `json:"number"`
	CustomerID    int             `json:"customerID"`
	AdminID       int             `json:"adminID"`
	CourierID     int             `json:"courierID"`
	DeliveryDate  *time.Time      `json:"deliveryDate"`
	DeliveryTime  string          `json:"deliveryTime"`
	Quantity      int             `json:"quantity"`
	Calories      int             `json:"calories"`
	Price         decimal.Decimal `json:"price"`
	PaymentStatus string          `json:"paymentStatus"`
	PaymentMethod string          `json:"paymentMethod"`
	Prepaid       bool            `json:"prepaid"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	DeliveredAt   *time.Time      `json:"deliveredAt"`
}

// OrderDraft carries everything CreateOrder needs except the order number,
// which the repository assigns inside the insert transaction.
type OrderDraft struct {
	CustomerID    int
	AdminID       int
	DeliveryDate  *time.Time
	DeliveryTime  string
	Quantity      int
	Calories      int
	Price         decimal.Decimal
	PaymentStatus string
	PaymentMethod string
	Prepaid       bool
	Status        string
}

type OrderInput struct {
	CustomerID    int             `json:"customerID"`
	DeliveryDate  *time.Time      `json:"deliveryDate"`
	DeliveryTime  string          `json:"deliveryTime"`
	Quantity      int             `json:"quantity"`
	Calories      int             `json:"calories"`
	Price         decimal.Decimal `json:"price"`
	PaymentMethod string          `json:"paymentMethod"`
	CardNumber    string          `json:"cardNumber,omitempty"`
	Prepaid       bool            `json:"prepaid"`
}

type OrderOutput struct {
	Number        int64           `json:"number"`
	DeliveryDate  *time.Time      `json:"deliveryDate"`
	DeliveryTime  string          `json:"deliveryTime"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	PaymentStatus string          `json:"paymentStatus"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// TransitionUpdate is applied as a single UPDATE guarded by FromStatus,
// so a concurrent transition loses the race instead of clobbering state.
type TransitionUpdate struct {
	Number      int64
	FromStatus  string
	ToStatus    string
	CourierID   int
	DeliveredAt *time.Time
}
