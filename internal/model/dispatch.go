package model

import "time"

// EventOrderPaid is the purchase-conversion event recorded in the dispatch
// ledger; one row per (order, event) pair, never updated or deleted.
const EventOrderPaid = "order_paid"

type DispatchRecord struct {
	ID        int       `json:"ID"`
	OrderID   int       `json:"orderID"`
	EventName string    `json:"eventName"`
	SentAt    time.Time `json:"sentAt"`
}
