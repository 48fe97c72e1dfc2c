package orders

import "time"

// Order lifecycle. The materializer only ever creates orders in
// StatusPending; the remaining transitions belong to the fulfillment
// admin flow.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// Order is the durable system of record created exactly once per intent.
type Order struct {
	ID         string    `json:"id"`
	IntentID   string    `json:"intent_id"` // unique, the exactly-once device
	UserID     string    `json:"user_id"`
	TotalPrice int64     `json:"total_price"` // minor units
	Status     string    `json:"status"`
	CouponCode string    `json:"coupon_code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OrderItem is one materialized line of an order.
type OrderItem struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}
