package kafka

import "time"

const TopicOrderPaid = `order-service.order-paid`

// OrderPaidEvent is emitted once per order line after materialization.
// The product service consumes it to apply the stock decrement; the
// (order_id, product_id) pair doubles as its idempotency key.
type OrderPaidEvent struct {
	OrderId   string    `json:"order_id"`
	ProductId string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}
