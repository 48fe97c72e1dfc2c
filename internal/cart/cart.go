package cart

// Item is one priced line of a checkout cart. Unit prices are in minor
// currency units (cents) and come from the catalog service, never from
// the client; the client-supplied snapshot only names products and
// quantities.
type Item struct {
	ProductRef string `json:"product_ref"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
	ImageRef   string `json:"image_ref,omitempty"`
	Category   string `json:"category,omitempty"`
}

// Subtotal sums unit price times quantity over all items.
func Subtotal(items []Item) int64 {
	var total int64
	for _, it := range items {
		total += it.UnitPrice * int64(it.Quantity)
	}
	return total
}

// TotalQuantity sums the quantities over all items.
func TotalQuantity(items []Item) int {
	var n int
	for _, it := range items {
		n += it.Quantity
	}
	return n
}
