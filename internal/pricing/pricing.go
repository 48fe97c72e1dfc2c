package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harry808275/evertrust23-sub000/internal/cart"
	"github.com/Harry808275/evertrust23-sub000/internal/catalog"
	"github.com/Harry808275/evertrust23-sub000/internal/coupons"
)

var (
	ErrEmptyCart     = errors.New("cart has no items")
	ErrPriceMismatch = errors.New("product unavailable or out of stock")
	// ErrInvalidAmount marks a monetary invariant violation (negative or
	// overflowed total). Checkout must abort rather than charge it.
	ErrInvalidAmount = errors.New("computed amount is invalid")
)

// Snapshot is the client-supplied cart: product references and
// quantities. Names and prices sent by the client are display-only and
// never trusted for pricing.
type SnapshotItem struct {
	ProductRef string `json:"product_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"required,min=1"`
}

// Rule configures shipping: a flat fee, waived above a subtotal threshold.
type Rule struct {
	FlatFee   int64
	FreeAbove int64
}

// PricedOrder is the server-derived, trustworthy order: catalog prices,
// one applied discount and the shipping fee, all in minor units.
type PricedOrder struct {
	UserRef    string
	Items      []cart.Item
	CouponCode string
	Subtotal   int64
	Discount   int64
	Shipping   int64
	Total      int64
}

// PriceItems re-prices the client snapshot from the authoritative
// catalog. Every line must resolve to an in-stock product with enough
// quantity, otherwise the whole cart is rejected with ErrPriceMismatch.
func PriceItems(ctx context.Context, lookup catalog.Lookup, snapshot []SnapshotItem) ([]cart.Item, error) {
	if len(snapshot) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]cart.Item, 0, len(snapshot))
	for _, s := range snapshot {
		if s.Quantity <= 0 {
			return nil, fmt.Errorf("%w: bad quantity for %s", ErrPriceMismatch, s.ProductRef)
		}
		product, err := lookup.GetProduct(ctx, s.ProductRef)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrPriceMismatch, s.ProductRef, err)
		}
		if product.Stock < s.Quantity || product.Price < 0 {
			return nil, fmt.Errorf("%w: %s", ErrPriceMismatch, s.ProductRef)
		}
		items = append(items, cart.Item{
			ProductRef: s.ProductRef,
			Name:       product.Name,
			UnitPrice:  product.Price,
			Quantity:   s.Quantity,
			ImageRef:   product.ImageRef,
			Category:   product.Category,
		})
	}
	return items, nil
}

// Aggregate combines priced items, the discount outcome and the shipping
// rule into the final total. The discount is clamped to the subtotal so
// the total never goes negative.
func Aggregate(items []cart.Item, disc coupons.Result, rule Rule) (PricedOrder, error) {
	if len(items) == 0 {
		return PricedOrder{}, ErrEmptyCart
	}

	subtotal := cart.Subtotal(items)
	if subtotal < 0 {
		return PricedOrder{}, fmt.Errorf("%w: subtotal %d", ErrInvalidAmount, subtotal)
	}

	discount := disc.DiscountAmount
	if !disc.Accepted {
		discount = 0
	}
	if discount < 0 {
		return PricedOrder{}, fmt.Errorf("%w: discount %d", ErrInvalidAmount, discount)
	}
	if discount > subtotal {
		discount = subtotal
	}

	var shipping int64
	switch {
	case disc.Accepted && disc.ShippingWaived:
		shipping = 0
	case rule.FreeAbove > 0 && subtotal >= rule.FreeAbove:
		shipping = 0
	default:
		shipping = rule.FlatFee
	}

	total := subtotal - discount + shipping
	if total < 0 {
		return PricedOrder{}, fmt.Errorf("%w: total %d", ErrInvalidAmount, total)
	}

	order := PricedOrder{
		Items:    items,
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Total:    total,
	}
	if disc.Accepted {
		order.CouponCode = disc.Coupon.Code
	}
	return order, nil
}
