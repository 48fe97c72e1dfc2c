package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harry808275/evertrust23-sub000/internal/pricing"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/coupon"
)

// ErrProviderUnavailable wraps any provider-side failure. Session
// creation is never retried here; the caller may resubmit checkout,
// and the idempotency key derived from the intent id makes a resubmit
// safe on the provider side.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// Gateway creates hosted checkout sessions. It holds no session state:
// the durability guarantee of a checkout comes from the webhook event,
// not from this call succeeding.
type Gateway struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

// Session is the provider's answer: where to send the customer.
type Session struct {
	RedirectURL string
	ProviderID  string
}

// CreateSession builds the hosted checkout session from the priced
// order. The discount rides as a one-off amount-off coupon, shipping as
// a fixed-amount shipping option, and the encoded intent is attached to
// the payment intent so the completion webhook gets it echoed back.
func (g *Gateway) CreateSession(ctx context.Context, p pricing.PricedOrder, metadata map[string]string, intentID string) (Session, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(p.Items))
	for _, item := range p.Items {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.ImageRef != "" {
			productData.Images = stripe.StringSlice([]string{item.ImageRef})
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(g.Currency),
				UnitAmount:  stripe.Int64(item.UnitPrice),
				ProductData: productData,
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}

	params := &stripe.CheckoutSessionParams{
		SubmitType: stripe.String("pay"),
		LineItems:  lineItems,
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.SuccessURL),
		CancelURL:  stripe.String(g.CancelURL),
		ShippingOptions: []*stripe.CheckoutSessionShippingOptionParams{
			{
				ShippingRateData: &stripe.CheckoutSessionShippingOptionShippingRateDataParams{
					DisplayName: stripe.String("Standard shipping"),
					Type:        stripe.String("fixed_amount"),
					FixedAmount: &stripe.CheckoutSessionShippingOptionShippingRateDataFixedAmountParams{
						Amount:   stripe.Int64(p.Shipping),
						Currency: stripe.String(g.Currency),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("checkout-" + intentID)

	if p.Discount > 0 {
		discountID, err := g.createDiscount(ctx, p, intentID)
		if err != nil {
			return Session{}, err
		}
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(discountID)},
		}
	}

	s, err := session.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return Session{RedirectURL: s.URL, ProviderID: s.ID}, nil
}

// createDiscount registers the server-computed discount amount as a
// one-off provider coupon so the hosted page shows it as a named
// reduction instead of silently altered line prices.
func (g *Gateway) createDiscount(ctx context.Context, p pricing.PricedOrder, intentID string) (string, error) {
	name := p.CouponCode
	if name == "" {
		name = "Discount"
	}
	params := &stripe.CouponParams{
		AmountOff: stripe.Int64(p.Discount),
		Currency:  stripe.String(g.Currency),
		Duration:  stripe.String(string(stripe.CouponDurationOnce)),
		Name:      stripe.String(name),
	}
	params.Context = ctx
	params.SetIdempotencyKey("discount-" + intentID)

	c, err := coupon.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return c.ID, nil
}
