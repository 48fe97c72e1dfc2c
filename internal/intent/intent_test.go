package intent

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Harry808275/evertrust23-sub000/internal/cart"
	"github.com/Harry808275/evertrust23-sub000/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var encodedAt = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func pricedOrder() pricing.PricedOrder {
	items := []cart.Item{
		{ProductRef: "p-1", Name: "Widget", UnitPrice: 2500, Quantity: 2, ImageRef: "https://img.example/p1.jpg"},
		{ProductRef: "p-2", Name: "Gadget", UnitPrice: 900, Quantity: 1},
	}
	return pricing.PricedOrder{
		UserRef:    "user-42",
		Items:      items,
		CouponCode: "SAVE20",
		Subtotal:   5900,
		Discount:   1180,
		Shipping:   500,
		Total:      5220,
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	p := pricedOrder()

	md, intentID, err := Encode(p, encodedAt)
	require.NoError(t, err)
	require.NotEmpty(t, intentID)
	assert.Equal(t, intentID, md["intent_id"])

	in, err := Decode(md)
	require.NoError(t, err)

	assert.Equal(t, intentID, in.IntentID)
	assert.Equal(t, p.UserRef, in.UserRef)
	assert.Equal(t, p.CouponCode, in.CouponCode)
	assert.Equal(t, p.Discount, in.Discount)
	assert.Equal(t, p.Shipping, in.Shipping)
	assert.Equal(t, p.Total, in.Total)
	assert.Equal(t, p.Items, in.Items)
	assert.Equal(t, encodedAt, in.CreatedAt)
}

func TestEncode_FreshIntentIdPerCall(t *testing.T) {
	p := pricedOrder()

	_, first, err := Encode(p, encodedAt)
	require.NoError(t, err)
	_, second, err := Encode(p, encodedAt)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestEncode_ChunksLongItemPayloads(t *testing.T) {
	p := pricedOrder()
	var items []cart.Item
	var subtotal int64
	for i := 0; i < 30; i++ {
		items = append(items, cart.Item{
			ProductRef: fmt.Sprintf("p-%d", i),
			Name:       strings.Repeat("x", 60),
			UnitPrice:  100,
			Quantity:   1,
		})
		subtotal += 100
	}
	p.Items = items
	p.CouponCode = ""
	p.Discount = 0
	p.Shipping = 0
	p.Subtotal = subtotal
	p.Total = subtotal

	md, _, err := Encode(p, encodedAt)
	require.NoError(t, err)

	assert.Contains(t, md, "items_0")
	assert.Contains(t, md, "items_1")
	for k, v := range md {
		assert.LessOrEqual(t, len(v), maxValueLen, "value for %s over provider ceiling", k)
	}

	in, err := Decode(md)
	require.NoError(t, err)
	assert.Equal(t, items, in.Items)
}

func TestEncode_DropsImagesBeforeFailing(t *testing.T) {
	p := pricedOrder()
	var items []cart.Item
	var subtotal int64
	// Images alone push this over budget; without them it fits.
	for i := 0; i < 150; i++ {
		items = append(items, cart.Item{
			ProductRef: fmt.Sprintf("p-%d", i),
			Name:       "Widget",
			UnitPrice:  100,
			Quantity:   1,
			ImageRef:   "https://img.example/" + strings.Repeat("a", 120),
		})
		subtotal += 100
	}
	p.Items = items
	p.CouponCode = ""
	p.Discount = 0
	p.Shipping = 0
	p.Subtotal = subtotal
	p.Total = subtotal

	md, _, err := Encode(p, encodedAt)
	require.NoError(t, err)

	in, err := Decode(md)
	require.NoError(t, err)
	for _, item := range in.Items {
		assert.Empty(t, item.ImageRef)
	}
}

func TestEncode_TooLarge(t *testing.T) {
	p := pricedOrder()
	var items []cart.Item
	var subtotal int64
	for i := 0; i < 400; i++ {
		items = append(items, cart.Item{
			ProductRef: fmt.Sprintf("product-reference-%d", i),
			Name:       strings.Repeat("n", 80),
			UnitPrice:  100,
			Quantity:   1,
		})
		subtotal += 100
	}
	p.Items = items
	p.Subtotal = subtotal
	p.Total = subtotal - p.Discount + p.Shipping

	_, _, err := Encode(p, encodedAt)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDecode_MissingFields(t *testing.T) {
	md, _, err := Encode(pricedOrder(), encodedAt)
	require.NoError(t, err)

	for _, key := range []string{"intent_id", "user_id", "total", "items_0", "created_at"} {
		t.Run("missing "+key, func(t *testing.T) {
			broken := make(map[string]string, len(md))
			for k, v := range md {
				broken[k] = v
			}
			delete(broken, key)

			_, err := Decode(broken)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecode_TamperedTotalRejected(t *testing.T) {
	md, _, err := Encode(pricedOrder(), encodedAt)
	require.NoError(t, err)

	md["total"] = "1"

	_, err = Decode(md)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecode_NegativeTotalRejected(t *testing.T) {
	md, _, err := Encode(pricedOrder(), encodedAt)
	require.NoError(t, err)

	// Keep the arithmetic consistent but negative.
	md["discount"] = "999999"
	md["total"] = "-993599"

	_, err = Decode(md)
	assert.ErrorIs(t, err, ErrMalformed)
}
