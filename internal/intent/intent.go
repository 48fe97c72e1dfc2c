package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Harry808275/evertrust23-sub000/internal/cart"
	"github.com/Harry808275/evertrust23-sub000/internal/pricing"

	"github.com/google/uuid"
)

// The payment provider's metadata channel bounds both value length and
// key count, so line items are chunked across items_N keys and the rest
// of the intent rides on fixed keys.
const (
	maxValueLen   = 500
	maxItemChunks = 40
)

var (
	ErrTooLarge  = errors.New("intent exceeds metadata size ceiling")
	ErrMalformed = errors.New("malformed intent metadata")
)

// Intent is the frozen description of what should become an order. It is
// handed to the payment provider at session creation and echoed back on
// the completion event; it has no persistence of its own.
type Intent struct {
	IntentID   string      `json:"intent_id"`
	UserRef    string      `json:"user_ref"`
	Items      []cart.Item `json:"items"`
	CouponCode string      `json:"coupon_code,omitempty"`
	Discount   int64       `json:"discount"`
	Shipping   int64       `json:"shipping"`
	Total      int64       `json:"total"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Encode serializes a priced order into provider metadata and mints the
// intent id that later serves as the order-creation idempotency key.
// When the items payload is over budget the per-item image refs are
// dropped first; if it still does not fit, checkout fails rather than
// truncate order data.
func Encode(p pricing.PricedOrder, now time.Time) (map[string]string, string, error) {
	intentID := uuid.NewString()

	itemsJSON, err := marshalItems(p.Items)
	if err != nil {
		return nil, "", err
	}

	md := map[string]string{
		"intent_id":  intentID,
		"user_id":    p.UserRef,
		"discount":   strconv.FormatInt(p.Discount, 10),
		"shipping":   strconv.FormatInt(p.Shipping, 10),
		"total":      strconv.FormatInt(p.Total, 10),
		"created_at": now.UTC().Format(time.RFC3339),
	}
	if p.CouponCode != "" {
		md["coupon_code"] = p.CouponCode
	}
	for i, chunk := range splitChunks(itemsJSON) {
		md[fmt.Sprintf("items_%d", i)] = chunk
	}
	return md, intentID, nil
}

// Decode reconstructs the intent from echoed metadata. Missing required
// fields or a broken totals invariant are permanent failures: such an
// event can never materialize an order.
func Decode(md map[string]string) (Intent, error) {
	var in Intent

	in.IntentID = md["intent_id"]
	in.UserRef = md["user_id"]
	in.CouponCode = md["coupon_code"]
	if in.IntentID == "" || in.UserRef == "" {
		return Intent{}, fmt.Errorf("%w: missing intent_id or user_id", ErrMalformed)
	}

	var err error
	if in.Discount, err = parseAmount(md, "discount"); err != nil {
		return Intent{}, err
	}
	if in.Shipping, err = parseAmount(md, "shipping"); err != nil {
		return Intent{}, err
	}
	if in.Total, err = parseAmount(md, "total"); err != nil {
		return Intent{}, err
	}
	if in.CreatedAt, err = time.Parse(time.RFC3339, md["created_at"]); err != nil {
		return Intent{}, fmt.Errorf("%w: bad created_at: %v", ErrMalformed, err)
	}

	var itemsJSON string
	for i := 0; ; i++ {
		chunk, ok := md[fmt.Sprintf("items_%d", i)]
		if !ok {
			break
		}
		itemsJSON += chunk
	}
	if itemsJSON == "" {
		return Intent{}, fmt.Errorf("%w: missing items", ErrMalformed)
	}
	if err := json.Unmarshal([]byte(itemsJSON), &in.Items); err != nil {
		return Intent{}, fmt.Errorf("%w: bad items payload: %v", ErrMalformed, err)
	}
	if len(in.Items) == 0 {
		return Intent{}, fmt.Errorf("%w: empty items", ErrMalformed)
	}

	if in.Total < 0 || in.Total != cart.Subtotal(in.Items)-in.Discount+in.Shipping {
		return Intent{}, fmt.Errorf("%w: totals invariant broken", ErrMalformed)
	}
	return in, nil
}

func marshalItems(items []cart.Item) (string, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal items: %w", err)
	}
	if len(raw) <= maxValueLen*maxItemChunks {
		return string(raw), nil
	}

	// Over budget: images are display-only, drop them and retry.
	stripped := make([]cart.Item, len(items))
	copy(stripped, items)
	for i := range stripped {
		stripped[i].ImageRef = ""
	}
	raw, err = json.Marshal(stripped)
	if err != nil {
		return "", fmt.Errorf("failed to marshal items: %w", err)
	}
	if len(raw) > maxValueLen*maxItemChunks {
		return "", ErrTooLarge
	}
	return string(raw), nil
}

func splitChunks(s string) []string {
	var chunks []string
	for len(s) > maxValueLen {
		chunks = append(chunks, s[:maxValueLen])
		s = s[maxValueLen:]
	}
	return append(chunks, s)
}

func parseAmount(md map[string]string, key string) (int64, error) {
	v, ok := md[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrMalformed, key)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s: %v", ErrMalformed, key, err)
	}
	return n, nil
}
