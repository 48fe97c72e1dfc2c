package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Harry808275/evertrust23-sub000/internal/cart"
	"github.com/Harry808275/evertrust23-sub000/internal/intent"
	"github.com/Harry808275/evertrust23-sub000/internal/pricing"
	"github.com/Harry808275/evertrust23-sub000/internal/stores/kafka"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

func webhookRouter(store *fakeOrderStore, producer *fakeProducer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, &fakeCouponStore{}, &fakeCatalog{}, &fakeGateway{}, producer, pricing.Rule{}, testWebhookSecret)
	r := gin.New()
	r.POST("/webhooks/payment", h.Webhook)
	return r
}

// signPayload produces the provider's signature header for a raw body.
func signPayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(t *testing.T, eventType string, metadata map[string]string) []byte {
	t.Helper()
	paymentIntent := map[string]any{
		"id":       "pi_test_123",
		"object":   "payment_intent",
		"metadata": metadata,
	}
	raw, err := json.Marshal(paymentIntent)
	require.NoError(t, err)

	event := map[string]any{
		"id":      "evt_test_123",
		"object":  "event",
		"type":    eventType,
		"created": time.Now().Unix(),
		"data":    map[string]any{"object": json.RawMessage(raw)},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

func testMetadata(t *testing.T) (map[string]string, string) {
	t.Helper()
	p := pricing.PricedOrder{
		UserRef: "user-42",
		Items: []cart.Item{
			{ProductRef: "p-1", Name: "Widget", UnitPrice: 2500, Quantity: 2},
			{ProductRef: "p-2", Name: "Gadget", UnitPrice: 900, Quantity: 1},
		},
		CouponCode: "SAVE20",
		Subtotal:   5900,
		Discount:   1180,
		Shipping:   500,
		Total:      5220,
	}
	md, intentID, err := intent.Encode(p, time.Now().UTC())
	require.NoError(t, err)
	return md, intentID
}

func deliver(r *gin.Engine, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signature)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook_MaterializesOrder(t *testing.T) {
	store := newFakeOrderStore()
	producer := &fakeProducer{}
	r := webhookRouter(store, producer)

	md, intentID := testMetadata(t)
	payload := eventPayload(t, "payment_intent.succeeded", md)

	w := deliver(r, payload, signPayload(payload, testWebhookSecret, time.Now()))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, store.orders, 1)
	assert.Contains(t, store.orders, intentID)
	assert.Equal(t, 1, store.decrements[intentID+":p-1"])
	assert.Equal(t, 1, store.decrements[intentID+":p-2"])

	require.Len(t, producer.records, 2)
	assert.Equal(t, kafka.TopicOrderPaid, producer.records[0].topic)
	var ev kafka.OrderPaidEvent
	require.NoError(t, json.Unmarshal(producer.records[0].value, &ev))
	assert.Equal(t, store.orders[intentID], ev.OrderId)
	assert.Equal(t, "p-1", ev.ProductId)
	assert.Equal(t, 2, ev.Quantity)
}

func TestWebhook_DuplicateDeliveryIsNoOp(t *testing.T) {
	store := newFakeOrderStore()
	producer := &fakeProducer{}
	r := webhookRouter(store, producer)

	md, intentID := testMetadata(t)
	payload := eventPayload(t, "payment_intent.succeeded", md)
	signature := signPayload(payload, testWebhookSecret, time.Now())

	first := deliver(r, payload, signature)
	second := deliver(r, payload, signature)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Len(t, store.orders, 1)
	assert.Equal(t, 1, store.decrements[intentID+":p-1"], "duplicate must not double-decrement")
}

func TestWebhook_ConcurrentDuplicates(t *testing.T) {
	store := newFakeOrderStore()
	producer := &fakeProducer{}
	r := webhookRouter(store, producer)

	md, intentID := testMetadata(t)
	payload := eventPayload(t, "payment_intent.succeeded", md)
	signature := signPayload(payload, testWebhookSecret, time.Now())

	const deliveries = 8
	codes := make([]int, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = deliver(r, payload, signature).Code
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	assert.Len(t, store.orders, 1, "exactly one order per intent")
	assert.Equal(t, 1, store.decrements[intentID+":p-1"], "inventory decremented exactly once")
	assert.Equal(t, 1, store.decrements[intentID+":p-2"], "inventory decremented exactly once")
}

func TestWebhook_TamperedSignatureRejectedBeforeDecode(t *testing.T) {
	store := newFakeOrderStore()
	r := webhookRouter(store, &fakeProducer{})

	md, _ := testMetadata(t)
	payload := eventPayload(t, "payment_intent.succeeded", md)
	signature := signPayload(payload, testWebhookSecret, time.Now())

	// Body altered after signing.
	tampered := []byte(strings.Replace(string(payload), `"total":"5220"`, `"total":"1"`, 1))

	w := deliver(r, tampered, signature)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, store.materializeCalls, "store must not be touched on a forged event")
	assert.Empty(t, store.orders)
}

func TestWebhook_WrongSecretRejected(t *testing.T) {
	store := newFakeOrderStore()
	r := webhookRouter(store, &fakeProducer{})

	md, _ := testMetadata(t)
	payload := eventPayload(t, "payment_intent.succeeded", md)

	w := deliver(r, payload, signPayload(payload, "whsec_other", time.Now()))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, store.materializeCalls)
}

func TestWebhook_MalformedMetadataPermanentlyRejected(t *testing.T) {
	store := newFakeOrderStore()
	r := webhookRouter(store, &fakeProducer{})

	md, _ := testMetadata(t)
	delete(md, "total")
	payload := eventPayload(t, "payment_intent.succeeded", md)

	w := deliver(r, payload, signPayload(payload, testWebhookSecret, time.Now()))

	assert.Equal(t, http.StatusBadRequest, w.Code, "malformed events must not trigger provider retry")
	assert.Empty(t, store.orders, "no partial order may be materialized")
}

func TestWebhook_TransientStorageFailureTriggersRetry(t *testing.T) {
	store := newFakeOrderStore()
	store.failNext = 1
	producer := &fakeProducer{}
	r := webhookRouter(store, producer)

	md, intentID := testMetadata(t)
	payload := eventPayload(t, "payment_intent.succeeded", md)
	signature := signPayload(payload, testWebhookSecret, time.Now())

	first := deliver(r, payload, signature)
	assert.Equal(t, http.StatusBadGateway, first.Code, "ack must be withheld until the order is durable")
	assert.Empty(t, store.orders)

	// Provider redelivers.
	second := deliver(r, payload, signature)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, store.orders, intentID)
}

func TestWebhook_UnhandledEventTypeAcknowledged(t *testing.T) {
	store := newFakeOrderStore()
	r := webhookRouter(store, &fakeProducer{})

	payload := eventPayload(t, "charge.refunded", nil)

	w := deliver(r, payload, signPayload(payload, testWebhookSecret, time.Now()))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, store.materializeCalls)
}
