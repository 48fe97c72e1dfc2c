package handlers

import (
	"context"
	"errors"
	"sync"

	"github.com/Harry808275/evertrust23-sub000/internal/catalog"
	"github.com/Harry808275/evertrust23-sub000/internal/coupons"
	"github.com/Harry808275/evertrust23-sub000/internal/intent"
	"github.com/Harry808275/evertrust23-sub000/internal/payments"
	"github.com/Harry808275/evertrust23-sub000/internal/pricing"
)

// fakeOrderStore implements OrderStore with the same guarantee the real
// store gets from the intent_id unique constraint: under concurrent
// duplicate materializations at most one insert wins.
type fakeOrderStore struct {
	mu               sync.Mutex
	orders           map[string]string // intentID -> orderID
	decrements       map[string]int    // intentID:productRef -> times applied
	materializeCalls int
	failNext         int // transient failures to return before succeeding
	globalCount      int
	userCount        int
	usageErr         error
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders:     make(map[string]string),
		decrements: make(map[string]int),
	}
}

func (f *fakeOrderStore) Materialize(_ context.Context, in intent.Intent) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.materializeCalls++
	if f.failNext > 0 {
		f.failNext--
		return "", false, errors.New("storage unavailable")
	}
	if id, ok := f.orders[in.IntentID]; ok {
		return id, false, nil
	}
	id := "order-for-" + in.IntentID
	f.orders[in.IntentID] = id
	for _, item := range in.Items {
		f.decrements[in.IntentID+":"+item.ProductRef]++
	}
	return id, true, nil
}

func (f *fakeOrderStore) CountCouponUsage(_ context.Context, _ string, _ string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.globalCount, f.userCount, f.usageErr
}

type fakeCouponStore struct {
	def coupons.Definition
	err error
}

func (f *fakeCouponStore) GetByCode(_ context.Context, _ string) (coupons.Definition, error) {
	if f.err != nil {
		return coupons.Definition{}, f.err
	}
	return f.def, nil
}

type fakeCatalog struct {
	products map[string]catalog.Product
}

func (f *fakeCatalog) GetProduct(_ context.Context, ref string) (catalog.Product, error) {
	p, ok := f.products[ref]
	if !ok {
		return catalog.Product{}, errors.New("product not found")
	}
	return p, nil
}

type fakeGateway struct {
	session  payments.Session
	err      error
	order    pricing.PricedOrder
	metadata map[string]string
	intentID string
}

func (f *fakeGateway) CreateSession(_ context.Context, p pricing.PricedOrder, metadata map[string]string, intentID string) (payments.Session, error) {
	f.order = p
	f.metadata = metadata
	f.intentID = intentID
	if f.err != nil {
		return payments.Session{}, f.err
	}
	return f.session, nil
}

type producedRecord struct {
	topic string
	key   string
	value []byte
}

type fakeProducer struct {
	mu      sync.Mutex
	records []producedRecord
	err     error
}

func (f *fakeProducer) ProduceMessage(topic string, key []byte, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, producedRecord{topic: topic, key: string(key), value: value})
	return nil
}
