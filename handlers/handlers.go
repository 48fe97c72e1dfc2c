package handlers

import (
	"context"
	"os"

	"github.com/Harry808275/evertrust23-sub000/internal/auth"
	"github.com/Harry808275/evertrust23-sub000/internal/catalog"
	"github.com/Harry808275/evertrust23-sub000/internal/coupons"
	"github.com/Harry808275/evertrust23-sub000/internal/intent"
	"github.com/Harry808275/evertrust23-sub000/internal/payments"
	"github.com/Harry808275/evertrust23-sub000/internal/pricing"
	"github.com/Harry808275/evertrust23-sub000/middleware"

	"github.com/gin-gonic/gin"
)

// OrderStore is the materializer's durable side: the exactly-once order
// insert plus the usage counts the evaluator reads.
type OrderStore interface {
	Materialize(ctx context.Context, in intent.Intent) (orderID string, created bool, err error)
	CountCouponUsage(ctx context.Context, code string, userID string) (global int, user int, err error)
}

// CouponStore reads admin-owned coupon definitions.
type CouponStore interface {
	GetByCode(ctx context.Context, code string) (coupons.Definition, error)
}

// SessionCreator hands a priced order to the payment provider.
type SessionCreator interface {
	CreateSession(ctx context.Context, p pricing.PricedOrder, metadata map[string]string, intentID string) (payments.Session, error)
}

// Producer publishes order events for downstream services.
type Producer interface {
	ProduceMessage(topic string, key []byte, value []byte) error
}

type Handler struct {
	o             OrderStore
	cp            CouponStore
	catalog       catalog.Lookup
	gateway       SessionCreator
	k             Producer
	shipping      pricing.Rule
	webhookSecret string
}

func NewHandler(o OrderStore, cp CouponStore, lookup catalog.Lookup, gateway SessionCreator,
	k Producer, shipping pricing.Rule, webhookSecret string) *Handler {
	return &Handler{
		o:             o,
		cp:            cp,
		catalog:       lookup,
		gateway:       gateway,
		k:             k,
		shipping:      shipping,
		webhookSecret: webhookSecret,
	}
}

func API(endpointPrefix string, keys *auth.Keys, h *Handler) *gin.Engine {
	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	m, err := middleware.NewMid(keys)
	if err != nil {
		panic(err)
	}

	r.Use(middleware.Logger(), gin.Recovery())

	r.GET("/ping", HealthCheck)
	v1 := r.Group(endpointPrefix)
	{
		// Provider-invoked; authenticated by signature, not by session token.
		v1.POST("/webhooks/payment", h.Webhook)

		v1.Use(m.Authentication())
		v1.POST("/checkout", h.Checkout)
		v1.POST("/coupons/validate", h.ValidateCoupon)
	}
	return r
}

func HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}
