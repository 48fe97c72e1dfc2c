package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Harry808275/evertrust23-sub000/internal/auth"
	"github.com/Harry808275/evertrust23-sub000/internal/cart"
	"github.com/Harry808275/evertrust23-sub000/internal/coupons"
	"github.com/Harry808275/evertrust23-sub000/internal/intent"
	"github.com/Harry808275/evertrust23-sub000/internal/pricing"
	"github.com/Harry808275/evertrust23-sub000/pkg/ctxmanage"
	"github.com/Harry808275/evertrust23-sub000/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type CheckoutRequest struct {
	CartItems  []pricing.SnapshotItem `json:"cart_items" validate:"required,min=1,dive"`
	CouponCode string                 `json:"coupon_code"`
}

// Checkout prices the cart server-side, applies at most one coupon,
// freezes the result into an intent and returns the provider's hosted
// payment page URL. Nothing durable happens here; the order itself is
// born later, when the provider's completion event arrives.
func (h *Handler) Checkout(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := validator.New().Struct(req); err != nil {
		slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "cart_items must contain at least one item with product_id and quantity"})
		return
	}

	ctx := c.Request.Context()

	items, err := pricing.PriceItems(ctx, h.catalog, req.CartItems)
	if err != nil {
		h.abortPricing(c, traceId, err)
		return
	}

	disc := coupons.Result{}
	if req.CouponCode != "" {
		disc, err = h.evaluateCoupon(ctx, req.CouponCode, items, claims, time.Now().UTC())
		if err != nil {
			slog.Error("coupon lookup failed", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.Coupon, req.CouponCode), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate coupon"})
			return
		}
		if !disc.Accepted {
			slog.Info("coupon rejected", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.Coupon, req.CouponCode), slog.String("reason", string(disc.Reason)))
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "CouponRejected", "reason": disc.Reason})
			return
		}
	}

	priced, err := pricing.Aggregate(items, disc, h.shipping)
	if err != nil {
		h.abortPricing(c, traceId, err)
		return
	}
	priced.UserRef = claims.Subject

	metadata, intentID, err := intent.Encode(priced, time.Now().UTC())
	if err != nil {
		if errors.Is(err, intent.ErrTooLarge) {
			slog.Error("intent too large", slog.String(logkey.TraceID, traceId), slog.Int("items", len(priced.Items)))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "IntentTooLarge"})
			return
		}
		slog.Error("failed to encode intent", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare checkout"})
		return
	}

	session, err := h.gateway.CreateSession(ctx, priced, metadata, intentID)
	if err != nil {
		slog.Error("error creating checkout session", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.IntentID, intentID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "PaymentProviderUnavailable"})
		return
	}

	slog.Info("checkout session created", slog.String(logkey.TraceID, traceId),
		slog.String(logkey.IntentID, intentID), slog.String(logkey.UserID, claims.Subject),
		slog.Int64("total", priced.Total))

	c.JSON(http.StatusOK, gin.H{"checkout_session_url": session.RedirectURL})
}

func (h *Handler) abortPricing(c *gin.Context, traceId string, err error) {
	switch {
	case errors.Is(err, pricing.ErrEmptyCart):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "EmptyCart"})
	case errors.Is(err, pricing.ErrPriceMismatch):
		slog.Error("price mismatch", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "PriceMismatch"})
	default:
		// Monetary invariant violations land here: abort, never charge.
		slog.Error("pricing failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to price order"})
	}
}

// evaluateCoupon runs the one discount evaluator shared by checkout and
// the preview endpoint. A lookup miss is a rejection, not an error;
// store unavailability is an error.
func (h *Handler) evaluateCoupon(ctx context.Context, code string, items []cart.Item, claims auth.Claims, now time.Time) (coupons.Result, error) {
	def, err := h.cp.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, coupons.ErrNotFound) {
			return coupons.Result{Accepted: false, Reason: coupons.ReasonNotFound}, nil
		}
		return coupons.Result{}, err
	}

	global, user, err := h.o.CountCouponUsage(ctx, def.Code, claims.Subject)
	if err != nil {
		return coupons.Result{}, err
	}

	cust := coupons.Customer{
		UserID:          claims.Subject,
		PriorOrderCount: claims.PriorOrderCount,
		VIP:             claims.VIP,
	}
	usage := coupons.Usage{GlobalCount: global, UserCount: user}
	return coupons.Evaluate(def, items, cust, usage, now), nil
}
