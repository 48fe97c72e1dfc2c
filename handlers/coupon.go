package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Harry808275/evertrust23-sub000/internal/auth"
	"github.com/Harry808275/evertrust23-sub000/internal/pricing"
	"github.com/Harry808275/evertrust23-sub000/pkg/ctxmanage"
	"github.com/Harry808275/evertrust23-sub000/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type ValidateCouponRequest struct {
	Code      string                 `json:"code" validate:"required"`
	CartItems []pricing.SnapshotItem `json:"cart_items" validate:"required,min=1,dive"`
}

// ValidateCoupon previews a discount before the client commits to
// checkout. It runs the exact evaluator checkout runs, on the same
// re-priced cart, so the preview can never drift from the charge.
func (h *Handler) ValidateCoupon(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := validator.New().Struct(req); err != nil {
		slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "code and cart_items are required"})
		return
	}

	ctx := c.Request.Context()

	items, err := pricing.PriceItems(ctx, h.catalog, req.CartItems)
	if err != nil {
		h.abortPricing(c, traceId, err)
		return
	}

	disc, err := h.evaluateCoupon(ctx, req.Code, items, claims, time.Now().UTC())
	if err != nil {
		slog.Error("coupon lookup failed", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.Coupon, req.Code), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate coupon"})
		return
	}

	if !disc.Accepted {
		c.JSON(http.StatusOK, gin.H{
			"accepted": false,
			"reason":   disc.Reason,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accepted":        true,
		"discount_amount": disc.DiscountAmount,
		"shipping_waived": disc.ShippingWaived,
	})
}
