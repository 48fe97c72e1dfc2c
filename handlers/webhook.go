package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Harry808275/evertrust23-sub000/internal/intent"
	"github.com/Harry808275/evertrust23-sub000/internal/stores/kafka"
	"github.com/Harry808275/evertrust23-sub000/pkg/ctxmanage"
	"github.com/Harry808275/evertrust23-sub000/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// Webhook ingests provider completion events and materializes orders.
// Delivery is at-least-once and unordered, so the rules are strict:
// verify the signature before touching anything else, treat duplicates
// as success, and only answer 2xx once the order is durably visible --
// a non-2xx is the signal that makes the provider redeliver.
func (h *Handler) Webhook(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	const MaxBodyBytes = int64(65536)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		slog.Error("failed to read webhook body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	// Signature first: until this passes the payload is attacker-controlled.
	event, err := webhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		slog.Error("webhook signature verification failed", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()), slog.String("remote_addr", c.ClientIP()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "InvalidSignature"})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var paymentIntent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
			slog.Error("failed to unmarshal payment intent", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "MalformedEvent"})
			return
		}

		in, err := intent.Decode(paymentIntent.Metadata)
		if err != nil {
			// Permanent: redelivery cannot fix a malformed event, and a
			// partial order must never be materialized from one.
			slog.Error("malformed intent metadata", slog.String(logkey.TraceID, traceId),
				slog.String("payment_intent", paymentIntent.ID), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "MalformedEvent"})
			return
		}

		ctx := c.Request.Context()
		orderId, created, err := h.o.Materialize(ctx, in)
		if err != nil {
			// Transient: withhold the ack so the provider redelivers.
			slog.Error("failed to materialize order", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.IntentID, in.IntentID), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "storage unavailable"})
			return
		}
		if created {
			slog.Info("order materialized", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.IntentID, in.IntentID), slog.String("order_id", orderId))
		} else {
			slog.Info("duplicate delivery, order already materialized", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.IntentID, in.IntentID), slog.String("order_id", orderId))
		}

		// Emitted on duplicates too: consumers dedupe on
		// (order_id, product_id), and re-emitting lets a redelivery heal
		// an earlier publish failure.
		if err := h.publishOrderPaid(orderId, in); err != nil {
			slog.Error("failed to produce order-paid events", slog.String(logkey.TraceID, traceId),
				slog.String("order_id", orderId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "event publish failed"})
			return
		}

		c.Status(http.StatusOK)

	default:
		slog.Info("unhandled event type", slog.String(logkey.TraceID, traceId), slog.String("event_type", string(event.Type)))
		c.JSON(http.StatusOK, gin.H{
			"message": "Event type not handled",
			"event":   event.Type,
		})
	}
}

func (h *Handler) publishOrderPaid(orderId string, in intent.Intent) error {
	var errs []error
	for _, item := range in.Items {
		jsonData, err := json.Marshal(kafka.OrderPaidEvent{
			OrderId:   orderId,
			ProductId: item.ProductRef,
			Quantity:  item.Quantity,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := h.k.ProduceMessage(kafka.TopicOrderPaid, []byte(orderId), jsonData); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
