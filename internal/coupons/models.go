package coupons

import "time"

type Kind string

const (
	KindPercentage   Kind = "percentage"
	KindFixed        Kind = "fixed"
	KindFreeShipping Kind = "free_shipping"
)

type Segment string

const (
	SegmentAll       Segment = "all"
	SegmentNew       Segment = "new"
	SegmentReturning Segment = "returning"
	SegmentVIP       Segment = "vip"
)

// Definition is an admin-owned coupon. The core reads it, never writes it.
// Value is a percentage in [0,100] for KindPercentage and an amount in
// minor units for KindFixed; zero limits mean "no limit".
type Definition struct {
	Code                  string    `json:"code"`
	Kind                  Kind      `json:"kind"`
	Value                 int64     `json:"value"`
	MinOrderAmount        int64     `json:"min_order_amount"`
	MaxDiscountAmount     int64     `json:"max_discount_amount"`
	GlobalUsageLimit      int       `json:"global_usage_limit"`
	PerUserUsageLimit     int       `json:"per_user_usage_limit"`
	ValidFrom             time.Time `json:"valid_from"`
	ValidUntil            time.Time `json:"valid_until"`
	ApplicableCategories  []string  `json:"applicable_categories"`
	ExcludedCategories    []string  `json:"excluded_categories"`
	ApplicableProductRefs []string  `json:"applicable_product_refs"`
	ExcludedProductRefs   []string  `json:"excluded_product_refs"`
	Segment               Segment   `json:"customer_segment"`
	FirstTimeOnly         bool      `json:"first_time_only"`
	MinQuantity           int       `json:"min_quantity"`
	MaxQuantity           int       `json:"max_quantity"`
	IsActive              bool      `json:"is_active"`
}

// Customer is the evaluator's view of who is checking out.
type Customer struct {
	UserID          string
	PriorOrderCount int
	VIP             bool
}

// Usage is a read-only snapshot of redemption counts taken from the order
// store. It can be stale between the check and the eventual order insert;
// usage limits are a soft cap, the insert-time bookkeeping is atomic.
type Usage struct {
	GlobalCount int
	UserCount   int
}

// Reason explains why a coupon was not applied. A rejection is a normal
// outcome, not an error.
type Reason string

const (
	ReasonNotFound           Reason = "CouponNotFound"
	ReasonInactive           Reason = "CouponInactive"
	ReasonNotStarted         Reason = "NotYetValid"
	ReasonExpired            Reason = "Expired"
	ReasonBelowMinimum       Reason = "BelowMinimum"
	ReasonGlobalLimitReached Reason = "GlobalLimitReached"
	ReasonUserLimitReached   Reason = "UserLimitReached"
	ReasonSegmentMismatch    Reason = "SegmentMismatch"
	ReasonFirstTimeOnly      Reason = "FirstTimeOnly"
	ReasonNotApplicable      Reason = "NotApplicable"
	ReasonQuantityOutOfRange Reason = "QuantityOutOfRange"
)

// Result is the evaluator's outcome. Coupon freezes the definition that
// produced the discount so later disputes are reproducible even if the
// admin edits the coupon afterward.
type Result struct {
	Accepted       bool       `json:"accepted"`
	Reason         Reason     `json:"reason,omitempty"`
	DiscountAmount int64      `json:"discount_amount"`
	ShippingWaived bool       `json:"shipping_waived"`
	Coupon         Definition `json:"coupon"`
}
