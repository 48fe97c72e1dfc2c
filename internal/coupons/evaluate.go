package coupons

import (
	"slices"
	"time"

	"github.com/Harry808275/evertrust23-sub000/internal/cart"
)

// conditionKind enumerates every eligibility rule a coupon can carry.
// Evaluate dispatches over the full set exhaustively, so adding a new
// rule means adding a constant here and a case in checkCondition.
type conditionKind int

const (
	condActive conditionKind = iota
	condValidityWindow
	condMinAmount
	condGlobalLimit
	condUserLimit
	condSegment
	condFirstTimeOnly
	condApplicability
	condQuantityRange
	numConditions // keep last
)

// Evaluate applies a coupon definition to a priced cart. It is pure: all
// mutable state (redemption counts, prior orders) comes in as snapshots.
// All arithmetic is integer minor units; percentage discounts round down
// so we never discount more than promised.
func Evaluate(def Definition, items []cart.Item, cust Customer, usage Usage, now time.Time) Result {
	subtotal := cart.Subtotal(items)

	for kind := conditionKind(0); kind < numConditions; kind++ {
		if reason, ok := checkCondition(kind, def, items, subtotal, cust, usage, now); !ok {
			return Result{Accepted: false, Reason: reason, Coupon: def}
		}
	}

	res := Result{Accepted: true, Coupon: def}
	switch def.Kind {
	case KindPercentage:
		discount := subtotal * def.Value / 100
		if def.MaxDiscountAmount > 0 && discount > def.MaxDiscountAmount {
			discount = def.MaxDiscountAmount
		}
		res.DiscountAmount = discount
	case KindFixed:
		res.DiscountAmount = min(def.Value, subtotal)
	case KindFreeShipping:
		res.ShippingWaived = true
	}
	return res
}

func checkCondition(kind conditionKind, def Definition, items []cart.Item, subtotal int64, cust Customer, usage Usage, now time.Time) (Reason, bool) {
	switch kind {
	case condActive:
		if !def.IsActive {
			return ReasonInactive, false
		}
	case condValidityWindow:
		if now.Before(def.ValidFrom) {
			return ReasonNotStarted, false
		}
		if now.After(def.ValidUntil) {
			return ReasonExpired, false
		}
	case condMinAmount:
		if def.MinOrderAmount > 0 && subtotal < def.MinOrderAmount {
			return ReasonBelowMinimum, false
		}
	case condGlobalLimit:
		if def.GlobalUsageLimit > 0 && usage.GlobalCount >= def.GlobalUsageLimit {
			return ReasonGlobalLimitReached, false
		}
	case condUserLimit:
		if def.PerUserUsageLimit > 0 && usage.UserCount >= def.PerUserUsageLimit {
			return ReasonUserLimitReached, false
		}
	case condSegment:
		if !segmentMatches(def.Segment, cust) {
			return ReasonSegmentMismatch, false
		}
	case condFirstTimeOnly:
		if def.FirstTimeOnly && cust.PriorOrderCount > 0 {
			return ReasonFirstTimeOnly, false
		}
	case condApplicability:
		if def.constrainsItems() && countEligible(def, items) == 0 {
			return ReasonNotApplicable, false
		}
	case condQuantityRange:
		qty := cart.TotalQuantity(items)
		if def.MinQuantity > 0 && qty < def.MinQuantity {
			return ReasonQuantityOutOfRange, false
		}
		if def.MaxQuantity > 0 && qty > def.MaxQuantity {
			return ReasonQuantityOutOfRange, false
		}
	}
	return "", true
}

func segmentMatches(seg Segment, cust Customer) bool {
	switch seg {
	case SegmentNew:
		return cust.PriorOrderCount == 0
	case SegmentReturning:
		return cust.PriorOrderCount > 0
	case SegmentVIP:
		return cust.VIP
	default: // SegmentAll or unset
		return true
	}
}

func (d Definition) constrainsItems() bool {
	return len(d.ApplicableCategories) > 0 || len(d.ApplicableProductRefs) > 0 ||
		len(d.ExcludedCategories) > 0 || len(d.ExcludedProductRefs) > 0
}

func countEligible(def Definition, items []cart.Item) int {
	var n int
	for _, it := range items {
		if slices.Contains(def.ExcludedProductRefs, it.ProductRef) {
			continue
		}
		if slices.Contains(def.ExcludedCategories, it.Category) {
			continue
		}
		// Either allow-list admits the item; only when both are empty
		// is everything admitted.
		if len(def.ApplicableProductRefs) > 0 || len(def.ApplicableCategories) > 0 {
			if !slices.Contains(def.ApplicableProductRefs, it.ProductRef) &&
				!slices.Contains(def.ApplicableCategories, it.Category) {
				continue
			}
		}
		n++
	}
	return n
}
