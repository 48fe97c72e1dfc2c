package logkey

// Shared keys for structured log attributes so grepping stays consistent
// across handlers and stores.
const (
	TraceID  = "TRACE ID"
	ERROR    = "ERROR"
	IntentID = "INTENT ID"
	UserID   = "USER ID"
	Coupon   = "COUPON"
)
