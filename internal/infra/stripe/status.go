package stripe

import "strings"

// NormalizePaymentStatus maps Stripe payment intent and invoice statuses onto the values stored
// on a donation.
func NormalizePaymentStatus(s string) string {
	switch strings.TrimSpace(s) {
	case "":
		return "unknown"
	case "succeeded", "paid":
		return "succeeded"
	case "processing", "open":
		return "processing"
	case "requires_payment_method", "requires_action", "requires_confirmation", "uncollectible":
		return "failed"
	case "canceled", "void":
		return "canceled"
	default:
		return strings.TrimSpace(s)
	}
}
