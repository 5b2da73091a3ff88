package stripe

import "strings"

// NormalizeStatus maps Stripe's subscription status vocabulary onto the
// lifecycle's canonical one. Unknown values pass through trimmed so the
// engine can reject them explicitly instead of this layer guessing.
func NormalizeStatus(s string) string {
	switch strings.TrimSpace(s) {
	case "active":
		return "active"
	case "trialing":
		return "trialing"
	case "past_due", "unpaid":
		return "past_due"
	case "canceled", "incomplete_expired":
		return "canceled"
	case "incomplete":
		return "incomplete"
	default:
		return strings.TrimSpace(s)
	}
}
