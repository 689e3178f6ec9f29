package model

// ConfirmationKind tags a pending confirmation with the intent that minted its
// authorization secret. A secret minted for one kind must never be spent on
// the other.
type ConfirmationKind string

const (
	// KindSubscription confirms a charge that activates a subscription.
	KindSubscription ConfirmationKind = "subscription"
	// KindPaymentMethod confirms the setup of a new payment method with no
	// charge attached.
	KindPaymentMethod ConfirmationKind = "payment_method"
)

// Valid reports whether k is one of the closed set of kinds.
func (k ConfirmationKind) Valid() bool {
	return k == KindSubscription || k == KindPaymentMethod
}

// PendingConfirmation is the ephemeral record of an in-flight two-phase
// authorization. It exists only between "secret obtained" and "confirmation
// resolved" and is never trusted across a restart; the ticket row keyed by
// TicketID is the durable form used to resume after a provider redirect.
type PendingConfirmation struct {
	TicketID     string           `json:"ticket_id"`
	ClientSecret string           `json:"client_secret"`
	Kind         ConfirmationKind `json:"kind"`
	// PlanID carries the originally requested plan for KindSubscription, or
	// the deferred upgrade target when a payment method had to be set up
	// first. Empty for a plain add-payment-method flow.
	PlanID string `json:"plan_id,omitempty"`
}
